package provider

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/quillscribe/portal/internal/catalog"
	"github.com/quillscribe/portal/internal/model"
)

// OpenAI lists models through the OpenAI models endpoint.
type OpenAI struct {
	cfg    Config
	client *openai.Client
}

// NewOpenAI creates an OpenAI lister.
func NewOpenAI(cfg Config) *OpenAI {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	clientCfg.HTTPClient = cfg.httpClient()

	return &OpenAI{
		cfg:    cfg,
		client: openai.NewClientWithConfig(clientCfg),
	}
}

// Provider implements Lister.
func (o *OpenAI) Provider() model.Provider { return model.ProviderOpenAI }

// ListModels fetches and classifies every model visible to the API key.
func (o *OpenAI) ListModels(ctx context.Context) ([]model.AIModel, error) {
	if o.cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: %w", ErrMissingAPIKey)
	}

	ctx, cancel := context.WithTimeout(ctx, o.cfg.timeout())
	defer cancel()

	list, err := o.client.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("openai list models: %w", err)
	}

	raw := make([]catalog.OpenAIModel, 0, len(list.Models))
	for _, m := range list.Models {
		raw = append(raw, catalog.OpenAIModel{
			ID:      m.ID,
			Created: m.CreatedAt,
			OwnedBy: m.OwnedBy,
		})
	}
	return catalog.FromOpenAI(raw), nil
}
