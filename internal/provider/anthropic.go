package provider

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/quillscribe/portal/internal/catalog"
	"github.com/quillscribe/portal/internal/model"
)

const anthropicPageSize = 100

// Anthropic lists models through the Anthropic models endpoint.
type Anthropic struct {
	cfg    Config
	client anthropic.Client
}

// NewAnthropic creates an Anthropic lister. SDK retries are disabled so a
// failing upstream falls back quickly.
func NewAnthropic(cfg Config) *Anthropic {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(cfg.httpClient()),
		option.WithMaxRetries(0),
		option.WithHeader("User-Agent", userAgent),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Anthropic{
		cfg:    cfg,
		client: anthropic.NewClient(opts...),
	}
}

// Provider implements Lister.
func (a *Anthropic) Provider() model.Provider { return model.ProviderAnthropic }

// ListModels walks every page of the listing and keeps the latest
// generation of each family.
func (a *Anthropic) ListModels(ctx context.Context) ([]model.AIModel, error) {
	if a.cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic: %w", ErrMissingAPIKey)
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.timeout())
	defer cancel()

	var raw []catalog.AnthropicModel
	iter := a.client.Models.ListAutoPaging(ctx, anthropic.ModelListParams{
		Limit: anthropic.Int(anthropicPageSize),
	})
	for iter.Next() {
		m := iter.Current()
		raw = append(raw, catalog.AnthropicModel{
			ID:          m.ID,
			DisplayName: m.DisplayName,
			CreatedAt:   m.CreatedAt,
		})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("anthropic list models: %w", err)
	}

	return catalog.FromAnthropic(raw), nil
}
