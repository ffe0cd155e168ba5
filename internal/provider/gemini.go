package provider

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/quillscribe/portal/internal/catalog"
	"github.com/quillscribe/portal/internal/model"
)

const geminiPageSize = 100

// Gemini lists models through the Gemini API (not Vertex AI).
type Gemini struct {
	cfg Config
}

// NewGemini creates a Gemini lister.
func NewGemini(cfg Config) *Gemini {
	return &Gemini{cfg: cfg}
}

// Provider implements Lister.
func (g *Gemini) Provider() model.Provider { return model.ProviderGemini }

// ListModels walks every page of the listing and keeps Gemini models.
func (g *Gemini) ListModels(ctx context.Context) ([]model.AIModel, error) {
	if g.cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: %w", ErrMissingAPIKey)
	}

	ctx, cancel := context.WithTimeout(ctx, g.cfg.timeout())
	defer cancel()

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     g.cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: g.cfg.httpClient(),
		HTTPOptions: genai.HTTPOptions{
			BaseURL: g.cfg.BaseURL,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}

	page, err := client.Models.List(ctx, &genai.ListModelsConfig{PageSize: geminiPageSize})
	var raw []catalog.GeminiModel
	for err == nil {
		for _, m := range page.Items {
			raw = append(raw, toGeminiModel(m))
		}
		if page.NextPageToken == "" {
			break
		}
		page, err = page.Next(ctx)
	}
	if err != nil && !errors.Is(err, genai.ErrPageDone) {
		return nil, fmt.Errorf("gemini list models: %w", err)
	}

	return catalog.FromGemini(raw), nil
}

func toGeminiModel(m *genai.Model) catalog.GeminiModel {
	if m == nil {
		return catalog.GeminiModel{}
	}
	return catalog.GeminiModel{
		Name:             m.Name,
		DisplayName:      m.DisplayName,
		InputTokenLimit:  int(m.InputTokenLimit),
		SupportedMethods: m.SupportedActions,
	}
}
