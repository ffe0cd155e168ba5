package catalog

import (
	"slices"
	"strings"

	"github.com/quillscribe/portal/internal/model"
)

const geminiGenerateMethod = "generateContent"

// GeminiModel is the subset of a Gemini list entry used for normalization.
// Name carries the "models/" resource prefix as returned by the API.
type GeminiModel struct {
	Name             string
	DisplayName      string
	InputTokenLimit  int
	SupportedMethods []string
}

// FromGemini keeps Gemini models and normalizes them. The Gemini API does
// not publish creation times, so Created is zero.
func FromGemini(in []GeminiModel) []model.AIModel {
	out := make([]model.AIModel, 0, len(in))
	for _, m := range in {
		id := strings.TrimPrefix(m.Name, "models/")
		if !strings.Contains(strings.ToLower(id), "gemini") {
			continue
		}

		status := model.StatusLimited
		if slices.Contains(m.SupportedMethods, geminiGenerateMethod) {
			status = model.StatusActive
		}

		var ctxLen *int
		if m.InputTokenLimit > 0 {
			ctxLen = model.IntPtr(m.InputTokenLimit)
		}

		out = append(out, model.AIModel{
			ID:            id,
			OwnedBy:       "google",
			Type:          geminiType(id),
			ContextLength: ctxLen,
			TrainingData:  "Unknown",
			Status:        status,
			DisplayName:   m.DisplayName,
		})
	}
	return out
}

func geminiType(id string) string {
	lower := strings.ToLower(id)
	switch {
	case strings.Contains(lower, "embedding"):
		return model.TypeEmbedding
	case strings.Contains(lower, "image-generation"):
		return model.TypeImageGeneration
	case strings.Contains(lower, "tts"):
		return model.TypeTextToSpeech
	default:
		return model.TypeChatCompletion
	}
}

// GeminiFallback is served when the Gemini listing cannot be fetched.
func GeminiFallback() []model.AIModel {
	return []model.AIModel{
		{
			ID:            "gemini-1.5-pro",
			OwnedBy:       "google",
			Type:          model.TypeChatCompletion,
			ContextLength: model.IntPtr(2097152),
			TrainingData:  "Unknown",
			Status:        model.StatusActive,
			DisplayName:   "Gemini 1.5 Pro",
		},
		{
			ID:            "gemini-1.5-flash",
			OwnedBy:       "google",
			Type:          model.TypeChatCompletion,
			ContextLength: model.IntPtr(1048576),
			TrainingData:  "Unknown",
			Status:        model.StatusActive,
			DisplayName:   "Gemini 1.5 Flash",
		},
	}
}
