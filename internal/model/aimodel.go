package model

import "strings"

// Provider identifies a third-party AI vendor with a model-listing API.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGemini    Provider = "gemini"
)

// Providers lists every supported provider in display order.
var Providers = []Provider{ProviderOpenAI, ProviderAnthropic, ProviderGemini}

// ParseProvider normalizes a provider name from a URL or request body.
func ParseProvider(s string) (Provider, bool) {
	p := Provider(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case ProviderOpenAI, ProviderAnthropic, ProviderGemini:
		return p, true
	}
	return "", false
}

// String implements fmt.Stringer.
func (p Provider) String() string { return string(p) }

// DisplayName returns the vendor name shown in messages.
func (p Provider) DisplayName() string {
	switch p {
	case ProviderOpenAI:
		return "OpenAI"
	case ProviderAnthropic:
		return "Anthropic"
	case ProviderGemini:
		return "Gemini"
	}
	return string(p)
}

// Model types.
const (
	TypeChatCompletion  = "Chat Completion"
	TypeEmbedding       = "Embedding"
	TypeImageGeneration = "Image Generation"
	TypeSpeechToText    = "Speech to Text"
	TypeTextToSpeech    = "Text to Speech"
	TypeModeration      = "Moderation"
	TypeUnknown         = "Unknown"
)

// KnownTypes lists the types a default model can be assigned to.
var KnownTypes = []string{
	TypeChatCompletion,
	TypeEmbedding,
	TypeImageGeneration,
	TypeSpeechToText,
	TypeTextToSpeech,
	TypeModeration,
}

// Model statuses.
const (
	StatusActive     = "Active"
	StatusDeprecated = "Deprecated"
	StatusLimited    = "Limited"
)

// AIModel is the normalized record for a model from any provider.
type AIModel struct {
	ID            string `json:"id"`
	Created       int64  `json:"created"`
	OwnedBy       string `json:"owned_by"`
	Type          string `json:"type"`
	ContextLength *int   `json:"context_length"`
	TrainingData  string `json:"training_data"`
	Status        string `json:"status"`
	DisplayName   string `json:"display_name,omitempty"`
}

// IntPtr returns a pointer to v, for literal context lengths.
func IntPtr(v int) *int {
	return &v
}
