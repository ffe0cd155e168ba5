// Package catalog normalizes provider model listings into model.AIModel
// records and implements the filtering and sorting used by the models table.
// Everything here is pure and safe for concurrent use.
package catalog

import (
	"strings"

	"github.com/quillscribe/portal/internal/model"
)

// RulesVersion identifies the current OpenAI classification table.
// Bump it whenever OpenAIRules changes so stored snapshots can be traced.
const RulesVersion = "2025-06"

// Rule classifies OpenAI model ids. A rule matches when the lowercased id
// has one of Prefixes as a prefix or contains one of Contains.
type Rule struct {
	Name          string
	Prefixes      []string
	Contains      []string
	Type          string
	ContextLength int // zero means the model has no context window
	TrainingData  string
}

func (r Rule) matches(id string) bool {
	for _, p := range r.Prefixes {
		if strings.HasPrefix(id, p) {
			return true
		}
	}
	for _, c := range r.Contains {
		if strings.Contains(id, c) {
			return true
		}
	}
	return false
}

// OpenAIRules is evaluated in order and the first match wins.
// Modality rules come before the chat families because ids such as
// gpt-4o-mini-tts or gpt-4o-transcribe carry both markers.
var OpenAIRules = []Rule{
	{Name: "embedding", Contains: []string{"embedding"}, Type: model.TypeEmbedding, ContextLength: 8191, TrainingData: "Up to Sep 2021"},
	{Name: "moderation", Contains: []string{"moderation"}, Type: model.TypeModeration, ContextLength: 32768, TrainingData: "N/A"},
	{Name: "image", Contains: []string{"dall-e", "gpt-image"}, Type: model.TypeImageGeneration, TrainingData: "N/A"},
	{Name: "speech-to-text", Contains: []string{"whisper", "transcribe"}, Type: model.TypeSpeechToText, TrainingData: "N/A"},
	{Name: "text-to-speech", Contains: []string{"tts"}, Type: model.TypeTextToSpeech, TrainingData: "N/A"},
	{Name: "gpt-4.1", Contains: []string{"gpt-4.1"}, Type: model.TypeChatCompletion, ContextLength: 1047576, TrainingData: "Up to Jun 2024"},
	{Name: "gpt-4.5", Contains: []string{"gpt-4.5"}, Type: model.TypeChatCompletion, ContextLength: 128000, TrainingData: "Up to Oct 2023"},
	{Name: "gpt-4o", Contains: []string{"gpt-4o", "chatgpt-4o"}, Type: model.TypeChatCompletion, ContextLength: 128000, TrainingData: "Up to Oct 2023"},
	{Name: "gpt-4-turbo", Contains: []string{"gpt-4-turbo"}, Type: model.TypeChatCompletion, ContextLength: 128000, TrainingData: "Up to Dec 2023"},
	{Name: "gpt-4-32k", Contains: []string{"gpt-4-32k"}, Type: model.TypeChatCompletion, ContextLength: 32768, TrainingData: "Up to Sep 2021"},
	{Name: "gpt-4-preview", Contains: []string{"gpt-4-1106", "gpt-4-0125", "gpt-4-vision"}, Type: model.TypeChatCompletion, ContextLength: 128000, TrainingData: "Up to Apr 2023"},
	{Name: "gpt-4", Contains: []string{"gpt-4"}, Type: model.TypeChatCompletion, ContextLength: 8192, TrainingData: "Up to Sep 2021"},
	{Name: "gpt-3.5-instruct", Contains: []string{"gpt-3.5-turbo-instruct"}, Type: model.TypeChatCompletion, ContextLength: 4096, TrainingData: "Up to Sep 2021"},
	{Name: "gpt-3.5", Contains: []string{"gpt-3.5"}, Type: model.TypeChatCompletion, ContextLength: 16385, TrainingData: "Up to Sep 2021"},
	{Name: "o1-mini", Prefixes: []string{"o1-mini"}, Type: model.TypeChatCompletion, ContextLength: 128000, TrainingData: "Up to Oct 2023"},
	{Name: "reasoning", Prefixes: []string{"o1", "o3", "o4"}, Type: model.TypeChatCompletion, ContextLength: 200000, TrainingData: "Up to Oct 2023"},
	{Name: "legacy-completion", Contains: []string{"davinci", "babbage", "curie"}, Prefixes: []string{"ada"}, Type: model.TypeChatCompletion, ContextLength: 16384, TrainingData: "Up to Sep 2021"},
}

// deprecatedSuffixes marks dated snapshots that OpenAI has retired.
var deprecatedSuffixes = []string{"-0301", "-0314", "-0613"}

// deprecatedIDs are legacy base models kept listed but no longer served.
var deprecatedIDs = map[string]bool{
	"ada":     true,
	"babbage": true,
	"curie":   true,
	"davinci": true,
}

var deprecatedPrefixes = []string{"text-davinci", "text-curie", "text-babbage", "text-ada", "code-davinci"}

// Classification is the derived attribute tuple for one model id.
type Classification struct {
	Rule          string
	Type          string
	ContextLength *int
	TrainingData  string
	Status        string
}

// ClassifyOpenAI maps a model id to its type, context length, training data
// and status. Ids that match no rule are classified as Unknown.
func ClassifyOpenAI(id string) Classification {
	lower := strings.ToLower(id)

	c := Classification{
		Rule:         "",
		Type:         model.TypeUnknown,
		TrainingData: "Unknown",
		Status:       model.StatusActive,
	}
	for _, rule := range OpenAIRules {
		if !rule.matches(lower) {
			continue
		}
		c.Rule = rule.Name
		c.Type = rule.Type
		c.TrainingData = rule.TrainingData
		if rule.ContextLength > 0 {
			c.ContextLength = model.IntPtr(rule.ContextLength)
		}
		break
	}

	if isDeprecatedOpenAI(lower) {
		c.Status = model.StatusDeprecated
	}
	return c
}

func isDeprecatedOpenAI(lower string) bool {
	if deprecatedIDs[lower] {
		return true
	}
	for _, p := range deprecatedPrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	for _, s := range deprecatedSuffixes {
		if strings.HasSuffix(lower, s) || strings.Contains(lower, s+"-") {
			return true
		}
	}
	return false
}

// OpenAIModel is the subset of an OpenAI list entry used for normalization.
type OpenAIModel struct {
	ID      string
	Created int64
	OwnedBy string
}

// FromOpenAI normalizes an OpenAI listing. Input order is preserved.
func FromOpenAI(in []OpenAIModel) []model.AIModel {
	out := make([]model.AIModel, 0, len(in))
	for _, m := range in {
		c := ClassifyOpenAI(m.ID)
		out = append(out, model.AIModel{
			ID:            m.ID,
			Created:       m.Created,
			OwnedBy:       m.OwnedBy,
			Type:          c.Type,
			ContextLength: c.ContextLength,
			TrainingData:  c.TrainingData,
			Status:        c.Status,
		})
	}
	return out
}
