package catalog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillscribe/portal/internal/model"
)

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestParseGeneration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		id     string
		want   generation
		wantOK bool
	}{
		{"claude-3-5-sonnet-20241022", generation{3, 5}, true},
		{"claude-3-7-sonnet-latest", generation{3, 7}, true},
		{"claude-3-haiku-20240307", generation{3, 0}, true},
		{"claude-sonnet-4-20250514", generation{4, 0}, true},
		{"claude-opus-4-1-20250805", generation{4, 1}, true},
		{"claude-2.1", generation{}, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.id, func(t *testing.T) {
			t.Parallel()
			got, ok := parseGeneration(tt.id)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromAnthropic_KeepsLatestGenerationPerFamily(t *testing.T) {
	t.Parallel()

	in := []AnthropicModel{
		{ID: "claude-3-opus-20240229", DisplayName: "Claude 3 Opus", CreatedAt: date("2024-02-29")},
		{ID: "claude-opus-4-20250514", DisplayName: "Claude Opus 4", CreatedAt: date("2025-05-14")},
		{ID: "claude-opus-4-1-20250805", DisplayName: "Claude Opus 4.1", CreatedAt: date("2025-08-05")},
		{ID: "claude-3-5-sonnet-20240620", DisplayName: "Claude 3.5 Sonnet", CreatedAt: date("2024-06-20")},
		{ID: "claude-3-5-sonnet-20241022", DisplayName: "Claude 3.5 Sonnet (New)", CreatedAt: date("2024-10-22")},
		{ID: "claude-3-haiku-20240307", DisplayName: "Claude 3 Haiku", CreatedAt: date("2024-03-07")},
		{ID: "claude-3-5-haiku-20241022", DisplayName: "Claude 3.5 Haiku", CreatedAt: date("2024-10-22")},
	}

	got := FromAnthropic(in)
	ids := make([]string, 0, len(got))
	for _, m := range got {
		ids = append(ids, m.ID)
	}

	assert.Equal(t, []string{
		"claude-opus-4-1-20250805",
		"claude-3-5-haiku-20241022",
		"claude-3-5-sonnet-20241022",
	}, ids)

	opus := got[0]
	assert.Equal(t, "anthropic", opus.OwnedBy)
	assert.Equal(t, model.TypeChatCompletion, opus.Type)
	assert.Equal(t, model.StatusActive, opus.Status)
	assert.Equal(t, "Claude Opus 4.1", opus.DisplayName)
	assert.Equal(t, "Up to Mar 2025", opus.TrainingData)
	assert.Equal(t, date("2025-08-05").Unix(), opus.Created)
	require.NotNil(t, opus.ContextLength)
	assert.Equal(t, 200000, *opus.ContextLength)
}

func TestFromAnthropic_FamilyFromDisplayName(t *testing.T) {
	t.Parallel()

	got := FromAnthropic([]AnthropicModel{
		{ID: "claude-3-20240101", DisplayName: "Claude 3 Sonnet", CreatedAt: date("2024-01-01")},
		{ID: "claude-3-5-20240601", DisplayName: "Claude 3.5 Sonnet", CreatedAt: date("2024-06-01")},
	})
	require.Len(t, got, 1)
	assert.Equal(t, "claude-3-5-20240601", got[0].ID)
}

func TestFromAnthropic_KeepsUnknownFamilies(t *testing.T) {
	t.Parallel()

	got := FromAnthropic([]AnthropicModel{
		{ID: "claude-2.1", DisplayName: "Claude 2.1", CreatedAt: date("2023-11-21")},
	})
	require.Len(t, got, 1)
	assert.Equal(t, "Unknown", got[0].TrainingData)
}

func TestAnthropicFallback(t *testing.T) {
	t.Parallel()

	got := AnthropicFallback()
	require.Len(t, got, 3)
	for _, m := range got {
		assert.Equal(t, "anthropic", m.OwnedBy)
		assert.Equal(t, model.StatusActive, m.Status)
	}

	// Fresh slices, so callers may mutate.
	got[0].ID = "changed"
	assert.Equal(t, "claude-3-5-sonnet-20241022", AnthropicFallback()[0].ID)
}
