package catalog

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/quillscribe/portal/internal/model"
)

const anthropicContextLength = 200000

// AnthropicModel is the subset of an Anthropic list entry used for normalization.
type AnthropicModel struct {
	ID          string
	DisplayName string
	CreatedAt   time.Time
}

// generation is a parsed Claude version such as 3.5 or 4.
type generation struct {
	major, minor int
}

func (g generation) less(o generation) bool {
	if g.major != o.major {
		return g.major < o.major
	}
	return g.minor < o.minor
}

func (g generation) String() string {
	if g.minor == 0 {
		return strconv.Itoa(g.major)
	}
	return strconv.Itoa(g.major) + "." + strconv.Itoa(g.minor)
}

var anthropicFamilies = []string{"opus", "sonnet", "haiku"}

// anthropicTrainingData maps a generation to its published training cutoff.
var anthropicTrainingData = map[string]string{
	"3":   "Up to Aug 2023",
	"3.5": "Up to Apr 2024",
	"3.7": "Up to Oct 2024",
	"4":   "Up to Mar 2025",
	"4.1": "Up to Mar 2025",
	"4.5": "Up to Jul 2025",
}

// anthropicFamily returns opus, sonnet or haiku, or "" when neither the id
// nor the display name names a known family.
func anthropicFamily(id, displayName string) string {
	id = strings.ToLower(id)
	displayName = strings.ToLower(displayName)
	for _, f := range anthropicFamilies {
		if strings.Contains(id, f) || strings.Contains(displayName, f) {
			return f
		}
	}
	return ""
}

// parseGeneration reads the version numbers out of a Claude id. Both
// claude-3-5-sonnet-20241022 and claude-sonnet-4-5-20250929 are understood.
// Date stamps and the "latest" alias are ignored.
func parseGeneration(id string) (generation, bool) {
	var nums []int
	for _, part := range strings.Split(strings.ToLower(id), "-") {
		if len(part) == 0 || len(part) > 2 {
			if len(nums) > 0 {
				break
			}
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			if len(nums) > 0 {
				break
			}
			continue
		}
		nums = append(nums, n)
		if len(nums) == 2 {
			break
		}
	}
	switch len(nums) {
	case 0:
		return generation{}, false
	case 1:
		return generation{major: nums[0]}, true
	default:
		return generation{major: nums[0], minor: nums[1]}, true
	}
}

// FromAnthropic keeps the newest model of the latest generation in each
// family and normalizes it. Models of unknown family are kept as-is.
// The result is ordered by creation time, newest first.
func FromAnthropic(in []AnthropicModel) []model.AIModel {
	type candidate struct {
		m   AnthropicModel
		gen generation
	}
	best := make(map[string]candidate)
	var others []AnthropicModel

	for _, m := range in {
		family := anthropicFamily(m.ID, m.DisplayName)
		gen, ok := parseGeneration(m.ID)
		if family == "" || !ok {
			others = append(others, m)
			continue
		}
		cur, seen := best[family]
		if !seen || cur.gen.less(gen) || (cur.gen == gen && m.CreatedAt.After(cur.m.CreatedAt)) {
			best[family] = candidate{m: m, gen: gen}
		}
	}

	out := make([]model.AIModel, 0, len(best)+len(others))
	for _, c := range best {
		out = append(out, anthropicRecord(c.m, anthropicTrainingData[c.gen.String()]))
	}
	for _, m := range others {
		out = append(out, anthropicRecord(m, ""))
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Created != out[j].Created {
			return out[i].Created > out[j].Created
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func anthropicRecord(m AnthropicModel, trainingData string) model.AIModel {
	if trainingData == "" {
		trainingData = "Unknown"
	}
	return model.AIModel{
		ID:            m.ID,
		Created:       m.CreatedAt.Unix(),
		OwnedBy:       "anthropic",
		Type:          model.TypeChatCompletion,
		ContextLength: model.IntPtr(anthropicContextLength),
		TrainingData:  trainingData,
		Status:        model.StatusActive,
		DisplayName:   m.DisplayName,
	}
}

// AnthropicFallback is served when the Anthropic listing cannot be fetched.
func AnthropicFallback() []model.AIModel {
	return []model.AIModel{
		{
			ID:            "claude-3-5-sonnet-20241022",
			Created:       1729555200,
			OwnedBy:       "anthropic",
			Type:          model.TypeChatCompletion,
			ContextLength: model.IntPtr(anthropicContextLength),
			TrainingData:  "Up to Apr 2024",
			Status:        model.StatusActive,
			DisplayName:   "Claude 3.5 Sonnet",
		},
		{
			ID:            "claude-3-5-haiku-20241022",
			Created:       1729555200,
			OwnedBy:       "anthropic",
			Type:          model.TypeChatCompletion,
			ContextLength: model.IntPtr(anthropicContextLength),
			TrainingData:  "Up to Jul 2024",
			Status:        model.StatusActive,
			DisplayName:   "Claude 3.5 Haiku",
		},
		{
			ID:            "claude-3-opus-20240229",
			Created:       1709164800,
			OwnedBy:       "anthropic",
			Type:          model.TypeChatCompletion,
			ContextLength: model.IntPtr(anthropicContextLength),
			TrainingData:  "Up to Aug 2023",
			Status:        model.StatusActive,
			DisplayName:   "Claude 3 Opus",
		},
	}
}
