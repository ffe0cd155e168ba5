package catalog

import (
	"sort"
	"strings"
	"time"

	"github.com/quillscribe/portal/internal/model"
)

// Filter selects models for the models table. Zero fields match everything,
// and "all" is accepted for Type and Status as the UI sends it.
type Filter struct {
	Search string
	Type   string
	Status string
	Year   int
}

// IsZero reports whether the filter matches every model.
func (f Filter) IsZero() bool {
	return f.Search == "" && isAll(f.Type) && isAll(f.Status) && f.Year == 0
}

func isAll(v string) bool {
	return v == "" || strings.EqualFold(v, "all")
}

// Match reports whether m passes the filter. Search is a case-insensitive
// substring of the id. Year is the UTC year of Created.
func (f Filter) Match(m model.AIModel) bool {
	if f.Search != "" && !strings.Contains(strings.ToLower(m.ID), strings.ToLower(f.Search)) {
		return false
	}
	if !isAll(f.Type) && m.Type != f.Type {
		return false
	}
	if !isAll(f.Status) && m.Status != f.Status {
		return false
	}
	if f.Year != 0 && time.Unix(m.Created, 0).UTC().Year() != f.Year {
		return false
	}
	return true
}

// FilterModels returns the models that match f, in input order.
func FilterModels(models []model.AIModel, f Filter) []model.AIModel {
	out := make([]model.AIModel, 0, len(models))
	for _, m := range models {
		if f.Match(m) {
			out = append(out, m)
		}
	}
	return out
}

// SortModels returns a copy ordered by type, then by creation time with
// the newest first. Ties keep their input order.
func SortModels(models []model.AIModel) []model.AIModel {
	out := make([]model.AIModel, len(models))
	copy(out, models)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].Created > out[j].Created
	})
	return out
}

// FindModel returns the model with the given id.
func FindModel(models []model.AIModel, id string) (model.AIModel, bool) {
	for _, m := range models {
		if m.ID == id {
			return m, true
		}
	}
	return model.AIModel{}, false
}

// Years returns the distinct creation years present, newest first.
// Models without a creation time are skipped.
func Years(models []model.AIModel) []int {
	seen := make(map[int]bool)
	years := []int{}
	for _, m := range models {
		if m.Created == 0 {
			continue
		}
		y := time.Unix(m.Created, 0).UTC().Year()
		if !seen[y] {
			seen[y] = true
			years = append(years, y)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(years)))
	return years
}
