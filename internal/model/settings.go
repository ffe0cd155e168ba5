package model

import "strings"

// ThemeSettings is the nested theme object edited in the admin console.
// Sections are spacing, header, content and navigation.
type ThemeSettings map[string]map[string]float64

// Get returns the value at a dotted path like "header.height".
func (t ThemeSettings) Get(path string) (float64, bool) {
	section, key, ok := strings.Cut(path, ".")
	if !ok {
		return 0, false
	}
	values, ok := t[section]
	if !ok {
		return 0, false
	}
	v, ok := values[key]
	return v, ok
}

// Set writes the value at a dotted path, creating the section if needed.
func (t ThemeSettings) Set(path string, value float64) {
	section, key, ok := strings.Cut(path, ".")
	if !ok {
		return
	}
	if t[section] == nil {
		t[section] = make(map[string]float64)
	}
	t[section][key] = value
}

// Clone returns a deep copy.
func (t ThemeSettings) Clone() ThemeSettings {
	out := make(ThemeSettings, len(t))
	for section, values := range t {
		copied := make(map[string]float64, len(values))
		for k, v := range values {
			copied[k] = v
		}
		out[section] = copied
	}
	return out
}

// ModelRef points to a specific model of a provider.
type ModelRef struct {
	Provider string `json:"provider"`
	ModelID  string `json:"modelId"`
}

// DefaultModelSelection maps an output-type label to the model used for it.
type DefaultModelSelection map[string]ModelRef
