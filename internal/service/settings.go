package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sort"

	"github.com/quillscribe/portal/internal/model"
	"github.com/quillscribe/portal/internal/repository"
)

// SettingsStore persists JSON settings rows.
type SettingsStore interface {
	GetSettingInto(ctx context.Context, key string, dst any) error
	PutSetting(ctx context.Context, key string, value any, updatedBy string) error
	DeleteSetting(ctx context.Context, key string) error
}

// ModelChecker reports whether a provider's current snapshot contains a model.
type ModelChecker interface {
	HasModel(ctx context.Context, p model.Provider, id string) (bool, error)
}

// Bound is the allowed range of one theme setting.
type Bound struct {
	Min float64
	Max float64
}

// ThemeBounds are the slider ranges of the admin theme editor.
var ThemeBounds = map[string]Bound{
	"spacing.unit":           {4, 16},
	"spacing.section":        {16, 128},
	"spacing.card":           {8, 64},
	"header.height":          {48, 120},
	"header.logoSize":        {24, 80},
	"header.fontSize":        {12, 32},
	"content.maxWidth":       {960, 1920},
	"content.padding":        {8, 64},
	"content.fontSize":       {12, 24},
	"content.lineHeight":     {1.0, 2.2},
	"navigation.itemSpacing": {0, 32},
	"navigation.fontSize":    {12, 24},
	"navigation.iconSize":    {16, 40},
}

// DefaultTheme returns the theme used when nothing has been saved.
func DefaultTheme() model.ThemeSettings {
	return model.ThemeSettings{
		"spacing": {
			"unit":    8,
			"section": 64,
			"card":    24,
		},
		"header": {
			"height":   64,
			"logoSize": 40,
			"fontSize": 18,
		},
		"content": {
			"maxWidth":   1200,
			"padding":    24,
			"fontSize":   16,
			"lineHeight": 1.6,
		},
		"navigation": {
			"itemSpacing": 8,
			"fontSize":    14,
			"iconSize":    24,
		},
	}
}

// SettingsService manages the theme and default model selection.
type SettingsService struct {
	store  SettingsStore
	models ModelChecker
	logger *slog.Logger
}

// NewSettingsService creates a SettingsService. models may be nil, in which
// case default selections are not checked against snapshots.
func NewSettingsService(store SettingsStore, models ModelChecker, logger *slog.Logger) *SettingsService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SettingsService{
		store:  store,
		models: models,
		logger: logger.With("component", "settings"),
	}
}

// Theme returns the saved theme merged over the defaults. Saved values for
// unknown paths are ignored.
func (s *SettingsService) Theme(ctx context.Context) (model.ThemeSettings, error) {
	theme := DefaultTheme()

	var saved model.ThemeSettings
	err := s.store.GetSettingInto(ctx, repository.SettingTheme, &saved)
	if errors.Is(err, repository.ErrSettingNotFound) {
		return theme, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load theme: %w", err)
	}

	for section, values := range saved {
		for key, v := range values {
			path := section + "." + key
			if _, ok := ThemeBounds[path]; ok {
				theme.Set(path, v)
			}
		}
	}
	return theme, nil
}

// UpdateTheme applies dotted-path updates and stores the result. No update
// is stored if any path or value is invalid.
func (s *SettingsService) UpdateTheme(ctx context.Context, updates map[string]float64, updatedBy string) (model.ThemeSettings, error) {
	if len(updates) == 0 {
		return nil, invalid("updates", "must not be empty")
	}
	if err := ValidateThemeUpdates(updates); err != nil {
		return nil, err
	}

	theme, err := s.Theme(ctx)
	if err != nil {
		return nil, err
	}
	for path, v := range updates {
		theme.Set(path, v)
	}

	if err := s.store.PutSetting(ctx, repository.SettingTheme, theme, updatedBy); err != nil {
		return nil, fmt.Errorf("failed to save theme: %w", err)
	}
	s.logger.Info("theme updated", slog.Int("paths", len(updates)), slog.String("updated_by", updatedBy))
	return theme, nil
}

// ResetTheme removes the saved theme and returns the defaults.
func (s *SettingsService) ResetTheme(ctx context.Context, updatedBy string) (model.ThemeSettings, error) {
	err := s.store.DeleteSetting(ctx, repository.SettingTheme)
	if err != nil && !errors.Is(err, repository.ErrSettingNotFound) {
		return nil, fmt.Errorf("failed to reset theme: %w", err)
	}
	s.logger.Info("theme reset", slog.String("updated_by", updatedBy))
	return DefaultTheme(), nil
}

// ValidateThemeUpdates checks every path against ThemeBounds. Paths are
// checked in sorted order so the reported error is stable.
func ValidateThemeUpdates(updates map[string]float64) error {
	paths := make([]string, 0, len(updates))
	for path := range updates {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		bound, ok := ThemeBounds[path]
		if !ok {
			return fmt.Errorf("%w: %q", ErrInvalidSettingPath, path)
		}
		v := updates[path]
		if math.IsNaN(v) || math.IsInf(v, 0) || v < bound.Min || v > bound.Max {
			return fmt.Errorf("%w: %s must be between %g and %g", ErrSettingOutOfRange, path, bound.Min, bound.Max)
		}
	}
	return nil
}

// DefaultModels returns the saved default model selection, or an empty one.
func (s *SettingsService) DefaultModels(ctx context.Context) (model.DefaultModelSelection, error) {
	selection := model.DefaultModelSelection{}
	err := s.store.GetSettingInto(ctx, repository.SettingDefaultModels, &selection)
	if errors.Is(err, repository.ErrSettingNotFound) {
		return model.DefaultModelSelection{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load default models: %w", err)
	}
	return selection, nil
}

// SetDefaultModels validates and replaces the whole default model selection.
func (s *SettingsService) SetDefaultModels(ctx context.Context, selection model.DefaultModelSelection, updatedBy string) (model.DefaultModelSelection, error) {
	if err := ValidateDefaultModels(selection); err != nil {
		return nil, err
	}

	if s.models != nil {
		for _, label := range sortedLabels(selection) {
			ref := selection[label]
			p, _ := model.ParseProvider(ref.Provider)
			ok, err := s.models.HasModel(ctx, p, ref.ModelID)
			if err != nil {
				return nil, fmt.Errorf("failed to check %s model: %w", p, err)
			}
			if !ok {
				return nil, fmt.Errorf("%w: %s has no model %q", ErrUnknownModel, p, ref.ModelID)
			}
		}
	}

	if err := s.store.PutSetting(ctx, repository.SettingDefaultModels, selection, updatedBy); err != nil {
		return nil, fmt.Errorf("failed to save default models: %w", err)
	}
	s.logger.Info("default models updated", slog.Int("types", len(selection)), slog.String("updated_by", updatedBy))
	return selection, nil
}

// ValidateDefaultModels checks labels, providers and model ids without
// consulting snapshots.
func ValidateDefaultModels(selection model.DefaultModelSelection) error {
	for _, label := range sortedLabels(selection) {
		if !slices.Contains(model.KnownTypes, label) {
			return fmt.Errorf("%w: unknown model type %q", ErrInvalidDefaults, label)
		}
		ref := selection[label]
		p, ok := model.ParseProvider(ref.Provider)
		if !ok {
			return fmt.Errorf("%w: %s has invalid provider %q", ErrInvalidDefaults, label, ref.Provider)
		}
		if ref.ModelID == "" {
			return fmt.Errorf("%w: %s has no modelId for %s", ErrInvalidDefaults, label, p)
		}
		selection[label] = model.ModelRef{Provider: string(p), ModelID: ref.ModelID}
	}
	return nil
}

func sortedLabels(selection model.DefaultModelSelection) []string {
	labels := make([]string, 0, len(selection))
	for label := range selection {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}
