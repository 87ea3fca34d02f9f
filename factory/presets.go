package factory

import (
	_ "embed"
	"fmt"

	"github.com/warp/levy-engine/quota"
)

// =============================================================================
// PRESETS - Built-in levy years
// =============================================================================

//go:embed presets.yaml
var presetsYAML []byte

// PresetsYAML returns the raw built-in YAML document.
func PresetsYAML() []byte {
	out := make([]byte, len(presetsYAML))
	copy(out, presetsYAML)
	return out
}

// Presets returns every built-in year, oldest first.
func Presets() ([]quota.YearConfig, error) {
	configs, err := NewYearConfigFactory().ParseYAML(presetsYAML)
	if err != nil {
		return nil, fmt.Errorf("built-in presets: %w", err)
	}
	return configs, nil
}

// Preset returns the built-in config for year.
func Preset(year int) (quota.YearConfig, error) {
	configs, err := Presets()
	if err != nil {
		return quota.YearConfig{}, err
	}
	for _, c := range configs {
		if c.Year == year {
			return c, nil
		}
	}
	return quota.YearConfig{}, &quota.ConfigNotFoundError{Year: year}
}

// MustPreset is Preset for tests and scenario fixtures. It panics on error.
func MustPreset(year int) quota.YearConfig {
	c, err := Preset(year)
	if err != nil {
		panic(err)
	}
	return c
}

// PresetResolver is a quota.Resolver over the built-in years.
func PresetResolver() (*quota.StaticResolver, error) {
	configs, err := Presets()
	if err != nil {
		return nil, err
	}
	return quota.NewStaticResolver(configs...)
}
