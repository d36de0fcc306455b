package config

import (
	"fmt"
	"math"
	"strings"

	"github.com/spf13/viper"
)

// Site describes the roof to lay out and the module dimensions used when a
// populate request does not carry its own.
type Site struct {
	Roof     RoofCfg   `mapstructure:"roof"`
	Modules  ModuleCfg `mapstructure:"modules"`
	Strategy string    `mapstructure:"strategy"`
}

type RoofCfg struct {
	Lat      float64 `mapstructure:"lat"`
	Lng      float64 `mapstructure:"lng"`
	Width    float64 `mapstructure:"width"`
	Length   float64 `mapstructure:"length"`
	Rotation float64 `mapstructure:"rotation"`
	Color    string  `mapstructure:"color"`
}

type ModuleCfg struct {
	Width   float64 `mapstructure:"width"`
	Length  float64 `mapstructure:"length"`
	Spacing float64 `mapstructure:"spacing"`
}

// LoadSite reads the optional site file at path (any format viper knows) with
// SITE_* environment overrides, e.g. SITE_ROOF_ROTATION. An empty path yields
// the built-in demo roof.
func LoadSite(path string) (Site, error) {
	v := viper.New()

	v.SetDefault("roof.lat", 38.41793702224591)
	v.SetDefault("roof.lng", -122.71176248788834)
	v.SetDefault("roof.width", 40.46)
	v.SetDefault("roof.length", 28.35)
	v.SetDefault("roof.rotation", 20.0)
	v.SetDefault("roof.color", "#FF0000")
	v.SetDefault("modules.width", 0.99)
	v.SetDefault("modules.length", 1.65)
	v.SetDefault("modules.spacing", 0.02)
	v.SetDefault("strategy", "none")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Site{}, fmt.Errorf("read site file %q: %w", path, err)
		}
	}

	v.SetEnvPrefix("SITE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var s Site
	if err := v.Unmarshal(&s); err != nil {
		return Site{}, fmt.Errorf("unmarshal site: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Site{}, err
	}
	return s, nil
}

// Validate checks the site definition is usable geometry.
func (s Site) Validate() error {
	var errs []string

	if !finite(s.Roof.Lat) || s.Roof.Lat < -90 || s.Roof.Lat > 90 {
		errs = append(errs, fmt.Sprintf("roof.lat must be in [-90,90], got %v", s.Roof.Lat))
	}
	if !finite(s.Roof.Lng) || s.Roof.Lng < -180 || s.Roof.Lng > 180 {
		errs = append(errs, fmt.Sprintf("roof.lng must be in [-180,180], got %v", s.Roof.Lng))
	}
	if !positive(s.Roof.Width) {
		errs = append(errs, fmt.Sprintf("roof.width must be positive, got %v", s.Roof.Width))
	}
	if !positive(s.Roof.Length) {
		errs = append(errs, fmt.Sprintf("roof.length must be positive, got %v", s.Roof.Length))
	}
	if !finite(s.Roof.Rotation) {
		errs = append(errs, "roof.rotation must be finite")
	}
	if !positive(s.Modules.Width) {
		errs = append(errs, fmt.Sprintf("modules.width must be positive, got %v", s.Modules.Width))
	}
	if !positive(s.Modules.Length) {
		errs = append(errs, fmt.Sprintf("modules.length must be positive, got %v", s.Modules.Length))
	}
	if !finite(s.Modules.Spacing) || s.Modules.Spacing < 0 {
		errs = append(errs, fmt.Sprintf("modules.spacing must be >= 0, got %v", s.Modules.Spacing))
	}

	if len(errs) > 0 {
		return fmt.Errorf("site validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }

func positive(f float64) bool { return finite(f) && f > 0 }
