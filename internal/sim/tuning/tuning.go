package tuning

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	// GameSpeed divides every build/research duration.
	GameSpeed float64 `yaml:"game_speed"`

	// ClampNegativeDeuterium floors the deuterium temperature factor at 0
	// (planets hotter than 340 degrees would otherwise drain deuterium).
	ClampNegativeDeuterium bool `yaml:"clamp_negative_deuterium"`

	Start      StartPlanet `yaml:"start"`
	AdminGrant Amounts     `yaml:"admin_grant"`
	Sweep      Sweep       `yaml:"sweep"`
	RateLimits RateLimits  `yaml:"rate_limits"`
}

type Amounts struct {
	Metal     float64 `yaml:"metal"`
	Crystal   float64 `yaml:"crystal"`
	Deuterium float64 `yaml:"deuterium"`
}

type StartPlanet struct {
	Name           string  `yaml:"name"`
	Resources      Amounts `yaml:"resources"`
	FieldsMax      int     `yaml:"fields_max"`
	TemperatureMin int     `yaml:"temperature_min"`
	TemperatureMax int     `yaml:"temperature_max"`
	CoordMax       int     `yaml:"coord_max"`
}

type Sweep struct {
	// Secret, when set, is required as a bearer token on the sweep endpoint.
	Secret string `yaml:"secret"`
}

type RateLimits struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

func Defaults() Tuning {
	return Tuning{
		GameSpeed:              1,
		ClampNegativeDeuterium: true,
		Start: StartPlanet{
			Name:           "Homeworld",
			Resources:      Amounts{Metal: 500, Crystal: 500, Deuterium: 0},
			FieldsMax:      163,
			TemperatureMin: 10,
			TemperatureMax: 50,
			CoordMax:       499,
		},
		AdminGrant: Amounts{Metal: 100000, Crystal: 100000, Deuterium: 50000},
		RateLimits: RateLimits{RequestsPerSecond: 10, Burst: 20},
	}
}

// Load reads a tuning file on top of Defaults.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.Normalize()
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t *Tuning) Normalize() {
	t.Start.Name = strings.TrimSpace(t.Start.Name)
	if t.Start.Name == "" {
		t.Start.Name = "Homeworld"
	}
	if t.Start.CoordMax <= 0 {
		t.Start.CoordMax = 499
	}
	if t.RateLimits.Burst <= 0 {
		t.RateLimits.Burst = 1
	}
	t.Sweep.Secret = strings.TrimSpace(t.Sweep.Secret)
}

func (t Tuning) Validate() error {
	if t.GameSpeed <= 0 {
		return fmt.Errorf("game_speed must be > 0 (got %v)", t.GameSpeed)
	}
	if t.Start.FieldsMax <= 0 {
		return fmt.Errorf("start.fields_max must be > 0")
	}
	if t.Start.TemperatureMin > t.Start.TemperatureMax {
		return fmt.Errorf("start.temperature_min > temperature_max")
	}
	if t.Start.Resources.Metal < 0 || t.Start.Resources.Crystal < 0 || t.Start.Resources.Deuterium < 0 {
		return fmt.Errorf("start.resources must be >= 0")
	}
	if t.RateLimits.RequestsPerSecond < 0 {
		return fmt.Errorf("rate_limits.requests_per_second must be >= 0")
	}
	return nil
}
