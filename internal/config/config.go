// Package config holds every tunable of the dewarping pipeline.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	MethodKim  = "kim2014"
	MethodMeng = "meng2014"

	BinarizeSauvola = "sauvola"
	BinarizeOtsu    = "otsu"
	BinarizeMean    = "mean"
)

type Config struct {
	FocalLength float64 `yaml:"focal_length"`
	Method      string  `yaml:"method"`
	Binarize    string  `yaml:"binarize"`

	Fit       Fit       `yaml:"fit"`
	Vanishing Vanishing `yaml:"vanishing"`
	Directrix Directrix `yaml:"directrix"`
	Surface   Surface   `yaml:"surface"`
	Solver    Solver    `yaml:"solver"`
	Mesh      Mesh      `yaml:"mesh"`
	Output    Output    `yaml:"output"`

	Deskew      bool    `yaml:"deskew"`
	MaxRotation float64 `yaml:"max_rotation"`
	Fine        bool    `yaml:"fine"`
}

// Fit tunes baseline fitting. Thresholds are multiples of the dominant
// letter height.
type Fit struct {
	MinLetters      int     `yaml:"min_letters"`
	Degree          int     `yaml:"degree"`
	Threshold       float64 `yaml:"threshold"`
	MergeThreshold  float64 `yaml:"merge_threshold"`
	RefitThreshold  float64 `yaml:"refit_threshold"`
	MinSamples      int     `yaml:"min_samples"`
	SideMinSamples  int     `yaml:"side_min_samples"`
	SideThreshold   float64 `yaml:"side_threshold"`
	Trials          int     `yaml:"trials"`
	Seed            int64   `yaml:"seed"`
	StrokeDeviation float64 `yaml:"stroke_deviation"`
}

type Vanishing struct {
	Iterations int     `yaml:"iterations"`
	Longitudes int     `yaml:"longitudes"`
	Tolerance  float64 `yaml:"tolerance"`
}

type Directrix struct {
	MU             float64 `yaml:"mu"`
	Samples        int     `yaml:"samples"`
	AspectRatio    float64 `yaml:"aspect_ratio"`
	EstimateAspect bool    `yaml:"estimate_aspect"`
}

type Surface struct {
	Degree   int     `yaml:"degree"`
	Omega    float64 `yaml:"omega"`
	Lambda2  float64 `yaml:"lambda2"`
	UseAlign bool    `yaml:"use_align"`
}

type Solver struct {
	MaxIterations int     `yaml:"max_iterations"`
	FTol          float64 `yaml:"ftol"`
	MinCost       float64 `yaml:"min_cost"`
	Damping       float64 `yaml:"damping"`
	Up            float64 `yaml:"up"`
	Down          float64 `yaml:"down"`
	Ceiling       float64 `yaml:"ceiling"`
}

type Mesh struct {
	WidthSamples    int     `yaml:"width_samples"`
	ZTolerance      float64 `yaml:"z_tolerance"`
	Expand          float64 `yaml:"expand"`
	WidthPercentile float64 `yaml:"width_percentile"`
	WidthFactor     float64 `yaml:"width_factor"`
}

type Output struct {
	LowPercentile  float64 `yaml:"low_percentile"`
	HighPercentile float64 `yaml:"high_percentile"`
	Interpolation  string  `yaml:"interpolation"`
}

func Default() *Config {
	return &Config{
		FocalLength: 3270.5,
		Method:      MethodKim,
		Binarize:    BinarizeSauvola,
		Fit: Fit{
			MinLetters:      5,
			Degree:          5,
			Threshold:       1.0 / 10,
			MergeThreshold:  1.0 / 8,
			RefitThreshold:  1.0 / 15,
			MinSamples:      10,
			SideMinSamples:  3,
			SideThreshold:   1.0 / 10,
			Trials:          100,
			Seed:            1,
			StrokeDeviation: 2,
		},
		Vanishing: Vanishing{Iterations: 5, Longitudes: 15},
		Directrix: Directrix{MU: 30, Samples: 200, AspectRatio: 1.7},
		Surface:   Surface{Degree: 5, Omega: 1e-3, Lambda2: 0.1},
		Solver: Solver{
			MaxIterations: 500,
			FTol:          1e-6,
			MinCost:       1e-6,
			Damping:       100,
			Up:            1.2,
			Down:          4.0,
			Ceiling:       1000,
		},
		Mesh: Mesh{
			WidthSamples:    400,
			ZTolerance:      0.02,
			Expand:          0.01,
			WidthPercentile: 90,
			WidthFactor:     1.2,
		},
		Output:      Output{LowPercentile: 2, HighPercentile: 95, Interpolation: "lanczos"},
		MaxRotation: math.Pi / 4,
	}
}

// Load reads a YAML file over the defaults. Environment variables in the
// file are expanded and unknown keys are rejected.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	data = []byte(os.ExpandEnv(string(data)))

	c := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(c); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return c, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.FocalLength > 0, "focal_length must be positive, got %v", c.FocalLength)
	check(c.Method == MethodKim || c.Method == MethodMeng, "unknown method %q", c.Method)
	check(c.Binarize == BinarizeSauvola || c.Binarize == BinarizeOtsu || c.Binarize == BinarizeMean,
		"unknown binarize algorithm %q", c.Binarize)

	check(c.Fit.MinLetters >= 2, "fit.min_letters must be at least 2, got %d", c.Fit.MinLetters)
	check(c.Fit.Degree >= 1, "fit.degree must be at least 1, got %d", c.Fit.Degree)
	check(c.Fit.Threshold > 0 && c.Fit.MergeThreshold > 0 && c.Fit.RefitThreshold > 0 && c.Fit.SideThreshold > 0,
		"fit thresholds must be positive")
	check(c.Fit.MinSamples >= 1 && c.Fit.SideMinSamples >= 2, "fit sample counts too small")
	check(c.Fit.Trials >= 1, "fit.trials must be positive, got %d", c.Fit.Trials)

	check(c.Vanishing.Iterations >= 0, "vanishing.iterations must not be negative")
	check(c.Vanishing.Longitudes >= 2, "vanishing.longitudes must be at least 2, got %d", c.Vanishing.Longitudes)

	check(c.Directrix.MU > 0, "directrix.mu must be positive, got %v", c.Directrix.MU)
	check(c.Directrix.Samples >= 2, "directrix.samples must be at least 2, got %d", c.Directrix.Samples)
	check(c.Directrix.AspectRatio > 0, "directrix.aspect_ratio must be positive, got %v", c.Directrix.AspectRatio)

	check(c.Surface.Degree >= 1, "surface.degree must be at least 1, got %d", c.Surface.Degree)
	check(c.Surface.Omega > 0, "surface.omega must be positive, got %v", c.Surface.Omega)
	check(c.Surface.Lambda2 >= 0, "surface.lambda2 must not be negative")

	check(c.Solver.MaxIterations > 0, "solver.max_iterations must be positive")
	check(c.Solver.Up > 1 && c.Solver.Down > 1, "solver.up and solver.down must exceed 1")
	check(c.Solver.Damping > 0 && c.Solver.Ceiling > c.Solver.Damping, "solver.ceiling must exceed solver.damping > 0")

	check(c.Mesh.WidthSamples >= 2, "mesh.width_samples must be at least 2")
	check(c.Mesh.WidthPercentile > 0 && c.Mesh.WidthPercentile <= 100, "mesh.width_percentile must be in (0, 100]")
	check(c.Mesh.WidthFactor > 0, "mesh.width_factor must be positive")

	check(0 <= c.Output.LowPercentile && c.Output.LowPercentile < c.Output.HighPercentile && c.Output.HighPercentile <= 100,
		"output percentiles must satisfy 0 <= low < high <= 100")
	switch c.Output.Interpolation {
	case "linear", "cubic", "lanczos":
	default:
		check(false, "unknown output.interpolation %q", c.Output.Interpolation)
	}
	check(c.MaxRotation > 0 && c.MaxRotation <= math.Pi/2, "max_rotation must be in (0, pi/2]")

	return errors.Join(errs...)
}
