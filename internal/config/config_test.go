package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dewarp.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())
	assert.Equal(t, MethodKim, c.Method)
	assert.Equal(t, 30.0, c.Directrix.MU)
	assert.Equal(t, 1.7, c.Directrix.AspectRatio)
	assert.Equal(t, 5, c.Vanishing.Iterations)
	// Pixel coordinates are scaled down by 1000 inside the curvature polynomial.
	assert.Equal(t, 1e-3, c.Surface.Omega)
}

func TestLoadOverlaysDefaults(t *testing.T) {
	t.Setenv("DEWARP_FOCAL", "2800")
	path := writeFile(t, `
focal_length: ${DEWARP_FOCAL}
method: meng2014
directrix:
  mu: 12
surface:
  use_align: true
`)

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2800.0, c.FocalLength)
	assert.Equal(t, MethodMeng, c.Method)
	assert.Equal(t, 12.0, c.Directrix.MU)
	assert.Equal(t, 200, c.Directrix.Samples)
	assert.True(t, c.Surface.UseAlign)
	assert.Equal(t, 0.1, c.Surface.Lambda2)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	_, err := Load(writeFile(t, "focal: 100\n"))
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"method", func(c *Config) { c.Method = "flatbed" }, `unknown method "flatbed"`},
		{"focal", func(c *Config) { c.FocalLength = 0 }, "focal_length must be positive"},
		{"percentiles", func(c *Config) { c.Output.LowPercentile = 99 }, "output percentiles"},
		{"damping", func(c *Config) { c.Solver.Ceiling = 10 }, "solver.ceiling"},
		{"interpolation", func(c *Config) { c.Output.Interpolation = "nearest" }, "output.interpolation"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			err := c.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateJoinsErrors(t *testing.T) {
	c := Default()
	c.Method = "x"
	c.Binarize = "y"
	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown method "x"`)
	assert.Contains(t, err.Error(), `unknown binarize algorithm "y"`)
}
