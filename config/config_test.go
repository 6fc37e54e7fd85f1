package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fumin/localham"
)

func TestDefaultValid(t *testing.T) {
	t.Parallel()
	cfg := Default()
	require.NoError(t, cfg.Validate())
	require.Equal(t, 1<<16, cfg.Lattice().Dim())
}

func TestLoad(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "run.yaml")
	data := `
model: Ising-G
num_sites: 12
periodic: false
num_eigen: 3
seed: 7
precision: single
lanczos:
  krylov_dim: 32
logging:
  level: debug
sweep:
  num_sites: [4, 8]
  periodic: [true, false]
  models: [Heisenberg-G]
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, localham.Ising, cfg.Model)
	require.Equal(t, 12, cfg.NumSites)
	require.False(t, cfg.Periodic)
	require.Equal(t, 3, cfg.NumEigen)
	require.Equal(t, uint64(7), cfg.Seed)
	require.Equal(t, 32, cfg.Lanczos.KrylovDim)
	require.Equal(t, "single", cfg.Precision)
	// Unset keys keep their defaults.
	require.Equal(t, DefaultTol, cfg.Lanczos.Tol)
	require.Equal(t, DefaultLocalDim, cfg.LocalDim)
	require.Equal(t, "debug", cfg.Logging.Level)
	require.Equal(t, []int{4, 8}, cfg.Sweep.NumSites)
	require.Equal(t, []bool{true, false}, cfg.Sweep.Periodic)
	require.Equal(t, []string{localham.Heisenberg}, cfg.Sweep.Models)

	logger, err := cfg.Logging.NewLogger()
	require.NoError(t, err)
	require.NotNil(t, logger)
}

func TestSaveLoad(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "run.yaml")
	cfg := Default()
	cfg.Model = localham.XX
	cfg.Store = "runs.db"
	require.NoError(t, Save(path, cfg))

	got, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, got)
}

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{name: "unknown model", modify: func(c *Config) { c.Model = "Potts" }},
		{name: "one site", modify: func(c *Config) { c.NumSites = 1 }},
		{name: "interaction too long", modify: func(c *Config) { c.InteractionLength = 17 }},
		{name: "no eigenpairs", modify: func(c *Config) { c.NumEigen = 0 }},
		{name: "too many eigenpairs", modify: func(c *Config) { c.NumSites = 2; c.NumEigen = 5 }},
		{name: "no workers", modify: func(c *Config) { c.Workers = 0 }},
		{name: "precision", modify: func(c *Config) { c.Precision = "half" }},
		{name: "krylov", modify: func(c *Config) { c.Lanczos.KrylovDim = 1 }},
		{name: "tol", modify: func(c *Config) { c.Lanczos.Tol = 0 }},
		{name: "restarts", modify: func(c *Config) { c.Lanczos.MaxRestarts = 0 }},
		{name: "level", modify: func(c *Config) { c.Logging.Level = "loud" }},
		{name: "format", modify: func(c *Config) { c.Logging.Format = "xml" }},
		{name: "sweep sites", modify: func(c *Config) { c.Sweep.NumSites = []int{4, 1} }},
		{name: "sweep model", modify: func(c *Config) { c.Sweep.Models = []string{"Potts"} }},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			test.modify(cfg)
			require.Error(t, cfg.Validate())
		})
	}
}
