// Package config loads the YAML configuration of solver runs and sweeps.
package config

import (
	"os"
	"path/filepath"
	"slices"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/fumin/localham"
	"github.com/fumin/localham/exactdiag"
)

const (
	DefaultModel       = localham.RandHomogC
	DefaultNumSites    = 16
	DefaultLocalDim    = 2
	DefaultInteraction = 2
	DefaultKrylovDim   = 48
	DefaultTol         = 1e-10
	DefaultMaxRestarts = 1000
)

// Config describes a diagonalization run, and optionally a sweep of runs.
type Config struct {
	Model             string        `yaml:"model"`
	NumSites          int           `yaml:"num_sites"`
	Periodic          bool          `yaml:"periodic"`
	LocalDim          int           `yaml:"local_dim"`
	InteractionLength int           `yaml:"interaction_length"`
	NumEigen          int           `yaml:"num_eigen"`
	Seed              uint64        `yaml:"seed"`
	Workers           int           `yaml:"workers"`
	// Precision is the arithmetic of operator applications, double or single.
	Precision string        `yaml:"precision"`
	Lanczos   LanczosConfig `yaml:"lanczos"`
	// Store is the path of the sqlite run store, empty to disable persistence.
	Store string `yaml:"store"`
	// MetricsAddr is the listen address of the Prometheus endpoint, empty to disable it.
	MetricsAddr string        `yaml:"metrics_addr"`
	Logging     LoggingConfig `yaml:"logging"`
	Sweep       SweepConfig   `yaml:"sweep"`
}

// LanczosConfig holds eigensolver settings.
type LanczosConfig struct {
	KrylovDim   int     `yaml:"krylov_dim"`
	Tol         float64 `yaml:"tol"`
	MaxRestarts int     `yaml:"max_restarts"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	// Format is console or json.
	Format string `yaml:"format"`
}

// SweepConfig lists the lattices and models of a sweep. Every combination is solved.
type SweepConfig struct {
	NumSites []int    `yaml:"num_sites"`
	Periodic []bool   `yaml:"periodic"`
	Models   []string `yaml:"models"`
}

// Default returns the default configuration, the ground state of a random translation invariant ring of 16 qubits.
func Default() *Config {
	return &Config{
		Model:             DefaultModel,
		NumSites:          DefaultNumSites,
		Periodic:          true,
		LocalDim:          DefaultLocalDim,
		InteractionLength: DefaultInteraction,
		NumEigen:          1,
		Workers:           1,
		Precision:         string(exactdiag.Double),
		Lanczos: LanczosConfig{
			KrylovDim:   DefaultKrylovDim,
			Tol:         DefaultTol,
			MaxRestarts: DefaultMaxRestarts,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Sweep: SweepConfig{
			NumSites: []int{4, 6, 8, 10, 12, 14, 16},
			Periodic: []bool{true},
			Models:   []string{localham.XX, localham.Ising},
		},
	}
}

// Load reads the configuration at path over the defaults and validates it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, path)
	}
	return cfg, nil
}

// Save writes cfg to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "")
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

// Validate checks that the configuration describes a solvable run.
func (c *Config) Validate() error {
	if !slices.Contains(localham.Models(), c.Model) {
		return errors.Errorf("unknown model %q, expected one of %v", c.Model, localham.Models())
	}
	lat := c.Lattice()
	if err := lat.Validate(); err != nil {
		return errors.Wrap(err, "")
	}
	if c.NumEigen < 1 || c.NumEigen > lat.Dim() {
		return errors.Errorf("num_eigen %d not in [1, %d]", c.NumEigen, lat.Dim())
	}
	if c.Workers < 1 {
		return errors.Errorf("workers %d < 1", c.Workers)
	}
	if !exactdiag.Precision(c.Precision).Valid() {
		return errors.Errorf("precision %q, expected one of %v", c.Precision, exactdiag.Precisions)
	}
	if c.Lanczos.KrylovDim < 2 {
		return errors.Errorf("lanczos.krylov_dim %d < 2", c.Lanczos.KrylovDim)
	}
	if c.Lanczos.Tol <= 0 {
		return errors.Errorf("lanczos.tol %g <= 0", c.Lanczos.Tol)
	}
	if c.Lanczos.MaxRestarts < 1 {
		return errors.Errorf("lanczos.max_restarts %d < 1", c.Lanczos.MaxRestarts)
	}
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(c.Logging.Level)); err != nil {
		return errors.Wrap(err, "logging.level")
	}
	if c.Logging.Format != "console" && c.Logging.Format != "json" {
		return errors.Errorf("logging.format %q, expected console or json", c.Logging.Format)
	}
	for _, n := range c.Sweep.NumSites {
		if n < 2 {
			return errors.Errorf("sweep.num_sites %d < 2", n)
		}
	}
	for _, m := range c.Sweep.Models {
		if !slices.Contains(localham.Models(), m) {
			return errors.Errorf("unknown sweep model %q", m)
		}
	}
	return nil
}

// Lattice returns the lattice of the run.
func (c *Config) Lattice() exactdiag.Lattice {
	return exactdiag.Lattice{NumSites: c.NumSites, LocalDim: c.LocalDim, InteractionLength: c.InteractionLength, Periodic: c.Periodic}
}

// LanczosOptions returns the eigensolver options of the run.
func (c *Config) LanczosOptions(logger *zap.Logger) exactdiag.LanczosOptions {
	return exactdiag.NewLanczosOptions().
		KrylovDim(c.Lanczos.KrylovDim).
		Tol(c.Lanczos.Tol).
		MaxRestarts(c.Lanczos.MaxRestarts).
		Seed(c.Seed).
		Precision(exactdiag.Precision(c.Precision)).
		Logger(logger)
}

// NewLogger builds the logger described by c.
func (c LoggingConfig) NewLogger() (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	if c.Format == "json" {
		cfg = zap.NewProductionConfig()
	}
	if c.Level != "" {
		var level zapcore.Level
		if err := level.UnmarshalText([]byte(c.Level)); err != nil {
			return nil, errors.Wrap(err, c.Level)
		}
		cfg.Level = zap.NewAtomicLevelAt(level)
	}

	l, err := cfg.Build(zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	return l, nil
}
