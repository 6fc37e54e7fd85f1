package localham

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/fumin/localham/exactdiag"
	"github.com/fumin/localham/metrics"
)

// Problem is a model on a lattice.
type Problem struct {
	Model   string
	Lattice exactdiag.Lattice
	// Seed seeds the randomized models.
	Seed uint64
	// Workers is the number of goroutines sharing a double precision operator application.
	Workers int
	// Precision is the arithmetic of operator applications, Double when empty.
	Precision exactdiag.Precision
}

// Solution is the low lying spectrum of a Problem.
type Solution struct {
	Problem  Problem
	Result   exactdiag.Result
	Duration time.Duration
	// Exact is the closed form ground state energy, valid when HasExact is true.
	Exact    float64
	HasExact bool
}

// Solver diagonalizes problems.
type Solver struct {
	// Metrics, when not nil, receives operator and run metrics.
	Metrics *metrics.Metrics
	Logger  *zap.Logger
	Lanczos exactdiag.LanczosOptions
}

// NewSolver returns a solver with the default Lanczos options logging to logger.
func NewSolver(logger *zap.Logger, m *metrics.Metrics) *Solver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Solver{Metrics: m, Logger: logger, Lanczos: exactdiag.NewLanczosOptions().Logger(logger)}
}

// Solve finds the k lowest eigenpairs of p.
func (s *Solver) Solve(ctx context.Context, p Problem, k int) (Solution, error) {
	start := time.Now()
	sol, err := s.solve(ctx, p, k)
	sol.Duration = time.Since(start)

	status := "ok"
	switch {
	case errors.Is(err, exactdiag.ErrNoConvergence):
		status = "no_convergence"
	case err != nil:
		status = "error"
	}
	if s.Metrics != nil {
		s.Metrics.Runs.WithLabelValues(p.Model, status).Inc()
		s.Metrics.RunDuration.WithLabelValues(p.Model).Observe(sol.Duration.Seconds())
		if err == nil {
			s.Metrics.GroundEnergy.WithLabelValues(p.Model, p.Lattice.String()).Set(sol.Result.Eigen[0].Val)
		}
	}
	if err != nil {
		return sol, errors.Wrap(err, p.Model)
	}

	s.Logger.Info("solved",
		zap.String("model", p.Model),
		zap.Stringer("lattice", p.Lattice),
		zap.Float64("ground", sol.Result.Eigen[0].Val),
		zap.Int("matvecs", sol.Result.MatVecs),
		zap.Duration("duration", sol.Duration),
	)
	return sol, nil
}

func (s *Solver) solve(ctx context.Context, p Problem, k int) (Solution, error) {
	if p.Precision == "" {
		p.Precision = exactdiag.Double
	}
	sol := Solution{Problem: p}
	lat := p.Lattice
	terms, _, err := NewGenerator(p.Seed).Generate(p.Model, lat.NumSites, lat.Periodic, lat.LocalDim, lat.InteractionLength)
	if err != nil {
		return sol, errors.Wrap(err, "")
	}
	op, err := exactdiag.NewOperator(lat, terms)
	if err != nil {
		return sol, errors.Wrap(err, "")
	}

	a, err := op.Workers(p.Workers).WithPrecision(p.Precision)
	if err != nil {
		return sol, errors.Wrap(err, "")
	}
	if s.Metrics != nil {
		a = exactdiag.NewInstrumentedOperator(a, p.Model, s.Metrics, s.Logger)
	}
	s.Logger.Debug("operator",
		zap.String("model", p.Model),
		zap.Stringer("lattice", lat),
		zap.Int("terms", len(terms)),
		zap.Int("placements", op.NumPlacements()),
		zap.String("precision", string(p.Precision)),
		zap.Float64("lower_bound", op.LowerBound()),
	)

	sol.Result, err = exactdiag.Eigsh(ctx, a, k, s.Lanczos.Precision(p.Precision))
	if err != nil {
		return sol, errors.Wrap(err, "")
	}
	sol.Exact, sol.HasExact = ExactGroundEnergy(p.Model, lat.NumSites, lat.Periodic)
	return sol, nil
}
