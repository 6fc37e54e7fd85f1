package main

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fumin/localham"
	"github.com/fumin/localham/exactdiag"
	"github.com/fumin/localham/store"
)

func newSolveCmd(opts *options) *cobra.Command {
	var vectors bool
	cmd := &cobra.Command{
		Use:   "solve",
		Short: "find the lowest eigenpairs of a model",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(ctx context.Context, a *app, _ []string) error {
			return a.solve(ctx, vectors)
		}),
	}
	cmd.Flags().BoolVar(&vectors, "vectors", false, "store the eigenvectors")
	return cmd
}

func (a *app) solve(ctx context.Context, vectors bool) error {
	p := localham.Problem{Model: a.cfg.Model, Lattice: a.cfg.Lattice(), Seed: a.cfg.Seed, Workers: a.cfg.Workers, Precision: exactdiag.Precision(a.cfg.Precision)}
	sol, err := a.solver().Solve(ctx, p, a.cfg.NumEigen)
	if err != nil {
		return errors.Wrap(err, "")
	}
	run := runOf(sol)

	var stats *localham.Statistics
	if p.Lattice.LocalDim == 2 {
		s, err := localham.GetStatistics(p.Lattice.NumSites, sol.Result.Eigen)
		if err != nil {
			return errors.Wrap(err, "")
		}
		stats = &s
	}

	if a.store != nil {
		if run.ID, err = a.store.SaveRun(ctx, run); err != nil {
			return errors.Wrap(err, "")
		}
		if vectors {
			for k, vv := range sol.Result.Eigen {
				if err := a.store.SaveVector(ctx, run.ID, k, vv.Vec); err != nil {
					return errors.Wrap(err, "")
				}
			}
		}
		a.logger.Info("saved", zap.Int64("id", run.ID), zap.String("store", a.store.Path))
	}

	fmt.Fprint(a.out, renderRun(run, stats))
	return nil
}

func (a *app) solver() *localham.Solver {
	s := localham.NewSolver(a.logger, a.metrics)
	s.Lanczos = a.cfg.LanczosOptions(a.logger)
	return s
}

func runOf(sol localham.Solution) store.Run {
	r := store.Run{
		Key: store.Key{
			Model:     sol.Problem.Model,
			Lattice:   sol.Problem.Lattice,
			Seed:      sol.Problem.Seed,
			NumEigen:  len(sol.Result.Eigen),
			Precision: sol.Problem.Precision,
		},
		MatVecs:  sol.Result.MatVecs,
		Restarts: sol.Result.Restarts,
		Duration: sol.Duration,
		Exact:    sol.Exact,
		HasExact: sol.HasExact,
		History:  sol.Result.History,
	}
	for _, vv := range sol.Result.Eigen {
		r.Eigenvalues = append(r.Eigenvalues, vv.Val)
	}
	return r
}

func newSweepCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "solve every model and lattice of the sweep, skipping stored runs",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(ctx context.Context, a *app, _ []string) error {
			return a.sweep(ctx)
		}),
	}
	f := cmd.Flags()
	f.IntSliceVar(&opts.sweepSites, "sweep-sites", nil, "numbers of sites")
	f.BoolSliceVar(&opts.sweepPeriodic, "sweep-periodic", nil, "boundary conditions")
	f.StringSliceVar(&opts.sweepModels, "sweep-models", nil, "models")
	return cmd
}

// series is the ground state energy per site of one model and boundary condition as the chain grows.
type series struct {
	model    string
	periodic bool
	runs     []store.Run
}

func (a *app) sweep(ctx context.Context) error {
	cfg := a.cfg
	solver := a.solver()
	var all []series
	for _, model := range cfg.Sweep.Models {
		d, n := cfg.LocalDim, cfg.InteractionLength
		if md, mn, _ := localham.ModelShape(model); md != 0 {
			d, n = md, mn
		}
		for _, periodic := range cfg.Sweep.Periodic {
			s := series{model: model, periodic: periodic}
			for _, numSites := range cfg.Sweep.NumSites {
				lat := exactdiag.Lattice{NumSites: numSites, LocalDim: d, InteractionLength: n, Periodic: periodic}
				if err := lat.Validate(); err != nil {
					a.logger.Warn("skip", zap.String("model", model), zap.Stringer("lattice", lat), zap.Error(err))
					continue
				}
				key := store.Key{Model: model, Lattice: lat, Seed: cfg.Seed, NumEigen: min(cfg.NumEigen, lat.Dim()), Precision: exactdiag.Precision(cfg.Precision)}

				run, err := a.sweepOne(ctx, solver, key)
				if err != nil {
					return errors.Wrap(err, fmt.Sprintf("%s %s", model, lat))
				}
				s.runs = append(s.runs, run)
			}
			all = append(all, s)
		}
	}

	fmt.Fprint(a.out, renderSweep(all))
	return nil
}

func (a *app) sweepOne(ctx context.Context, solver *localham.Solver, key store.Key) (store.Run, error) {
	if a.store != nil {
		run, ok, err := a.store.Find(ctx, key)
		if err != nil {
			return store.Run{}, errors.Wrap(err, "")
		}
		if ok {
			a.logger.Info("stored", zap.String("model", key.Model), zap.Stringer("lattice", key.Lattice), zap.Int64("id", run.ID))
			return run, nil
		}
	}

	p := localham.Problem{Model: key.Model, Lattice: key.Lattice, Seed: key.Seed, Workers: a.cfg.Workers, Precision: key.Precision}
	sol, err := solver.Solve(ctx, p, key.NumEigen)
	if err != nil {
		return store.Run{}, errors.Wrap(err, "")
	}
	run := runOf(sol)
	if a.store != nil {
		if run.ID, err = a.store.SaveRun(ctx, run); err != nil {
			return store.Run{}, errors.Wrap(err, "")
		}
	}
	return run, nil
}

func newModelsCmd() *cobra.Command {
	var terms bool
	cmd := &cobra.Command{
		Use:   "models",
		Short: "list the supported models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, headerStyle.Render("MODEL")+"\t"+headerStyle.Render("d")+"\t"+headerStyle.Render("n")+"\t"+headerStyle.Render("EXACT"))
			for _, m := range localham.Models() {
				d, n, _ := localham.ModelShape(m)
				ds, ns := "any", "any"
				if d != 0 {
					ds, ns = strconv.Itoa(d), strconv.Itoa(n)
				}
				exact := "-"
				if _, ok := localham.ExactGroundEnergy(m, 4, true); ok {
					exact = "periodic"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", m, ds, ns, exact)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			if !terms {
				return nil
			}

			for _, m := range localham.Models() {
				h, ok := localham.BulkTerm(m)
				if !ok {
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "\n%s\n%s\n", titleStyle.Render(m), h)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&terms, "terms", false, "also print the bond term of each fixed model")
	return cmd
}

func newRunsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "runs [model]",
		Short: "list stored runs",
		Args:  cobra.MaximumNArgs(1),
		RunE: withApp(opts, func(ctx context.Context, a *app, args []string) error {
			if err := a.requireStore(); err != nil {
				return err
			}
			var model string
			if len(args) > 0 {
				model = args[0]
			}
			runs, err := a.store.Runs(ctx, model)
			if err != nil {
				return errors.Wrap(err, "")
			}
			return writeRuns(a.out, runs)
		}),
	}
}

func newShowCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "show [run_id]",
		Short: "show a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(opts, func(ctx context.Context, a *app, args []string) error {
			if err := a.requireStore(); err != nil {
				return err
			}
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return errors.Wrap(err, args[0])
			}
			run, err := a.store.Run(ctx, id)
			if err != nil {
				return errors.Wrap(err, "")
			}

			// Statistics need the stored ground state.
			var stats *localham.Statistics
			if run.Lattice.LocalDim == 2 {
				if vec, err := a.store.Vector(ctx, id, 0); err == nil {
					s, err := localham.GetStatistics(run.Lattice.NumSites, []exactdiag.ValVec{{Val: run.Eigenvalues[0], Vec: vec}})
					if err != nil {
						return errors.Wrap(err, "")
					}
					stats = &s
				}
			}
			fmt.Fprint(a.out, renderRun(run, stats))
			return nil
		}),
	}
}
