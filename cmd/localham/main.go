// Command localham finds the low lying spectrum of one-dimensional lattice Hamiltonians.
package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fumin/localham/config"
	"github.com/fumin/localham/exactdiag"
	"github.com/fumin/localham/metrics"
	"github.com/fumin/localham/store"
)

// options are command line overrides of the configuration file.
type options struct {
	configPath        string
	model             string
	numSites          int
	periodic          bool
	localDim          int
	interactionLength int
	numEigen          int
	seed              uint64
	workers           int
	precision         string
	store             string
	metricsAddr       string
	logLevel          string

	sweepSites    []int
	sweepPeriodic []bool
	sweepModels   []string
}

// apply overwrites the values of cfg whose flags were set.
func (o *options) apply(cfg *config.Config, changed func(name string) bool) {
	if changed("model") {
		cfg.Model = o.model
	}
	if changed("sites") {
		cfg.NumSites = o.numSites
	}
	if changed("periodic") {
		cfg.Periodic = o.periodic
	}
	if changed("local-dim") {
		cfg.LocalDim = o.localDim
	}
	if changed("interaction") {
		cfg.InteractionLength = o.interactionLength
	}
	if changed("num-eigen") {
		cfg.NumEigen = o.numEigen
	}
	if changed("seed") {
		cfg.Seed = o.seed
	}
	if changed("workers") {
		cfg.Workers = o.workers
	}
	if changed("precision") {
		cfg.Precision = o.precision
	}
	if changed("store") {
		cfg.Store = o.store
	}
	if changed("metrics-addr") {
		cfg.MetricsAddr = o.metricsAddr
	}
	if changed("log-level") {
		cfg.Logging.Level = o.logLevel
	}
	if changed("sweep-sites") {
		cfg.Sweep.NumSites = o.sweepSites
	}
	if changed("sweep-periodic") {
		cfg.Sweep.Periodic = o.sweepPeriodic
	}
	if changed("sweep-models") {
		cfg.Sweep.Models = o.sweepModels
	}
}

// app holds what the commands share.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *metrics.Metrics
	// store is nil when persistence is disabled.
	store *store.Store
	out   io.Writer
}

func newApp(cmd *cobra.Command, opts *options) (*app, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		var err error
		if cfg, err = config.Load(opts.configPath); err != nil {
			return nil, errors.Wrap(err, "")
		}
	}
	opts.apply(cfg, cmd.Flags().Changed)
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "")
	}

	logger, err := cfg.Logging.NewLogger()
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	a := &app{cfg: cfg, logger: logger, out: cmd.OutOrStdout()}

	reg := prometheus.NewRegistry()
	a.metrics = metrics.New(reg)
	if cfg.MetricsAddr != "" {
		metrics.Serve(cmd.Context(), cfg.MetricsAddr, reg, logger)
	}

	if cfg.Store != "" {
		a.store, err = store.Open(cfg.Store)
		if err != nil {
			return nil, errors.Wrap(err, cfg.Store)
		}
	}
	return a, nil
}

func (a *app) Close() error {
	_ = a.logger.Sync()
	if a.store != nil {
		return a.store.Close()
	}
	return nil
}

func (a *app) requireStore() error {
	if a.store == nil {
		return errors.Errorf("no run store, set store in the config or pass --store")
	}
	return nil
}

// withApp wraps a command body with the construction and teardown of an app.
func withApp(opts *options, fn func(ctx context.Context, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, opts)
		if err != nil {
			return errors.Wrap(err, "")
		}
		defer a.Close()
		return fn(cmd.Context(), a, args)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "localham",
		Short:         "matrix-free exact diagonalization of lattice Hamiltonians",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	f := root.PersistentFlags()
	f.StringVarP(&opts.configPath, "config", "c", "", "config file path (yaml)")
	f.StringVarP(&opts.model, "model", "m", config.DefaultModel, "model name, see the models command")
	f.IntVarP(&opts.numSites, "sites", "N", config.DefaultNumSites, "number of sites")
	f.BoolVar(&opts.periodic, "periodic", true, "periodic boundary conditions")
	f.IntVarP(&opts.localDim, "local-dim", "d", config.DefaultLocalDim, "local dimension of the randomized models")
	f.IntVarP(&opts.interactionLength, "interaction", "n", config.DefaultInteraction, "interaction length of the randomized models")
	f.IntVarP(&opts.numEigen, "num-eigen", "k", 1, "number of eigenpairs")
	f.Uint64Var(&opts.seed, "seed", 0, "seed of the randomized models")
	f.IntVar(&opts.workers, "workers", 1, "goroutines sharing an operator application")
	f.StringVar(&opts.precision, "precision", string(exactdiag.Double), "arithmetic of operator applications, double or single")
	f.StringVar(&opts.store, "store", "", "sqlite run store path")
	f.StringVar(&opts.metricsAddr, "metrics-addr", "", "prometheus listen address, for example :9090")
	f.StringVar(&opts.logLevel, "log-level", "info", "log level")

	root.AddCommand(
		newSolveCmd(opts),
		newSweepCmd(opts),
		newModelsCmd(),
		newRunsCmd(opts),
		newShowCmd(opts),
	)
	return root
}

func main() {
	log.SetFlags(log.Lmicroseconds | log.Llongfile | log.LstdFlags)

	if err := mainWithErr(); err != nil {
		log.Fatalf("%+v", err)
	}
}

func mainWithErr() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}
