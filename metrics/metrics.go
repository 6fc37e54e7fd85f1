// Package metrics holds the Prometheus collectors of operator applications and eigensolver runs,
// and serves them over HTTP.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "localham"

// Metrics are the collectors of a solver process.
type Metrics struct {
	MatVecs        *prometheus.CounterVec
	MatVecErrors   *prometheus.CounterVec
	MatVecDuration *prometheus.HistogramVec
	Runs           *prometheus.CounterVec
	RunDuration    *prometheus.HistogramVec
	GroundEnergy   *prometheus.GaugeVec
}

// New returns the collectors registered with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		MatVecs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matvecs_total",
			Help:      "Total Hamiltonian applications",
		}, []string{"model"}),

		MatVecErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matvec_errors_total",
			Help:      "Total failed Hamiltonian applications",
		}, []string{"model"}),

		MatVecDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "matvec_duration_seconds",
			Help:      "Hamiltonian application duration",
			Buckets:   prometheus.ExponentialBuckets(1e-5, 4, 12),
		}, []string{"model"}),

		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Total diagonalization runs",
		}, []string{"model", "status"}),

		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Diagonalization run duration",
			Buckets:   []float64{0.01, 0.1, 1, 10, 60, 300, 1800, 7200},
		}, []string{"model"}),

		GroundEnergy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ground_energy",
			Help:      "Lowest eigenvalue of the last run",
		}, []string{"model", "lattice"}),
	}

	reg.MustRegister(
		m.MatVecs, m.MatVecErrors, m.MatVecDuration,
		m.Runs, m.RunDuration, m.GroundEnergy,
	)

	return m
}

// NewRouter returns a router exposing the metrics of g at /metrics.
func NewRouter(g prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

// Serve serves the metrics of g on addr until ctx is done.
func Serve(ctx context.Context, addr string, g prometheus.Gatherer, logger *zap.Logger) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewRouter(g),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("metrics server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server", zap.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	return srv
}
