package exactdiag

import (
	"time"

	"go.uber.org/zap"

	"github.com/fumin/localham/metrics"
)

// InstrumentedOperator wraps a LinearOperator with application metrics and error logging.
type InstrumentedOperator struct {
	inner   LinearOperator
	model   string
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewInstrumentedOperator records the applications of inner under the model label.
func NewInstrumentedOperator(inner LinearOperator, model string, m *metrics.Metrics, logger *zap.Logger) *InstrumentedOperator {
	return &InstrumentedOperator{
		inner:   inner,
		model:   model,
		metrics: m,
		logger:  logger,
	}
}

// Dim returns the dimension of the wrapped operator.
func (o *InstrumentedOperator) Dim() int { return o.inner.Dim() }

// MatVec delegates to the wrapped operator and records its duration.
func (o *InstrumentedOperator) MatVec(dst, src []complex128) error {
	start := time.Now()
	err := o.inner.MatVec(dst, src)
	duration := time.Since(start)

	if err != nil {
		o.metrics.MatVecErrors.WithLabelValues(o.model).Inc()
		o.logger.Error("matvec failed",
			zap.String("model", o.model),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return err
	}

	o.metrics.MatVecs.WithLabelValues(o.model).Inc()
	o.metrics.MatVecDuration.WithLabelValues(o.model).Observe(duration.Seconds())
	return nil
}
