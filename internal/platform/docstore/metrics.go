package docstore

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts store operations by outcome. One instance can be shared by
// every Store in the process.
type Metrics struct {
	ops *prometheus.CounterVec
}

// NewMetrics registers the docstore collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "carehub",
			Subsystem: "docstore",
			Name:      "operations_total",
			Help:      "Revision store operations by outcome.",
		}, []string{"op", "outcome"}),
	}
	reg.MustRegister(m.ops)
	return m
}

func (m *Metrics) observe(op string, err error) {
	m.ops.WithLabelValues(op, outcomeLabel(err)).Inc()
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case IsNotFound(err):
		return "not_found"
	case IsModified(err):
		return "modified"
	case isValidation(err):
		return "validation"
	case errors.Is(err, ErrInvariant):
		return "invariant"
	default:
		return "error"
	}
}

func isValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
