package license

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kelda/licensecheck/pkg/errors"
)

// Metrics counts check outcomes. The result label is "pass" or the failure
// kind.
type Metrics struct {
	checks *prometheus.CounterVec
}

// NewMetrics creates the counters and registers them with reg, if non-nil.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		checks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "licensecheck",
			Name:      "checks_total",
			Help:      "Number of license checks run, by check and result.",
		}, []string{"check", "result"}),
	}

	if reg != nil {
		if err := reg.Register(m.checks); err != nil {
			return nil, errors.WithContext("register metrics", err)
		}
	}
	return m, nil
}

func (m *Metrics) observe(check string, err error) {
	if m == nil {
		return
	}

	result := "pass"
	if err != nil {
		result = errors.KindOf(err).String()
	}
	m.checks.WithLabelValues(check, result).Inc()
}
