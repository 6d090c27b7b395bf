package telemetry

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// AuthMetrics counts token lifecycle events. It implements service.Metrics.
type AuthMetrics struct {
	Issued   *prometheus.CounterVec
	Rejected *prometheus.CounterVec
	Revoked  *prometheus.CounterVec
	Codes    *prometheus.CounterVec
	Links    *prometheus.CounterVec
}

func NewAuthMetrics(opts Options) (*AuthMetrics, error) {
	opts = opts.withDefaults()
	reg := opts.Registerer

	counter := func(name, help string, labels ...string) (*prometheus.CounterVec, error) {
		return register(reg, name, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: opts.Namespace,
			Subsystem: "auth",
			Name:      name,
			Help:      help,
		}, labels))
	}

	var (
		m   AuthMetrics
		err error
	)
	if m.Issued, err = counter("tokens_issued_total",
		"Token pairs issued partitioned by grant.", "grant"); err != nil {
		return nil, err
	}
	if m.Rejected, err = counter("refresh_rejected_total",
		"Refresh attempts rejected partitioned by reason.", "reason"); err != nil {
		return nil, err
	}
	if m.Revoked, err = counter("tokens_revoked_total",
		"Token ids added to the blacklist partitioned by reason.", "reason"); err != nil {
		return nil, err
	}
	if m.Codes, err = counter("auth_codes_consumed_total",
		"Auth code exchanges partitioned by outcome.", "ok"); err != nil {
		return nil, err
	}
	if m.Links, err = counter("links_resolved_total",
		"Pending social links resolved partitioned by outcome.", "outcome"); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *AuthMetrics) TokensIssued(grant string) {
	m.Issued.WithLabelValues(grant).Inc()
}

func (m *AuthMetrics) RefreshRejected(reason string) {
	m.Rejected.WithLabelValues(reason).Inc()
}

func (m *AuthMetrics) TokenRevoked(reason string) {
	m.Revoked.WithLabelValues(reason).Inc()
}

func (m *AuthMetrics) AuthCodeConsumed(ok bool) {
	m.Codes.WithLabelValues(strconv.FormatBool(ok)).Inc()
}

func (m *AuthMetrics) LinkResolved(outcome string) {
	m.Links.WithLabelValues(outcome).Inc()
}
