package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Provider bundles the auth-domain Prometheus collectors. HTTP-level request
// metrics live in the transport middleware; these counters track outcomes the
// access log cannot aggregate.
type Provider struct {
	logins      *prometheus.CounterVec
	refreshes   *prometheus.CounterVec
	rateLimited prometheus.Counter
}

// NewProvider registers the domain collectors with the given registerer,
// defaulting to the global one.
func NewProvider(reg prometheus.Registerer) *Provider {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)

	return &Provider{
		logins: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "photoshare",
			Subsystem: "auth",
			Name:      "logins_total",
			Help:      "Login attempts partitioned by outcome.",
		}, []string{"result"}),
		refreshes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "photoshare",
			Subsystem: "auth",
			Name:      "token_refreshes_total",
			Help:      "Refresh attempts partitioned by outcome.",
		}, []string{"result"}),
		rateLimited: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "photoshare",
			Subsystem: "auth",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		}),
	}
}

// CountLogin records a login attempt outcome (success, invalid_credentials, ...).
func (p *Provider) CountLogin(result string) {
	if p == nil {
		return
	}
	p.logins.WithLabelValues(result).Inc()
}

// CountRefresh records a token refresh outcome.
func (p *Provider) CountRefresh(result string) {
	if p == nil {
		return
	}
	p.refreshes.WithLabelValues(result).Inc()
}

// CountRateLimited records a request rejected by the rate limiter.
func (p *Provider) CountRateLimited() {
	if p == nil {
		return
	}
	p.rateLimited.Inc()
}
