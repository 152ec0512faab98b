// Package metrics exposes Prometheus counters for the video access
// subsystem. Labels identify outcomes, never users or tokens.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	registry *prometheus.Registry

	TokensIssued     prometheus.Counter
	IssueFailures    *prometheus.CounterVec
	Resolutions      *prometheus.CounterVec
	Heartbeats       *prometheus.CounterVec
	SessionEvictions *prometheus.CounterVec
}

func New() *Collector {
	c := &Collector{registry: prometheus.NewRegistry()}

	c.TokensIssued = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "coursegate_tokens_issued_total",
		Help: "Playback tokens issued.",
	})
	c.IssueFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "coursegate_token_issue_failures_total",
		Help: "Token issuance failures by code.",
	}, []string{"code"})
	c.Resolutions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "coursegate_playback_resolutions_total",
		Help: "Playback resolutions by outcome.",
	}, []string{"outcome"})
	c.Heartbeats = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "coursegate_heartbeats_total",
		Help: "Heartbeat calls by result.",
	}, []string{"result"})
	c.SessionEvictions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "coursegate_session_evictions_total",
		Help: "Video session evictions by cause.",
	}, []string{"cause"})

	c.registry.MustRegister(
		c.TokensIssued,
		c.IssueFailures,
		c.Resolutions,
		c.Heartbeats,
		c.SessionEvictions,
	)
	return c
}

// Handler serves the /metrics endpoint for this collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
