package orchestratorapi

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// apiMetrics holds the Prometheus collectors served on /metrics. Each
// component instance owns its registry so a rebuilt component never
// collides with collectors registered by an earlier one.
type apiMetrics struct {
	registry *prometheus.Registry

	requestsTotal    *prometheus.CounterVec
	workflowsStarted prometheus.Counter
	approvalsTotal   *prometheus.CounterVec
}

func newAPIMetrics() *apiMetrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &apiMetrics{
		registry: reg,
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agentflow_http_requests_total",
			Help: "HTTP requests by endpoint",
		}, []string{"endpoint"}),
		workflowsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "agentflow_workflows_started_total",
			Help: "Workflows created through the run endpoint",
		}),
		approvalsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agentflow_approvals_total",
			Help: "Approval gate decisions by outcome",
		}, []string{"decision"}),
	}
}
