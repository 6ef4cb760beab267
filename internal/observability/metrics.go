// Package observability collects the metrics of a migration run and pushes
// them to a Prometheus Pushgateway.
package observability

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/helpdesk-tools/deskmigrate/internal/observability/metrics"
)

// JobName is the Pushgateway job the run's metrics are grouped under.
const JobName = "deskmigrate"

// Metrics holds all the metric collectors of the tool.
type Metrics struct {
	registry  *prometheus.Registry
	Migration *metrics.MigrationMetrics
}

// NewMetrics creates a registry with every collector registered.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	migrationMetrics, err := metrics.NewMigrationMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration metrics: %w", err)
	}

	return &Metrics{
		registry:  registry,
		Migration: migrationMetrics,
	}, nil
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Push replaces the metrics of this job and site on the Pushgateway at url.
func (m *Metrics) Push(ctx context.Context, url, site string) error {
	pusher := push.New(url, JobName).Gatherer(m.registry)
	if site != "" {
		pusher = pusher.Grouping("site", site)
	}
	if err := pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", url, err)
	}
	return nil
}
