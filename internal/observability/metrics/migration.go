// Package metrics defines the Prometheus metrics recorded for a migration run.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Label values for doctype row metrics.
const (
	RowsSource   = "source"
	RowsInserted = "inserted"
	RowsSkipped  = "skipped"
)

// MigrationMetrics contains the gauges describing the last migration run.
// Gauges rather than counters: every run is pushed as a fresh batch job.
type MigrationMetrics struct {
	registry *prometheus.Registry

	doctypeRows          *prometheus.GaugeVec
	doctypeStatus        *prometheus.GaugeVec
	attachmentsRepointed prometheus.Gauge
	settingsRowsMoved    prometheus.Gauge
	sequenceStart        *prometheus.GaugeVec
	tablesDropped        prometheus.Gauge
	statements           prometheus.Gauge
	runDuration          prometheus.Gauge
	runSuccess           prometheus.Gauge
	lastRunTimestamp     prometheus.Gauge

	collectors []prometheus.Collector
}

// NewMigrationMetrics creates and registers migration metrics
func NewMigrationMetrics(registry *prometheus.Registry) (*MigrationMetrics, error) {
	m := &MigrationMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *MigrationMetrics) initMetrics() {
	m.doctypeRows = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "deskmigrate_doctype_rows",
			Help: "Rows per legacy doctype in the last run",
		},
		[]string{"doctype", "kind"}, // kind: source, inserted, skipped
	)

	m.doctypeStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "deskmigrate_doctypes",
			Help: "Number of legacy doctypes by outcome",
		},
		[]string{"status"},
	)

	m.attachmentsRepointed = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "deskmigrate_attachments_repointed",
		Help: "File attachments repointed to new doctypes",
	})

	m.settingsRowsMoved = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "deskmigrate_settings_rows_moved",
		Help: "Settings rows moved to the new settings doctype",
	})

	m.sequenceStart = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "deskmigrate_sequence_start",
			Help: "Next value of each regenerated sequence",
		},
		[]string{"sequence"},
	)

	m.tablesDropped = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "deskmigrate_tables_dropped",
		Help: "Legacy tables dropped",
	})

	m.statements = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "deskmigrate_sql_statements",
		Help: "SQL statements executed by the run",
	})

	m.runDuration = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "deskmigrate_run_duration_seconds",
		Help: "Wall time of the last run",
	})

	m.runSuccess = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "deskmigrate_run_success",
		Help: "1 if the last run succeeded, 0 otherwise",
	})

	m.lastRunTimestamp = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "deskmigrate_last_run_timestamp_seconds",
		Help: "Unix time the last run finished",
	})

	m.collectors = []prometheus.Collector{
		m.doctypeRows,
		m.doctypeStatus,
		m.attachmentsRepointed,
		m.settingsRowsMoved,
		m.sequenceStart,
		m.tablesDropped,
		m.statements,
		m.runDuration,
		m.runSuccess,
		m.lastRunTimestamp,
	}
}

// Describe implements the Collector interface
func (m *MigrationMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.collectors {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *MigrationMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.collectors {
		collector.Collect(ch)
	}
}

// RecordDoctype records the row counts of one legacy doctype.
func (m *MigrationMetrics) RecordDoctype(doctype, status string, source, inserted, skipped int64) {
	m.doctypeStatus.WithLabelValues(status).Inc()
	m.doctypeRows.WithLabelValues(doctype, RowsSource).Set(float64(source))
	m.doctypeRows.WithLabelValues(doctype, RowsInserted).Set(float64(inserted))
	m.doctypeRows.WithLabelValues(doctype, RowsSkipped).Set(float64(skipped))
}

// RecordAttachments records repointed file attachments.
func (m *MigrationMetrics) RecordAttachments(repointed int64) {
	m.attachmentsRepointed.Set(float64(repointed))
}

// RecordSettings records moved settings rows.
func (m *MigrationMetrics) RecordSettings(moved int64) {
	m.settingsRowsMoved.Set(float64(moved))
}

// RecordSequence records where a regenerated sequence starts.
func (m *MigrationMetrics) RecordSequence(sequence string, start int64) {
	m.sequenceStart.WithLabelValues(sequence).Set(float64(start))
}

// RecordTablesDropped records how many legacy tables were dropped.
func (m *MigrationMetrics) RecordTablesDropped(n int) {
	m.tablesDropped.Set(float64(n))
}

// RecordRun records the outcome of the run.
func (m *MigrationMetrics) RecordRun(duration time.Duration, statements int64, success bool, finished time.Time) {
	m.runDuration.Set(duration.Seconds())
	m.statements.Set(float64(statements))
	if success {
		m.runSuccess.Set(1)
	} else {
		m.runSuccess.Set(0)
	}
	m.lastRunTimestamp.Set(float64(finished.Unix()))
}
