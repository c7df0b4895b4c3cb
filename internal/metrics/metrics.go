// Package metrics records run statistics and writes them as a Prometheus textfile.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Veraticus/demandflow/internal/model"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "demandflow"

// Recorder holds the metrics of a single run on a private registry.
type Recorder struct {
	registry      *prometheus.Registry
	tableRows     *prometheus.GaugeVec
	categories    *prometheus.GaugeVec
	stageDuration *prometheus.GaugeVec
	fitFailures   prometheus.Counter
	artifacts     prometheus.Counter
	lastRun       prometheus.Gauge
	lastSuccess   prometheus.Gauge
}

// NewRecorder creates a recorder with all collectors registered.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		tableRows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "table_rows",
			Help:      "Rows in each exported table.",
		}, []string{"table"}),
		categories: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "categories",
			Help:      "Categories by forecasting outcome.",
		}, []string{"outcome"}),
		stageDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time of each pipeline stage.",
		}, []string{"stage"}),
		fitFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_fit_failures_total",
			Help:      "Categories whose model could not be fit.",
		}),
		artifacts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifacts_written_total",
			Help:      "Files written to the artifact store.",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the run finished.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_success",
			Help:      "1 when the run finished without a fatal error.",
		}),
	}

	r.registry.MustRegister(r.tableRows, r.categories, r.stageDuration,
		r.fitFailures, r.artifacts, r.lastRun, r.lastSuccess)

	for _, o := range []model.CategoryOutcome{model.OutcomeForecast, model.OutcomeSkipped, model.OutcomeFailed} {
		r.categories.WithLabelValues(string(o)).Set(0)
	}
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// ObserveTable records the row count of an exported table.
func (r *Recorder) ObserveTable(name string, rows int) {
	r.tableRows.WithLabelValues(name).Set(float64(rows))
}

// ObserveOutcomes counts categories by outcome.
func (r *Recorder) ObserveOutcomes(results []model.CategoryResult) {
	counts := make(map[model.CategoryOutcome]int)
	for _, res := range results {
		counts[res.Outcome]++
	}
	for _, o := range []model.CategoryOutcome{model.OutcomeForecast, model.OutcomeSkipped, model.OutcomeFailed} {
		r.categories.WithLabelValues(string(o)).Set(float64(counts[o]))
	}
	r.fitFailures.Add(float64(counts[model.OutcomeFailed]))
}

// ObserveArtifact counts one artifact write.
func (r *Recorder) ObserveArtifact() {
	r.artifacts.Inc()
}

// StartStage returns a func that records the stage duration when called.
func (r *Recorder) StartStage(stage string) func() {
	start := time.Now()
	return func() {
		r.stageDuration.WithLabelValues(stage).Set(time.Since(start).Seconds())
	}
}

// Finish stamps the run end time and its success.
func (r *Recorder) Finish(at time.Time, err error) {
	r.lastRun.Set(float64(at.Unix()))
	if err != nil {
		r.lastSuccess.Set(0)
		return
	}
	r.lastSuccess.Set(1)
}

// WriteTextfile writes all metrics to path in the text exposition format.
func (r *Recorder) WriteTextfile(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create metrics directory: %w", err)
		}
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
