package db

import (
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

var (
	analysisRunsTotal *prometheus.CounterVec
	analysisDuration  *prometheus.HistogramVec
)

// InitAnalysisMetrics registers the Prometheus metrics for the analysis
// worker. Call once at startup before the worker is started.
func InitAnalysisMetrics() {
	analysisRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shopmetrics",
			Name:      "analysis_runs_total",
			Help:      "Total number of derived-table recompute runs.",
		},
		[]string{"step", "status"},
	)
	analysisDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "shopmetrics",
			Name:      "analysis_run_duration_seconds",
			Help:      "Histogram of derived-table recompute durations in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"step"},
	)
	prometheus.MustRegister(analysisRunsTotal, analysisDuration)
}

func observeRun(step string, start time.Time, err error) {
	if analysisRunsTotal == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	analysisRunsTotal.WithLabelValues(step, status).Inc()
	analysisDuration.WithLabelValues(step).Observe(time.Since(start).Seconds())
}

// RunAnalysisOnce recomputes both persisted derived tables (rfm_scores,
// customer_cohorts) as of the given time. Each step is idempotent, so a
// failed run can simply be retried.
func RunAnalysisOnce(db *gorm.DB, asOf time.Time) error {
	start := time.Now()
	err := RunRFMOnce(db, asOf)
	observeRun("rfm", start, err)
	if err != nil {
		return err
	}

	start = time.Now()
	err = RunCohortsOnce(db)
	observeRun("cohorts", start, err)
	return err
}

// StartAnalysisWorker launches a background goroutine that recomputes
// the derived tables once at startup and then on the configured
// interval, using wall-clock time as the as-of point.
func StartAnalysisWorker(db *gorm.DB, interval time.Duration) {
	go func() {
		if err := RunAnalysisOnce(db, time.Now().UTC()); err != nil {
			log.Printf("analysis run error (startup): %v", err)
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for t := range ticker.C {
			if err := RunAnalysisOnce(db, t.UTC()); err != nil {
				log.Printf("analysis run error: %v", err)
			}
		}
	}()
}
