package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "rustup_mirror"

// Recorder holds the counters of one run in a private registry.
type Recorder struct {
	registry *prometheus.Registry

	ArtifactsFetched  *prometheus.CounterVec
	ArtifactsSkipped  *prometheus.CounterVec
	BytesFetched      prometheus.Counter
	InstallersFetched prometheus.Counter
	InstallersFailed  prometheus.Counter
	FilesDeleted      *prometheus.CounterVec
	DirsDeleted       prometheus.Counter
	BytesReclaimed    prometheus.Counter
	LastSuccess       prometheus.Gauge
	RunDuration       prometheus.Gauge
}

// NewRecorder registers every collector in a fresh registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		ArtifactsFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifacts_fetched_total",
			Help:      "Artifacts downloaded from upstream.",
		}, []string{"channel"}),
		ArtifactsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifacts_skipped_total",
			Help:      "Artifacts whose local copy already matched the manifest hash.",
		}, []string{"channel"}),
		BytesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetched_bytes_total",
			Help:      "Bytes of artifacts downloaded from upstream.",
		}),
		InstallersFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "installers_fetched_total",
			Help:      "rustup-init installers downloaded.",
		}),
		InstallersFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "installers_failed_total",
			Help:      "rustup-init installers that could not be downloaded.",
		}),
		FilesDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gc_files_deleted_total",
			Help:      "Files removed by garbage collection.",
		}, []string{"kind"}),
		DirsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gc_dirs_deleted_total",
			Help:      "Dated directories removed by garbage collection.",
		}),
		BytesReclaimed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gc_reclaimed_bytes_total",
			Help:      "Bytes freed by garbage collection.",
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run.",
		}),
		RunDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the last run.",
		}),
	}

	r.registry.MustRegister(
		r.ArtifactsFetched,
		r.ArtifactsSkipped,
		r.BytesFetched,
		r.InstallersFetched,
		r.InstallersFailed,
		r.FilesDeleted,
		r.DirsDeleted,
		r.BytesReclaimed,
		r.LastSuccess,
		r.RunDuration,
	)

	return r
}

// Gatherer exposes the registry, mostly for tests.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

// MarkSuccess stamps the completion time and duration of a run.
func (r *Recorder) MarkSuccess(started, finished time.Time) {
	r.LastSuccess.Set(float64(finished.Unix()))
	r.RunDuration.Set(finished.Sub(started).Seconds())
}

// WriteTextfile writes all metrics to path atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics directory: %w", err)
	}

	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}

	return nil
}
