package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

// TestRecorderTextfile counts a few events and writes them out.
func TestRecorderTextfile(t *testing.T) {
	t.Parallel()

	r := NewRecorder()
	r.ArtifactsFetched.WithLabelValues("nightly").Add(2)
	r.ArtifactsSkipped.WithLabelValues("stable").Inc()
	r.FilesDeleted.WithLabelValues("rolling").Inc()

	started := time.Unix(1_700_000_000, 0)
	r.MarkSuccess(started, started.Add(90*time.Second))

	require.InDelta(t, 2, testutil.ToFloat64(r.ArtifactsFetched.WithLabelValues("nightly")), 0)
	require.InDelta(t, 90, testutil.ToFloat64(r.RunDuration), 0)

	path := filepath.Join(t.TempDir(), "textfile", "rustup_mirror.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `rustup_mirror_artifacts_fetched_total{channel="nightly"} 2`)
	require.Contains(t, string(data), "rustup_mirror_last_success_timestamp_seconds 1.70000009e+09")
}
