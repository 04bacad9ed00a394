package daemon

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/joseph-ayodele/photo-panels/constants"
	"github.com/joseph-ayodele/photo-panels/internal/common"
	"github.com/joseph-ayodele/photo-panels/internal/pipeline"
)

type recorder struct {
	mu   sync.Mutex
	runs map[string]string
	done chan string
}

func newRecorder() *recorder {
	return &recorder{runs: map[string]string{}, done: make(chan string, 8)}
}

func (r *recorder) run(status constants.RunStatus, err error) RunFunc {
	return func(ctx context.Context, source, outDir string) (*pipeline.Report, error) {
		r.mu.Lock()
		r.runs[source] = outDir
		r.mu.Unlock()
		r.done <- source
		return &pipeline.Report{RunID: "r1", Source: source, Status: status}, err
	}
}

func status(t *testing.T, hs *health.Server) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := hs.Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	return resp.Status
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 5*time.Second, 20*time.Millisecond)
}

func TestDaemonProcessesInboxAndDrains(t *testing.T) {
	inbox, out := t.TempDir(), t.TempDir()
	existing := filepath.Join(inbox, "Informe Marzo.pdf")
	require.NoError(t, os.WriteFile(existing, []byte("%PDF-1.4"), 0o644))

	rec := newRecorder()
	hs := health.NewServer()
	d := New(Config{Inbox: inbox, OutDir: out, Debounce: 20 * time.Millisecond}, rec.run(constants.RunStatusCompleted, nil), hs, nil)

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- d.Serve(ctx) }()

	select {
	case src := <-rec.done:
		assert.Equal(t, existing, src)
	case <-time.After(5 * time.Second):
		t.Fatal("existing inbox file not processed")
	}
	waitFor(t, func() bool {
		_, err := os.Stat(filepath.Join(inbox, doneDir, "Informe Marzo.pdf"))
		return err == nil
	})
	rec.mu.Lock()
	assert.Equal(t, filepath.Join(out, "informe_marzo"), rec.runs[existing])
	rec.mu.Unlock()
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status(t, hs))

	cancel()
	select {
	case err := <-served:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return")
	}
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status(t, hs))
}

func TestDaemonMovesFailedRuns(t *testing.T) {
	inbox := t.TempDir()
	rec := newRecorder()
	d := New(Config{Inbox: inbox, OutDir: t.TempDir(), Debounce: 20 * time.Millisecond},
		rec.run(constants.RunStatusFailed, common.NewStageError(common.KindClassification, constants.StageClassification, 0, nil)), nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = d.Serve(ctx) }()

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(inbox, "sin_paneles.pdf"), []byte("%PDF-1.4"), 0o644))

	waitFor(t, func() bool {
		_, err := os.Stat(filepath.Join(inbox, failedDir, "sin_paneles.pdf"))
		return err == nil
	})
}

func TestDaemonLeavesCanceledRunsInInbox(t *testing.T) {
	inbox := t.TempDir()
	path := filepath.Join(inbox, "largo.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0o644))

	started := make(chan struct{})
	run := func(ctx context.Context, source, outDir string) (*pipeline.Report, error) {
		close(started)
		<-ctx.Done()
		return &pipeline.Report{Status: constants.RunStatusCanceled}, common.CanceledError(0, ctx.Err())
	}
	d := New(Config{Inbox: inbox, OutDir: t.TempDir(), Debounce: 20 * time.Millisecond, DrainTimeout: 50 * time.Millisecond}, run, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- d.Serve(ctx) }()
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("run not started")
	}
	cancel()
	select {
	case <-served:
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return")
	}
	_, err := os.Stat(path)
	assert.NoError(t, err)
}
