// Package daemon turns an inbox directory into a queue of pipeline runs.
package daemon

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/joseph-ayodele/photo-panels/constants"
	"github.com/joseph-ayodele/photo-panels/internal/async"
	"github.com/joseph-ayodele/photo-panels/internal/common"
	"github.com/joseph-ayodele/photo-panels/internal/ingest"
	"github.com/joseph-ayodele/photo-panels/internal/organize"
	"github.com/joseph-ayodele/photo-panels/internal/pipeline"
)

// ServiceName is the health-checked service.
const ServiceName = "panels.Pipeline"

const (
	doneDir   = "done"
	failedDir = "failed"
)

// RunFunc processes source, writing its artifacts under outDir.
type RunFunc func(ctx context.Context, source, outDir string) (*pipeline.Report, error)

// Config controls the inbox loop.
type Config struct {
	Inbox        string
	OutDir       string
	Debounce     time.Duration
	Workers      int           // concurrent runs
	RunTimeout   time.Duration // zero means unbounded
	DrainTimeout time.Duration // grace period for in-flight runs on shutdown
}

// Daemon feeds PDFs arriving in the inbox to RunFunc. Processed sources are moved to
// inbox/done or inbox/failed; sources interrupted by shutdown stay in the inbox and are
// picked up again on the next start.
type Daemon struct {
	cfg    Config
	run    RunFunc
	health *health.Server
	logger *slog.Logger

	mu       sync.Mutex
	inFlight map[string]struct{}
}

func New(cfg Config, run RunFunc, hs *health.Server, logger *slog.Logger) *Daemon {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = 30 * time.Second
	}
	return &Daemon{cfg: cfg, run: run, health: hs, logger: logger, inFlight: map[string]struct{}{}}
}

// Serve blocks until ctx is done, then drains: health turns NOT_SERVING, queued and
// running jobs get DrainTimeout to finish and are canceled after that.
func (d *Daemon) Serve(ctx context.Context) error {
	files, err := ingest.Watch(ctx, ingest.WatchConfig{
		Dir:         d.cfg.Inbox,
		InitialScan: true,
		Debounce:    d.cfg.Debounce,
	}, d.logger)
	if err != nil {
		return common.NewAppError("INBOX_ERROR", "watch inbox", err)
	}

	poolCtx, cancelPool := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelPool()
	pool := async.NewPool[string, *pipeline.Report](poolCtx, d.handle, d.logger,
		async.WithWorkers(d.cfg.Workers),
		async.WithQueueSize(64),
		async.WithProcessTimeout(d.cfg.RunTimeout),
	)

	collected := make(chan struct{})
	go func() {
		defer close(collected)
		for out := range pool.Results() {
			d.settle(out)
		}
	}()

	d.setStatus(healthpb.HealthCheckResponse_SERVING)
	d.logger.Info("daemon.serve.start", "inbox", d.cfg.Inbox, "out", d.cfg.OutDir, "workers", d.cfg.Workers)

	for path := range files {
		if !d.claim(path) {
			d.logger.Debug("daemon.file.in_flight", "path", path)
			continue
		}
		if err := pool.Enqueue(ctx, async.Job[string]{ID: filepath.Base(path), Payload: path}); err != nil {
			d.release(path)
			d.logger.Warn("daemon.enqueue.failed", "path", path, "error", err)
		}
	}

	d.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
	d.logger.Info("daemon.drain.start", "timeout", d.cfg.DrainTimeout.String())
	drainCtx, cancel := context.WithTimeout(context.Background(), d.cfg.DrainTimeout)
	defer cancel()
	pool.Shutdown(drainCtx)
	cancelPool()
	<-collected
	d.logger.Info("daemon.drain.done")
	return nil
}

func (d *Daemon) handle(ctx context.Context, job async.Job[string]) (*pipeline.Report, error) {
	source := job.Payload
	base := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	outDir := filepath.Join(d.cfg.OutDir, organize.Slug(base))
	return d.run(ctx, source, outDir)
}

func (d *Daemon) settle(out async.Outcome[string, *pipeline.Report]) {
	source := out.Job.Payload
	defer d.release(source)

	if out.Skipped || (errors.Is(out.Err, common.ErrCanceled) && !errors.Is(out.Err, context.DeadlineExceeded)) {
		d.logger.Info("daemon.run.deferred", "path", source)
		return
	}

	dest := doneDir
	if out.Err != nil || out.Result == nil || out.Result.Status != constants.RunStatusCompleted {
		dest = failedDir
	}
	attrs := []any{"path", source, "elapsed_ms", out.Elapsed.Milliseconds(), "moved_to", dest}
	if out.Result != nil {
		attrs = append(attrs, "run_id", out.Result.RunID, "status", out.Result.Status, "unified", out.Result.UnifiedPath)
	}
	if out.Err != nil {
		d.logger.Error("daemon.run.failed", append(attrs, "error", out.Err)...)
	} else {
		d.logger.Info("daemon.run.ok", attrs...)
	}
	if err := moveInto(source, filepath.Join(d.cfg.Inbox, dest)); err != nil {
		d.logger.Error("daemon.file.move_failed", "path", source, "error", err)
	}
}

func (d *Daemon) claim(path string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.inFlight[path]; ok {
		return false
	}
	d.inFlight[path] = struct{}{}
	return true
}

func (d *Daemon) release(path string) {
	d.mu.Lock()
	delete(d.inFlight, path)
	d.mu.Unlock()
}

func (d *Daemon) setStatus(s healthpb.HealthCheckResponse_ServingStatus) {
	if d.health == nil {
		return
	}
	d.health.SetServingStatus("", s)
	d.health.SetServingStatus(ServiceName, s)
}

func moveInto(path, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	target := filepath.Join(dir, filepath.Base(path))
	if _, err := os.Stat(target); err == nil {
		ext := filepath.Ext(target)
		target = strings.TrimSuffix(target, ext) + "." + time.Now().Format("20060102T150405") + ext
	}
	return os.Rename(path, target)
}
