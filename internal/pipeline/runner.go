// Package pipeline runs a source document through classification, per-page extraction and
// analysis, activity generation and unification.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/photo-panels/constants"
	"github.com/joseph-ayodele/photo-panels/internal/async"
	"github.com/joseph-ayodele/photo-panels/internal/classify"
	"github.com/joseph-ayodele/photo-panels/internal/common"
	"github.com/joseph-ayodele/photo-panels/internal/export"
	"github.com/joseph-ayodele/photo-panels/internal/extract"
	"github.com/joseph-ayodele/photo-panels/internal/llm"
	"github.com/joseph-ayodele/photo-panels/internal/organize"
	"github.com/joseph-ayodele/photo-panels/internal/panelpdf"
	"github.com/joseph-ayodele/photo-panels/internal/pdfdoc"
	"github.com/joseph-ayodele/photo-panels/internal/repository"
	"github.com/joseph-ayodele/photo-panels/internal/unify"
)

// ActivityOutcome is the generation result of one activity. Path is empty when the
// activity failed and was left out of unification.
type ActivityOutcome struct {
	Activity organize.Activity
	Document panelpdf.Document
	Path     string
	Err      error
}

// Report describes a finished or aborted run.
type Report struct {
	RunID        string
	Source       string
	Status       constants.RunStatus
	Counts       map[constants.PageLabel]int
	Results      []organize.PageResult
	Activities   []ActivityOutcome
	Summary      *organize.Summary
	UnifiedPath  string
	UnifiedPages int
	Elapsed      time.Duration
	SummaryErr   error // summary artifacts could not be written on a failed run
}

// Failed returns the per-page failures in page order.
func (r *Report) Failed() []*common.StageError {
	var out []*common.StageError
	for _, res := range r.Results {
		if res.Failure != nil {
			out = append(out, res.Failure)
		}
	}
	return out
}

// Runner owns the long-lived collaborators; each Run opens its own document and output state,
// so one Runner may serve several runs at once.
type Runner struct {
	cfg       common.Config
	logger    *slog.Logger
	analyzer  llm.Analyzer
	generator *panelpdf.Generator
	unifier   *unify.Unifier
	exporter  *export.Service
	runs      repository.RunRepository
	pages     repository.PageRepository
}

type Option func(*Runner)

func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithLedger records runs and page results.
func WithLedger(runs repository.RunRepository, pages repository.PageRepository) Option {
	return func(r *Runner) {
		r.runs = runs
		r.pages = pages
	}
}

func NewRunner(cfg common.Config, analyzer llm.Analyzer, opts ...Option) *Runner {
	r := &Runner{cfg: cfg, analyzer: analyzer, logger: slog.Default()}
	for _, o := range opts {
		o(r)
	}
	r.generator = panelpdf.NewGenerator(cfg.Layout, r.logger)
	r.unifier = unify.NewUnifier(r.logger)
	r.exporter = export.NewService(r.logger)
	return r
}

// Classify opens source and labels its pages without processing them.
func (r *Runner) Classify(ctx context.Context, source string) ([]classify.PageLabel, error) {
	doc, err := pdfdoc.Open(source, r.logger)
	if err != nil {
		return nil, err
	}
	defer doc.Close()
	return classify.NewClassifier(r.cfg.Classifier, r.logger).Classify(ctx, doc)
}

// Run processes source end to end. Page-level failures are isolated and reported in the
// Report; a fatal error (input, classification, unification, cancellation) is returned
// together with the partial Report and leaves no unified document behind.
func (r *Runner) Run(ctx context.Context, source string) (*Report, error) {
	start := time.Now()
	rep := &Report{Source: source, Status: constants.RunStatusRunning}

	doc, err := pdfdoc.Open(source, r.logger)
	if err != nil {
		led := startLedger(ctx, r.runs, r.pages, source, 0, 0, r.logger)
		rep.RunID = led.RunID()
		return r.fail(ctx, led, rep, start, err)
	}
	defer doc.Close()

	labels, err := classify.NewClassifier(r.cfg.Classifier, r.logger).Classify(ctx, doc)
	rep.Counts = classify.Counts(labels)
	led := startLedger(ctx, r.runs, r.pages, source, doc.NumPages(), rep.Counts[constants.LabelImagePanel], r.logger)
	rep.RunID = led.RunID()
	ctx = common.WithRunID(ctx, rep.RunID)
	if err != nil {
		return r.fail(ctx, led, rep, start, err)
	}

	r.logger.Info("pipeline.run.start",
		"run_id", rep.RunID,
		"source", source,
		"pages", doc.NumPages(),
		"image_panel", rep.Counts[constants.LabelImagePanel],
		"text_only", rep.Counts[constants.LabelTextOnly],
		"workers", r.cfg.Pipeline.Workers,
	)

	layout := organize.NewLayout(r.cfg.Output.Dir, r.cfg.Output.UnifiedName)
	if err := layout.Prepare(r.cfg.Output.Clean); err != nil {
		return r.fail(ctx, led, rep, start, common.NewAppError("OUTPUT_ERROR", "prepare output directory", err))
	}
	if err := os.Remove(layout.UnifiedPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return r.fail(ctx, led, rep, start, common.NewAppError("OUTPUT_ERROR", "remove previous unified document", err))
	}

	bundle := organize.NewBundle(layout)
	rep.Results = r.processPages(ctx, doc, classify.Panels(labels), layout, bundle, led)

	if err := ctx.Err(); err != nil {
		cause := common.CanceledError(0, err)
		r.summarizeFailed(rep, labels, bundle, nil, cause)
		return r.fail(ctx, led, rep, start, cause)
	}

	activities := organize.Group(rep.Results)
	outcomes, err := r.generate(ctx, activities, rep.Results)
	if err != nil {
		r.summarizeFailed(rep, labels, bundle, activities, err)
		return r.fail(ctx, led, rep, start, err)
	}

	docs := make([]unify.ActivityDocument, 0, len(outcomes))
	for i := range outcomes {
		o := &outcomes[i]
		if o.Err != nil {
			continue
		}
		path := layout.ActivityPath(i+1, o.Activity.Name)
		if err := organize.WriteFileAtomic(path, o.Document.Bytes); err != nil {
			o.Err = common.GenerationError(o.Activity.Name, fmt.Errorf("write %s: %w", path, err))
			r.logger.Error("pipeline.activity.write_failed", "activity", o.Activity.Name, "error", err)
			continue
		}
		o.Path = path
		docs = append(docs, unify.ActivityDocument{Activity: o.Activity.Name, Bytes: o.Document.Bytes})
	}
	rep.Activities = outcomes

	unified, err := r.unifier.UnifyToFile(ctx, docs, layout.UnifiedPath())
	if err != nil {
		r.summarizeFailed(rep, labels, bundle, activities, err)
		return r.fail(ctx, led, rep, start, err)
	}
	rep.UnifiedPath = layout.UnifiedPath()
	rep.UnifiedPages = unified.Pages

	if err := r.summarize(rep, labels, bundle, activities); err != nil {
		return r.fail(ctx, led, rep, start, err)
	}

	rep.Status = constants.RunStatusCompleted
	rep.Elapsed = time.Since(start)
	led.finish(ctx, repository.RunOutcome{
		Status:      rep.Status,
		PagesFailed: bundle.Failed(),
		UnifiedPath: rep.UnifiedPath,
	})
	r.logger.Info("pipeline.run.ok",
		"run_id", rep.RunID,
		"activities", len(activities),
		"documents", len(docs),
		"pages_failed", bundle.Failed(),
		"unified_pages", rep.UnifiedPages,
		"elapsed_ms", rep.Elapsed.Milliseconds(),
	)
	return rep, nil
}

// processPages fans panel pages out to the worker pool and collects every outcome. The
// coordinator is the only writer of the bundle and the ledger.
func (r *Runner) processPages(
	ctx context.Context,
	doc *pdfdoc.Document,
	panels []classify.PageLabel,
	layout organize.Layout,
	bundle *organize.Bundle,
	led *ledger,
) []organize.PageResult {
	proc := NewProcessor(
		r.logger,
		extract.NewPanelExtractor(doc, r.cfg.Extraction, r.logger),
		extract.NewTextExtractor(doc, r.cfg.Text, r.logger),
		r.analyzer,
		layout,
	)

	handle := func(jobCtx context.Context, job async.Job[classify.PageLabel]) (PageOutcome, error) {
		out := proc.ProcessPage(ctx, jobCtx, job.Payload)
		if f := out.Result.Failure; f != nil {
			return out, f
		}
		return out, nil
	}
	pool := async.NewPool[classify.PageLabel, PageOutcome](ctx, handle, r.logger,
		async.WithWorkers(r.cfg.Pipeline.Workers),
		async.WithQueueSize(len(panels)),
		async.WithProcessTimeout(r.cfg.Pipeline.PageTimeout),
	)

	results := make([]organize.PageResult, 0, len(panels))
	collect := func(out PageOutcome) {
		res := out.Result
		if out.Written {
			bundle.Put(out.Entry)
		} else {
			bundle.MarkFailed(res.PageIndex, res.Failure)
		}
		led.page(ctx, res, constants.PageStatusAnalyzed)
		results = append(results, res)
	}

	for _, l := range panels {
		led.page(ctx, organize.PageResult{PageIndex: l.Page.Index}, constants.PageStatusQueued)
	}
	for _, l := range panels {
		job := async.Job[classify.PageLabel]{ID: fmt.Sprintf("page-%d", l.Page.Index), Payload: l}
		if err := pool.Enqueue(ctx, job); err != nil {
			collect(canceled(l.Page.Index, err))
		}
	}
	go pool.Shutdown(context.Background())

	for out := range pool.Results() {
		if out.Skipped {
			collect(canceled(out.Job.Payload.Page.Index, out.Err))
			continue
		}
		collect(out.Result)
	}

	sort.Slice(results, func(i, j int) bool { return results[i].PageIndex < results[j].PageIndex })
	return results
}

func canceled(page int, cause error) PageOutcome {
	return PageOutcome{Result: organize.PageResult{PageIndex: page, Failure: common.CanceledError(page, cause)}}
}

// generate renders activity documents on a group bounded by the worker count. A
// GenerationError stays with its activity; only cancellation aborts the stage.
func (r *Runner) generate(ctx context.Context, activities []organize.Activity, results []organize.PageResult) ([]ActivityOutcome, error) {
	byPage := make(map[int]organize.PageResult, len(results))
	for _, res := range results {
		byPage[res.PageIndex] = res
	}

	outcomes := make([]ActivityOutcome, len(activities))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, r.cfg.Pipeline.Workers))
	for i, a := range activities {
		g.Go(func() error {
			pages := make([]panelpdf.PanelPage, 0, len(a.Pages))
			for _, idx := range a.Pages {
				res := byPage[idx]
				if res.Record == nil || res.Panel == nil {
					continue
				}
				pages = append(pages, panelpdf.PanelPage{PageIndex: idx, Record: *res.Record, Panel: *res.Panel})
			}
			doc, err := r.generator.Generate(gctx, a.Name, pages)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				r.logger.Error("pipeline.activity.failed", "activity", a.Name, "error", err)
				outcomes[i] = ActivityOutcome{Activity: a, Err: err}
				return nil
			}
			outcomes[i] = ActivityOutcome{Activity: a, Document: doc}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, common.CanceledError(0, err)
	}
	return outcomes, nil
}

// summarize writes the run summary and, when enabled, its workbook.
func (r *Runner) summarize(rep *Report, labels []classify.PageLabel, bundle *organize.Bundle, activities []organize.Activity) error {
	layout := bundle.Layout()
	sum := organize.Summarize(bundle, activities)
	sum.RunID = rep.RunID
	sum.Source = rep.Source
	sum.TotalPages = len(labels)
	sum.PanelPages = rep.Counts[constants.LabelImagePanel]
	sum.TextPages = rep.Counts[constants.LabelTextOnly]
	sum.Unified = rep.UnifiedPath
	for i, o := range rep.Activities {
		if i >= len(sum.Activities) {
			break
		}
		sum.Activities[i].Document = o.Path
		if o.Err != nil {
			sum.Activities[i].Error = o.Err.Error()
		}
	}
	rep.Summary = &sum

	if err := organize.WriteSummary(layout.SummaryPath(), sum); err != nil {
		r.logger.Error("pipeline.summary.write_failed", "error", err)
		return common.NewAppError("OUTPUT_ERROR", "write summary", err)
	}
	if !r.cfg.Output.WriteXLSX {
		return nil
	}
	b, err := r.exporter.SummaryXLSX(sum)
	if err == nil {
		err = organize.WriteFileAtomic(layout.XLSXPath(), b)
	}
	if err != nil {
		r.logger.Error("pipeline.summary.xlsx_failed", "error", err)
		return common.NewAppError("OUTPUT_ERROR", "write summary workbook", err)
	}
	return nil
}

// summarizeFailed writes the summary of a run that is about to fail. A write error is
// logged and kept on the report; the run still fails with cause.
func (r *Runner) summarizeFailed(rep *Report, labels []classify.PageLabel, bundle *organize.Bundle, activities []organize.Activity, cause error) {
	if err := r.summarize(rep, labels, bundle, activities); err != nil {
		rep.SummaryErr = err
		r.logger.Error("pipeline.summary.lost", "run_id", rep.RunID, "cause", cause, "error", err)
	}
}

func (r *Runner) fail(ctx context.Context, led *ledger, rep *Report, start time.Time, err error) (*Report, error) {
	if _, ok := common.AsStageError(err); !ok && ctx.Err() != nil {
		err = common.CanceledError(0, err)
	}
	rep.Status = constants.RunStatusFailed
	if errors.Is(err, common.ErrCanceled) {
		rep.Status = constants.RunStatusCanceled
	}
	rep.Elapsed = time.Since(start)

	failed := 0
	for _, res := range rep.Results {
		if res.Failure != nil {
			failed++
		}
	}
	led.finish(ctx, repository.RunOutcome{Status: rep.Status, PagesFailed: failed, Error: err.Error()})
	r.logger.Error("pipeline.run.failed",
		"run_id", rep.RunID,
		"source", rep.Source,
		"status", rep.Status,
		"error", err,
		"elapsed_ms", rep.Elapsed.Milliseconds(),
	)
	return rep, err
}
