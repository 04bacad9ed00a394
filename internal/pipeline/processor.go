package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/joseph-ayodele/photo-panels/constants"
	"github.com/joseph-ayodele/photo-panels/internal/classify"
	"github.com/joseph-ayodele/photo-panels/internal/common"
	"github.com/joseph-ayodele/photo-panels/internal/extract"
	"github.com/joseph-ayodele/photo-panels/internal/llm"
	"github.com/joseph-ayodele/photo-panels/internal/organize"
)

// PageOutcome is what a worker hands back to the coordinator for one panel page.
type PageOutcome struct {
	Result  organize.PageResult
	Entry   organize.PageEntry
	Written bool
}

// Processor runs the per-page stages: images and text in parallel, then analysis, then
// the page's artifacts. It only writes inside the page's own directory.
type Processor struct {
	logger   *slog.Logger
	panels   *extract.PanelExtractor
	texts    *extract.TextExtractor
	analyzer llm.Analyzer
	layout   organize.Layout
}

func NewProcessor(
	logger *slog.Logger,
	panels *extract.PanelExtractor,
	texts *extract.TextExtractor,
	analyzer llm.Analyzer,
	layout organize.Layout,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{logger: logger, panels: panels, texts: texts, analyzer: analyzer, layout: layout}
}

// ProcessPage never returns a Go error for page-level problems: they are carried in the
// result's Failure so the page can be isolated. runCtx is the run's context; ctx may carry
// a tighter per-page deadline.
func (p *Processor) ProcessPage(runCtx, ctx context.Context, label classify.PageLabel) PageOutcome {
	start := time.Now()
	page := label.Page
	ctx = common.WithPageIndex(ctx, page.Index)
	res := organize.PageResult{PageIndex: page.Index}

	p.logger.Debug("pipeline.page.start", "run_id", common.RunIDFromContext(ctx), "page", page.Index)

	var (
		panel    extract.Panel
		block    extract.TextBlock
		panelErr error
		textErr  error
	)
	// A failing side must not cancel the other, both artifacts are kept.
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		panel, panelErr = p.panels.Extract(ctx, page, label.Candidates)
	}()
	go func() {
		defer wg.Done()
		block, textErr = p.texts.Extract(ctx, page)
	}()
	wg.Wait()

	if panelErr == nil {
		res.Panel = &panel
	}
	if textErr == nil {
		res.Text = &block
	}

	switch {
	case runCtx.Err() != nil:
		res.Failure = common.CanceledError(page.Index, runCtx.Err())
	case panelErr != nil:
		res.Failure = asPageFailure(panelErr, constants.StageImages, page.Index)
	case textErr != nil:
		res.Failure = asPageFailure(textErr, constants.StageText, page.Index)
	}

	if res.Failure == nil {
		rec, raw, err := p.analyzer.Analyze(ctx, llm.AnalyzeRequest{PageIndex: page.Index, Text: block.String()})
		res.RawResponse = raw
		switch {
		case runCtx.Err() != nil:
			res.Failure = common.CanceledError(page.Index, runCtx.Err())
		case err != nil:
			var ae *llm.AnalysisError
			if errors.As(err, &ae) && len(ae.RawResponse) > 0 {
				res.RawResponse = ae.RawResponse
			}
			res.Failure = common.AnalysisFailure(page.Index, err)
		default:
			res.Record = &rec
		}
	}

	out := PageOutcome{Result: res}
	entry, err := organize.WritePage(p.layout, res)
	if err != nil {
		p.logger.Error("pipeline.page.write_failed", "page", page.Index, "error", err)
		if res.Failure == nil {
			out.Result.Failure = common.NewStageError(common.KindExtraction, constants.StageOutput, page.Index, err)
			out.Result.Record = nil
		}
	} else {
		out.Entry = entry
		out.Written = true
	}

	if f := out.Result.Failure; f != nil {
		p.logger.Warn("pipeline.page.failed",
			"page", page.Index,
			"kind", f.Kind,
			"stage", f.Stage,
			"error", f.Cause,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	} else {
		p.logger.Info("pipeline.page.ok",
			"page", page.Index,
			"actividad", out.Result.Record.Actividad,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	}
	return out
}

func asPageFailure(err error, stage string, page int) *common.StageError {
	if se, ok := common.AsStageError(err); ok {
		return se
	}
	return common.ExtractionError(stage, page, err)
}
