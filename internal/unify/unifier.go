// Package unify concatenates activity documents into the final deliverable.
package unify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/joseph-ayodele/photo-panels/internal/common"
	"github.com/joseph-ayodele/photo-panels/internal/organize"
	"github.com/joseph-ayodele/photo-panels/internal/pdfdoc"
)

// ActivityDocument is one input, in unification order.
type ActivityDocument struct {
	Activity string
	Bytes    []byte
}

// Result is the merged document.
type Result struct {
	Bytes []byte
	Pages int
}

type Unifier struct {
	logger *slog.Logger
}

func NewUnifier(logger *slog.Logger) *Unifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Unifier{logger: logger}
}

// Unify validates every input and merges them in the given order. Any unreadable input
// fails the whole call with a UnificationError naming the activity; nothing is returned.
func (u *Unifier) Unify(ctx context.Context, docs []ActivityDocument) (Result, error) {
	start := time.Now()
	if len(docs) == 0 {
		return Result{}, common.UnificationError("", fmt.Errorf("no documents to unify"))
	}

	total := 0
	readers := make([]io.ReadSeeker, 0, len(docs))
	for _, d := range docs {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		n, err := u.check(d.Bytes)
		if err != nil {
			u.logger.Error("unify.input.invalid", "activity", d.Activity, "error", err)
			return Result{}, common.UnificationError(d.Activity, err)
		}
		total += n
		readers = append(readers, bytes.NewReader(d.Bytes))
	}

	var out []byte
	if len(docs) == 1 {
		out = append([]byte(nil), docs[0].Bytes...)
	} else {
		var buf bytes.Buffer
		if err := api.MergeRaw(readers, &buf, false, pdfdoc.PDFCPUConfig()); err != nil {
			return Result{}, common.UnificationError("", fmt.Errorf("merge: %w", err))
		}
		out = buf.Bytes()
	}

	pages, err := api.PageCount(bytes.NewReader(out), pdfdoc.PDFCPUConfig())
	if err != nil {
		return Result{}, common.UnificationError("", fmt.Errorf("count merged pages: %w", err))
	}
	if pages != total {
		return Result{}, common.UnificationError("", fmt.Errorf("merged document has %d pages, inputs total %d", pages, total))
	}

	u.logger.Info("unify.ok",
		"documents", len(docs),
		"pages", pages,
		"bytes", len(out),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return Result{Bytes: out, Pages: pages}, nil
}

// UnifyToFile unifies and writes the result atomically, so a failed run never leaves a
// partial file at path.
func (u *Unifier) UnifyToFile(ctx context.Context, docs []ActivityDocument, path string) (Result, error) {
	res, err := u.Unify(ctx, docs)
	if err != nil {
		return Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if err := organize.WriteFileAtomic(path, res.Bytes); err != nil {
		return Result{}, common.UnificationError("", fmt.Errorf("write %s: %w", path, err))
	}
	return res, nil
}

func (u *Unifier) check(b []byte) (int, error) {
	if len(b) == 0 {
		return 0, fmt.Errorf("empty document")
	}
	if err := api.Validate(bytes.NewReader(b), pdfdoc.PDFCPUConfig()); err != nil {
		return 0, fmt.Errorf("validate: %w", err)
	}
	n, err := api.PageCount(bytes.NewReader(b), pdfdoc.PDFCPUConfig())
	if err != nil {
		return 0, fmt.Errorf("page count: %w", err)
	}
	if n == 0 {
		return 0, fmt.Errorf("document has no pages")
	}
	return n, nil
}
