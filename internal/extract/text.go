package extract

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/joseph-ayodele/photo-panels/constants"
	"github.com/joseph-ayodele/photo-panels/internal/common"
	"github.com/joseph-ayodele/photo-panels/internal/pdfdoc"
)

const (
	defaultFontSize = 10.0
	wordGapRatio    = 0.25 // horizontal gap, in font sizes, that separates words
	paragraphRatio  = 1.8  // vertical gap, in font sizes, that separates paragraphs
)

// TextExtractor reads page text in reading order.
type TextExtractor struct {
	src    TextSource
	cfg    common.TextConfig
	logger *slog.Logger
}

func NewTextExtractor(src TextSource, cfg common.TextConfig, logger *slog.Logger) *TextExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &TextExtractor{src: src, cfg: cfg, logger: logger}
}

func (e *TextExtractor) Extract(ctx context.Context, page pdfdoc.Page) (TextBlock, error) {
	runs, err := e.src.Text(ctx, page)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return TextBlock{}, ctxErr
		}
		return TextBlock{}, common.ExtractionError(constants.StageText, page.Index, err)
	}
	block := BuildTextBlock(page.Index, page.Height, runs, e.cfg)
	e.logger.Info("extract.text.ok", "page", page.Index, "runs", len(runs), "lines", len(block.Lines))
	return block, nil
}

type textLine struct {
	y, x     float64
	fontSize float64
	runs     []pdfdoc.TextRun
	text     string
}

// BuildTextBlock lays runs out into lines. Runs in the header and footer bands are dropped,
// runs sharing a baseline (within LineTolerance) form a line, lines are ordered top to
// bottom, and indentation and headings are derived from x offset and font size.
func BuildTextBlock(pageIndex int, pageHeight float64, runs []pdfdoc.TextRun, cfg common.TextConfig) TextBlock {
	top := cfg.HeaderMargin * pageHeight
	bottom := pageHeight - cfg.FooterMargin*pageHeight

	kept := make([]pdfdoc.TextRun, 0, len(runs))
	for _, r := range runs {
		if r.Y < top || r.Y > bottom {
			continue
		}
		kept = append(kept, r)
	}
	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].Y != kept[j].Y {
			return kept[i].Y < kept[j].Y
		}
		return kept[i].X < kept[j].X
	})

	var lines []*textLine
	for _, r := range kept {
		if n := len(lines); n > 0 && math.Abs(r.Y-lines[n-1].y) <= cfg.LineTolerance {
			lines[n-1].runs = append(lines[n-1].runs, r)
			continue
		}
		lines = append(lines, &textLine{y: r.Y, runs: []pdfdoc.TextRun{r}})
	}

	var compact []*textLine
	for _, l := range lines {
		l.join()
		if l.text != "" {
			compact = append(compact, l)
		}
	}
	lines = compact

	block := TextBlock{PageIndex: pageIndex}
	if len(lines) == 0 {
		return block
	}

	minX := math.Inf(1)
	sizes := make([]float64, 0, len(lines))
	for _, l := range lines {
		minX = math.Min(minX, l.x)
		sizes = append(sizes, l.fontSize)
	}
	median := medianOf(sizes)

	for i, l := range lines {
		if i > 0 && l.y-lines[i-1].y > paragraphRatio*lines[i-1].fontSize {
			block.Lines = append(block.Lines, TextLine{})
		}
		indent := 0
		if cfg.IndentUnit > 0 {
			indent = int(math.Round((l.x - minX) / cfg.IndentUnit))
		}
		block.Lines = append(block.Lines, TextLine{
			Text:    l.text,
			Indent:  indent,
			Heading: cfg.HeadingRatio > 0 && l.fontSize >= cfg.HeadingRatio*median,
		})
	}
	return block
}

// join orders a line's runs left to right and concatenates them, inserting a space on
// visible gaps.
func (l *textLine) join() {
	sort.SliceStable(l.runs, func(i, j int) bool { return l.runs[i].X < l.runs[j].X })

	var sb strings.Builder
	var prevEnd float64
	l.x = math.Inf(1)
	for i, r := range l.runs {
		size := r.FontSize
		if size <= 0 {
			size = defaultFontSize
		}
		l.fontSize = math.Max(l.fontSize, size)
		if strings.TrimSpace(r.S) != "" {
			l.x = math.Min(l.x, r.X)
		}
		if i > 0 && r.X-prevEnd > wordGapRatio*size {
			cur := sb.String()
			if !strings.HasSuffix(cur, " ") && !strings.HasPrefix(r.S, " ") {
				sb.WriteByte(' ')
			}
		}
		sb.WriteString(r.S)
		prevEnd = r.X + r.W
	}
	l.text = collapseSpaces(sb.String())
	if math.IsInf(l.x, 1) {
		l.x = 0
	}
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func medianOf(xs []float64) float64 {
	s := append([]float64(nil), xs...)
	sort.Float64s(s)
	n := len(s)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}
