// Package panelpdf renders one photo-panel document per activity.
package panelpdf

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/joseph-ayodele/photo-panels/constants"
	"github.com/joseph-ayodele/photo-panels/internal/common"
	"github.com/joseph-ayodele/photo-panels/internal/extract"
	"github.com/joseph-ayodele/photo-panels/internal/llm"
)

// PanelPage is one analysed source page to render.
type PanelPage struct {
	PageIndex int
	Record    llm.AnalysisRecord
	Panel     extract.Panel
}

// Document is a rendered activity document.
type Document struct {
	Activity string
	Bytes    []byte
	Pages    int
	Replaced int // record characters outside the font encoding, drawn as '.'
}

const minGridHeight = 120.0

var monthsES = [...]string{
	"Enero", "Febrero", "Marzo", "Abril", "Mayo", "Junio",
	"Julio", "Agosto", "Septiembre", "Octubre", "Noviembre", "Diciembre",
}

type Generator struct {
	cfg    common.LayoutConfig
	logger *slog.Logger
	now    func() time.Time
}

func NewGenerator(cfg common.LayoutConfig, logger *slog.Logger) *Generator {
	def := common.DefaultConfig().Layout
	if cfg.PageSize == "" {
		cfg.PageSize = def.PageSize
	}
	if cfg.Orientation == "" {
		cfg.Orientation = def.Orientation
	}
	if cfg.FontFamily == "" {
		cfg.FontFamily = def.FontFamily
	}
	if cfg.TitleSize <= 0 {
		cfg.TitleSize = def.TitleSize
	}
	if cfg.BodySize <= 0 {
		cfg.BodySize = def.BodySize
	}
	if cfg.Margin <= 0 {
		cfg.Margin = def.Margin
	}
	if cfg.CaptionHeight <= 0 {
		cfg.CaptionHeight = def.CaptionHeight
	}
	if cfg.DescriptionBlockHeight <= 0 {
		cfg.DescriptionBlockHeight = def.DescriptionBlockHeight
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{cfg: cfg, logger: logger, now: time.Now}
}

// MesEjecutado is the configured month or the current month in Spanish.
func (g *Generator) MesEjecutado() string {
	if g.cfg.MesEjecutado != "" {
		return g.cfg.MesEjecutado
	}
	t := g.now()
	return fmt.Sprintf("%s %d", monthsES[t.Month()-1], t.Year())
}

// Generate renders every page of an activity. An activity without pages, or a page
// without its four photographs, is a GenerationError.
func (g *Generator) Generate(ctx context.Context, activity string, pages []PanelPage) (Document, error) {
	start := time.Now()
	if len(pages) == 0 {
		return Document{}, common.GenerationError(activity, fmt.Errorf("activity has no valid pages"))
	}
	for _, p := range pages {
		if len(p.Panel.Images) != len(constants.Positions) {
			return Document{}, common.GenerationError(activity,
				fmt.Errorf("page %d has %d images, want %d", p.PageIndex, len(p.Panel.Images), len(constants.Positions)))
		}
	}

	r := newRenderer(g.cfg, g.MesEjecutado())
	for _, p := range pages {
		if err := ctx.Err(); err != nil {
			return Document{}, err
		}
		r.panelPage(p)
		if r.pdf.Err() {
			break
		}
	}

	var buf bytes.Buffer
	if err := r.pdf.Output(&buf); err != nil {
		g.logger.Error("panelpdf.render.failed", "activity", activity, "error", err)
		return Document{}, common.GenerationError(activity, err)
	}

	doc := Document{Activity: activity, Bytes: buf.Bytes(), Pages: r.pdf.PageCount(), Replaced: r.replaced}
	if doc.Replaced > 0 {
		g.logger.Warn("panelpdf.text.lossy", "activity", activity, "replaced_runes", doc.Replaced)
	}
	g.logger.Info("panelpdf.render.ok",
		"activity", activity,
		"source_pages", len(pages),
		"pages", doc.Pages,
		"bytes", len(doc.Bytes),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return doc, nil
}

type renderer struct {
	cfg      common.LayoutConfig
	mes      string
	pdf      *fpdf.Fpdf
	tr       func(string) string
	lineH    float64
	replaced int
}

func newRenderer(cfg common.LayoutConfig, mes string) *renderer {
	pdf := fpdf.New(cfg.Orientation, "pt", cfg.PageSize, "")
	pdf.SetMargins(cfg.Margin, cfg.Margin, cfg.Margin)
	pdf.SetAutoPageBreak(false, cfg.Margin)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(cfg.Title, true)
	pdf.SetCreator("photo-panels", true)
	return &renderer{cfg: cfg, mes: mes, pdf: pdf, tr: tr, lineH: cfg.BodySize * 1.35}
}

// header draws the title and template metadata and returns the y below it.
func (r *renderer) header() float64 {
	pdf, cfg := r.pdf, r.cfg
	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 2*cfg.Margin

	pdf.SetXY(cfg.Margin, cfg.Margin)
	pdf.SetFont(cfg.FontFamily, "B", cfg.TitleSize)
	pdf.CellFormat(contentW, cfg.TitleSize+4, r.tr(cfg.Title), "", 1, "C", false, 0, "")

	var meta []string
	if cfg.UnidadEjecutora != "" {
		meta = append(meta, "Unidad ejecutora: "+cfg.UnidadEjecutora)
	}
	if cfg.Tramo != "" {
		meta = append(meta, "Tramo: "+cfg.Tramo)
	}
	meta = append(meta, "Mes ejecutado: "+r.mes)

	pdf.SetFont(cfg.FontFamily, "", cfg.BodySize)
	pdf.SetX(cfg.Margin)
	pdf.CellFormat(contentW, r.lineH, r.tr(strings.Join(meta, "    ")), "", 1, "C", false, 0, "")
	return pdf.GetY() + 2
}

func (r *renderer) panelPage(p PanelPage) {
	pdf, cfg := r.pdf, r.cfg
	pdf.AddPage()
	pageW, pageH := pdf.GetPageSize()
	contentW := pageW - 2*cfg.Margin

	y := r.header()

	fields := p.Record.Fields()
	for _, f := range fields {
		r.replaced += r.lossy(f.Value)
	}
	for _, f := range fields[:4] {
		y = r.labelled(cfg.Margin, y, contentW, f)
	}
	pdf.SetXY(cfg.Margin, y)
	pdf.SetFont(cfg.FontFamily, "I", cfg.BodySize-1)
	pdf.CellFormat(contentW, r.lineH, r.tr(fmt.Sprintf("Página de origen: %d", p.PageIndex)), "", 0, "L", false, 0, "")
	y += r.lineH + 4

	gridTop := y
	gridBottom := pageH - cfg.Margin - cfg.DescriptionBlockHeight
	if gridBottom-gridTop < minGridHeight {
		pdf.SetErrorf("page %d: %.0fpt left for the photo grid, need %.0fpt", p.PageIndex, gridBottom-gridTop, minGridHeight)
		return
	}
	r.grid(p, cfg.Margin, gridTop, contentW, gridBottom-gridTop)

	lines := r.wrap(p.Record.Descripcion, contentW)
	perBlock := int(math.Max(1, math.Floor((cfg.DescriptionBlockHeight-r.lineH-4)/r.lineH)))
	first := lines
	if len(first) > perBlock {
		first = lines[:perBlock]
	}
	r.description(cfg.Margin, gridBottom+4, contentW, "Descripción:", first)

	rest := lines[len(first):]
	part := 1
	for len(rest) > 0 {
		part++
		pdf.AddPage()
		top := r.header()
		perPage := int(math.Max(1, math.Floor((pageH-cfg.Margin-top-r.lineH)/r.lineH)))
		chunk := rest
		if len(chunk) > perPage {
			chunk = rest[:perPage]
		}
		title := fmt.Sprintf("Descripción (continuación %d) - página de origen %d:", part, p.PageIndex)
		r.description(cfg.Margin, top, contentW, title, chunk)
		rest = rest[len(chunk):]
	}
}

// lossy counts the runes of s the cp1252 translation cannot represent; the translator
// writes them as '.'.
func (r *renderer) lossy(s string) int {
	return strings.Count(r.tr(s), ".") - strings.Count(s, ".")
}

// labelled prints "Label: value", wrapping the value under itself, and returns the next y.
func (r *renderer) labelled(x, y, w float64, f llm.Field) float64 {
	pdf, cfg := r.pdf, r.cfg
	labelTxt := r.tr(f.Label + ": ")
	pdf.SetFont(cfg.FontFamily, "B", cfg.BodySize)
	lw := pdf.GetStringWidth(labelTxt) + 2*pdf.GetCellMargin()
	pdf.SetXY(x, y)
	pdf.CellFormat(lw, r.lineH, labelTxt, "", 0, "L", false, 0, "")

	lines := r.wrap(f.Value, w-lw)
	if len(lines) == 0 {
		lines = []string{""}
	}
	pdf.SetFont(cfg.FontFamily, "", cfg.BodySize)
	for _, l := range lines {
		pdf.SetXY(x+lw, y)
		pdf.CellFormat(w-lw, r.lineH, r.tr(l), "", 0, "L", false, 0, "")
		y += r.lineH
	}
	return y
}

// grid draws the four photographs, each fitted inside its cell with its caption below.
func (r *renderer) grid(p PanelPage, x, y, w, h float64) {
	pdf, cfg := r.pdf, r.cfg
	gap := cfg.GridGap * w
	cellW := (w - gap) / 2
	cellH := (h - gap) / 2
	imgH := cellH - cfg.CaptionHeight
	pad := cfg.ImagePadding

	for i, pos := range constants.Positions {
		col, row := float64(i%2), float64(i/2)
		cx := x + col*(cellW+gap)
		cy := y + row*(cellH+gap)

		pdf.SetDrawColor(160, 160, 160)
		pdf.Rect(cx, cy, cellW, imgH, "D")

		img := p.Panel.Images[pos]
		name := fmt.Sprintf("p%d_%s", p.PageIndex, pos)
		pdf.RegisterImageOptionsReader(name, fpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(img.PNG))
		dw, dh := Fit(float64(img.Width), float64(img.Height), cellW-2*pad, imgH-2*pad)
		pdf.ImageOptions(name, cx+(cellW-dw)/2, cy+(imgH-dh)/2, dw, dh, false, fpdf.ImageOptions{ImageType: "PNG"}, 0, "")

		pdf.SetFont(cfg.FontFamily, "B", cfg.BodySize)
		pdf.SetXY(cx, cy+imgH)
		pdf.CellFormat(cellW, cfg.CaptionHeight, r.tr(pos.Caption()), "", 0, "C", false, 0, "")
	}
}

func (r *renderer) description(x, y, w float64, title string, lines []string) {
	pdf, cfg := r.pdf, r.cfg
	pdf.SetXY(x, y)
	pdf.SetFont(cfg.FontFamily, "B", cfg.BodySize)
	pdf.CellFormat(w, r.lineH, r.tr(title), "", 2, "L", false, 0, "")
	pdf.SetFont(cfg.FontFamily, "", cfg.BodySize)
	for _, l := range lines {
		pdf.SetX(x)
		pdf.CellFormat(w, r.lineH, r.tr(l), "", 2, "L", false, 0, "")
	}
}

// Fit scales (iw, ih) to the largest size inside (maxW, maxH) with the same aspect ratio.
func Fit(iw, ih, maxW, maxH float64) (float64, float64) {
	if iw <= 0 || ih <= 0 || maxW <= 0 || maxH <= 0 {
		return 0, 0
	}
	s := math.Min(maxW/iw, maxH/ih)
	return iw * s, ih * s
}

// wrap breaks text into lines no wider than w in the current font. Words longer than a
// line are split by rune.
func (r *renderer) wrap(text string, w float64) []string {
	r.pdf.SetFont(r.cfg.FontFamily, "", r.cfg.BodySize)
	var lines []string
	for _, para := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			continue
		}
		cur := ""
		for _, word := range words {
			cand := word
			if cur != "" {
				cand = cur + " " + word
			}
			if r.width(cand) <= w {
				cur = cand
				continue
			}
			if cur != "" {
				lines = append(lines, cur)
			}
			for r.width(word) > w {
				head := r.fit(word, w)
				if head == "" {
					break
				}
				lines = append(lines, head)
				word = strings.TrimPrefix(word, head)
			}
			cur = word
		}
		if cur != "" {
			lines = append(lines, cur)
		}
	}
	return lines
}

func (r *renderer) width(s string) float64 {
	return r.pdf.GetStringWidth(r.tr(s)) + 2*r.pdf.GetCellMargin()
}

// fit returns the longest rune prefix of s that fits in w.
func (r *renderer) fit(s string, w float64) string {
	if r.width(s) <= w {
		return s
	}
	runes := []rune(s)
	lo, hi := 0, len(runes)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if r.width(string(runes[:mid])) <= w {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return string(runes[:lo])
}
