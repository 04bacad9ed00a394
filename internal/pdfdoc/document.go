// Package pdfdoc is the read side of the source document: page geometry, placed image
// XObjects, encoded image streams and positioned text runs.
package pdfdoc

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/joseph-ayodele/photo-panels/internal/common"
)

var pdfHeader = []byte("%PDF-")

var disableConfigDir sync.Once

// PDFCPUConfig returns a relaxed pdfcpu configuration that never touches the user's config dir.
func PDFCPUConfig() *model.Configuration {
	disableConfigDir.Do(api.DisableConfigDir)
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// Page is one source page. Index is 1-based; Width/Height come from the (inherited) MediaBox.
type Page struct {
	Index  int
	Width  float64
	Height float64

	originX float64
	originY float64
	raw     pdf.Page
}

// Document serialises all access to the underlying readers; callers may share it across goroutines.
type Document struct {
	Path string

	mu     sync.Mutex
	data   []byte
	reader *pdf.Reader
	logger *slog.Logger

	cpuCtx  *model.Context
	cpuErr  error
	streams map[int][]streamImage

	raster *Rasterizer
}

// Open reads and parses the PDF at path. Any failure is an InputError.
func Open(path string, logger *slog.Logger) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, common.InputError(fmt.Errorf("read %s: %w", path, err))
	}
	doc, err := OpenBytes(data, logger)
	if err != nil {
		return nil, err
	}
	doc.Path = path
	return doc, nil
}

// OpenBytes parses an in-memory PDF.
func OpenBytes(data []byte, logger *slog.Logger) (*Document, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(data) < len(pdfHeader) || !bytes.Equal(data[:len(pdfHeader)], pdfHeader) {
		return nil, common.InputError(fmt.Errorf("not a PDF: missing %%PDF- header"))
	}

	var reader *pdf.Reader
	err := safely(func() error {
		r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
		if err != nil {
			return err
		}
		reader = r
		return nil
	})
	if err != nil {
		return nil, common.InputError(fmt.Errorf("parse pdf: %w", err))
	}

	var pages int
	_ = safely(func() error { pages = reader.NumPage(); return nil })
	if pages == 0 {
		return nil, common.InputError(fmt.Errorf("document has no pages"))
	}

	logger.Info("pdf.open.ok", "pages", pages, "bytes", len(data))
	return &Document{
		data:    data,
		reader:  reader,
		logger:  logger,
		streams: map[int][]streamImage{},
	}, nil
}

// NumPages returns the page count.
func (d *Document) NumPages() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reader.NumPage()
}

// Page returns page i (1-based).
func (d *Document) Page(i int) (Page, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if i < 1 || i > d.reader.NumPage() {
		return Page{}, fmt.Errorf("page %d out of range", i)
	}
	var page Page
	err := safely(func() error {
		p := d.reader.Page(i)
		if p.V.IsNull() {
			return fmt.Errorf("page %d is null", i)
		}
		page = Page{Index: i, raw: p}
		page.originX, page.originY, page.Width, page.Height = mediaBox(p.V)
		return nil
	})
	return page, err
}

// Bytes returns the raw document.
func (d *Document) Bytes() []byte {
	return d.data
}

// Close releases the rasteriser, if one was started.
func (d *Document) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.raster != nil {
		err := d.raster.Close()
		d.raster = nil
		return err
	}
	return nil
}

// pdfcpuContext lazily builds the pdfcpu model used for stream extraction. Caller holds mu.
func (d *Document) pdfcpuContext() (*model.Context, error) {
	if d.cpuCtx != nil || d.cpuErr != nil {
		return d.cpuCtx, d.cpuErr
	}
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(d.data), PDFCPUConfig())
	if err != nil {
		d.cpuErr = fmt.Errorf("pdfcpu read: %w", err)
		d.logger.Warn("pdf.pdfcpu.read_failed", "error", err)
		return nil, d.cpuErr
	}
	d.cpuCtx = ctx
	return ctx, nil
}

// mediaBox resolves the MediaBox through the Parent chain. Defaults to US Letter.
func mediaBox(v pdf.Value) (x, y, w, h float64) {
	box := inherited(v, "MediaBox")
	if box.Kind() != pdf.Array || box.Len() < 4 {
		return 0, 0, 612, 792
	}
	x0, y0 := box.Index(0).Float64(), box.Index(1).Float64()
	x1, y1 := box.Index(2).Float64(), box.Index(3).Float64()
	if x1 < x0 {
		x0, x1 = x1, x0
	}
	if y1 < y0 {
		y0, y1 = y1, y0
	}
	return x0, y0, x1 - x0, y1 - y0
}

func inherited(v pdf.Value, key string) pdf.Value {
	for depth := 0; depth < 32 && !v.IsNull(); depth++ {
		if r := v.Key(key); !r.IsNull() {
			return r
		}
		v = v.Key("Parent")
	}
	return pdf.Value{}
}

// safely converts panics from the pdf reader on malformed input into errors.
func safely(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()
	return fn()
}
