package export

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/photo-panels/internal/organize"
)

const (
	pagesSheet      = "Paginas"
	activitiesSheet = "Actividades"
)

// Service renders run summaries as XLSX workbooks.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// SummaryXLSX returns a workbook with one row per page and one row per activity.
func (s *Service) SummaryXLSX(sum organize.Summary) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	// The default sheet becomes the pages sheet.
	if err := f.SetSheetName(f.GetSheetName(0), pagesSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(activitiesSheet); err != nil {
		return nil, fmt.Errorf("add sheet: %w", err)
	}
	idx, _ := f.GetSheetIndex(pagesSheet)
	f.SetActiveSheet(idx)

	writeRow(f, pagesSheet, 1, "Página", "Estado", "Actividad", "Progresivas", "Ubicación", "Etapa", "Descripción", "Error")
	row := 2
	for _, p := range sum.Pages {
		vals := []any{p.Page, string(p.Status), "", "", "", "", "", ""}
		if p.Record != nil {
			vals[2], vals[3], vals[4], vals[5] = p.Record.Actividad, p.Record.Progresivas, p.Record.Ubicacion, p.Record.Etapa
			vals[6] = truncate(p.Record.Descripcion, 500)
		}
		if p.Failure != nil {
			vals[7] = fmt.Sprintf("%s (%s): %s", p.Failure.Kind, p.Failure.Stage, truncate(p.Failure.Error, 300))
		}
		writeRow(f, pagesSheet, row, vals...)
		row++
	}
	_ = f.SetColWidth(pagesSheet, "A", "B", 12)
	_ = f.SetColWidth(pagesSheet, "C", "C", 40)
	_ = f.SetColWidth(pagesSheet, "D", "F", 22)
	_ = f.SetColWidth(pagesSheet, "G", "H", 60)

	writeRow(f, activitiesSheet, 1, "Orden", "Código", "Actividad", "Reconocida", "Páginas", "Documento", "Error")
	for i, a := range sum.Activities {
		pages := make([]string, len(a.Pages))
		for j, p := range a.Pages {
			pages[j] = fmt.Sprint(p)
		}
		recognized := "no"
		if a.Recognized {
			recognized = "sí"
		}
		writeRow(f, activitiesSheet, i+2, i+1, a.Code, a.Name, recognized, strings.Join(pages, ", "), a.Document, a.Error)
	}
	_ = f.SetColWidth(activitiesSheet, "A", "B", 10)
	_ = f.SetColWidth(activitiesSheet, "C", "C", 48)
	_ = f.SetColWidth(activitiesSheet, "D", "E", 14)
	_ = f.SetColWidth(activitiesSheet, "F", "G", 60)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"run_id", sum.RunID,
		"pages", len(sum.Pages),
		"activities", len(sum.Activities),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, vals ...any) {
	for i, v := range vals {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
