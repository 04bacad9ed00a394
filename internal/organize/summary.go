package organize

import (
	"encoding/json"
	"fmt"
	"time"
)

// ActivitySummary is the serialised form of an Activity.
type ActivitySummary struct {
	Name       string `json:"name"`
	Code       string `json:"code,omitempty"`
	Recognized bool   `json:"recognized"`
	Pages      []int  `json:"pages"`
	Document   string `json:"document,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Summary is the run-level JSON artifact.
type Summary struct {
	RunID          string            `json:"run_id"`
	Source         string            `json:"source"`
	GeneratedAt    time.Time         `json:"generated_at"`
	TotalPages     int               `json:"total_pages"`
	PanelPages     int               `json:"panel_pages"`
	TextPages      int               `json:"text_pages"`
	PagesProcessed int               `json:"pages_processed"`
	PagesFailed    int               `json:"pages_failed"`
	Activities     []ActivitySummary `json:"activities"`
	Pages          []PageEntry       `json:"pages"`
	Unified        string            `json:"unified,omitempty"`
}

// Summarize builds the summary skeleton from the bundle and the grouped activities.
func Summarize(b *Bundle, activities []Activity) Summary {
	s := Summary{
		GeneratedAt: time.Now().UTC(),
		Pages:       b.Entries(),
		Activities:  make([]ActivitySummary, 0, len(activities)),
	}
	for _, e := range s.Pages {
		if e.Failure == nil && e.Record != nil {
			s.PagesProcessed++
		}
	}
	s.PagesFailed = b.Failed()
	for _, a := range activities {
		s.Activities = append(s.Activities, ActivitySummary{
			Name:       a.Name,
			Code:       a.Code,
			Recognized: a.Recognized,
			Pages:      append([]int(nil), a.Pages...),
		})
	}
	return s
}

// WriteSummary writes the summary JSON atomically.
func WriteSummary(path string, s Summary) error {
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	return WriteFileAtomic(path, b)
}
