package organize

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/joseph-ayodele/photo-panels/constants"
	"github.com/joseph-ayodele/photo-panels/internal/common"
	"github.com/joseph-ayodele/photo-panels/internal/extract"
	"github.com/joseph-ayodele/photo-panels/internal/llm"
)

// PageResult is the outcome of one panel page: a record on success or a typed failure.
// Panel and Text are kept when they were produced, even if a later stage failed.
type PageResult struct {
	PageIndex   int
	Panel       *extract.Panel
	Text        *extract.TextBlock
	Record      *llm.AnalysisRecord
	RawResponse []byte
	Failure     *common.StageError
}

// OK reports a successfully analysed page.
func (r PageResult) OK() bool {
	return r.Failure == nil && r.Record != nil
}

// FailureMarker is the serialised form of a page failure.
type FailureMarker struct {
	Kind        common.ErrorKind `json:"kind"`
	Stage       string           `json:"stage"`
	Error       string           `json:"error"`
	RawResponse string           `json:"raw_response,omitempty"`
}

// PageEntry is the bundle's record of one page.
type PageEntry struct {
	Page     int                           `json:"page"`
	Dir      string                        `json:"dir"`
	Status   constants.PageStatus          `json:"status"`
	Images   map[constants.Position]string `json:"images,omitempty"`
	Text     string                        `json:"text,omitempty"`
	Analysis string                        `json:"analysis,omitempty"`
	Record   *llm.AnalysisRecord           `json:"record,omitempty"`
	Failure  *FailureMarker                `json:"failure,omitempty"`
}

// WritePage persists a page's artifacts under its own directory and returns its entry.
// It touches nothing outside that directory, so workers may call it concurrently.
func WritePage(l Layout, r PageResult) (PageEntry, error) {
	entry := PageEntry{Page: r.PageIndex, Dir: l.PageDir(r.PageIndex), Status: constants.PageStatusAnalyzed}
	if err := os.MkdirAll(entry.Dir, 0o755); err != nil {
		return entry, fmt.Errorf("create page dir: %w", err)
	}

	if r.Panel != nil {
		entry.Images = make(map[constants.Position]string, len(r.Panel.Images))
		for _, img := range r.Panel.Ordered() {
			path := l.ImagePath(r.PageIndex, img.Position)
			if err := WriteFileAtomic(path, img.PNG); err != nil {
				return entry, fmt.Errorf("write %s: %w", img.Position, err)
			}
			entry.Images[img.Position] = path
		}
	}
	if r.Text != nil {
		path := l.TextPath(r.PageIndex)
		if err := WriteFileAtomic(path, []byte(RenderText(*r.Text))); err != nil {
			return entry, fmt.Errorf("write text: %w", err)
		}
		entry.Text = path
	}
	if r.Record != nil && r.Failure == nil {
		b, err := json.MarshalIndent(r.Record, "", "  ")
		if err != nil {
			return entry, fmt.Errorf("encode analysis: %w", err)
		}
		path := l.AnalysisPath(r.PageIndex)
		if err := WriteFileAtomic(path, b); err != nil {
			return entry, fmt.Errorf("write analysis: %w", err)
		}
		entry.Analysis = path
		entry.Record = r.Record
	}
	if r.Failure != nil {
		entry.Status = constants.PageStatusFailed
		entry.Failure = markerFor(r)
	}
	return entry, nil
}

func markerFor(r PageResult) *FailureMarker {
	m := &FailureMarker{
		Kind:  r.Failure.Kind,
		Stage: r.Failure.Stage,
		Error: r.Failure.Error(),
	}
	if len(r.RawResponse) > 0 {
		m.RawResponse = string(r.RawResponse)
	}
	return m
}

// RenderText renders a text block as the page's text artifact.
func RenderText(b extract.TextBlock) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Texto de la Página %d\n\n", b.PageIndex)
	blank := false
	for _, l := range b.Lines {
		if strings.TrimSpace(l.Text) == "" {
			if !blank {
				sb.WriteByte('\n')
			}
			blank = true
			continue
		}
		blank = false
		if l.Heading {
			sb.WriteString("## ")
		} else {
			sb.WriteString(strings.Repeat("  ", l.Indent))
		}
		sb.WriteString(l.Text)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Bundle is the run's page index. It has a single writer: the run coordinator.
type Bundle struct {
	layout  Layout
	entries map[int]PageEntry
}

func NewBundle(l Layout) *Bundle {
	return &Bundle{layout: l, entries: map[int]PageEntry{}}
}

func (b *Bundle) Layout() Layout {
	return b.layout
}

// Put records or replaces a page entry.
func (b *Bundle) Put(e PageEntry) {
	b.entries[e.Page] = e
}

// MarkFailed records a failure marker for a page that produced no entry.
func (b *Bundle) MarkFailed(page int, failure *common.StageError) {
	b.entries[page] = PageEntry{
		Page:    page,
		Dir:     b.layout.PageDir(page),
		Status:  constants.PageStatusFailed,
		Failure: &FailureMarker{Kind: failure.Kind, Stage: failure.Stage, Error: failure.Error()},
	}
}

// Entries returns all entries ordered by page.
func (b *Bundle) Entries() []PageEntry {
	out := make([]PageEntry, 0, len(b.entries))
	for _, e := range b.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Page < out[j].Page })
	return out
}

// Failed counts failure markers.
func (b *Bundle) Failed() int {
	n := 0
	for _, e := range b.entries {
		if e.Failure != nil {
			n++
		}
	}
	return n
}
