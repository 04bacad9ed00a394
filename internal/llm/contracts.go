package llm

import "context"

// AnalysisRecord is the structured reading of one panel page. All five keys are always
// present; only Descripcion may be empty.
type AnalysisRecord struct {
	Actividad   string `json:"actividad"`
	Progresivas string `json:"progresivas"`
	Ubicacion   string `json:"ubicacion"`
	Etapa       string `json:"etapa"`
	Descripcion string `json:"descripcion"`
}

// Field is a printable label/value pair.
type Field struct {
	Label string
	Value string
}

// Fields returns the record as labelled pairs in display order.
func (r AnalysisRecord) Fields() []Field {
	return []Field{
		{Label: "Actividad", Value: r.Actividad},
		{Label: "Progresivas", Value: r.Progresivas},
		{Label: "Ubicación", Value: r.Ubicacion},
		{Label: "Etapa", Value: r.Etapa},
		{Label: "Descripción", Value: r.Descripcion},
	}
}

type AnalyzeRequest struct {
	PageIndex int
	Text      string
}

// Analyzer is the interface our pipeline depends on.
type Analyzer interface {
	Analyze(ctx context.Context, req AnalyzeRequest) (AnalysisRecord, []byte /*rawJSON*/, error)
}

// CompletionRequest is one call to the model service.
type CompletionRequest struct {
	Model       string
	System      string
	User        string
	Schema      map[string]any
	Temperature float32
	MaxTokens   int
}

// Model is the black-box language model: a prompt in, the raw message content out.
type Model interface {
	Complete(ctx context.Context, req CompletionRequest) ([]byte, error)
}

// ModelFunc adapts a function to Model.
type ModelFunc func(ctx context.Context, req CompletionRequest) ([]byte, error)

func (f ModelFunc) Complete(ctx context.Context, req CompletionRequest) ([]byte, error) {
	return f(ctx, req)
}
