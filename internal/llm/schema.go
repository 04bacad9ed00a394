package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// RecordKeys lists the analysis keys in display order.
var RecordKeys = []string{"actividad", "progresivas", "ubicacion", "etapa", "descripcion"}

// BuildAnalysisJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a generic map.
// We pass it to the model as the output contract and also use it locally to validate.
func BuildAnalysisJSONSchema() map[string]any {
	props := map[string]any{
		"actividad":   map[string]any{"type": "string", "minLength": 1},
		"progresivas": map[string]any{"type": "string", "minLength": 1},
		"ubicacion":   map[string]any{"type": "string", "minLength": 1},
		"etapa":       map[string]any{"type": "string", "minLength": 1},
		"descripcion": map[string]any{"type": "string"},
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"required":             RecordKeys,
	}
}

var (
	compiledOnce sync.Once
	compiled     *jsonschema.Schema
	compileErr   error
)

func analysisSchema() (*jsonschema.Schema, error) {
	compiledOnce.Do(func() {
		compiled, compileErr = CompileSchema(BuildAnalysisJSONSchema())
	})
	return compiled, compileErr
}

// CompileSchema compiles a schema map.
func CompileSchema(schemaMap map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

// ValidateJSONAgainstSchema validates "data" against a compiled schema.
func ValidateJSONAgainstSchema(schema *jsonschema.Schema, data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}

// ParseAnalysis turns model output into a record: fences stripped, schema validated,
// strictly decoded. The cleaned content is returned even on failure.
func ParseAnalysis(raw []byte) (AnalysisRecord, []byte, error) {
	content := StripCodeFences(raw)
	if len(content) == 0 {
		return AnalysisRecord{}, content, fmt.Errorf("empty response")
	}
	schema, err := analysisSchema()
	if err != nil {
		return AnalysisRecord{}, content, err
	}
	if err := ValidateJSONAgainstSchema(schema, content); err != nil {
		return AnalysisRecord{}, content, err
	}

	dec := json.NewDecoder(bytes.NewReader(content))
	dec.DisallowUnknownFields()
	var out AnalysisRecord
	if err := dec.Decode(&out); err != nil {
		return AnalysisRecord{}, content, fmt.Errorf("unmarshal record: %w", err)
	}
	return out, content, nil
}
