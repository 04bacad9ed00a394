package common

import (
	"errors"
	"fmt"

	"github.com/joseph-ayodele/photo-panels/constants"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrDatabase     = errors.New("database error")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}


// ErrorKind is the pipeline error taxonomy.
type ErrorKind string

const (
	KindInput             ErrorKind = "InputError"
	KindClassification    ErrorKind = "ClassificationError"
	KindQuadrantAmbiguity ErrorKind = "QuadrantAmbiguityError"
	KindExtraction        ErrorKind = "ExtractionError"
	KindAnalysis          ErrorKind = "AnalysisError"
	KindGeneration        ErrorKind = "GenerationError"
	KindUnification       ErrorKind = "UnificationError"
	KindCanceled          ErrorKind = "CanceledError"
)

// Sentinels matching each kind through errors.Is.
var (
	ErrInput             = errors.New("input error")
	ErrClassification    = errors.New("classification error")
	ErrQuadrantAmbiguity = errors.New("quadrant ambiguity")
	ErrExtraction        = errors.New("extraction error")
	ErrAnalysis          = errors.New("analysis error")
	ErrGeneration        = errors.New("generation error")
	ErrUnification       = errors.New("unification error")
	ErrCanceled          = errors.New("canceled")
)

var kindSentinels = map[ErrorKind]error{
	KindInput:             ErrInput,
	KindClassification:    ErrClassification,
	KindQuadrantAmbiguity: ErrQuadrantAmbiguity,
	KindExtraction:        ErrExtraction,
	KindAnalysis:          ErrAnalysis,
	KindGeneration:        ErrGeneration,
	KindUnification:       ErrUnification,
	KindCanceled:          ErrCanceled,
}

// StageError is a pipeline failure tagged with the stage and the page or activity it concerns.
// PageIndex is 0 when the error is not page scoped.
type StageError struct {
	Kind      ErrorKind
	Stage     string
	PageIndex int
	Activity  string
	Cause     error
}

func (e *StageError) Error() string {
	msg := fmt.Sprintf("%s [stage=%s", e.Kind, e.Stage)
	if e.PageIndex > 0 {
		msg += fmt.Sprintf(" page=%d", e.PageIndex)
	}
	if e.Activity != "" {
		msg += fmt.Sprintf(" activity=%q", e.Activity)
	}
	msg += "]"
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *StageError) Unwrap() error {
	return e.Cause
}

// Is lets errors.Is(err, ErrAnalysis) match a StageError of that kind.
func (e *StageError) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

// Fatal reports whether the error stops the whole run.
func (e *StageError) Fatal() bool {
	switch e.Kind {
	case KindInput, KindClassification, KindUnification, KindCanceled:
		return true
	}
	return false
}

func NewStageError(kind ErrorKind, stage string, page int, cause error) *StageError {
	return &StageError{Kind: kind, Stage: stage, PageIndex: page, Cause: cause}
}

func InputError(cause error) *StageError {
	return NewStageError(KindInput, constants.StageInput, 0, cause)
}

func ClassificationError(cause error) *StageError {
	return NewStageError(KindClassification, constants.StageClassification, 0, cause)
}

func QuadrantAmbiguityError(page int, cause error) *StageError {
	return NewStageError(KindQuadrantAmbiguity, constants.StageImages, page, cause)
}

func ExtractionError(stage string, page int, cause error) *StageError {
	return NewStageError(KindExtraction, stage, page, cause)
}

func AnalysisFailure(page int, cause error) *StageError {
	return NewStageError(KindAnalysis, constants.StageAnalysis, page, cause)
}

func CanceledError(page int, cause error) *StageError {
	return NewStageError(KindCanceled, constants.StageCanceled, page, cause)
}

func GenerationError(activity string, cause error) *StageError {
	return &StageError{Kind: KindGeneration, Stage: constants.StageGeneration, Activity: activity, Cause: cause}
}

func UnificationError(activity string, cause error) *StageError {
	return &StageError{Kind: KindUnification, Stage: constants.StageUnification, Activity: activity, Cause: cause}
}

// AsStageError returns the first StageError in err's chain.
func AsStageError(err error) (*StageError, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
