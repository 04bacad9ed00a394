package llm

import (
	"fmt"

	"github.com/joseph-ayodele/photo-panels/internal/common"
)

// AnalysisError is returned once every attempt for a page has failed. RawResponse is the
// last content received (possibly empty when the last attempt timed out).
type AnalysisError struct {
	PageIndex   int
	Attempts    int
	RawResponse []byte
	Cause       error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analysis of page %d failed after %d attempt(s): %v", e.PageIndex, e.Attempts, e.Cause)
}

func (e *AnalysisError) Unwrap() error {
	return e.Cause
}

// Is matches common.ErrAnalysis.
func (e *AnalysisError) Is(target error) bool {
	return target == common.ErrAnalysis
}
