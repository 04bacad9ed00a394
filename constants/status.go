package constants

// PageStatus is the canonical status for rows in page_results.
type PageStatus string

// Stable values (store these exact strings in DB).
const (
	PageStatusQueued   PageStatus = "QUEUED"   // classified as panel, waiting for a worker
	PageStatusAnalyzed PageStatus = "ANALYZED" // analysis record accepted
	PageStatusFailed   PageStatus = "FAILED"   // terminal failure
)

// RunStatus is the canonical status for rows in runs.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusCompleted RunStatus = "COMPLETED"
	RunStatusFailed    RunStatus = "FAILED"
	RunStatusCanceled  RunStatus = "CANCELED"
)

// Stage names used in errors, logs and the ledger.
const (
	StageInput          = "input"
	StageClassification = "classification"
	StageImages         = "images"
	StageText           = "text"
	StageAnalysis       = "analysis"
	StageGeneration     = "generation"
	StageUnification    = "unification"
	StageOutput         = "output"
	StageCanceled       = "canceled"
)
