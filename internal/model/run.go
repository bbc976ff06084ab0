package model

import "time"

// RunStatus represents the current state of an analysis run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Terminal reports whether no further transitions are expected.
func (s RunStatus) Terminal() bool {
	return s == RunStatusComplete || s == RunStatusFailed
}

// Run represents a single analysis of a subject company.
type Run struct {
	ID             string          `json:"id"`
	SubjectCompany string          `json:"subject_company"`
	CacheKey       string          `json:"cache_key"`
	Status         RunStatus       `json:"status"`
	Result         *AnalysisResult `json:"result,omitempty"`
	Error          string          `json:"error,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// RunFilter narrows a run listing.
type RunFilter struct {
	Status         RunStatus
	SubjectCompany string
	Limit          int
	Offset         int
}
