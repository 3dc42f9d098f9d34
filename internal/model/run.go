package model

import (
	"sort"
	"time"
)

// RunState is the orchestrator state machine position. A run moves
// Idle → Validating → Reading → Mapping → Indexing → Resolving → Completed,
// with Failed reachable from any stage.
type RunState string

const (
	RunIdle       RunState = "idle"
	RunValidating RunState = "validating"
	RunReading    RunState = "reading"
	RunMapping    RunState = "mapping"
	RunIndexing   RunState = "indexing"
	RunResolving  RunState = "resolving"
	RunCompleted  RunState = "completed"
	RunFailed     RunState = "failed"
)

// Terminal reports whether the state ends a run.
func (s RunState) Terminal() bool { return s == RunCompleted || s == RunFailed }

// StageResult records one pipeline stage's outcome.
type StageResult struct {
	Name     string        `json:"name"`
	Status   string        `json:"status"`
	Duration time.Duration `json:"duration"`
	Detail   string        `json:"detail,omitempty"`
}

// RunReport accumulates per-run counters and stage results. It is created
// when a run starts, appended to as the run progresses, and finalized once;
// a report is returned to the caller even when the run fails.
type RunReport struct {
	RunID         string         `json:"run_id"`
	Source        string         `json:"source"`
	SourceVersion string         `json:"source_version"`
	State         RunState       `json:"state"`
	StartedAt     time.Time      `json:"started_at"`
	FinishedAt    time.Time      `json:"finished_at"`
	RecordsRead   int            `json:"records_read"`
	RowsSkipped   int            `json:"rows_skipped"`
	Rejected      int            `json:"rejected"`
	RejectReasons map[string]int `json:"reject_reasons,omitempty"`
	Unlocated     int            `json:"unlocated"`
	Indexed       int            `json:"indexed"`
	Clusters      int            `json:"clusters"`
	Singletons    int            `json:"singletons"`
	ReviewFlagged int            `json:"review_flagged"`
	Stages        []StageResult  `json:"stages"`
	Error         string         `json:"error,omitempty"`
}

// NewRunReport starts a report in the Idle state.
func NewRunReport(runID, source, version string) *RunReport {
	return &RunReport{
		RunID:         runID,
		Source:        source,
		SourceVersion: version,
		State:         RunIdle,
		StartedAt:     time.Now().UTC(),
		RejectReasons: make(map[string]int),
	}
}

// Reject counts one rejected record under the given reason.
func (r *RunReport) Reject(reason string) {
	r.Rejected++
	r.RejectReasons[reason]++
}

// AddStage appends a stage result.
func (r *RunReport) AddStage(name, status string, d time.Duration, detail string) {
	r.Stages = append(r.Stages, StageResult{Name: name, Status: status, Duration: d, Detail: detail})
}

// Finalize stamps the terminal state and finish time. Idempotent on
// already-finalized reports.
func (r *RunReport) Finalize(state RunState) {
	if r.State.Terminal() {
		return
	}
	r.State = state
	r.FinishedAt = time.Now().UTC()
}

// RejectRatio returns rejected / read, 0 for an empty run.
func (r *RunReport) RejectRatio() float64 {
	if r.RecordsRead == 0 {
		return 0
	}
	return float64(r.Rejected) / float64(r.RecordsRead)
}

// TopRejectReasons returns reasons by descending count, ties alphabetical.
func (r *RunReport) TopRejectReasons(n int) []string {
	reasons := make([]string, 0, len(r.RejectReasons))
	for reason := range r.RejectReasons {
		reasons = append(reasons, reason)
	}
	sort.Slice(reasons, func(i, j int) bool {
		ci, cj := r.RejectReasons[reasons[i]], r.RejectReasons[reasons[j]]
		if ci != cj {
			return ci > cj
		}
		return reasons[i] < reasons[j]
	})
	if n > 0 && len(reasons) > n {
		reasons = reasons[:n]
	}
	return reasons
}
