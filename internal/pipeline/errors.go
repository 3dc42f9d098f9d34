package pipeline

import (
	"github.com/rotisserie/eris"
)

// Stage-fatal error sentinels. Record-level failures never surface here;
// they accumulate in the run report instead.
var (
	// ErrTimeout marks a run that hit its configured deadline.
	ErrTimeout = eris.New("pipeline: run timed out")

	// ErrNoRecords marks a run where no record survived mapping.
	ErrNoRecords = eris.New("pipeline: no records survived mapping")

	// ErrRejectRatio marks a run whose mapping reject ratio breached the
	// acceptance threshold.
	ErrRejectRatio = eris.New("pipeline: reject ratio exceeds acceptance threshold")
)
