package pipeline

import "errors"

// Terminal failure reasons. Worker-level transport errors and rejected
// content never surface here; they are absorbed into GenerationResult
// values. These reasons attach to an Aborted (or Completed-with-warning)
// run; they are never raised as panics out of the coordinator.
var (
	// ErrStageTimeout marks a role whose result never arrived before the
	// generation deadline.
	ErrStageTimeout = errors.New("generation deadline elapsed before a result arrived")

	// ErrAssemblyNeverAttempted marks a run aborted because the backend
	// artifact was unusable; the assembler is never invoked.
	ErrAssemblyNeverAttempted = errors.New("backend generation failed, assembly never attempted")

	// ErrRunCancelled marks a run cancelled by its caller.
	ErrRunCancelled = errors.New("run cancelled")
)
