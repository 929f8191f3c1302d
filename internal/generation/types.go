package generation

import (
	"botforge/internal/requirements"
)

// Role identifies which structural part of the target project an artifact
// covers.
type Role string

const (
	RoleBackend Role = "backend"
	RoleUI      Role = "ui"
)

// Request asks a worker for one artifact. Immutable once created; the
// correlation ID ties it to its eventual Result across the async boundary.
type Request struct {
	CorrelationID string
	Role          Role
	Spec          requirements.Payload
}

// ResultKind classifies the outcome of a generation request.
type ResultKind string

const (
	// ResultSuccess means an attempt passed the acceptance heuristic.
	ResultSuccess ResultKind = "success"
	// ResultIncomplete means every attempt failed acceptance but none raised
	// a transport error on the final try; the last attempt's text is carried
	// as best effort.
	ResultIncomplete ResultKind = "incomplete"
	// ResultFailed means the final attempt raised a transport error, or the
	// request was cancelled before any attempt succeeded.
	ResultFailed ResultKind = "failed"
)

// Result is the value a worker produces. Transport errors and rejected
// content never escape as Go errors; they are absorbed here.
type Result struct {
	CorrelationID string
	Role          Role
	Kind          ResultKind
	Text          string
	Reason        string
	Attempts      int
}

// Usable reports whether the result carries text the assembler may consume.
func (r Result) Usable() bool {
	return r.Kind == ResultSuccess || r.Kind == ResultIncomplete
}
