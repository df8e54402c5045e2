package pipeline

import "newsrelay/internal/model"

// Outcome is the terminal state reached by a candidate.
type Outcome string

// Candidate outcomes.
const (
	OutcomeExcluded   Outcome = "excluded"   // author on the exclusion list
	OutcomeRejected   Outcome = "rejected"   // reject rule or default
	OutcomeModeration Outcome = "moderation" // queued for review
	OutcomeDuplicate  Outcome = "duplicate"  // hash already in the ledger
	OutcomeEdited     Outcome = "edited"     // near duplicate, prior message edited
	OutcomePublished  Outcome = "published"
	OutcomeFailed     Outcome = "failed"
)

// FailureKind classifies what went wrong while handling a candidate.
type FailureKind string

// Failure kinds.
const (
	FailureNone     FailureKind = "none"
	FailureLedger   FailureKind = "ledger"
	FailureDelivery FailureKind = "delivery"
	FailureEdit     FailureKind = "edit"
)

// Result is the per-candidate outcome of a run. Failure and Err may be set
// for a non-failed outcome when a step degraded, e.g. an edit that fell back
// to a new post or a ledger write that failed after delivery.
type Result struct {
	Candidate model.Candidate
	Outcome   Outcome
	Failure   FailureKind
	Err       error
	MessageID int64
}

// Advances reports whether the candidate counts as handled for the
// boundary cursor.
func (r Result) Advances() bool {
	return r.Outcome != OutcomeFailed && r.Outcome != OutcomeDuplicate
}

// Report summarizes a run.
type Report struct {
	Results  []Result
	Boundary model.BoundaryCursor
}

// Count returns how many results reached outcome o.
func (r *Report) Count(o Outcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == o {
			n++
		}
	}
	return n
}
