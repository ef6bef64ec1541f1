// Package detect decides whether a freshly extracted need reading is a
// genuine change, a repeat of an already-rejected reading, or nothing new.
// The evaluator is pure: it touches no storage and is deterministic over
// its inputs.
package detect

import (
	"github.com/google/uuid"

	"github.com/givefood/needwatch/internal/needtext"
)

// RecentRejectedLimit bounds how many prior rejected (non-published)
// readings are scanned for repeats. The bound is a behavioral contract:
// a reading older than the last ten rejections is treated as new again.
const RecentRejectedLimit = 10

// Reading is one observed need list, identified for audit purposes.
type Reading struct {
	ID         uuid.UUID
	NeedText   string
	ExcessText string
}

// Kind is the tri-state outcome of evaluating a candidate reading.
type Kind int

const (
	// NoChange means the candidate matches the currently published need.
	NoChange Kind = iota
	// Nonpertinent means the candidate repeats a previously rejected
	// reading; the repeated historical readings should be flagged.
	Nonpertinent
	// Change means the candidate should be persisted and published.
	Change
)

func (k Kind) String() string {
	switch k {
	case Nonpertinent:
		return "nonpertinent"
	case Change:
		return "change"
	default:
		return "no-change"
	}
}

// Reason tags reported in outcome order for the audit trail.
const (
	ReasonNonpubSame   = "Nonpub same"
	ReasonFirstNeed    = "First need"
	ReasonNeedChange   = "Last pub need change"
	ReasonExcessChange = "Last pub excess change"
)

// Outcome reports the decision plus the human-readable reasons behind it.
// NonpertinentIDs lists the rejected readings the candidate repeated; the
// caller flags those records idempotently.
type Outcome struct {
	Kind            Kind
	Reasons         []string
	NonpertinentIDs []uuid.UUID
}

// Evaluate compares a cleaned candidate reading against the last published
// need and the most recent rejected readings (at most RecentRejectedLimit).
// lastPublished is nil when the foodbank has never had a published need.
func Evaluate(needText, excessText string, lastPublished *Reading, recentRejected []Reading) Outcome {
	candNeed := needtext.Canonical(needText)
	candExcess := needtext.Canonical(excessText)

	if len(recentRejected) > RecentRejectedLimit {
		recentRejected = recentRejected[:RecentRejectedLimit]
	}

	var out Outcome
	for _, rejected := range recentRejected {
		if candNeed == needtext.Canonical(rejected.NeedText) &&
			candExcess == needtext.Canonical(rejected.ExcessText) {
			out.NonpertinentIDs = append(out.NonpertinentIDs, rejected.ID)
			out.Reasons = append(out.Reasons, ReasonNonpubSame)
		}
	}
	if len(out.NonpertinentIDs) > 0 {
		out.Kind = Nonpertinent
		return out
	}

	if lastPublished == nil {
		if candNeed != "" || candExcess != "" {
			out.Kind = Change
			out.Reasons = append(out.Reasons, ReasonFirstNeed)
		}
		return out
	}

	if candNeed != needtext.Canonical(lastPublished.NeedText) {
		out.Kind = Change
		out.Reasons = append(out.Reasons, ReasonNeedChange)
	}
	if candExcess != needtext.Canonical(lastPublished.ExcessText) {
		out.Kind = Change
		out.Reasons = append(out.Reasons, ReasonExcessChange)
	}
	return out
}
