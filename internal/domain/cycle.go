package domain

import "time"

// Outcome is what happened to one content item during a scan cycle
type Outcome string

const (
	OutcomeRouted         Outcome = "routed"
	OutcomeHeld           Outcome = "held" // valid but its approval state is not persisted
	OutcomeUnrouted       Outcome = "unrouted"
	OutcomeInvalid        Outcome = "invalid"
	OutcomeNoTranscript   Outcome = "no_transcript"
	OutcomeAnalysisFailed Outcome = "analysis_failed"
	OutcomeFailed         Outcome = "failed"
)

// ItemOutcome records one item's trip through the pipeline.
type ItemOutcome struct {
	CreatorID   string        `json:"creator_id"`
	ItemID      string        `json:"item_id"`
	Title       string        `json:"title,omitempty"`
	Outcome     Outcome       `json:"outcome"`
	State       ApprovalState `json:"state,omitempty"`
	Score       *int          `json:"score,omitempty"`
	Method      string        `json:"method,omitempty"`
	Files       []string      `json:"files,omitempty"`
	Error       string        `json:"error,omitempty"`
	ProcessedAt time.Time     `json:"processed_at"`
}

// CycleSummary aggregates one scan cycle. Processed counts items whose
// insight was written to at least one agent.
type CycleSummary struct {
	ID         string                `json:"id"`
	Tier       string                `json:"tier"`
	StartedAt  time.Time             `json:"started_at"`
	FinishedAt time.Time             `json:"finished_at"`
	Processed  map[string]int        `json:"processed"`
	Total      int                   `json:"total"`
	Outcomes   map[Outcome]int       `json:"outcomes"`
	States     map[ApprovalState]int `json:"states,omitempty"`
	Written    []string              `json:"written,omitempty"`
	Items      []ItemOutcome         `json:"items,omitempty"`
	Error      string                `json:"error,omitempty"`
}

// TierLabel returns the tier name used for a filter, "all" when unset.
func TierLabel(tier *Priority) string {
	if tier == nil {
		return "all"
	}
	return string(*tier)
}

// Duration is how long the cycle ran.
func (s *CycleSummary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}
