package domain

import "time"

// ApprovalState is the review outcome derived from a confidence score
type ApprovalState string

const (
	ApprovalApproved      ApprovalState = "approved"
	ApprovalPendingReview ApprovalState = "pending_review"
	ApprovalFlagged       ApprovalState = "flagged"
	ApprovalRejected      ApprovalState = "rejected"
)

// ParseApprovalState parses one of the four approval state names.
func ParseApprovalState(value string) (ApprovalState, bool) {
	s := ApprovalState(value)
	switch s {
	case ApprovalApproved, ApprovalPendingReview, ApprovalFlagged, ApprovalRejected:
		return s, true
	}
	return "", false
}

// CodeSnippet is a code block referenced by an insight
type CodeSnippet struct {
	Language    string `json:"language,omitempty"`
	Description string `json:"description,omitempty"`
	Code        string `json:"code"`
}

// TimestampReference points at a moment in the source content
type TimestampReference struct {
	Timestamp   string `json:"timestamp"`
	Description string `json:"description,omitempty"`
}

// Insight is the structured result of analyzing one transcript.
//
// PrimaryTopic, KeyInsights, KnowledgeCategory, ConfidenceScore and
// TargetAgents are required; a nil ConfidenceScore or TargetAgents means the
// analysis omitted the field. An empty, non-nil TargetAgents is allowed and
// defers to the routing rules. The Source*, AnalyzedAt and Model fields are set
// by the analyzer, never by the model.
type Insight struct {
	PrimaryTopic        string               `json:"primary_topic"`
	KeyInsights         []string             `json:"key_insights"`
	KnowledgeCategory   string               `json:"knowledge_category"`
	ConfidenceScore     *int                 `json:"confidence_score"`
	TargetAgents        []string             `json:"target_agents"`
	TechnicalSettings   map[string]any       `json:"technical_settings,omitempty"`
	CodeSnippets        []CodeSnippet        `json:"code_snippets,omitempty"`
	WorkflowSteps       []string             `json:"workflow_steps,omitempty"`
	ToolsMentioned      []string             `json:"tools_mentioned,omitempty"`
	KeyTakeaways        []string             `json:"key_takeaways,omitempty"`
	TimestampReferences []TimestampReference `json:"timestamp_references,omitempty"`

	SourceItemID    string    `json:"source_item_id"`
	SourceCreatorID string    `json:"source_creator_id"`
	AnalyzedAt      time.Time `json:"analyzed_at"`
	Model           string    `json:"model"`
}

// Score returns the confidence score, or 0 when it is absent.
func (i *Insight) Score() int {
	if i == nil || i.ConfidenceScore == nil {
		return 0
	}
	return *i.ConfidenceScore
}

// IntPtr is a small helper for building insights in code.
func IntPtr(v int) *int {
	return &v
}
