// Package confidence gates analyzed insights and maps confidence scores to
// approval states.
package confidence

import (
	"fmt"
	"strings"

	"github.com/cloo-solutions/insightd/internal/domain"
)

const (
	MinScore = 0
	MaxScore = 100
)

// Thresholds are the three ordered cut points Reject < Review < Approve
type Thresholds struct {
	Reject  int
	Review  int
	Approve int
}

// DefaultThresholds mirrors the configuration defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{Reject: 50, Review: 70, Approve: 85}
}

// Validate checks the thresholds are strictly ordered inside [0,100].
func (t Thresholds) Validate() error {
	if t.Reject < MinScore || t.Approve > MaxScore || !(t.Reject < t.Review && t.Review < t.Approve) {
		return domain.Wrap(domain.ErrInvalidThresholds,
			fmt.Errorf("reject=%d review=%d approve=%d", t.Reject, t.Review, t.Approve))
	}
	return nil
}

// Status maps a score to its approval band. It is total: scores outside
// [0,100] fall into the nearest band.
func (t Thresholds) Status(score int) domain.ApprovalState {
	switch {
	case score >= t.Approve:
		return domain.ApprovalApproved
	case score >= t.Review:
		return domain.ApprovalPendingReview
	case score >= t.Reject:
		return domain.ApprovalFlagged
	default:
		return domain.ApprovalRejected
	}
}

// Validate checks that an insight carries every required field, a score in
// [0,100] and at least one key insight.
func Validate(in *domain.Insight) error {
	if in == nil {
		return domain.Wrap(domain.ErrMissingRequiredField, fmt.Errorf("insight is nil"))
	}

	var missing []string
	if strings.TrimSpace(in.PrimaryTopic) == "" {
		missing = append(missing, "primary_topic")
	}
	if in.KeyInsights == nil {
		missing = append(missing, "key_insights")
	}
	if strings.TrimSpace(in.KnowledgeCategory) == "" {
		missing = append(missing, "knowledge_category")
	}
	if in.ConfidenceScore == nil {
		missing = append(missing, "confidence_score")
	}
	if in.TargetAgents == nil {
		missing = append(missing, "target_agents")
	}
	if len(missing) > 0 {
		return domain.Wrap(domain.ErrMissingRequiredField, fmt.Errorf("%s", strings.Join(missing, ", ")))
	}

	if score := *in.ConfidenceScore; score < MinScore || score > MaxScore {
		return domain.Wrap(domain.ErrScoreOutOfRange, fmt.Errorf("%d", score))
	}

	nonEmpty := 0
	for _, k := range in.KeyInsights {
		if strings.TrimSpace(k) != "" {
			nonEmpty++
		}
	}
	if nonEmpty == 0 {
		return domain.ErrEmptyKeyInsights
	}

	return nil
}

// Valid is the boolean form of Validate.
func Valid(in *domain.Insight) bool {
	return Validate(in) == nil
}
