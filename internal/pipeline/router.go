package pipeline

import (
	"fmt"
	"math"
	"strings"

	"github.com/sells-group/lead-qualifier/internal/model"
)

// DefaultMinSendConfidence is the confidence a qualified lead needs to skip
// human review.
const DefaultMinSendConfidence = 0.7

// Router resolves the three junctions of the workflow graph. Every method is
// total: unexpected input routes to the conservative branch.
type Router struct {
	QualificationThreshold int
	AutoRejectThreshold    int
	MinSendConfidence      float64
}

// NewRouter builds a router from the rubric thresholds. A non-positive
// minConfidence uses DefaultMinSendConfidence.
func NewRouter(r model.Rubric, minConfidence float64) Router {
	if minConfidence <= 0 {
		minConfidence = DefaultMinSendConfidence
	}
	return Router{
		QualificationThreshold: r.QualificationThreshold,
		AutoRejectThreshold:    r.AutoRejectThreshold,
		MinSendConfidence:      minConfidence,
	}
}

// AfterScoring rejects leads below the auto-reject threshold and drafts
// for everything else.
func (r Router) AfterScoring(l *model.Lead) Stage {
	if l.Score < r.AutoRejectThreshold {
		return StageAutoReject
	}
	return StageDraft
}

// AfterDrafting sends only qualified, confident leads.
func (r Router) AfterDrafting(l *model.Lead) Stage {
	if l.Score >= r.QualificationThreshold && l.Confidence >= r.MinSendConfidence {
		return StageSend
	}
	return StageHumanReview
}

// AfterReview routes on the status the reviewer's decision produced.
func (r Router) AfterReview(l *model.Lead) Stage {
	switch l.Status {
	case model.StatusApproved:
		if l.DraftEmailBody != "" {
			return StageSend
		}
		return StageDraft
	case model.StatusNew:
		return StageResearch
	default:
		return StageAutoReject
	}
}

// ReviewReason explains to the reviewer why the lead was not sent
// automatically.
func (r Router) ReviewReason(l *model.Lead) string {
	switch {
	case l.Score >= r.QualificationThreshold && l.Confidence < r.MinSendConfidence:
		return fmt.Sprintf("Score is %d (qualified) but confidence is only %s. Research data may be incomplete.",
			l.Score, percent(l.Confidence))
	case l.Score >= r.AutoRejectThreshold:
		return fmt.Sprintf("Borderline score of %d/100. Key gaps: %s", l.Score, weakCriteria(l.ScoreBreakdown))
	default:
		return fmt.Sprintf("Low score of %d/100. Likely not a fit.", l.Score)
	}
}

func weakCriteria(b model.ScoreBreakdown) string {
	if len(b) == 0 {
		return "No scoring data available"
	}
	var weak []string
	for _, c := range b {
		if c.Weak() {
			weak = append(weak, fmt.Sprintf("%s (%d/%d)", c.Name, c.Score, c.Max))
		}
	}
	if len(weak) == 0 {
		return "All criteria scored above 50%"
	}
	return strings.Join(weak, ", ")
}

// percent formats a 0..1 ratio as a whole percentage, rounding half to even.
func percent(v float64) string {
	return fmt.Sprintf("%d%%", int(math.RoundToEven(v*100)))
}
