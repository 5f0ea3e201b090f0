package pipeline

import (
	"fmt"
	"time"

	"github.com/sells-group/lead-qualifier/internal/model"
)

const reviewMessage = "Please review this lead and approve or reject."

// ReviewDelta turns a reviewer decision into the review stage's update.
// Unknown actions reject the lead.
func ReviewDelta(dec model.ReviewDecision, now time.Time) *model.LeadDelta {
	var d *model.LeadDelta
	switch dec.Action {
	case model.ActionApprove:
		d = model.StatusDelta(model.StatusApproved)
		if dec.EditedEmailSubject != "" {
			d.DraftEmailSubject = model.Ptr(dec.EditedEmailSubject)
		}
		if dec.EditedEmailBody != "" {
			d.DraftEmailBody = model.Ptr(dec.EditedEmailBody)
		}
	case model.ActionRescore:
		d = model.StatusDelta(model.StatusNew)
	default:
		d = model.StatusDelta(model.StatusRejected)
	}
	d.HumanFeedback = model.Ptr(dec.Feedback)
	d.UpdatedAt = &now
	return d
}

// BuildPayload assembles what a reviewer sees for a suspended lead.
func BuildPayload(l *model.Lead, reason string) model.ReviewPayload {
	return model.ReviewPayload{
		LeadID:            l.LeadID,
		CompanyName:       l.CompanyName,
		Score:             l.Score,
		Confidence:        l.Confidence,
		ReasonForReview:   reason,
		ScoreBreakdown:    append(model.ScoreBreakdown(nil), l.ScoreBreakdown...),
		DraftEmailSubject: l.DraftEmailSubject,
		DraftEmailBody:    l.DraftEmailBody,
		Message:           reviewMessage,
	}
}

func autoRejectReason(score int) string {
	return fmt.Sprintf("Auto-rejected: Score %d/100 is below minimum threshold.", score)
}
