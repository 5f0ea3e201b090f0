package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/lead-qualifier/internal/model"
)

// Email log statuses.
const (
	EmailStatusSent   = "sent"
	EmailStatusFailed = "failed"
)

// Send delivers the draft to the contact. Delivery problems mark the lead
// failed rather than aborting the run.
func (s *Stages) Send(ctx context.Context, l *model.Lead) (*model.LeadDelta, error) {
	log := zap.L().With(zap.String("company", l.CompanyName), zap.String("to", l.ContactEmail))

	if l.ContactEmail == "" {
		return s.sendFailed("No contact email available"), nil
	}
	if l.DraftEmailSubject == "" || l.DraftEmailBody == "" {
		return s.sendFailed("No email draft available"), nil
	}

	ok, err := s.Sender.Send(ctx, l.ContactEmail, l.DraftEmailSubject, l.DraftEmailBody)

	entry := &model.EmailLog{
		LeadID:  l.LeadID,
		ToEmail: l.ContactEmail,
		Subject: l.DraftEmailSubject,
		Body:    l.DraftEmailBody,
		Status:  EmailStatusSent,
		SentAt:  s.clock(),
	}
	var d *model.LeadDelta
	switch {
	case err != nil:
		log.Error("send: delivery error", zap.Error(err))
		entry.Status, entry.Error = EmailStatusFailed, err.Error()
		d = s.sendFailed(err.Error())
	case !ok:
		log.Warn("send: delivery returned failure")
		entry.Status, entry.Error = EmailStatusFailed, "Email sending returned failure"
		d = s.sendFailed(entry.Error)
	default:
		log.Info("send: email sent")
		d = s.stamp(model.StatusDelta(model.StatusSent))
	}

	if s.EmailLog != nil {
		if logErr := s.EmailLog.LogEmail(ctx, entry); logErr != nil {
			log.Warn("send: email log write failed", zap.Error(logErr))
		}
	}
	return d, nil
}

func (s *Stages) sendFailed(msg string) *model.LeadDelta {
	d := s.stamp(model.StatusDelta(model.StatusFailed))
	d.ErrorMessage = &msg
	return d
}

// AutoReject closes out leads that scored below the reject threshold.
func (s *Stages) AutoReject(_ context.Context, l *model.Lead) (*model.LeadDelta, error) {
	zap.L().Info("auto_reject: lead rejected", zap.String("company", l.CompanyName), zap.Int("score", l.Score))
	d := s.stamp(model.StatusDelta(model.StatusRejected))
	d.HumanReviewReason = model.Ptr(autoRejectReason(l.Score))
	return d, nil
}
