package pipeline

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/lead-qualifier/internal/intake"
	"github.com/sells-group/lead-qualifier/internal/model"
)

// Ingest validates and normalizes the lead before research starts.
func (s *Stages) Ingest(_ context.Context, l *model.Lead) (*model.LeadDelta, error) {
	d := s.stamp(model.StatusDelta(model.StatusResearching))

	if l.LeadID == "" {
		d.LeadID = model.Ptr(uuid.New().String())
	}
	if l.Source == "" {
		d.Source = model.Ptr(model.SourceManual)
	}
	if l.CreatedAt.IsZero() {
		d.CreatedAt = model.Ptr(s.clock())
	}
	if l.SenderName == "" {
		d.SenderName = model.Ptr(s.senderName())
	}

	if l.CompanyWebsite != "" {
		if norm := intake.NormalizeURL(l.CompanyWebsite); norm != l.CompanyWebsite {
			d.CompanyWebsite = model.Ptr(norm)
		}
	}

	if l.ContactEmail != "" && !intake.IsValidEmail(l.ContactEmail) {
		zap.L().Warn("ingest: invalid contact email",
			zap.String("company", l.CompanyName),
			zap.String("email", l.ContactEmail),
		)
	}

	return d, nil
}

func (s *Stages) senderName() string {
	if s.SenderName != "" {
		return s.SenderName
	}
	return DefaultSenderName
}
