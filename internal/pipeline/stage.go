// Package pipeline runs a lead through research, enrichment, scoring,
// drafting, review and sending. Stages return partial updates that the
// orchestrator merges into the stored lead.
package pipeline

import (
	"context"
	"time"

	"github.com/sells-group/lead-qualifier/internal/email"
	"github.com/sells-group/lead-qualifier/internal/llm"
	"github.com/sells-group/lead-qualifier/internal/model"
	"github.com/sells-group/lead-qualifier/internal/research"
	"github.com/sells-group/lead-qualifier/internal/store"
)

// Stage names a node of the workflow graph.
type Stage string

const (
	StageStart       Stage = "start"
	StageIngest      Stage = "ingest"
	StageResearch    Stage = "research"
	StageEnrich      Stage = "enrich"
	StageScore       Stage = "score"
	StageDraft       Stage = "draft"
	StageHumanReview Stage = "human_review"
	StageSend        Stage = "send"
	StageAutoReject  Stage = "auto_reject"
	StageEnd         Stage = "end"
)

// StageFunc reads the current lead and returns the fields it changed.
type StageFunc func(ctx context.Context, lead *model.Lead) (*model.LeadDelta, error)

// DefaultSenderName signs drafted emails when neither the lead nor the
// configuration names a sender.
const DefaultSenderName = "NexusAI Team"

// Stages holds the collaborators shared by the stage functions.
type Stages struct {
	Research   research.Service
	Generator  llm.Generator
	Sender     email.Sender
	EmailLog   store.Store
	Rubric     model.Rubric
	SenderName string

	// now is swapped in tests.
	now func() time.Time
}

// Funcs returns the stage table used by the orchestrator. human_review is
// handled by the orchestrator itself.
func (s *Stages) Funcs() map[Stage]StageFunc {
	return map[Stage]StageFunc{
		StageIngest:     s.Ingest,
		StageResearch:   s.ResearchLead,
		StageEnrich:     s.Enrich,
		StageScore:      s.Score,
		StageDraft:      s.Draft,
		StageSend:       s.Send,
		StageAutoReject: s.AutoReject,
	}
}

func (s *Stages) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now().UTC()
}

// stamp sets UpdatedAt on d and returns it.
func (s *Stages) stamp(d *model.LeadDelta) *model.LeadDelta {
	d.UpdatedAt = model.Ptr(s.clock())
	return d
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
