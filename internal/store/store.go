package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-qualifier/internal/model"
	"github.com/sells-group/lead-qualifier/internal/resilience"
)

// ErrCheckpointExists is returned when a run already has a live checkpoint.
var ErrCheckpointExists = eris.New("store: checkpoint already exists")

// DefaultListLimit applies when a filter leaves Limit unset.
const DefaultListLimit = 50

// LeadFilter specifies criteria for listing leads.
type LeadFilter struct {
	Status model.LeadStatus `json:"status,omitempty"`
	Limit  int              `json:"limit,omitempty"`
	Offset int              `json:"offset,omitempty"`
}

func (f LeadFilter) limit() int {
	if f.Limit <= 0 {
		return DefaultListLimit
	}
	return f.Limit
}

// Store is the persistence interface for leads, suspended runs, the email
// log and the dead letter queue. Getters return (nil, nil) for missing rows.
type Store interface {
	// Leads
	CreateLead(ctx context.Context, lead *model.Lead) (*model.Lead, error)
	GetLead(ctx context.Context, id string) (*model.Lead, error)
	UpdateLead(ctx context.Context, id string, delta *model.LeadDelta) (*model.Lead, error)
	ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error)
	DeleteLead(ctx context.Context, id string) (bool, error)
	ImportLeads(ctx context.Context, leads []model.Lead) (int, error)

	// Queries
	ReviewQueue(ctx context.Context, limit int) ([]model.Lead, error)
	StatusCounts(ctx context.Context) (map[string]int, error)
	ScoreDistribution(ctx context.Context) ([]model.ScoreBucket, error)
	Analytics(ctx context.Context) (*model.AnalyticsSummary, error)

	// Checkpoints
	SaveCheckpoint(ctx context.Context, cp model.Checkpoint) error
	LoadCheckpoint(ctx context.Context, runID string) (*model.Checkpoint, error)
	DeleteCheckpoint(ctx context.Context, runID string) error

	// Email log
	LogEmail(ctx context.Context, entry *model.EmailLog) error
	ListEmails(ctx context.Context, leadID string) ([]model.EmailLog, error)

	// Dead letter queue
	EnqueueDLQ(ctx context.Context, entry resilience.DLQEntry) error
	DequeueDLQ(ctx context.Context, filter resilience.DLQFilter) ([]resilience.DLQEntry, error)
	ListDLQ(ctx context.Context, limit int) ([]resilience.DLQEntry, error)
	IncrementDLQRetry(ctx context.Context, id string, nextRetryAt time.Time, lastErr string) error
	RemoveDLQ(ctx context.Context, id string) error
	CountDLQ(ctx context.Context) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// prepareLead fills the defaults every stored lead carries.
func prepareLead(l *model.Lead, now time.Time) *model.Lead {
	c := l.Clone()
	if c.LeadID == "" {
		c.LeadID = uuid.New().String()
	}
	if c.Source == "" {
		c.Source = model.SourceManual
	}
	if c.Status == "" {
		c.Status = model.StatusNew
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	c.Clamp()
	return c
}

// leadArgs returns the indexed column values followed by the JSON document,
// in the order of leadColumns.
func leadArgs(l *model.Lead) ([]any, error) {
	data, err := json.Marshal(l)
	if err != nil {
		return nil, eris.Wrapf(err, "marshal lead %s", l.LeadID)
	}
	return []any{
		l.LeadID, l.CompanyName, string(l.Status), l.Score, l.Confidence,
		l.ProcessingTimeSeconds, l.CreatedAt, l.UpdatedAt, data,
	}, nil
}

var leadColumns = []string{
	"lead_id", "company_name", "status", "score", "confidence",
	"processing_time_seconds", "created_at", "updated_at", "data",
}

func unmarshalLead(data []byte) (*model.Lead, error) {
	var l model.Lead
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, eris.Wrap(err, "unmarshal lead")
	}
	return &l, nil
}

type scannable interface {
	Scan(dest ...any) error
}
