// Package monitoring watches pipeline health and raises webhook alerts.
package monitoring

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-qualifier/internal/model"
	"github.com/sells-group/lead-qualifier/internal/resilience"
	"github.com/sells-group/lead-qualifier/internal/store"
)

// MetricsSnapshot holds a point-in-time view of system health.
type MetricsSnapshot struct {
	// Lead metrics.
	TotalLeads    int     `json:"total_leads"`
	Sent          int     `json:"sent"`
	Rejected      int     `json:"rejected"`
	Failed        int     `json:"failed"`
	InFlight      int     `json:"in_flight"`
	ReviewBacklog int     `json:"review_backlog"`
	FailRate      float64 `json:"fail_rate"`
	AvgScore      float64 `json:"avg_score"`
	AvgSeconds    float64 `json:"avg_processing_seconds"`

	// DLQ depth.
	DLQDepth int `json:"dlq_depth"`

	// Open circuit breakers by service name.
	OpenCircuits []string `json:"open_circuits,omitempty"`

	CollectedAt time.Time `json:"collected_at"`
}

// Finished is the number of leads in a terminal status.
func (s *MetricsSnapshot) Finished() int {
	return s.Sent + s.Rejected + s.Failed
}

// BreakerStates reports circuit breaker states by service.
type BreakerStates interface {
	States() map[string]resilience.CircuitState
}

// Collector gathers metrics from the store and circuit breakers.
type Collector struct {
	store    store.Store
	breakers BreakerStates
}

// NewCollector creates a new metrics collector. breakers may be nil.
func NewCollector(st store.Store, breakers BreakerStates) *Collector {
	return &Collector{store: st, breakers: breakers}
}

// Collect gathers a snapshot of system metrics.
func (c *Collector) Collect(ctx context.Context) (*MetricsSnapshot, error) {
	snap := &MetricsSnapshot{CollectedAt: time.Now().UTC()}

	summary, err := c.store.Analytics(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: analytics")
	}

	count := func(s model.LeadStatus) int { return summary.StatusCounts[string(s)] }
	snap.TotalLeads = summary.TotalLeads
	snap.Sent = count(model.StatusSent)
	snap.Rejected = count(model.StatusRejected)
	snap.Failed = count(model.StatusFailed)
	snap.ReviewBacklog = count(model.StatusHumanReview)
	snap.AvgScore = summary.AvgScore
	snap.AvgSeconds = summary.AvgProcessingTime
	for _, s := range []model.LeadStatus{
		model.StatusResearching, model.StatusEnriching, model.StatusScoring,
		model.StatusScoringComplete, model.StatusDraftingComplete, model.StatusApproved,
	} {
		snap.InFlight += count(s)
	}
	if finished := snap.Finished(); finished > 0 {
		snap.FailRate = float64(snap.Failed) / float64(finished)
	}

	dlqCount, err := c.store.CountDLQ(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: count dlq")
	}
	snap.DLQDepth = dlqCount

	if c.breakers != nil {
		for name, state := range c.breakers.States() {
			if state == resilience.CircuitOpen {
				snap.OpenCircuits = append(snap.OpenCircuits, name)
			}
		}
		sort.Strings(snap.OpenCircuits)
	}

	return snap, nil
}
