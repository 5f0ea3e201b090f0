package model

import (
	"math"
	"time"
)

// EmailLog records one outbound email attempt.
type EmailLog struct {
	ID      int64     `json:"id"`
	LeadID  string    `json:"lead_id"`
	ToEmail string    `json:"to_email"`
	Subject string    `json:"subject"`
	Body    string    `json:"body"`
	Status  string    `json:"status"`
	Error   string    `json:"error,omitempty"`
	SentAt  time.Time `json:"sent_at"`
}

// ScoreBucket is one row of the score distribution.
type ScoreBucket struct {
	Score int `json:"score"`
	Count int `json:"count"`
}

// AnalyticsSummary is the dashboard rollup over all leads.
type AnalyticsSummary struct {
	TotalLeads        int            `json:"total_leads"`
	StatusCounts      map[string]int `json:"status_counts"`
	Qualified         int            `json:"qualified"`
	PendingReview     int            `json:"pending_review"`
	Rejected          int            `json:"rejected"`
	AvgScore          float64        `json:"avg_score"`
	AvgProcessingTime float64        `json:"avg_processing_time"`
	Accuracy          int            `json:"accuracy"`
}

// NewAnalyticsSummary derives the rollup from per-status counts and the raw
// averages. Averages are rounded to 1 and 2 decimals respectively.
func NewAnalyticsSummary(counts map[string]int, avgScore, avgTime float64) *AnalyticsSummary {
	if counts == nil {
		counts = map[string]int{}
	}
	total := 0
	for _, n := range counts {
		total += n
	}

	c := func(s LeadStatus) int { return counts[string(s)] }
	scored := c(StatusDraftingComplete) + c(StatusHumanReview) + c(StatusApproved) + c(StatusSent)
	failed := c(StatusFailed) + c(StatusRejected)

	return &AnalyticsSummary{
		TotalLeads:        total,
		StatusCounts:      counts,
		Qualified:         c(StatusSent) + c(StatusApproved),
		PendingReview:     c(StatusHumanReview),
		Rejected:          c(StatusRejected),
		AvgScore:          math.Round(avgScore*10) / 10,
		AvgProcessingTime: math.Round(avgTime*100) / 100,
		Accuracy:          int(math.Round(float64(scored) / float64(max(scored+failed, 1)) * 100)),
	}
}
