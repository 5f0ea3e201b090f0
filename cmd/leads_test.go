package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/lead-qualifier/internal/model"
)

func TestFormatLeadsList(t *testing.T) {
	var buf bytes.Buffer
	formatLeadsList(&buf, []model.Lead{{
		LeadID:      "0f8e1c2a-1111-2222-3333-444444444444",
		CompanyName: "Acme Analytics",
		Status:      model.StatusSent,
		Score:       82,
		Confidence:  0.9,
		Source:      model.SourceCSV,
		CreatedAt:   time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC),
	}})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	assert.Contains(t, lines[2], "0f8e1c2a ")
	assert.Contains(t, lines[2], "Acme Analytics")
	assert.Contains(t, lines[2], "sent")
	assert.Contains(t, lines[2], "0.90")
	assert.Contains(t, lines[2], "2025-03-01 09:30")
}

func TestFormatReviewQueue(t *testing.T) {
	var buf bytes.Buffer
	formatReviewQueue(&buf, []model.Lead{{
		LeadID:            "lead-1",
		CompanyName:       "Globex",
		Score:             55,
		Confidence:        0.62,
		HumanReviewReason: "Borderline score of 55/100",
	}})

	out := buf.String()
	assert.Contains(t, out, "REASON")
	assert.Contains(t, out, "lead-1")
	assert.Contains(t, out, "Borderline score of 55/100")
}

func TestFormatAnalytics(t *testing.T) {
	var buf bytes.Buffer
	formatAnalytics(&buf, &model.AnalyticsSummary{
		TotalLeads:        10,
		Qualified:         4,
		PendingReview:     2,
		Rejected:          3,
		AvgScore:          61.25,
		AvgProcessingTime: 12.5,
		Accuracy:          94,
		StatusCounts:      map[string]int{"sent": 4, "failed": 1},
	})

	out := buf.String()
	assert.Contains(t, out, "Total leads:")
	assert.Contains(t, out, "61.2")
	assert.Contains(t, out, "12.50s")
	assert.Contains(t, out, "94%")
	assert.Less(t, strings.Index(out, "failed:"), strings.Index(out, "sent:"))
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abcdefgh", truncateID("abcdefghijkl"))
	assert.Equal(t, "short", truncateID("short"))
}

func TestClip(t *testing.T) {
	assert.Equal(t, "hello", clip("hello", 5))
	assert.Equal(t, "hello w...", clip("hello world!", 10))
	assert.Equal(t, "héllo...", clip("héllo wörld", 8))
}
