package resilience

import (
	"time"
)

// DLQEntry records a lead whose workflow run failed so it can be retried
// or inspected later.
type DLQEntry struct {
	ID           string    `json:"id"`
	LeadID       string    `json:"lead_id"`
	CompanyName  string    `json:"company_name"`
	Error        string    `json:"error"`
	ErrorType    string    `json:"error_type"` // "transient" or "permanent"
	FailedStage  string    `json:"failed_stage"`
	RetryCount   int       `json:"retry_count"`
	MaxRetries   int       `json:"max_retries"`
	NextRetryAt  time.Time `json:"next_retry_at"`
	CreatedAt    time.Time `json:"created_at"`
	LastFailedAt time.Time `json:"last_failed_at"`
}

// DLQFilter narrows DLQ queries.
type DLQFilter struct {
	ErrorType string // empty matches all
	Limit     int
}

const (
	dlqBaseDelay = time.Minute
	dlqMaxDelay  = time.Hour
)

// NewDLQEntry builds an entry for a failure observed at now.
func NewDLQEntry(leadID, companyName, stage string, err error, maxRetries int, now time.Time) DLQEntry {
	e := DLQEntry{
		LeadID:       leadID,
		CompanyName:  companyName,
		FailedStage:  stage,
		ErrorType:    ClassifyError(err),
		MaxRetries:   maxRetries,
		CreatedAt:    now,
		LastFailedAt: now,
	}
	if err != nil {
		e.Error = err.Error()
	}
	e.NextRetryAt = NextRetryAt(0, now)
	return e
}

// CanRetry reports whether the entry has retries left. Permanent failures
// never retry.
func (e DLQEntry) CanRetry() bool {
	return e.ErrorType == ErrorTransient && e.RetryCount < e.MaxRetries
}

// NextRetryAt doubles a one minute delay per prior retry, capped at an hour.
func NextRetryAt(retryCount int, now time.Time) time.Time {
	delay := dlqBaseDelay
	for i := 0; i < retryCount && delay < dlqMaxDelay; i++ {
		delay *= 2
	}
	if delay > dlqMaxDelay {
		delay = dlqMaxDelay
	}
	return now.Add(delay)
}
