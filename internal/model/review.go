package model

import "time"

// ReviewAction is the reviewer's verdict on a suspended lead.
type ReviewAction string

const (
	ActionApprove ReviewAction = "approve"
	ActionReject  ReviewAction = "reject"
	ActionRescore ReviewAction = "rescore"
)

// ReviewDecision is supplied by a human to resume a suspended run.
type ReviewDecision struct {
	Action             ReviewAction `json:"action"`
	Feedback           string       `json:"feedback,omitempty"`
	EditedEmailSubject string       `json:"edited_email_subject,omitempty"`
	EditedEmailBody    string       `json:"edited_email_body,omitempty"`
}

// ReviewPayload is what a reviewer sees for a suspended lead.
type ReviewPayload struct {
	LeadID            string         `json:"lead_id"`
	CompanyName       string         `json:"company_name"`
	Score             int            `json:"score"`
	Confidence        float64        `json:"confidence"`
	ReasonForReview   string         `json:"reason_for_review"`
	ScoreBreakdown    ScoreBreakdown `json:"score_breakdown,omitempty"`
	DraftEmailSubject string         `json:"draft_email_subject"`
	DraftEmailBody    string         `json:"draft_email_body"`
	Message           string         `json:"message"`
}

// Checkpoint is the persisted snapshot of a run suspended at human review.
type Checkpoint struct {
	RunID     string        `json:"run_id"`
	State     Lead          `json:"state"`
	Payload   ReviewPayload `json:"payload"`
	CreatedAt time.Time     `json:"created_at"`
}
