package model

import "time"

// LeadDelta is a partial update to a Lead. A nil field leaves the
// corresponding Lead field untouched; a non-nil field replaces it.
type LeadDelta struct {
	LeadID                *string    `json:"lead_id,omitempty"`
	Source                *string    `json:"source,omitempty"`
	CreatedAt             *time.Time `json:"created_at,omitempty"`
	UpdatedAt             *time.Time `json:"updated_at,omitempty"`
	SenderName            *string    `json:"sender_name,omitempty"`
	ProcessingTimeSeconds *float64   `json:"processing_time_seconds,omitempty"`

	CompanyName    *string `json:"company_name,omitempty"`
	CompanyWebsite *string `json:"company_website,omitempty"`
	ContactName    *string `json:"contact_name,omitempty"`
	ContactEmail   *string `json:"contact_email,omitempty"`
	ContactTitle   *string `json:"contact_title,omitempty"`

	WebsiteContent *string         `json:"website_content,omitempty"`
	SearchResults  *[]SearchResult `json:"search_results,omitempty"`
	TechStack      *[]string       `json:"tech_stack,omitempty"`
	OpenPositions  *[]string       `json:"open_positions,omitempty"`
	RecentNews     *[]NewsItem     `json:"recent_news,omitempty"`

	CompanyDescription  *string         `json:"company_description,omitempty"`
	Industry            *string         `json:"industry,omitempty"`
	IsB2B               *bool           `json:"is_b2b,omitempty"`
	EmployeeCount       *string         `json:"employee_count,omitempty"`
	CompanySizeCategory *string         `json:"company_size_category,omitempty"`
	PainPoints          *[]string       `json:"pain_points,omitempty"`
	BuyingSignals       *[]string       `json:"buying_signals,omitempty"`
	CEOName             *string         `json:"ceo_name,omitempty"`
	CEOTitle            *string         `json:"ceo_title,omitempty"`
	CEOLinkedIn         *string         `json:"ceo_linkedin,omitempty"`
	CompanyEmail        *string         `json:"company_email,omitempty"`
	HREmail             *string         `json:"hr_email,omitempty"`
	Headquarters        *string         `json:"headquarters,omitempty"`
	FoundedYear         *string         `json:"founded_year,omitempty"`
	FundingStatus       *string         `json:"funding_status,omitempty"`
	SocialProfiles      *SocialProfiles `json:"social_profiles,omitempty"`

	Status               *LeadStatus     `json:"status,omitempty"`
	Score                *int            `json:"score,omitempty"`
	ScoreBreakdown       *ScoreBreakdown `json:"score_breakdown,omitempty"`
	ScoringReasoning     *string         `json:"scoring_reasoning,omitempty"`
	Confidence           *float64        `json:"confidence,omitempty"`
	DraftEmailSubject    *string         `json:"draft_email_subject,omitempty"`
	DraftEmailBody       *string         `json:"draft_email_body,omitempty"`
	PersonalizationHooks *[]string       `json:"personalization_hooks,omitempty"`
	HumanReviewReason    *string         `json:"human_review_reason,omitempty"`
	HumanFeedback        *string         `json:"human_feedback,omitempty"`
	ErrorMessage         *string         `json:"error_message,omitempty"`

	SalesforceID *string `json:"salesforce_id,omitempty"`
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }

// StatusDelta is shorthand for a delta that only changes the status.
func StatusDelta(s LeadStatus) *LeadDelta {
	return &LeadDelta{Status: &s}
}

// Apply merges d into l field by field and re-clamps score and confidence.
func (d *LeadDelta) Apply(l *Lead) {
	if d == nil || l == nil {
		return
	}
	set(&l.LeadID, d.LeadID)
	set(&l.Source, d.Source)
	set(&l.CreatedAt, d.CreatedAt)
	set(&l.UpdatedAt, d.UpdatedAt)
	set(&l.SenderName, d.SenderName)
	set(&l.ProcessingTimeSeconds, d.ProcessingTimeSeconds)

	set(&l.CompanyName, d.CompanyName)
	set(&l.CompanyWebsite, d.CompanyWebsite)
	set(&l.ContactName, d.ContactName)
	set(&l.ContactEmail, d.ContactEmail)
	set(&l.ContactTitle, d.ContactTitle)

	set(&l.WebsiteContent, d.WebsiteContent)
	set(&l.SearchResults, d.SearchResults)
	set(&l.TechStack, d.TechStack)
	set(&l.OpenPositions, d.OpenPositions)
	set(&l.RecentNews, d.RecentNews)

	set(&l.CompanyDescription, d.CompanyDescription)
	set(&l.Industry, d.Industry)
	if d.IsB2B != nil {
		b := *d.IsB2B
		l.IsB2B = &b
	}
	set(&l.EmployeeCount, d.EmployeeCount)
	set(&l.CompanySizeCategory, d.CompanySizeCategory)
	set(&l.PainPoints, d.PainPoints)
	set(&l.BuyingSignals, d.BuyingSignals)
	set(&l.CEOName, d.CEOName)
	set(&l.CEOTitle, d.CEOTitle)
	set(&l.CEOLinkedIn, d.CEOLinkedIn)
	set(&l.CompanyEmail, d.CompanyEmail)
	set(&l.HREmail, d.HREmail)
	set(&l.Headquarters, d.Headquarters)
	set(&l.FoundedYear, d.FoundedYear)
	set(&l.FundingStatus, d.FundingStatus)
	set(&l.SocialProfiles, d.SocialProfiles)

	set(&l.Status, d.Status)
	set(&l.Score, d.Score)
	set(&l.ScoreBreakdown, d.ScoreBreakdown)
	set(&l.ScoringReasoning, d.ScoringReasoning)
	set(&l.Confidence, d.Confidence)
	set(&l.DraftEmailSubject, d.DraftEmailSubject)
	set(&l.DraftEmailBody, d.DraftEmailBody)
	set(&l.PersonalizationHooks, d.PersonalizationHooks)
	set(&l.HumanReviewReason, d.HumanReviewReason)
	set(&l.HumanFeedback, d.HumanFeedback)
	set(&l.ErrorMessage, d.ErrorMessage)

	set(&l.SalesforceID, d.SalesforceID)

	l.Clamp()
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

// SnapshotDelta returns a delta that overwrites every field of a stored
// lead with the values in l. A nil IsB2B leaves the stored flag as is.
func SnapshotDelta(l *Lead) *LeadDelta {
	c := l.Clone()
	return &LeadDelta{
		LeadID:                &c.LeadID,
		Source:                &c.Source,
		CreatedAt:             &c.CreatedAt,
		UpdatedAt:             &c.UpdatedAt,
		SenderName:            &c.SenderName,
		ProcessingTimeSeconds: &c.ProcessingTimeSeconds,

		CompanyName:    &c.CompanyName,
		CompanyWebsite: &c.CompanyWebsite,
		ContactName:    &c.ContactName,
		ContactEmail:   &c.ContactEmail,
		ContactTitle:   &c.ContactTitle,

		WebsiteContent: &c.WebsiteContent,
		SearchResults:  &c.SearchResults,
		TechStack:      &c.TechStack,
		OpenPositions:  &c.OpenPositions,
		RecentNews:     &c.RecentNews,

		CompanyDescription:  &c.CompanyDescription,
		Industry:            &c.Industry,
		IsB2B:               c.IsB2B,
		EmployeeCount:       &c.EmployeeCount,
		CompanySizeCategory: &c.CompanySizeCategory,
		PainPoints:          &c.PainPoints,
		BuyingSignals:       &c.BuyingSignals,
		CEOName:             &c.CEOName,
		CEOTitle:            &c.CEOTitle,
		CEOLinkedIn:         &c.CEOLinkedIn,
		CompanyEmail:        &c.CompanyEmail,
		HREmail:             &c.HREmail,
		Headquarters:        &c.Headquarters,
		FoundedYear:         &c.FoundedYear,
		FundingStatus:       &c.FundingStatus,
		SocialProfiles:      &c.SocialProfiles,

		Status:               &c.Status,
		Score:                &c.Score,
		ScoreBreakdown:       &c.ScoreBreakdown,
		ScoringReasoning:     &c.ScoringReasoning,
		Confidence:           &c.Confidence,
		DraftEmailSubject:    &c.DraftEmailSubject,
		DraftEmailBody:       &c.DraftEmailBody,
		PersonalizationHooks: &c.PersonalizationHooks,
		HumanReviewReason:    &c.HumanReviewReason,
		HumanFeedback:        &c.HumanFeedback,
		ErrorMessage:         &c.ErrorMessage,

		SalesforceID: &c.SalesforceID,
	}
}
