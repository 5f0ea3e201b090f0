package model

import "time"

// LeadStatus is the lifecycle status of a lead as it moves through the pipeline.
type LeadStatus string

const (
	StatusNew              LeadStatus = "new"
	StatusResearching      LeadStatus = "researching"
	StatusEnriching        LeadStatus = "enriching"
	StatusScoring          LeadStatus = "scoring"
	StatusScoringComplete  LeadStatus = "scoring_complete"
	StatusDraftingComplete LeadStatus = "drafting_complete"
	StatusHumanReview      LeadStatus = "human_review"
	StatusApproved         LeadStatus = "approved"
	StatusRejected         LeadStatus = "rejected"
	StatusSent             LeadStatus = "sent"
	StatusFailed           LeadStatus = "failed"
)

// AllStatuses lists every status in pipeline order.
var AllStatuses = []LeadStatus{
	StatusNew, StatusResearching, StatusEnriching, StatusScoring,
	StatusScoringComplete, StatusDraftingComplete, StatusHumanReview,
	StatusApproved, StatusRejected, StatusSent, StatusFailed,
}

// Valid reports whether s is a known status.
func (s LeadStatus) Valid() bool {
	for _, v := range AllStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// Terminal reports whether no stage will run after a lead reaches s.
func (s LeadStatus) Terminal() bool {
	switch s {
	case StatusSent, StatusRejected, StatusFailed:
		return true
	}
	return false
}

// Lead sources.
const (
	SourceManual = "manual"
	SourceCSV    = "csv"
	SourceXLSX   = "xlsx"
	SourceNotion = "notion"
	SourceAPI    = "api"
)

// SearchResult is a single web search hit.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// NewsItem is a recent news article about a company.
type NewsItem struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
	Source  string `json:"source"`
}

// SocialProfiles holds known company social URLs.
type SocialProfiles struct {
	LinkedIn string `json:"linkedin,omitempty"`
	Twitter  string `json:"twitter,omitempty"`
}

// Lead is the full working state of one lead. Empty strings and nil slices
// mean the field has not been populated; IsB2B is a pointer because false is
// a meaningful answer.
type Lead struct {
	// Identity and metadata.
	LeadID                string    `json:"lead_id"`
	Source                string    `json:"source"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
	SenderName            string    `json:"sender_name,omitempty"`
	ProcessingTimeSeconds float64   `json:"processing_time_seconds"`

	// Contact and company input.
	CompanyName    string `json:"company_name"`
	CompanyWebsite string `json:"company_website,omitempty"`
	ContactName    string `json:"contact_name,omitempty"`
	ContactEmail   string `json:"contact_email,omitempty"`
	ContactTitle   string `json:"contact_title,omitempty"`

	// Research artifacts.
	WebsiteContent string         `json:"website_content,omitempty"`
	SearchResults  []SearchResult `json:"search_results,omitempty"`
	TechStack      []string       `json:"tech_stack,omitempty"`
	OpenPositions  []string       `json:"open_positions,omitempty"`
	RecentNews     []NewsItem     `json:"recent_news,omitempty"`

	// Enrichment.
	CompanyDescription  string         `json:"company_description,omitempty"`
	Industry            string         `json:"industry,omitempty"`
	IsB2B               *bool          `json:"is_b2b,omitempty"`
	EmployeeCount       string         `json:"employee_count,omitempty"`
	CompanySizeCategory string         `json:"company_size_category,omitempty"`
	PainPoints          []string       `json:"pain_points,omitempty"`
	BuyingSignals       []string       `json:"buying_signals,omitempty"`
	CEOName             string         `json:"ceo_name,omitempty"`
	CEOTitle            string         `json:"ceo_title,omitempty"`
	CEOLinkedIn         string         `json:"ceo_linkedin,omitempty"`
	CompanyEmail        string         `json:"company_email,omitempty"`
	HREmail             string         `json:"hr_email,omitempty"`
	Headquarters        string         `json:"headquarters,omitempty"`
	FoundedYear         string         `json:"founded_year,omitempty"`
	FundingStatus       string         `json:"funding_status,omitempty"`
	SocialProfiles      SocialProfiles `json:"social_profiles"`

	// Pipeline control.
	Status               LeadStatus     `json:"status"`
	Score                int            `json:"score"`
	ScoreBreakdown       ScoreBreakdown `json:"score_breakdown,omitempty"`
	ScoringReasoning     string         `json:"scoring_reasoning,omitempty"`
	Confidence           float64        `json:"confidence"`
	DraftEmailSubject    string         `json:"draft_email_subject,omitempty"`
	DraftEmailBody       string         `json:"draft_email_body,omitempty"`
	PersonalizationHooks []string       `json:"personalization_hooks,omitempty"`
	HumanReviewReason    string         `json:"human_review_reason,omitempty"`
	HumanFeedback        string         `json:"human_feedback,omitempty"`
	ErrorMessage         string         `json:"error_message,omitempty"`

	// CRM.
	SalesforceID string `json:"salesforce_id,omitempty"`
}

// Clamp forces Score into [0,100] and Confidence into [0,1].
func (l *Lead) Clamp() {
	l.Score = min(max(l.Score, 0), 100)
	l.Confidence = min(max(l.Confidence, 0), 1)
}

// Clone returns a deep copy of the lead.
func (l *Lead) Clone() *Lead {
	if l == nil {
		return nil
	}
	c := *l
	c.SearchResults = append([]SearchResult(nil), l.SearchResults...)
	c.TechStack = append([]string(nil), l.TechStack...)
	c.OpenPositions = append([]string(nil), l.OpenPositions...)
	c.RecentNews = append([]NewsItem(nil), l.RecentNews...)
	c.PainPoints = append([]string(nil), l.PainPoints...)
	c.BuyingSignals = append([]string(nil), l.BuyingSignals...)
	c.PersonalizationHooks = append([]string(nil), l.PersonalizationHooks...)
	c.ScoreBreakdown = append(ScoreBreakdown(nil), l.ScoreBreakdown...)
	if l.IsB2B != nil {
		b := *l.IsB2B
		c.IsB2B = &b
	}
	return &c
}
