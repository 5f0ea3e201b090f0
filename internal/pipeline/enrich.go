package pipeline

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/lead-qualifier/internal/llm"
	"github.com/sells-group/lead-qualifier/internal/model"
)

const (
	contextWebsiteChars = 6000
	contextSearchLimit  = 20
	contextJobLimit     = 10
	contextNewsLimit    = 5
	contextMaxChars     = 12000
)

// Enrich asks the generator to turn research artifacts into company
// facts. A failed call is recorded on the lead and the pipeline moves on.
func (s *Stages) Enrich(ctx context.Context, l *model.Lead) (*model.LeadDelta, error) {
	log := zap.L().With(zap.String("company", l.CompanyName))

	website := l.CompanyWebsite
	if website == "" {
		website = "N/A"
	}
	prompt, err := render(enrichTmpl, struct {
		CompanyName string
		Website     string
		Context     string
	}{l.CompanyName, website, ResearchContext(l)})
	if err != nil {
		return nil, err
	}

	text, err := s.Generator.Generate(ctx, llm.Request{
		Prompt:      prompt,
		System:      enrichSystem,
		Temperature: 0.1,
		MaxTokens:   1500,
		Format:      llm.FormatJSON,
		Stage:       string(StageEnrich),
	})
	if err != nil {
		log.Error("enrich: generation failed", zap.Error(err))
		d := s.stamp(model.StatusDelta(model.StatusScoring))
		d.ErrorMessage = model.Ptr("Enrichment failed: " + err.Error())
		return d, nil
	}

	parsed := llm.ParseJSON(text)
	d := s.stamp(model.StatusDelta(model.StatusScoring))
	d.CompanyDescription = model.Ptr(llm.String(parsed, "company_description"))
	d.Industry = model.Ptr(llm.String(parsed, "industry"))
	d.IsB2B = llm.Bool(parsed, "is_b2b")
	d.EmployeeCount = model.Ptr(llm.String(parsed, "employee_count_estimate"))
	d.CompanySizeCategory = model.Ptr(llm.String(parsed, "company_size_category"))
	d.PainPoints = model.Ptr(nonNil(llm.Strings(parsed, "pain_points")))
	d.BuyingSignals = model.Ptr(nonNil(llm.Strings(parsed, "buying_signals")))
	d.CEOName = model.Ptr(llm.String(parsed, "ceo_name"))
	d.CEOTitle = model.Ptr(llm.String(parsed, "ceo_title"))
	d.CEOLinkedIn = model.Ptr(llm.String(parsed, "ceo_linkedin"))
	d.CompanyEmail = model.Ptr(llm.String(parsed, "company_email"))
	d.HREmail = model.Ptr(llm.String(parsed, "hr_email"))
	d.Headquarters = model.Ptr(llm.String(parsed, "headquarters"))
	d.FoundedYear = model.Ptr(llm.String(parsed, "founded_year"))
	d.FundingStatus = model.Ptr(llm.String(parsed, "funding_status"))
	social := llm.Object(parsed, "social_profiles")
	d.SocialProfiles = &model.SocialProfiles{
		LinkedIn: llm.String(social, "linkedin"),
		Twitter:  llm.String(social, "twitter"),
	}

	log.Info("enrich: complete",
		zap.String("industry", *d.Industry),
		zap.String("size", *d.CompanySizeCategory),
		zap.Bool("has_ceo", *d.CEOName != ""),
		zap.Bool("has_hr_email", *d.HREmail != ""),
	)
	return d, nil
}

// ResearchContext compiles the research artifacts into the text block the
// enrichment prompt reads.
func ResearchContext(l *model.Lead) string {
	var sections []string

	if l.WebsiteContent != "" {
		sections = append(sections, "=== WEBSITE CONTENT ===\n"+truncate(l.WebsiteContent, contextWebsiteChars))
	}

	if len(l.SearchResults) > 0 {
		lines := make([]string, 0, contextSearchLimit)
		for _, r := range head(l.SearchResults, contextSearchLimit) {
			lines = append(lines, fmt.Sprintf("- %s: %s (source: %s)", r.Title, r.Snippet, r.URL))
		}
		sections = append(sections, "=== SEARCH RESULTS ===\n"+strings.Join(lines, "\n"))
	}

	if len(l.TechStack) > 0 {
		sections = append(sections, "=== DETECTED TECH STACK ===\n"+strings.Join(l.TechStack, ", "))
	}

	if len(l.OpenPositions) > 0 {
		sections = append(sections, "=== OPEN POSITIONS ===\n"+bullets(head(l.OpenPositions, contextJobLimit)))
	}

	if len(l.RecentNews) > 0 {
		lines := make([]string, 0, contextNewsLimit)
		for _, n := range head(l.RecentNews, contextNewsLimit) {
			lines = append(lines, fmt.Sprintf("- %s: %s", n.Title, n.Snippet))
		}
		sections = append(sections, "=== RECENT NEWS ===\n"+strings.Join(lines, "\n"))
	}

	return truncate(strings.Join(sections, "\n\n"), contextMaxChars)
}

func head[T any](s []T, n int) []T {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func bullets(items []string) string {
	lines := make([]string, len(items))
	for i, it := range items {
		lines[i] = "- " + it
	}
	return strings.Join(lines, "\n")
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
