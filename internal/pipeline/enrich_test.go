package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-qualifier/internal/llm"
	"github.com/sells-group/lead-qualifier/internal/model"
)

func TestResearchContext_Sections(t *testing.T) {
	l := &model.Lead{
		WebsiteContent: "We build analytics.",
		SearchResults:  []model.SearchResult{{Title: "Acme", Snippet: "Analytics vendor", URL: "https://acme.io"}},
		TechStack:      []string{"React", "AWS"},
		OpenPositions:  []string{"Backend Engineer"},
		RecentNews:     []model.NewsItem{{Title: "Acme raises $20M", Snippet: "Series B"}},
	}

	want := "=== WEBSITE CONTENT ===\nWe build analytics.\n\n" +
		"=== SEARCH RESULTS ===\n- Acme: Analytics vendor (source: https://acme.io)\n\n" +
		"=== DETECTED TECH STACK ===\nReact, AWS\n\n" +
		"=== OPEN POSITIONS ===\n- Backend Engineer\n\n" +
		"=== RECENT NEWS ===\n- Acme raises $20M: Series B"
	assert.Equal(t, want, ResearchContext(l))
}

func TestResearchContext_Limits(t *testing.T) {
	l := &model.Lead{WebsiteContent: strings.Repeat("a", 9000)}
	for i := range 30 {
		l.SearchResults = append(l.SearchResults, model.SearchResult{Title: fmt.Sprintf("r%02d", i)})
		l.OpenPositions = append(l.OpenPositions, fmt.Sprintf("job%02d", i))
	}

	ctx := ResearchContext(l)
	assert.Contains(t, ctx, "=== WEBSITE CONTENT ===\n"+strings.Repeat("a", 6000)+"\n\n")
	assert.Contains(t, ctx, "- r19:")
	assert.NotContains(t, ctx, "- r20:")
	assert.Contains(t, ctx, "- job09")
	assert.NotContains(t, ctx, "- job10")
	assert.LessOrEqual(t, len(ctx), 12000)
}

func TestResearchContext_Empty(t *testing.T) {
	assert.Empty(t, ResearchContext(&model.Lead{}))
}

func TestEnrich_MapsFields(t *testing.T) {
	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, stageIs(StageEnrich)).Return(`{
		"company_description": "Acme builds analytics.",
		"industry": "SaaS",
		"is_b2b": true,
		"employee_count_estimate": "50-200",
		"company_size_category": "mid-market",
		"pain_points": ["manual reporting"],
		"buying_signals": ["Series B", "hiring"],
		"ceo_name": "Jane Doe",
		"ceo_title": "Co-Founder & CEO",
		"ceo_linkedin": null,
		"company_email": "info@acme.io",
		"hr_email": "careers@acme.io",
		"headquarters": "Austin, TX",
		"founded_year": 2018,
		"funding_status": "Series B",
		"social_profiles": {"linkedin": "https://linkedin.com/company/acme", "twitter": null}
	}`, nil)

	s := newTestStages(gen, nil, nil, nil)
	d, err := s.Enrich(context.Background(), &model.Lead{CompanyName: "Acme", CompanyWebsite: "https://acme.io"})
	require.NoError(t, err)

	assert.Equal(t, model.StatusScoring, *d.Status)
	assert.Equal(t, "Acme builds analytics.", *d.CompanyDescription)
	assert.Equal(t, "SaaS", *d.Industry)
	require.NotNil(t, d.IsB2B)
	assert.True(t, *d.IsB2B)
	assert.Equal(t, "50-200", *d.EmployeeCount)
	assert.Equal(t, "mid-market", *d.CompanySizeCategory)
	assert.Equal(t, []string{"manual reporting"}, *d.PainPoints)
	assert.Equal(t, []string{"Series B", "hiring"}, *d.BuyingSignals)
	assert.Equal(t, "Jane Doe", *d.CEOName)
	assert.Empty(t, *d.CEOLinkedIn)
	assert.Equal(t, "careers@acme.io", *d.HREmail)
	assert.Equal(t, "2018", *d.FoundedYear)
	assert.Equal(t, "https://linkedin.com/company/acme", d.SocialProfiles.LinkedIn)
	assert.Empty(t, d.SocialProfiles.Twitter)
	assert.Nil(t, d.ErrorMessage)

	req := gen.Calls[0].Arguments.Get(1).(llm.Request)
	assert.InDelta(t, 0.1, req.Temperature, 1e-9)
	assert.Equal(t, 1500, req.MaxTokens)
	assert.Equal(t, enrichSystem, req.System)
	assert.Contains(t, req.Prompt, "WEBSITE: https://acme.io")
	gen.AssertExpectations(t)
}

func TestEnrich_UnparseableResponse(t *testing.T) {
	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, mock.Anything).Return("I could not find anything.", nil)

	s := newTestStages(gen, nil, nil, nil)
	d, err := s.Enrich(context.Background(), &model.Lead{CompanyName: "Acme"})
	require.NoError(t, err)

	assert.Equal(t, model.StatusScoring, *d.Status)
	assert.Empty(t, *d.Industry)
	assert.Nil(t, d.IsB2B)
	assert.Equal(t, []string{}, *d.PainPoints)
}

func TestEnrich_GenerationFailure(t *testing.T) {
	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, mock.Anything).Return("", errors.New("upstream timeout"))

	s := newTestStages(gen, nil, nil, nil)
	d, err := s.Enrich(context.Background(), &model.Lead{CompanyName: "Acme"})
	require.NoError(t, err)

	assert.Equal(t, model.StatusScoring, *d.Status)
	assert.Equal(t, "Enrichment failed: upstream timeout", *d.ErrorMessage)
	assert.Nil(t, d.Industry)
	assert.Contains(t, gen.Calls[0].Arguments.Get(1).(llm.Request).Prompt, "WEBSITE: N/A")
}
