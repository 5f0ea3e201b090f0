package pipeline

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/lead-qualifier/internal/llm"
	"github.com/sells-group/lead-qualifier/internal/model"
)

const fallbackHook = "Growing company in their space"

// Draft writes the outreach email. On failure the draft is left empty and
// the error is recorded; review or send decides what happens next.
func (s *Stages) Draft(ctx context.Context, l *model.Lead) (*model.LeadDelta, error) {
	log := zap.L().With(zap.String("company", l.CompanyName))

	hooks := PersonalizationHooks(l)
	prompt, err := render(draftTmpl, draftInput(l, hooks, s.senderName()))
	if err != nil {
		return nil, err
	}

	text, err := s.Generator.Generate(ctx, llm.Request{
		Prompt:      prompt,
		System:      draftSystem,
		Temperature: 0.7,
		MaxTokens:   1000,
		Format:      llm.FormatJSON,
		Stage:       string(StageDraft),
	})
	if err != nil {
		log.Error("draft: generation failed", zap.Error(err))
		d := s.stamp(model.StatusDelta(model.StatusDraftingComplete))
		d.DraftEmailSubject = model.Ptr("")
		d.DraftEmailBody = model.Ptr("")
		d.ErrorMessage = model.Ptr("Email drafting failed: " + err.Error())
		return d, nil
	}

	parsed := llm.ParseJSON(text)
	d := s.stamp(model.StatusDelta(model.StatusDraftingComplete))
	d.DraftEmailSubject = model.Ptr(llm.String(parsed, "subject"))
	d.DraftEmailBody = model.Ptr(llm.String(parsed, "body"))
	d.PersonalizationHooks = &hooks

	log.Info("draft: complete", zap.String("subject", *d.DraftEmailSubject), zap.Int("hooks", len(hooks)))
	return d, nil
}

// PersonalizationHooks lists concrete facts about the company, most
// specific first.
func PersonalizationHooks(l *model.Lead) []string {
	var hooks []string
	add := func(format string, args ...any) {
		hooks = append(hooks, fmt.Sprintf(format, args...))
	}

	if len(l.TechStack) > 0 {
		add("They use %s in their tech stack", strings.Join(head(l.TechStack, 4), ", "))
	}
	if len(l.OpenPositions) > 0 {
		add("Currently hiring for: %s", strings.Join(head(l.OpenPositions, 3), ", "))
	}
	if l.CEOName != "" {
		add("Led by %s (%s)", l.CEOName, orDefault(l.CEOTitle, "CEO"))
	}
	if l.FundingStatus != "" {
		add("Funding stage: %s", l.FundingStatus)
	}
	if l.Headquarters != "" {
		add("Headquartered in %s", l.Headquarters)
	}
	if l.FoundedYear != "" {
		add("Founded in %s", l.FoundedYear)
	}
	if len(l.RecentNews) > 0 {
		add("Recent news: %s", l.RecentNews[0].Title)
	}
	if l.EmployeeCount != "" {
		add("Company size: ~%s employees", l.EmployeeCount)
	}
	if len(l.BuyingSignals) > 0 {
		add("Buying signal: %s", l.BuyingSignals[0])
	}
	if l.Industry != "" {
		add("Operates in %s", l.Industry)
	}
	if l.HREmail != "" {
		add("HR contact: %s", l.HREmail)
	}

	if len(hooks) == 0 {
		return []string{fallbackHook}
	}
	return hooks
}

type draftData struct {
	SenderName    string
	CompanyName   string
	Industry      string
	Description   string
	HREmail       string
	ContactName   string
	ContactTitle  string
	Hooks         []string
	PainPoints    []string
	BuyingSignals []string
}

func draftInput(l *model.Lead, hooks []string, defaultSender string) draftData {
	hr := l.HREmail
	if hr == "" {
		hr = l.CompanyEmail
	}
	pains := l.PainPoints
	if len(pains) == 0 {
		pains = []string{"improving efficiency"}
	}
	signals := l.BuyingSignals
	if len(signals) == 0 {
		signals = []string{"growth"}
	}
	return draftData{
		SenderName:    orDefault(l.SenderName, defaultSender),
		CompanyName:   l.CompanyName,
		Industry:      orDefault(l.Industry, "technology"),
		Description:   orDefault(l.CompanyDescription, "a growing company"),
		HREmail:       orDefault(hr, "not available"),
		ContactName:   orDefault(l.ContactName, "there"),
		ContactTitle:  orDefault(l.ContactTitle, "HR Manager"),
		Hooks:         hooks,
		PainPoints:    pains,
		BuyingSignals: signals,
	}
}
