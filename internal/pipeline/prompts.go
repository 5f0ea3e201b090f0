package pipeline

import (
	"strings"
	"text/template"

	"github.com/rotisserie/eris"
)

const (
	enrichSystem = "You are a B2B sales research analyst. Always respond with valid JSON."
	scoreSystem  = "You are a precise lead scoring engine. Respond only with valid JSON."
	draftSystem  = "You are an expert B2B sales copywriter. Respond only with valid JSON."
)

var enrichTmpl = template.Must(template.New("enrich").Parse(`You are a senior B2B sales intelligence analyst. Read every piece of the
research below and extract structured facts about the company.

COMPANY: {{.CompanyName}}
WEBSITE: {{.Website}}

RESEARCH DATA:
{{.Context}}

Answer with exactly this JSON object. Use null for anything the research does
not support; never guess.
{
  "company_description": "3-4 sentences on what the company sells, to whom, and how it stands out",
  "industry": "primary category such as SaaS, FinTech, HealthTech, E-commerce, DevTools, Cybersecurity",
  "is_b2b": true,
  "employee_count_estimate": "a range such as 50-200",
  "company_size_category": "startup | smb | mid-market | enterprise",
  "pain_points": ["evidence-based pain point", "..."],
  "buying_signals": ["evidence-based buying signal", "..."],
  "ceo_name": "CEO or founder full name, or null",
  "ceo_title": "exact title, e.g. Co-Founder & CEO",
  "ceo_linkedin": "LinkedIn profile URL or null",
  "company_email": "general inbox such as info@ or hello@, or null",
  "hr_email": "recruiting inbox such as hr@, careers@, jobs@, talent@, people@, or null",
  "headquarters": "City, State/Country",
  "founded_year": "four digit year or null",
  "funding_status": "Seed, Series A, Bootstrapped, IPO, ... or null",
  "social_profiles": {
    "linkedin": "linkedin.com/company/... URL or null",
    "twitter": "Twitter/X URL or null"
  }
}

Rules:
- Leadership names come from search results that tie a person to a CEO, founder or managing director role.
- Recruiting inboxes usually appear on careers, contact and team pages or in job listings.
- Pain points must cite evidence: "three open backend roles point to scaling pressure", not "they struggle to scale".
- Use only the research data above.`))

var scoreTmpl = template.Must(template.New("score").Parse(`Score this sales lead on one criterion.

COMPANY: {{.CompanyName}}
DESCRIPTION: {{.Description}}
INDUSTRY: {{.Industry}}
IS B2B: {{.IsB2B}}
EMPLOYEE ESTIMATE: {{.EmployeeCount}}
TECH STACK: {{.TechStack}}
BUYING SIGNALS: {{.BuyingSignals}}
PAIN POINTS: {{.PainPoints}}

CRITERION: {{.Criterion.Name}}
DESCRIPTION: {{.Criterion.Description}}
MAX POINTS: {{.Criterion.MaxPoints}}
SCORING GUIDE: {{.Criterion.EvaluationPrompt}}

Answer with exactly this JSON object:
{
  "score": <integer from 0 to {{.Criterion.MaxPoints}}>,
  "reasoning": "one sentence justifying the score",
  "confidence": <number from 0.0 to 1.0>,
  "evidence": "the data point behind the score, or 'no direct evidence'"
}`))

var draftTmpl = template.Must(template.New("draft").Parse(`Write a personalized cold outreach email to the HR team of the company below.
The email must only make sense for this company.

Sender: {{.SenderName}}

TARGET COMPANY: {{.CompanyName}}
INDUSTRY: {{.Industry}}
COMPANY DESCRIPTION: {{.Description}}
HR CONTACT EMAIL: {{.HREmail}}
CONTACT NAME: {{.ContactName}}
CONTACT TITLE: {{.ContactTitle}}

PERSONALIZATION HOOKS (work at least four in naturally):
{{range .Hooks}}- {{.}}
{{end}}
PAIN POINTS TO ADDRESS:
{{range .PainPoints}}- {{.}}
{{end}}
BUYING SIGNALS:
{{range .BuyingSignals}}- {{.}}
{{end}}
Format:
1. Subject of 5-8 words naming something specific to {{.CompanyName}}. No emojis or clickbait.
2. Open with "Hi {{.ContactName}}," using the first name.
3. Two or three sentences on a concrete detail only this company has: a product, a funding round, a hire, a challenge.
4. Two or three sentences tying one pain point to a measurable outcome.
5. One sentence of social proof.
6. A soft ask for a 15 minute call this week.
7. Sign off with "Best regards," and {{.SenderName}} on the next line.
8. 140-200 words, confident and warm, written as a peer.
9. Never use: "I noticed that", "I came across", "reaching out", "touching base", "circling back", "synergy", "leverage", "game-changer", "cutting-edge".

Answer with this JSON object:
{
  "subject": "subject line",
  "body": "full email body with \n line breaks"
}`))

func render(t *template.Template, data any) (string, error) {
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", eris.Wrapf(err, "pipeline: render %s prompt", t.Name())
	}
	return b.String(), nil
}
