package model

import (
	"fmt"

	"github.com/rotisserie/eris"
)

// CriterionScore is the evaluation of one rubric criterion.
type CriterionScore struct {
	Name       string  `json:"name"`
	Score      int     `json:"score"`
	Max        int     `json:"max"`
	Reasoning  string  `json:"reasoning"`
	Confidence float64 `json:"confidence"`
	Evidence   string  `json:"evidence"`
}

// Weak reports whether the criterion scored below half of its maximum.
func (c CriterionScore) Weak() bool {
	return float64(c.Score) < float64(c.Max)*0.5
}

// ScoreBreakdown holds per-criterion results in rubric order.
type ScoreBreakdown []CriterionScore

// Get returns the entry for the named criterion.
func (b ScoreBreakdown) Get(name string) (CriterionScore, bool) {
	for _, c := range b {
		if c.Name == name {
			return c, true
		}
	}
	return CriterionScore{}, false
}

// Total sums the criterion scores.
func (b ScoreBreakdown) Total() int {
	total := 0
	for _, c := range b {
		total += c.Score
	}
	return total
}

// Criterion is one rule of the scoring rubric.
type Criterion struct {
	Name             string `yaml:"name" json:"name"`
	Description      string `yaml:"description" json:"description"`
	MaxPoints        int    `yaml:"max_points" json:"max_points"`
	EvaluationPrompt string `yaml:"evaluation_prompt" json:"evaluation_prompt"`
}

// Rubric is the declarative scoring configuration.
type Rubric struct {
	QualificationThreshold int         `yaml:"qualification_threshold" json:"qualification_threshold"`
	AutoRejectThreshold    int         `yaml:"auto_reject_threshold" json:"auto_reject_threshold"`
	Criteria               []Criterion `yaml:"criteria" json:"criteria"`
}

// Validate checks threshold ordering, criterion names and the point budget.
func (r *Rubric) Validate() error {
	if r.AutoRejectThreshold < 0 {
		return eris.New("rubric: auto_reject_threshold must be >= 0")
	}
	if r.AutoRejectThreshold >= r.QualificationThreshold {
		return eris.Errorf("rubric: auto_reject_threshold (%d) must be below qualification_threshold (%d)",
			r.AutoRejectThreshold, r.QualificationThreshold)
	}
	if r.QualificationThreshold > 100 {
		return eris.Errorf("rubric: qualification_threshold (%d) exceeds 100", r.QualificationThreshold)
	}
	if len(r.Criteria) == 0 {
		return eris.New("rubric: at least one criterion is required")
	}

	seen := make(map[string]bool, len(r.Criteria))
	total := 0
	for i, c := range r.Criteria {
		if c.Name == "" {
			return eris.Errorf("rubric: criterion %d has no name", i)
		}
		if seen[c.Name] {
			return eris.Errorf("rubric: duplicate criterion %q", c.Name)
		}
		seen[c.Name] = true
		if c.MaxPoints <= 0 {
			return eris.Errorf("rubric: criterion %q must have positive max_points", c.Name)
		}
		total += c.MaxPoints
	}
	if total > 100 {
		return eris.Errorf("rubric: max_points sum to %d, must not exceed 100", total)
	}
	return nil
}

// MaxTotal is the highest score the rubric can award.
func (r *Rubric) MaxTotal() int {
	total := 0
	for _, c := range r.Criteria {
		total += c.MaxPoints
	}
	return total
}

// String summarizes the rubric for logs.
func (r Rubric) String() string {
	return fmt.Sprintf("rubric(%d criteria, qualify>=%d, reject<%d)",
		len(r.Criteria), r.QualificationThreshold, r.AutoRejectThreshold)
}

// Default thresholds.
const (
	DefaultQualificationThreshold = 70
	DefaultAutoRejectThreshold    = 20
)

// DefaultRubric returns the built-in five criterion rubric.
func DefaultRubric() Rubric {
	return Rubric{
		QualificationThreshold: DefaultQualificationThreshold,
		AutoRejectThreshold:    DefaultAutoRejectThreshold,
		Criteria: []Criterion{
			{
				Name:             "b2b_fit",
				Description:      "Is this a B2B company?",
				MaxPoints:        20,
				EvaluationPrompt: "Is this company selling to other businesses (B2B)? Score 20 if yes, 5 if mixed, 0 if pure B2C.",
			},
			{
				Name:             "company_size",
				Description:      "Company has 50+ employees",
				MaxPoints:        20,
				EvaluationPrompt: "Based on available data, estimate employee count. Score 20 for 200+, 15 for 50-200, 10 for 20-50, 5 for <20.",
			},
			{
				Name:             "tech_stack_fit",
				Description:      "Uses relevant technologies",
				MaxPoints:        20,
				EvaluationPrompt: "Does the company use technologies like React, Python, Node.js, or cloud services? Score based on alignment with modern stacks.",
			},
			{
				Name:             "buying_signals",
				Description:      "Shows active buying signals",
				MaxPoints:        20,
				EvaluationPrompt: "Look for hiring activity, recent funding, tech stack changes, or growth indicators. Score accordingly.",
			},
			{
				Name:             "reachability",
				Description:      "Contact info availability",
				MaxPoints:        20,
				EvaluationPrompt: "Is there a valid contact email and name? Score 20 for both, 10 for one, 0 for neither.",
			},
		},
	}
}
