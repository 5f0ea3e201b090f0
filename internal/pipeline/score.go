package pipeline

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-qualifier/internal/llm"
	"github.com/sells-group/lead-qualifier/internal/model"
)

const defaultCriterionConfidence = 0.5

// Score evaluates every rubric criterion in order and aggregates the
// results. A criterion that fails to score contributes zero points and
// zero confidence without stopping the others.
func (s *Stages) Score(ctx context.Context, l *model.Lead) (*model.LeadDelta, error) {
	log := zap.L().With(zap.String("company", l.CompanyName))

	breakdown := make(model.ScoreBreakdown, 0, len(s.Rubric.Criteria))
	confidences := make([]float64, 0, len(s.Rubric.Criteria))
	var reasoning []string

	for _, c := range s.Rubric.Criteria {
		cs, err := s.scoreCriterion(ctx, l, c)
		if err != nil {
			log.Warn("score: criterion failed", zap.String("criterion", c.Name), zap.Error(err))
			cs = model.CriterionScore{
				Name:       c.Name,
				Max:        c.MaxPoints,
				Reasoning:  "Error: " + err.Error(),
				Confidence: 0,
				Evidence:   "scoring failed",
			}
		} else {
			why := cs.Reasoning
			if why == "" {
				why = "N/A"
			}
			reasoning = append(reasoning, fmt.Sprintf("%s: %d/%d — %s", c.Name, cs.Score, c.MaxPoints, why))
		}
		breakdown = append(breakdown, cs)
		confidences = append(confidences, cs.Confidence)
	}

	total := breakdown.Total()
	confidence := AggregateConfidence(confidences, Completeness(l))

	log.Info("score: complete",
		zap.Int("score", total),
		zap.Float64("confidence", confidence),
	)

	d := s.stamp(model.StatusDelta(model.StatusScoringComplete))
	d.Score = &total
	d.ScoreBreakdown = &breakdown
	d.ScoringReasoning = model.Ptr(strings.Join(reasoning, "\n"))
	d.Confidence = &confidence
	return d, nil
}

func (s *Stages) scoreCriterion(ctx context.Context, l *model.Lead, c model.Criterion) (model.CriterionScore, error) {
	prompt, err := render(scoreTmpl, scoreInput(l, c))
	if err != nil {
		return model.CriterionScore{}, err
	}

	text, err := s.Generator.Generate(ctx, llm.Request{
		Prompt:      prompt,
		System:      scoreSystem,
		Temperature: 0,
		MaxTokens:   200,
		Format:      llm.FormatJSON,
		Stage:       string(StageScore),
	})
	if err != nil {
		return model.CriterionScore{}, err
	}

	parsed := llm.ParseJSON(text)
	points, ok := llm.Int(parsed, "score")
	if !ok && parsed["score"] != nil {
		return model.CriterionScore{}, eris.Errorf("score %v is not a number", parsed["score"])
	}
	conf, ok := llm.Float(parsed, "confidence")
	if !ok {
		conf = defaultCriterionConfidence
	}

	return model.CriterionScore{
		Name:       c.Name,
		Score:      min(max(points, 0), c.MaxPoints),
		Max:        c.MaxPoints,
		Reasoning:  llm.String(parsed, "reasoning"),
		Confidence: min(max(conf, 0), 1),
		Evidence:   llm.String(parsed, "evidence"),
	}, nil
}

type scoreData struct {
	CompanyName   string
	Description   string
	Industry      string
	IsB2B         string
	EmployeeCount string
	TechStack     string
	BuyingSignals string
	PainPoints    string
	Criterion     model.Criterion
}

func scoreInput(l *model.Lead, c model.Criterion) scoreData {
	b2b := "Unknown"
	if l.IsB2B != nil {
		b2b = fmt.Sprint(*l.IsB2B)
	}
	return scoreData{
		CompanyName:   l.CompanyName,
		Description:   orDefault(l.CompanyDescription, "Unknown"),
		Industry:      orDefault(l.Industry, "Unknown"),
		IsB2B:         b2b,
		EmployeeCount: orDefault(l.EmployeeCount, "Unknown"),
		TechStack:     strings.Join(l.TechStack, ", "),
		BuyingSignals: strings.Join(l.BuyingSignals, ", "),
		PainPoints:    strings.Join(l.PainPoints, ", "),
		Criterion:     c,
	}
}

// Completeness is the fraction of the five key enrichment fields that are
// populated.
func Completeness(l *model.Lead) float64 {
	n := 0
	for _, ok := range []bool{
		l.CompanyDescription != "",
		l.Industry != "",
		l.EmployeeCount != "",
		len(l.TechStack) > 0,
		len(l.BuyingSignals) > 0,
	} {
		if ok {
			n++
		}
	}
	return float64(n) / 5
}

// AggregateConfidence weights mean criterion confidence at 0.7 and data
// completeness at 0.3, rounded to two decimals.
func AggregateConfidence(confidences []float64, completeness float64) float64 {
	mean := 0.0
	if len(confidences) > 0 {
		sum := 0.0
		for _, c := range confidences {
			sum += c
		}
		mean = sum / float64(len(confidences))
	}
	return math.Round((mean*0.7+completeness*0.3)*100) / 100
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
