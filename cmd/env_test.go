package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-qualifier/internal/config"
	"github.com/sells-group/lead-qualifier/internal/email"
	"github.com/sells-group/lead-qualifier/internal/llm"
	"github.com/sells-group/lead-qualifier/internal/model"
	"github.com/sells-group/lead-qualifier/internal/pipeline"
	"github.com/sells-group/lead-qualifier/internal/resilience"
	"github.com/sells-group/lead-qualifier/internal/store"
)

type offlineResearch struct{}

func (offlineResearch) Fetch(context.Context, string) (*model.Page, error) {
	return nil, errors.New("offline")
}

func (offlineResearch) Search(context.Context, string, int) ([]model.SearchResult, error) {
	return []model.SearchResult{}, nil
}

// scriptedGen gives every rubric criterion the same score. When panicking
// is set, enrichment panics so the run fails.
type scriptedGen struct {
	perCriterion atomic.Int64
	panicking    atomic.Bool
}

func newScriptedGen(perCriterion int) *scriptedGen {
	g := &scriptedGen{}
	g.perCriterion.Store(int64(perCriterion))
	return g
}

func (g *scriptedGen) Generate(_ context.Context, req llm.Request) (string, error) {
	switch pipeline.Stage(req.Stage) {
	case pipeline.StageEnrich:
		if g.panicking.Load() {
			panic("generator exploded")
		}
		return `{"company_description": "Acme builds analytics software.", "industry": "SaaS", "is_b2b": true}`, nil
	case pipeline.StageScore:
		return fmt.Sprintf(`{"score": %d, "confidence": 1.0, "reasoning": "scripted"}`, g.perCriterion.Load()), nil
	case pipeline.StageDraft:
		return `{"subject": "Scaling Acme", "body": "Hi Sarah,\n\nBest regards,\nNexusAI Team"}`, nil
	}
	return "", errors.New("unexpected stage " + req.Stage)
}

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "leads.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

// newTestEnv wires a real orchestrator over SQLite with offline research,
// a scripted generator and a logging email sender.
func newTestEnv(t *testing.T, gen llm.Generator) *pipelineEnv {
	t.Helper()
	cfg = &config.Config{DLQ: config.DLQConfig{MaxRetries: 3}}

	st := newTestStore(t)
	stages := &pipeline.Stages{
		Research:  offlineResearch{},
		Generator: gen,
		Sender:    email.LogSender{},
		EmailLog:  st,
		Rubric:    model.DefaultRubric(),
	}
	return newPipelineEnv(st, resilience.NewServiceBreakers(resilience.DefaultBreakerConfig()), stages, 0)
}

func seedLead(t *testing.T, st store.Store, l *model.Lead) *model.Lead {
	t.Helper()
	created, err := st.CreateLead(context.Background(), l)
	require.NoError(t, err)
	return created
}

func acmeLead() *model.Lead {
	return &model.Lead{
		Status:         model.StatusNew,
		CompanyName:    "Acme Analytics",
		CompanyWebsite: "https://acme.io",
		ContactName:    "Sarah Chen",
		ContactEmail:   "sarah@acme.io",
		ContactTitle:   "VP Engineering",
	}
}
