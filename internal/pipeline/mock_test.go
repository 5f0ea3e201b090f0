package pipeline

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-qualifier/internal/llm"
	"github.com/sells-group/lead-qualifier/internal/model"
	"github.com/sells-group/lead-qualifier/internal/store"
)

// --- Generator Mock ---

type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) Generate(ctx context.Context, req llm.Request) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

// stageIs matches requests issued by the named stage.
func stageIs(s Stage) any {
	return mock.MatchedBy(func(r llm.Request) bool { return r.Stage == string(s) })
}

// --- Research Mock ---

type mockResearch struct {
	mock.Mock
}

func (m *mockResearch) Fetch(ctx context.Context, url string) (*model.Page, error) {
	args := m.Called(ctx, url)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Page), args.Error(1)
}

func (m *mockResearch) Search(ctx context.Context, query string, max int) ([]model.SearchResult, error) {
	args := m.Called(ctx, query, max)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.SearchResult), args.Error(1)
}

// --- Sender Mock ---

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(ctx context.Context, to, subject, body string) (bool, error) {
	args := m.Called(ctx, to, subject, body)
	return args.Bool(0), args.Error(1)
}

// --- Helpers ---

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "pipeline.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func newTestStages(gen llm.Generator, rs *mockResearch, sender *mockSender, st store.Store) *Stages {
	s := &Stages{
		Generator: gen,
		Rubric:    model.DefaultRubric(),
		EmailLog:  st,
		now:       func() time.Time { return fixedNow },
	}
	if rs != nil {
		s.Research = rs
	}
	if sender != nil {
		s.Sender = sender
	}
	return s
}

func enrichedLead() *model.Lead {
	return &model.Lead{
		LeadID:             "lead-1",
		CompanyName:        "Acme Analytics",
		CompanyWebsite:     "https://acme.io",
		ContactName:        "Sarah Chen",
		ContactEmail:       "sarah@acme.io",
		ContactTitle:       "VP People",
		CompanyDescription: "Acme builds analytics software for logistics teams.",
		Industry:           "SaaS",
		IsB2B:              model.Ptr(true),
		EmployeeCount:      "50-200",
		TechStack:          []string{"React", "Next.js", "AWS", "Stripe", "Segment"},
		BuyingSignals:      []string{"Raised Series B", "Hiring SDRs"},
		PainPoints:         []string{"Manual onboarding"},
	}
}
