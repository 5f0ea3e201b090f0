package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-qualifier/internal/model"
)

type mockSF struct {
	mock.Mock
}

func (m *mockSF) Query(ctx context.Context, soql string, out any) error {
	args := m.Called(ctx, soql, out)
	return args.Error(0)
}

func (m *mockSF) InsertOne(ctx context.Context, sObjectName string, record map[string]any) (string, error) {
	args := m.Called(ctx, sObjectName, record)
	return args.String(0), args.Error(1)
}

func (m *mockSF) UpdateOne(ctx context.Context, sObjectName string, id string, fields map[string]any) error {
	args := m.Called(ctx, sObjectName, id, fields)
	return args.Error(0)
}

func company(name string) any {
	return mock.MatchedBy(func(rec map[string]any) bool { return rec["Company"] == name })
}

func TestSyncLeadsToCRM(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	sent := seedLead(t, st, &model.Lead{
		LeadID: "sent", Status: model.StatusSent, CompanyName: "Acme",
		ContactName: "Sarah Chen", ContactEmail: "sarah@acme.io", Score: 90,
	})
	approved := seedLead(t, st, &model.Lead{
		LeadID: "approved", Status: model.StatusApproved, CompanyName: "Globex", Score: 60,
	})
	seedLead(t, st, &model.Lead{
		LeadID: "synced", Status: model.StatusSent, CompanyName: "Initech", SalesforceID: "00Q-old",
	})
	seedLead(t, st, &model.Lead{
		LeadID: "broken", Status: model.StatusSent, CompanyName: "Umbrella",
	})
	seedLead(t, st, &model.Lead{
		LeadID: "review", Status: model.StatusHumanReview, CompanyName: "Hooli",
	})

	sf := &mockSF{}
	sf.On("Query", mock.Anything,
		"SELECT Id FROM Lead WHERE Email = 'sarah@acme.io' AND IsConverted = false LIMIT 1",
		mock.Anything).Return(nil)
	sf.On("InsertOne", mock.Anything, "Lead", company("Acme")).Return("00Q-acme", nil)
	sf.On("InsertOne", mock.Anything, "Lead", company("Globex")).Return("00Q-globex", nil)
	sf.On("InsertOne", mock.Anything, "Lead", company("Umbrella")).Return("", assert.AnError)

	synced, failed, err := syncLeadsToCRM(ctx, st, sf, model.DefaultRubric(), 100)
	require.NoError(t, err)
	assert.Equal(t, 2, synced)
	assert.Equal(t, 1, failed)
	sf.AssertExpectations(t)
	sf.AssertNotCalled(t, "InsertOne", mock.Anything, "Lead", company("Initech"))
	sf.AssertNotCalled(t, "InsertOne", mock.Anything, "Lead", company("Hooli"))

	got, err := st.GetLead(ctx, sent.LeadID)
	require.NoError(t, err)
	assert.Equal(t, "00Q-acme", got.SalesforceID)

	got, err = st.GetLead(ctx, approved.LeadID)
	require.NoError(t, err)
	assert.Equal(t, "00Q-globex", got.SalesforceID)

	got, err = st.GetLead(ctx, "broken")
	require.NoError(t, err)
	assert.Empty(t, got.SalesforceID)
}

func TestLeadRecord(t *testing.T) {
	rubric := model.DefaultRubric()

	rec := leadRecord(&model.Lead{
		CompanyName:        "Acme",
		CompanyWebsite:     "https://acme.io",
		CompanyDescription: "Product analytics for SaaS teams.",
		ContactName:        "Sarah  Chen",
		ContactEmail:       "sarah@acme.io",
		ContactTitle:       "VP Engineering",
		Industry:           "Software",
		Score:              85,
		ScoringReasoning:   "Strong B2B fit.",
	}, rubric)

	assert.Equal(t, "Acme", rec.Company)
	assert.Equal(t, "Chen", rec.LastName)
	assert.Equal(t, "Hot", rec.Rating)
	assert.Equal(t, "Product analytics for SaaS teams.\n\nQualification: Strong B2B fit.", rec.Description)

	bare := leadRecord(&model.Lead{CompanyName: "Globex", Score: 30}, rubric)
	assert.Empty(t, bare.LastName)
	assert.Empty(t, bare.Description)
	assert.Equal(t, "Warm", bare.Rating)
	assert.Equal(t, "Globex", bare.Fields()["LastName"])

	cold := leadRecord(&model.Lead{CompanyName: "Hooli", Score: 5, ScoringReasoning: "No fit."}, rubric)
	assert.Equal(t, "Cold", cold.Rating)
	assert.Equal(t, "Qualification: No fit.", cold.Description)
}
