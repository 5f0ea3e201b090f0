package salesforce

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockClient struct {
	mock.Mock
}

func (m *mockClient) Query(ctx context.Context, soql string, out any) error {
	args := m.Called(ctx, soql, out)
	if fn, ok := args.Get(0).(func(any)); ok {
		fn(out)
		return nil
	}
	return args.Error(0)
}

func (m *mockClient) InsertOne(ctx context.Context, sObjectName string, record map[string]any) (string, error) {
	args := m.Called(ctx, sObjectName, record)
	return args.String(0), args.Error(1)
}

func (m *mockClient) UpdateOne(ctx context.Context, sObjectName string, id string, fields map[string]any) error {
	args := m.Called(ctx, sObjectName, id, fields)
	return args.Error(0)
}

func fillRows(ids ...string) func(any) {
	return func(out any) {
		rows := out.(*[]leadRow)
		for _, id := range ids {
			*rows = append(*rows, leadRow{ID: id})
		}
	}
}

func TestLeadRecord_Fields(t *testing.T) {
	f := LeadRecord{Company: "Acme", Email: "jane@acme.com", Rating: "Hot"}.Fields()
	assert.Equal(t, "Acme", f["Company"])
	assert.Equal(t, "Acme", f["LastName"])
	assert.Equal(t, "jane@acme.com", f["Email"])
	assert.NotContains(t, f, "Title")
	assert.NotContains(t, f, "Website")

	f = LeadRecord{Company: "Acme", LastName: "Doe"}.Fields()
	assert.Equal(t, "Doe", f["LastName"])
}

func TestRating(t *testing.T) {
	assert.Equal(t, "Hot", Rating(85, 70, 30))
	assert.Equal(t, "Hot", Rating(70, 70, 30))
	assert.Equal(t, "Warm", Rating(30, 70, 30))
	assert.Equal(t, "Cold", Rating(29, 70, 30))
}

func TestUpsertLead_KnownIDUpdates(t *testing.T) {
	mc := new(mockClient)
	ctx := context.Background()
	mc.On("UpdateOne", ctx, "Lead", "00Q1", mock.Anything).Return(nil).Once()

	id, err := UpsertLead(ctx, mc, "00Q1", LeadRecord{Company: "Acme", Email: "a@acme.com"})
	require.NoError(t, err)
	assert.Equal(t, "00Q1", id)
	mc.AssertNotCalled(t, "Query", mock.Anything, mock.Anything, mock.Anything)
	mc.AssertExpectations(t)
}

func TestUpsertLead_MatchByEmail(t *testing.T) {
	mc := new(mockClient)
	ctx := context.Background()
	mc.On("Query", ctx, mock.MatchedBy(func(soql string) bool {
		return strings.Contains(soql, "Email = 'o\\'neil@acme.com'")
	}), mock.Anything).Return(fillRows("00Q2")).Once()
	mc.On("UpdateOne", ctx, "Lead", "00Q2", mock.Anything).Return(nil).Once()

	id, err := UpsertLead(ctx, mc, "", LeadRecord{Company: "Acme", Email: "o'neil@acme.com"})
	require.NoError(t, err)
	assert.Equal(t, "00Q2", id)
	mc.AssertExpectations(t)
}

func TestUpsertLead_InsertsWhenMissing(t *testing.T) {
	mc := new(mockClient)
	ctx := context.Background()
	mc.On("Query", ctx, mock.Anything, mock.Anything).Return(fillRows()).Once()
	mc.On("InsertOne", ctx, "Lead", mock.MatchedBy(func(f map[string]any) bool {
		return f["Company"] == "Acme"
	})).Return("00Qnew", nil).Once()

	id, err := UpsertLead(ctx, mc, "", LeadRecord{Company: "Acme", Email: "a@acme.com"})
	require.NoError(t, err)
	assert.Equal(t, "00Qnew", id)
	mc.AssertExpectations(t)
}

func TestUpsertLead_NoEmailSkipsLookup(t *testing.T) {
	mc := new(mockClient)
	ctx := context.Background()
	mc.On("InsertOne", ctx, "Lead", mock.Anything).Return("00Q3", nil).Once()

	id, err := UpsertLead(ctx, mc, "", LeadRecord{Company: "Acme"})
	require.NoError(t, err)
	assert.Equal(t, "00Q3", id)
	mc.AssertExpectations(t)
}

func TestUpsertLead_QueryError(t *testing.T) {
	mc := new(mockClient)
	ctx := context.Background()
	mc.On("Query", ctx, mock.Anything, mock.Anything).Return(assert.AnError).Once()

	_, err := UpsertLead(ctx, mc, "", LeadRecord{Company: "Acme", Email: "a@acme.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "find lead by email")
}
