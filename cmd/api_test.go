package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-qualifier/internal/model"
	"github.com/sells-group/lead-qualifier/internal/pipeline"
	"github.com/sells-group/lead-qualifier/internal/store"
)

type apiHarness struct {
	env     *pipelineEnv
	gen     *scriptedGen
	api     *api
	handler http.Handler
}

func newAPIHarness(t *testing.T, perCriterion int) *apiHarness {
	t.Helper()
	gen := newScriptedGen(perCriterion)
	env := newTestEnv(t, gen)
	a := newAPI(context.Background(), env, nil, 2)
	return &apiHarness{
		env:     env,
		gen:     gen,
		api:     a,
		handler: a.routes([]string{"http://localhost:3000"}),
	}
}

func (h *apiHarness) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.handler.ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestAPI_Health(t *testing.T) {
	h := newAPIHarness(t, 20)

	rr := h.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")
	body := decodeBody[map[string]any](t, rr)
	assert.Equal(t, "ok", body["status"])
}

func TestAPI_CreateLead(t *testing.T) {
	h := newAPIHarness(t, 20)

	rr := h.do(t, http.MethodPost, "/api/leads", map[string]string{
		"company_name":    "  Acme Analytics ",
		"company_website": "acme.io/",
		"contact_email":   "sarah@acme.io",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	lead := decodeBody[model.Lead](t, rr)
	assert.NotEmpty(t, lead.LeadID)
	assert.Equal(t, "Acme Analytics", lead.CompanyName)
	assert.Equal(t, "https://acme.io", lead.CompanyWebsite)
	assert.Equal(t, model.SourceAPI, lead.Source)
	assert.Equal(t, model.StatusNew, lead.Status)
}

func TestAPI_CreateLead_Validation(t *testing.T) {
	h := newAPIHarness(t, 20)

	rr := h.do(t, http.MethodPost, "/api/leads", map[string]string{"company_website": "acme.io"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "company_name is required")

	req := httptest.NewRequest(http.MethodPost, "/api/leads", strings.NewReader("{not json"))
	rr = httptest.NewRecorder()
	h.handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAPI_ListLeads(t *testing.T) {
	h := newAPIHarness(t, 20)
	seedLead(t, h.env.Store, acmeLead())
	sent := acmeLead()
	sent.CompanyName = "Beta"
	sent.Status = model.StatusSent
	seedLead(t, h.env.Store, sent)

	rr := h.do(t, http.MethodGet, "/api/leads", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decodeBody[[]model.Lead](t, rr), 2)

	rr = h.do(t, http.MethodGet, "/api/leads?status=sent", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	leads := decodeBody[[]model.Lead](t, rr)
	require.Len(t, leads, 1)
	assert.Equal(t, "Beta", leads[0].CompanyName)

	rr = h.do(t, http.MethodGet, "/api/leads?status=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = h.do(t, http.MethodGet, "/api/leads?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAPI_ListLeads_EmptyIsArray(t *testing.T) {
	h := newAPIHarness(t, 20)

	rr := h.do(t, http.MethodGet, "/api/leads", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, "[]", rr.Body.String())
}

func TestAPI_GetAndDeleteLead(t *testing.T) {
	h := newAPIHarness(t, 20)
	lead := seedLead(t, h.env.Store, acmeLead())

	rr := h.do(t, http.MethodGet, "/api/leads/"+lead.LeadID, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, lead.LeadID, decodeBody[model.Lead](t, rr).LeadID)

	rr = h.do(t, http.MethodDelete, "/api/leads/"+lead.LeadID, nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = h.do(t, http.MethodGet, "/api/leads/"+lead.LeadID, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = h.do(t, http.MethodDelete, "/api/leads/"+lead.LeadID, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAPI_ProcessLead(t *testing.T) {
	h := newAPIHarness(t, 20)
	lead := seedLead(t, h.env.Store, acmeLead())

	req := httptest.NewRequest(http.MethodPost, "/api/leads/"+lead.LeadID+"/process", nil)
	req.Header.Set("X-Sender-Name", "Lattice Sales")
	rr := httptest.NewRecorder()
	h.handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusAccepted, rr.Code)
	assert.Equal(t, lead.LeadID, decodeBody[map[string]string](t, rr)["lead_id"])

	h.api.wait()

	got, err := h.env.Store.GetLead(context.Background(), lead.LeadID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSent, got.Status)
	assert.Equal(t, 100, got.Score)
	assert.Equal(t, "Lattice Sales", got.SenderName)

	rr = h.do(t, http.MethodGet, "/api/leads/"+lead.LeadID+"/emails", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	logs := decodeBody[[]model.EmailLog](t, rr)
	require.Len(t, logs, 1)
	assert.Equal(t, "sarah@acme.io", logs[0].ToEmail)
	assert.Equal(t, "sent", logs[0].Status)
}

func TestAPI_ProcessLead_NotFound(t *testing.T) {
	h := newAPIHarness(t, 20)

	rr := h.do(t, http.MethodPost, "/api/leads/missing/process", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAPI_ProcessLead_SuspendedIsConflict(t *testing.T) {
	h := newAPIHarness(t, 10)
	ctx := context.Background()

	run, err := h.env.Orchestrator.Start(ctx, "", acmeLead())
	require.NoError(t, err)
	require.True(t, run.Suspended)

	rr := h.do(t, http.MethodPost, "/api/leads/"+run.RunID+"/process", nil)
	assert.Equal(t, http.StatusConflict, rr.Code)
	h.api.wait()

	got, err := h.env.Store.GetLead(ctx, run.RunID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusHumanReview, got.Status)

	cp, err := h.env.Store.LoadCheckpoint(ctx, run.RunID)
	require.NoError(t, err)
	assert.NotNil(t, cp)
}

// lockedCheckpoints fails every checkpoint read.
type lockedCheckpoints struct {
	store.Store
}

func (lockedCheckpoints) LoadCheckpoint(context.Context, string) (*model.Checkpoint, error) {
	return nil, errors.New("checkpoint table locked")
}

func TestAPI_StartErrorMarksLeadFailed(t *testing.T) {
	h := newAPIHarness(t, 20)
	ctx := context.Background()
	lead := seedLead(t, h.env.Store, acmeLead())
	_, err := h.env.Store.UpdateLead(ctx, lead.LeadID, model.StatusDelta(model.StatusResearching))
	require.NoError(t, err)

	h.api.orch = pipeline.NewOrchestrator(lockedCheckpoints{h.env.Store}, nil, pipeline.NewRouter(model.DefaultRubric(), 0))
	h.api.startAsync(*lead)
	h.api.wait()

	got, err := h.env.Store.GetLead(ctx, lead.LeadID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, got.Status)
	assert.Contains(t, got.ErrorMessage, "checkpoint table locked")
}

func TestAPI_MarkNotStarted(t *testing.T) {
	h := newAPIHarness(t, 20)
	ctx := context.Background()

	active := seedLead(t, h.env.Store, acmeLead())
	_, err := h.env.Store.UpdateLead(ctx, active.LeadID, model.StatusDelta(model.StatusResearching))
	require.NoError(t, err)
	h.api.markNotStarted(active.LeadID, pipeline.ErrRunActive)

	got, err := h.env.Store.GetLead(ctx, active.LeadID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusResearching, got.Status)

	h.api.markNotStarted(active.LeadID, pipeline.ErrRunSuspended)
	got, err = h.env.Store.GetLead(ctx, active.LeadID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusHumanReview, got.Status)
	assert.Empty(t, got.ErrorMessage)
}

func TestAPI_BatchProcessAndReviewQueue(t *testing.T) {
	h := newAPIHarness(t, 10)
	a := seedLead(t, h.env.Store, acmeLead())
	beta := acmeLead()
	beta.CompanyName = "Beta Systems"
	b := seedLead(t, h.env.Store, beta)

	rr := h.do(t, http.MethodPost, "/api/leads/batch-process", nil)
	require.Equal(t, http.StatusAccepted, rr.Code)
	body := decodeBody[map[string]any](t, rr)
	assert.Equal(t, "Processing 2 leads", body["message"])

	h.api.wait()

	rr = h.do(t, http.MethodGet, "/api/review/queue", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	queue := decodeBody[[]model.Lead](t, rr)
	require.Len(t, queue, 2)

	ids := []string{queue[0].LeadID, queue[1].LeadID}
	assert.ElementsMatch(t, []string{a.LeadID, b.LeadID}, ids)
	for _, l := range queue {
		assert.Equal(t, model.StatusHumanReview, l.Status)
		assert.Equal(t, 50, l.Score)
		assert.NotEmpty(t, l.HumanReviewReason)
	}
}

func TestAPI_ReviewApprove_ResumesRun(t *testing.T) {
	h := newAPIHarness(t, 10)

	run, err := h.env.Orchestrator.Start(context.Background(), "", acmeLead())
	require.NoError(t, err)
	require.True(t, run.Suspended)

	rr := h.do(t, http.MethodPost, "/api/review/"+run.RunID+"/approve", map[string]string{
		"feedback":          "ship it",
		"edited_email_body": "Hi Sarah,\n\nEdited.\n\nBest regards,\nNexusAI Team",
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	lead := decodeBody[model.Lead](t, rr)
	assert.Equal(t, model.StatusSent, lead.Status)
	assert.Equal(t, "ship it", lead.HumanFeedback)
	assert.Contains(t, lead.DraftEmailBody, "Edited.")

	cp, err := h.env.Store.LoadCheckpoint(context.Background(), run.RunID)
	require.NoError(t, err)
	assert.Nil(t, cp)
}

func TestAPI_ReviewWithoutCheckpoint(t *testing.T) {
	tests := []struct {
		action       string
		wantStatus   model.LeadStatus
		wantFeedback string
		wantScore    int
	}{
		{"approve", model.StatusApproved, "good fit", 55},
		{"reject", model.StatusRejected, "good fit", 55},
		{"rescore", model.StatusNew, "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.action, func(t *testing.T) {
			h := newAPIHarness(t, 10)
			l := acmeLead()
			l.Status = model.StatusHumanReview
			l.Score = 55
			l.Confidence = 0.6
			lead := seedLead(t, h.env.Store, l)

			rr := h.do(t, http.MethodPost, "/api/review/"+lead.LeadID+"/"+tt.action, map[string]string{"feedback": "good fit"})
			require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

			got := decodeBody[model.Lead](t, rr)
			assert.Equal(t, tt.wantStatus, got.Status)
			assert.Equal(t, tt.wantFeedback, got.HumanFeedback)
			assert.Equal(t, tt.wantScore, got.Score)
		})
	}
}

func TestAPI_Review_EmptyBody(t *testing.T) {
	h := newAPIHarness(t, 10)
	l := acmeLead()
	l.Status = model.StatusHumanReview
	lead := seedLead(t, h.env.Store, l)

	req := httptest.NewRequest(http.MethodPost, "/api/review/"+lead.LeadID+"/reject", nil)
	rr := httptest.NewRecorder()
	h.handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, model.StatusRejected, decodeBody[model.Lead](t, rr).Status)
}

func TestAPI_Review_Errors(t *testing.T) {
	h := newAPIHarness(t, 10)

	rr := h.do(t, http.MethodPost, "/api/review/missing/approve", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	lead := seedLead(t, h.env.Store, acmeLead())
	rr = h.do(t, http.MethodPost, "/api/review/"+lead.LeadID+"/escalate", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAPI_Analytics(t *testing.T) {
	h := newAPIHarness(t, 10)
	for _, tc := range []struct {
		status model.LeadStatus
		score  int
	}{
		{model.StatusSent, 80},
		{model.StatusHumanReview, 60},
		{model.StatusRejected, 10},
		{model.StatusNew, 0},
	} {
		l := acmeLead()
		l.Status = tc.status
		l.Score = tc.score
		seedLead(t, h.env.Store, l)
	}

	rr := h.do(t, http.MethodGet, "/api/analytics/summary", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	summary := decodeBody[model.AnalyticsSummary](t, rr)
	assert.Equal(t, 4, summary.TotalLeads)
	assert.Equal(t, 1, summary.Qualified)
	assert.Equal(t, 1, summary.PendingReview)
	assert.Equal(t, 1, summary.Rejected)
	assert.InDelta(t, 50.0, summary.AvgScore, 0.001)

	rr = h.do(t, http.MethodGet, "/api/analytics/status-counts", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	counts := decodeBody[map[string]int](t, rr)
	assert.Equal(t, 1, counts["sent"])
	assert.Equal(t, 1, counts["new"])

	rr = h.do(t, http.MethodGet, "/api/analytics/score-distribution", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	buckets := decodeBody[[]model.ScoreBucket](t, rr)
	require.Len(t, buckets, 3)
	assert.Equal(t, 10, buckets[0].Score)
	assert.Equal(t, 80, buckets[2].Score)
}

func multipartUpload(t *testing.T, filename, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload/csv", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestAPI_UploadCSV(t *testing.T) {
	h := newAPIHarness(t, 10)

	csv := "company,website,email\n" +
		"Acme Analytics,acme.io,sarah@acme.io\n" +
		"Beta Systems,beta.com,\n" +
		"Acme Inc,https://acme.io/,\n" +
		",nobody.com,\n"

	rr := httptest.NewRecorder()
	h.handler.ServeHTTP(rr, multipartUpload(t, "leads.csv", csv))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	res := decodeBody[importResult](t, rr)
	assert.Equal(t, 2, res.CreatedCount)
	assert.Equal(t, 2, res.SkippedCount)
	require.Len(t, res.CreatedIDs, 2)

	lead, err := h.env.Store.GetLead(context.Background(), res.CreatedIDs[0])
	require.NoError(t, err)
	require.NotNil(t, lead)
	assert.Equal(t, "Acme Analytics", lead.CompanyName)
	assert.Equal(t, model.SourceCSV, lead.Source)
	assert.Equal(t, model.StatusNew, lead.Status)
}

func TestAPI_UploadRejectsOtherFiles(t *testing.T) {
	h := newAPIHarness(t, 10)

	rr := httptest.NewRecorder()
	h.handler.ServeHTTP(rr, multipartUpload(t, "leads.txt", "hello"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/upload/csv", strings.NewReader("plain"))
	rr = httptest.NewRecorder()
	h.handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAPI_CORS(t *testing.T) {
	h := newAPIHarness(t, 10)

	req := httptest.NewRequest(http.MethodOptions, "/api/leads", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rr := httptest.NewRecorder()
	h.handler.ServeHTTP(rr, req)

	assert.Equal(t, "http://localhost:3000", rr.Header().Get("Access-Control-Allow-Origin"))
}
