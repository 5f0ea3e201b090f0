package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/lead-qualifier/internal/intake"
	"github.com/sells-group/lead-qualifier/internal/model"
	"github.com/sells-group/lead-qualifier/internal/monitoring"
	"github.com/sells-group/lead-qualifier/internal/pipeline"
	"github.com/sells-group/lead-qualifier/internal/store"
)

const (
	maxUploadBytes    = 10 << 20
	batchProcessLimit = 500
)

// api serves the lead HTTP endpoints. Processing requests run in the
// background on ctx, bounded by sem.
type api struct {
	ctx     context.Context
	store   store.Store
	orch    *pipeline.Orchestrator
	checker *monitoring.Checker

	sem chan struct{}
	wg  sync.WaitGroup
}

// newAPI creates the handler set. checker may be nil.
func newAPI(ctx context.Context, env *pipelineEnv, checker *monitoring.Checker, concurrency int) *api {
	if concurrency < 1 {
		concurrency = 1
	}
	return &api{
		ctx:     ctx,
		store:   env.Store,
		orch:    env.Orchestrator,
		checker: checker,
		sem:     make(chan struct{}, concurrency),
	}
}

// routes builds the chi router.
func (a *api) routes(origins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Sender-Name"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", a.health)

	r.Route("/api", func(r chi.Router) {
		r.Route("/leads", func(r chi.Router) {
			r.Post("/", a.createLead)
			r.Get("/", a.listLeads)
			r.Post("/batch-process", a.batchProcess)
			r.Get("/{id}", a.getLead)
			r.Delete("/{id}", a.deleteLead)
			r.Post("/{id}/process", a.processLead)
			r.Get("/{id}/emails", a.listEmails)
		})
		r.Get("/review/queue", a.reviewQueue)
		r.Post("/review/{id}/{action}", a.review)

		r.Get("/analytics/summary", a.analyticsSummary)
		r.Get("/analytics/score-distribution", a.scoreDistribution)
		r.Get("/analytics/status-counts", a.statusCounts)

		r.Post("/upload/csv", a.uploadLeads)
	})
	return r
}

// wait blocks until every background run has returned.
func (a *api) wait() { a.wg.Wait() }

func (a *api) health(w http.ResponseWriter, _ *http.Request) {
	body := map[string]any{"status": "ok"}
	if a.checker != nil {
		if snap := a.checker.Last(); snap != nil {
			body["metrics"] = snap
		}
	}
	writeJSON(w, http.StatusOK, body)
}

// -- leads --

type createLeadRequest struct {
	CompanyName    string `json:"company_name"`
	CompanyWebsite string `json:"company_website"`
	ContactName    string `json:"contact_name"`
	ContactEmail   string `json:"contact_email"`
	ContactTitle   string `json:"contact_title"`
}

func (a *api) createLead(w http.ResponseWriter, r *http.Request) {
	var req createLeadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.CompanyName = strings.TrimSpace(req.CompanyName)
	if req.CompanyName == "" {
		writeError(w, http.StatusBadRequest, "company_name is required")
		return
	}

	lead, err := a.store.CreateLead(r.Context(), &model.Lead{
		Source:         model.SourceAPI,
		Status:         model.StatusNew,
		CompanyName:    req.CompanyName,
		CompanyWebsite: intake.NormalizeURL(req.CompanyWebsite),
		ContactName:    strings.TrimSpace(req.ContactName),
		ContactEmail:   strings.TrimSpace(req.ContactEmail),
		ContactTitle:   strings.TrimSpace(req.ContactTitle),
	})
	if err != nil {
		a.internalError(w, "create lead", err)
		return
	}
	writeJSON(w, http.StatusCreated, lead)
}

func (a *api) listLeads(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status := model.LeadStatus(q.Get("status"))
	if status != "" && !status.Valid() {
		writeError(w, http.StatusBadRequest, "unknown status "+string(status))
		return
	}
	limit, err := intParam(q.Get("limit"), store.DefaultListLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, "limit must be an integer")
		return
	}
	offset, err := intParam(q.Get("offset"), 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "offset must be an integer")
		return
	}

	leads, err := a.store.ListLeads(r.Context(), store.LeadFilter{Status: status, Limit: limit, Offset: offset})
	if err != nil {
		a.internalError(w, "list leads", err)
		return
	}
	writeJSON(w, http.StatusOK, nonNilLeads(leads))
}

func (a *api) getLead(w http.ResponseWriter, r *http.Request) {
	lead, ok := a.loadLead(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

func (a *api) deleteLead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ok, err := a.store.DeleteLead(r.Context(), id)
	if err != nil {
		a.internalError(w, "delete lead", err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "lead not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Lead deleted", "lead_id": id})
}

func (a *api) processLead(w http.ResponseWriter, r *http.Request) {
	lead, ok := a.loadLead(w, r)
	if !ok {
		return
	}
	cp, err := a.store.LoadCheckpoint(r.Context(), lead.LeadID)
	if err != nil {
		a.internalError(w, "load checkpoint", err)
		return
	}
	if cp != nil {
		writeError(w, http.StatusConflict, "lead is waiting for review; approve, reject or rescore it instead")
		return
	}

	d := model.StatusDelta(model.StatusResearching)
	if sender := strings.TrimSpace(r.Header.Get("X-Sender-Name")); sender != "" {
		d.SenderName = &sender
	}
	updated, err := a.store.UpdateLead(r.Context(), lead.LeadID, d)
	if err != nil {
		a.internalError(w, "mark lead researching", err)
		return
	}
	if updated != nil {
		lead = updated
	}

	a.startAsync(*lead)
	writeJSON(w, http.StatusAccepted, map[string]string{
		"message": "Processing started",
		"lead_id": lead.LeadID,
	})
}

func (a *api) batchProcess(w http.ResponseWriter, r *http.Request) {
	leads, err := a.store.ListLeads(r.Context(), store.LeadFilter{Status: model.StatusNew, Limit: batchProcessLimit})
	if err != nil {
		a.internalError(w, "list new leads", err)
		return
	}

	ids := make([]string, 0, len(leads))
	for _, l := range leads {
		ids = append(ids, l.LeadID)
		a.startAsync(l)
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"message":  "Processing " + strconv.Itoa(len(ids)) + " leads",
		"lead_ids": ids,
	})
}

func (a *api) listEmails(w http.ResponseWriter, r *http.Request) {
	logs, err := a.store.ListEmails(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.internalError(w, "list emails", err)
		return
	}
	if logs == nil {
		logs = []model.EmailLog{}
	}
	writeJSON(w, http.StatusOK, logs)
}

// -- review --

func (a *api) reviewQueue(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r.URL.Query().Get("limit"), store.DefaultListLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, "limit must be an integer")
		return
	}
	leads, err := a.store.ReviewQueue(r.Context(), limit)
	if err != nil {
		a.internalError(w, "review queue", err)
		return
	}
	writeJSON(w, http.StatusOK, nonNilLeads(leads))
}

type reviewRequest struct {
	Feedback           string `json:"feedback"`
	EditedEmailSubject string `json:"edited_email_subject"`
	EditedEmailBody    string `json:"edited_email_body"`
}

func (a *api) review(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req reviewRequest
	body, err := io.ReadAll(io.LimitReader(r.Body, maxUploadBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	dec, err := parseDecision(chi.URLParam(r, "action"), req.Feedback, req.EditedEmailSubject, req.EditedEmailBody)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	lead, err := reviewLead(r.Context(), a.store, a.orch, id, dec)
	switch {
	case errors.Is(err, errLeadNotFound):
		writeError(w, http.StatusNotFound, "lead not found")
	case errors.Is(err, pipeline.ErrRunActive):
		writeError(w, http.StatusConflict, "lead is already being processed")
	case err != nil:
		a.internalError(w, "review lead", err)
	default:
		writeJSON(w, http.StatusOK, lead)
	}
}

// -- analytics --

func (a *api) analyticsSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := a.store.Analytics(r.Context())
	if err != nil {
		a.internalError(w, "analytics summary", err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (a *api) scoreDistribution(w http.ResponseWriter, r *http.Request) {
	buckets, err := a.store.ScoreDistribution(r.Context())
	if err != nil {
		a.internalError(w, "score distribution", err)
		return
	}
	if buckets == nil {
		buckets = []model.ScoreBucket{}
	}
	writeJSON(w, http.StatusOK, buckets)
}

func (a *api) statusCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := a.store.StatusCounts(r.Context())
	if err != nil {
		a.internalError(w, "status counts", err)
		return
	}
	if counts == nil {
		counts = map[string]int{}
	}
	writeJSON(w, http.StatusOK, counts)
}

// -- upload --

func (a *api) uploadLeads(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close() //nolint:errcheck

	var batch intake.Batch
	switch strings.ToLower(filepath.Ext(header.Filename)) {
	case ".csv":
		batch, err = intake.ReadCSV(r.Context(), file)
	case ".xlsx":
		var data []byte
		data, err = io.ReadAll(file)
		if err == nil {
			batch, err = intake.ReadXLSX(data)
		}
	default:
		writeError(w, http.StatusBadRequest, "only .csv and .xlsx files are supported")
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not parse file: "+err.Error())
		return
	}

	res, err := importBatch(r.Context(), a.store, batch)
	if err != nil {
		a.internalError(w, "import leads", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// -- helpers --

// startAsync runs lead in the background once a concurrency slot frees up.
func (a *api) startAsync(lead model.Lead) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()

		select {
		case a.sem <- struct{}{}:
		case <-a.ctx.Done():
			return
		}
		defer func() { <-a.sem }()

		log := zap.L().With(zap.String("lead_id", lead.LeadID), zap.String("company", lead.CompanyName))
		start := time.Now()
		run, err := a.orch.Start(a.ctx, lead.LeadID, &lead)
		if err != nil {
			log.Error("api: lead run could not start", zap.Error(err))
			a.markNotStarted(lead.LeadID, err)
			return
		}
		if run.Failed() {
			enqueueFailedRun(a.ctx, a.store, run)
			return
		}
		log.Info("api: lead run finished",
			zap.String("status", string(run.Lead.Status)),
			zap.Bool("suspended", run.Suspended),
			zap.Duration("elapsed", time.Since(start)),
		)
	}()
}

// markNotStarted settles a lead whose run never started so it does not sit
// in researching. A run active elsewhere owns the lead and is left alone.
func (a *api) markNotStarted(leadID string, cause error) {
	var d *model.LeadDelta
	switch {
	case errors.Is(cause, pipeline.ErrRunActive):
		return
	case errors.Is(cause, pipeline.ErrRunSuspended):
		d = model.StatusDelta(model.StatusHumanReview)
	default:
		d = model.StatusDelta(model.StatusFailed)
		d.ErrorMessage = model.Ptr(cause.Error())
	}
	if _, err := a.store.UpdateLead(context.WithoutCancel(a.ctx), leadID, d); err != nil {
		zap.L().Error("api: settle unstarted lead",
			zap.String("lead_id", leadID),
			zap.Error(err),
		)
	}
}

func (a *api) loadLead(w http.ResponseWriter, r *http.Request) (*model.Lead, bool) {
	lead, err := a.store.GetLead(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.internalError(w, "get lead", err)
		return nil, false
	}
	if lead == nil {
		writeError(w, http.StatusNotFound, "lead not found")
		return nil, false
	}
	return lead, true
}

func (a *api) internalError(w http.ResponseWriter, op string, err error) {
	zap.L().Error("api: "+op, zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal server error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func nonNilLeads(leads []model.Lead) []model.Lead {
	if leads == nil {
		return []model.Lead{}
	}
	return leads
}
