package pipeline

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-qualifier/internal/model"
	"github.com/sells-group/lead-qualifier/internal/store"
)

var (
	// ErrNilLead is returned when Start is called without an initial state.
	ErrNilLead = eris.New("pipeline: initial lead is nil")
	// ErrNoCheckpoint is returned when Resume finds no suspended run.
	ErrNoCheckpoint = eris.New("pipeline: no checkpoint for run")
	// ErrRunActive is returned when a run is already executing in this
	// process.
	ErrRunActive = eris.New("pipeline: run already active")
	// ErrRunSuspended is returned by Start when the lead is waiting for a
	// review decision. Resume it instead.
	ErrRunSuspended = eris.New("pipeline: run is suspended for review")
)

// StageResult records the outcome of one executed stage.
type StageResult struct {
	Stage    Stage  `json:"stage"`
	Duration int64  `json:"duration_ms"`
	Error    string `json:"error,omitempty"`
}

// Run is the outcome of one Start or Resume call. A run that failed inside
// a stage is reported through FailedStage and Err, not as a returned error.
type Run struct {
	RunID       string               `json:"run_id"`
	Lead        *model.Lead          `json:"lead"`
	Suspended   bool                 `json:"suspended"`
	Payload     *model.ReviewPayload `json:"payload,omitempty"`
	FailedStage Stage                `json:"failed_stage,omitempty"`
	Err         error                `json:"-"`
	Stages      []StageResult        `json:"stages"`
}

// Failed reports whether the run terminated in a stage failure.
func (r *Run) Failed() bool { return r.Err != nil }

// Orchestrator drives a lead through the stage graph, persisting after
// every stage and suspending at human review.
type Orchestrator struct {
	store  store.Store
	stages map[Stage]StageFunc
	router Router
	now    func() time.Time

	mu     sync.Mutex
	active map[string]struct{}
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// NewOrchestrator creates an orchestrator over the given stage table.
func NewOrchestrator(st store.Store, stages map[Stage]StageFunc, router Router, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:  st,
		stages: stages,
		router: router,
		now:    func() time.Time { return time.Now().UTC() },
		active: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Start runs a lead from ingest until it ends or suspends for review. When
// leadID is non-empty it overrides the id on initial. A lead already in the
// store is updated in place; otherwise it is created after ingest. A lead
// with a live checkpoint is not restarted (ErrRunSuspended).
func (o *Orchestrator) Start(ctx context.Context, leadID string, initial *model.Lead) (*Run, error) {
	if initial == nil {
		return nil, ErrNilLead
	}
	state := initial.Clone()
	if leadID != "" {
		state.LeadID = leadID
	}

	stored := false
	if state.LeadID != "" {
		if !o.acquire(state.LeadID) {
			return nil, eris.Wrapf(ErrRunActive, "run %s", state.LeadID)
		}
		defer o.release(state.LeadID)

		cp, err := o.store.LoadCheckpoint(ctx, state.LeadID)
		if err != nil {
			return nil, eris.Wrapf(err, "pipeline: load checkpoint %s", state.LeadID)
		}
		if cp != nil {
			return nil, eris.Wrapf(ErrRunSuspended, "run %s", state.LeadID)
		}

		existing, err := o.store.GetLead(ctx, state.LeadID)
		if err != nil {
			return nil, eris.Wrapf(err, "pipeline: load lead %s", state.LeadID)
		}
		stored = existing != nil
	}

	run := &Run{RunID: state.LeadID}
	o.execute(ctx, run, state, StageIngest, stored)
	return run, nil
}

// Resume merges a reviewer decision into the checkpointed state, drops the
// checkpoint and continues from the post-review junction. A failed
// checkpoint delete is returned before anything is written.
func (o *Orchestrator) Resume(ctx context.Context, runID string, dec model.ReviewDecision) (*Run, error) {
	if !o.acquire(runID) {
		return nil, eris.Wrapf(ErrRunActive, "run %s", runID)
	}
	defer o.release(runID)

	cp, err := o.store.LoadCheckpoint(ctx, runID)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: load checkpoint %s", runID)
	}
	if cp == nil {
		return nil, eris.Wrapf(ErrNoCheckpoint, "run %s", runID)
	}

	state := cp.State.Clone()
	state.LeadID = runID
	run := &Run{RunID: runID}
	log := runLogger(state)
	log.Info("pipeline: resuming", zap.String("action", string(dec.Action)))

	// The checkpoint state, not the stored row, is authoritative for the
	// rest of the run.
	ReviewDelta(dec, o.now()).Apply(state)

	if err := o.store.DeleteCheckpoint(ctx, runID); err != nil {
		return nil, eris.Wrapf(err, "pipeline: delete checkpoint %s", runID)
	}
	if err := o.persist(ctx, state, model.SnapshotDelta(state), true); err != nil {
		o.fail(ctx, run, state, StageHumanReview, err, true, o.now())
		return run, nil
	}

	o.execute(ctx, run, state, o.router.AfterReview(state), true)
	return run, nil
}

func (o *Orchestrator) execute(ctx context.Context, run *Run, state *model.Lead, next Stage, stored bool) {
	started := o.now()
	log := runLogger(state)

	for next != StageEnd {
		if next == StageHumanReview {
			o.suspend(ctx, run, state, stored, started)
			return
		}

		fn, ok := o.stages[next]
		if !ok {
			o.fail(ctx, run, state, next, eris.Errorf("pipeline: no stage registered for %q", next), stored, started)
			return
		}
		if err := ctx.Err(); err != nil {
			o.fail(ctx, run, state, next, err, stored, started)
			return
		}

		t0 := time.Now()
		delta, err := runStage(ctx, next, fn, state)
		duration := time.Since(t0).Milliseconds()

		result := StageResult{Stage: next, Duration: duration}
		if err != nil {
			result.Error = err.Error()
			run.Stages = append(run.Stages, result)
			log.Error("pipeline: stage failed",
				zap.String("stage", string(next)),
				zap.Int64("duration_ms", duration),
				zap.Error(err),
			)
			o.fail(ctx, run, state, next, err, stored, started)
			return
		}
		run.Stages = append(run.Stages, result)

		if err := o.persist(ctx, state, delta, stored); err != nil {
			o.fail(ctx, run, state, next, err, stored, started)
			return
		}
		stored = true
		run.RunID = state.LeadID
		log = runLogger(state)
		log.Info("pipeline: stage complete",
			zap.String("stage", string(next)),
			zap.Int64("duration_ms", duration),
			zap.String("status", string(state.Status)),
		)

		next = o.route(next, state)
	}

	d := &model.LeadDelta{ProcessingTimeSeconds: o.elapsed(state, started)}
	if err := o.persist(ctx, state, d, stored); err != nil {
		log.Warn("pipeline: persist processing time failed", zap.Error(err))
	}
	run.Lead = state
	log.Info("pipeline: run complete",
		zap.String("status", string(state.Status)),
		zap.Int("score", state.Score),
		zap.Float64("processing_time_seconds", state.ProcessingTimeSeconds),
	)
}

// route returns the stage after from. Fixed edges are listed here; the
// three junctions are delegated to the router.
func (o *Orchestrator) route(from Stage, l *model.Lead) Stage {
	switch from {
	case StageStart:
		return StageIngest
	case StageIngest:
		return StageResearch
	case StageResearch:
		return StageEnrich
	case StageEnrich:
		return StageScore
	case StageScore:
		return o.router.AfterScoring(l)
	case StageDraft:
		return o.router.AfterDrafting(l)
	case StageHumanReview:
		return o.router.AfterReview(l)
	default:
		return StageEnd
	}
}

func (o *Orchestrator) suspend(ctx context.Context, run *Run, state *model.Lead, stored bool, started time.Time) {
	log := runLogger(state)
	reason := o.router.ReviewReason(state)

	d := model.StatusDelta(model.StatusHumanReview)
	d.HumanReviewReason = &reason
	d.ProcessingTimeSeconds = o.elapsed(state, started)
	d.UpdatedAt = model.Ptr(o.now())
	if err := o.persist(ctx, state, d, stored); err != nil {
		o.fail(ctx, run, state, StageHumanReview, err, stored, started)
		return
	}

	payload := BuildPayload(state, reason)
	err := o.store.SaveCheckpoint(ctx, model.Checkpoint{
		RunID:     state.LeadID,
		State:     *state.Clone(),
		Payload:   payload,
		CreatedAt: o.now(),
	})
	if err != nil {
		o.fail(ctx, run, state, StageHumanReview, err, true, started)
		return
	}

	run.RunID = state.LeadID
	run.Lead = state
	run.Suspended = true
	run.Payload = &payload
	log.Info("pipeline: suspended for review",
		zap.Int("score", state.Score),
		zap.Float64("confidence", state.Confidence),
		zap.String("reason", reason),
	)
}

// fail records a terminal failure. Persistence uses a context detached from
// cancellation so a cancelled run still lands as failed.
func (o *Orchestrator) fail(ctx context.Context, run *Run, state *model.Lead, stage Stage, cause error, stored bool, started time.Time) {
	msg := cause.Error()
	d := model.StatusDelta(model.StatusFailed)
	d.ErrorMessage = &msg
	d.ProcessingTimeSeconds = o.elapsed(state, started)
	d.UpdatedAt = model.Ptr(o.now())

	if err := o.persist(context.WithoutCancel(ctx), state, d, stored); err != nil {
		runLogger(state).Error("pipeline: persist failure state", zap.Error(err))
		d.Apply(state)
	}

	run.RunID = state.LeadID
	run.Lead = state
	run.FailedStage = stage
	run.Err = cause
	runLogger(state).Error("pipeline: run failed", zap.String("stage", string(stage)), zap.Error(cause))
}

// persist merges delta into state and writes it. The stored copy becomes
// the authoritative state.
func (o *Orchestrator) persist(ctx context.Context, state *model.Lead, delta *model.LeadDelta, stored bool) error {
	if stored {
		updated, err := o.store.UpdateLead(ctx, state.LeadID, delta)
		if err != nil {
			return eris.Wrapf(err, "pipeline: update lead %s", state.LeadID)
		}
		if updated != nil {
			*state = *updated
			return nil
		}
	}

	delta.Apply(state)
	created, err := o.store.CreateLead(ctx, state)
	if err != nil {
		return eris.Wrapf(err, "pipeline: create lead %s", state.LeadID)
	}
	*state = *created
	return nil
}

func (o *Orchestrator) elapsed(state *model.Lead, started time.Time) *float64 {
	secs := state.ProcessingTimeSeconds + o.now().Sub(started).Seconds()
	return model.Ptr(math.Round(secs*100) / 100)
}

func (o *Orchestrator) acquire(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.active[id]; busy {
		return false
	}
	o.active[id] = struct{}{}
	return true
}

func (o *Orchestrator) release(id string) {
	o.mu.Lock()
	delete(o.active, id)
	o.mu.Unlock()
}

// runStage calls fn on a copy of the lead, converting a panic into an error.
func runStage(ctx context.Context, stage Stage, fn StageFunc, l *model.Lead) (delta *model.LeadDelta, err error) {
	defer func() {
		if r := recover(); r != nil {
			delta, err = nil, eris.Errorf("stage %s panicked: %v", stage, r)
		}
	}()
	delta, err = fn(ctx, l.Clone())
	if err == nil && delta == nil {
		delta = &model.LeadDelta{}
	}
	return delta, err
}

func runLogger(l *model.Lead) *zap.Logger {
	return zap.L().With(zap.String("lead_id", l.LeadID), zap.String("company", l.CompanyName))
}
