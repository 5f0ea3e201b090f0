package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-qualifier/internal/config"
	"github.com/sells-group/lead-qualifier/internal/email"
	"github.com/sells-group/lead-qualifier/internal/llm"
	"github.com/sells-group/lead-qualifier/internal/model"
	"github.com/sells-group/lead-qualifier/internal/pipeline"
	"github.com/sells-group/lead-qualifier/internal/research"
	"github.com/sells-group/lead-qualifier/internal/resilience"
	"github.com/sells-group/lead-qualifier/internal/store"
)

// pipelineEnv holds the store, breakers and orchestrator needed by the
// run, resume, batch, dlq and serve commands.
type pipelineEnv struct {
	Store        store.Store
	Breakers     *resilience.ServiceBreakers
	Orchestrator *pipeline.Orchestrator
	Rubric       model.Rubric
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initPipeline validates config for mode, opens the store and wires every
// collaborator into an Orchestrator. Callers should defer env.Close().
func initPipeline(ctx context.Context, mode string) (*pipelineEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	rubric, err := config.LoadRubric(cfg.Scoring.RubricPath, cfg.Scoring)
	if err != nil {
		return nil, eris.Wrap(err, "load rubric")
	}

	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}

	breakers := resilience.NewServiceBreakers(resilience.FromCircuitConfig(cfg.Generation.Circuit))
	gen, err := llm.New(ctx, cfg, breakers)
	if err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "init generator")
	}

	stages := &pipeline.Stages{
		Research:   research.New(cfg, breakers),
		Generator:  gen,
		Sender:     email.New(cfg.Email),
		EmailLog:   st,
		Rubric:     rubric,
		SenderName: cfg.Sender.Name,
	}

	zap.L().Info("pipeline ready",
		zap.String("store", cfg.Store.Driver),
		zap.String("provider", cfg.Generation.Provider),
		zap.Int("criteria", len(rubric.Criteria)),
		zap.Int("qualification_threshold", rubric.QualificationThreshold),
		zap.Int("auto_reject_threshold", rubric.AutoRejectThreshold),
	)

	return newPipelineEnv(st, breakers, stages, cfg.Scoring.MinSendConfidence), nil
}

// newPipelineEnv assembles an environment from already built parts.
func newPipelineEnv(st store.Store, breakers *resilience.ServiceBreakers, stages *pipeline.Stages, minConfidence float64) *pipelineEnv {
	router := pipeline.NewRouter(stages.Rubric, minConfidence)
	return &pipelineEnv{
		Store:        st,
		Breakers:     breakers,
		Orchestrator: pipeline.NewOrchestrator(st, stages.Funcs(), router),
		Rubric:       stages.Rubric,
	}
}
