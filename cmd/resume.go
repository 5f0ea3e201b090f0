package main

import (
	"context"
	"errors"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/lead-qualifier/internal/config"
	"github.com/sells-group/lead-qualifier/internal/model"
	"github.com/sells-group/lead-qualifier/internal/pipeline"
	"github.com/sells-group/lead-qualifier/internal/store"
)

var (
	resumeAction   string
	resumeFeedback string
	resumeSubject  string
	resumeBody     string
)

var resumeCmd = &cobra.Command{
	Use:   "resume <run-id>",
	Short: "Apply a review decision to a suspended lead",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		dec, err := parseDecision(resumeAction, resumeFeedback, resumeSubject, resumeBody)
		if err != nil {
			return err
		}

		env, err := initPipeline(ctx, config.ModePipeline)
		if err != nil {
			return err
		}
		defer env.Close()

		run, err := env.Orchestrator.Resume(ctx, args[0], dec)
		if err != nil {
			return eris.Wrap(err, "resume")
		}
		if run.Failed() {
			enqueueFailedRun(ctx, env.Store, run)
		}

		logRun(run)
		return writeRun(os.Stdout, run)
	},
}

func init() {
	resumeCmd.Flags().StringVar(&resumeAction, "action", "", "approve, reject or rescore (required)")
	resumeCmd.Flags().StringVar(&resumeFeedback, "feedback", "", "reviewer feedback")
	resumeCmd.Flags().StringVar(&resumeSubject, "subject", "", "replacement email subject (approve only)")
	resumeCmd.Flags().StringVar(&resumeBody, "body", "", "replacement email body (approve only)")
	_ = resumeCmd.MarkFlagRequired("action")
	rootCmd.AddCommand(resumeCmd)
}

func parseDecision(action, feedback, subject, body string) (model.ReviewDecision, error) {
	a := model.ReviewAction(action)
	switch a {
	case model.ActionApprove, model.ActionReject, model.ActionRescore:
	default:
		return model.ReviewDecision{}, eris.Errorf("invalid review action %q: want approve, reject or rescore", action)
	}
	return model.ReviewDecision{
		Action:             a,
		Feedback:           feedback,
		EditedEmailSubject: subject,
		EditedEmailBody:    body,
	}, nil
}

// errLeadNotFound is returned by review helpers for an unknown lead id.
var errLeadNotFound = eris.New("lead not found")

// reviewLead resumes the suspended run for id. Leads without a checkpoint,
// such as ones moved to human_review outside the workflow, are updated
// directly instead: approve and reject set the status and feedback, rescore
// resets the lead to new with a zero score.
func reviewLead(ctx context.Context, st store.Store, orch *pipeline.Orchestrator, id string, dec model.ReviewDecision) (*model.Lead, error) {
	run, err := orch.Resume(ctx, id, dec)
	switch {
	case err == nil:
		if run.Failed() {
			enqueueFailedRun(ctx, st, run)
		}
		return run.Lead, nil
	case !errors.Is(err, pipeline.ErrNoCheckpoint):
		return nil, err
	}

	delta := directReviewDelta(dec)
	lead, err := st.UpdateLead(ctx, id, delta)
	if err != nil {
		return nil, eris.Wrapf(err, "review lead %s", id)
	}
	if lead == nil {
		return nil, errLeadNotFound
	}
	return lead, nil
}

func directReviewDelta(dec model.ReviewDecision) *model.LeadDelta {
	switch dec.Action {
	case model.ActionApprove:
		d := model.StatusDelta(model.StatusApproved)
		d.HumanFeedback = model.Ptr(dec.Feedback)
		if dec.EditedEmailSubject != "" {
			d.DraftEmailSubject = model.Ptr(dec.EditedEmailSubject)
		}
		if dec.EditedEmailBody != "" {
			d.DraftEmailBody = model.Ptr(dec.EditedEmailBody)
		}
		return d
	case model.ActionRescore:
		d := model.StatusDelta(model.StatusNew)
		d.Score = model.Ptr(0)
		d.Confidence = model.Ptr(0.0)
		return d
	default:
		d := model.StatusDelta(model.StatusRejected)
		d.HumanFeedback = model.Ptr(dec.Feedback)
		return d
	}
}
