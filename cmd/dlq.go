package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/lead-qualifier/internal/config"
	"github.com/sells-group/lead-qualifier/internal/model"
	"github.com/sells-group/lead-qualifier/internal/pipeline"
	"github.com/sells-group/lead-qualifier/internal/resilience"
	"github.com/sells-group/lead-qualifier/internal/store"
)

var dlqCmd = &cobra.Command{
	Use:   "dlq",
	Short: "Inspect and retry failed lead runs",
}

// -- dlq list --

var dlqListCmd = &cobra.Command{
	Use:   "list",
	Short: "List dead letter queue entries",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate(config.ModeStore); err != nil {
			return err
		}
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		limit, _ := cmd.Flags().GetInt("limit")
		entries, err := st.ListDLQ(ctx, limit)
		if err != nil {
			return eris.Wrap(err, "dlq list")
		}
		if len(entries) == 0 {
			fmt.Fprintln(os.Stderr, "Dead letter queue is empty.")
			return nil
		}

		formatDLQList(os.Stdout, entries)
		return nil
	},
}

// -- dlq retry --

var dlqRetryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Re-run leads whose retry time has come",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx, config.ModePipeline)
		if err != nil {
			return err
		}
		defer env.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		all, _ := cmd.Flags().GetBool("all")

		filter := resilience.DLQFilter{Limit: limit}
		if !all {
			filter.ErrorType = resilience.ErrorTransient
		}

		res, err := retryDLQ(ctx, env.Store, filter, startRunner(env.Orchestrator))
		if err != nil {
			return err
		}
		zap.L().Info("dlq retry complete",
			zap.Int("retried", res.Retried),
			zap.Int("succeeded", res.Succeeded),
			zap.Int("failed", res.Failed),
			zap.Int("dropped", res.Dropped),
		)
		return nil
	},
}

func init() {
	dlqListCmd.Flags().Int("limit", 100, "max entries to list")
	dlqRetryCmd.Flags().Int("limit", 100, "max entries to retry")
	dlqRetryCmd.Flags().Bool("all", false, "also retry entries classified as permanent")

	dlqCmd.AddCommand(dlqListCmd, dlqRetryCmd)
	rootCmd.AddCommand(dlqCmd)
}

// leadRunner runs a stored lead from the beginning of the workflow.
type leadRunner func(ctx context.Context, lead *model.Lead) (*pipeline.Run, error)

func startRunner(o *pipeline.Orchestrator) leadRunner {
	return func(ctx context.Context, lead *model.Lead) (*pipeline.Run, error) {
		return o.Start(ctx, lead.LeadID, lead)
	}
}

// enqueueFailedRun records a failed run in the dead letter queue.
func enqueueFailedRun(ctx context.Context, st store.Store, run *pipeline.Run) {
	if run == nil || !run.Failed() || run.Lead == nil {
		return
	}
	entry := resilience.NewDLQEntry(run.RunID, run.Lead.CompanyName, string(run.FailedStage),
		run.Err, dlqMaxRetries(), time.Now().UTC())
	if err := st.EnqueueDLQ(context.WithoutCancel(ctx), entry); err != nil {
		zap.L().Error("dlq: enqueue failed run",
			zap.String("lead_id", run.RunID),
			zap.Error(err),
		)
		return
	}
	zap.L().Info("dlq: failed run enqueued",
		zap.String("lead_id", run.RunID),
		zap.String("stage", entry.FailedStage),
		zap.String("error_type", entry.ErrorType),
	)
}

func dlqMaxRetries() int {
	if cfg != nil && cfg.DLQ.MaxRetries > 0 {
		return cfg.DLQ.MaxRetries
	}
	return 3
}

// dlqRetryResult counts the outcomes of one retry pass.
type dlqRetryResult struct {
	Retried   int
	Succeeded int
	Failed    int
	Dropped   int
}

// retryDLQ re-runs due entries. Entries whose lead no longer exists are
// dropped; successful runs remove the entry; failures push next_retry_at out.
func retryDLQ(ctx context.Context, st store.Store, filter resilience.DLQFilter, run leadRunner) (dlqRetryResult, error) {
	var res dlqRetryResult

	entries, err := st.DequeueDLQ(ctx, filter)
	if err != nil {
		return res, eris.Wrap(err, "dlq: dequeue")
	}

	for _, e := range entries {
		log := zap.L().With(zap.String("dlq_id", e.ID), zap.String("lead_id", e.LeadID))

		lead, err := st.GetLead(ctx, e.LeadID)
		if err != nil {
			return res, eris.Wrapf(err, "dlq: load lead %s", e.LeadID)
		}
		if lead == nil {
			log.Warn("dlq: lead no longer exists, dropping entry")
			if err := st.RemoveDLQ(ctx, e.ID); err != nil {
				return res, err
			}
			res.Dropped++
			continue
		}

		res.Retried++
		r, runErr := run(ctx, lead)
		if runErr == nil && !r.Failed() {
			if err := st.RemoveDLQ(ctx, e.ID); err != nil {
				return res, err
			}
			res.Succeeded++
			log.Info("dlq: retry succeeded", zap.String("status", string(r.Lead.Status)))
			continue
		}

		if runErr == nil {
			runErr = r.Err
		}
		res.Failed++
		next := resilience.NextRetryAt(e.RetryCount+1, time.Now().UTC())
		if err := st.IncrementDLQRetry(ctx, e.ID, next, runErr.Error()); err != nil {
			return res, err
		}
		log.Warn("dlq: retry failed",
			zap.Int("retry_count", e.RetryCount+1),
			zap.Time("next_retry_at", next),
			zap.Error(runErr),
		)
	}
	return res, nil
}

func formatDLQList(out io.Writer, entries []resilience.DLQEntry) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tLEAD\tCOMPANY\tSTAGE\tTYPE\tRETRIES\tNEXT_RETRY\tERROR")
	_, _ = fmt.Fprintln(w, "--\t----\t-------\t-----\t----\t-------\t----------\t-----")

	for _, e := range entries {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d/%d\t%s\t%s\n",
			truncateID(e.ID),
			truncateID(e.LeadID),
			clip(e.CompanyName, 30),
			e.FailedStage,
			e.ErrorType,
			e.RetryCount, e.MaxRetries,
			e.NextRetryAt.Format("2006-01-02 15:04"),
			clip(e.Error, 60),
		)
	}
	_ = w.Flush()
}
