package main

import (
	"context"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/lead-qualifier/internal/config"
	"github.com/sells-group/lead-qualifier/internal/model"
	"github.com/sells-group/lead-qualifier/internal/store"
)

var batchLimit int

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Qualify every new lead in the store",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx, config.ModePipeline)
		if err != nil {
			return err
		}
		defer env.Close()

		leads, err := env.Store.ListLeads(ctx, store.LeadFilter{Status: model.StatusNew, Limit: batchLimit})
		if err != nil {
			return eris.Wrap(err, "list new leads")
		}

		_, err = processBatch(ctx, env.Store, leads, cfg.Batch.MaxConcurrentLeads, startRunner(env.Orchestrator))
		return err
	},
}

func init() {
	batchCmd.Flags().IntVar(&batchLimit, "limit", 100, "max number of leads to process")
	rootCmd.AddCommand(batchCmd)
}

// batchResult counts the outcomes of one batch.
type batchResult struct {
	Sent      int64
	Rejected  int64
	Review    int64
	Failed    int64
	Processed int64
}

// processBatch runs leads concurrently. An individual failure never aborts
// the batch; failed runs are written to the dead letter queue.
func processBatch(ctx context.Context, st store.Store, leads []model.Lead, concurrency int, run leadRunner) (batchResult, error) {
	var res batchResult
	if len(leads) == 0 {
		zap.L().Info("no new leads found")
		return res, nil
	}
	if concurrency < 1 {
		concurrency = 1
	}

	zap.L().Info("processing batch",
		zap.Int("leads", len(leads)),
		zap.Int("concurrency", concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var sent, rejected, review, failed, processed atomic.Int64

	for i := range leads {
		lead := leads[i]
		g.Go(func() error {
			log := zap.L().With(zap.String("lead_id", lead.LeadID), zap.String("company", lead.CompanyName))

			r, err := run(gctx, &lead)
			processed.Add(1)
			if err != nil {
				failed.Add(1)
				log.Error("lead run could not start", zap.Error(err))
				return nil
			}

			switch {
			case r.Failed():
				failed.Add(1)
				enqueueFailedRun(gctx, st, r)
			case r.Suspended:
				review.Add(1)
			case r.Lead.Status == model.StatusSent:
				sent.Add(1)
			case r.Lead.Status == model.StatusRejected:
				rejected.Add(1)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return res, eris.Wrap(err, "batch processing")
	}

	res = batchResult{
		Sent:      sent.Load(),
		Rejected:  rejected.Load(),
		Review:    review.Load(),
		Failed:    failed.Load(),
		Processed: processed.Load(),
	}
	zap.L().Info("batch complete",
		zap.Int64("processed", res.Processed),
		zap.Int64("sent", res.Sent),
		zap.Int64("rejected", res.Rejected),
		zap.Int64("human_review", res.Review),
		zap.Int64("failed", res.Failed),
	)
	return res, nil
}
