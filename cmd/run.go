package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/lead-qualifier/internal/config"
	"github.com/sells-group/lead-qualifier/internal/model"
	"github.com/sells-group/lead-qualifier/internal/pipeline"
)

var (
	runLeadID      string
	runCompany     string
	runWebsite     string
	runContactName string
	runEmail       string
	runTitle       string
	runSender      string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Qualify a single lead",
	Long:  "Runs one lead through research, enrichment, scoring and drafting. The lead is sent, rejected, or suspended for human review.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx, config.ModePipeline)
		if err != nil {
			return err
		}
		defer env.Close()

		var lead *model.Lead
		if runLeadID != "" {
			lead, err = env.Store.GetLead(ctx, runLeadID)
			if err != nil {
				return eris.Wrap(err, "load lead")
			}
			if lead == nil {
				return eris.Errorf("lead %s not found", runLeadID)
			}
		} else {
			lead = &model.Lead{
				CompanyName:    runCompany,
				CompanyWebsite: runWebsite,
				ContactName:    runContactName,
				ContactEmail:   runEmail,
				ContactTitle:   runTitle,
			}
		}
		if runSender != "" {
			lead.SenderName = runSender
		}
		if lead.CompanyName == "" {
			return eris.New("--company or --lead-id is required")
		}

		run, err := env.Orchestrator.Start(ctx, lead.LeadID, lead)
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}
		if run.Failed() {
			enqueueFailedRun(ctx, env.Store, run)
		}

		logRun(run)
		return writeRun(os.Stdout, run)
	},
}

func init() {
	runCmd.Flags().StringVar(&runLeadID, "lead-id", "", "process an existing stored lead")
	runCmd.Flags().StringVar(&runCompany, "company", "", "company name")
	runCmd.Flags().StringVar(&runWebsite, "website", "", "company website URL")
	runCmd.Flags().StringVar(&runContactName, "contact-name", "", "contact name")
	runCmd.Flags().StringVar(&runEmail, "email", "", "contact email")
	runCmd.Flags().StringVar(&runTitle, "title", "", "contact job title")
	runCmd.Flags().StringVar(&runSender, "sender", "", "sender name used to sign the email")
	rootCmd.AddCommand(runCmd)
}

func logRun(run *pipeline.Run) {
	log := zap.L().With(zap.String("run_id", run.RunID))
	switch {
	case run.Failed():
		log.Error("lead processing failed",
			zap.String("stage", string(run.FailedStage)),
			zap.Error(run.Err),
		)
	case run.Suspended:
		log.Info("lead awaiting human review",
			zap.Int("score", run.Lead.Score),
			zap.String("reason", run.Lead.HumanReviewReason),
		)
	default:
		log.Info("lead processing complete",
			zap.String("status", string(run.Lead.Status)),
			zap.Int("score", run.Lead.Score),
			zap.Float64("confidence", run.Lead.Confidence),
		)
	}
}

// writeRun prints the run as indented JSON.
func writeRun(out io.Writer, run *pipeline.Run) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(run)
}
