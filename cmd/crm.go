package main

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/lead-qualifier/internal/config"
	"github.com/sells-group/lead-qualifier/internal/model"
	"github.com/sells-group/lead-qualifier/internal/store"
	sfpkg "github.com/sells-group/lead-qualifier/pkg/salesforce"
)

var crmSyncLimit int

var crmSyncCmd = &cobra.Command{
	Use:   "crm-sync",
	Short: "Push qualified leads to Salesforce",
	Long:  "Creates or updates a Salesforce Lead for every sent or approved lead that has no Salesforce id yet.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate(config.ModeCRM); err != nil {
			return err
		}
		rubric, err := config.LoadRubric(cfg.Scoring.RubricPath, cfg.Scoring)
		if err != nil {
			return eris.Wrap(err, "load rubric")
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		sf, err := initSalesforce()
		if err != nil {
			return err
		}

		synced, failed, err := syncLeadsToCRM(ctx, st, sf, rubric, crmSyncLimit)
		if err != nil {
			return err
		}
		zap.L().Info("crm sync complete", zap.Int("synced", synced), zap.Int("failed", failed))
		return nil
	},
}

func init() {
	crmSyncCmd.Flags().IntVar(&crmSyncLimit, "limit", 500, "max leads per status to sync")
	rootCmd.AddCommand(crmSyncCmd)
}

// syncLeadsToCRM upserts unsynced sent and approved leads. A failure on one
// lead is logged and counted; store errors abort the sync.
func syncLeadsToCRM(ctx context.Context, st store.Store, sf sfpkg.Client, rubric model.Rubric, limit int) (synced, failed int, err error) {
	for _, status := range []model.LeadStatus{model.StatusSent, model.StatusApproved} {
		leads, err := st.ListLeads(ctx, store.LeadFilter{Status: status, Limit: limit})
		if err != nil {
			return synced, failed, eris.Wrapf(err, "crm sync: list %s leads", status)
		}

		for i := range leads {
			l := &leads[i]
			if l.SalesforceID != "" {
				continue
			}
			log := zap.L().With(zap.String("lead_id", l.LeadID), zap.String("company", l.CompanyName))

			id, err := sfpkg.UpsertLead(ctx, sf, "", leadRecord(l, rubric))
			if err != nil {
				failed++
				log.Warn("crm sync: upsert failed", zap.Error(err))
				continue
			}
			if _, err := st.UpdateLead(ctx, l.LeadID, &model.LeadDelta{SalesforceID: &id}); err != nil {
				return synced, failed, eris.Wrapf(err, "crm sync: store salesforce id for %s", l.LeadID)
			}
			synced++
			log.Info("crm sync: lead synced", zap.String("salesforce_id", id))
		}
	}
	return synced, failed, nil
}

// leadRecord maps a qualified lead onto a Salesforce Lead.
func leadRecord(l *model.Lead, rubric model.Rubric) sfpkg.LeadRecord {
	lastName := ""
	if fields := strings.Fields(l.ContactName); len(fields) > 0 {
		lastName = fields[len(fields)-1]
	}

	desc := l.CompanyDescription
	if l.ScoringReasoning != "" {
		if desc != "" {
			desc += "\n\n"
		}
		desc += "Qualification: " + l.ScoringReasoning
	}

	return sfpkg.LeadRecord{
		Company:     l.CompanyName,
		LastName:    lastName,
		Email:       l.ContactEmail,
		Title:       l.ContactTitle,
		Website:     l.CompanyWebsite,
		Industry:    l.Industry,
		Rating:      sfpkg.Rating(l.Score, rubric.QualificationThreshold, rubric.AutoRejectThreshold),
		Description: desc,
	}
}
