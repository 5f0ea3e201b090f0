package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/lead-qualifier/internal/config"
	"github.com/sells-group/lead-qualifier/internal/model"
	"github.com/sells-group/lead-qualifier/internal/store"
)

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "Inspect stored leads",
	Long:  "Commands for listing, viewing, reviewing, and summarizing leads.",
}

// withStore opens the configured store for the duration of fn.
func withStore(ctx context.Context, fn func(st store.Store) error) error {
	if err := cfg.Validate(config.ModeStore); err != nil {
		return err
	}
	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck
	return fn(st)
}

// -- leads list --

var leadsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List leads",
	RunE: func(cmd *cobra.Command, _ []string) error {
		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		if status != "" && !model.LeadStatus(status).Valid() {
			return eris.Errorf("unknown status %q", status)
		}

		return withStore(cmd.Context(), func(st store.Store) error {
			leads, err := st.ListLeads(cmd.Context(), store.LeadFilter{
				Status: model.LeadStatus(status),
				Limit:  limit,
				Offset: offset,
			})
			if err != nil {
				return eris.Wrap(err, "leads list")
			}
			if len(leads) == 0 {
				fmt.Fprintln(os.Stderr, "No leads found.")
				return nil
			}
			formatLeadsList(os.Stdout, leads)
			return nil
		})
	},
}

// -- leads show --

var leadsShowCmd = &cobra.Command{
	Use:   "show <lead-id>",
	Short: "Show full details of a lead",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd.Context(), func(st store.Store) error {
			lead, err := st.GetLead(cmd.Context(), args[0])
			if err != nil {
				return eris.Wrap(err, "leads show")
			}
			if lead == nil {
				return eris.Errorf("lead %s not found", args[0])
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(lead)
		})
	},
}

// -- leads review-queue --

var leadsReviewQueueCmd = &cobra.Command{
	Use:   "review-queue",
	Short: "List leads waiting for human review, highest score first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		return withStore(cmd.Context(), func(st store.Store) error {
			leads, err := st.ReviewQueue(cmd.Context(), limit)
			if err != nil {
				return eris.Wrap(err, "review queue")
			}
			if len(leads) == 0 {
				fmt.Fprintln(os.Stderr, "Review queue is empty.")
				return nil
			}
			formatReviewQueue(os.Stdout, leads)
			return nil
		})
	},
}

// -- leads analytics --

var leadsAnalyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Show aggregate lead statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withStore(cmd.Context(), func(st store.Store) error {
			summary, err := st.Analytics(cmd.Context())
			if err != nil {
				return eris.Wrap(err, "analytics")
			}
			formatAnalytics(os.Stdout, summary)
			return nil
		})
	},
}

// -- leads delete --

var leadsDeleteCmd = &cobra.Command{
	Use:   "delete <lead-id>",
	Short: "Delete a lead",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd.Context(), func(st store.Store) error {
			ok, err := st.DeleteLead(cmd.Context(), args[0])
			if err != nil {
				return eris.Wrap(err, "leads delete")
			}
			if !ok {
				return eris.Errorf("lead %s not found", args[0])
			}
			fmt.Fprintf(os.Stderr, "Deleted lead %s.\n", args[0])
			return nil
		})
	},
}

func init() {
	leadsListCmd.Flags().String("status", "", "filter by status")
	leadsListCmd.Flags().Int("limit", store.DefaultListLimit, "max leads to list")
	leadsListCmd.Flags().Int("offset", 0, "leads to skip")
	leadsReviewQueueCmd.Flags().Int("limit", store.DefaultListLimit, "max leads to list")

	leadsCmd.AddCommand(leadsListCmd, leadsShowCmd, leadsReviewQueueCmd, leadsAnalyticsCmd, leadsDeleteCmd)
	rootCmd.AddCommand(leadsCmd)
}

func formatLeadsList(out io.Writer, leads []model.Lead) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tCOMPANY\tSTATUS\tSCORE\tCONF\tSOURCE\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t-------\t------\t-----\t----\t------\t-------")

	for _, l := range leads {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.2f\t%s\t%s\n",
			truncateID(l.LeadID),
			clip(l.CompanyName, 30),
			l.Status,
			l.Score,
			l.Confidence,
			l.Source,
			l.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

func formatReviewQueue(out io.Writer, leads []model.Lead) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tCOMPANY\tSCORE\tCONF\tREASON")
	_, _ = fmt.Fprintln(w, "--\t-------\t-----\t----\t------")

	for _, l := range leads {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%.2f\t%s\n",
			l.LeadID,
			clip(l.CompanyName, 30),
			l.Score,
			l.Confidence,
			clip(l.HumanReviewReason, 80),
		)
	}
	_ = w.Flush()
}

func formatAnalytics(out io.Writer, s *model.AnalyticsSummary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Total leads:\t%d\n", s.TotalLeads)
	_, _ = fmt.Fprintf(w, "Qualified:\t%d\n", s.Qualified)
	_, _ = fmt.Fprintf(w, "Pending review:\t%d\n", s.PendingReview)
	_, _ = fmt.Fprintf(w, "Rejected:\t%d\n", s.Rejected)
	_, _ = fmt.Fprintf(w, "Avg score:\t%.1f\n", s.AvgScore)
	_, _ = fmt.Fprintf(w, "Avg processing time:\t%.2fs\n", s.AvgProcessingTime)
	_, _ = fmt.Fprintf(w, "Accuracy:\t%d%%\n", s.Accuracy)

	if len(s.StatusCounts) > 0 {
		_, _ = fmt.Fprintln(w, "\nBy status:")
		statuses := make([]string, 0, len(s.StatusCounts))
		for st := range s.StatusCounts {
			statuses = append(statuses, st)
		}
		sort.Strings(statuses)
		for _, st := range statuses {
			_, _ = fmt.Fprintf(w, "  %s:\t%d\n", st, s.StatusCounts[st])
		}
	}
	_ = w.Flush()
}

// truncateID shortens a UUID to its first 8 characters for display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// clip shortens s to n runes with a trailing ellipsis.
func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
