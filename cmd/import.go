package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/lead-qualifier/internal/config"
	"github.com/sells-group/lead-qualifier/internal/fetcher"
	"github.com/sells-group/lead-qualifier/internal/intake"
	"github.com/sells-group/lead-qualifier/internal/model"
	"github.com/sells-group/lead-qualifier/internal/store"
	"github.com/sells-group/lead-qualifier/pkg/notion"
)

var (
	importCSV    string
	importXLSX   string
	importNotion bool
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import leads from a CSV or XLSX file or the Notion queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		sources := 0
		for _, set := range []bool{importCSV != "", importXLSX != "", importNotion} {
			if set {
				sources++
			}
		}
		if sources != 1 {
			return eris.New("exactly one of --csv, --xlsx or --notion is required")
		}

		mode := config.ModeStore
		if importNotion {
			mode = config.ModeNotion
		}
		if err := cfg.Validate(mode); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		files := fetcher.NewSource(fetcher.HTTPOptions{}, fetcher.FTPOptions{})

		var res *importResult
		switch {
		case importCSV != "":
			res, err = importCSVFile(ctx, st, files, importCSV)
		case importXLSX != "":
			res, err = importXLSXFile(ctx, st, files, importXLSX)
		default:
			res, err = importNotionQueue(ctx, st, notion.NewClient(cfg.Notion.Token, notion.Options{}), cfg.Notion.LeadDB)
		}
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

func init() {
	importCmd.Flags().StringVar(&importCSV, "csv", "", "path or http(s)/ftp URL of a lead CSV file")
	importCmd.Flags().StringVar(&importXLSX, "xlsx", "", "path or http(s)/ftp URL of a lead XLSX workbook")
	importCmd.Flags().BoolVar(&importNotion, "notion", false, "import queued pages from the Notion lead database")
	rootCmd.AddCommand(importCmd)
}

// importResult is the outcome of one import, shared with the upload API.
type importResult struct {
	Message      string              `json:"message"`
	CreatedCount int                 `json:"created_count"`
	SkippedCount int                 `json:"skipped_count"`
	CreatedIDs   []string            `json:"created_ids"`
	Skipped      []intake.SkippedRow `json:"skipped"`
}

func importCSVFile(ctx context.Context, st store.Store, files *fetcher.Source, loc string) (*importResult, error) {
	f, err := files.Open(ctx, loc)
	if err != nil {
		return nil, eris.Wrap(err, "import: open csv")
	}
	defer f.Close() //nolint:errcheck

	batch, err := intake.ReadCSV(ctx, f)
	if err != nil {
		return nil, err
	}
	return importBatch(ctx, st, batch)
}

func importXLSXFile(ctx context.Context, st store.Store, files *fetcher.Source, loc string) (*importResult, error) {
	data, err := files.ReadAll(ctx, loc)
	if err != nil {
		return nil, eris.Wrap(err, "import: read xlsx")
	}
	batch, err := intake.ReadXLSX(data)
	if err != nil {
		return nil, err
	}
	return importBatch(ctx, st, batch)
}

// importNotionQueue imports queued Notion pages and marks the imported ones.
func importNotionQueue(ctx context.Context, st store.Store, client notion.Client, dbID string) (*importResult, error) {
	queued, skipped, err := intake.ReadNotionQueue(ctx, client, dbID)
	if err != nil {
		return nil, err
	}

	batch := intake.Batch{Skipped: skipped}
	pages := make(map[string]string, len(queued))
	for _, q := range queued {
		q.Lead.LeadID = uuid.New().String()
		pages[q.Lead.LeadID] = q.PageID
		batch.Leads = append(batch.Leads, q.Lead)
	}

	res, err := importBatch(ctx, st, batch)
	if err != nil {
		return nil, err
	}

	pageIDs := make([]string, 0, len(res.CreatedIDs))
	for _, id := range res.CreatedIDs {
		pageIDs = append(pageIDs, pages[id])
	}
	marked, err := intake.MarkImported(ctx, client, pageIDs)
	if err != nil {
		zap.L().Warn("import: failed to mark notion pages imported",
			zap.Int("marked", marked),
			zap.Int("total", len(pageIDs)),
			zap.Error(err),
		)
	}
	return res, nil
}

// importBatch de-duplicates a parsed batch and bulk inserts it.
func importBatch(ctx context.Context, st store.Store, batch intake.Batch) (*importResult, error) {
	leads, dropped := intake.Dedupe(batch.Leads)
	skipped := batch.Skipped
	if dropped > 0 {
		skipped = append(skipped, intake.SkippedRow{Reason: fmt.Sprintf("%d duplicate rows", dropped)})
	}

	ids := make([]string, 0, len(leads))
	for i := range leads {
		if leads[i].LeadID == "" {
			leads[i].LeadID = uuid.New().String()
		}
		if leads[i].Status == "" {
			leads[i].Status = model.StatusNew
		}
		ids = append(ids, leads[i].LeadID)
	}

	created, err := st.ImportLeads(ctx, leads)
	if err != nil {
		return nil, eris.Wrap(err, "import leads")
	}
	if skipped == nil {
		skipped = []intake.SkippedRow{}
	}

	res := &importResult{
		Message:      fmt.Sprintf("Imported %d leads", created),
		CreatedCount: created,
		SkippedCount: len(batch.Skipped) + dropped,
		CreatedIDs:   ids,
		Skipped:      skipped,
	}
	zap.L().Info("leads imported",
		zap.Int("created", res.CreatedCount),
		zap.Int("skipped", res.SkippedCount),
	)
	return res, nil
}
