package intake

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-qualifier/internal/model"
	"github.com/sells-group/lead-qualifier/pkg/notion"
)

// QueuedLead is a lead read from the Notion queue along with its page.
type QueuedLead struct {
	PageID string
	Lead   model.Lead
}

// ReadNotionQueue returns every queued page of the intake database as a
// lead. Pages without a company name are reported as skipped.
func ReadNotionQueue(ctx context.Context, c notion.Client, dbID string) ([]QueuedLead, []SkippedRow, error) {
	pages, err := notion.QueryQueuedLeads(ctx, c, dbID)
	if err != nil {
		return nil, nil, eris.Wrap(err, "intake: read notion queue")
	}

	var out []QueuedLead
	var skipped []SkippedRow
	for i, p := range pages {
		lp := notion.ParseLeadPage(p)
		if lp.CompanyName == "" {
			skipped = append(skipped, SkippedRow{Row: i + 1, Reason: "missing company name on page " + lp.PageID})
			continue
		}
		out = append(out, QueuedLead{
			PageID: lp.PageID,
			Lead: model.Lead{
				Source:         model.SourceNotion,
				Status:         model.StatusNew,
				CompanyName:    lp.CompanyName,
				CompanyWebsite: NormalizeURL(lp.Website),
				ContactName:    lp.ContactName,
				ContactEmail:   lp.ContactEmail,
				ContactTitle:   lp.ContactTitle,
				Industry:       lp.Industry,
			},
		})
	}
	return out, skipped, nil
}

// MarkImported flags the given queue pages as imported. It stops at the
// first failure and reports how many pages were updated.
func MarkImported(ctx context.Context, c notion.Client, pageIDs []string) (int, error) {
	for i, id := range pageIDs {
		if err := notion.MarkImported(ctx, c, id); err != nil {
			return i, err
		}
	}
	return len(pageIDs), nil
}
