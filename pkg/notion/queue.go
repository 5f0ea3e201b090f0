package notion

import (
	"context"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
)

// Queue states of the lead intake database.
const (
	StatusQueued   = "Queued"
	StatusImported = "Imported"
)

// queuePageSize is the Notion maximum for one query page.
const queuePageSize = 100

// maxQueuePages stops a runaway cursor loop.
const maxQueuePages = 50

// QueryQueuedLeads pages through every Status = Queued page of the intake
// database, oldest first.
func QueryQueuedLeads(ctx context.Context, c Client, dbID string) ([]notionapi.Page, error) {
	var pages []notionapi.Page
	var cursor notionapi.Cursor

	for n := 0; n < maxQueuePages; n++ {
		resp, err := c.QueryDatabase(ctx, dbID, &notionapi.DatabaseQueryRequest{
			Filter: notionapi.PropertyFilter{
				Property: "Status",
				Status:   &notionapi.StatusFilterCondition{Equals: StatusQueued},
			},
			Sorts: []notionapi.SortObject{
				{Timestamp: notionapi.TimestampCreated, Direction: notionapi.SortOrderASC},
			},
			StartCursor: cursor,
			PageSize:    queuePageSize,
		})
		if err != nil {
			return nil, eris.Wrap(err, "notion: query queued leads")
		}

		pages = append(pages, resp.Results...)
		if !resp.HasMore || resp.NextCursor == "" {
			return pages, nil
		}
		cursor = resp.NextCursor
	}
	return nil, eris.Errorf("notion: queued leads exceed %d pages", maxQueuePages*queuePageSize)
}

// MarkImported moves a queue page to the Imported status.
func MarkImported(ctx context.Context, c Client, pageID string) error {
	_, err := c.UpdatePage(ctx, pageID, &notionapi.PageUpdateRequest{
		Properties: notionapi.Properties{
			"Status": notionapi.StatusProperty{
				Status: notionapi.Status{Name: StatusImported},
			},
		},
	})
	if err != nil {
		return eris.Wrapf(err, "notion: mark page %s imported", pageID)
	}
	return nil
}
