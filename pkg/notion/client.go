// Package notion reads the lead intake queue kept in a Notion database.
package notion

import (
	"context"
	"time"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Client is the slice of the Notion API the intake queue needs.
type Client interface {
	QueryDatabase(ctx context.Context, dbID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error)
	UpdatePage(ctx context.Context, pageID string, req *notionapi.PageUpdateRequest) (*notionapi.Page, error)
}

// Options tunes the API client. Zero values take the defaults.
type Options struct {
	// RequestsPerSecond throttles calls; Notion allows an average of 3.
	RequestsPerSecond float64
	// CallTimeout bounds each API call.
	CallTimeout time.Duration
}

const (
	defaultRPS         = 3
	defaultCallTimeout = 30 * time.Second
)

type apiClient struct {
	api     *notionapi.Client
	limiter *rate.Limiter
	timeout time.Duration
}

// NewClient returns a throttled client for the integration token.
func NewClient(token string, opts Options) Client {
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = defaultRPS
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = defaultCallTimeout
	}
	return &apiClient{
		api:     notionapi.NewClient(notionapi.Token(token)),
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1),
		timeout: opts.CallTimeout,
	}
}

// call waits for a rate token and runs fn under the per-call timeout.
func (c *apiClient) call(ctx context.Context, fn func(context.Context) error) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return eris.Wrap(err, "notion: rate limit")
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return fn(ctx)
}

func (c *apiClient) QueryDatabase(ctx context.Context, dbID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	var resp *notionapi.DatabaseQueryResponse
	err := c.call(ctx, func(ctx context.Context) error {
		var err error
		resp, err = c.api.Database.Query(ctx, notionapi.DatabaseID(dbID), req)
		return err
	})
	if err != nil {
		return nil, eris.Wrapf(err, "notion: query database %s", dbID)
	}
	return resp, nil
}

func (c *apiClient) UpdatePage(ctx context.Context, pageID string, req *notionapi.PageUpdateRequest) (*notionapi.Page, error) {
	var page *notionapi.Page
	err := c.call(ctx, func(ctx context.Context) error {
		var err error
		page, err = c.api.Page.Update(ctx, notionapi.PageID(pageID), req)
		return err
	})
	if err != nil {
		return nil, eris.Wrapf(err, "notion: update page %s", pageID)
	}
	return page, nil
}
