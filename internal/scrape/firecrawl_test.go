package scrape

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-qualifier/pkg/firecrawl"
	firecrawlmocks "github.com/sells-group/lead-qualifier/pkg/firecrawl/mocks"
)

func scrapeReq(url string) firecrawl.ScrapeRequest {
	return firecrawl.ScrapeRequest{URL: url, Formats: []string{"markdown", "html"}, OnlyMainContent: true}
}

func TestFirecrawlAdapter_Scrape_Success(t *testing.T) {
	t.Parallel()
	m := firecrawlmocks.NewMockClient(t)
	adapter := NewFirecrawlAdapter(m)

	m.On("Scrape", context.Background(), scrapeReq("https://acme.com/about")).Return(&firecrawl.ScrapeResponse{
		Success: true,
		Data: firecrawl.PageData{
			Markdown: "# About Us\n\nWe do things.",
			HTML:     `<div id="__next"><h1>About Us</h1></div>`,
			Metadata: firecrawl.Metadata{Title: "About Acme", Description: "About page", StatusCode: 200},
		},
	}, nil).Once()

	result, err := adapter.Scrape(context.Background(), "https://acme.com/about")
	require.NoError(t, err)
	assert.Equal(t, "firecrawl", result.Source)
	assert.Equal(t, "https://acme.com/about", result.Page.URL)
	assert.Equal(t, "About Acme", result.Page.Title)
	assert.Equal(t, "# About Us\n\nWe do things.", result.Page.Text)
	assert.Equal(t, "About page", result.Page.Meta["description"])
	assert.Equal(t, []string{"React", "Next.js"}, DetectTechStack(result.Page.HTML))
	assert.True(t, adapter.Supports(""))
	assert.Equal(t, "firecrawl", adapter.Name())
}

func TestFirecrawlAdapter_Scrape_ClientError(t *testing.T) {
	t.Parallel()
	m := firecrawlmocks.NewMockClient(t)
	adapter := NewFirecrawlAdapter(m)

	m.On("Scrape", context.Background(), scrapeReq("https://fail.com")).
		Return(nil, errors.New("api error: rate limited")).Once()

	_, err := adapter.Scrape(context.Background(), "https://fail.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestFirecrawlAdapter_Scrape_NotSuccessful(t *testing.T) {
	t.Parallel()
	m := firecrawlmocks.NewMockClient(t)
	adapter := NewFirecrawlAdapter(m)

	m.On("Scrape", context.Background(), scrapeReq("https://blocked.com")).
		Return(&firecrawl.ScrapeResponse{Success: false}, nil).Once()

	_, err := adapter.Scrape(context.Background(), "https://blocked.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scrape not successful")
}
