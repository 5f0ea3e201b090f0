// Package salesforce pushes qualified leads to Salesforce over the REST API.
package salesforce

import (
	"context"
	"maps"

	"github.com/k-capehart/go-salesforce/v3"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Client is the slice of the Salesforce REST API used by CRM sync.
type Client interface {
	Query(ctx context.Context, soql string, out any) error
	InsertOne(ctx context.Context, sObjectName string, record map[string]any) (string, error)
	UpdateOne(ctx context.Context, sObjectName string, id string, fields map[string]any) error
}

// Creds are the JWT bearer flow credentials of the connected app.
type Creds struct {
	LoginURL      string
	Username      string
	ClientID      string
	PrivateKeyPEM string
}

// Connect authenticates with the JWT bearer flow. rps limits API calls per
// second; zero disables the limit.
func Connect(creds Creds, rps float64) (Client, error) {
	sf, err := salesforce.Init(salesforce.Creds{
		Domain:         creds.LoginURL,
		Username:       creds.Username,
		ConsumerKey:    creds.ClientID,
		ConsumerRSAPem: creds.PrivateKeyPEM,
	})
	if err != nil {
		return nil, eris.Wrap(err, "sf: jwt login")
	}
	return NewClient(sf, rps), nil
}

// NewClient wraps an authenticated go-salesforce session.
func NewClient(sf *salesforce.Salesforce, rps float64) Client {
	c := &restClient{sf: sf}
	if rps > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
	}
	return c
}

type restClient struct {
	sf      *salesforce.Salesforce
	limiter *rate.Limiter
}

// acquire gates one call. go-salesforce takes no context, so ctx can only
// stop calls that have not started.
func (c *restClient) acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

func (c *restClient) Query(ctx context.Context, soql string, out any) error {
	if err := c.acquire(ctx); err != nil {
		return eris.Wrap(err, "sf: query")
	}
	return eris.Wrap(c.sf.Query(soql, out), "sf: query")
}

func (c *restClient) InsertOne(ctx context.Context, sObjectName string, record map[string]any) (string, error) {
	if err := c.acquire(ctx); err != nil {
		return "", eris.Wrapf(err, "sf: insert %s", sObjectName)
	}
	res, err := c.sf.InsertOne(sObjectName, record)
	if err != nil {
		return "", eris.Wrapf(err, "sf: insert %s", sObjectName)
	}
	if !res.Success {
		return "", eris.Errorf("sf: insert %s rejected: %v", sObjectName, res.Errors)
	}
	return res.Id, nil
}

// UpdateOne patches the record with id. fields is not modified.
func (c *restClient) UpdateOne(ctx context.Context, sObjectName string, id string, fields map[string]any) error {
	if err := c.acquire(ctx); err != nil {
		return eris.Wrapf(err, "sf: update %s %s", sObjectName, id)
	}
	record := maps.Clone(fields)
	if record == nil {
		record = map[string]any{}
	}
	record["Id"] = id
	return eris.Wrapf(c.sf.UpdateOne(sObjectName, record), "sf: update %s %s", sObjectName, id)
}
