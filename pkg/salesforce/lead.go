package salesforce

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// LeadRecord is the Salesforce Lead payload written by CRM sync.
type LeadRecord struct {
	Company     string
	LastName    string
	Email       string
	Title       string
	Website     string
	Industry    string
	Rating      string
	Description string
}

// Fields converts the record to a Salesforce field map, dropping empty values.
// LastName is required by Salesforce and falls back to the company name.
func (r LeadRecord) Fields() map[string]any {
	fields := map[string]any{
		"Company":  r.Company,
		"LastName": r.LastName,
	}
	if r.LastName == "" {
		fields["LastName"] = r.Company
	}
	for k, v := range map[string]string{
		"Email":       r.Email,
		"Title":       r.Title,
		"Website":     r.Website,
		"Industry":    r.Industry,
		"Rating":      r.Rating,
		"Description": r.Description,
	} {
		if v != "" {
			fields[k] = v
		}
	}
	return fields
}

// Rating maps a qualification score onto the Lead Rating picklist.
func Rating(score, qualify, reject int) string {
	switch {
	case score >= qualify:
		return "Hot"
	case score >= reject:
		return "Warm"
	default:
		return "Cold"
	}
}

type leadRow struct {
	ID string `json:"Id" salesforce:"Id"`
}

// FindLeadByEmail returns the id of an open Lead with the given email, or
// "" when none exists.
func FindLeadByEmail(ctx context.Context, c Client, email string) (string, error) {
	soql := fmt.Sprintf(
		"SELECT Id FROM Lead WHERE Email = '%s' AND IsConverted = false LIMIT 1",
		escapeSoql(email),
	)
	var rows []leadRow
	if err := c.Query(ctx, soql, &rows); err != nil {
		return "", eris.Wrap(err, fmt.Sprintf("sf: find lead by email %s", email))
	}
	if len(rows) == 0 {
		return "", nil
	}
	return rows[0].ID, nil
}

// UpsertLead updates the Lead with knownID, or the open Lead matching the
// record's email, and inserts a new Lead otherwise. It returns the Lead id.
func UpsertLead(ctx context.Context, c Client, knownID string, rec LeadRecord) (string, error) {
	id := knownID
	if id == "" && rec.Email != "" {
		found, err := FindLeadByEmail(ctx, c, rec.Email)
		if err != nil {
			return "", err
		}
		id = found
	}

	if id != "" {
		if err := c.UpdateOne(ctx, "Lead", id, rec.Fields()); err != nil {
			return "", eris.Wrap(err, "sf: upsert lead")
		}
		return id, nil
	}

	id, err := c.InsertOne(ctx, "Lead", rec.Fields())
	if err != nil {
		return "", eris.Wrap(err, "sf: upsert lead")
	}
	return id, nil
}

// escapeSoql escapes single quotes in SOQL string literals to prevent injection.
func escapeSoql(s string) string {
	return strings.ReplaceAll(s, "'", "\\'")
}
