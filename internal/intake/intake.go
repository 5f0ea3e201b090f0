// Package intake turns lead files and the Notion queue into new leads.
package intake

import (
	"net/url"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/lead-qualifier/internal/model"
)

// SkippedRow is an input row that did not become a lead.
type SkippedRow struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// Batch is the result of parsing one input.
type Batch struct {
	Leads   []model.Lead
	Skipped []SkippedRow
}

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// IsValidEmail reports whether s looks like a deliverable address.
func IsValidEmail(s string) bool {
	return s != "" && emailPattern.MatchString(s)
}

// NormalizeURL adds an https scheme when missing and strips trailing
// slashes.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}
	return strings.TrimRight(raw, "/")
}

// Domain returns the host of a website without a leading "www.".
func Domain(website string) string {
	u, err := url.Parse(NormalizeURL(website))
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// columnMappings maps lowercased header names to lead fields.
var columnMappings = map[string]string{
	"company":         "company_name",
	"company_name":    "company_name",
	"company name":    "company_name",
	"name":            "company_name",
	"website":         "company_website",
	"company_website": "company_website",
	"url":             "company_website",
	"domain":          "company_website",
	"contact":         "contact_name",
	"contact_name":    "contact_name",
	"contact name":    "contact_name",
	"person":          "contact_name",
	"email":           "contact_email",
	"contact_email":   "contact_email",
	"contact email":   "contact_email",
	"title":           "contact_title",
	"contact_title":   "contact_title",
	"job_title":       "contact_title",
	"role":            "contact_title",
	"position":        "contact_title",
}

// columnIndex resolves the header row into field → column position. The
// first matching column wins.
func columnIndex(header []string) map[string]int {
	idx := make(map[string]int)
	for i, h := range header {
		field, ok := columnMappings[strings.ToLower(strings.TrimSpace(h))]
		if !ok {
			continue
		}
		if _, seen := idx[field]; !seen {
			idx[field] = i
		}
	}
	return idx
}

// mapRow builds a lead from one record. ok is false when the row has no
// company name.
func mapRow(idx map[string]int, record []string, source string) (model.Lead, bool) {
	get := func(field string) string {
		i, ok := idx[field]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	lead := model.Lead{
		Source:         source,
		Status:         model.StatusNew,
		CompanyName:    get("company_name"),
		CompanyWebsite: NormalizeURL(get("company_website")),
		ContactName:    get("contact_name"),
		ContactEmail:   get("contact_email"),
		ContactTitle:   get("contact_title"),
	}
	if lead.CompanyName == "" {
		return lead, false
	}
	if lead.ContactEmail != "" && !IsValidEmail(lead.ContactEmail) {
		zap.L().Warn("intake: possibly invalid email",
			zap.String("company", lead.CompanyName),
			zap.String("email", lead.ContactEmail),
		)
	}
	return lead, true
}

// fromRows maps a header row plus data rows. Row numbers in the result are
// 1-based and count the header.
func fromRows(rows [][]string, source string) Batch {
	var b Batch
	if len(rows) == 0 {
		return b
	}
	idx := columnIndex(rows[0])
	for i, record := range rows[1:] {
		if blank(record) {
			continue
		}
		lead, ok := mapRow(idx, record, source)
		if !ok {
			b.Skipped = append(b.Skipped, SkippedRow{Row: i + 2, Reason: "missing company name"})
			continue
		}
		b.Leads = append(b.Leads, lead)
	}
	return b
}

func blank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
