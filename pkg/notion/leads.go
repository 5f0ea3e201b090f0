package notion

import (
	"strings"

	"github.com/jomei/notionapi"
)

// LeadPage is a queued lead read from the intake database.
type LeadPage struct {
	PageID       string
	CompanyName  string
	Website      string
	ContactName  string
	ContactEmail string
	ContactTitle string
	Industry     string
	Notes        string
}

// ParseLeadPage reads the intake properties from a page. The company name
// comes from the title property regardless of its column name.
func ParseLeadPage(p notionapi.Page) LeadPage {
	lp := LeadPage{PageID: string(p.ID)}
	for name, prop := range p.Properties {
		if tp, ok := prop.(*notionapi.TitleProperty); ok {
			lp.CompanyName = plainText(tp.Title)
			continue
		}
		val := propertyText(prop)
		switch strings.ToLower(name) {
		case "website", "url", "domain":
			lp.Website = val
		case "contact", "contact name":
			lp.ContactName = val
		case "email", "contact email":
			lp.ContactEmail = val
		case "title", "role", "contact title":
			lp.ContactTitle = val
		case "industry":
			lp.Industry = val
		case "notes":
			lp.Notes = val
		}
	}
	return lp
}

func propertyText(prop notionapi.Property) string {
	switch v := prop.(type) {
	case *notionapi.RichTextProperty:
		return plainText(v.RichText)
	case *notionapi.URLProperty:
		return v.URL
	case *notionapi.EmailProperty:
		return v.Email
	case *notionapi.SelectProperty:
		return v.Select.Name
	}
	return ""
}

func plainText(rt []notionapi.RichText) string {
	var b strings.Builder
	for _, r := range rt {
		if r.PlainText != "" {
			b.WriteString(r.PlainText)
		} else if r.Text != nil {
			b.WriteString(r.Text.Content)
		}
	}
	return strings.TrimSpace(b.String())
}
