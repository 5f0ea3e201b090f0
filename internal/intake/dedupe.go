package intake

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/lead-qualifier/internal/model"
)

var (
	folder        = cases.Fold()
	legalSuffixes = []string{" inc", " llc", " ltd", " corp", " co", " gmbh", " plc"}
)

// FoldName reduces a company name to a comparison key: accents removed,
// case folded, punctuation dropped and legal suffixes trimmed.
func FoldName(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	s, _, err := transform.String(t, name)
	if err != nil {
		s = name
	}
	s = folder.String(s)

	var b strings.Builder
	space := false
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			space = false
		case !space && b.Len() > 0:
			b.WriteByte(' ')
			space = true
		}
	}
	key := strings.TrimSpace(b.String())
	for _, suf := range legalSuffixes {
		key = strings.TrimSuffix(key, suf)
	}
	return key
}

// Dedupe drops leads that share a website domain or a folded company name
// with an earlier lead, keeping first occurrences in order. It returns the
// kept leads and the number dropped.
func Dedupe(leads []model.Lead) ([]model.Lead, int) {
	domains := make(map[string]bool, len(leads))
	names := make(map[string]bool, len(leads))
	out := make([]model.Lead, 0, len(leads))
	dropped := 0
	for _, l := range leads {
		domain := Domain(l.CompanyWebsite)
		name := FoldName(l.CompanyName)
		if (domain != "" && domains[domain]) || (name != "" && names[name]) {
			dropped++
			continue
		}
		if domain != "" {
			domains[domain] = true
		}
		if name != "" {
			names[name] = true
		}
		out = append(out, l)
	}
	return out, dropped
}
