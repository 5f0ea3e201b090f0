package scrape

import "strings"

// MaxJobListings caps the titles returned by ParseJobListings.
const MaxJobListings = 15

var jobKeywords = []string{
	"engineer", "developer", "manager", "designer", "analyst",
	"director", "lead", "architect", "scientist", "coordinator",
	"specialist", "consultant", "intern", "head of", "vp ",
}

// ParseJobListings picks lines that look like job titles out of a careers
// page: 10 to 80 characters and containing a role keyword.
func ParseJobListings(text string) []string {
	out := []string{}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if len(line) < 10 || len(line) > 80 {
			continue
		}
		lower := strings.ToLower(line)
		for _, kw := range jobKeywords {
			if strings.Contains(lower, kw) {
				out = append(out, line)
				break
			}
		}
		if len(out) == MaxJobListings {
			break
		}
	}
	return out
}
