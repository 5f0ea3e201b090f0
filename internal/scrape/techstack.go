package scrape

import (
	"regexp"
	"strings"
)

type techSignature struct {
	name     string
	patterns []*regexp.Regexp
}

func signature(name string, patterns ...string) techSignature {
	s := techSignature{name: name}
	for _, p := range patterns {
		s.patterns = append(s.patterns, regexp.MustCompile(strings.ToLower(p)))
	}
	return s
}

// techSignatures is ordered; DetectTechStack reports matches in this order.
var techSignatures = []techSignature{
	signature("React", `react`, `__next`, `_react`),
	signature("Vue.js", `vue`, `__vue`),
	signature("Angular", `ng-`, `angular`),
	signature("Next.js", `__next`, `_next`),
	signature("WordPress", `wp-content`, `wordpress`),
	signature("Shopify", `shopify`, `cdn\.shopify`),
	signature("Django", `csrfmiddlewaretoken`, `django`),
	signature("Ruby on Rails", `rails`, `csrf-token`),
	signature("AWS", `amazonaws`, `aws`),
	signature("Google Cloud", `googleapis`, `gcloud`),
	signature("Stripe", `stripe\.com`, `stripe\.js`),
	signature("HubSpot", `hubspot`, `hs-scripts`),
	signature("Segment", `segment\.com`, `analytics\.js`),
	signature("Intercom", `intercom`, `intercomSettings`),
	signature("Tailwind CSS", `tailwindcss`, `tailwind`),
	signature("Bootstrap", `bootstrap`),
}

// DetectTechStack reports the technologies whose markers appear in the
// page HTML. Matching is case-insensitive.
func DetectTechStack(html string) []string {
	if html == "" {
		return []string{}
	}
	lower := strings.ToLower(html)
	found := []string{}
	for _, sig := range techSignatures {
		for _, re := range sig.patterns {
			if re.MatchString(lower) {
				found = append(found, sig.name)
				break
			}
		}
	}
	return found
}
