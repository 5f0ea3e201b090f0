package scrape

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectTechStack(t *testing.T) {
	tests := []struct {
		name string
		html string
		want []string
	}{
		{"empty", "", []string{}},
		{"plain", "<html><body>hello world</body></html>", []string{}},
		{
			name: "next on aws with stripe",
			html: `<div id="__next"></div><script src="https://js.stripe.com/v3/stripe.js"></script><img src="https://x.s3.amazonaws.com/a.png">`,
			want: []string{"React", "Next.js", "AWS", "Stripe"},
		},
		{
			name: "wordpress with hubspot",
			html: `<link href="/wp-content/themes/x.css"><script src="//js.hs-scripts.com/1.js"></script>`,
			want: []string{"WordPress", "HubSpot"},
		},
		{
			name: "case insensitive intercom",
			html: `<script>window.IntercomSettings = {}</script>`,
			want: []string{"Intercom"},
		},
		{
			name: "bootstrap and tailwind",
			html: `<link href="bootstrap.min.css"><div class="tailwind"></div>`,
			want: []string{"Tailwind CSS", "Bootstrap"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectTechStack(tt.html))
		})
	}
}

func TestTechSignatures_Count(t *testing.T) {
	assert.Len(t, techSignatures, 16)
}
