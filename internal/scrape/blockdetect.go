package scrape

import (
	"net/http"
	"strings"
)

// BlockType describes the kind of block detected.
type BlockType string

const (
	BlockNone       BlockType = ""
	BlockCloudflare BlockType = "cloudflare"
	BlockWAF        BlockType = "waf"
	BlockCaptcha    BlockType = "captcha"
	BlockJSShell    BlockType = "js_shell"
)

// interstitialMaxBytes bounds the size of a challenge page. Marketing sites
// routinely embed reCAPTCHA on contact forms, so captcha markers only count
// on small pages or denied responses.
const interstitialMaxBytes = 20_000

var wafMarkers = []string{"incapsula", "_incap_", "sucuri", "akamai reference #", "request unsuccessful"}

// DetectBlock checks an HTTP response for signs of anti-bot protection.
func DetectBlock(resp *http.Response, body []byte) (bool, BlockType) {
	if resp == nil {
		return false, BlockNone
	}

	denied := resp.StatusCode == http.StatusForbidden ||
		resp.StatusCode == http.StatusTooManyRequests ||
		resp.StatusCode == http.StatusServiceUnavailable

	if denied {
		if resp.Header.Get("cf-ray") != "" || resp.Header.Get("cf-cache-status") != "" ||
			strings.EqualFold(resp.Header.Get("server"), "cloudflare") {
			return true, BlockCloudflare
		}
		if resp.Header.Get("x-iinfo") != "" || resp.Header.Get("x-sucuri-id") != "" {
			return true, BlockWAF
		}
	}

	lower := strings.ToLower(string(body))
	small := len(body) < interstitialMaxBytes

	if strings.Contains(lower, "checking your browser") ||
		strings.Contains(lower, "cf-browser-verification") ||
		(small && strings.Contains(lower, "cloudflare") && strings.Contains(lower, "challenge")) {
		return true, BlockCloudflare
	}

	if denied || small {
		for _, m := range wafMarkers {
			if strings.Contains(lower, m) {
				return true, BlockWAF
			}
		}
		if small && strings.Contains(lower, "captcha") {
			return true, BlockCaptcha
		}
	}

	// JS-only shell: very small body with noscript or meta refresh.
	if len(body) < 2000 {
		if strings.Contains(lower, "<noscript") && strings.Contains(lower, "javascript") {
			return true, BlockJSShell
		}
		if strings.Contains(lower, `meta http-equiv="refresh"`) {
			return true, BlockJSShell
		}
	}

	return false, BlockNone
}
