package model

// Page is a fetched web page. HTML is kept alongside the extracted text so
// callers can run markup based detection.
type Page struct {
	URL        string            `json:"url"`
	Title      string            `json:"title"`
	Text       string            `json:"text"`
	HTML       string            `json:"html,omitempty"`
	Meta       map[string]string `json:"meta,omitempty"`
	StatusCode int               `json:"status_code"`
}

// Empty reports whether the page carries no usable text.
func (p *Page) Empty() bool {
	return p == nil || p.Text == ""
}
