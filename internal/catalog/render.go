package catalog

import (
	"bytes"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
)

// Renderer turns markdown product copy into sanitized HTML.
type Renderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

// NewRenderer constructs a Renderer with the UGC sanitization policy.
func NewRenderer() *Renderer {
	return &Renderer{md: goldmark.New(), policy: bluemonday.UGCPolicy()}
}

// HTML converts markdown to sanitized HTML.
func (r *Renderer) HTML(markdown string) (string, error) {
	if markdown == "" {
		return "", nil
	}
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(markdown), &buf); err != nil {
		return "", err
	}
	return r.policy.Sanitize(buf.String()), nil
}
