package render

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"strings"

	"NewsDigest/internal/domain"
	"NewsDigest/internal/ports"
)

//go:embed digest.html.tmpl
var digestTemplate string

// Renderer produces the HTML email body and the plain-text digest.
type Renderer struct {
	html *template.Template
}

var _ ports.DigestRenderer = (*Renderer)(nil)

// NewRenderer parses the embedded email template.
func NewRenderer() (*Renderer, error) {
	tmpl, err := template.New("digest").Parse(digestTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse digest template: %w", err)
	}
	return &Renderer{html: tmpl}, nil
}

// RenderHTML renders the inline-styled email layout; all text is escaped.
func (r *Renderer) RenderHTML(doc domain.DigestDocument) (string, error) {
	var buf bytes.Buffer
	if err := r.html.Execute(&buf, doc); err != nil {
		return "", fmt.Errorf("render digest html: %w", err)
	}
	return buf.String(), nil
}

// RenderText renders the digest for consoles and chat channels.
func (r *Renderer) RenderText(doc domain.DigestDocument) string {
	var b strings.Builder

	b.WriteString(doc.Title)
	if doc.Recipient != "" {
		b.WriteString(" - " + doc.Recipient)
	}
	b.WriteString("\n\n")
	b.WriteString(doc.Intro)
	b.WriteString("\n\n")

	if doc.Empty() {
		b.WriteString(doc.EmptyNotice)
		b.WriteString("\n")
	}
	for _, a := range doc.Articles {
		fmt.Fprintf(&b, "%d. %s\n", a.Rank, a.Title)
		if a.Source != "" {
			fmt.Fprintf(&b, "   %s | score %.2f\n", a.Source, a.Score)
		}
		if a.Summary != "" {
			fmt.Fprintf(&b, "   %s\n", a.Summary)
		}
		if a.Reason != "" {
			fmt.Fprintf(&b, "   Why: %s\n", a.Reason)
		}
		if a.URL != "" {
			fmt.Fprintf(&b, "   %s\n", a.URL)
		}
		b.WriteString("\n")
	}

	b.WriteString(strings.Repeat("-", 40))
	b.WriteString("\n")
	b.WriteString(doc.Footer)
	return b.String()
}
