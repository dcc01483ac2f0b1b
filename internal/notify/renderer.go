// Package notify renders email templates and delivers them over SMTP.
package notify

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/flosch/pongo2/v6"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// Message is a rendered email.
type Message struct {
	Subject string
	Text    string
	HTML    string
}

// Renderer executes pongo2 subject/body templates and turns the markdown body into safe HTML.
type Renderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

// NewRenderer builds a renderer. Template output is not HTML escaped by pongo2;
// the body is sanitised after markdown conversion instead.
func NewRenderer() *Renderer {
	pongo2.SetAutoescape(false)

	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM, extension.Linkify),
		goldmark.WithRendererOptions(html.WithHardWraps(), html.WithXHTML()),
	)
	return &Renderer{md: md, policy: bluemonday.UGCPolicy()}
}

// Validate compiles both templates without executing them.
func (r *Renderer) Validate(subject, body string) map[string]string {
	fields := map[string]string{}
	if _, err := pongo2.FromString(subject); err != nil {
		fields["subject"] = err.Error()
	}
	if _, err := pongo2.FromString(body); err != nil {
		fields["body"] = err.Error()
	}
	return fields
}

// Render executes the templates with data.
func (r *Renderer) Render(subject, body string, data map[string]any) (Message, error) {
	ctx := pongo2.Context(data)

	subjectTpl, err := pongo2.FromString(subject)
	if err != nil {
		return Message{}, fmt.Errorf("compile subject: %w", err)
	}
	renderedSubject, err := subjectTpl.Execute(ctx)
	if err != nil {
		return Message{}, fmt.Errorf("render subject: %w", err)
	}

	bodyTpl, err := pongo2.FromString(body)
	if err != nil {
		return Message{}, fmt.Errorf("compile body: %w", err)
	}
	text, err := bodyTpl.Execute(ctx)
	if err != nil {
		return Message{}, fmt.Errorf("render body: %w", err)
	}

	var buf bytes.Buffer
	if err := r.md.Convert([]byte(text), &buf); err != nil {
		return Message{}, fmt.Errorf("convert markdown: %w", err)
	}

	return Message{
		// subjects are single line headers
		Subject: strings.Join(strings.Fields(renderedSubject), " "),
		Text:    text,
		HTML:    r.policy.Sanitize(buf.String()),
	}, nil
}
