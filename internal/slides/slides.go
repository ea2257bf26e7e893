// Package slides renders a slide deck that walks through a run's screenshots.
package slides

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/steveyegge/sitelapse/internal/util"
)

// DefaultTemplate produces a Quarto reveal.js deck.
const DefaultTemplate = `---
title: "{{ .Title }}"
format: revealjs
---
{{ range .Slides }}
## {{ .Title }}

![{{ .ID }}]({{ .Image }})
{{ end }}`

// Slide is one screenshot.
type Slide struct {
	ID          string
	Title       string
	Description string
	// Image is relative to the deck's directory.
	Image string
}

// Deck is the template data.
type Deck struct {
	Title  string
	Slides []Slide
}

var titler = cases.Title(language.English, cases.NoLower)

// Title capitalizes a commit subject or profile name for a heading.
func Title(s string) string {
	s = strings.TrimSpace(strings.NewReplacer("-", " ", "_", " ").Replace(s))
	return titler.String(s)
}

// NewSlide builds the slide for an item whose screenshot is at image,
// relative to the deck.
func NewSlide(id, description, image string) Slide {
	title := Title(description)
	if title == "" {
		title = id
	}
	return Slide{
		ID:          id,
		Title:       title,
		Description: description,
		Image:       filepath.ToSlash(image),
	}
}

// Render executes tmpl (DefaultTemplate when empty) over deck.
func Render(deck Deck, tmpl string) ([]byte, error) {
	if tmpl == "" {
		tmpl = DefaultTemplate
	}
	t, err := template.New("slides").Funcs(template.FuncMap{
		"title": Title,
	}).Parse(tmpl)
	if err != nil {
		return nil, fmt.Errorf("parsing slide template: %w", err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, deck); err != nil {
		return nil, fmt.Errorf("rendering slides: %w", err)
	}
	return buf.Bytes(), nil
}

// Write renders deck to path. templatePath, when set, names a file holding
// the template.
func Write(path string, deck Deck, templatePath string) error {
	tmpl := ""
	if templatePath != "" {
		data, err := os.ReadFile(templatePath)
		if err != nil {
			return fmt.Errorf("reading slide template: %w", err)
		}
		tmpl = string(data)
	}
	out, err := Render(deck, tmpl)
	if err != nil {
		return err
	}
	return util.AtomicWriteFile(path, out, 0644)
}
