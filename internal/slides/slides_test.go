package slides

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTitle(t *testing.T) {
	tests := map[string]string{
		"add dark mode":   "Add Dark Mode",
		"light-theme":     "Light Theme",
		"  fix CSS grid ": "Fix CSS Grid",
		"print_layout":    "Print Layout",
		"":                "",
	}
	for in, want := range tests {
		assert.Equal(t, want, Title(in), in)
	}
}

func TestNewSlide(t *testing.T) {
	s := NewSlide("a1b2c3d", "tweak header", filepath.Join("a1b2c3d", "screenshot.png"))
	assert.Equal(t, Slide{
		ID:          "a1b2c3d",
		Title:       "Tweak Header",
		Description: "tweak header",
		Image:       "a1b2c3d/screenshot.png",
	}, s)

	assert.Equal(t, "dark", NewSlide("dark", "", "dark/screenshot.png").Title)
}

func TestRender_Default(t *testing.T) {
	deck := Deck{
		Title: "Site History",
		Slides: []Slide{
			NewSlide("aaa1111", "first page", "aaa1111/screenshot.png"),
			NewSlide("bbb2222", "new colours", "bbb2222/screenshot.png"),
		},
	}
	out, err := Render(deck, "")
	require.NoError(t, err)

	want := `---
title: "Site History"
format: revealjs
---

## First Page

![aaa1111](aaa1111/screenshot.png)

## New Colours

![bbb2222](bbb2222/screenshot.png)
`
	assert.Equal(t, want, string(out))
}

func TestRender_CustomTemplate(t *testing.T) {
	deck := Deck{Slides: []Slide{NewSlide("dark", "dark", "dark/screenshot.png")}}
	out, err := Render(deck, `{{ range .Slides }}{{ .ID }}={{ title .Description }};{{ end }}`)
	require.NoError(t, err)
	assert.Equal(t, "dark=Dark;", string(out))

	_, err = Render(deck, `{{ range .Slides }`)
	assert.Error(t, err)

	_, err = Render(deck, `{{ .Missing }}`)
	assert.Error(t, err)
}

func TestWrite(t *testing.T) {
	dir := t.TempDir()
	tmplPath := filepath.Join(dir, "deck.tmpl")
	require.NoError(t, os.WriteFile(tmplPath, []byte("# {{ .Title }}\n"), 0644))

	out := filepath.Join(dir, "slides.md")
	require.NoError(t, Write(out, Deck{Title: "Profiles"}, tmplPath))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "# Profiles\n", string(data))

	assert.Error(t, Write(out, Deck{}, filepath.Join(dir, "missing.tmpl")))
}
