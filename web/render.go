package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/yuin/goldmark"

	"github.com/fabfab/psy-assistant/chat"
)

//go:embed templates/index.html
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

// goldmark's default renderer drops raw HTML, so backend text cannot inject
// markup into the page.
var markdown = goldmark.New()

type pageView struct {
	Input       string
	Loading     bool
	ButtonLabel string
	Answer      *answerView
}

type answerView struct {
	Panels  []panelView
	Sources []string
}

type panelView struct {
	Title string
	Class string
	Body  template.HTML
}

func buildPageView(state State) (pageView, error) {
	view := pageView{
		Input:       state.Input,
		Loading:     state.Loading,
		ButtonLabel: "Envoyer",
	}
	if state.Loading {
		view.ButtonLabel = "Envoi..."
	}
	if state.Answer == nil {
		return view, nil
	}

	sections := state.Answer.Sections()
	zones := []struct {
		title, class, text string
	}{
		{"Évaluation", "evaluation", sections.Evaluation},
		{"Hypothèse Diagnostique", "diagnosis", sections.Diagnosis},
		{"Recommandations", "recommendations", sections.Recommendations},
		{"", "disclaimer", sections.Disclaimer},
	}

	answer := &answerView{Panels: make([]panelView, 0, len(zones))}
	for _, zone := range zones {
		body, err := renderMarkdown(zone.text)
		if err != nil {
			return pageView{}, fmt.Errorf("render %s panel: %w", zone.class, err)
		}
		answer.Panels = append(answer.Panels, panelView{Title: zone.title, Class: zone.class, Body: body})
	}

	for _, source := range chat.DedupeSources(state.Answer.Sources) {
		answer.Sources = append(answer.Sources, source.Label())
	}
	view.Answer = answer
	return view, nil
}

func renderMarkdown(text string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(text), &buf); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

// RenderPage writes the chat page for state.
func RenderPage(w io.Writer, state State) error {
	view, err := buildPageView(state)
	if err != nil {
		return err
	}
	if err := pageTemplate.Execute(w, view); err != nil {
		return fmt.Errorf("execute page template: %w", err)
	}
	return nil
}
