package http

import (
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html.tmpl
var templateFS embed.FS

const (
	layoutTemplate      = "layout"
	defaultBodyTemplate = "page"
)

// parseTemplates loads the layout, the default body and every page's own
// body template.
func parseTemplates(pages []Page) (*template.Template, error) {
	t, err := template.ParseFS(templateFS, "templates/*.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	for _, p := range pages {
		if p.Template == "" {
			continue
		}
		if _, err := t.New(p.templateName()).Parse(p.Template); err != nil {
			return nil, fmt.Errorf("failed to parse template of page %s: %w", p.Path, err)
		}
	}
	return t, nil
}
