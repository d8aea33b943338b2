// Package report renders scan results as an HTML page with filter controls
// and applies the row filter to the rendered page before it is served.
package report

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/CompassSecurity/scanview/pkg/filter"
	"github.com/CompassSecurity/scanview/pkg/page"
	"github.com/CompassSecurity/scanview/pkg/result"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

//go:embed templates/*.html
var templateFS embed.FS

const PageTemplate = "results.html"

// PageData is everything the results page shows.
type PageData struct {
	Target   string
	ReportID string
	Action   string
	Results  []result.ScanResult
	Error    string
}

// Renderer executes the embedded page templates.
type Renderer struct {
	templates *template.Template
}

// NewRenderer parses the embedded templates.
func NewRenderer() (*Renderer, error) {
	funcs := template.FuncMap{
		// a Caser is stateful, one per call
		"title": func(s string) string {
			return cases.Title(language.English).String(s)
		},
		"confidence": func(raw string) string {
			return filter.ParseConfidence(raw).String()
		},
	}

	tmpl, err := template.New("").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	return &Renderer{templates: tmpl}, nil
}

// Render writes the unfiltered page.
func (r *Renderer) Render(w io.Writer, data PageData) error {
	if err := r.templates.ExecuteTemplate(w, PageTemplate, data); err != nil {
		return fmt.Errorf("failed executing template %s: %w", PageTemplate, err)
	}
	return nil
}

// RenderFiltered renders the page, sets the controls to cfg and runs the
// document ready filter pass before writing it out.
func (r *Renderer) RenderFiltered(w io.Writer, data PageData, cfg filter.Config) (filter.Stats, error) {
	var buf bytes.Buffer
	if err := r.Render(&buf, data); err != nil {
		return filter.Stats{}, err
	}

	doc, err := page.Parse(&buf)
	if err != nil {
		return filter.Stats{}, err
	}

	page.SetControls(doc, cfg)
	page.OnReady(doc)

	stats := filter.Count(cfg, page.Rows(doc))
	if stats.Total > 0 {
		doc.Find("#summary").SetText(fmt.Sprintf("Showing %d of %d results (%d hidden)", stats.Visible, stats.Total, stats.Hidden))
	}

	return stats, page.Render(w, doc)
}
