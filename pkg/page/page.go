// Package page adapts a rendered results document to the filter package.
// Rows are the elements marked with the result-row class, the filter
// controls are looked up by id.
package page

import (
	"fmt"
	"io"
	"strings"

	"github.com/CompassSecurity/scanview/pkg/filter"
	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

const (
	RowSelector           = ".result-row"
	ShowClosedSelector    = "#showClosed"
	MinConfidenceSelector = "#minConfidence"

	StatusAttr     = "data-status"
	ConfidenceAttr = "data-confidence"
)

// Parse reads an HTML document.
func Parse(r io.Reader) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed parsing html document: %w", err)
	}
	return doc, nil
}

// Render writes the whole document, doctype included.
func Render(w io.Writer, doc *goquery.Document) error {
	for _, n := range doc.Nodes {
		if err := html.Render(w, n); err != nil {
			return fmt.Errorf("failed rendering html document: %w", err)
		}
	}
	return nil
}

type row struct {
	sel *goquery.Selection
}

func (r row) Status() string {
	return r.sel.AttrOr(StatusAttr, "")
}

func (r row) Confidence() string {
	return r.sel.AttrOr(ConfidenceAttr, "")
}

// SetVisible toggles the inline display declaration. Other declarations are
// kept byte for byte and a visible row without display is left untouched.
func (r row) SetVisible(visible bool) {
	style, hasStyle := r.sel.Attr("style")
	kept, hadDisplay := withoutDisplay(style)
	if visible && !hadDisplay {
		return
	}

	if !visible {
		base := strings.TrimRight(kept, " \t\n")
		switch {
		case isBlank(base):
			kept = "display: none"
		case strings.HasSuffix(base, ";"):
			kept = base + " display: none"
		default:
			kept = base + "; display: none"
		}
	}

	if isBlank(kept) {
		if hasStyle {
			r.sel.RemoveAttr("style")
		}
		return
	}
	r.sel.SetAttr("style", kept)
}

func isBlank(style string) bool {
	return strings.Trim(style, "; \t\n") == ""
}

// declarations splits an inline style on the semicolons that end a
// declaration. Semicolons in quoted strings or parentheses, as in data URLs,
// belong to the value. Segments keep their original spacing.
func declarations(style string) []string {
	var (
		decls []string
		quote rune
		depth int
		start int
	)
	escaped := false
	for i, c := range style {
		switch {
		case escaped:
			escaped = false
		case c == '\\':
			escaped = true
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '(':
			depth++
		case c == ')' && depth > 0:
			depth--
		case c == ';' && depth == 0:
			decls = append(decls, style[start:i])
			start = i + 1
		}
	}
	return append(decls, style[start:])
}

func isDisplay(decl string) bool {
	prop, _, ok := strings.Cut(decl, ":")
	return ok && strings.EqualFold(strings.TrimSpace(prop), "display")
}

// withoutDisplay drops every display declaration and reports whether there was one.
func withoutDisplay(style string) (string, bool) {
	decls := declarations(style)
	kept := decls[:0:0]
	for _, decl := range decls {
		if !isDisplay(decl) {
			kept = append(kept, decl)
		}
	}
	if len(kept) == len(decls) {
		return style, false
	}
	return strings.TrimSpace(strings.Join(kept, ";")), true
}

// Hidden reports whether a row selection is currently removed from layout.
func Hidden(sel *goquery.Selection) bool {
	for _, decl := range declarations(sel.AttrOr("style", "")) {
		_, value, _ := strings.Cut(decl, ":")
		if isDisplay(decl) && strings.TrimSpace(value) == "none" {
			return true
		}
	}
	return false
}

// Rows returns every result row of the document, in document order.
func Rows(doc *goquery.Document) []filter.Row {
	sel := doc.Find(RowSelector)
	rows := make([]filter.Row, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		rows = append(rows, row{sel: s})
	})
	return rows
}

// ReadConfig reads the filter configuration from the current control state.
// Missing controls read as unchecked and "all".
func ReadConfig(doc *goquery.Document) filter.Config {
	_, checked := doc.Find(ShowClosedSelector).First().Attr("checked")

	return filter.Config{
		ShowClosed:    checked,
		MinConfidence: filter.ParseThreshold(controlValue(doc.Find(MinConfidenceSelector).First())),
	}
}

func controlValue(sel *goquery.Selection) string {
	if sel.Length() == 0 {
		return ""
	}

	if !sel.Is("select") {
		return sel.AttrOr("value", "")
	}

	option := sel.Find("option[selected]").First()
	if option.Length() == 0 {
		option = sel.Find("option").First()
	}
	if value, ok := option.Attr("value"); ok {
		return value
	}
	return strings.TrimSpace(option.Text())
}

// SetControls writes cfg into the show-closed toggle and the confidence selector.
func SetControls(doc *goquery.Document, cfg filter.Config) {
	toggle := doc.Find(ShowClosedSelector).First()
	if cfg.ShowClosed {
		toggle.SetAttr("checked", "checked")
	} else {
		toggle.RemoveAttr("checked")
	}

	selector := doc.Find(MinConfidenceSelector).First()
	if !selector.Is("select") {
		selector.SetAttr("value", string(cfg.MinConfidence))
		return
	}

	options := selector.Find("option")
	target := options.FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.AttrOr("value", strings.TrimSpace(s.Text())) == string(cfg.MinConfidence)
	})
	if target.Length() == 0 {
		return
	}
	options.RemoveAttr("selected")
	target.First().SetAttr("selected", "selected")
}
