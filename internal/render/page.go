package render

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/bryanwahyu/leafscan/internal/capture"
	"github.com/bryanwahyu/leafscan/internal/domain/session"
)

//go:embed templates/*.html
var templateFS embed.FS

// Crop is a crop page entry.
type Crop struct {
	Slug  string
	Title string
}

// CropOf builds the entry for a slug ("mango" -> "Mango").
func CropOf(slug string) Crop {
	title := slug
	if slug != "" {
		title = strings.ToUpper(slug[:1]) + slug[1:]
	}
	return Crop{Slug: slug, Title: title}
}

// IndexData feeds the crop chooser.
type IndexData struct {
	Crops []Crop
}

// AnalyzeData feeds an analysis page.
type AnalyzeData struct {
	Crop       Crop
	Crops      []Crop
	State      session.State
	Widget     capture.Widget
	CanAnalyze bool
	Busy       bool
	Resolved   bool
	Card       *CardView
	Notice     *session.Notice
}

// Failed reports a resolution without a result.
func (d AnalyzeData) Failed() bool { return d.Resolved && d.Card == nil }

// Pages holds the parsed page templates.
type Pages struct {
	tmpl *template.Template
}

// NewPages parses the embedded templates.
func NewPages() (*Pages, error) {
	tmpl, err := template.New("").ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Pages{tmpl: tmpl}, nil
}

// Index renders the crop chooser.
func (p *Pages) Index(w io.Writer, data IndexData) error {
	return p.tmpl.ExecuteTemplate(w, "index", data)
}

// Analyze renders an analysis page.
func (p *Pages) Analyze(w io.Writer, data AnalyzeData) error {
	return p.tmpl.ExecuteTemplate(w, "analyze", data)
}

// CardFragment renders only the result card; the JSON API returns it as html.
func (p *Pages) CardFragment(c *CardView) (template.HTML, error) {
	if c == nil {
		return "", nil
	}
	var sb strings.Builder
	if err := p.tmpl.ExecuteTemplate(&sb, "card", c); err != nil {
		return "", err
	}
	return template.HTML(sb.String()), nil
}
