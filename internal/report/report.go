// Package report renders an analysis result and its summary as a
// standalone document.
package report

import (
	"bytes"
	"embed"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"

	"github.com/panbanda/prism/internal/service/analysis"
	"github.com/panbanda/prism/internal/summary"
	"github.com/panbanda/prism/pkg/analyzer"
)

//go:embed template.html
var templateFS embed.FS

// Format is an export format.
type Format string

const (
	FormatHTML     Format = "html"
	FormatMarkdown Format = "markdown"
	FormatCSV      Format = "csv"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
)

// Formats lists every supported format.
var Formats = []Format{FormatHTML, FormatMarkdown, FormatCSV, FormatJSON, FormatYAML}

// ParseFormat validates a format name. "md" and "yml" are accepted aliases.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "html", "htm":
		return FormatHTML, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unknown report format %q", s)
}

// FormatFromPath picks a format from a file extension.
func FormatFromPath(path string) (Format, error) {
	return ParseFormat(strings.TrimPrefix(filepath.Ext(path), "."))
}

// ContentType is the MIME type of a rendered format.
func (f Format) ContentType() string {
	switch f {
	case FormatHTML:
		return "text/html; charset=utf-8"
	case FormatMarkdown:
		return "text/markdown; charset=utf-8"
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatYAML:
		return "application/yaml"
	default:
		return "application/json"
	}
}

// Document is everything a report shows.
type Document struct {
	FileName string
	Result   *analysis.Result
	Summary  *summary.Summary
}

// NewDocument builds the summary for res.
func NewDocument(res *analysis.Result) Document {
	return Document{FileName: res.FileName, Result: res, Summary: summary.Build(res)}
}

var kindLabels = map[analyzer.Kind]string{
	analyzer.KindPython:     "Python",
	analyzer.KindJavaScript: "JavaScript",
	analyzer.KindHTML:       "HTML",
	analyzer.KindCSS:        "CSS",
	analyzer.KindRuby:       "Ruby",
	analyzer.KindPHP:        "PHP",
	analyzer.KindGo:         "Go",
}

// KindLabel is the display name of a kind.
func KindLabel(k analyzer.Kind) string {
	if l, ok := kindLabels[k]; ok {
		return l
	}
	return string(k)
}

// Renderer renders documents. It is safe for concurrent use.
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer creates a new renderer with the embedded template.
func NewRenderer() (*Renderer, error) {
	printer := message.NewPrinter(language.English)
	funcMap := template.FuncMap{
		"title":     cases.Title(language.English).String,
		"kindLabel": KindLabel,
		"num": func(n int) string {
			return printer.Sprintf("%d", n)
		},
		"timestamp": func(t time.Time) string {
			return t.Format("2006-01-02 15:04:05 MST")
		},
		"fileName": func(name string) string {
			if name == "" {
				return "not provided"
			}
			return name
		},
	}

	tmplContent, err := templateFS.ReadFile("template.html")
	if err != nil {
		return nil, err
	}
	tmpl, err := template.New("report").Funcs(funcMap).Parse(string(tmplContent))
	if err != nil {
		return nil, err
	}
	return &Renderer{tmpl: tmpl}, nil
}

// Render writes res and its summary to w using a fresh renderer. A nil sum
// is built from res.
func Render(w io.Writer, format Format, res *analysis.Result, sum *summary.Summary) error {
	r, err := NewRenderer()
	if err != nil {
		return err
	}
	return r.Render(w, format, Document{FileName: res.FileName, Result: res, Summary: sum})
}

// WriteFile renders res into path with the format implied by its extension.
func WriteFile(path string, res *analysis.Result, sum *summary.Summary) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	r, err := NewRenderer()
	if err != nil {
		return err
	}
	return r.WriteFile(path, format, Document{FileName: res.FileName, Result: res, Summary: sum})
}

// Render writes doc to w in the given format.
func (r *Renderer) Render(w io.Writer, format Format, doc Document) error {
	if doc.Summary == nil {
		if doc.Result == nil {
			return errors.New("report has neither a result nor a summary")
		}
		doc.Summary = summary.Build(doc.Result)
	}
	switch format {
	case FormatHTML:
		return r.tmpl.Execute(w, doc)
	case FormatMarkdown:
		return renderMarkdown(w, doc)
	case FormatCSV:
		return renderCSV(w, doc)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(envelope(doc))
	case FormatYAML:
		return renderYAML(w, doc)
	}
	return fmt.Errorf("unknown report format %q", format)
}

// WriteFile renders doc into path, creating parent directories.
func (r *Renderer) WriteFile(path string, format Format, doc Document) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	var buf bytes.Buffer
	if err := r.Render(&buf, format, doc); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

type exported struct {
	FileType          analyzer.Kind    `json:"fileType"`
	FileName          string           `json:"fileName,omitempty"`
	Result            any              `json:"result"`
	PerformanceIssues any              `json:"performance_issues,omitempty"`
	Summary           *summary.Summary `json:"summary"`
}

func envelope(doc Document) exported {
	e := exported{Summary: doc.Summary, FileName: doc.FileName}
	if doc.Result != nil {
		e.FileType = doc.Result.Kind
		e.Result = doc.Result.Report()
		if len(doc.Result.Performance) > 0 {
			e.PerformanceIssues = doc.Result.Performance
		}
	}
	return e
}

func renderMarkdown(w io.Writer, doc Document) error {
	var b strings.Builder
	b.WriteString("# Code Analysis Report\n\n")
	fmt.Fprintf(&b, "- **File:** %s\n", orDefault(doc.FileName, "not provided"))
	if doc.Result != nil {
		fmt.Fprintf(&b, "- **Type:** %s\n", KindLabel(doc.Result.Kind))
	}
	fmt.Fprintf(&b, "- **Generated:** %s\n", doc.Summary.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "- **Issues:** %d\n\n", doc.Summary.IssuesCount)

	for _, sec := range doc.Summary.Sections {
		fmt.Fprintf(&b, "## %s\n\n", sec.Title)
		fmt.Fprintf(&b, "_%s_\n\n", cases.Title(language.English).String(string(sec.Severity)))
		for _, item := range sec.Items {
			fmt.Fprintf(&b, "- %s\n", escapeMarkdown(item))
		}
		if sec.Hint != "" {
			fmt.Fprintf(&b, "\n> Hint: %s\n", sec.Hint)
		}
		b.WriteString("\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

var markdownEscaper = strings.NewReplacer("<", "&lt;", ">", "&gt;", "|", "\\|")

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func renderCSV(w io.Writer, doc Document) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"section", "severity", "item"}); err != nil {
		return err
	}
	for _, sec := range doc.Summary.Sections {
		for _, item := range sec.Items {
			if err := cw.Write([]string{sec.ID, string(sec.Severity), item}); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// renderYAML goes through JSON so keys match the JSON export.
func renderYAML(w io.Writer, doc Document) error {
	data, err := json.Marshal(envelope(doc))
	if err != nil {
		return err
	}
	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return err
	}
	return enc.Close()
}
