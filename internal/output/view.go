package output

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/panbanda/prism/internal/service/analysis"
	"github.com/panbanda/prism/internal/summary"
)

// AnalysisView renders one analysis result through its summary sections.
type AnalysisView struct {
	Result  *analysis.Result
	Summary *summary.Summary
}

// NewAnalysisView builds the summary for res.
func NewAnalysisView(res *analysis.Result) *AnalysisView {
	return &AnalysisView{Result: res, Summary: summary.Build(res)}
}

type analysisData struct {
	FileType          string           `json:"fileType"`
	FileName          string           `json:"fileName,omitempty"`
	Result            any              `json:"result"`
	PerformanceIssues any              `json:"performance_issues,omitempty"`
	Summary           *summary.Summary `json:"summary"`
}

func (v *AnalysisView) RenderData() any {
	d := analysisData{
		FileType: string(v.Result.Kind),
		FileName: v.Result.FileName,
		Result:   v.Result.Report(),
		Summary:  v.Summary,
	}
	if len(v.Result.Performance) > 0 {
		d.PerformanceIssues = v.Result.Performance
	}
	return d
}

func (v *AnalysisView) title() string {
	if v.Result.FileName != "" {
		return fmt.Sprintf("Analysis of %s (%s)", v.Result.FileName, v.Result.Kind)
	}
	return fmt.Sprintf("Analysis (%s)", v.Result.Kind)
}

func (v *AnalysisView) RenderText(w io.Writer, colored bool) error {
	heading(w, v.title(), colored, color.Bold, color.FgCyan)

	for _, sec := range v.Summary.Sections {
		label := fmt.Sprintf("[%s] %s", sec.Severity, sec.Title)
		if colored {
			label = SeverityColor(string(sec.Severity), label)
		}
		fmt.Fprintln(w, label)
		for _, item := range sec.Items {
			fmt.Fprintf(w, "  - %s\n", item)
		}
		if sec.Hint != "" {
			fmt.Fprintf(w, "  Hint: %s\n", sec.Hint)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Issues: %d, flagged lines: %d\n", v.Summary.IssuesCount, v.Summary.FlaggedLines)
	return nil
}

func (v *AnalysisView) RenderMarkdown(w io.Writer) error {
	fmt.Fprintf(w, "# %s\n\n", v.title())
	for _, sec := range v.Summary.Sections {
		fmt.Fprintf(w, "## %s (%s)\n\n", sec.Title, sec.Severity)
		for _, item := range sec.Items {
			fmt.Fprintf(w, "- `%s`\n", item)
		}
		if sec.Hint != "" {
			fmt.Fprintf(w, "\n> %s\n", sec.Hint)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "**Issues:** %d\n", v.Summary.IssuesCount)
	return nil
}
