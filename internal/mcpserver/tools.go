package mcpserver

import (
	"bytes"
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/panbanda/prism/internal/output"
	"github.com/panbanda/prism/internal/report"
	"github.com/panbanda/prism/internal/service/analysis"
	"github.com/panbanda/prism/pkg/analyzer"
	"github.com/panbanda/prism/pkg/analyzer/python"
)

// FormatInput selects the rendering of a tool result.
type FormatInput struct {
	Format string `json:"format,omitempty" jsonschema:"Output format: toon (default), json, or markdown."`
}

// AnalyzeCodeInput is the input of analyze_code.
type AnalyzeCodeInput struct {
	FormatInput
	Code        string `json:"code" jsonschema:"Source text to analyze."`
	FileType    string `json:"file_type" jsonschema:"Kind of the source: py, html, css, js, rb, php or go."`
	FileName    string `json:"file_name,omitempty" jsonschema:"Name shown in the result. Optional."`
	Markup      string `json:"markup,omitempty" jsonschema:"HTML document used to find unused CSS selectors. Only for css."`
	Performance bool   `json:"performance,omitempty" jsonschema:"Also report calls inside loops. Only for py."`
}

// AnalyzeFileInput is the input of analyze_file.
type AnalyzeFileInput struct {
	FormatInput
	Path        string `json:"path" jsonschema:"File to analyze."`
	FileType    string `json:"file_type,omitempty" jsonschema:"Overrides the kind implied by the extension."`
	MarkupPath  string `json:"markup_path,omitempty" jsonschema:"HTML file used to find unused CSS selectors. Only for css."`
	Performance bool   `json:"performance,omitempty" jsonschema:"Also report calls inside loops. Only for py."`
}

// CheckPerformanceInput is the input of check_performance.
type CheckPerformanceInput struct {
	FormatInput
	Code string `json:"code" jsonschema:"Python source text."`
}

// ListKindsInput is the (empty) input of list_kinds.
type ListKindsInput struct {
	FormatInput
}

// Helper functions

func getFormat(input FormatInput) output.Format {
	switch input.Format {
	case "json":
		return output.FormatJSON
	case "markdown", "md":
		return output.FormatMarkdown
	default:
		return output.FormatTOON
	}
}

func formatOutput(data any, format output.Format) (string, error) {
	var buf bytes.Buffer
	if err := output.NewWriterFormatter(format, &buf, false).Output(data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func toolResult(data any, format output.Format) (*mcp.CallToolResult, any, error) {
	text, err := formatOutput(data, format)
	if err != nil {
		return nil, nil, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}, nil, nil
}

func toolError(msg string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: "Error: " + msg},
		},
		IsError: true,
	}, nil, nil
}

// Tool handlers

func (s *Server) handleAnalyzeCode(ctx context.Context, req *mcp.CallToolRequest, input AnalyzeCodeInput) (*mcp.CallToolResult, any, error) {
	if input.FileType == "" {
		return toolError("file_type is required")
	}
	res, err := s.svc.Analyze(ctx, analysis.Request{
		Code:        input.Code,
		Kind:        input.FileType,
		FileName:    input.FileName,
		Markup:      input.Markup,
		Performance: input.Performance,
	})
	if err != nil {
		return toolError(err.Error())
	}
	return toolResult(output.NewAnalysisView(res), getFormat(input.FormatInput))
}

func (s *Server) handleAnalyzeFile(ctx context.Context, req *mcp.CallToolRequest, input AnalyzeFileInput) (*mcp.CallToolResult, any, error) {
	if input.Path == "" {
		return toolError("path is required")
	}
	res, err := s.svc.AnalyzeFile(ctx, input.Path, analysis.FileOptions{
		Kind:        input.FileType,
		MarkupPath:  input.MarkupPath,
		Performance: input.Performance,
	})
	if err != nil {
		return toolError(err.Error())
	}
	return toolResult(output.NewAnalysisView(res), getFormat(input.FormatInput))
}

func (s *Server) handleCheckPerformance(ctx context.Context, req *mcp.CallToolRequest, input CheckPerformanceInput) (*mcp.CallToolResult, any, error) {
	issues, err := s.svc.CheckPerformance(ctx, input.Code)
	if err != nil {
		return toolError(err.Error())
	}
	loads, err := s.svc.FunctionLoads(ctx, input.Code)
	if err != nil {
		return toolError(err.Error())
	}
	out := struct {
		PerformanceIssues []python.Issue          `json:"performance_issues" toon:"performance_issues"`
		Functions         []analysis.FunctionLoad `json:"functions" toon:"functions"`
	}{issues, loads}
	return toolResult(out, getFormat(input.FormatInput))
}

// KindInfo describes one supported file kind.
type KindInfo struct {
	Kind  analyzer.Kind `json:"kind" toon:"kind"`
	Label string        `json:"label" toon:"label"`
	// Core kinds get full reports; the rest get line and function counts.
	Core bool `json:"core" toon:"core"`
}

func (s *Server) handleListKinds(ctx context.Context, req *mcp.CallToolRequest, input ListKindsInput) (*mcp.CallToolResult, any, error) {
	kinds := make([]KindInfo, 0, len(analyzer.Kinds))
	for _, k := range analyzer.Kinds {
		kinds = append(kinds, KindInfo{Kind: k, Label: report.KindLabel(k), Core: k.IsCore()})
	}
	out := struct {
		Kinds []KindInfo `json:"kinds" toon:"kinds"`
	}{kinds}
	return toolResult(out, getFormat(input.FormatInput))
}
