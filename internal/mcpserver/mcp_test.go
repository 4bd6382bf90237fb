package mcpserver

import (
	"context"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panbanda/prism/internal/output"
	"github.com/panbanda/prism/internal/service/analysis"
	"github.com/panbanda/prism/pkg/config"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Analysis.StyleChecker = config.StyleNone
	return NewServer("1.0.0-test", analysis.New(analysis.WithConfig(cfg)))
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok, "content is %T", res.Content[0])
	return text.Text
}

func decodeJSON(t *testing.T, res *mcp.CallToolResult) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &out))
	return out
}

func TestServerCreation(t *testing.T) {
	server := newTestServer(t)
	require.NotNil(t, server)
	require.NotNil(t, server.server)
	require.NotNil(t, server.svc)
}

func TestServerCreationEmptyVersion(t *testing.T) {
	t.Chdir(t.TempDir())
	server := NewServer("", nil)
	require.NotNil(t, server)
	assert.NotNil(t, server.svc)
}

func TestToolDescriptions(t *testing.T) {
	descriptions := map[string]func() string{
		"analyze_code":      describeAnalyzeCode,
		"analyze_file":      describeAnalyzeFile,
		"check_performance": describeCheckPerformance,
		"list_kinds":        describeListKinds,
	}

	for name, fn := range descriptions {
		t.Run(name, func(t *testing.T) {
			desc := fn()
			assert.NotEmpty(t, desc)
			assert.Contains(t, desc, "USE WHEN:")
			assert.Contains(t, desc, "INTERPRETING RESULTS:")
			assert.Contains(t, desc, "METRICS RETURNED:")
		})
	}
}

func TestGetFormat(t *testing.T) {
	tests := []struct {
		input string
		want  output.Format
	}{
		{"", output.FormatTOON},
		{"toon", output.FormatTOON},
		{"json", output.FormatJSON},
		{"markdown", output.FormatMarkdown},
		{"md", output.FormatMarkdown},
		{"bogus", output.FormatTOON},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, getFormat(FormatInput{Format: tt.input}))
		})
	}
}

func TestToolError(t *testing.T) {
	res, extra, err := toolError("boom")
	require.NoError(t, err)
	assert.Nil(t, extra)
	assert.True(t, res.IsError)
	assert.Equal(t, "Error: boom", resultText(t, res))
}

func TestHandleAnalyzeCode(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	t.Run("python", func(t *testing.T) {
		res, _, err := s.handleAnalyzeCode(ctx, nil, AnalyzeCodeInput{
			FormatInput: FormatInput{Format: "json"},
			Code:        "import os\n",
			FileType:    "py",
			FileName:    "mod.py",
		})
		require.NoError(t, err)
		require.False(t, res.IsError, resultText(t, res))

		out := decodeJSON(t, res)
		assert.Equal(t, "py", out["fileType"])
		assert.Equal(t, "mod.py", out["fileName"])
		sum, ok := out["summary"].(map[string]any)
		require.True(t, ok)
		assert.EqualValues(t, 1, sum["issuesCount"])
		report, ok := out["result"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, []any{"os"}, report["unused_imports"])
	})

	t.Run("css with markup", func(t *testing.T) {
		res, _, err := s.handleAnalyzeCode(ctx, nil, AnalyzeCodeInput{
			FormatInput: FormatInput{Format: "json"},
			Code:        ".used { color: red; }\n.gone { color: blue; }\n",
			FileType:    "css",
			Markup:      `<div class="used"></div>`,
		})
		require.NoError(t, err)
		require.False(t, res.IsError, resultText(t, res))
		assert.Equal(t, "css", decodeJSON(t, res)["fileType"])
	})

	t.Run("toon default", func(t *testing.T) {
		res, _, err := s.handleAnalyzeCode(ctx, nil, AnalyzeCodeInput{
			Code:     "var x = 1;\n",
			FileType: "js",
		})
		require.NoError(t, err)
		require.False(t, res.IsError)
		assert.Contains(t, resultText(t, res), "fileType")
	})

	t.Run("missing kind", func(t *testing.T) {
		res, _, err := s.handleAnalyzeCode(ctx, nil, AnalyzeCodeInput{Code: "x = 1\n"})
		require.NoError(t, err)
		assert.True(t, res.IsError)
		assert.Contains(t, resultText(t, res), "file_type is required")
	})

	t.Run("unsupported kind", func(t *testing.T) {
		res, _, err := s.handleAnalyzeCode(ctx, nil, AnalyzeCodeInput{Code: "x", FileType: "cobol"})
		require.NoError(t, err)
		assert.True(t, res.IsError)
	})

	t.Run("parse error", func(t *testing.T) {
		res, _, err := s.handleAnalyzeCode(ctx, nil, AnalyzeCodeInput{Code: "def broken(:\n", FileType: "py"})
		require.NoError(t, err)
		assert.True(t, res.IsError)
	})
}

func TestHandleAnalyzeFile(t *testing.T) {
	s := newTestServer(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "app.py")
	require.NoError(t, os.WriteFile(path, []byte("import os\n"), 0o644))

	res, _, err := s.handleAnalyzeFile(context.Background(), nil, AnalyzeFileInput{
		FormatInput: FormatInput{Format: "json"},
		Path:        path,
	})
	require.NoError(t, err)
	require.False(t, res.IsError, resultText(t, res))
	out := decodeJSON(t, res)
	assert.Equal(t, "py", out["fileType"])
	assert.Equal(t, "app.py", out["fileName"])

	res, _, err = s.handleAnalyzeFile(context.Background(), nil, AnalyzeFileInput{})
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, _, err = s.handleAnalyzeFile(context.Background(), nil, AnalyzeFileInput{Path: filepath.Join(dir, "missing.py")})
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestHandleCheckPerformance(t *testing.T) {
	s := newTestServer(t)
	res, _, err := s.handleCheckPerformance(context.Background(), nil, CheckPerformanceInput{
		FormatInput: FormatInput{Format: "json"},
		Code:        "def run(items):\n    for x in items:\n        process(x)\n",
	})
	require.NoError(t, err)
	require.False(t, res.IsError, resultText(t, res))

	out := decodeJSON(t, res)
	issues, ok := out["performance_issues"].([]any)
	require.True(t, ok)
	assert.NotEmpty(t, issues)

	functions, ok := out["functions"].([]any)
	require.True(t, ok)
	require.Len(t, functions, 1)
	fn := functions[0].(map[string]any)
	assert.Equal(t, "run", fn["name"])
	assert.EqualValues(t, 1, fn["loops"])
	assert.EqualValues(t, 1, fn["calls"])

	res, _, err = s.handleCheckPerformance(context.Background(), nil, CheckPerformanceInput{Code: "print \"hi\"\n"})
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestHandleListKinds(t *testing.T) {
	s := newTestServer(t)
	res, _, err := s.handleListKinds(context.Background(), nil, ListKindsInput{FormatInput{Format: "json"}})
	require.NoError(t, err)

	var out struct {
		Kinds []KindInfo `json:"kinds"`
	}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &out))
	core := map[string]bool{}
	for _, k := range out.Kinds {
		core[string(k.Kind)] = k.Core
		assert.NotEmpty(t, k.Label)
	}
	assert.True(t, core["py"])
	assert.True(t, core["css"])
	assert.False(t, core["go"])
}

func TestLoadPrompt(t *testing.T) {
	spec, body := loadPrompt([]byte("---\ndescription: Does a thing.\narguments:\n  - name: path\n    required: true\n---\nBody {{path}}.\n"))
	assert.Equal(t, "Does a thing.", spec.Description)
	require.Len(t, spec.Arguments, 1)
	assert.Equal(t, "path", spec.Arguments[0].Name)
	assert.True(t, spec.Arguments[0].Required)
	assert.Equal(t, "Body {{path}}.\n", body)

	spec, body = loadPrompt([]byte("No frontmatter here."))
	assert.Empty(t, spec.Description)
	assert.Equal(t, "No frontmatter here.", body)

	spec, body = loadPrompt([]byte("---\ndescription: unterminated\n"))
	assert.Empty(t, spec.Description)
	assert.True(t, strings.HasPrefix(body, "---"))

	spec, body = loadPrompt([]byte("---\ndescription: [broken\n---\nBody\n"))
	assert.Empty(t, spec.Description)
	assert.True(t, strings.HasPrefix(body, "---"))
}

var placeholder = regexp.MustCompile(`\{\{([^}]*)\}\}`)

func TestPromptFilesDeclareTheirArguments(t *testing.T) {
	files, err := fs.Glob(promptFiles, "prompts/*.md")
	require.NoError(t, err)
	require.NotEmpty(t, files)
	for _, file := range files {
		content, err := promptFiles.ReadFile(file)
		require.NoError(t, err)
		spec, body := loadPrompt(content)
		assert.NotEmpty(t, spec.Description, file)
		assert.NotEmpty(t, body, file)

		declared := map[string]bool{}
		for _, a := range spec.Arguments {
			declared[a.Name] = true
			if !a.Required {
				assert.NotEmpty(t, a.Default, "%s: optional argument %s has no default", file, a.Name)
			}
		}
		for _, m := range placeholder.FindAllStringSubmatch(body, -1) {
			assert.True(t, declared[m[1]], "%s: undeclared placeholder %s", file, m[0])
		}
	}
}

func TestPromptHandler(t *testing.T) {
	spec := promptSpec{
		Description: "desc",
		Arguments: []promptArgument{
			{Name: "page", Required: true},
			{Name: "css", Default: "all stylesheets"},
		},
	}
	handler := promptHandler(spec, "Check {{page}} against {{css}}.")

	messageText := func(res *mcp.GetPromptResult) string {
		t.Helper()
		require.Len(t, res.Messages, 1)
		text, ok := res.Messages[0].Content.(*mcp.TextContent)
		require.True(t, ok)
		return text.Text
	}

	res, err := handler(context.Background(), &mcp.GetPromptRequest{
		Params: &mcp.GetPromptParams{Arguments: map[string]string{"page": "index.html", "css": "site.css"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "desc", res.Description)
	assert.Equal(t, "Check index.html against site.css.", messageText(res))

	res, err = handler(context.Background(), &mcp.GetPromptRequest{
		Params: &mcp.GetPromptParams{Arguments: map[string]string{"page": "index.html"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Check index.html against all stylesheets.", messageText(res))

	_, err = handler(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"page"`)

	plain, err := promptHandler(promptSpec{Description: "d"}, "body")(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "body", messageText(plain))
}

func TestGenerateManifest(t *testing.T) {
	data, err := GenerateManifest("v1.2.3")
	require.NoError(t, err)

	var m ServerEntry
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "io.github.panbanda/prism", m.Name)
	assert.Equal(t, "1.2.3", m.Version)
	require.Len(t, m.Packages, 1)
	pkg := m.Packages[0]
	assert.Equal(t, "ghcr.io/panbanda/prism:1.2.3", pkg.Identifier)
	assert.Equal(t, "stdio", pkg.Transport.Type)
	require.Len(t, pkg.PackageArguments, 1)
	assert.Equal(t, "mcp", pkg.PackageArguments[0].Value)
	require.Len(t, pkg.EnvironmentVariables, 1)
	assert.Equal(t, "PRISM_CONFIG", pkg.EnvironmentVariables[0].Name)
	assert.False(t, pkg.EnvironmentVariables[0].IsRequired)

	for _, v := range []string{"", "dev"} {
		assert.Equal(t, "0.0.0", BuildManifest(v).Version, v)
	}

	entry := BuildManifest("2.0.0", WithImage("registry.example.com/tools/prism"))
	assert.Equal(t, "registry.example.com/tools/prism:2.0.0", entry.Packages[0].Identifier)
	entry = BuildManifest("2.0.0", WithImage(""))
	assert.Equal(t, "ghcr.io/panbanda/prism:2.0.0", entry.Packages[0].Identifier)
}

func TestInMemorySession(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(t)

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	serverSession, err := s.server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	defer serverSession.Close()

	client := mcp.NewClient(&mcp.Implementation{Name: "test", Version: "1"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	defer session.Close()

	tools, err := session.ListTools(ctx, nil)
	require.NoError(t, err)
	names := map[string]bool{}
	for _, tool := range tools.Tools {
		names[tool.Name] = true
	}
	for _, want := range []string{"analyze_code", "analyze_file", "check_performance", "list_kinds"} {
		assert.True(t, names[want], "missing tool %s", want)
	}

	res, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "analyze_code",
		Arguments: map[string]any{"code": "import os\n", "file_type": "py", "format": "json"},
	})
	require.NoError(t, err)
	require.False(t, res.IsError, resultText(t, res))
	assert.Contains(t, resultText(t, res), `"unused_imports"`)

	prompts, err := session.ListPrompts(ctx, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, prompts.Prompts)

	prompt, err := session.GetPrompt(ctx, &mcp.GetPromptParams{
		Name:      "frontend-audit",
		Arguments: map[string]string{"page": "index.html"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, prompt.Messages)
	text, ok := prompt.Messages[0].Content.(*mcp.TextContent)
	require.True(t, ok)
	assert.Contains(t, text.Text, "index.html")
	assert.NotContains(t, text.Text, "{{")
}
