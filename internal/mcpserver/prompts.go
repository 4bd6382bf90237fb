package mcpserver

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"gopkg.in/yaml.v3"
)

// Prompt files are Markdown with YAML frontmatter. The body may reference
// declared arguments as {{name}}.
//
//go:embed prompts/*.md
var promptFiles embed.FS

type promptSpec struct {
	Description string           `yaml:"description"`
	Arguments   []promptArgument `yaml:"arguments"`
}

type promptArgument struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Required    bool   `yaml:"required"`
	// Default replaces the placeholder when an optional argument is absent.
	Default string `yaml:"default"`
}

func (s *Server) registerPrompts() {
	files, err := fs.Glob(promptFiles, "prompts/*.md")
	if err != nil {
		return
	}
	for _, file := range files {
		content, err := promptFiles.ReadFile(file)
		if err != nil {
			continue
		}
		spec, body := loadPrompt(content)

		prompt := &mcp.Prompt{
			Name:        strings.TrimSuffix(path.Base(file), ".md"),
			Description: spec.Description,
		}
		for _, a := range spec.Arguments {
			prompt.Arguments = append(prompt.Arguments, &mcp.PromptArgument{
				Name:        a.Name,
				Description: a.Description,
				Required:    a.Required,
			})
		}
		s.server.AddPrompt(prompt, promptHandler(spec, body))
	}
}

// loadPrompt splits a prompt file into its frontmatter and body. A file
// without valid frontmatter is all body.
func loadPrompt(content []byte) (promptSpec, string) {
	text := strings.ReplaceAll(string(content), "\r\n", "\n")
	rest, ok := strings.CutPrefix(text, "---\n")
	if !ok {
		return promptSpec{}, text
	}
	front, body, ok := strings.Cut(rest, "\n---\n")
	if !ok {
		return promptSpec{}, text
	}
	var spec promptSpec
	if err := yaml.Unmarshal([]byte(front), &spec); err != nil {
		return promptSpec{}, text
	}
	return spec, strings.TrimLeft(body, "\n")
}

// render fills the argument placeholders of body.
func (p promptSpec) render(body string, args map[string]string) (string, error) {
	pairs := make([]string, 0, 2*len(p.Arguments))
	for _, a := range p.Arguments {
		v := strings.TrimSpace(args[a.Name])
		if v == "" {
			if a.Required {
				return "", fmt.Errorf("missing required argument %q", a.Name)
			}
			v = a.Default
		}
		pairs = append(pairs, "{{"+a.Name+"}}", v)
	}
	return strings.NewReplacer(pairs...).Replace(body), nil
}

func promptHandler(spec promptSpec, body string) mcp.PromptHandler {
	return func(_ context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		var args map[string]string
		if req != nil && req.Params != nil {
			args = req.Params.Arguments
		}
		text, err := spec.render(body, args)
		if err != nil {
			return nil, err
		}
		return &mcp.GetPromptResult{
			Description: spec.Description,
			Messages: []*mcp.PromptMessage{
				{Role: "user", Content: &mcp.TextContent{Text: text}},
			},
		}, nil
	}
}
