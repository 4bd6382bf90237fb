package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg == nil {
		t.Fatal("DefaultConfig() returned nil")
	}

	// Check analysis defaults
	if cfg.Analysis.StyleChecker != StyleBuiltin {
		t.Errorf("Analysis.StyleChecker = %s, want builtin", cfg.Analysis.StyleChecker)
	}
	if cfg.Analysis.MaxLineLength != 79 {
		t.Errorf("Analysis.MaxLineLength = %d, want 79", cfg.Analysis.MaxLineLength)
	}
	if !cfg.Analysis.JSParseCheck {
		t.Error("Analysis.JSParseCheck should be true by default")
	}

	// Check git limits
	if cfg.Git.MaxFiles != 400 {
		t.Errorf("Git.MaxFiles = %d, want 400", cfg.Git.MaxFiles)
	}
	if cfg.Git.MaxFileSize != 200*1024 {
		t.Errorf("Git.MaxFileSize = %d, want %d", cfg.Git.MaxFileSize, 200*1024)
	}
	if cfg.Git.MaxTotalSize != 6*1024*1024 {
		t.Errorf("Git.MaxTotalSize = %d, want %d", cfg.Git.MaxTotalSize, 6*1024*1024)
	}
	if cfg.Git.Concurrency != 5 {
		t.Errorf("Git.Concurrency = %d, want 5", cfg.Git.Concurrency)
	}

	if !cfg.Exclude.Gitignore {
		t.Error("Exclude.Gitignore should be true by default")
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("Server.Addr = %s, want :8080", cfg.Server.Addr)
	}
	if cfg.History.Path != ".prism/history.db" {
		t.Errorf("History.Path = %s, want .prism/history.db", cfg.History.Path)
	}
	if cfg.Coverage.Command != "pytest" || cfg.Coverage.TestPath != "tests/" {
		t.Errorf("Coverage = %+v, want pytest tests/", cfg.Coverage)
	}
	if cfg.Output.Format != "text" {
		t.Errorf("Output.Format = %s, want text", cfg.Output.Format)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() = %v, want nil", err)
	}
}

func TestLoadTOML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "prism.toml")

	content := `
[analysis]
style_checker = "none"
max_line_length = 100

[exclude]
dirs = ["vendor", "custom_exclude"]
globs = ["**/generated/**"]

[git]
max_files = 50

[output]
format = "json"
`

	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Analysis.StyleChecker != StyleNone {
		t.Errorf("Analysis.StyleChecker = %s, want none", cfg.Analysis.StyleChecker)
	}
	if cfg.Analysis.MaxLineLength != 100 {
		t.Errorf("Analysis.MaxLineLength = %d, want 100", cfg.Analysis.MaxLineLength)
	}
	if cfg.Git.MaxFiles != 50 {
		t.Errorf("Git.MaxFiles = %d, want 50", cfg.Git.MaxFiles)
	}
	if cfg.Git.Concurrency != 5 {
		t.Errorf("Git.Concurrency = %d, want default 5", cfg.Git.Concurrency)
	}
	if cfg.Output.Format != "json" {
		t.Errorf("Output.Format = %s, want json", cfg.Output.Format)
	}
}

func TestLoadYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "prism.yaml")

	content := `
analysis:
  style_checker: pycodestyle
server:
  addr: ":9090"
output:
  format: markdown
`

	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Analysis.StyleChecker != StylePycodestyle {
		t.Errorf("Analysis.StyleChecker = %s, want pycodestyle", cfg.Analysis.StyleChecker)
	}
	if cfg.Server.Addr != ":9090" {
		t.Errorf("Server.Addr = %s, want :9090", cfg.Server.Addr)
	}
	if cfg.Output.Format != "markdown" {
		t.Errorf("Output.Format = %s, want markdown", cfg.Output.Format)
	}
}

func TestLoadJSON(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "prism.json")

	content := `{
  "analysis": {
    "js_parse_check": false
  },
  "history": {
    "enabled": false
  }
}`

	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Analysis.JSParseCheck {
		t.Error("Analysis.JSParseCheck should be false")
	}
	if cfg.History.Enabled {
		t.Error("History.Enabled should be false")
	}
}

func TestLoadNonExistentFile(t *testing.T) {
	_, err := Load("/nonexistent/path/prism.toml")
	if err == nil {
		t.Error("Load() should return error for non-existent file")
	}
}

func TestLoadInvalidFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "prism.toml")

	// Invalid TOML
	content := `[analysis
invalid toml`

	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() should return error for invalid config")
	}
}

func TestLoadInvalidValues(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "prism.toml")

	content := `
[analysis]
style_checker = "pylint"

[include]
globs = ["src/[a-"]
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Load() should reject unknown style checker")
	}
	if !strings.Contains(err.Error(), "style_checker") {
		t.Errorf("error %q should name style_checker", err)
	}
	if !strings.Contains(err.Error(), "invalid glob") {
		t.Errorf("error %q should report the invalid glob", err)
	}
}

func TestLoadOrDefault(t *testing.T) {
	tmpDir := t.TempDir()
	t.Chdir(tmpDir)

	cfg := LoadOrDefault()
	if cfg == nil {
		t.Fatal("LoadOrDefault() returned nil")
	}
	if cfg.Git.MaxFiles != 400 {
		t.Errorf("LoadOrDefault() returned non-default MaxFiles: %d", cfg.Git.MaxFiles)
	}
}

func TestLoadOrDefaultWithConfigFile(t *testing.T) {
	tmpDir := t.TempDir()

	content := `
[git]
max_files = 999
`
	if err := os.MkdirAll(filepath.Join(tmpDir, ".prism"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(tmpDir, ".prism", "prism.toml"), []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	t.Chdir(tmpDir)

	cfg := LoadOrDefault()
	if cfg.Git.MaxFiles != 999 {
		t.Errorf("LoadOrDefault() should load from file, got MaxFiles=%d", cfg.Git.MaxFiles)
	}
}

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	t.Chdir(tmpDir)

	res, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if res.Source != "" {
		t.Errorf("Source = %q, want empty for defaults", res.Source)
	}

	if err := os.WriteFile("prism.toml", []byte("[output]\nformat = \"bogus\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(); err == nil {
		t.Error("LoadConfig() should surface errors in a discovered file")
	}

	explicit := filepath.Join(tmpDir, "other.yaml")
	if err := os.WriteFile(explicit, []byte("output:\n  format: toon\n"), 0644); err != nil {
		t.Fatal(err)
	}
	res, err = LoadConfig(WithPath(explicit))
	if err != nil {
		t.Fatalf("LoadConfig(WithPath) error: %v", err)
	}
	if res.Source != explicit || res.Config.Output.Format != "toon" {
		t.Errorf("LoadConfig(WithPath) = %+v, want toon from %s", res, explicit)
	}
}

func TestShouldExclude(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		path string
		want bool
	}{
		// Excluded directories
		{"vendor/pkg/file.go", true},
		{"node_modules/pkg/file.js", true},
		{".git/objects/file", true},
		{".venv/lib/site.py", true},

		// Excluded patterns
		{"app.min.js", true},
		{"theme.min.css", true},

		// Excluded extensions
		{"bundle.js.map", true},
		{"poetry.lock", true},

		// Not excluded
		{"main.py", false},
		{"static/site.css", false},
		{"app.js", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got := cfg.ShouldExclude(tt.path)
			if got != tt.want {
				t.Errorf("ShouldExclude(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestShouldExcludeGlobs(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Exclude.Globs = []string{"**/migrations/**", "docs/*.html"}

	tests := []struct {
		path string
		want bool
	}{
		{"app/migrations/0001_initial.py", true},
		{"docs/index.html", true},
		{"docs/api/index.html", false},
		{"app/models.py", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got := cfg.ShouldExclude(tt.path)
			if got != tt.want {
				t.Errorf("ShouldExclude(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestShouldExcludePathsWithSeparators(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		path string
		want bool
	}{
		{filepath.Join("src", "vendor", "pkg", "file.js"), true},
		{filepath.Join("vendor", "file.js"), true},
		{filepath.Join("src", "main.py"), false},
		{filepath.Join("pkg", "vendor_utils.py"), false}, // "vendor" in name, not directory
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got := cfg.ShouldExclude(tt.path)
			if got != tt.want {
				t.Errorf("ShouldExclude(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestShouldInclude(t *testing.T) {
	cfg := DefaultConfig()
	if !cfg.ShouldInclude("anything/at/all.py") {
		t.Error("empty include globs should include everything")
	}

	cfg.Include.Globs = []string{"src/**/*.py"}
	if !cfg.ShouldInclude("src/pkg/mod.py") {
		t.Error("src/pkg/mod.py should be included")
	}
	if cfg.ShouldInclude("tests/test_mod.py") {
		t.Error("tests/test_mod.py should not be included")
	}
}
