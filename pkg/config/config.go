package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration options for prism.
type Config struct {
	// Analyzer settings
	Analysis AnalysisConfig `koanf:"analysis" toml:"analysis"`

	// File exclusion and inclusion
	Exclude ExcludeConfig `koanf:"exclude" toml:"exclude"`
	Include IncludeConfig `koanf:"include" toml:"include"`

	// Cache settings
	Cache CacheConfig `koanf:"cache" toml:"cache"`

	// Output settings
	Output OutputConfig `koanf:"output" toml:"output"`

	Server   ServerConfig   `koanf:"server" toml:"server"`
	History  HistoryConfig  `koanf:"history" toml:"history"`
	Git      GitConfig      `koanf:"git" toml:"git"`
	Coverage CoverageConfig `koanf:"coverage" toml:"coverage"`
	Log      LogConfig      `koanf:"log" toml:"log"`
}

// Style checker names.
const (
	StyleBuiltin     = "builtin"
	StylePycodestyle = "pycodestyle"
	StyleNone        = "none"
)

// AnalysisConfig controls the analyzers.
type AnalysisConfig struct {
	StyleChecker  string `koanf:"style_checker" toml:"style_checker"`
	MaxLineLength int    `koanf:"max_line_length" toml:"max_line_length"`
	JSParseCheck  bool   `koanf:"js_parse_check" toml:"js_parse_check"`
	MaxFileSize   int64  `koanf:"max_file_size" toml:"max_file_size"`
	Workers       int    `koanf:"workers" toml:"workers"` // 0 = 2x NumCPU
}

// ExcludeConfig defines file exclusion patterns.
type ExcludeConfig struct {
	Patterns   []string `koanf:"patterns" toml:"patterns"`
	Globs      []string `koanf:"globs" toml:"globs"`
	Extensions []string `koanf:"extensions" toml:"extensions"`
	Dirs       []string `koanf:"dirs" toml:"dirs"`
	Gitignore  bool     `koanf:"gitignore" toml:"gitignore"`
}

// IncludeConfig restricts scans to matching paths. Empty means every file
// with a known kind.
type IncludeConfig struct {
	Globs []string `koanf:"globs" toml:"globs"`
}

// CacheConfig controls caching behavior.
type CacheConfig struct {
	Enabled bool   `koanf:"enabled" toml:"enabled"`
	Dir     string `koanf:"dir" toml:"dir"`
	TTL     int    `koanf:"ttl" toml:"ttl"` // TTL in hours
}

// OutputConfig controls output formatting.
type OutputConfig struct {
	Format  string `koanf:"format" toml:"format"` // text, json, markdown, toon
	Color   bool   `koanf:"color" toml:"color"`
	Verbose bool   `koanf:"verbose" toml:"verbose"`
}

// ServerConfig configures the HTTP endpoint.
type ServerConfig struct {
	Addr      string `koanf:"addr" toml:"addr"`
	BodyLimit int    `koanf:"body_limit" toml:"body_limit"`
}

// HistoryConfig configures the analysis history store.
type HistoryConfig struct {
	Enabled bool   `koanf:"enabled" toml:"enabled"`
	Path    string `koanf:"path" toml:"path"`
}

// GitConfig limits remote repository analysis.
type GitConfig struct {
	MaxFiles     int   `koanf:"max_files" toml:"max_files"`
	MaxFileSize  int64 `koanf:"max_file_size" toml:"max_file_size"`
	MaxTotalSize int64 `koanf:"max_total_size" toml:"max_total_size"`
	Concurrency  int   `koanf:"concurrency" toml:"concurrency"`
}

// CoverageConfig configures the test coverage runner.
type CoverageConfig struct {
	Command  string `koanf:"command" toml:"command"`
	TestPath string `koanf:"test_path" toml:"test_path"`
}

// LogConfig configures structured logging for long-running commands.
type LogConfig struct {
	Level  string `koanf:"level" toml:"level"`
	Format string `koanf:"format" toml:"format"` // console, json
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Analysis: AnalysisConfig{
			StyleChecker:  StyleBuiltin,
			MaxLineLength: 79,
			JSParseCheck:  true,
			MaxFileSize:   1 << 20,
		},
		Exclude: ExcludeConfig{
			Patterns: []string{
				"*.min.js",
				"*.min.css",
			},
			Extensions: []string{
				".lock",
				".map",
			},
			Dirs: []string{
				"vendor",
				"node_modules",
				".git",
				".prism",
				"dist",
				"build",
				"__pycache__",
				".venv",
			},
			Gitignore: true,
		},
		Cache: CacheConfig{
			Enabled: true,
			Dir:     ".prism/cache",
			TTL:     24,
		},
		Output: OutputConfig{
			Format: "text",
			Color:  true,
		},
		Server: ServerConfig{
			Addr:      ":8080",
			BodyLimit: 4 << 20,
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    ".prism/history.db",
		},
		Git: GitConfig{
			MaxFiles:     400,
			MaxFileSize:  200 * 1024,
			MaxTotalSize: 6 * 1024 * 1024,
			Concurrency:  5,
		},
		Coverage: CoverageConfig{
			Command:  "pytest",
			TestPath: "tests/",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a file.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := DefaultConfig()

	// Determine parser based on extension
	var parser koanf.Parser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		parser = toml.Parser()
	}

	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// configNames are searched in order inside each of searchDirs.
var (
	configNames = []string{
		"prism.toml",
		"prism.yaml",
		"prism.yml",
		"prism.json",
		".prism.toml",
		".prism.yaml",
		".prism.yml",
		".prism.json",
	}
	searchDirs = []string{".", ".prism"}
)

// LoadResult is a loaded config and the file it came from. Source is empty
// when defaults were used.
type LoadResult struct {
	Config *Config
	Source string
}

type loadOptions struct {
	path string
}

// LoadOption configures LoadConfig.
type LoadOption func(*loadOptions)

// WithPath loads an explicit file instead of searching.
func WithPath(path string) LoadOption {
	return func(o *loadOptions) {
		o.path = path
	}
}

// LoadConfig loads an explicit file, or the first config file found in the
// standard locations, or the defaults. Unlike LoadOrDefault it reports
// errors in a file that exists.
func LoadConfig(opts ...LoadOption) (*LoadResult, error) {
	var o loadOptions
	for _, opt := range opts {
		opt(&o)
	}

	if o.path != "" {
		cfg, err := Load(o.path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config %s: %w", o.path, err)
		}
		return &LoadResult{Config: cfg, Source: o.path}, nil
	}

	if path := find(); path != "" {
		cfg, err := Load(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config %s: %w", path, err)
		}
		return &LoadResult{Config: cfg, Source: path}, nil
	}
	return &LoadResult{Config: DefaultConfig()}, nil
}

func find() string {
	for _, dir := range searchDirs {
		for _, name := range configNames {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// LoadOrDefault tries to load config from standard locations or returns defaults.
func LoadOrDefault() *Config {
	if path := find(); path != "" {
		if cfg, err := Load(path); err == nil {
			return cfg
		}
	}
	return DefaultConfig()
}

// Validate reports invalid values.
func (c *Config) Validate() error {
	var errs []error
	switch c.Analysis.StyleChecker {
	case StyleBuiltin, StylePycodestyle, StyleNone:
	default:
		errs = append(errs, fmt.Errorf("analysis.style_checker: unknown checker %q", c.Analysis.StyleChecker))
	}
	if c.Analysis.MaxLineLength < 0 {
		errs = append(errs, errors.New("analysis.max_line_length must not be negative"))
	}
	switch c.Output.Format {
	case "text", "json", "markdown", "toon":
	default:
		errs = append(errs, fmt.Errorf("output.format: unknown format %q", c.Output.Format))
	}
	for _, g := range append(append([]string{}, c.Exclude.Globs...), c.Include.Globs...) {
		if !doublestar.ValidatePattern(g) {
			errs = append(errs, fmt.Errorf("invalid glob %q", g))
		}
	}
	if c.Git.Concurrency < 0 || c.Git.MaxFiles < 0 {
		errs = append(errs, errors.New("git limits must not be negative"))
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// ShouldExclude checks if a path should be excluded from analysis.
func (c *Config) ShouldExclude(path string) bool {
	// Check directory exclusions
	for _, dir := range c.Exclude.Dirs {
		if strings.Contains(path, string(filepath.Separator)+dir+string(filepath.Separator)) ||
			strings.HasPrefix(path, dir+string(filepath.Separator)) {
			return true
		}
	}

	// Check extension exclusions
	ext := filepath.Ext(path)
	for _, excludeExt := range c.Exclude.Extensions {
		if ext == excludeExt {
			return true
		}
	}

	// Check pattern exclusions
	base := filepath.Base(path)
	for _, pattern := range c.Exclude.Patterns {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}

	slashed := filepath.ToSlash(path)
	for _, g := range c.Exclude.Globs {
		if matched, _ := doublestar.Match(g, slashed); matched {
			return true
		}
	}
	return false
}

// ShouldInclude reports whether path passes the include globs.
func (c *Config) ShouldInclude(path string) bool {
	if len(c.Include.Globs) == 0 {
		return true
	}
	slashed := filepath.ToSlash(path)
	for _, g := range c.Include.Globs {
		if matched, _ := doublestar.Match(g, slashed); matched {
			return true
		}
	}
	return false
}
