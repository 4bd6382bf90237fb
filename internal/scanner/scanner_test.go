package scanner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/panbanda/prism/pkg/analyzer"
	"github.com/panbanda/prism/pkg/config"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("Failed to create directory: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to create file %s: %v", name, err)
		}
	}
}

func relSet(t *testing.T, root string, files []string) map[string]bool {
	t.Helper()
	found := make(map[string]bool)
	for _, f := range files {
		rel, err := filepath.Rel(root, f)
		if err != nil {
			t.Fatal(err)
		}
		found[filepath.ToSlash(rel)] = true
	}
	return found
}

func TestNewScanner(t *testing.T) {
	s := NewScanner(nil)
	if s.config == nil {
		t.Error("scanner.config should not be nil when passing nil")
	}

	cfg := config.DefaultConfig()
	if s = NewScanner(cfg); s.config != cfg {
		t.Error("scanner.config should be the provided config")
	}
}

func TestScanDir(t *testing.T) {
	tmpDir := t.TempDir()
	writeTree(t, tmpDir, map[string]string{
		"app.py":           "x = 1\n",
		"web/index.html":   "<p>hi</p>\n",
		"web/site.css":     ".a { color: red; }\n",
		"web/app.js":       "let a = 1;\n",
		"lib/tool.rb":      "def x\nend\n",
		"lib/page.php":     "<?php\n",
		"cmd/main.go":      "package main\n",
		"README.md":        "# readme\n",
		"internal/core.rs": "fn main() {}\n",
		"notes.txt":        "text\n",
	})

	result, err := NewScanner(nil).ScanDir(tmpDir)
	if err != nil {
		t.Fatalf("ScanDir() error: %v", err)
	}

	found := relSet(t, tmpDir, result)
	for _, want := range []string{"app.py", "web/index.html", "web/site.css", "web/app.js", "lib/tool.rb", "lib/page.php", "cmd/main.go"} {
		if !found[want] {
			t.Errorf("File %s was not found", want)
		}
	}
	for _, unwanted := range []string{"README.md", "internal/core.rs", "notes.txt"} {
		if found[unwanted] {
			t.Errorf("File %s has no analysis kind and should be skipped", unwanted)
		}
	}
	if len(result) != 7 {
		t.Errorf("ScanDir() found %d files, want 7", len(result))
	}
}

func TestScanDirExclusions(t *testing.T) {
	tmpDir := t.TempDir()
	writeTree(t, tmpDir, map[string]string{
		"app.py":                         "x = 1\n",
		"node_modules/pkg/index.js":      "x\n",
		".venv/lib/site.py":              "x\n",
		"static/app.min.js":              "x\n",
		"app/migrations/0001_initial.py": "x\n",
		"app/models.py":                  "x\n",
	})

	cfg := config.DefaultConfig()
	cfg.Exclude.Globs = []string{"**/migrations/**"}

	result, err := NewScanner(cfg).ScanDir(tmpDir)
	if err != nil {
		t.Fatalf("ScanDir() error: %v", err)
	}
	found := relSet(t, tmpDir, result)
	if len(found) != 2 || !found["app.py"] || !found["app/models.py"] {
		t.Errorf("ScanDir() = %v, want only app.py and app/models.py", found)
	}
}

func TestScanDirIncludeGlobs(t *testing.T) {
	tmpDir := t.TempDir()
	writeTree(t, tmpDir, map[string]string{
		"src/a.py":   "x\n",
		"src/b.js":   "x\n",
		"tests/t.py": "x\n",
	})

	cfg := config.DefaultConfig()
	cfg.Include.Globs = []string{"src/**/*.py"}

	result, err := NewScanner(cfg).ScanDir(tmpDir)
	if err != nil {
		t.Fatalf("ScanDir() error: %v", err)
	}
	found := relSet(t, tmpDir, result)
	if len(found) != 1 || !found["src/a.py"] {
		t.Errorf("ScanDir() = %v, want only src/a.py", found)
	}
}

func TestScanDirWithGitignore(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.Mkdir(filepath.Join(tmpDir, ".git"), 0755); err != nil {
		t.Fatal(err)
	}
	writeTree(t, tmpDir, map[string]string{
		".gitignore":     "skipme/\n*.gen.js\n",
		"main.py":        "x\n",
		"skipme/skip.py": "x\n",
		"web/app.gen.js": "x\n",
		"web/app.js":     "x\n",
	})

	cfg := config.DefaultConfig()
	cfg.Exclude.Gitignore = true

	result, err := NewScanner(cfg).ScanDir(tmpDir)
	if err != nil {
		t.Fatalf("ScanDir() error: %v", err)
	}
	found := relSet(t, tmpDir, result)
	if !found["main.py"] || !found["web/app.js"] {
		t.Errorf("ScanDir() = %v, missing tracked files", found)
	}
	if found["skipme/skip.py"] || found["web/app.gen.js"] {
		t.Errorf("ScanDir() = %v, should honor .gitignore", found)
	}
}

func TestScanDirDisabledGitignore(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.Mkdir(filepath.Join(tmpDir, ".git"), 0755); err != nil {
		t.Fatal(err)
	}
	writeTree(t, tmpDir, map[string]string{
		".gitignore":      "ignored/\n",
		"ignored/file.py": "x\n",
	})

	cfg := config.DefaultConfig()
	cfg.Exclude.Gitignore = false

	result, err := NewScanner(cfg).ScanDir(tmpDir)
	if err != nil {
		t.Fatalf("ScanDir() error: %v", err)
	}
	if !relSet(t, tmpDir, result)["ignored/file.py"] {
		t.Error("With gitignore disabled, should find files in 'ignored' directory")
	}
}

func TestScanDirEmptyDirectory(t *testing.T) {
	result, err := NewScanner(nil).ScanDir(t.TempDir())
	if err != nil {
		t.Fatalf("ScanDir() error: %v", err)
	}
	if len(result) != 0 {
		t.Errorf("ScanDir() on empty dir = %v, want none", result)
	}
}

func TestScanPaths(t *testing.T) {
	tmpDir := t.TempDir()
	writeTree(t, tmpDir, map[string]string{
		"a/one.py":  "x\n",
		"b/two.css": "x\n",
		"three.txt": "x\n",
	})

	s := NewScanner(nil)
	result, err := s.ScanPaths([]string{
		filepath.Join(tmpDir, "a"),
		filepath.Join(tmpDir, "b", "two.css"),
		filepath.Join(tmpDir, "three.txt"),
	})
	if err != nil {
		t.Fatalf("ScanPaths() error: %v", err)
	}
	found := relSet(t, tmpDir, result)
	if len(found) != 2 || !found["a/one.py"] || !found["b/two.css"] {
		t.Errorf("ScanPaths() = %v", found)
	}

	if _, err := s.ScanPaths([]string{filepath.Join(tmpDir, "missing")}); err == nil {
		t.Error("ScanPaths() should fail for a missing path")
	}
}

func TestGroupByKind(t *testing.T) {
	groups := GroupByKind([]string{"a.py", "b.py", "c.css", "d.txt", "e.GO"})

	if len(groups[analyzer.KindPython]) != 2 {
		t.Errorf("python group = %v, want 2 files", groups[analyzer.KindPython])
	}
	if len(groups[analyzer.KindCSS]) != 1 {
		t.Errorf("css group = %v, want 1 file", groups[analyzer.KindCSS])
	}
	if len(groups) != 3 {
		t.Errorf("GroupByKind() produced %d groups, want 3", len(groups))
	}

	kinds := Kinds(groups)
	want := []analyzer.Kind{analyzer.KindCSS, analyzer.KindGo, analyzer.KindPython}
	if len(kinds) != len(want) {
		t.Fatalf("Kinds() = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("Kinds()[%d] = %s, want %s", i, kinds[i], want[i])
		}
	}
}

func TestFilterBySize(t *testing.T) {
	tmpDir := t.TempDir()
	small := filepath.Join(tmpDir, "small.py")
	large := filepath.Join(tmpDir, "large.py")
	if err := os.WriteFile(small, []byte("x = 1\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(large, make([]byte, 2048), 0644); err != nil {
		t.Fatal(err)
	}
	missing := filepath.Join(tmpDir, "missing.py")

	files, skipped := FilterBySize([]string{small, large, missing}, 1024)
	if len(files) != 1 || files[0] != small {
		t.Errorf("FilterBySize() = %v, want [%s]", files, small)
	}
	if skipped != 2 {
		t.Errorf("skipped = %d, want 2", skipped)
	}

	files, skipped = FilterBySize([]string{small, large}, 0)
	if len(files) != 2 || skipped != 0 {
		t.Errorf("FilterBySize(0) = %v, %d, want everything kept", files, skipped)
	}
}

func TestIsWithinRoot(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name string
		path string
		want bool
	}{
		{"same path", tmpDir, true},
		{"child path", filepath.Join(tmpDir, "subdir", "file.py"), true},
		{"path outside root", "/some/other/path", false},
		{"parent path", filepath.Dir(tmpDir), false},
		{"similar prefix but different dir", tmpDir + "2/file.py", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isWithinRoot(tt.path, tmpDir); got != tt.want {
				t.Errorf("isWithinRoot(%q, %q) = %v, want %v", tt.path, tmpDir, got, tt.want)
			}
		})
	}
}

func TestFindGitRoot(t *testing.T) {
	tmpDir := t.TempDir()
	if result := findGitRoot(tmpDir); result != "" {
		t.Errorf("findGitRoot() on non-git dir should return empty string, got %q", result)
	}

	if err := os.Mkdir(filepath.Join(tmpDir, ".git"), 0755); err != nil {
		t.Fatalf("Failed to create .git dir: %v", err)
	}
	subDir := filepath.Join(tmpDir, "src", "pkg")
	if err := os.MkdirAll(subDir, 0755); err != nil {
		t.Fatalf("Failed to create subdir: %v", err)
	}
	if result := findGitRoot(subDir); result != tmpDir {
		t.Errorf("findGitRoot() from subdir should return %q, got %q", tmpDir, result)
	}
}

func TestScanDirWithUnresolvableSymlink(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.Symlink("/nonexistent/path/file.py", filepath.Join(tmpDir, "dangling.py")); err != nil {
		t.Skip("Symlinks not supported on this system")
	}
	if err := os.WriteFile(filepath.Join(tmpDir, "real.py"), []byte("x\n"), 0644); err != nil {
		t.Fatal(err)
	}

	result, err := NewScanner(nil).ScanDir(tmpDir)
	if err != nil {
		t.Fatalf("ScanDir() error: %v", err)
	}
	if len(result) != 1 {
		t.Errorf("ScanDir() should find 1 file (skipping dangling symlink), got %d", len(result))
	}
}

func TestScanDirWithSymlinkOutsideRoot(t *testing.T) {
	tmpDir := t.TempDir()
	outsideDir := t.TempDir()
	outside := filepath.Join(outsideDir, "outside.py")
	if err := os.WriteFile(outside, []byte("x\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(outside, filepath.Join(tmpDir, "linked.py")); err != nil {
		t.Skip("Symlinks not supported on this system")
	}

	result, err := NewScanner(nil).ScanDir(tmpDir)
	if err != nil {
		t.Fatalf("ScanDir() error: %v", err)
	}
	if len(result) != 0 {
		t.Errorf("ScanDir() should not follow symlinks outside the root, got %v", result)
	}
}
