package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/panbanda/prism/internal/gitrepo"
	"github.com/panbanda/prism/internal/history"
	"github.com/panbanda/prism/internal/service/analysis"
	"github.com/panbanda/prism/pkg/config"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// fasthttp refreshes its cached Date header from a process-wide goroutine.
		goleak.IgnoreAnyFunction("github.com/valyala/fasthttp.updateServerDate.func1"),
	)
}

func newService() *analysis.Service {
	cfg := config.DefaultConfig()
	cfg.Analysis.StyleChecker = config.StyleNone
	return analysis.New(analysis.WithConfig(cfg))
}

func newServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	s, err := New(newService(), opts...)
	require.NoError(t, err)
	return s
}

func withHistory(t *testing.T) Option {
	t.Helper()
	store, err := history.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return WithHistory(store)
}

func do(t *testing.T, s *Server, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()
	return resp, data
}

func decode(t *testing.T, data []byte) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out), string(data))
	return out
}

func TestHealth(t *testing.T) {
	s := newServer(t, WithVersion("1.2.3"))
	resp, data := do(t, s, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode(t, data)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "1.2.3", body["version"])
	assert.Equal(t, false, body["history"])
}

func TestRequestID(t *testing.T) {
	s := newServer(t)

	resp, _ := do(t, s, http.MethodGet, "/health", "")
	assert.Len(t, resp.Header.Get(RequestIDHeader), 36, "generated ids are UUIDs")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "trace-123")
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, "trace-123", resp.Header.Get(RequestIDHeader))
}

func TestAnalyze(t *testing.T) {
	s := newServer(t, withHistory(t))

	resp, data := do(t, s, http.MethodPost, "/api/analyze",
		`{"code": "import os\n", "fileType": "py", "fileName": "app.py"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	body := decode(t, data)
	assert.Equal(t, "py", body["fileType"])
	assert.Equal(t, "app.py", body["fileName"])
	assert.NotEmpty(t, body["id"])
	assert.Nil(t, body["cached"])

	result := body["result"].(map[string]any)
	assert.Equal(t, []any{"os"}, result["unused_imports"])
	sum := body["summary"].(map[string]any)
	assert.Equal(t, float64(1), sum["issuesCount"])
}

func TestAnalyze_CachesIdenticalRequests(t *testing.T) {
	s := newServer(t)
	req := `{"code": "let a = 1;\n", "fileType": "js", "fileName": "%s"}`

	_, data := do(t, s, http.MethodPost, "/api/analyze", strings.Replace(req, "%s", "a.js", 1))
	assert.Nil(t, decode(t, data)["cached"])

	_, data = do(t, s, http.MethodPost, "/api/analyze", strings.Replace(req, "%s", "b.js", 1))
	body := decode(t, data)
	assert.Equal(t, true, body["cached"])
	assert.Equal(t, "b.js", body["fileName"], "file name is per request")
	assert.Equal(t, 1, s.cache.len())
}

func TestAnalyze_Performance(t *testing.T) {
	s := newServer(t)
	_, data := do(t, s, http.MethodPost, "/api/analyze",
		`{"code": "for i in x:\n    f(i)\n", "fileType": "py", "performance": true}`)
	body := decode(t, data)
	assert.NotEmpty(t, body["performance_issues"])
}

func TestAnalyze_Errors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		status   int
		kind     string
		wantLine bool
	}{
		{"unsupported kind", `{"code": "x", "fileType": "cobol"}`, http.StatusBadRequest, "unsupported_kind", false},
		{"parse error", `{"code": "def broken(:\n", "fileType": "py"}`, http.StatusBadRequest, "parse_error", true},
		{"missing code", `{"fileType": "py"}`, http.StatusBadRequest, "invalid_request", false},
		{"unknown field", `{"code": "", "fileType": "py", "lang": "x"}`, http.StatusBadRequest, "invalid_request", false},
		{"malformed json", `{"code": `, http.StatusBadRequest, "invalid_json", false},
	}

	s := newServer(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, data := do(t, s, http.MethodPost, "/api/analyze", tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			body := decode(t, data)
			assert.Equal(t, tt.kind, body["kind"])
			assert.NotEmpty(t, body["error"])
			if tt.wantLine {
				assert.NotNil(t, body["line"])
			}
		})
	}
}

func TestReport(t *testing.T) {
	s := newServer(t)

	resp, data := do(t, s, http.MethodPost, "/api/report/html",
		`{"code": "<div><img src=\"a.png\"></div>", "fileType": "html", "fileName": "index.html"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "index.html.html")
	assert.Contains(t, string(data), "<html")

	resp, data = do(t, s, http.MethodPost, "/api/report/csv", `{"code": "a { color: red; }", "fileType": "css"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(string(data), "section,severity,item"))

	resp, data = do(t, s, http.MethodPost, "/api/report/pdf", `{"code": "", "fileType": "py"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "unknown_format", decode(t, data)["kind"])
}

func TestHistory(t *testing.T) {
	s := newServer(t, withHistory(t))

	_, data := do(t, s, http.MethodPost, "/api/analyze", `{"code": "x = 1\n", "fileType": "py"}`)
	id := decode(t, data)["id"].(string)

	resp, data := do(t, s, http.MethodGet, "/api/history", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	entries := decode(t, data)["entries"].([]any)
	require.Len(t, entries, 1)
	assert.Equal(t, id, entries[0].(map[string]any)["id"])

	resp, data = do(t, s, http.MethodGet, "/api/history/"+id, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	entry := decode(t, data)
	assert.Equal(t, "py", entry["fileType"])
	assert.NotNil(t, entry["result"])

	resp, data = do(t, s, http.MethodGet, "/api/history/01HZZZZZZZZZZZZZZZZZZZZZZZ", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", decode(t, data)["kind"])

	resp, _ = do(t, s, http.MethodGet, "/api/history?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHistoryDisabled(t *testing.T) {
	s := newServer(t)
	for _, path := range []string{"/api/history", "/api/history/x", "/api/metrics"} {
		resp, data := do(t, s, http.MethodGet, path, "")
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode, path)
		assert.Equal(t, "history_disabled", decode(t, data)["kind"], path)
	}
}

func TestMetrics(t *testing.T) {
	s := newServer(t, withHistory(t))
	do(t, s, http.MethodPost, "/api/analyze", `{"code": "import os\n", "fileType": "py"}`)
	do(t, s, http.MethodPost, "/api/analyze", `{"code": "a { color: red; }", "fileType": "css"}`)

	resp, data := do(t, s, http.MethodGet, "/api/metrics?period=7d", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	m := decode(t, data)
	assert.Equal(t, float64(2), m["totalAnalyses"])
	assert.Equal(t, "7d", m["period"])

	_, data = do(t, s, http.MethodGet, "/api/metrics?fileType=css", "")
	assert.Equal(t, float64(1), decode(t, data)["totalAnalyses"])

	resp, data = do(t, s, http.MethodGet, "/api/metrics?period=1y", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_period", decode(t, data)["kind"])

	resp, data = do(t, s, http.MethodGet, "/api/metrics?fileType=cobol", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "unsupported_kind", decode(t, data)["kind"])
}

func TestGitAnalyze(t *testing.T) {
	var gotURL, gotBranch string
	stub := func(_ context.Context, url, branch string) (*gitrepo.Report, error) {
		gotURL, gotBranch = url, branch
		if strings.Contains(url, "private") {
			return nil, errors.New("authentication required")
		}
		return &gitrepo.Report{URL: url, Branch: branch, Files: []gitrepo.FileResult{}, Skipped: []gitrepo.SkippedFile{}}, nil
	}
	s := newServer(t, WithGitAnalyzer(stub))

	resp, data := do(t, s, http.MethodPost, "/api/git/analyze", `{"repoUrl": "https://example.com/r.git", "branch": "dev"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	assert.Equal(t, "https://example.com/r.git", gotURL)
	assert.Equal(t, "dev", gotBranch)
	assert.Equal(t, "https://example.com/r.git", decode(t, data)["repoUrl"])

	resp, data = do(t, s, http.MethodPost, "/api/git/analyze", `{"repoUrl": "https://example.com/private.git"}`)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "git_error", decode(t, data)["kind"])

	resp, _ = do(t, s, http.MethodPost, "/api/git/analyze", `{"branch": "dev"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestNotFoundRoute(t *testing.T) {
	s := newServer(t)
	resp, data := do(t, s, http.MethodGet, "/api/nope", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "http_error", decode(t, data)["kind"])
}

func TestResultCache_Evicts(t *testing.T) {
	c := newResultCache(2)
	for i, code := range []string{"a", "b", "c"} {
		c.put(requestKey(analysis.Request{Code: code, Kind: "py"}), &analysis.Result{FileName: string(rune('0' + i))})
	}
	assert.Equal(t, 2, c.len())
	_, ok := c.get(requestKey(analysis.Request{Code: "a", Kind: "py"}))
	assert.False(t, ok, "oldest entry is evicted")
	_, ok = c.get(requestKey(analysis.Request{Code: "c", Kind: "py"}))
	assert.True(t, ok)

	var disabled *resultCache
	disabled.put(1, &analysis.Result{})
	_, ok = disabled.get(1)
	assert.False(t, ok)
}
