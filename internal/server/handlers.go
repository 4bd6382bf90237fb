package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/panbanda/prism/internal/history"
	"github.com/panbanda/prism/internal/report"
	"github.com/panbanda/prism/internal/service/analysis"
	"github.com/panbanda/prism/internal/summary"
	"github.com/panbanda/prism/pkg/analyzer"
	"github.com/panbanda/prism/pkg/analyzer/python"
)

// analyzeRequest is the body of POST /api/analyze and /api/report/:format.
type analyzeRequest struct {
	Code        string `json:"code"`
	FileType    string `json:"fileType"`
	FileName    string `json:"fileName,omitempty"`
	Markup      string `json:"markup,omitempty"`
	Performance bool   `json:"performance,omitempty"`
}

// analyzeResponse is the body of a successful POST /api/analyze.
type analyzeResponse struct {
	ID                string           `json:"id,omitempty"`
	FileType          analyzer.Kind    `json:"fileType"`
	FileName          string           `json:"fileName,omitempty"`
	Result            any              `json:"result"`
	PerformanceIssues []python.Issue   `json:"performance_issues,omitempty"`
	Summary           *summary.Summary `json:"summary"`
	Cached            bool             `json:"cached,omitempty"`
}

func (s *Server) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"version": s.version,
		"kinds":   analyzer.Kinds,
		"history": s.history != nil,
	})
}

// runAnalysis validates the body and analyzes it, reusing cached results
// for identical requests.
func (s *Server) runAnalysis(c *fiber.Ctx) (*analysis.Result, bool, error) {
	body := c.Body()
	if err := s.analyze.validate(body); err != nil {
		return nil, false, err
	}
	var req analyzeRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, false, badRequest("invalid_json", err.Error())
	}

	areq := analysis.Request{
		Code:        req.Code,
		Kind:        req.FileType,
		FileName:    req.FileName,
		Markup:      req.Markup,
		Performance: req.Performance,
	}
	key := requestKey(areq)
	if cached, ok := s.cache.get(key); ok {
		res := *cached
		res.FileName = req.FileName
		return &res, true, nil
	}

	res, err := s.svc.Analyze(c.UserContext(), areq)
	if err != nil {
		return nil, false, err
	}
	s.cache.put(key, res)
	return res, false, nil
}

func (s *Server) postAnalyze(c *fiber.Ctx) error {
	res, cached, err := s.runAnalysis(c)
	if err != nil {
		return err
	}
	sum := summary.Build(res)

	resp := analyzeResponse{
		FileType:          res.Kind,
		FileName:          res.FileName,
		Result:            res.Report(),
		PerformanceIssues: res.Performance,
		Summary:           sum,
		Cached:            cached,
	}
	if s.history != nil {
		entry, err := s.history.Record(c.UserContext(), res, sum)
		if err != nil {
			s.log.Error().Err(err).Msg("failed to record analysis")
		} else {
			resp.ID = entry.ID
		}
	}
	return c.JSON(resp)
}

func (s *Server) postReport(c *fiber.Ctx) error {
	format, err := report.ParseFormat(c.Params("format"))
	if err != nil {
		return &apiError{status: http.StatusNotFound, kind: "unknown_format", msg: err.Error()}
	}
	res, _, err := s.runAnalysis(c)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := s.renderer.Render(&buf, format, report.NewDocument(res)); err != nil {
		return err
	}
	if res.FileName != "" {
		c.Attachment(res.FileName + "." + string(format))
	}
	c.Set(fiber.HeaderContentType, format.ContentType())
	return c.Send(buf.Bytes())
}

func (s *Server) requireHistory() error {
	if s.history == nil {
		return &apiError{status: http.StatusServiceUnavailable, kind: "history_disabled", msg: "history is disabled"}
	}
	return nil
}

func (s *Server) listHistory(c *fiber.Ctx) error {
	if err := s.requireHistory(); err != nil {
		return err
	}
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return badRequest("invalid_limit", "limit must be a non-negative integer")
		}
		limit = n
	}
	entries, err := s.history.List(c.UserContext(), limit)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"entries": entries})
}

func (s *Server) getHistory(c *fiber.Ctx) error {
	if err := s.requireHistory(); err != nil {
		return err
	}
	entry, err := s.history.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(entry)
}

func (s *Server) getMetrics(c *fiber.Ctx) error {
	if err := s.requireHistory(); err != nil {
		return err
	}
	period, err := history.ParsePeriod(c.Query("period"))
	if err != nil {
		return badRequest("invalid_period", err.Error())
	}
	f := history.Filter{Period: period}
	if raw := c.Query("fileType"); raw != "" && raw != "all" {
		kind, err := analyzer.ParseKind(raw)
		if err != nil {
			return err
		}
		f.Kind = kind
	}
	m, err := s.history.Metrics(c.UserContext(), f)
	if err != nil {
		return err
	}
	return c.JSON(m)
}

type gitRequest struct {
	RepoURL string `json:"repoUrl"`
	Branch  string `json:"branch,omitempty"`
}

func (s *Server) postGitAnalyze(c *fiber.Ctx) error {
	body := c.Body()
	if err := s.git.validate(body); err != nil {
		return err
	}
	var req gitRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return badRequest("invalid_json", err.Error())
	}

	rep, err := s.gitRepo(c.UserContext(), req.RepoURL, req.Branch)
	if err != nil {
		return &apiError{status: http.StatusBadGateway, kind: "git_error", msg: err.Error()}
	}
	return c.JSON(rep)
}
