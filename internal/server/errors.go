package server

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/panbanda/prism/internal/history"
	"github.com/panbanda/prism/pkg/analyzer"
	"github.com/panbanda/prism/pkg/parser"
)

// apiError is an error with a status code and a machine-readable kind.
type apiError struct {
	status int
	kind   string
	msg    string
}

func (e *apiError) Error() string { return e.msg }

func badRequest(kind, msg string) error {
	return &apiError{status: http.StatusBadRequest, kind: kind, msg: msg}
}

// errorBody is the JSON body of every failed request.
type errorBody struct {
	Error  string `json:"error"`
	Kind   string `json:"kind"`
	Line   int    `json:"line,omitempty"`
	Column int    `json:"column,omitempty"`
}

// classify maps an error to its status and body.
func classify(err error) (int, errorBody) {
	var (
		api         *apiError
		unsupported *analyzer.UnsupportedKindError
		parseErr    *parser.ParseError
		fiberErr    *fiber.Error
	)
	switch {
	case errors.As(err, &api):
		return api.status, errorBody{Error: api.msg, Kind: api.kind}
	case errors.As(err, &unsupported):
		return http.StatusBadRequest, errorBody{Error: unsupported.Error(), Kind: "unsupported_kind"}
	case errors.As(err, &parseErr):
		return http.StatusBadRequest, errorBody{
			Error:  parseErr.Error(),
			Kind:   "parse_error",
			Line:   parseErr.Line,
			Column: parseErr.Column,
		}
	case errors.Is(err, history.ErrNotFound):
		return http.StatusNotFound, errorBody{Error: err.Error(), Kind: "not_found"}
	case errors.As(err, &fiberErr):
		return fiberErr.Code, errorBody{Error: fiberErr.Message, Kind: "http_error"}
	default:
		return http.StatusInternalServerError, errorBody{Error: err.Error(), Kind: "internal"}
	}
}
