package python

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// StyleChecker is the line-based style collaborator. It receives the
// normalized source lines and returns formatted violation strings.
type StyleChecker interface {
	Check(ctx context.Context, lines []string) ([]string, error)
}

// ErrUnavailable reports that an external collaborator is not installed.
var ErrUnavailable = errors.New("collaborator unavailable")

// UnavailableError names the missing collaborator.
type UnavailableError struct {
	Tool string
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s is not installed or could not be found.", e.Tool)
}

// Is lets errors.Is(err, ErrUnavailable) succeed.
func (e *UnavailableError) Is(target error) bool {
	return target == ErrUnavailable
}

// StatusString turns a collaborator failure into the human-readable status
// folded into a report.
func StatusString(err error) string {
	var unavailable *UnavailableError
	if errors.As(err, &unavailable) {
		return unavailable.Error()
	}
	return fmt.Sprintf("Error running style checker: %v", err)
}

// NopChecker reports nothing.
type NopChecker struct{}

// Check implements StyleChecker.
func (NopChecker) Check(context.Context, []string) ([]string, error) {
	return []string{}, nil
}

// DefaultMaxLineLength matches the pycodestyle default.
const DefaultMaxLineLength = 79

// LineChecker is a built-in subset of pycodestyle's physical-line checks.
// Output uses the pycodestyle format "stdin:row:col: CODE text".
type LineChecker struct {
	MaxLineLength int
}

// NewLineChecker creates a LineChecker with the default line length.
func NewLineChecker() *LineChecker {
	return &LineChecker{MaxLineLength: DefaultMaxLineLength}
}

// Check implements StyleChecker.
func (c *LineChecker) Check(_ context.Context, lines []string) ([]string, error) {
	maxLen := c.MaxLineLength
	if maxLen <= 0 {
		maxLen = DefaultMaxLineLength
	}

	issues := []string{}
	report := func(row, col int, code, text string) {
		issues = append(issues, fmt.Sprintf("stdin:%d:%d: %s %s", row, col, code, text))
	}

	var lex lineLexer
	for i, line := range lines {
		row := i + 1
		trimmed := strings.TrimRight(line, " \t\f\v")
		indent := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
		continuation := lex.continues()
		hasCode, last := lex.scan(line)

		if strings.Contains(indent, "\t") {
			report(row, strings.Index(indent, "\t")+1, "W191", "indentation contains tabs")
		} else if !continuation && hasCode && len(indent)%4 != 0 {
			report(row, len(indent)+1, "E111", "indentation is not a multiple of four")
		}
		if trimmed != line {
			if trimmed == "" {
				report(row, 1, "W293", "whitespace on blank line")
			} else {
				report(row, len(trimmed)+1, "W291", "trailing whitespace")
			}
		}
		if n := len([]rune(line)); n > maxLen {
			report(row, maxLen+1, "E501", fmt.Sprintf("line too long (%d > %d characters)", n, maxLen))
		}
		if last >= 0 && line[last] == ';' {
			report(row, last+1, "E703", "statement ends with a semicolon")
		}
	}

	if n := len(lines); n > 0 && strings.TrimSpace(lines[n-1]) == "" {
		report(n, 1, "W391", "blank line at end of file")
	}
	return issues, nil
}

// lineLexer carries the lexical state of a Python source from one physical
// line to the next.
type lineLexer struct {
	depth     int    // open brackets
	quote     string // delimiter of the string literal the line ended in
	backslash bool   // explicit line joining
}

// continues reports whether the next line belongs to the current logical line.
func (l *lineLexer) continues() bool {
	return l.depth > 0 || l.quote != "" || l.backslash
}

// scan consumes one line. hasCode reports anything outside comments that is
// not inside a string continued from an earlier line; last is the index of
// the final character outside strings and comments, or -1.
func (l *lineLexer) scan(line string) (hasCode bool, last int) {
	last = -1
	l.backslash = false
scan:
	for i := 0; i < len(line); i++ {
		ch := line[i]
		if l.quote != "" {
			switch {
			case ch == '\\':
				i++
			case strings.HasPrefix(line[i:], l.quote):
				i += len(l.quote) - 1
				l.quote = ""
			}
			continue
		}
		switch ch {
		case ' ', '\t', '\f', '\v':
			continue
		case '#':
			break scan
		case '"', '\'':
			l.quote = string(ch)
			if triple := strings.Repeat(l.quote, 3); strings.HasPrefix(line[i:], triple) {
				l.quote = triple
				i += 2
			}
		case '(', '[', '{':
			l.depth++
		case ')', ']', '}':
			l.depth = max(0, l.depth-1)
		}
		hasCode = true
		last = i
	}
	if len(l.quote) == 1 {
		// unterminated single-quoted string
		l.quote = ""
	}
	l.backslash = last >= 0 && line[last] == '\\' && l.quote == ""
	return hasCode, last
}

// ExecChecker runs an external pycodestyle-compatible tool that reads the
// source from stdin.
type ExecChecker struct {
	Command string
	Args    []string
}

// NewPycodestyleChecker returns an ExecChecker for "pycodestyle -".
func NewPycodestyleChecker(maxLineLength int) *ExecChecker {
	args := []string{}
	if maxLineLength > 0 {
		args = append(args, fmt.Sprintf("--max-line-length=%d", maxLineLength))
	}
	return &ExecChecker{Command: "pycodestyle", Args: append(args, "-")}
}

// Check implements StyleChecker. A missing executable yields an
// *UnavailableError; a non-zero exit with output means violations were found.
func (c *ExecChecker) Check(ctx context.Context, lines []string) ([]string, error) {
	cmd := exec.CommandContext(ctx, c.Command, c.Args...)
	cmd.Stdin = strings.NewReader(strings.Join(lines, "\n") + "\n")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if errors.Is(err, exec.ErrNotFound) {
		return nil, &UnavailableError{Tool: c.Command}
	}
	var exitErr *exec.ExitError
	if err != nil && !(errors.As(err, &exitErr) && stdout.Len() > 0) {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%s: %w: %s", c.Command, err, msg)
		}
		return nil, fmt.Errorf("%s: %w", c.Command, err)
	}

	issues := []string{}
	sc := bufio.NewScanner(&stdout)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			issues = append(issues, line)
		}
	}
	return issues, sc.Err()
}
