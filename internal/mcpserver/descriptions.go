package mcpserver

// Tool descriptions with interpretation guidance for LLMs.
// Each description explains what the tool does, when to use it,
// how to interpret results, and what comes back.

func describeAnalyzeCode() string {
	return `Runs the static analyzer for one source text and returns its report with a section summary.

USE WHEN:
- Reviewing a snippet or a file you already have in context
- Checking Python for unused code, missing docstrings and risky patterns
- Auditing HTML for unclosed tags, images without alt text and inline styles
- Checking CSS for duplicate selectors, unknown properties and repeated declarations
- Finding loose equality, var declarations and long lines in JavaScript

INTERPRETING RESULTS:
- summary.sections lists non-empty categories in a fixed order; severity is warning, info or success
- summary.issuesCount counts the items in warning sections only
- A "No critical issues found" success section means no warning section exists
- Python: uninitialized_vars lists names read before any assignment earlier in the file
- Python: duplicate_functions groups functions whose bodies are identical after normalization
- CSS: unknown_properties carry a "suggestion" when a known property is close
- rb, php and go get line, function and comment counts only

METRICS RETURNED:
- fileType, fileName, result (per-kind report), summary
- performance_issues when performance is set for py`
}

func describeAnalyzeFile() string {
	return `Reads a file from disk and analyzes it with the kind implied by its extension.

USE WHEN:
- The code lives in the workspace and you have a path rather than its text
- Checking a stylesheet against the HTML page that uses it (markup_path)
- Overriding detection for files with unusual extensions (file_type)

INTERPRETING RESULTS:
- Same report and summary as analyze_code
- Unknown extensions fail with an unsupported kind error; pass file_type to force one
- Python that does not parse fails with the line and column of the first error

METRICS RETURNED:
- fileType, fileName, result (per-kind report), summary`
}

func describeCheckPerformance() string {
	return `Flags function calls made inside for and while loops in Python source.

USE WHEN:
- Looking for work that could be hoisted out of a hot loop
- Reviewing data-processing scripts for obvious repeated calls
- Finding loops with empty bodies

INTERPRETING RESULTS:
- One entry per call per enclosing loop; nested loops report an inner call once per loop
- The line is the line of the loop, not of the call
- Calls like range() or len() in the loop header are reported too; judge each in context
- functions is sorted by loops, then calls; the top entries are where to look first

METRICS RETURNED:
- performance_issues: list of {line, message}
- functions: list of {name, line, loops, calls} for every function`
}

func describeListKinds() string {
	return `Lists the file kinds the analyzer accepts.

USE WHEN:
- Deciding which file_type to pass to analyze_code
- Checking whether a language gets a full report

INTERPRETING RESULTS:
- core: true kinds (py, html, css, js) get full structural reports
- core: false kinds get line, function and comment counts

METRICS RETURNED:
- kinds: list of {kind, label, core}`
}
