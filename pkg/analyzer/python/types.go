package python

// Issue is a finding located at a line.
type Issue struct {
	Line    int    `json:"line" toon:"line"`
	Message string `json:"message" toon:"message"`
}

// PrintStatement records a call to the builtin print.
type PrintStatement struct {
	Line int    `json:"line" toon:"line"`
	Code string `json:"code" toon:"code"`
}

// Complexity holds the coarse per-function counters.
type Complexity struct {
	Loops int `json:"loops" toon:"loops"`
	Depth int `json:"depth" toon:"depth"`
}

// FunctionProfile is what the traversal learns about one function.
// Profiles are keyed by name; a later definition with the same name
// replaces an earlier one.
type FunctionProfile struct {
	Name         string
	Line         int
	HasDocstring bool
	Loops        int
	Depth        int
	Hash         string
	Reads        map[string]struct{}
	Writes       map[string]struct{}
}

// Analysis is the structural report for one Python source text.
// Every list and map is non-nil, so absent findings encode as empty
// collections.
type Analysis struct {
	DeclaredFunctions   []string              `json:"declared_functions" toon:"declared_functions"`
	CalledFunctions     []string              `json:"called_functions" toon:"called_functions"`
	UnusedFunctions     []string              `json:"unused_functions" toon:"unused_functions"`
	DeclaredVars        []string              `json:"declared_vars" toon:"declared_vars"`
	UsedVars            []string              `json:"used_vars" toon:"used_vars"`
	UnusedVars          []string              `json:"unused_vars" toon:"unused_vars"`
	PrintStatements     []PrintStatement      `json:"print_statements" toon:"print_statements"`
	UninitializedVars   []string              `json:"uninitialized_vars" toon:"uninitialized_vars"`
	DocstringIssues     []Issue               `json:"docstring_issues" toon:"docstring_issues"`
	FunctionComplexity  map[string]Complexity `json:"function_complexity" toon:"function_complexity"`
	StyleIssues         []string              `json:"style_issues" toon:"style_issues"`
	CommonErrors        []Issue               `json:"common_errors" toon:"common_errors"`
	RefactorSuggestions []Issue               `json:"refactor_suggestions" toon:"refactor_suggestions"`
	UnusedImports       []string              `json:"unused_imports" toon:"unused_imports"`
	DeadCode            []Issue               `json:"dead_code" toon:"dead_code"`
	DuplicateFunctions  [][]string            `json:"duplicate_functions" toon:"duplicate_functions"`
	UnusedWrites        map[string][]string   `json:"unused_writes" toon:"unused_writes"`
	ThirdPartyCode      []Issue               `json:"third_party_code" toon:"third_party_code"`
}

func newAnalysis() *Analysis {
	return &Analysis{
		DeclaredFunctions:   []string{},
		CalledFunctions:     []string{},
		UnusedFunctions:     []string{},
		DeclaredVars:        []string{},
		UsedVars:            []string{},
		UnusedVars:          []string{},
		PrintStatements:     []PrintStatement{},
		UninitializedVars:   []string{},
		DocstringIssues:     []Issue{},
		FunctionComplexity:  map[string]Complexity{},
		StyleIssues:         []string{},
		CommonErrors:        []Issue{},
		RefactorSuggestions: []Issue{},
		UnusedImports:       []string{},
		DeadCode:            []Issue{},
		DuplicateFunctions:  [][]string{},
		UnusedWrites:        map[string][]string{},
		ThirdPartyCode:      []Issue{},
	}
}

// Finding messages.
const (
	msgFunctionNoDocstring = "Function '%s' has no docstring."
	msgClassNoDocstring    = "Class '%s' has no docstring."
	msgPossibleIndexError  = "Possible IndexError detected."
	msgTooComplex          = "Function '%s' is too complex. Consider refactoring."
	msgIfFalse             = "'if False' block found"
	msgAfterReturn         = "Code after 'return' found"
	msgThirdParty          = "Third-party code detected: %s"
	msgCallInLoop          = "Call to function '%s' inside loop."
	msgEmptyLoop           = "Empty loop detected."
)
