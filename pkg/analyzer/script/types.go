package script

// Declaration is a declared function or variable name. Line is the last
// line the name was declared on.
type Declaration struct {
	Name string `json:"name" toon:"name"`
	Line int    `json:"line" toon:"line"`
}

// Comment is a TODO or FIXME marker.
type Comment struct {
	Comment string `json:"comment" toon:"comment"`
	Line    int    `json:"line" toon:"line"`
}

// MagicNumber is a numeric literal other than 0 or 1.
type MagicNumber struct {
	Value string `json:"value" toon:"value"`
	Line  int    `json:"line" toon:"line"`
}

// Analysis is the script report. Every list is non-nil.
type Analysis struct {
	DeclaredFunctions  []Declaration `json:"declared_functions" toon:"declared_functions"`
	UnusedFunctions    []Declaration `json:"unused_functions" toon:"unused_functions"`
	DeclaredVariables  []Declaration `json:"declared_variables" toon:"declared_variables"`
	UnusedVariables    []Declaration `json:"unused_variables" toon:"unused_variables"`
	SyntaxErrors       []string      `json:"syntax_errors" toon:"syntax_errors"`
	ParseErrors        []string      `json:"parse_errors" toon:"parse_errors"`
	VarUsage           []int         `json:"var_usage" toon:"var_usage"`
	LetUsage           []int         `json:"let_usage" toon:"let_usage"`
	ConstUsage         []int         `json:"const_usage" toon:"const_usage"`
	EvalUsage          []int         `json:"eval_usage" toon:"eval_usage"`
	DocumentWriteUsage []int         `json:"document_write_usage" toon:"document_write_usage"`
	TodoComments       []Comment     `json:"todo_comments" toon:"todo_comments"`
	LongLines          []int         `json:"long_lines" toon:"long_lines"`
	MagicNumbers       []MagicNumber `json:"magic_numbers" toon:"magic_numbers"`
	SemicolonMissing   []int         `json:"semicolon_missing" toon:"semicolon_missing"`
	ArrowFunctions     []Declaration `json:"arrow_functions" toon:"arrow_functions"`
	AnonymousFunctions []Declaration `json:"anonymous_functions" toon:"anonymous_functions"`
	DoubleEquals       []int         `json:"double_equals" toon:"double_equals"`
	TripleEquals       []int         `json:"triple_equals" toon:"triple_equals"`
	ConsoleLogUsage    []int         `json:"console_log_usage" toon:"console_log_usage"`
}

func newAnalysis() *Analysis {
	return &Analysis{
		DeclaredFunctions:  []Declaration{},
		UnusedFunctions:    []Declaration{},
		DeclaredVariables:  []Declaration{},
		UnusedVariables:    []Declaration{},
		SyntaxErrors:       []string{},
		ParseErrors:        []string{},
		VarUsage:           []int{},
		LetUsage:           []int{},
		ConstUsage:         []int{},
		EvalUsage:          []int{},
		DocumentWriteUsage: []int{},
		TodoComments:       []Comment{},
		LongLines:          []int{},
		MagicNumbers:       []MagicNumber{},
		SemicolonMissing:   []int{},
		ArrowFunctions:     []Declaration{},
		AnonymousFunctions: []Declaration{},
		DoubleEquals:       []int{},
		TripleEquals:       []int{},
		ConsoleLogUsage:    []int{},
	}
}
