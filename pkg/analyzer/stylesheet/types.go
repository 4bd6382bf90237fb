package stylesheet

// PropertyFinding is a property-level issue inside a selector block. For
// invalid properties Property holds the offending declaration text.
type PropertyFinding struct {
	Selector   string `json:"selector" toon:"selector"`
	Line       int    `json:"line" toon:"line"`
	Property   string `json:"property" toon:"property"`
	Suggestion string `json:"suggestion,omitempty" toon:"suggestion,omitempty"`
}

// Block is one extracted "selector { body }" occurrence.
type Block struct {
	Selector string
	Line     int
	Body     string
	// BodyLine is the line the body text starts on.
	BodyLine int
}

// Analysis is the stylesheet report. Every list and map is non-nil.
type Analysis struct {
	Selectors           []string          `json:"selectors" toon:"selectors"`
	SelectorLines       map[string][]int  `json:"selector_lines" toon:"selector_lines"`
	DuplicatedSelectors []string          `json:"duplicated_selectors" toon:"duplicated_selectors"`
	InvalidSelectors    []string          `json:"invalid_selectors" toon:"invalid_selectors"`
	InvalidProperties   []PropertyFinding `json:"invalid_properties" toon:"invalid_properties"`
	RepeatedProperties  []PropertyFinding `json:"repeated_properties" toon:"repeated_properties"`
	UnknownProperties   []PropertyFinding `json:"unknown_properties" toon:"unknown_properties"`
	UnusedSelectors     []string          `json:"unused_selectors" toon:"unused_selectors"`
}

func newAnalysis() *Analysis {
	return &Analysis{
		Selectors:           []string{},
		SelectorLines:       map[string][]int{},
		DuplicatedSelectors: []string{},
		InvalidSelectors:    []string{},
		InvalidProperties:   []PropertyFinding{},
		RepeatedProperties:  []PropertyFinding{},
		UnknownProperties:   []PropertyFinding{},
		UnusedSelectors:     []string{},
	}
}
