package markup

// TagEntry is a tag name and the line it was seen on. It is both the tag
// stack element and the unclosed/missing-open finding.
type TagEntry struct {
	Tag  string `json:"tag" toon:"tag"`
	Line int    `json:"line" toon:"line"`
}

// Snippet is a finding that quotes the offending markup.
type Snippet struct {
	Snippet string `json:"snippet" toon:"snippet"`
	Line    int    `json:"line" toon:"line"`
}

// Analysis is the markup report. Every list is non-nil.
type Analysis struct {
	UnclosedTags     []TagEntry `json:"unclosed_tags" toon:"unclosed_tags"`
	MissingCloseTags []TagEntry `json:"missing_close_tags" toon:"missing_close_tags"`
	IncompleteTags   []Snippet  `json:"incomplete_tags" toon:"incomplete_tags"`
	DuplicatedIDs    []string   `json:"duplicated_ids" toon:"duplicated_ids"`
	ImgsWithoutAlt   []Snippet  `json:"imgs_without_alt" toon:"imgs_without_alt"`
	LinksWithoutHref []Snippet  `json:"links_without_href" toon:"links_without_href"`
}

func newAnalysis() *Analysis {
	return &Analysis{
		UnclosedTags:     []TagEntry{},
		MissingCloseTags: []TagEntry{},
		IncompleteTags:   []Snippet{},
		DuplicatedIDs:    []string{},
		ImgsWithoutAlt:   []Snippet{},
		LinksWithoutHref: []Snippet{},
	}
}
