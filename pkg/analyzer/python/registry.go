package python

import (
	"context"
	"fmt"
	"sync"

	"github.com/panbanda/prism/pkg/parser"
)

// Snippet is a known third-party function, identified by the structural
// hash of its source.
type Snippet struct {
	Name        string
	Description string
	Source      string
}

// Registry maps structural hashes to known snippets. Hashes are computed
// lazily from the snippet sources the first time the registry is used.
type Registry struct {
	snippets []Snippet

	once   sync.Once
	hashes map[string]Snippet
}

// NewRegistry creates a registry from snippet sources.
func NewRegistry(snippets ...Snippet) *Registry {
	return &Registry{snippets: snippets}
}

var defaultSnippets = []Snippet{
	{
		Name:        "hello_world",
		Description: "example function 'hello_world'",
		Source:      "def hello_world():\n    print(\"Hello, world!\")\n",
	},
}

var defaultRegistry = NewRegistry(defaultSnippets...)

// DefaultRegistry returns the built-in registry of tutorial snippets.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

func (r *Registry) load() {
	r.once.Do(func() {
		r.hashes = make(map[string]Snippet, len(r.snippets))
		psr := parser.New()
		defer psr.Close()
		for _, s := range r.snippets {
			root, err := psr.ParsePython(context.Background(), []byte(s.Source))
			if err != nil {
				continue
			}
			root.Walk(func(n *parser.Node) bool {
				if n.Kind == parser.KindFunction {
					r.hashes[HashCanonical(n.Canonical)] = s
					return false
				}
				return true
			})
		}
	})
}

// size is the number of snippets with a usable hash.
func (r *Registry) size() int {
	if r == nil {
		return 0
	}
	r.load()
	return len(r.hashes)
}

// Lookup returns the snippet registered under hash.
func (r *Registry) Lookup(hash string) (Snippet, bool) {
	if r == nil {
		return Snippet{}, false
	}
	r.load()
	s, ok := r.hashes[hash]
	return s, ok
}

// Detect reports every function in root whose structural hash is registered.
func (r *Registry) Detect(root *parser.Node) []Issue {
	issues := []Issue{}
	root.Walk(func(n *parser.Node) bool {
		if n.Kind != parser.KindFunction {
			return true
		}
		if s, ok := r.Lookup(HashCanonical(n.Canonical)); ok {
			issues = append(issues, Issue{Line: n.Line, Message: fmt.Sprintf(msgThirdParty, s.Description)})
		}
		return true
	})
	return issues
}
