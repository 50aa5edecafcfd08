package extract

import (
	"fmt"
	"os"
	"regexp"
	"sort"
)

// VarSet is a set of discovered environment variable names
type VarSet map[string]struct{}

// NewVarSet creates a set holding the given names
func NewVarSet(names ...string) VarSet {
	s := make(VarSet, len(names))
	for _, n := range names {
		s.Add(n)
	}
	return s
}

// Add inserts a name; empty names are ignored
func (s VarSet) Add(name string) {
	if name != "" {
		s[name] = struct{}{}
	}
}

// Has reports whether the name is in the set
func (s VarSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Len returns the number of names
func (s VarSet) Len() int {
	return len(s)
}

// Merge adds every name of other to s
func (s VarSet) Merge(other VarSet) {
	for n := range other {
		s[n] = struct{}{}
	}
}

// Clone returns a copy of the set
func (s VarSet) Clone() VarSet {
	c := make(VarSet, len(s))
	c.Merge(s)
	return c
}

// Sorted returns the names in lexical order
func (s VarSet) Sorted() []string {
	names := make([]string, 0, len(s))
	for n := range s {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Extractor matches configured regex patterns against source text
type Extractor struct {
	patterns []*regexp.Regexp
}

// New compiles the patterns. The first capturing group of each pattern is the variable name.
func New(patterns []string) (*Extractor, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid regex pattern %q: %w", p, err)
		}
		compiled = append(compiled, re)
	}
	return &Extractor{patterns: compiled}, nil
}

// Extract returns the unique variable names referenced in content
func (e *Extractor) Extract(content string) VarSet {
	vars := make(VarSet)
	for _, re := range e.patterns {
		for _, m := range re.FindAllStringSubmatch(content, -1) {
			// Patterns without a capture group contribute nothing
			if len(m) > 1 {
				vars.Add(m[1])
			}
		}
	}
	return vars
}

// ExtractFile reads a file and extracts variable names from it
func (e *Extractor) ExtractFile(path string) (VarSet, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	return e.Extract(string(content)), nil
}
