// Package syntax finds environment variable lookups with tree-sitter grammars.
// It catches forms a line regex misses, such as process.env["KEY"] or
// os.Getenv(`KEY`), and reports lookups whose key is computed at runtime.
package syntax

import (
	"fmt"
	"strings"
	"sync"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/jenian/envwatch/internal/extract"
	"github.com/jenian/envwatch/internal/scanner"
)

// Finder handles Tree-Sitter parsing of source files
type Finder struct {
	languages map[scanner.Language]*sitter.Language
	mu        sync.RWMutex
}

// NewFinder creates a new finder instance
func NewFinder() *Finder {
	return &Finder{
		languages: make(map[scanner.Language]*sitter.Language),
	}
}

// getLanguage returns a language grammar for the given language, loading it if needed
func (f *Finder) getLanguage(lang scanner.Language) (*sitter.Language, error) {
	f.mu.RLock()
	if language, ok := f.languages[lang]; ok {
		f.mu.RUnlock()
		return language, nil
	}
	f.mu.RUnlock()

	f.mu.Lock()
	defer f.mu.Unlock()

	// Double-check after acquiring write lock
	if language, ok := f.languages[lang]; ok {
		return language, nil
	}

	language, err := loadLanguage(lang)
	if err != nil {
		return nil, err
	}
	f.languages[lang] = language
	return language, nil
}

// Find parses one file and returns the env lookups it contains.
// Files in unsupported languages yield empty findings.
func (f *Finder) Find(path string, content []byte) (extract.Findings, error) {
	var findings extract.Findings

	lang := scanner.DetectLanguage(path)
	r, ok := rules[lang]
	if !ok {
		return findings, nil
	}

	language, err := f.getLanguage(lang)
	if err != nil {
		return findings, err
	}

	// A parser per call: tree-sitter parsers are not safe for concurrent use
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(language)

	tree := parser.Parse(content, nil)
	if tree == nil {
		return findings, fmt.Errorf("failed to parse %s", path)
	}
	defer tree.Close()

	query, qerr := sitter.NewQuery(language, strings.TrimSpace(r.query))
	if qerr != nil {
		return findings, fmt.Errorf("query for %s: %v", lang, qerr)
	}
	defer query.Close()

	cursor := sitter.NewQueryCursor()
	defer cursor.Close()

	names := query.CaptureNames()
	seenKey := make(map[string]bool)
	seenDynamic := make(map[string]bool)

	matches := cursor.Matches(query, tree.RootNode(), content)
	for match := matches.Next(); match != nil; match = matches.Next() {
		captures := make(map[string]string, len(match.Captures))
		for _, c := range match.Captures {
			if int(c.Index) < len(names) {
				captures[names[c.Index]] = string(content[c.Node.StartByte():c.Node.EndByte()])
			}
		}

		if !r.accepted(captures) {
			continue
		}

		if literal, ok := captures["key"]; ok {
			if key := keyName(literal); key != "" && !seenKey[key] {
				seenKey[key] = true
				findings.Names = append(findings.Names, key)
			}
			continue
		}

		if expr, ok := captures["dynamic"]; ok && !seenDynamic[expr] {
			seenDynamic[expr] = true
			findings.Dynamic = append(findings.Dynamic, expr)
		}
	}

	return findings, nil
}
