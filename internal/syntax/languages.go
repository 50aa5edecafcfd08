package syntax

import (
	"fmt"
	"unsafe"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
	tree_sitter_java "github.com/tree-sitter/tree-sitter-java/bindings/go"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"

	"github.com/jenian/envwatch/internal/scanner"
)

// grammars maps a language to its tree-sitter grammar constructor
var grammars = map[scanner.Language]func() unsafe.Pointer{
	scanner.LanguageJavaScript: tree_sitter_javascript.Language,
	scanner.LanguageTypeScript: tree_sitter_typescript.LanguageTypescript,
	scanner.LanguageGo:         tree_sitter_go.Language,
	scanner.LanguagePython:     tree_sitter_python.Language,
	scanner.LanguageRust:       tree_sitter_rust.Language,
	scanner.LanguageJava:       tree_sitter_java.Language,
}

// loadLanguage loads the Tree-Sitter language grammar for the given language
func loadLanguage(lang scanner.Language) (*sitter.Language, error) {
	ctor, ok := grammars[lang]
	if !ok {
		return nil, fmt.Errorf("unsupported language: %s", lang)
	}
	ptr := ctor()
	if ptr == nil {
		return nil, fmt.Errorf("failed to load %s language grammar", lang)
	}
	return sitter.NewLanguage(ptr), nil
}

// Supported reports whether the finder has a grammar for the language
func Supported(lang scanner.Language) bool {
	_, ok := grammars[lang]
	return ok
}
