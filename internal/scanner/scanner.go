package scanner

import (
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Language represents a programming language
type Language string

const (
	LanguageJavaScript Language = "javascript"
	LanguageTypeScript Language = "typescript"
	LanguageGo         Language = "go"
	LanguagePython     Language = "python"
	LanguageRust       Language = "rust"
	LanguageJava       Language = "java"
	LanguageUnknown    Language = "unknown"
)

// FileInfo contains information about a file to be scanned
type FileInfo struct {
	Path     string // Absolute path
	Rel      string // Slash-separated path relative to the scan root
	Language Language
}

// Scanner handles file discovery and filtering
type Scanner struct {
	include []string // Globs a file must match (e.g., "**/*.ts")
	exclude []string // Globs that remove a file (e.g., "**/node_modules/**")
}

// New creates a scanner for the given watch and exclude globs
func New(include, exclude []string) *Scanner {
	return &Scanner{include: include, exclude: exclude}
}

// DetectLanguage determines the language from file extension
func DetectLanguage(path string) Language {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".js", ".jsx", ".mjs", ".cjs":
		return LanguageJavaScript
	case ".ts", ".tsx", ".mts", ".cts":
		return LanguageTypeScript
	case ".go":
		return LanguageGo
	case ".py":
		return LanguagePython
	case ".rs":
		return LanguageRust
	case ".java":
		return LanguageJava
	default:
		return LanguageUnknown
	}
}

// isBinaryFile checks if a file is likely binary
func isBinaryFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	binaryExts := map[string]bool{
		".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
		".pdf": true, ".zip": true, ".tar": true, ".gz": true,
		".exe": true, ".dll": true, ".so": true, ".dylib": true,
		".woff": true, ".woff2": true, ".ttf": true, ".eot": true,
		".ico": true, ".mp4": true, ".mp3": true,
	}
	return binaryExts[ext]
}

// matchesAny checks if a slash path matches any of the glob patterns
func matchesAny(rel string, globs []string) bool {
	for _, glob := range globs {
		if ok, _ := doublestar.Match(glob, rel); ok {
			return true
		}
	}
	return false
}

// relPath returns the slash-separated path of p relative to root
func relPath(root, p string) (string, bool) {
	rel, err := filepath.Rel(root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// excludesDir reports whether the directory or one of its parents is covered
// by a "<dir>/**" exclude. File-level globs never prune a directory.
func (s *Scanner) excludesDir(rel string) bool {
	if rel == "." || rel == "" {
		return false
	}
	for _, glob := range s.exclude {
		prefix, ok := strings.CutSuffix(glob, "/**")
		if !ok || prefix == "" {
			continue
		}
		for dir := rel; dir != "."; dir = path.Dir(dir) {
			if matched, _ := doublestar.Match(prefix, dir); matched {
				return true
			}
		}
	}
	return false
}

// ExcludesDir reports whether a directory under root is pruned from scans
func (s *Scanner) ExcludesDir(root, dir string) bool {
	rel, ok := relPath(root, dir)
	if !ok {
		return true
	}
	return s.excludesDir(rel)
}

// matchesRel applies the include and exclude globs to a relative path
func (s *Scanner) matchesRel(rel string) bool {
	if isBinaryFile(rel) {
		return false
	}
	if !matchesAny(rel, s.include) {
		return false
	}
	return !matchesAny(rel, s.exclude)
}

// Matches reports whether path is a watched, non-excluded file under root
func (s *Scanner) Matches(root, path string) bool {
	rel, ok := relPath(root, path)
	if !ok {
		return false
	}
	return s.matchesRel(rel)
}

// Scan recursively walks a directory and returns the files to parse, sorted by path
func (s *Scanner) Scan(rootPath string) ([]FileInfo, error) {
	var files []FileInfo

	err := filepath.Walk(rootPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			// Unreadable entries below the root are skipped
			if path != rootPath {
				return nil
			}
			return err
		}

		rel, ok := relPath(rootPath, path)
		if !ok {
			return nil
		}

		if info.IsDir() {
			if s.excludesDir(rel) {
				return filepath.SkipDir
			}
			return nil
		}

		if !s.matchesRel(rel) {
			return nil
		}

		files = append(files, FileInfo{
			Path:     path,
			Rel:      rel,
			Language: DetectLanguage(path),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Rel < files[j].Rel })
	return files, nil
}

// Paths returns the absolute paths of the given files
func Paths(files []FileInfo) []string {
	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.Path
	}
	return paths
}
