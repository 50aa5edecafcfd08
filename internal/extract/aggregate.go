package extract

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// defaultWorkers bounds the number of files parsed at once
const defaultWorkers = 10

// Finder contributes names found by something other than the regex patterns
type Finder interface {
	Find(path string, content []byte) (Findings, error)
}

// Findings is what a Finder reports for one file
type Findings struct {
	Names   []string // Statically known variable names
	Dynamic []string // Expressions whose variable name is only known at runtime
}

// Locations maps a variable name to the relative paths of files referencing it
type Locations map[string][]string

// Reference is a dynamic lookup reported by a Finder
type Reference struct {
	Expr string
	File string
}

// Result aggregates the names found across a set of files
type Result struct {
	Vars      VarSet
	Locations Locations   // nil unless Options.Locations is set
	Dynamic   []Reference // sorted by file, then expression
	Files     int         // number of files parsed successfully
}

// Options controls Aggregate
type Options struct {
	Locations bool
	Finder    Finder
	Workers   int
	Logger    *zerolog.Logger
}

// Aggregate parses all files in parallel and merges their variable names.
// Files that cannot be read are logged and skipped.
func (e *Extractor) Aggregate(ctx context.Context, files []string, root string, opts Options) (*Result, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}

	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	result := &Result{Vars: make(VarSet)}
	if opts.Locations {
		result.Locations = make(Locations)
	}
	seenLoc := make(map[string]map[string]bool)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, file := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			content, err := os.ReadFile(file)
			if err != nil {
				logger.Warn().Err(err).Str("file", file).Msg("failed to read file")
				return nil
			}

			vars := e.Extract(string(content))
			var dynamic []string
			if opts.Finder != nil {
				found, err := opts.Finder.Find(file, content)
				if err != nil {
					logger.Debug().Err(err).Str("file", file).Msg("syntax finder failed")
				} else {
					for _, n := range found.Names {
						vars.Add(n)
					}
					dynamic = found.Dynamic
				}
			}

			rel := relativePath(root, file)

			mu.Lock()
			defer mu.Unlock()
			result.Files++
			result.Vars.Merge(vars)
			for _, expr := range dynamic {
				result.Dynamic = append(result.Dynamic, Reference{Expr: expr, File: rel})
			}
			if result.Locations != nil {
				for name := range vars {
					if seenLoc[name] == nil {
						seenLoc[name] = make(map[string]bool)
					}
					if !seenLoc[name][rel] {
						seenLoc[name][rel] = true
						result.Locations[name] = append(result.Locations[name], rel)
					}
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	for name := range result.Locations {
		sort.Strings(result.Locations[name])
	}
	sort.Slice(result.Dynamic, func(i, j int) bool {
		if result.Dynamic[i].File != result.Dynamic[j].File {
			return result.Dynamic[i].File < result.Dynamic[j].File
		}
		return result.Dynamic[i].Expr < result.Dynamic[j].Expr
	})

	return result, nil
}

// relativePath returns path relative to root using forward slashes
func relativePath(root, path string) string {
	if root == "" {
		return filepath.ToSlash(path)
	}
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "" {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
