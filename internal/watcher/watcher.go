// Package watcher keeps a workspace's env files in step with the source tree.
// A Watcher rescans on file-system changes and appends newly referenced
// variables to the env and example files.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/jenian/envwatch/internal/config"
	"github.com/jenian/envwatch/internal/envfile"
	"github.com/jenian/envwatch/internal/extract"
	wlog "github.com/jenian/envwatch/internal/log"
	"github.com/jenian/envwatch/internal/output"
	"github.com/jenian/envwatch/internal/scanner"
	"github.com/jenian/envwatch/internal/syntax"
)

// DefaultDebounce is how long the watcher waits after the last change before rescanning
const DefaultDebounce = 500 * time.Millisecond

// Notifier receives the user-facing messages a watcher produces
type Notifier interface {
	Info(msg string)
	Error(msg string)
}

type nopNotifier struct{}

func (nopNotifier) Info(string)  {}
func (nopNotifier) Error(string) {}

// Options configures a Watcher
type Options struct {
	Notifier Notifier
	Logger   *zerolog.Logger
	Debounce time.Duration
	// OnStatus is called with the new indicator after every scan and config reload.
	// Calls never overlap.
	OnStatus func(output.Indicator)
}

// reportedError wraps an error the Notifier has already shown
type reportedError struct{ err error }

func (e reportedError) Error() string { return e.err.Error() }
func (e reportedError) Unwrap() error { return e.err }

// IsReported reports whether err was already shown to the user through the Notifier
func IsReported(err error) bool {
	var r reportedError
	return errors.As(err, &r)
}

// Watcher owns the scan state of one workspace
type Watcher struct {
	root     string
	notifier Notifier
	logger   zerolog.Logger
	debounce time.Duration
	onStatus func(output.Indicator)

	scanMu sync.Mutex // serializes rescans and file updates

	mu         sync.Mutex // guards everything below
	cfg        *config.Config
	extractor  *extract.Extractor
	scanner    *scanner.Scanner
	finder     extract.Finder
	discovered extract.VarSet
	last       *extract.Result
	fsw        *fsnotify.Watcher
	timer      *time.Timer
	cancel     context.CancelFunc
	done       chan struct{}
	fire       chan struct{}
}

// New creates a watcher for root. Invalid patterns are reported here.
func New(root string, cfg *config.Config, opts Options) (*Watcher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", root, err)
	}
	root = abs

	w := &Watcher{
		root:       root,
		notifier:   opts.Notifier,
		debounce:   opts.Debounce,
		onStatus:   opts.OnStatus,
		discovered: extract.NewVarSet(),
		fire:       make(chan struct{}, 1),
	}
	if w.notifier == nil {
		w.notifier = nopNotifier{}
	}
	if w.debounce <= 0 {
		w.debounce = DefaultDebounce
	}
	if opts.Logger != nil {
		w.logger = *opts.Logger
	} else {
		w.logger = wlog.WithComponent("watcher")
	}

	if err := w.apply(cfg); err != nil {
		return nil, err
	}
	return w, nil
}

// apply installs cfg and the matchers derived from it
func (w *Watcher) apply(cfg *config.Config) error {
	ext, err := extract.New(cfg.Patterns)
	if err != nil {
		return err
	}

	var finder extract.Finder
	if cfg.SyntaxAware {
		finder = syntax.NewFinder()
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.cfg = cfg
	w.extractor = ext
	w.scanner = scanner.New(cfg.FilesToWatch, cfg.ExcludePatterns)
	w.finder = finder
	return nil
}

// Start subscribes to file-system changes below the root and runs an initial
// scan. It does nothing when the watcher is disabled or already running.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if !w.cfg.Enabled {
		w.mu.Unlock()
		w.logger.Info().Str("event", "watcher.disabled").Msg("watcher is disabled, not starting")
		return nil
	}
	if w.fsw != nil {
		w.mu.Unlock()
		return nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return fmt.Errorf("create watcher: %w", err)
	}
	w.fsw = fsw
	sc := w.scanner
	w.mu.Unlock()

	if err := w.addTree(fsw, sc, w.root); err != nil {
		_ = fsw.Close()
		w.mu.Lock()
		w.fsw = nil
		w.mu.Unlock()
		return fmt.Errorf("watch %s: %w", w.root, err)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	w.mu.Lock()
	w.cancel = cancel
	w.done = done
	w.mu.Unlock()

	w.logger.Info().
		Str("event", "watcher.started").
		Str("root", w.root).
		Int("dirs", len(fsw.WatchList())).
		Msg("watching workspace for changes")

	go w.loop(loopCtx, fsw, done)

	_ = w.ScanWorkspace(loopCtx, false)
	return nil
}

// Stop cancels any pending rescan and closes the subscription. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	cancel, done, fsw := w.cancel, w.done, w.fsw
	w.cancel, w.done, w.fsw = nil, nil, nil
	w.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	_ = fsw.Close()

	w.logger.Info().Str("event", "watcher.stopped").Msg("watcher stopped")
}

// addTree watches dir and every non-excluded directory below it
func (w *Watcher) addTree(fsw *fsnotify.Watcher, sc *scanner.Scanner, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && sc.ExcludesDir(w.root, path) {
			return filepath.SkipDir
		}
		if err := fsw.Add(path); err != nil {
			w.logger.Warn().Err(err).Str("dir", path).Msg("failed to watch directory")
		}
		return nil
	})
}

// loop is the main event loop
func (w *Watcher) loop(ctx context.Context, fsw *fsnotify.Watcher, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			return

		case <-w.fire:
			_ = w.ScanWorkspace(ctx, false)

		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handle(ctx, fsw, event)

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Str("event", "watcher.error").Msg("file watcher error")
		}
	}
}

// handle routes one file-system event
func (w *Watcher) handle(ctx context.Context, fsw *fsnotify.Watcher, event fsnotify.Event) {
	if filepath.Clean(event.Name) == config.Path(w.root) {
		if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
			w.reloadConfig(ctx)
		}
		return
	}

	w.mu.Lock()
	sc := w.scanner
	w.mu.Unlock()

	if event.Has(fsnotify.Create) && isDir(event.Name) {
		if sc.ExcludesDir(w.root, event.Name) {
			return
		}
		if err := w.addTree(fsw, sc, event.Name); err != nil {
			w.logger.Warn().Err(err).Str("dir", event.Name).Msg("failed to watch new directory")
		}
		// Files may have landed in the directory before it was watched
		w.schedule()
		return
	}

	if !sc.Matches(w.root, event.Name) {
		return
	}

	w.logger.Debug().
		Str("event", "watcher.file_changed").
		Str("op", event.Op.String()).
		Str("file", event.Name).
		Msg("watched file changed")

	switch {
	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		w.cancelPending()
		_ = w.ScanWorkspace(ctx, false)
	case event.Has(fsnotify.Write) || event.Has(fsnotify.Create):
		w.schedule()
	}
}

// schedule restarts the debounce timer
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		select {
		case w.fire <- struct{}{}:
		default:
		}
	})
}

// cancelPending drops a scheduled rescan
func (w *Watcher) cancelPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	select {
	case <-w.fire:
	default:
	}
}

// reloadConfig reads the settings file again and applies it
func (w *Watcher) reloadConfig(ctx context.Context) {
	cfg, err := config.Load(w.root)
	if err == nil {
		err = config.Validate(cfg)
	}
	if err != nil {
		w.logger.Error().Err(err).Str("event", "config.reload_failed").Msg("keeping previous configuration")
		return
	}
	if err := w.UpdateConfig(ctx, cfg); err != nil {
		w.logger.Error().Err(err).Str("event", "config.reload_failed").Msg("keeping previous configuration")
	}
}

// rewatch adds directories the current excludes no longer prune.
// Already watched directories are left as they are.
func (w *Watcher) rewatch() {
	w.mu.Lock()
	fsw, sc := w.fsw, w.scanner
	w.mu.Unlock()
	if fsw == nil {
		return
	}
	if err := w.addTree(fsw, sc, w.root); err != nil {
		w.logger.Warn().Err(err).Str("root", w.root).Msg("failed to refresh watched directories")
		return
	}
	w.logger.Debug().Str("event", "watcher.rewatched").Int("dirs", len(fsw.WatchList())).Msg("watched directories refreshed")
}

// UpdateConfig replaces the configuration. Enabling triggers a scan and
// disabling cancels pending work. A change to the watched files, excludes or
// patterns refreshes the watched directories and rescans.
func (w *Watcher) UpdateConfig(ctx context.Context, cfg *config.Config) error {
	w.mu.Lock()
	prev := w.cfg
	w.mu.Unlock()

	if err := w.apply(cfg); err != nil {
		return err
	}

	w.logger.Info().
		Str("event", "config.reloaded").
		Bool("enabled", cfg.Enabled).
		Int("patterns", len(cfg.Patterns)).
		Msg("configuration reloaded")

	if !cfg.Enabled {
		w.cancelPending()
		w.scanMu.Lock()
		w.publishStatus()
		w.scanMu.Unlock()
		return nil
	}

	globsChanged := !slices.Equal(prev.FilesToWatch, cfg.FilesToWatch) ||
		!slices.Equal(prev.ExcludePatterns, cfg.ExcludePatterns)
	if globsChanged {
		w.rewatch()
	}
	if !prev.Enabled || globsChanged ||
		!slices.Equal(prev.Patterns, cfg.Patterns) || prev.SyntaxAware != cfg.SyntaxAware {
		return w.ScanWorkspace(ctx, false)
	}

	w.scanMu.Lock()
	w.publishStatus()
	w.scanMu.Unlock()
	return nil
}

// ScanWorkspace finds every watched file, replaces the discovered set and,
// unless skipUpdate is set, appends new variables when automatic updates are on.
// It does nothing while the watcher is disabled. Failures are shown through the
// Notifier before they are returned; see IsReported.
func (w *Watcher) ScanWorkspace(ctx context.Context, skipUpdate bool) error {
	w.scanMu.Lock()
	defer w.scanMu.Unlock()

	w.mu.Lock()
	cfg, ext, sc, finder := w.cfg, w.extractor, w.scanner, w.finder
	w.mu.Unlock()

	if !cfg.Enabled {
		return nil
	}

	result, err := w.scan(ctx, ext, sc, finder)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		w.notifier.Error(fmt.Sprintf("Error scanning workspace - %v", err))
		return reportedError{err}
	}

	w.mu.Lock()
	w.discovered = result.Vars
	w.last = result
	w.mu.Unlock()

	w.logger.Info().
		Str("event", "scan.completed").
		Int("files", result.Files).
		Int("variables", result.Vars.Len()).
		Int("dynamic", len(result.Dynamic)).
		Msg("workspace scanned")

	if !skipUpdate && cfg.AutoCreateFiles && result.Vars.Len() > 0 {
		res, err := w.update(cfg, result)
		if err != nil {
			w.notifier.Error(fmt.Sprintf("Error scanning workspace - %v", err))
			return reportedError{err}
		}
		if res.EnvAdded > 0 {
			w.notifier.Info(fmt.Sprintf("Added %d new variable(s) to %s", res.EnvAdded, cfg.EnvFile))
		}
	}

	w.publishStatus()
	return nil
}

func (w *Watcher) scan(ctx context.Context, ext *extract.Extractor, sc *scanner.Scanner, finder extract.Finder) (*extract.Result, error) {
	files, err := sc.Scan(w.root)
	if err != nil {
		return nil, err
	}
	return ext.Aggregate(ctx, scanner.Paths(files), w.root, extract.Options{
		Locations: true,
		Finder:    finder,
		Logger:    &w.logger,
	})
}

// UpdateEnvFiles appends the discovered variables to both env files
func (w *Watcher) UpdateEnvFiles(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	w.scanMu.Lock()
	defer w.scanMu.Unlock()

	w.mu.Lock()
	cfg, last := w.cfg, w.last
	count := w.discovered.Len()
	w.mu.Unlock()

	if count == 0 || last == nil {
		w.notifier.Info("No environment variables discovered. Run a scan first.")
		return nil
	}

	res, err := w.update(cfg, last)
	if err != nil {
		w.notifier.Error(fmt.Sprintf("Error updating .env files - %v", err))
		return reportedError{err}
	}

	w.notifier.Info(fmt.Sprintf("Updated .env files\n- Added %d new variable(s) to %s\n- Updated %s with %d variable(s)",
		res.EnvAdded, cfg.EnvFile, cfg.ExampleFile, res.ExampleTotal))
	return nil
}

func (w *Watcher) update(cfg *config.Config, result *extract.Result) (envfile.UpdateResult, error) {
	var locations extract.Locations
	if cfg.IncludeFilePaths {
		locations = result.Locations
	}
	res, err := envfile.UpdateBoth(w.root, cfg.EnvFile, cfg.ExampleFile, result.Vars, cfg.ExamplePlaceholder, locations)
	if err != nil {
		return res, err
	}
	w.logger.Debug().
		Str("event", "envfile.updated").
		Int("env_added", res.EnvAdded).
		Int("example_added", res.ExampleAdded).
		Msg("env files updated")
	return res, nil
}

// DiscoveredVariables returns a copy of the names found by the last scan
func (w *Watcher) DiscoveredVariables() extract.VarSet {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.discovered.Clone()
}

// LastResult returns the full result of the last scan, or nil before the first one
func (w *Watcher) LastResult() *extract.Result {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last
}

// Status returns the indicator for the current state
func (w *Watcher) Status() output.Indicator {
	w.mu.Lock()
	defer w.mu.Unlock()
	return output.Indicator{Enabled: w.cfg.Enabled, Count: w.discovered.Len()}
}

// publishStatus must be called with scanMu held
func (w *Watcher) publishStatus() {
	if w.onStatus != nil {
		w.onStatus(w.Status())
	}
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
