package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/goleak"

	"github.com/jenian/envwatch/internal/config"
	"github.com/jenian/envwatch/internal/output"
)

type recorder struct {
	mu     sync.Mutex
	infos  []string
	errors []string
	ch     chan string
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan string, 32)}
}

func (r *recorder) Info(msg string) {
	r.mu.Lock()
	r.infos = append(r.infos, msg)
	r.mu.Unlock()
	select {
	case r.ch <- msg:
	default:
	}
}

func (r *recorder) Error(msg string) {
	r.mu.Lock()
	r.errors = append(r.errors, msg)
	r.mu.Unlock()
}

func (r *recorder) Infos() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.infos...)
}

func (r *recorder) Errors() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.errors...)
}

func (r *recorder) waitFor(t *testing.T, want string) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case msg := <-r.ch:
			if msg == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q, got %v", want, r.Infos())
		}
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func enabledConfig() *config.Config {
	cfg := config.Default()
	cfg.Enabled = true
	cfg.SetupCompleted = true
	return cfg
}

func newWatcher(t *testing.T, root string, cfg *config.Config, rec *recorder) *Watcher {
	t.Helper()
	nop := zerolog.Nop()
	w, err := New(root, cfg, Options{Notifier: rec, Logger: &nop, Debounce: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return w
}

// statusLog collects OnStatus calls
type statusLog struct {
	mu  sync.Mutex
	got []output.Indicator
}

func (s *statusLog) record(ind output.Indicator) {
	s.mu.Lock()
	s.got = append(s.got, ind)
	s.mu.Unlock()
}

func (s *statusLog) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.got)
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestNew_InvalidPattern(t *testing.T) {
	cfg := enabledConfig()
	cfg.Patterns = []string{`process\.env\.(\w+`}
	if _, err := New(t.TempDir(), cfg, Options{}); err == nil {
		t.Fatal("Expected error for invalid pattern")
	}
}

func TestScanWorkspace_Disabled(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "app.js"), "process.env.API_KEY")

	cfg := enabledConfig()
	cfg.Enabled = false
	w := newWatcher(t, root, cfg, newRecorder())

	if err := w.ScanWorkspace(context.Background(), false); err != nil {
		t.Fatalf("ScanWorkspace failed: %v", err)
	}
	if n := w.DiscoveredVariables().Len(); n != 0 {
		t.Errorf("Expected nothing discovered while disabled, got %d", n)
	}
	if got := w.Status(); got != (output.Indicator{Enabled: false, Count: 0}) {
		t.Errorf("Unexpected status: %+v", got)
	}
}

func TestScanWorkspace_AutoCreate(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "src", "app.js"), "const a = process.env.API_KEY;\nconst b = process.env.DB_URL;\n")
	writeFile(t, filepath.Join(root, "node_modules", "lib", "index.js"), "process.env.IGNORED")

	cfg := enabledConfig()
	cfg.AutoCreateFiles = true
	cfg.ExamplePlaceholder = "changeme"
	rec := newRecorder()
	var statuses []output.Indicator
	nop := zerolog.Nop()
	w, err := New(root, cfg, Options{
		Notifier: rec,
		Logger:   &nop,
		OnStatus: func(ind output.Indicator) { statuses = append(statuses, ind) },
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := w.ScanWorkspace(context.Background(), false); err != nil {
		t.Fatalf("ScanWorkspace failed: %v", err)
	}

	if got := readFile(t, filepath.Join(root, ".env")); got != "API_KEY=\nDB_URL=\n" {
		t.Errorf("Unexpected .env:\n%s", got)
	}
	if got := readFile(t, filepath.Join(root, ".env.example")); got != "API_KEY=changeme\nDB_URL=changeme\n" {
		t.Errorf("Unexpected .env.example:\n%s", got)
	}
	if infos := rec.Infos(); len(infos) != 1 || infos[0] != "Added 2 new variable(s) to .env" {
		t.Errorf("Unexpected notifications: %v", infos)
	}
	if len(statuses) != 1 || statuses[0] != (output.Indicator{Enabled: true, Count: 2}) {
		t.Errorf("Unexpected statuses: %+v", statuses)
	}

	// A second pass adds nothing and stays quiet
	if err := w.ScanWorkspace(context.Background(), false); err != nil {
		t.Fatal(err)
	}
	if infos := rec.Infos(); len(infos) != 1 {
		t.Errorf("Expected no new notification, got %v", infos)
	}
}

func TestScanWorkspace_SkipUpdate(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "app.ts"), "process.env.API_KEY")

	cfg := enabledConfig()
	cfg.AutoCreateFiles = true
	w := newWatcher(t, root, cfg, newRecorder())

	if err := w.ScanWorkspace(context.Background(), true); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(root, ".env")); !os.IsNotExist(err) {
		t.Errorf("Expected no .env to be written, stat err = %v", err)
	}
	if !w.DiscoveredVariables().Has("API_KEY") {
		t.Error("Expected API_KEY to be discovered")
	}
}

func TestScanWorkspace_ManualModeDoesNotWrite(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "app.ts"), "process.env.API_KEY")

	w := newWatcher(t, root, enabledConfig(), newRecorder())
	if err := w.ScanWorkspace(context.Background(), false); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(root, ".env")); !os.IsNotExist(err) {
		t.Errorf("Expected no .env in manual mode, stat err = %v", err)
	}
}

func TestDiscoveredVariables_ReturnsCopy(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "app.ts"), "process.env.API_KEY")

	w := newWatcher(t, root, enabledConfig(), newRecorder())
	if err := w.ScanWorkspace(context.Background(), true); err != nil {
		t.Fatal(err)
	}

	vars := w.DiscoveredVariables()
	vars.Add("INJECTED")
	if w.DiscoveredVariables().Has("INJECTED") {
		t.Error("Mutating the returned set changed watcher state")
	}
}

func TestUpdateEnvFiles_NothingDiscovered(t *testing.T) {
	rec := newRecorder()
	w := newWatcher(t, t.TempDir(), enabledConfig(), rec)

	if err := w.UpdateEnvFiles(context.Background()); err != nil {
		t.Fatal(err)
	}
	infos := rec.Infos()
	if len(infos) != 1 || infos[0] != "No environment variables discovered. Run a scan first." {
		t.Errorf("Unexpected notifications: %v", infos)
	}
}

func TestUpdateEnvFiles_WithLocations(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "b.js"), "process.env.API_KEY")
	writeFile(t, filepath.Join(root, "a.js"), "process.env.API_KEY")
	writeFile(t, filepath.Join(root, ".env.example"), "API_KEY=\nOTHER=1\n")

	cfg := enabledConfig()
	cfg.IncludeFilePaths = true
	rec := newRecorder()
	w := newWatcher(t, root, cfg, rec)

	if err := w.ScanWorkspace(context.Background(), true); err != nil {
		t.Fatal(err)
	}
	if err := w.UpdateEnvFiles(context.Background()); err != nil {
		t.Fatal(err)
	}

	if got := readFile(t, filepath.Join(root, ".env")); got != "# Used in: a.js, b.js\nAPI_KEY=\n" {
		t.Errorf("Unexpected .env:\n%s", got)
	}
	want := "Updated .env files\n- Added 1 new variable(s) to .env\n- Updated .env.example with 2 variable(s)"
	if infos := rec.Infos(); len(infos) != 1 || infos[0] != want {
		t.Errorf("Unexpected notifications: %q", infos)
	}
}

func TestUpdateConfig_EnableTriggersScan(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "app.js"), "process.env.API_KEY")

	cfg := enabledConfig()
	cfg.Enabled = false
	w := newWatcher(t, root, cfg, newRecorder())

	next := enabledConfig()
	next.Patterns = []string{`process\.env\.(\w+)`, `ENV\("(\w+)"\)`}
	if err := w.UpdateConfig(context.Background(), next); err != nil {
		t.Fatalf("UpdateConfig failed: %v", err)
	}
	if got := w.Status(); got != (output.Indicator{Enabled: true, Count: 1}) {
		t.Errorf("Unexpected status after enabling: %+v", got)
	}

	bad := enabledConfig()
	bad.Patterns = []string{"("}
	if err := w.UpdateConfig(context.Background(), bad); err == nil {
		t.Error("Expected error for invalid pattern")
	}
	if !w.Status().Enabled {
		t.Error("Previous configuration should be kept after a failed update")
	}
}

func TestStart_Disabled(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	cfg := enabledConfig()
	cfg.Enabled = false
	w := newWatcher(t, t.TempDir(), cfg, newRecorder())
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	w.Stop()
}

func TestStart_RescansOnChange(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "app.js"), "process.env.API_KEY")

	cfg := enabledConfig()
	cfg.AutoCreateFiles = true
	rec := newRecorder()
	w := newWatcher(t, root, cfg, rec)

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()
	rec.waitFor(t, "Added 1 new variable(s) to .env")

	// New file in an existing directory
	writeFile(t, filepath.Join(root, "server.js"), "process.env.PORT")
	rec.waitFor(t, "Added 1 new variable(s) to .env")

	// New file in a directory created after Start
	writeFile(t, filepath.Join(root, "lib", "db.js"), "process.env.DB_URL")
	rec.waitFor(t, "Added 1 new variable(s) to .env")

	env := readFile(t, filepath.Join(root, ".env"))
	for _, key := range []string{"API_KEY=", "PORT=", "DB_URL="} {
		if !strings.Contains(env, key) {
			t.Errorf("Expected %s in .env:\n%s", key, env)
		}
	}

	// Deleting a file rescans immediately
	if err := os.Remove(filepath.Join(root, "server.js")); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for w.DiscoveredVariables().Has("PORT") {
		if time.Now().After(deadline) {
			t.Fatal("PORT still discovered after its file was removed")
		}
		time.Sleep(10 * time.Millisecond)
	}

	w.Stop()
	w.Stop()
}

func TestStart_ReloadsConfig(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "app.js"), "process.env.API_KEY")

	cfg := enabledConfig()
	if err := config.Save(root, cfg); err != nil {
		t.Fatal(err)
	}
	w := newWatcher(t, root, cfg, newRecorder())
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := config.SetEnabled(root, false); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for w.Status().Enabled {
		if time.Now().After(deadline) {
			t.Fatal("watcher did not pick up the disabled setting")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestUpdateEnvFiles_ErrorIsReportedOnce(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "app.js"), "process.env.API_KEY")
	if err := os.Mkdir(filepath.Join(root, ".env"), 0755); err != nil {
		t.Fatal(err)
	}

	rec := newRecorder()
	w := newWatcher(t, root, enabledConfig(), rec)
	if err := w.ScanWorkspace(context.Background(), true); err != nil {
		t.Fatal(err)
	}

	err := w.UpdateEnvFiles(context.Background())
	if err == nil {
		t.Fatal("Expected an error when .env is a directory")
	}
	if !IsReported(err) {
		t.Errorf("Expected the error to be marked as reported: %v", err)
	}
	errs := rec.Errors()
	if len(errs) != 1 || !strings.HasPrefix(errs[0], "Error updating .env files - ") {
		t.Errorf("Unexpected error notifications: %q", errs)
	}

	if IsReported(context.Canceled) {
		t.Error("Plain errors must not count as reported")
	}
}

func TestUpdateConfig_ExcludeChangeRescans(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "gen", "old.js"), "process.env.OLD")

	cfg := enabledConfig()
	cfg.ExcludePatterns = append(cfg.ExcludePatterns, "gen/**")
	w := newWatcher(t, root, cfg, newRecorder())
	if err := w.ScanWorkspace(context.Background(), true); err != nil {
		t.Fatal(err)
	}
	if w.DiscoveredVariables().Has("OLD") {
		t.Fatal("gen/ should be excluded")
	}

	// Still enabled, only the excludes change
	if err := w.UpdateConfig(context.Background(), enabledConfig()); err != nil {
		t.Fatal(err)
	}
	if !w.DiscoveredVariables().Has("OLD") {
		t.Error("Expected a rescan after the excludes changed")
	}
}

func TestStart_ReloadWatchesPreviouslyExcludedDir(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "app.js"), "process.env.API_KEY")
	writeFile(t, filepath.Join(root, "gen", "old.js"), "process.env.OLD")

	cfg := enabledConfig()
	cfg.ExcludePatterns = append(cfg.ExcludePatterns, "gen/**")
	if err := config.Save(root, cfg); err != nil {
		t.Fatal(err)
	}
	w := newWatcher(t, root, cfg, newRecorder())
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := config.Save(root, enabledConfig()); err != nil {
		t.Fatal(err)
	}
	eventually(t, "OLD after the reload", func() bool { return w.DiscoveredVariables().Has("OLD") })

	writeFile(t, filepath.Join(root, "gen", "new.js"), "process.env.NEW")
	eventually(t, "NEW from the re-included directory", func() bool { return w.DiscoveredVariables().Has("NEW") })
}

func TestStart_DebouncesBurst(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	root := t.TempDir()
	file := filepath.Join(root, "app.js")
	writeFile(t, file, "process.env.API_KEY")

	const debounce = 200 * time.Millisecond
	statuses := &statusLog{}
	nop := zerolog.Nop()
	w, err := New(root, enabledConfig(), Options{Logger: &nop, Debounce: debounce, OnStatus: statuses.record})
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()
	if n := statuses.Len(); n != 1 {
		t.Fatalf("Expected one status from the initial scan, got %d", n)
	}

	for i := 0; i < 5; i++ {
		writeFile(t, file, "process.env.API_KEY\nprocess.env.V"+strings.Repeat("X", i+1))
		time.Sleep(debounce / 10)
	}

	eventually(t, "the rescan after the burst", func() bool { return statuses.Len() >= 2 })
	time.Sleep(3 * debounce)
	if n := statuses.Len(); n != 2 {
		t.Errorf("Expected a single rescan for the burst, got %d statuses", n)
	}
	if !w.DiscoveredVariables().Has("VXXXXX") {
		t.Errorf("Expected the last write to be scanned, got %v", w.DiscoveredVariables().Sorted())
	}
}

func TestStart_IgnoresExcludedAndUnwatchedFiles(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "app.js"), "process.env.API_KEY")
	writeFile(t, filepath.Join(root, "node_modules", "lib", "index.js"), "process.env.IGNORED")

	const debounce = 20 * time.Millisecond
	statuses := &statusLog{}
	nop := zerolog.Nop()
	w, err := New(root, enabledConfig(), Options{Logger: &nop, Debounce: debounce, OnStatus: statuses.record})
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	writeFile(t, filepath.Join(root, "node_modules", "lib", "index.js"), "process.env.IGNORED_TOO")
	writeFile(t, filepath.Join(root, "dist", "bundle.js"), "process.env.BUNDLED")
	writeFile(t, filepath.Join(root, "notes.txt"), "process.env.NOTES")
	if err := os.Remove(filepath.Join(root, "notes.txt")); err != nil {
		t.Fatal(err)
	}

	time.Sleep(20 * debounce)
	if n := statuses.Len(); n != 1 {
		t.Errorf("Expected no rescan for excluded or unwatched files, got %d statuses", n)
	}
	if got := w.DiscoveredVariables().Sorted(); len(got) != 1 || got[0] != "API_KEY" {
		t.Errorf("Unexpected variables: %v", got)
	}
}

func TestOnStatus_CallsDoNotOverlap(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "app.js"), "process.env.API_KEY")

	var active, overlaps int32
	nop := zerolog.Nop()
	w, err := New(root, enabledConfig(), Options{
		Logger: &nop,
		OnStatus: func(output.Indicator) {
			if atomic.AddInt32(&active, 1) > 1 {
				atomic.AddInt32(&overlaps, 1)
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&active, -1)
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				_ = w.ScanWorkspace(ctx, true)
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				_ = w.UpdateConfig(ctx, enabledConfig())
			}
		}()
	}
	wg.Wait()

	if n := atomic.LoadInt32(&overlaps); n != 0 {
		t.Errorf("OnStatus ran concurrently %d time(s)", n)
	}
}
