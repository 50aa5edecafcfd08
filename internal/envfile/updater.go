package envfile

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"

	"github.com/jenian/envwatch/internal/extract"
)

// UpdateResult reports what UpdateBoth changed
type UpdateResult struct {
	EnvAdded     int
	ExampleAdded int
	EnvTotal     int // keys in the env file after the update
	ExampleTotal int // keys in the example file after the update
}

// UpdateFile appends a KEY=placeholder line for every name not yet present in the file.
// Existing lines are never modified. When locations are given, each new key is
// preceded by a comment listing the files that reference it. The file is only
// written when at least one key is added.
func UpdateFile(path string, vars extract.VarSet, placeholder string, locations extract.Locations) (added int, total int, err error) {
	content, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return 0, 0, fmt.Errorf("failed to read %s: %w", path, err)
	}

	present := make(map[string]bool)
	for _, line := range strings.Split(string(content), "\n") {
		if key, _, ok := parseLine(line); ok {
			present[key] = true
		}
	}

	var b strings.Builder
	for _, name := range vars.Sorted() {
		if present[name] {
			continue
		}
		if files := locations[name]; len(files) > 0 {
			fmt.Fprintf(&b, "# Used in: %s\n", strings.Join(files, ", "))
		}
		fmt.Fprintf(&b, "%s=%s\n", name, placeholder)
		present[name] = true
		added++
	}

	total = len(present)
	if added == 0 {
		return 0, total, nil
	}

	out := make([]byte, 0, len(content)+b.Len()+1)
	out = append(out, content...)
	if len(content) > 0 && content[len(content)-1] != '\n' {
		out = append(out, '\n')
	}
	out = append(out, b.String()...)

	if err := writeAtomic(path, out); err != nil {
		return 0, 0, err
	}
	return added, total, nil
}

// UpdateBoth updates the env file with empty values and the example file with the placeholder
func UpdateBoth(root, envFile, exampleFile string, vars extract.VarSet, placeholder string, locations extract.Locations) (UpdateResult, error) {
	var result UpdateResult
	var err error

	result.EnvAdded, result.EnvTotal, err = UpdateFile(Resolve(root, envFile), vars, "", locations)
	if err != nil {
		return result, err
	}

	result.ExampleAdded, result.ExampleTotal, err = UpdateFile(Resolve(root, exampleFile), vars, placeholder, locations)
	if err != nil {
		return result, err
	}

	return result, nil
}

// Resolve joins relative file names onto the workspace root
func Resolve(root, name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(root, name)
}

// writeAtomic replaces path with data, keeping the existing file mode
func writeAtomic(path string, data []byte) error {
	perm := fs.FileMode(0644)
	if info, err := os.Stat(path); err == nil {
		perm = info.Mode().Perm()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := renameio.WriteFile(path, data, perm); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
