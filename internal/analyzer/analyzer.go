package analyzer

import (
	"sort"

	"github.com/jenian/envwatch/internal/extract"
)

// Compare checks the discovered variables against the keys of the env and example files
func Compare(discovered extract.VarSet, envKeys, exampleKeys map[string]string) Report {
	report := Report{
		Discovered:         discovered.Len(),
		MissingFromEnv:     []string{},
		MissingFromExample: []string{},
		Unused:             []string{},
	}

	for _, name := range discovered.Sorted() {
		if _, ok := envKeys[name]; !ok {
			report.MissingFromEnv = append(report.MissingFromEnv, name)
		}
		if _, ok := exampleKeys[name]; !ok {
			report.MissingFromExample = append(report.MissingFromExample, name)
		}
	}

	// Only the env file is checked for unused keys; the example file mirrors it
	for key := range envKeys {
		if !discovered.Has(key) {
			report.Unused = append(report.Unused, key)
		}
	}
	sort.Strings(report.Unused)

	return report
}
