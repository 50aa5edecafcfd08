package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/rodaine/table"

	"github.com/jenian/envwatch/internal/analyzer"
	"github.com/jenian/envwatch/internal/extract"
)

// Colors for status lines
var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

// ScanReport is everything the scan command prints
type ScanReport struct {
	Files     int
	Vars      extract.VarSet
	Locations extract.Locations   // nil when locations were not collected
	Dynamic   []extract.Reference // lookups with runtime-computed keys
	Drift     *analyzer.Report
}

// JSONScan represents the JSON output of the scan command
type JSONScan struct {
	Files              int                 `json:"files"`
	Variables          []string            `json:"variables"`
	Locations          map[string][]string `json:"locations,omitempty"`
	Dynamic            []JSONReference     `json:"dynamic"`
	MissingFromEnv     []string            `json:"missing_from_env"`
	MissingFromExample []string            `json:"missing_from_example"`
	Unused             []string            `json:"unused"`
}

// JSONReference is a dynamic lookup in JSON output
type JSONReference struct {
	Expr string `json:"expr"`
	File string `json:"file"`
}

// FormatScan writes the scan results in human-readable or JSON form
func FormatScan(w io.Writer, report ScanReport, jsonOutput bool) error {
	if jsonOutput {
		return formatScanJSON(w, report)
	}
	return formatScanHuman(w, report)
}

func formatScanJSON(w io.Writer, report ScanReport) error {
	out := JSONScan{
		Files:              report.Files,
		Variables:          report.Vars.Sorted(),
		Locations:          report.Locations,
		Dynamic:            []JSONReference{},
		MissingFromEnv:     []string{},
		MissingFromExample: []string{},
		Unused:             []string{},
	}
	for _, ref := range report.Dynamic {
		out.Dynamic = append(out.Dynamic, JSONReference(ref))
	}
	if report.Drift != nil {
		out.MissingFromEnv = report.Drift.MissingFromEnv
		out.MissingFromExample = report.Drift.MissingFromExample
		out.Unused = report.Drift.Unused
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

func formatScanHuman(w io.Writer, report ScanReport) error {
	if report.Vars.Len() == 0 {
		fmt.Fprintf(w, "No environment variables found (%d files scanned)\n", report.Files)
	} else {
		fmt.Fprintf(w, "%s\n\n", bold(fmt.Sprintf("Found %d environment variable(s) in %d files", report.Vars.Len(), report.Files)))

		headerFmt := color.New(color.FgCyan, color.Underline).SprintfFunc()
		var tbl table.Table
		if report.Locations != nil {
			tbl = table.New("Variable", "In .env", "In example", "Used in")
		} else {
			tbl = table.New("Variable", "In .env", "In example")
		}
		tbl.WithHeaderFormatter(headerFmt).WithWriter(w)

		missingEnv := toSet(report.Drift, func(r *analyzer.Report) []string { return r.MissingFromEnv })
		missingExample := toSet(report.Drift, func(r *analyzer.Report) []string { return r.MissingFromExample })

		for _, name := range report.Vars.Sorted() {
			row := []interface{}{name, presence(report.Drift, missingEnv[name]), presence(report.Drift, missingExample[name])}
			if report.Locations != nil {
				row = append(row, strings.Join(report.Locations[name], ", "))
			}
			tbl.AddRow(row...)
		}
		tbl.Print()
	}

	if len(report.Dynamic) > 0 {
		fmt.Fprintf(w, "\n%s\n", bold(yellow("Dynamic lookups (key computed at runtime):")))
		for _, ref := range report.Dynamic {
			fmt.Fprintf(w, "  %s %s\n", yellow(ref.Expr), gray("in "+ref.File))
		}
	}

	if report.Drift != nil && len(report.Drift.Unused) > 0 {
		fmt.Fprintf(w, "\n%s %s\n", gray("Not referenced in code:"), strings.Join(report.Drift.Unused, ", "))
	}

	return nil
}

func toSet(r *analyzer.Report, pick func(*analyzer.Report) []string) map[string]bool {
	set := make(map[string]bool)
	if r == nil {
		return set
	}
	for _, name := range pick(r) {
		set[name] = true
	}
	return set
}

func presence(drift *analyzer.Report, missing bool) string {
	switch {
	case drift == nil:
		return "-"
	case missing:
		return red("missing")
	default:
		return green("yes")
	}
}

// Indicator is the one-line workspace status: watcher state and variable count
type Indicator struct {
	Enabled bool
	Count   int
}

// Text renders the indicator line
func (i Indicator) Text() string {
	if i.Enabled {
		return fmt.Sprintf("%s Env: %d", green("●"), i.Count)
	}
	return fmt.Sprintf("%s Env: %d %s", gray("○"), i.Count, gray("(disabled)"))
}

// Tooltip describes the indicator state in words
func (i Indicator) Tooltip() string {
	if !i.Enabled {
		return "Env Watcher is disabled"
	}
	return fmt.Sprintf("%d environment variable(s) detected.", i.Count)
}

// JSONStatus represents the JSON output of the status command
type JSONStatus struct {
	Enabled            bool     `json:"enabled"`
	SetupCompleted     bool     `json:"setup_completed"`
	Variables          int      `json:"variables"`
	MissingFromEnv     []string `json:"missing_from_env"`
	MissingFromExample []string `json:"missing_from_example"`
	Unused             []string `json:"unused"`
}

// FormatStatus writes the indicator and the drift report
func FormatStatus(w io.Writer, ind Indicator, setupCompleted bool, drift analyzer.Report, envFile, exampleFile string, jsonOutput bool) error {
	if jsonOutput {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(JSONStatus{
			Enabled:            ind.Enabled,
			SetupCompleted:     setupCompleted,
			Variables:          ind.Count,
			MissingFromEnv:     drift.MissingFromEnv,
			MissingFromExample: drift.MissingFromExample,
			Unused:             drift.Unused,
		})
	}

	fmt.Fprintln(w, ind.Text())
	fmt.Fprintf(w, "%s\n", gray(ind.Tooltip()))
	if !setupCompleted {
		fmt.Fprintf(w, "%s\n", yellow("Setup required. Run \"envwatch setup\"."))
		return nil
	}
	if !ind.Enabled {
		return nil
	}

	if drift.InSync() {
		fmt.Fprintf(w, "%s\n", green(fmt.Sprintf("✓ %s and %s are up to date.", envFile, exampleFile)))
	} else {
		if len(drift.MissingFromEnv) > 0 {
			fmt.Fprintf(w, "%s %s\n", red(fmt.Sprintf("Missing from %s:", envFile)), strings.Join(drift.MissingFromEnv, ", "))
		}
		if len(drift.MissingFromExample) > 0 {
			fmt.Fprintf(w, "%s %s\n", red(fmt.Sprintf("Missing from %s:", exampleFile)), strings.Join(drift.MissingFromExample, ", "))
		}
	}
	if len(drift.Unused) > 0 {
		fmt.Fprintf(w, "%s %s\n", gray("Not referenced in code:"), strings.Join(drift.Unused, ", "))
	}
	return nil
}

// FormatError formats an error message
func FormatError(err error) string {
	return fmt.Sprintf("Error: %s\n", err)
}
