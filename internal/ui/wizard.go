package ui

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/jenian/envwatch/internal/config"
)

// ErrCancelled is returned when the user leaves the wizard before saving
var ErrCancelled = errors.New("setup cancelled")

// IsInteractive reports whether stdin is a terminal
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// Answers holds the raw wizard input, lists still comma-separated
type Answers struct {
	FilesToWatch     string
	Patterns         string
	EnvFile          string
	ExampleFile      string
	Placeholder      string
	AutoCreate       bool
	IncludeFilePaths bool
}

// SetupConfig is the validated result of the wizard
type SetupConfig struct {
	FilesToWatch       []string
	Patterns           []string
	EnvFile            string
	ExampleFile        string
	ExamplePlaceholder string
	AutoCreateFiles    bool
	IncludeFilePaths   bool
}

// DefaultAnswers pre-fills the wizard from the current settings
func DefaultAnswers(cfg *config.Config) Answers {
	return Answers{
		FilesToWatch:     strings.Join(cfg.FilesToWatch, ", "),
		Patterns:         strings.Join(cfg.Patterns, ", "),
		EnvFile:          cfg.EnvFile,
		ExampleFile:      cfg.ExampleFile,
		Placeholder:      cfg.ExamplePlaceholder,
		AutoCreate:       cfg.AutoCreateFiles,
		IncludeFilePaths: cfg.IncludeFilePaths,
	}
}

// validateFilePatterns rejects blank file-pattern input
var validateFilePatterns = config.ValidateNotEmpty("please enter at least one file pattern")

var validateFileName = config.ValidateNotEmpty("please enter a file name")

// Build validates raw answers the same way the interactive prompts do
func Build(a Answers) (*SetupConfig, error) {
	if err := validateFilePatterns(a.FilesToWatch); err != nil {
		return nil, err
	}
	if err := config.ValidatePatterns(a.Patterns); err != nil {
		return nil, err
	}
	if err := validateFileName(a.EnvFile); err != nil {
		return nil, err
	}
	if err := validateFileName(a.ExampleFile); err != nil {
		return nil, err
	}

	return &SetupConfig{
		FilesToWatch:       config.SplitList(a.FilesToWatch),
		Patterns:           config.SplitList(a.Patterns),
		EnvFile:            strings.TrimSpace(a.EnvFile),
		ExampleFile:        strings.TrimSpace(a.ExampleFile),
		ExamplePlaceholder: a.Placeholder,
		AutoCreateFiles:    a.AutoCreate,
		IncludeFilePaths:   a.IncludeFilePaths,
	}, nil
}

// Apply copies the answers onto cfg and marks setup as completed and enabled
func (s *SetupConfig) Apply(cfg *config.Config) {
	cfg.FilesToWatch = s.FilesToWatch
	cfg.Patterns = s.Patterns
	cfg.EnvFile = s.EnvFile
	cfg.ExampleFile = s.ExampleFile
	cfg.ExamplePlaceholder = s.ExamplePlaceholder
	cfg.AutoCreateFiles = s.AutoCreateFiles
	cfg.IncludeFilePaths = s.IncludeFilePaths
	cfg.SetupCompleted = true
	cfg.Enabled = true
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

// Summary lists the chosen settings, one per line
func (s *SetupConfig) Summary() string {
	placeholder := s.ExamplePlaceholder
	if placeholder == "" {
		placeholder = "(empty)"
	}
	lines := []string{
		"Configuration Summary:",
		"- Files to watch: " + strings.Join(s.FilesToWatch, ", "),
		"- Patterns: " + strings.Join(s.Patterns, ", "),
		"- .env file: " + s.EnvFile,
		"- .env.example file: " + s.ExampleFile,
		"- Placeholder: " + placeholder,
		"- Auto-create files: " + yesNo(s.AutoCreateFiles),
		"- Include file paths: " + yesNo(s.IncludeFilePaths),
	}
	return strings.Join(lines, "\n")
}

// RenderSummary draws the summary in a box
func (s *SetupConfig) RenderSummary() string {
	return Box.Render(s.Summary())
}

// RunWizard walks through the setup prompts. Leaving any step returns ErrCancelled.
func RunWizard(current *config.Config) (*SetupConfig, error) {
	if !IsInteractive() {
		return nil, fmt.Errorf("setup requires an interactive terminal\n\nUsage: envwatch setup --yes [flags] to configure without prompts")
	}

	proceed := true
	err := huh.NewConfirm().
		Title("Welcome to Env Watcher Setup!").
		Description("This wizard will help you configure envwatch for this workspace.").
		Affirmative("Continue").
		Negative("Cancel").
		Value(&proceed).
		Run()
	if err := cancelled(err); err != nil {
		return nil, err
	}
	if !proceed {
		return nil, ErrCancelled
	}

	a := DefaultAnswers(current)
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Enter file patterns to watch (comma-separated)").
				Placeholder("**/*.ts, **/*.js, **/*.tsx, **/*.jsx").
				Value(&a.FilesToWatch).
				Validate(validateFilePatterns),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Enter regex patterns to match environment variables (comma-separated)").
				Placeholder(`process\.env\.(\w+), import\.meta\.env\.(\w+)`).
				Value(&a.Patterns).
				Validate(config.ValidatePatterns),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Enter the name/path for your .env file").
				Placeholder(".env").
				Value(&a.EnvFile).
				Validate(validateFileName),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Enter the name/path for your .env.example file").
				Placeholder(".env.example").
				Value(&a.ExampleFile).
				Validate(validateFileName),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Enter a placeholder value for .env.example (leave empty for no value)").
				Placeholder("your-value-here").
				Value(&a.Placeholder),
		),
		huh.NewGroup(
			huh.NewSelect[bool]().
				Title("How should .env files be created/updated?").
				Options(
					huh.NewOption("Manual: only create/update files when explicitly requested", false),
					huh.NewOption("Automatic: create/update .env files when variables are detected", true),
				).
				Value(&a.AutoCreate),
		),
		huh.NewGroup(
			huh.NewSelect[bool]().
				Title("Include file path comments in .env files?").
				Options(
					huh.NewOption("No: just show variable names", false),
					huh.NewOption("Yes: add comments showing where each variable is used", true),
				).
				Value(&a.IncludeFilePaths),
		),
	)
	if err := cancelled(form.Run()); err != nil {
		return nil, err
	}

	setup, err := Build(a)
	if err != nil {
		return nil, err
	}

	save := false
	err = huh.NewConfirm().
		Title("Save this configuration?").
		Description(setup.Summary()).
		Affirmative("Save Configuration").
		Negative("Cancel").
		Value(&save).
		Run()
	if err := cancelled(err); err != nil {
		return nil, err
	}
	if !save {
		return nil, ErrCancelled
	}

	return setup, nil
}

// cancelled maps an aborted prompt to ErrCancelled
func cancelled(err error) error {
	if errors.Is(err, huh.ErrUserAborted) {
		return ErrCancelled
	}
	return err
}
