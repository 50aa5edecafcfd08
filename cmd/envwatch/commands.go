package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jenian/envwatch/internal/analyzer"
	"github.com/jenian/envwatch/internal/config"
	"github.com/jenian/envwatch/internal/envfile"
	"github.com/jenian/envwatch/internal/extract"
	"github.com/jenian/envwatch/internal/log"
	"github.com/jenian/envwatch/internal/output"
	"github.com/jenian/envwatch/internal/ui"
	"github.com/jenian/envwatch/internal/watcher"
)

const disabledHint = "Env Watcher is disabled. Run \"envwatch enable\" to turn it on."

// loadConfig loads the workspace settings, optionally insisting on a completed setup
func (a *app) loadConfig(needSetup bool) (*config.Config, error) {
	cfg, err := config.Load(a.root)
	if err != nil {
		return nil, err
	}
	if needSetup {
		if err := config.RequireSetup(cfg); err != nil {
			a.notifier.Warn("Please run setup first.")
			return nil, fmt.Errorf("%w: run \"envwatch setup\"", err)
		}
	}
	return cfg, nil
}

func (a *app) newWatcher(cfg *config.Config, onStatus func(output.Indicator)) (*watcher.Watcher, error) {
	logger := log.WithComponent("watcher")
	return watcher.New(a.root, cfg, watcher.Options{
		Notifier: a.notifier,
		Logger:   &logger,
		OnStatus: onStatus,
	})
}

// drift compares the discovered variables with both env files
func (a *app) drift(cfg *config.Config, vars extract.VarSet) (analyzer.Report, error) {
	envKeys, err := envfile.ReadKeys(envfile.Resolve(a.root, cfg.EnvFile))
	if err != nil {
		return analyzer.Report{}, err
	}
	exampleKeys, err := envfile.ReadKeys(envfile.Resolve(a.root, cfg.ExampleFile))
	if err != nil {
		return analyzer.Report{}, err
	}
	return analyzer.Compare(vars, envKeys, exampleKeys), nil
}

func (a *app) setupCmd() *cobra.Command {
	var (
		yes     bool
		answers ui.Answers
	)

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Configure envwatch for this workspace",
		Long: "Walks through the settings for this workspace and enables the watcher. " +
			"With --yes the prompts are skipped and the flags (or current settings) are used.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig(false)
			if err != nil {
				return err
			}

			var setup *ui.SetupConfig
			if yes {
				in := ui.DefaultAnswers(cfg)
				flags := cmd.Flags()
				if flags.Changed("files") {
					in.FilesToWatch = answers.FilesToWatch
				}
				if flags.Changed("patterns") {
					in.Patterns = answers.Patterns
				}
				if flags.Changed("env-file") {
					in.EnvFile = answers.EnvFile
				}
				if flags.Changed("example-file") {
					in.ExampleFile = answers.ExampleFile
				}
				if flags.Changed("placeholder") {
					in.Placeholder = answers.Placeholder
				}
				if flags.Changed("auto-create") {
					in.AutoCreate = answers.AutoCreate
				}
				if flags.Changed("include-paths") {
					in.IncludeFilePaths = answers.IncludeFilePaths
				}
				setup, err = ui.Build(in)
			} else {
				setup, err = ui.RunWizard(cfg)
			}
			if errors.Is(err, ui.ErrCancelled) {
				a.notifier.Info("Setup cancelled.")
				return nil
			}
			if err != nil {
				return err
			}

			setup.Apply(cfg)
			if err := config.Validate(cfg); err != nil {
				return err
			}
			if err := config.Save(a.root, cfg); err != nil {
				return err
			}

			if yes {
				fmt.Fprintln(a.stderr, setup.RenderSummary())
			}
			a.notifier.Info("Setup completed! envwatch is now enabled.")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the prompts")
	cmd.Flags().StringVar(&answers.FilesToWatch, "files", "", "File patterns to watch (comma-separated)")
	cmd.Flags().StringVar(&answers.Patterns, "patterns", "", "Regex patterns matching variables (comma-separated)")
	cmd.Flags().StringVar(&answers.EnvFile, "env-file", "", "Name/path of the .env file")
	cmd.Flags().StringVar(&answers.ExampleFile, "example-file", "", "Name/path of the .env.example file")
	cmd.Flags().StringVar(&answers.Placeholder, "placeholder", "", "Placeholder value for .env.example")
	cmd.Flags().BoolVar(&answers.AutoCreate, "auto-create", false, "Update .env files automatically when variables are detected")
	cmd.Flags().BoolVar(&answers.IncludeFilePaths, "include-paths", false, "Add comments showing where each variable is used")
	return cmd
}

func (a *app) scanCmd() *cobra.Command {
	var (
		jsonOutput bool
		locations  bool
		noHeader   bool
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan the workspace for environment variable references",
		Long:  "Finds every environment variable referenced by the watched files and compares them with the env files. Nothing is written.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig(true)
			if err != nil {
				return err
			}
			if !cfg.Enabled {
				a.notifier.Info(disabledHint)
				return nil
			}

			if !noHeader && !jsonOutput {
				printHeader(a.stdout)
			}

			w, err := a.newWatcher(cfg, nil)
			if err != nil {
				return err
			}
			if !jsonOutput {
				a.notifier.Info("Scanning workspace...")
			}
			if err := w.ScanWorkspace(cmd.Context(), true); err != nil {
				return err
			}

			result := w.LastResult()
			drift, err := a.drift(cfg, result.Vars)
			if err != nil {
				return err
			}

			report := output.ScanReport{
				Files:   result.Files,
				Vars:    result.Vars,
				Dynamic: result.Dynamic,
				Drift:   &drift,
			}
			if locations || cfg.IncludeFilePaths {
				report.Locations = result.Locations
			}
			if err := output.FormatScan(a.stdout, report, jsonOutput); err != nil {
				return fmt.Errorf("failed to format output: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output results in JSON format")
	cmd.Flags().BoolVar(&locations, "locations", false, "Show the files referencing each variable")
	cmd.Flags().BoolVar(&noHeader, "no-header", false, "Skip printing the header")
	return cmd
}

func (a *app) updateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update",
		Short: "Append discovered variables to the env files",
		Long:  "Scans the workspace and appends every variable missing from the env file and the example file. Existing lines are never changed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig(true)
			if err != nil {
				return err
			}
			if !cfg.Enabled {
				a.notifier.Info(disabledHint)
				return nil
			}

			w, err := a.newWatcher(cfg, nil)
			if err != nil {
				return err
			}
			if err := w.ScanWorkspace(cmd.Context(), true); err != nil {
				return err
			}
			return w.UpdateEnvFiles(cmd.Context())
		},
	}
}

func (a *app) enableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enable",
		Short: "Enable the watcher for this workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.loadConfig(true); err != nil {
				return err
			}
			if err := config.SetEnabled(a.root, true); err != nil {
				return err
			}
			a.notifier.Info("Enabled")
			return nil
		},
	}
}

func (a *app) disableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disable",
		Short: "Disable the watcher for this workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.SetEnabled(a.root, false); err != nil {
				return err
			}
			a.notifier.Info("Disabled")
			return nil
		},
	}
}

func (a *app) watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Watch the workspace and keep the env files up to date",
		Long: "Rescans whenever a watched file changes and, with automatic updates on, appends new variables. " +
			"Editing " + config.FileName + " while watching reloads the settings. Stops on Ctrl+C.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig(true)
			if err != nil {
				return err
			}
			if !cfg.Enabled {
				a.notifier.Info(disabledHint)
				return nil
			}

			last := output.Indicator{Count: -1}
			w, err := a.newWatcher(cfg, func(ind output.Indicator) {
				if ind != last {
					last = ind
					fmt.Fprintln(a.stderr, ind.Text())
				}
			})
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if err := w.Start(ctx); err != nil {
				return err
			}
			defer w.Stop()

			a.notifier.Info(fmt.Sprintf("Watching %s for changes (Ctrl+C to stop)", a.root))
			<-ctx.Done()
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		},
	}
}

func (a *app) statusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the watcher state and how the env files have drifted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig(false)
			if err != nil {
				return err
			}

			ind := output.Indicator{Enabled: cfg.Enabled}
			drift := analyzer.Compare(extract.NewVarSet(), nil, nil)
			if cfg.SetupCompleted && cfg.Enabled {
				w, err := a.newWatcher(cfg, nil)
				if err != nil {
					return err
				}
				if err := w.ScanWorkspace(cmd.Context(), true); err != nil {
					return err
				}
				ind = w.Status()
				if drift, err = a.drift(cfg, w.DiscoveredVariables()); err != nil {
					return err
				}
			}

			return output.FormatStatus(a.stdout, ind, cfg.SetupCompleted, drift, cfg.EnvFile, cfg.ExampleFile, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output status in JSON format")
	return cmd
}
