package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jenian/envwatch/internal/config"
	"github.com/jenian/envwatch/internal/log"
	"github.com/jenian/envwatch/internal/output"
	"github.com/jenian/envwatch/internal/ui"
	"github.com/jenian/envwatch/internal/watcher"
)

// Version is set at build time via -ldflags
var Version = "dev"

// app carries the global flags and output streams shared by every command
type app struct {
	stdout   io.Writer
	stderr   io.Writer
	notifier *output.Notifier

	path  string
	root  string // absolute form of path, set before each command runs
	debug bool
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr, notifier: output.NewNotifier(stderr)}

	rootCmd := &cobra.Command{
		Use:   "envwatch",
		Short: "Keep .env and .env.example in step with your code",
		Long: "A CLI tool that scans source files for environment variable references and " +
			"appends newly referenced variables to .env and .env.example.",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.prepare,
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	rootCmd.PersistentFlags().StringVarP(&a.path, "path", "p", ".", "Workspace root")
	rootCmd.PersistentFlags().BoolVar(&a.debug, "debug", false, "Enable debug logging")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Long:  "Print the version number of envwatch",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(a.stdout, Version)
		},
	}

	initConfigCmd := &cobra.Command{
		Use:   "init-config",
		Short: "Create a " + config.FileName + " file with default settings",
		Long: "Creates a " + config.FileName + " file with default settings in the workspace root. " +
			"Run \"envwatch setup\" afterwards to enable the watcher.",
		RunE: a.runInitConfig,
	}

	rootCmd.AddCommand(
		a.setupCmd(),
		a.scanCmd(),
		a.updateCmd(),
		a.enableCmd(),
		a.disableCmd(),
		a.watchCmd(),
		a.statusCmd(),
		initConfigCmd,
		versionCmd,
	)
	return rootCmd
}

// prepare configures logging and resolves the workspace root
func (a *app) prepare(cmd *cobra.Command, args []string) error {
	log.Configure(a.stderr, a.debug)

	absPath, err := filepath.Abs(a.path)
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	info, err := os.Stat(absPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("path does not exist: %s", absPath)
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", absPath)
	}
	a.root = absPath
	return nil
}

func (a *app) runInitConfig(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(config.Path(a.root)); err == nil {
		return fmt.Errorf("%s already exists in %s", config.FileName, a.root)
	}

	if err := config.Save(a.root, config.Default()); err != nil {
		return fmt.Errorf("failed to create %s: %w", config.FileName, err)
	}

	fmt.Fprintf(a.stdout, "Created %s in %s\n", config.FileName, a.root)
	return nil
}

func printHeader(w io.Writer) {
	fmt.Fprintln(w, ui.Bold.Render("envwatch"))
	fmt.Fprintf(w, "Version: %s\n\n", Version)
}

// reportError prints err unless the notifier has already shown it
func reportError(w io.Writer, err error) {
	if watcher.IsReported(err) {
		return
	}
	fmt.Fprint(w, output.FormatError(err))
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx)
	stop()
	if err != nil {
		reportError(os.Stderr, err)
		os.Exit(1)
	}
}
