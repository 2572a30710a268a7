package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	verrors "github.com/vango-dev/effects/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// globalFlags are shared by every command.
type globalFlags struct {
	configPath string
	logLevel   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		verrors.Fprint(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "effectctl",
		Short: "Run and inspect post-commit effect scenarios",
		Long: `effectctl drives the effect runtime from scripted scenarios.

Scenarios are YAML files describing render passes, commits and
unmounts. effectctl plays them against a real runtime and prints
the resulting trace of effect runs, skips and cleanups.

  • Replay component lifecycles deterministically
  • Check failure policies and run budgets
  • Serve live devtools and Prometheus metrics`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Config file (default: effects.json or effects.toml found from the working directory)")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level override: debug, info, warn, error")

	// Add commands
	rootCmd.AddCommand(
		runCmd(flags),
		serveCmd(flags),
		validateCmd(flags),
		initCmd(),
		versionCmd(),
	)

	return rootCmd
}

// success prints a success message.
func success(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "  %s\n", fmt.Sprintf(format, args...))
}

// errorMsg prints an error message.
func errorMsg(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "\033[31m✗\033[0m %s\n", fmt.Sprintf(format, args...))
}
