package main

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/vango-dev/effects/pkg/scenario"
)

func validateCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [scenario.yaml]...",
		Short: "Check the config file and scenario files",
		Long: `Validate the configuration and any scenario files given as arguments
without running them.

Examples:
  effectctl validate
  effectctl validate --config=effects.toml scenarios/*.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd.OutOrStdout(), flags, args)
		},
	}
	return cmd
}

func runValidate(out io.Writer, flags *globalFlags, paths []string) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	if cfg.Path() != "" {
		success(out, "config %s", cfg.Path())
	} else {
		success(out, "config: defaults")
	}
	info(out, "policy=%s maxEffectRunsPerCommit=%d", cfg.Runtime.CallbackPolicy, cfg.Runtime.MaxEffectRunsPerCommit)

	var firstErr error
	for _, path := range paths {
		s, err := scenario.Load(path)
		if err != nil {
			errorMsg(out, "%s", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		success(out, "%s: %s (%d steps)", path, s.Name, len(s.Steps))
		if s.Description != "" {
			info(out, "%s", s.Description)
		}
	}
	return firstErr
}
