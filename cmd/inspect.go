package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fgrehm/dcvet/internal/config"
	"github.com/fgrehm/dcvet/internal/inspect"
)

var (
	inspectFormat     string
	inspectSubstitute bool
	inspectOffline    bool
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [PATH]",
	Short: "Show what a descriptor would set up",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		inspectFormat = rcFormat(cmd, inspectFormat, inspect.Formats...)
		if rc != nil && !cmd.Flags().Changed("offline") {
			inspectOffline = rc.Offline
		}
		if err := checkFormat(inspectFormat, inspect.Formats...); err != nil {
			return err
		}

		target, err := resolveTarget(args)
		if err != nil {
			return err
		}
		doc, err := config.Load(target.ConfigPath)
		if err != nil {
			return err
		}
		if inspectSubstitute {
			doc, err = config.Substitute(target.SubstitutionContext(environ()), doc)
			if err != nil {
				return fmt.Errorf("substituting variables: %w", err)
			}
		}

		opts := inspect.Options{Logger: logger}
		if r, err := newResolver(inspectOffline); err != nil {
			logger.Warn("listing features without metadata", "error", err)
		} else {
			opts.Resolver = r
		}

		summary, err := inspect.Build(cmd.Context(), doc, opts)
		if err != nil {
			return err
		}
		return inspect.Write(cmd.OutOrStdout(), newUI(cmd), summary, inspectFormat)
	},
}

func init() {
	inspectCmd.Flags().StringVar(&inspectFormat, "format", "text", "output format: "+strings.Join(inspect.Formats, ", "))
	inspectCmd.Flags().BoolVar(&inspectSubstitute, "substitute", false, "replace ${...} variables the way a runner would")
	inspectCmd.Flags().BoolVar(&inspectOffline, "offline", false, "do not download features; use cached ones only")
}

// environ returns the process environment as a map.
func environ() map[string]string {
	env := make(map[string]string)
	for _, e := range os.Environ() {
		if k, v, ok := strings.Cut(e, "="); ok {
			env[k] = v
		}
	}
	return env
}

