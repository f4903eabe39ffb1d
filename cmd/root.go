package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fgrehm/dcvet/internal/feature"
	"github.com/fgrehm/dcvet/internal/ui"
	"github.com/fgrehm/dcvet/internal/workspace"
)

var (
	debugFlag     bool
	configDirFlag string
	dirFlag       string
	logger        = newLogger(slog.LevelWarn)
	rc            *dcvetRC
)

// Version variables injected at build time.
var (
	Version = "dev"
	Commit  = "unknown"
	Built   = "unknown"
)

var rootCmd = &cobra.Command{
	Use:     "dcvet",
	Short:   "Check devcontainer.json descriptors before a runner does",
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelWarn
		if debugFlag {
			level = slog.LevelDebug
		}
		logger = newLogger(level)
		slog.SetDefault(logger)

		loaded, err := loadRC()
		if err != nil {
			return err
		}
		rc = loaded

		// Apply .dcvetrc defaults for flags not explicitly set by the user.
		if rc != nil && rc.Config != "" && !cmd.Flags().Changed("config") && !cmd.Flags().Changed("dir") {
			configDirFlag = rc.Config
			logger.Debug("loaded config dir from .dcvetrc", "dir", rc.Config)
		}
		return nil
	},
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configDirFlag, "config", "C", "", "devcontainer config directory (e.g. .devcontainer-custom)")
	rootCmd.PersistentFlags().StringVarP(&dirFlag, "dir", "d", "", "project directory to operate on (defaults to current directory)")
	rootCmd.MarkFlagsMutuallyExclusive("config", "dir")
	rootCmd.SetVersionTemplate(fmt.Sprintf("dcvet version %s\n", Version))
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(featuresCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(versionCmd)
}

// errFindings is returned when validation found problems. The findings
// are already printed, so Execute only sets the exit code.
var errFindings = errors.New("validation failed")

// Execute runs the root command with signal handling.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errFindings) {
			newUI(rootCmd).Error(err.Error())
		}
		stop()
		os.Exit(1)
	}
}

func newLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.TimeValue(t.UTC())
				}
			}
			return a
		},
	}))
}

// newUI creates a UI on the command's output streams.
func newUI(cmd *cobra.Command) *ui.UI {
	return ui.New(cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// rcFormat returns the .dcvetrc format when --format was not given and
// the command supports it. The key is shared by all commands, so a value
// another command understands is skipped here.
func rcFormat(cmd *cobra.Command, current string, allowed ...string) string {
	if rc == nil || rc.Format == "" || cmd.Flags().Changed("format") {
		return current
	}
	if !slices.Contains(allowed, rc.Format) {
		logger.Debug("ignoring .dcvetrc format for this command", "command", cmd.Name(), "format", rc.Format)
		return current
	}
	return rc.Format
}

// newResolver returns a feature resolver backed by the user cache. With
// offline set, remote features are only read from the cache.
func newResolver(offline bool) (*feature.CompositeResolver, error) {
	cache, err := feature.NewFeatureCache()
	if err != nil {
		return nil, fmt.Errorf("initializing feature cache: %w", err)
	}
	r := feature.NewCompositeResolver(cache, logger)
	r.Offline = offline
	return r, nil
}

// resolveTargets maps the command line to descriptors: --config names a
// config directory, positional args are descriptors or folders, --dir is a
// folder. With none of those, every descriptor of the current directory
// is used, falling back to walking up to the nearest project.
func resolveTargets(args []string) ([]*workspace.Target, error) {
	switch {
	case configDirFlag != "":
		if len(args) > 0 {
			return nil, fmt.Errorf("--config cannot be combined with paths")
		}
		t, err := workspace.ResolveConfigDir(configDirFlag)
		if err != nil {
			return nil, err
		}
		return []*workspace.Target{t}, nil
	case len(args) > 0:
		var all []*workspace.Target
		for _, a := range args {
			ts, err := workspace.Targets(a)
			if err != nil {
				return nil, err
			}
			all = append(all, ts...)
		}
		return all, nil
	case dirFlag != "":
		return workspace.Targets(dirFlag)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting working directory: %w", err)
	}
	ts, err := workspace.Targets(cwd)
	if errors.Is(err, workspace.ErrNoDevContainer) {
		t, err := workspace.Resolve(cwd)
		if err != nil {
			return nil, err
		}
		return []*workspace.Target{t}, nil
	}
	return ts, err
}

// resolveTarget is resolveTargets for commands that work on one descriptor.
func resolveTarget(args []string) (*workspace.Target, error) {
	ts, err := resolveTargets(args)
	if err != nil {
		return nil, err
	}
	if len(ts) > 1 {
		paths := make([]string, len(ts))
		for i, t := range ts {
			paths[i] = t.ConfigPath
		}
		return nil, fmt.Errorf("found %d descriptors, pass one of:\n  %s", len(ts), strings.Join(paths, "\n  "))
	}
	return ts[0], nil
}

// versionString returns a formatted version string for display.
// For dev builds, includes commit and build timestamp.
func versionString() string {
	v := "dcvet " + Version
	if strings.Contains(Version, "-dev") && Commit != "unknown" {
		v += " (" + Commit
		if Built != "unknown" {
			v += ", " + Built
		}
		v += ")"
	}
	return v
}
