package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/fgrehm/dcvet/internal/config"
	"github.com/fgrehm/dcvet/internal/feature"
	"github.com/fgrehm/dcvet/internal/lint"
	"github.com/fgrehm/dcvet/internal/ui"
)

// validateConcurrency bounds how many descriptors are checked at once.
const validateConcurrency = 4

var (
	validateOffline bool
	validateStrict  bool
	validateDisable []string
	validateFormat  string
)

var validateCmd = &cobra.Command{
	Use:   "validate [PATH...]",
	Short: "Check descriptors and report problems",
	Long: `Check one or more devcontainer.json descriptors.

Each PATH is a descriptor file or a folder. Folders are searched for
.devcontainer/devcontainer.json, .devcontainer.json and
.devcontainer/<name>/devcontainer.json. Without a PATH the current
project is checked.

The exit status is 1 when any descriptor has errors, or warnings with
--strict.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		applyValidateRC(cmd)
		validateFormat = rcFormat(cmd, validateFormat, "text", "json")
		if err := checkFormat(validateFormat, "text", "json"); err != nil {
			return err
		}
		for _, id := range validateDisable {
			if !lint.KnownRule(id) {
				return fmt.Errorf("unknown rule %q (see 'dcvet validate --help')", id)
			}
		}

		targets, err := resolveTargets(args)
		if err != nil {
			return err
		}

		var resolver feature.Resolver
		if r, err := newResolver(validateOffline); err != nil {
			logger.Warn("feature metadata checks disabled", "error", err)
		} else {
			resolver = r
		}

		paths := make([]string, len(targets))
		for i, t := range targets {
			paths[i] = t.ConfigPath
		}
		reports, err := validateFiles(cmd, paths, lint.Options{
			Resolver: resolver,
			Disable:  validateDisable,
			Logger:   logger,
		})
		if err != nil {
			return err
		}

		if validateFormat == "json" {
			if err := writeReportsJSON(cmd.OutOrStdout(), reports); err != nil {
				return err
			}
		} else {
			printReports(newUI(cmd), reports)
		}

		if failed(reports, validateStrict) {
			return errFindings
		}
		return nil
	},
}

func init() {
	validateCmd.Flags().BoolVar(&validateOffline, "offline", false, "do not download features; use cached ones only")
	validateCmd.Flags().BoolVar(&validateStrict, "strict", false, "fail on warnings too")
	validateCmd.Flags().StringSliceVar(&validateDisable, "disable", nil, "rule IDs to skip (repeatable)")
	validateCmd.Flags().StringVar(&validateFormat, "format", "text", "output format: text or json")

	var b strings.Builder
	b.WriteString("\n\nRules:\n")
	for _, r := range lint.Rules {
		fmt.Fprintf(&b, "  %-20s %s\n", r.ID, r.Description)
	}
	validateCmd.Long += strings.TrimRight(b.String(), "\n")
}

// applyValidateRC fills flags the user did not set from .dcvetrc.
func applyValidateRC(cmd *cobra.Command) {
	if rc == nil {
		return
	}
	flags := cmd.Flags()
	if !flags.Changed("offline") {
		validateOffline = rc.Offline
	}
	if !flags.Changed("strict") {
		validateStrict = rc.Strict
	}
	if !flags.Changed("disable") && len(rc.Disable) > 0 {
		validateDisable = rc.Disable
	}
}

func checkFormat(format string, allowed ...string) error {
	if !slices.Contains(allowed, format) {
		return fmt.Errorf("unknown format %q (want %s)", format, strings.Join(allowed, ", "))
	}
	return nil
}

// validateFiles lints each path concurrently. A file that cannot be read
// or parsed yields a report with a single error finding.
func validateFiles(cmd *cobra.Command, paths []string, opts lint.Options) ([]*lint.Report, error) {
	reports := make([]*lint.Report, len(paths))
	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(validateConcurrency)
	for i, p := range paths {
		g.Go(func() error {
			doc, err := config.Load(p)
			if err != nil {
				reports[i] = &lint.Report{Path: p, Findings: []lint.Finding{{
					Severity: lint.SeverityError,
					Rule:     "schema",
					Message:  err.Error(),
				}}}
				return nil
			}
			reports[i] = lint.Run(ctx, doc, opts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := cmd.Context().Err(); err != nil {
		return nil, err
	}
	return reports, nil
}

func failed(reports []*lint.Report, strict bool) bool {
	for _, r := range reports {
		c := r.Counts()
		if c.Errors > 0 || (strict && c.Warnings > 0) {
			return true
		}
	}
	return false
}

// printReports writes the findings of each report followed by a total.
func printReports(u *ui.UI, reports []*lint.Report) {
	var total lint.Counts
	for _, r := range reports {
		u.Header(displayPath(r.Path))
		if len(r.Findings) == 0 {
			u.Success("no problems found")
			continue
		}
		for _, f := range r.Findings {
			u.Finding(string(f.Severity), f.Path, f.Rule, f.Message)
		}
		c := r.Counts()
		total.Errors += c.Errors
		total.Warnings += c.Warnings
		total.Infos += c.Infos
	}
	if len(reports) > 1 || total != (lint.Counts{}) {
		u.Dim(fmt.Sprintf("%s, %s, %s in %s",
			plural(total.Errors, "error"), plural(total.Warnings, "warning"),
			plural(total.Infos, "info"), plural(len(reports), "file")))
	}
}

func plural(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return fmt.Sprintf("%d %ss", n, word)
}

type reportsOutput struct {
	Files  []*lint.Report `json:"files"`
	Counts lint.Counts    `json:"counts"`
}

func writeReportsJSON(w io.Writer, reports []*lint.Report) error {
	out := reportsOutput{Files: reports}
	for _, r := range reports {
		if r.Findings == nil {
			r.Findings = []lint.Finding{}
		}
		c := r.Counts()
		out.Counts.Errors += c.Errors
		out.Counts.Warnings += c.Warnings
		out.Counts.Infos += c.Infos
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// displayPath shortens p relative to the working directory when p is
// below it.
func displayPath(p string) string {
	cwd, err := os.Getwd()
	if err != nil {
		return p
	}
	rel, err := filepath.Rel(cwd, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return p
	}
	return rel
}
