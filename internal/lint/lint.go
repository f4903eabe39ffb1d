// Package lint checks a devcontainer.json descriptor and reports findings.
// Problems with the descriptor are data, not errors: Run always returns a
// report.
package lint

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/fgrehm/dcvet/internal/config"
	"github.com/fgrehm/dcvet/internal/feature"
)

// Severity ranks a finding.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Finding is one problem found in a descriptor.
type Finding struct {
	Severity Severity `json:"severity" yaml:"severity"`
	// Path is the JSON pointer of the offending value, "" for the document.
	Path    string `json:"path" yaml:"path"`
	Rule    string `json:"rule" yaml:"rule"`
	Message string `json:"message" yaml:"message"`
}

func (f Finding) String() string {
	if f.Path == "" {
		return fmt.Sprintf("%s [%s] %s", f.Severity, f.Rule, f.Message)
	}
	return fmt.Sprintf("%s [%s] %s: %s", f.Severity, f.Rule, f.Path, f.Message)
}

// Counts tallies findings by severity.
type Counts struct {
	Errors   int `json:"errors" yaml:"errors"`
	Warnings int `json:"warnings" yaml:"warnings"`
	Infos    int `json:"infos" yaml:"infos"`
}

// Report holds the findings for one descriptor in rule order.
type Report struct {
	Path     string    `json:"path" yaml:"path"`
	Findings []Finding `json:"findings" yaml:"findings"`
}

// HasErrors reports whether any finding is an error.
func (r *Report) HasErrors() bool {
	return r.Counts().Errors > 0
}

// Counts tallies the report's findings.
func (r *Report) Counts() Counts {
	var c Counts
	for _, f := range r.Findings {
		switch f.Severity {
		case SeverityError:
			c.Errors++
		case SeverityWarning:
			c.Warnings++
		case SeverityInfo:
			c.Infos++
		}
	}
	return c
}

// Options configures a Run.
type Options struct {
	// Resolver fetches features so their options and versions can be
	// checked. Nil skips every check that needs feature metadata.
	Resolver feature.Resolver

	// Disable lists rule IDs whose findings are dropped.
	Disable []string

	Logger *slog.Logger
}

// Rule describes one rule ID.
type Rule struct {
	ID          string
	Description string
}

// Rules lists every rule ID in the order findings are produced.
var Rules = []Rule{
	{"schema", "descriptor matches the devcontainer.json schema"},
	{"unknown-key", "top-level keys are known properties"},
	{"legacy-key", "settings and extensions live under customizations.vscode"},
	{"source", "exactly one container source is set"},
	{"image", "image is a valid, pinned reference"},
	{"dockerfile", "Dockerfile exists, parses and has the build target"},
	{"build-context", "COPY and ADD sources exist in the build context"},
	{"compose", "compose files load and define the services used"},
	{"feature-id", "feature identifiers parse and are current"},
	{"feature-resolve", "features can be fetched and read"},
	{"feature-options", "feature options match what the feature declares"},
	{"feature-version", "feature tags match the declared feature version"},
	{"feature-deprecated", "features are not deprecated"},
	{"feature-order", "install order is consistent"},
	{"mount", "mounts are well-formed"},
	{"run-args", "runArgs are understood by docker run"},
	{"cap-add", "capabilities are known Linux capabilities"},
	{"security-opt", "security options are well-formed"},
	{"ports", "forwarded and published ports are valid"},
	{"lifecycle", "lifecycle commands are non-empty and well quoted"},
	{"host-requirements", "host requirement sizes parse"},
	{"user", "remoteUser and containerUser are usable"},
	{"workspace", "workspaceMount and workspaceFolder are consistent"},
}

// KnownRule reports whether id names a rule.
func KnownRule(id string) bool {
	return slices.ContainsFunc(Rules, func(r Rule) bool { return r.ID == id })
}

// checker accumulates findings for one document.
type checker struct {
	doc      *config.Document
	cfg      *config.DevContainerConfig
	opts     Options
	log      *slog.Logger
	disabled map[string]bool
	findings []Finding

	// dockerfileUser is the USER the Dockerfile leaves in effect, set by
	// checkDockerfile.
	dockerfileUser string
}

func (c *checker) add(sev Severity, path, rule, format string, args ...any) {
	if c.disabled[rule] {
		return
	}
	c.findings = append(c.findings, Finding{
		Severity: sev,
		Path:     path,
		Rule:     rule,
		Message:  fmt.Sprintf(format, args...),
	})
}

func (c *checker) errorf(path, rule, format string, args ...any) {
	c.add(SeverityError, path, rule, format, args...)
}

func (c *checker) warnf(path, rule, format string, args ...any) {
	c.add(SeverityWarning, path, rule, format, args...)
}

func (c *checker) infof(path, rule, format string, args ...any) {
	c.add(SeverityInfo, path, rule, format, args...)
}

// Run checks doc. Rules that need the typed model are skipped when the
// document does not decode; the schema findings explain why.
func Run(ctx context.Context, doc *config.Document, opts Options) *Report {
	c := &checker{
		doc:      doc,
		cfg:      doc.Config,
		opts:     opts,
		log:      opts.Logger,
		disabled: make(map[string]bool, len(opts.Disable)),
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	for _, id := range opts.Disable {
		c.disabled[id] = true
	}

	c.checkSchema()
	c.checkKeys()
	if c.cfg != nil {
		c.checkSource()
		c.checkImage()
		c.checkDockerfile()
		c.checkCompose(ctx)
		c.checkFeatures(ctx)
		c.checkMounts()
		c.checkRunArgs()
		c.checkCapAdd()
		c.checkSecurityOpt()
		c.checkPorts()
		c.checkLifecycle()
		c.checkHostRequirements()
		c.checkUsers()
		c.checkWorkspace()
	}

	c.log.Debug("lint finished", "path", doc.Path, "findings", len(c.findings))
	return &Report{Path: doc.Path, Findings: c.findings}
}

// pointer builds a JSON pointer from reference tokens, escaping "~" and
// "/" as RFC 6901 requires.
func pointer(tokens ...any) string {
	var b strings.Builder
	for _, t := range tokens {
		var s string
		switch v := t.(type) {
		case string:
			s = v
		case int:
			s = strconv.Itoa(v)
		default:
			s = fmt.Sprint(v)
		}
		s = strings.ReplaceAll(s, "~", "~0")
		s = strings.ReplaceAll(s, "/", "~1")
		b.WriteString("/")
		b.WriteString(s)
	}
	return b.String()
}

// hasVariable reports whether s contains a ${...} reference, whose value
// is only known to the runner.
func hasVariable(s string) bool {
	return strings.Contains(s, "${")
}
