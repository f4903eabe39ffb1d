package dockerfile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/moby/patternmatcher"
	"github.com/moby/patternmatcher/ignorefile"
)

// ContextIssue is a COPY or ADD source that a build would not find.
type ContextIssue struct {
	Source  string
	Message string
}

// CheckContext verifies that the local COPY and ADD sources exist in
// contextDir and are not excluded by the ignore file. Sources using
// variables, URLs and heredocs are skipped.
func (d *Dockerfile) CheckContext(contextDir, dockerfilePath string) ([]ContextIssue, error) {
	patterns, err := ReadIgnorePatterns(contextDir, dockerfilePath)
	if err != nil {
		return nil, err
	}
	var matcher *patternmatcher.PatternMatcher
	if len(patterns) > 0 {
		matcher, err = patternmatcher.New(patterns)
		if err != nil {
			return nil, fmt.Errorf("compiling ignore patterns: %w", err)
		}
	}

	var issues []ContextIssue
	for _, src := range d.BuildContextFiles() {
		if strings.ContainsAny(src, "$") || strings.Contains(src, "://") || strings.HasPrefix(src, "<<") {
			continue
		}
		rel := path.Clean(strings.TrimPrefix(filepath.ToSlash(src), "/"))
		if rel == ".." || strings.HasPrefix(rel, "../") {
			issues = append(issues, ContextIssue{Source: src, Message: "source is outside the build context"})
			continue
		}
		if rel == "." {
			continue
		}

		candidates := []string{rel}
		if strings.ContainsAny(rel, "*?[") {
			matches, err := filepath.Glob(filepath.Join(contextDir, filepath.FromSlash(rel)))
			if err != nil {
				issues = append(issues, ContextIssue{Source: src, Message: fmt.Sprintf("invalid pattern: %v", err)})
				continue
			}
			candidates = candidates[:0]
			for _, m := range matches {
				r, err := filepath.Rel(contextDir, m)
				if err != nil {
					return nil, err
				}
				candidates = append(candidates, filepath.ToSlash(r))
			}
			if len(candidates) == 0 {
				issues = append(issues, ContextIssue{Source: src, Message: "pattern matches no files in the build context"})
				continue
			}
		} else if _, err := os.Stat(filepath.Join(contextDir, filepath.FromSlash(rel))); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				issues = append(issues, ContextIssue{Source: src, Message: "not found in the build context"})
				continue
			}
			return nil, fmt.Errorf("checking %s: %w", src, err)
		}

		if matcher == nil {
			continue
		}
		excluded := 0
		for _, c := range candidates {
			ok, err := matcher.MatchesOrParentMatches(c)
			if err != nil {
				return nil, fmt.Errorf("matching %s: %w", c, err)
			}
			if ok {
				excluded++
			}
		}
		if excluded == len(candidates) {
			issues = append(issues, ContextIssue{Source: src, Message: "excluded by .dockerignore"})
		}
	}
	return issues, nil
}

// ReadIgnorePatterns returns the ignore patterns docker build would use:
// <Dockerfile>.dockerignore next to the Dockerfile when present,
// otherwise .dockerignore at the context root. Missing files yield none.
func ReadIgnorePatterns(contextDir, dockerfilePath string) ([]string, error) {
	candidates := []string{filepath.Join(contextDir, ".dockerignore")}
	if dockerfilePath != "" {
		candidates = append([]string{dockerfilePath + ".dockerignore"}, candidates...)
	}
	for _, p := range candidates {
		f, err := os.Open(p)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", p, err)
		}
		patterns, err := ignorefile.ReadAll(f)
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", p, err)
		}
		return patterns, nil
	}
	return nil, nil
}
