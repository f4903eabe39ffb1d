package lint

import (
	"strings"

	"github.com/mattn/go-shellwords"
)

func (c *checker) checkLifecycle() {
	for _, h := range c.cfg.Hooks() {
		if len(h.Hook) == 0 {
			c.warnf(pointer(h.Key), "lifecycle", "%s has no commands", h.Key)
			continue
		}
		for _, name := range h.Hook.Names() {
			p := pointer(h.Key)
			if name != "" {
				p = pointer(h.Key, name)
			}
			cmd := h.Hook[name]
			if !cmd.IsShell() {
				switch {
				case len(cmd.Args) == 0:
					c.errorf(p, "lifecycle", "command is an empty array")
				case strings.TrimSpace(cmd.Args[0]) == "":
					c.errorf(p, "lifecycle", "command starts with an empty program name")
				}
				continue
			}
			if strings.TrimSpace(cmd.Shell) == "" {
				c.errorf(p, "lifecycle", "command is empty")
				continue
			}
			if err := splitShell(cmd.Shell); err != nil {
				if quotesBalanced(cmd.Shell) {
					c.warnf(p, "lifecycle", "command could not be split into words: %v", err)
				} else {
					c.errorf(p, "lifecycle", "command has unbalanced quotes")
				}
			}
		}
	}
}

// splitShell splits every segment of a shell line. The parser stops at
// operators (; & | < >) and reports their rune offset in Position.
func splitShell(line string) error {
	rest := []rune(line)
	for len(rest) > 0 {
		p := shellwords.NewParser()
		if _, err := p.Parse(string(rest)); err != nil {
			return err
		}
		if p.Position < 0 || p.Position+1 > len(rest) {
			return nil
		}
		rest = rest[p.Position+1:]
	}
	return nil
}

// quotesBalanced reports whether single and double quotes pair up,
// honoring backslash escapes outside single quotes.
func quotesBalanced(s string) bool {
	var single, double, escaped bool
	for _, r := range s {
		switch {
		case escaped:
			escaped = false
		case r == '\\' && !single:
			escaped = true
		case r == '\'' && !double:
			single = !single
		case r == '"' && !single:
			double = !double
		}
	}
	return !single && !double && !escaped
}
