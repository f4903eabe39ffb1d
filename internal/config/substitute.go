package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

var variableRegexp = regexp.MustCompile(`\$\{(.*?)\}`)

// SubstitutionContext holds the values available for variable substitution.
type SubstitutionContext struct {
	DevContainerID           string
	LocalWorkspaceFolder     string
	ContainerWorkspaceFolder string
	Env                      map[string]string
}

// Substitute returns a copy of doc with variables replaced.
// Supported variables:
//   - ${localEnv:VAR}, ${localEnv:VAR:default} (and the older ${env:VAR})
//   - ${localWorkspaceFolder}, ${localWorkspaceFolderBasename}
//   - ${containerWorkspaceFolder}, ${containerWorkspaceFolderBasename}
//   - ${devcontainerId}
//
// ${containerEnv:VAR} needs a running container and is left untouched, as
// are unknown variables.
func Substitute(ctx *SubstitutionContext, doc *Document) (*Document, error) {
	raw, ok := substituteValue(doc.Raw, func(match, variable string, args []string) string {
		return replaceWithContext(ctx, match, variable, args)
	}).(map[string]any)
	if !ok {
		return nil, fmt.Errorf("substituted document is not an object")
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("marshaling substituted config: %w", err)
	}

	out := &Document{Path: doc.Path, Data: data, Raw: raw}
	cfg, err := decode(data)
	if err != nil {
		out.DecodeErr = err
		return out, nil
	}
	cfg.Origin = doc.Path
	out.Config = cfg
	return out, nil
}

// Variables lists every ${...} reference in doc, deduplicated in first-seen
// order of a depth-first walk over sorted keys.
func Variables(doc *Document) []string {
	seen := make(map[string]bool)
	var vars []string
	substituteValue(doc.Raw, func(match, _ string, _ []string) string {
		if !seen[match] {
			seen[match] = true
			vars = append(vars, match)
		}
		return match
	})
	return vars
}

type replaceFunc func(match, variable string, args []string) string

func substituteValue(val any, replacer replaceFunc) any {
	switch v := val.(type) {
	case string:
		return resolveString(v, replacer)
	case map[string]any:
		result := make(map[string]any, len(v))
		for _, k := range sortedKeys(v) {
			result[k] = substituteValue(v[k], replacer)
		}
		return result
	case []any:
		result := make([]any, len(v))
		for i, vv := range v {
			result[i] = substituteValue(vv, replacer)
		}
		return result
	default:
		return val
	}
}

func resolveString(s string, replacer replaceFunc) string {
	return variableRegexp.ReplaceAllStringFunc(s, func(match string) string {
		inner := match[2 : len(match)-1]
		parts := strings.SplitN(inner, ":", 3)
		return replacer(match, parts[0], parts[1:])
	})
}

func replaceWithContext(ctx *SubstitutionContext, match, variable string, args []string) string {
	switch variable {
	case "devcontainerId":
		return ctx.DevContainerID
	case "localWorkspaceFolder":
		return ctx.LocalWorkspaceFolder
	case "localWorkspaceFolderBasename":
		return filepath.Base(ctx.LocalWorkspaceFolder)
	case "containerWorkspaceFolder":
		return ctx.ContainerWorkspaceFolder
	case "containerWorkspaceFolderBasename":
		return filepath.Base(ctx.ContainerWorkspaceFolder)
	case "localEnv", "env":
		return lookupEnv(ctx.Env, args, match)
	default:
		return match
	}
}

func lookupEnv(env map[string]string, args []string, match string) string {
	if len(args) == 0 {
		return match
	}
	if val, ok := env[args[0]]; ok {
		return val
	}
	if len(args) >= 2 {
		return args[1]
	}
	return ""
}
