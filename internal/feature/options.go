package feature

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

// OptionIssue is a mismatch between user options and a feature's declared
// options.
type OptionIssue struct {
	Option  string
	Message string
}

// CheckOptions compares the options given for a feature in devcontainer.json
// against the options the feature declares. userOptions can be:
//   - map[string]any: per-option values
//   - string: shorthand for {"version": value}
//   - bool or nil: defaults only
func CheckOptions(fc *FeatureConfig, userOptions any) []OptionIssue {
	switch opts := userOptions.(type) {
	case nil, bool:
		return nil
	case string:
		opt, ok := fc.Options["version"]
		if !ok {
			return []OptionIssue{{
				Option:  "version",
				Message: fmt.Sprintf("string shorthand sets \"version\", which feature %q does not declare", fc.ID),
			}}
		}
		return checkValue("version", opt, opts)
	case map[string]any:
		keys := make([]string, 0, len(opts))
		for k := range opts {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var issues []OptionIssue
		for _, k := range keys {
			opt, ok := fc.Options[k]
			if !ok {
				issues = append(issues, OptionIssue{
					Option:  k,
					Message: fmt.Sprintf("unknown option %q%s", k, suggest(fc, k)),
				})
				continue
			}
			issues = append(issues, checkValue(k, opt, opts[k])...)
		}
		return issues
	default:
		return []OptionIssue{{Message: fmt.Sprintf("options must be an object or a string, got %T", userOptions)}}
	}
}

func checkValue(name string, opt FeatureOption, value any) []OptionIssue {
	switch opt.Type {
	case "boolean":
		if _, ok := value.(bool); !ok {
			return []OptionIssue{{Option: name, Message: fmt.Sprintf("option %q is a boolean, got %s", name, describe(value))}}
		}
	case "string":
		s, ok := value.(string)
		if !ok {
			return []OptionIssue{{Option: name, Message: fmt.Sprintf("option %q is a string, got %s", name, describe(value))}}
		}
		if len(opt.Enum) > 0 && !slices.Contains(opt.Enum, s) {
			return []OptionIssue{{
				Option:  name,
				Message: fmt.Sprintf("option %q must be one of %s, got %q", name, strings.Join(opt.Enum, ", "), s),
			}}
		}
	}
	return nil
}

func describe(v any) string {
	switch v := v.(type) {
	case nil:
		return "null"
	case string:
		return fmt.Sprintf("string %q", v)
	case bool:
		return fmt.Sprintf("boolean %v", v)
	case float64:
		return fmt.Sprintf("number %v", v)
	default:
		return fmt.Sprintf("%T", v)
	}
}

// suggest returns a "did you mean" hint for option names differing only in
// case or separators.
func suggest(fc *FeatureConfig, name string) string {
	fold := func(s string) string {
		return strings.NewReplacer("-", "", "_", "").Replace(strings.ToLower(s))
	}
	for k := range fc.Options {
		if fold(k) == fold(name) {
			return fmt.Sprintf(" (did you mean %q?)", k)
		}
	}
	return ""
}

// EffectiveOptions combines feature option defaults with user-provided
// overrides, keyed by option ID.
func EffectiveOptions(fc *FeatureConfig, userOptions any) map[string]string {
	result := make(map[string]string)
	for id, opt := range fc.Options {
		if def := string(opt.Default); def != "" {
			result[id] = def
		}
	}
	switch opts := userOptions.(type) {
	case map[string]any:
		for k, v := range opts {
			result[k] = fmt.Sprintf("%v", v)
		}
	case string:
		result["version"] = opts
	}
	return result
}
