package config

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// StrArray accepts either a single string or an array of strings in JSON.
type StrArray []string

// UnmarshalJSON implements json.Unmarshaler.
func (sa *StrArray) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*sa = StrArray{s}
		return nil
	}

	var arr []string
	if err := json.Unmarshal(data, &arr); err != nil {
		return fmt.Errorf("expected string or []string: %w", err)
	}
	*sa = arr
	return nil
}

// StrIntArray accepts a string, number, or an array of mixed string/number
// values. All values are stored as strings.
type StrIntArray []string

// UnmarshalJSON implements json.Unmarshaler.
func (sa *StrIntArray) UnmarshalJSON(data []byte) error {
	if v, ok := strOrNumber(data); ok {
		*sa = StrIntArray{v}
		return nil
	}

	var arr []json.RawMessage
	if err := json.Unmarshal(data, &arr); err != nil {
		return fmt.Errorf("expected string, number, or array: %w", err)
	}

	result := make(StrIntArray, 0, len(arr))
	for _, raw := range arr {
		v, ok := strOrNumber(raw)
		if !ok {
			return fmt.Errorf("array element must be string or number: %s", string(raw))
		}
		result = append(result, v)
	}
	*sa = result
	return nil
}

func strOrNumber(data []byte) (string, bool) {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return s, true
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		return n.String(), true
	}
	return "", false
}

// StrBool accepts either a string or bool in JSON, storing as string.
type StrBool string

// UnmarshalJSON implements json.Unmarshaler.
func (s *StrBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		if b {
			*s = "true"
		} else {
			*s = "false"
		}
		return nil
	}

	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return fmt.Errorf("expected string or bool: %w", err)
	}
	*s = StrBool(str)
	return nil
}

// IsTrue returns true if the value is "true" (case-insensitive).
func (s StrBool) IsTrue() bool {
	return strings.EqualFold(string(s), "true")
}

// Command is a single lifecycle command. Shell commands run through a
// shell; exec commands run their argv directly.
type Command struct {
	Shell string
	Args  []string
}

// IsShell reports whether the command uses the string form.
func (c Command) IsShell() bool {
	return c.Args == nil
}

// String renders the command for display.
func (c Command) String() string {
	if c.IsShell() {
		return c.Shell
	}
	quoted := make([]string, len(c.Args))
	for i, a := range c.Args {
		if a == "" || strings.ContainsAny(a, " \t\"'") {
			quoted[i] = fmt.Sprintf("%q", a)
		} else {
			quoted[i] = a
		}
	}
	return strings.Join(quoted, " ")
}

// MarshalJSON writes the command back in the form it was declared in.
func (c Command) MarshalJSON() ([]byte, error) {
	if c.IsShell() {
		return json.Marshal(c.Shell)
	}
	return json.Marshal(c.Args)
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Command) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return fmt.Errorf("command must not be null")
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*c = Command{Shell: s}
		return nil
	}
	var arr []string
	if err := json.Unmarshal(data, &arr); err != nil {
		return fmt.Errorf("command must be a string or array of strings: %s", string(data))
	}
	if arr == nil {
		arr = []string{}
	}
	*c = Command{Args: arr}
	return nil
}

// LifecycleHook accepts every JSON form of a lifecycle command:
//   - a string: "npm install"
//   - an array: ["npm", "install"]
//   - an object of named commands run in parallel:
//     {"deps": "npm install", "db": ["make", "db"]}
//
// The string and array forms are stored under the empty key.
type LifecycleHook map[string]Command

// UnmarshalJSON implements json.Unmarshaler.
func (l *LifecycleHook) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}

	var single Command
	if err := single.UnmarshalJSON(data); err == nil {
		*l = LifecycleHook{"": single}
		return nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("lifecycle hook must be a string, array, or object: %w", err)
	}

	result := make(LifecycleHook, len(obj))
	for k, v := range obj {
		var cmd Command
		if err := cmd.UnmarshalJSON(v); err != nil {
			return fmt.Errorf("lifecycle hook value for %q: %w", k, err)
		}
		result[k] = cmd
	}
	*l = result
	return nil
}

// MarshalJSON implements json.Marshaler.
func (l LifecycleHook) MarshalJSON() ([]byte, error) {
	if cmd, ok := l.single(); ok {
		return cmd.MarshalJSON()
	}
	return json.Marshal(map[string]Command(l))
}

// Names returns the command names in sorted order. The unnamed form yields
// a single empty name.
func (l LifecycleHook) Names() []string {
	names := make([]string, 0, len(l))
	for k := range l {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func (l LifecycleHook) single() (Command, bool) {
	if len(l) != 1 {
		return Command{}, false
	}
	cmd, ok := l[""]
	return cmd, ok
}
