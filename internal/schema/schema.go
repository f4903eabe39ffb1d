// Package schema checks descriptors against the embedded devcontainer.json
// JSON Schema.
package schema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/santhosh-tekuri/jsonschema/v6/kind"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

//go:embed devcontainer.schema.json
var source []byte

const schemaURL = "https://dcvet.dev/schemas/devcontainer.schema.json"

var printer = message.NewPrinter(language.English)

// Problem is one schema violation.
type Problem struct {
	// Pointer is the JSON pointer of the offending value ("" for the root).
	Pointer string
	Message string
}

func (p Problem) String() string {
	if p.Pointer == "" {
		return p.Message
	}
	return p.Pointer + ": " + p.Message
}

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

// Source returns the embedded schema document.
func Source() []byte {
	return bytes.Clone(source)
}

// Properties returns the top-level property names the schema declares,
// sorted. "$schema" is always included.
func Properties() []string {
	var doc struct {
		Properties map[string]json.RawMessage `json:"properties"`
	}
	if err := json.Unmarshal(source, &doc); err != nil {
		return []string{"$schema"}
	}
	names := make([]string, 0, len(doc.Properties)+1)
	names = append(names, "$schema")
	for k := range doc.Properties {
		if k != "$schema" {
			names = append(names, k)
		}
	}
	sort.Strings(names)
	return names
}

// Validate checks plain JSON (comments already stripped) against the
// schema. Problems are sorted by pointer.
func Validate(data []byte) ([]Problem, error) {
	sch, err := load()
	if err != nil {
		return nil, err
	}

	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding instance: %w", err)
	}

	err = sch.Validate(inst)
	if err == nil {
		return nil, nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return nil, fmt.Errorf("validating: %w", err)
	}

	var problems []Problem
	collect(ve, &problems)
	problems = dedupe(problems)
	sort.SliceStable(problems, func(i, j int) bool {
		return problems[i].Pointer < problems[j].Pointer
	})
	return problems, nil
}

func load() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(source))
		if err != nil {
			compileErr = fmt.Errorf("decoding embedded schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemaURL, doc); err != nil {
			compileErr = fmt.Errorf("adding embedded schema: %w", err)
			return
		}
		compiled, compileErr = c.Compile(schemaURL)
	})
	return compiled, compileErr
}

// collect walks the error tree and keeps leaves. For anyOf/oneOf, branches
// that failed only because the value has another JSON type are noise when
// a branch of the right type failed for a real reason; if every branch is a
// type mismatch they merge into one "got X, want A or B" problem.
func collect(ve *jsonschema.ValidationError, out *[]Problem) {
	switch ve.ErrorKind.(type) {
	case *kind.AnyOf, *kind.OneOf:
		var relevant []*jsonschema.ValidationError
		var got string
		var want []string
		for _, c := range ve.Causes {
			if t, ok := typeMismatch(c, ve.InstanceLocation); ok {
				got = t.Got
				want = append(want, t.Want...)
				continue
			}
			relevant = append(relevant, c)
		}
		if len(relevant) == 0 && got != "" {
			merged := &kind.Type{Got: got, Want: uniq(want)}
			*out = append(*out, Problem{
				Pointer: pointer(ve.InstanceLocation),
				Message: merged.LocalizedString(printer),
			})
			return
		}
		for _, c := range relevant {
			collect(c, out)
		}
		return
	}

	if len(ve.Causes) == 0 {
		*out = append(*out, Problem{
			Pointer: pointer(ve.InstanceLocation),
			Message: ve.ErrorKind.LocalizedString(printer),
		})
		return
	}
	for _, c := range ve.Causes {
		collect(c, out)
	}
}

// typeMismatch unwraps $ref chains and reports whether a branch failed
// solely on "type" at the given location.
func typeMismatch(ve *jsonschema.ValidationError, loc []string) (*kind.Type, bool) {
	for {
		if _, ok := ve.ErrorKind.(*kind.Reference); ok && len(ve.Causes) == 1 {
			ve = ve.Causes[0]
			continue
		}
		if _, ok := ve.ErrorKind.(*kind.Group); ok && len(ve.Causes) == 1 {
			ve = ve.Causes[0]
			continue
		}
		break
	}
	if len(ve.Causes) != 0 || !slices.Equal(ve.InstanceLocation, loc) {
		return nil, false
	}
	t, ok := ve.ErrorKind.(*kind.Type)
	return t, ok
}

func pointer(tokens []string) string {
	var sb strings.Builder
	for _, tok := range tokens {
		sb.WriteByte('/')
		tok = strings.ReplaceAll(tok, "~", "~0")
		sb.WriteString(strings.ReplaceAll(tok, "/", "~1"))
	}
	return sb.String()
}

func dedupe(problems []Problem) []Problem {
	seen := make(map[Problem]bool, len(problems))
	out := problems[:0]
	for _, p := range problems {
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

func uniq(values []string) []string {
	var out []string
	for _, v := range values {
		if !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}
