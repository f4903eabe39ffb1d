package dockerfile

import (
	"fmt"
	"strings"

	"github.com/moby/buildkit/frontend/dockerfile/instructions"
	"github.com/moby/buildkit/frontend/dockerfile/parser"
	"github.com/moby/buildkit/frontend/dockerfile/shell"
)

// Dockerfile is a parsed Dockerfile.
type Dockerfile struct {
	Raw      string
	Preamble *Preamble
	Stages   []*Stage

	// StagesByTarget maps lowercased stage names to stages.
	StagesByTarget map[string]*Stage

	// Warnings are non-fatal parser complaints (deprecated syntax, empty
	// continuation lines).
	Warnings []string
}

// Preamble holds instructions before the first FROM (typically ARG).
type Preamble struct {
	Args []instructions.KeyValuePairOptional
}

// Stage is a single build stage (FROM ... to next FROM or EOF).
type Stage struct {
	Image    string // FROM value, unexpanded
	Target   string // AS value, empty if unnamed
	Platform string // --platform value
	Envs     []instructions.KeyValuePair
	Args     []instructions.KeyValuePairOptional
	Users    []string
	Commands []instructions.Command
}

// Parse parses Dockerfile content. A file without any FROM is an error.
func Parse(content string) (*Dockerfile, error) {
	result, err := parser.Parse(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("parsing Dockerfile: %w", err)
	}

	df := &Dockerfile{
		Raw:            content,
		Preamble:       &Preamble{},
		StagesByTarget: make(map[string]*Stage),
	}

	for _, w := range result.Warnings {
		df.Warnings = append(df.Warnings, w.Short)
	}

	stages, metaArgs, err := instructions.Parse(result.AST, nil)
	if err != nil {
		return nil, fmt.Errorf("parsing instructions: %w", err)
	}
	if len(stages) == 0 {
		return nil, fmt.Errorf("parsing Dockerfile: no FROM instruction")
	}

	// Preamble: ARGs before the first FROM.
	for _, arg := range metaArgs {
		df.Preamble.Args = append(df.Preamble.Args, arg.Args...)
	}

	// Parse stages.
	for _, s := range stages {
		stage := &Stage{
			Image:    s.BaseName,
			Target:   s.Name,
			Platform: s.Platform,
			Commands: s.Commands,
		}

		for _, cmd := range s.Commands {
			switch c := cmd.(type) {
			case *instructions.EnvCommand:
				stage.Envs = append(stage.Envs, c.Env...)
			case *instructions.ArgCommand:
				stage.Args = append(stage.Args, c.Args...)
			case *instructions.UserCommand:
				stage.Users = append(stage.Users, c.User)
			}
		}

		df.Stages = append(df.Stages, stage)
		if stage.Target != "" {
			df.StagesByTarget[strings.ToLower(stage.Target)] = stage
		}
	}

	return df, nil
}

// FindBaseImage resolves the base image for the given target stage,
// expanding ARG variables and following stage references.
// If target is empty, the last stage is used.
func (d *Dockerfile) FindBaseImage(buildArgs map[string]string, target string) string {
	stage := d.findTargetStage(target)
	if stage == nil {
		return ""
	}

	image := d.expandVariables(stage.Image, buildArgs, nil, make(map[string]bool))
	return image
}

// FindUserStatement returns the last USER instruction in the target stage
// chain, resolving ARG/ENV variables. Returns empty string if no USER found.
func (d *Dockerfile) FindUserStatement(buildArgs, baseImageEnv map[string]string, target string) string {
	stage := d.findTargetStage(target)
	if stage == nil {
		return ""
	}

	return d.findUser(stage, buildArgs, baseImageEnv, make(map[string]bool))
}

// BuildContextFiles returns all source paths from COPY and ADD instructions
// that reference local files (not from other stages).
func (d *Dockerfile) BuildContextFiles() []string {
	seen := make(map[string]bool)
	var files []string

	for _, stage := range d.Stages {
		for _, cmd := range stage.Commands {
			var sources []string
			switch c := cmd.(type) {
			case *instructions.CopyCommand:
				if c.From != "" {
					continue // COPY --from=stage, skip
				}
				sources = c.SourcePaths
			case *instructions.AddCommand:
				sources = c.SourcePaths
			default:
				continue
			}
			for _, src := range sources {
				if !seen[src] {
					seen[src] = true
					files = append(files, src)
				}
			}
		}
	}

	return files
}

// StageNames returns the named stages in file order.
func (d *Dockerfile) StageNames() []string {
	var names []string
	for _, s := range d.Stages {
		if s.Target != "" {
			names = append(names, s.Target)
		}
	}
	return names
}

// HasStage reports whether target names a stage. Stage names are
// case-insensitive, as in docker build.
func (d *Dockerfile) HasStage(target string) bool {
	_, ok := d.StagesByTarget[strings.ToLower(target)]
	return ok
}

// findTargetStage returns the stage matching the target name,
// or the last stage if target is empty.
func (d *Dockerfile) findTargetStage(target string) *Stage {
	if len(d.Stages) == 0 {
		return nil
	}

	if target == "" {
		return d.Stages[len(d.Stages)-1]
	}

	return d.StagesByTarget[strings.ToLower(target)]
}

// findUser walks the stage chain to find the last USER instruction.
func (d *Dockerfile) findUser(stage *Stage, buildArgs, baseImageEnv map[string]string, seen map[string]bool) string {
	if stage == nil {
		return ""
	}

	// Prevent circular references.
	key := stage.Image
	if stage.Target != "" {
		key = stage.Target
	}
	if seen[key] {
		return ""
	}
	seen[key] = true

	// If this stage has USER instructions, use the last one.
	if len(stage.Users) > 0 {
		user := stage.Users[len(stage.Users)-1]
		return d.expandVariables(user, buildArgs, baseImageEnv, make(map[string]bool))
	}

	// Walk to parent stage if the base image references another stage.
	if parent, ok := d.StagesByTarget[stage.Image]; ok {
		return d.findUser(parent, buildArgs, baseImageEnv, seen)
	}

	return ""
}

// expandVariables expands ${VAR} references in a string using build args,
// stage environment, and preamble args.
func (d *Dockerfile) expandVariables(value string, buildArgs, baseImageEnv map[string]string, seenStages map[string]bool) string {
	env := &envResolver{
		buildArgs:    buildArgs,
		baseImageEnv: baseImageEnv,
		preamble:     d.Preamble,
	}

	lex := shell.NewLex('\\')
	result, _, err := lex.ProcessWord(value, env)
	if err != nil {
		return value
	}

	// If the result references another stage, check for circular refs.
	if parent, ok := d.StagesByTarget[result]; ok && !seenStages[result] {
		seenStages[result] = true
		return d.expandVariables(parent.Image, buildArgs, baseImageEnv, seenStages)
	}

	return result
}

// envResolver implements shell.EnvGetter for variable resolution.
type envResolver struct {
	buildArgs    map[string]string
	baseImageEnv map[string]string
	preamble     *Preamble
}

func (e *envResolver) Get(key string) (string, bool) {
	// 1. Build args override everything.
	if v, ok := e.buildArgs[key]; ok {
		return v, true
	}

	// 2. Preamble ARG defaults.
	if e.preamble != nil {
		for _, arg := range e.preamble.Args {
			if arg.Key == key && arg.Value != nil {
				return *arg.Value, true
			}
		}
	}

	// 3. Base image environment.
	if v, ok := e.baseImageEnv[key]; ok {
		return v, true
	}

	return "", false
}

func (e *envResolver) Keys() []string {
	keys := make(map[string]bool)
	for k := range e.buildArgs {
		keys[k] = true
	}
	if e.preamble != nil {
		for _, arg := range e.preamble.Args {
			keys[arg.Key] = true
		}
	}
	for k := range e.baseImageEnv {
		keys[k] = true
	}

	result := make([]string, 0, len(keys))
	for k := range keys {
		result = append(result, k)
	}
	return result
}
