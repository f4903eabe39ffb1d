package lint

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"slices"
	"strings"

	"github.com/distribution/reference"

	"github.com/fgrehm/dcvet/internal/compose"
	"github.com/fgrehm/dcvet/internal/config"
	"github.com/fgrehm/dcvet/internal/dockerfile"
)

func (c *checker) checkSource() {
	cfg := c.cfg
	var sources []string
	if cfg.Image != "" {
		sources = append(sources, "image")
	}
	if cfg.Kind() == config.KindDockerfile || (cfg.Build != nil && cfg.Build.Dockerfile != "") {
		sources = append(sources, "build")
	}
	if len(cfg.DockerComposeFile) > 0 {
		sources = append(sources, "dockerComposeFile")
	}

	switch {
	case len(sources) == 0 && cfg.Build != nil:
		c.errorf("/build", "source", "build is set without build.dockerfile")
		return
	case len(sources) == 0:
		c.errorf("", "source", "no container source: set image, build.dockerfile or dockerComposeFile")
		return
	case len(sources) > 1:
		c.warnf("", "source", "multiple container sources (%s); %s is used",
			strings.Join(sources, ", "), sourceKey(cfg.Kind()))
	}

	if cfg.Kind() == config.KindCompose && cfg.Service == "" {
		c.errorf("", "source", "dockerComposeFile requires service")
	}
	if cfg.Kind() != config.KindCompose {
		if cfg.Service != "" {
			c.warnf("/service", "source", "service is only used with dockerComposeFile")
		}
		if len(cfg.RunServices) > 0 {
			c.warnf("/runServices", "source", "runServices is only used with dockerComposeFile")
		}
	}
}

func sourceKey(k config.Kind) string {
	switch k {
	case config.KindCompose:
		return "dockerComposeFile"
	case config.KindDockerfile:
		return "build"
	default:
		return "image"
	}
}

func (c *checker) checkImage() {
	if c.cfg.Kind() != config.KindImage {
		return
	}
	c.checkImageRef("/image", "image", c.cfg.Image)
}

// checkImageRef validates an image reference and flags references without
// a tag or digest.
func (c *checker) checkImageRef(path, rule, image string) {
	if hasVariable(image) {
		return
	}
	named, err := reference.ParseNormalizedNamed(image)
	if err != nil {
		c.errorf(path, rule, "invalid image reference %q: %v", image, err)
		return
	}
	if reference.IsNameOnly(named) {
		c.warnf(path, rule, "image %q has no tag or digest and resolves to %q",
			image, reference.FamiliarString(reference.TagNameOnly(named)))
	}
}

func (c *checker) dockerfileKey() string {
	if c.cfg.Build != nil && c.cfg.Build.Dockerfile != "" {
		return "/build/dockerfile"
	}
	return "/dockerfile"
}

func (c *checker) contextKey() string {
	switch {
	case c.cfg.Build != nil && c.cfg.Build.Context != "":
		return "/build/context"
	case c.cfg.Context != "":
		return "/context"
	default:
		return ""
	}
}

func (c *checker) checkDockerfile() {
	cfg := c.cfg
	if cfg.Kind() != config.KindDockerfile {
		return
	}
	dfPath := cfg.DockerfilePath()
	key := c.dockerfileKey()
	if hasVariable(dfPath) {
		return
	}

	data, err := os.ReadFile(dfPath)
	if errors.Is(err, fs.ErrNotExist) {
		c.errorf(key, "dockerfile", "Dockerfile not found at %s", dfPath)
		return
	}
	if err != nil {
		c.errorf(key, "dockerfile", "reading Dockerfile: %v", err)
		return
	}

	df, err := dockerfile.Parse(string(data))
	if err != nil {
		c.errorf(key, "dockerfile", "%v", err)
		return
	}
	for _, w := range df.Warnings {
		c.warnf(key, "dockerfile", "%s", w)
	}

	target := cfg.BuildTarget()
	if target != "" && !df.HasStage(target) {
		stages := df.StageNames()
		if len(stages) == 0 {
			c.errorf("/build/target", "dockerfile", "target stage %q not found: the Dockerfile has no named stages", target)
		} else {
			c.errorf("/build/target", "dockerfile", "target stage %q not found (stages: %s)", target, strings.Join(stages, ", "))
		}
		return
	}

	c.dockerfileUser = df.FindUserStatement(cfg.BuildArgs(), nil, target)
	if base := df.FindBaseImage(cfg.BuildArgs(), target); base != "" && !strings.Contains(base, "$") {
		if _, err := reference.ParseNormalizedNamed(base); err != nil {
			c.errorf(key, "dockerfile", "base image %q is not a valid reference: %v", base, err)
		}
	}

	contextDir := cfg.ContextPath()
	if hasVariable(contextDir) {
		return
	}
	info, err := os.Stat(contextDir)
	if err != nil || !info.IsDir() {
		c.errorf(c.contextKey(), "build-context", "build context %s is not a directory", contextDir)
		return
	}
	issues, err := df.CheckContext(contextDir, dfPath)
	if err != nil {
		c.errorf(c.contextKey(), "build-context", "checking build context: %v", err)
		return
	}
	for _, is := range issues {
		c.errorf(key, "build-context", "COPY/ADD source %q: %s", is.Source, is.Message)
	}
}

func (c *checker) composeFileKey(i int) string {
	if _, single := c.doc.Raw["dockerComposeFile"].(string); single {
		return "/dockerComposeFile"
	}
	return pointer("dockerComposeFile", i)
}

func (c *checker) checkCompose(ctx context.Context) {
	cfg := c.cfg
	if cfg.Kind() != config.KindCompose {
		return
	}

	files := cfg.ComposeFiles()
	missing := false
	for i, f := range files {
		if hasVariable(f) {
			return
		}
		if _, err := os.Stat(f); err != nil {
			c.errorf(c.composeFileKey(i), "compose", "compose file not found at %s", f)
			missing = true
		}
	}
	if missing {
		return
	}

	project, err := compose.LoadProject(ctx, files, nil)
	if err != nil {
		c.errorf("/dockerComposeFile", "compose", "loading compose project: %v", err)
		return
	}
	names := compose.ServiceNames(project)

	if cfg.Service != "" {
		info, err := compose.ServiceInfoFor(project, cfg.Service)
		switch {
		case err != nil:
			c.errorf("/service", "compose", "%v", err)
		case info.Disabled:
			c.warnf("/service", "compose", "service %q is only enabled by profiles %s",
				cfg.Service, strings.Join(info.Profiles, ", "))
		case info.Image == "" && !info.HasBuild():
			c.errorf("/service", "compose", "service %q has neither image nor build", cfg.Service)
		case info.HasBuild():
			if _, err := os.Stat(info.BuildCtx); err != nil {
				c.errorf("/service", "compose", "build context %s of service %q does not exist", info.BuildCtx, cfg.Service)
			}
		}
	}

	for i, s := range cfg.RunServices {
		if !slices.Contains(names, s) {
			c.errorf(pointer("runServices", i), "compose", "service %q not found in compose project (services: %s)",
				s, strings.Join(names, ", "))
		}
	}
}
