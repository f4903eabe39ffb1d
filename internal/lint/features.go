package lint

import (
	"context"
	"errors"
	"slices"
	"sort"
	"strings"

	"github.com/fgrehm/dcvet/internal/feature"
)

func (c *checker) checkFeatures(ctx context.Context) {
	cfg := c.cfg
	ids := make([]string, 0, len(cfg.Features))
	for id := range cfg.Features {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	// resolvable holds the features worth fetching: parse failures and
	// legacy IDs are reported here and would only fail again.
	resolvable := make(map[string]any, len(ids))
	bases := make([]string, 0, len(ids))
	legacy := make(map[string]string)
	for _, id := range ids {
		ref, err := feature.ParseRef(id)
		if err != nil {
			c.errorf(pointer("features", id), "feature-id", "%v", err)
			continue
		}
		bases = append(bases, ref.Base())
		if ref.Kind == feature.KindLegacy {
			legacy[ref.Name()] = id
			c.warnf(pointer("features", id), "feature-id",
				"%q is a deprecated short identifier that current runners cannot resolve; use its OCI reference (e.g. ghcr.io/devcontainers/features/%s:1)",
				id, ref.Name())
			continue
		}
		switch cfg.Features[id].(type) {
		case nil, bool, string, map[string]any:
		default:
			c.errorf(pointer("features", id), "feature-options", "options must be an object or a string")
			continue
		}
		resolvable[id] = cfg.Features[id]
	}

	for i, entry := range cfg.OverrideFeatureInstallOrder {
		if !slices.Contains(bases, baseOf(entry)) {
			c.warnf(pointer("overrideFeatureInstallOrder", i), "feature-order",
				"%q does not match any entry in features", entry)
		}
	}

	if c.opts.Resolver == nil || len(resolvable) == 0 {
		return
	}

	results, err := feature.ResolveAll(ctx, resolvable, cfg.Dir(), c.opts.Resolver)
	if err != nil {
		c.errorf("/features", "feature-resolve", "resolving features: %v", err)
		return
	}

	var sets []*feature.FeatureSet
	for _, r := range results {
		path := pointer("features", r.ID)
		if r.Err != nil {
			if errors.Is(r.Err, feature.ErrOffline) {
				c.infof(path, "feature-resolve", "not in the feature cache; options and version not checked")
				continue
			}
			c.errorf(path, "feature-resolve", "%v", r.Err)
			continue
		}
		set := r.Set
		sets = append(sets, set)
		c.log.Debug("feature resolved", "id", r.ID, "folder", set.Folder, "version", set.Config.Version)

		c.checkFeatureOptions(path, set)
		if msg, ok := feature.CheckVersion(set.Ref, set.Config); !ok {
			c.warnf(path, "feature-version", "%s", msg)
		}
		if set.Config.Deprecated {
			c.warnf(path, "feature-deprecated", "feature %q is deprecated", set.Config.ID)
		}
		for _, old := range set.Config.LegacyIDs {
			if id, ok := legacy[old[strings.LastIndex(old, "/")+1:]]; ok {
				c.warnf(pointer("features", id), "feature-id",
					"%q was renamed to %q, which is also declared; drop the legacy entry", id, r.ID)
			}
		}
	}

	// The order only means something when every feature resolved and no
	// dependency is left for the runner to fetch.
	if len(sets) != len(resolvable) {
		return
	}
	complete := true
	for _, set := range sets {
		deps := make([]string, 0, len(set.Config.DependsOn))
		for dep := range set.Config.DependsOn {
			deps = append(deps, dep)
		}
		sort.Strings(deps)
		for _, dep := range deps {
			if !slices.Contains(bases, baseOf(dep)) {
				c.infof(pointer("features", set.ConfigID), "feature-order",
					"depends on %q, which is not listed and will be installed automatically", dep)
				complete = false
			}
		}
	}
	if !complete {
		return
	}
	if _, err := feature.OrderFeatures(sets, cfg.OverrideFeatureInstallOrder); err != nil {
		c.errorf("/features", "feature-order", "%v", err)
		return
	}
	for _, cf := range feature.OverrideConflicts(sets, cfg.OverrideFeatureInstallOrder) {
		c.warnf(pointer("overrideFeatureInstallOrder", cf.Index), "feature-order",
			"%q depends on %q, which is installed before it regardless of this order", cf.Feature, cf.Dependency)
	}
}

// checkFeatureOptions reports option issues. Options the feature does not
// declare are warnings; wrong types and values outside an enum are errors.
func (c *checker) checkFeatureOptions(path string, set *feature.FeatureSet) {
	_, object := set.Options.(map[string]any)
	for _, is := range feature.CheckOptions(set.Config, set.Options) {
		p := path
		if object && is.Option != "" {
			p = path + pointer(is.Option)
		}
		if _, declared := set.Config.Options[is.Option]; !declared {
			c.warnf(p, "feature-options", "%s", is.Message)
			continue
		}
		c.errorf(p, "feature-options", "%s", is.Message)
	}
}

// baseOf returns the tagless form of a feature identifier used to match
// dependencies, or id itself when it does not parse.
func baseOf(id string) string {
	ref, err := feature.ParseRef(id)
	if err != nil {
		return id
	}
	return ref.Base()
}
