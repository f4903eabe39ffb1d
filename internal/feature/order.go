package feature

import (
	"fmt"
	"slices"
)

// OrderFeatures sorts features respecting hard dependencies (dependsOn)
// and soft dependencies (installsAfter). IDs listed in overrideOrder
// (overrideFeatureInstallOrder) move to the front in that order, each
// preceded by any hard dependency not placed yet.
func OrderFeatures(features []*FeatureSet, overrideOrder []string) ([]*FeatureSet, error) {
	if len(features) == 0 {
		return nil, nil
	}

	// Dependencies name features by their base ID (no tag), so index both.
	byBase := make(map[string]string, len(features))
	byID := make(map[string]*FeatureSet, len(features))
	g := NewGraph[*FeatureSet]()
	for _, f := range features {
		byBase[baseID(f.ConfigID)] = f.ConfigID
		byID[f.ConfigID] = f
		g.AddNode(f.ConfigID, f)
	}

	hard := make(map[string][]*FeatureSet, len(features))
	for _, f := range features {
		for dep := range f.Config.DependsOn {
			target, ok := byBase[baseID(dep)]
			if !ok {
				return nil, fmt.Errorf("feature %q depends on %q, which is not in the feature set", f.ConfigID, dep)
			}
			if err := g.AddEdge(target, f.ConfigID); err != nil {
				return nil, fmt.Errorf("adding dependency %q -> %q: %w", target, f.ConfigID, err)
			}
			hard[f.ConfigID] = append(hard[f.ConfigID], byID[target])
		}
	}

	// Soft dependencies only apply to features present in the set and never
	// override a hard dependency in the other direction.
	for _, f := range features {
		for _, after := range f.Config.InstallsAfter {
			target, ok := byBase[baseID(after)]
			if !ok || target == f.ConfigID || dependsOn(byID[target], f.ConfigID, byBase) {
				continue
			}
			_ = g.AddEdge(target, f.ConfigID)
		}
	}

	sorted, err := g.Sort()
	if err != nil {
		return nil, fmt.Errorf("ordering features: %w", err)
	}
	if len(overrideOrder) > 0 {
		sorted = applyOverrideOrder(sorted, overrideOrder, hard)
	}
	return sorted, nil
}

func dependsOn(f *FeatureSet, id string, byBase map[string]string) bool {
	for dep := range f.Config.DependsOn {
		if byBase[baseID(dep)] == id {
			return true
		}
	}
	return false
}

// applyOverrideOrder moves features matching overrideOrder (by base ID) to
// the front, in that order. A moved feature's hard dependencies go right
// before it. The rest keep their sorted order.
func applyOverrideOrder(features []*FeatureSet, overrideOrder []string, hard map[string][]*FeatureSet) []*FeatureSet {
	byBase := make(map[string]*FeatureSet, len(features))
	pos := make(map[*FeatureSet]int, len(features))
	for i, f := range features {
		byBase[baseID(f.ConfigID)] = f
		pos[f] = i
	}

	moved := make(map[*FeatureSet]bool, len(features))
	front := make([]*FeatureSet, 0, len(features))
	var place func(f *FeatureSet)
	place = func(f *FeatureSet) {
		if moved[f] {
			return
		}
		moved[f] = true
		deps := slices.Clone(hard[f.ConfigID])
		slices.SortFunc(deps, func(a, b *FeatureSet) int { return pos[a] - pos[b] })
		for _, d := range deps {
			place(d)
		}
		front = append(front, f)
	}
	for _, id := range overrideOrder {
		if f, ok := byBase[baseID(id)]; ok {
			place(f)
		}
	}
	for _, f := range features {
		if !moved[f] {
			front = append(front, f)
		}
	}
	return front
}

// OverrideConflict is an overrideFeatureInstallOrder entry that lists a
// feature ahead of one of its hard dependencies.
type OverrideConflict struct {
	Index      int
	Feature    string
	Dependency string
}

// OverrideConflicts reports override entries whose feature depends on a
// feature that the override does not list earlier. OrderFeatures installs
// such dependencies first regardless.
func OverrideConflicts(features []*FeatureSet, overrideOrder []string) []OverrideConflict {
	byBase := make(map[string]*FeatureSet, len(features))
	for _, f := range features {
		byBase[baseID(f.ConfigID)] = f
	}

	listed := make(map[string]bool, len(overrideOrder))
	var conflicts []OverrideConflict
	for i, entry := range overrideOrder {
		base := baseID(entry)
		f, ok := byBase[base]
		if !ok {
			continue
		}
		deps := make([]string, 0, len(f.Config.DependsOn))
		for dep := range f.Config.DependsOn {
			deps = append(deps, baseID(dep))
		}
		slices.Sort(deps)
		for _, dep := range deps {
			target, ok := byBase[dep]
			if !ok || listed[dep] {
				continue
			}
			conflicts = append(conflicts, OverrideConflict{Index: i, Feature: f.ConfigID, Dependency: target.ConfigID})
		}
		listed[base] = true
	}
	return conflicts
}
