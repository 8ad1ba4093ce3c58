package core

import (
	"fmt"
	"sort"

	"python-buildpack/internal/types"
)

var layerKinds = map[types.LayerName]types.LayerKind{
	types.LayerPython: {Name: types.LayerPython, Role: types.LayerRoleRuntime, Build: true, Launch: true, Cache: true, Strategy: types.LayerStrategyRecreate},
	types.LayerPip:    {Name: types.LayerPip, Role: types.LayerRoleTool, Build: true, Cache: true, Strategy: types.LayerStrategyRecreate},
	types.LayerPoetry: {Name: types.LayerPoetry, Role: types.LayerRoleTool, Build: true, Cache: true, Strategy: types.LayerStrategyRecreate},
	types.LayerUV:     {Name: types.LayerUV, Role: types.LayerRoleTool, Build: true, Cache: true, Strategy: types.LayerStrategyRecreate},

	types.LayerPipCache:    {Name: types.LayerPipCache, Role: types.LayerRoleCache, Cache: true, Strategy: types.LayerStrategyUpdate},
	types.LayerPoetryCache: {Name: types.LayerPoetryCache, Role: types.LayerRoleCache, Cache: true, Strategy: types.LayerStrategyUpdate},
	types.LayerUVCache:     {Name: types.LayerUVCache, Role: types.LayerRoleCache, Cache: true, Strategy: types.LayerStrategyUpdate},

	types.LayerVenv: {Name: types.LayerVenv, Role: types.LayerRoleDependencies, Build: true, Launch: true, Cache: true, Strategy: types.LayerStrategyRecreate},
}

func LayerKindFor(name types.LayerName) (types.LayerKind, bool) {
	kind, ok := layerKinds[name]
	return kind, ok
}

// LayerNames lists every layer the buildpack may own, in name order.
func LayerNames() []types.LayerName {
	return []types.LayerName{
		types.LayerPip,
		types.LayerPipCache,
		types.LayerPoetry,
		types.LayerPoetryCache,
		types.LayerPython,
		types.LayerUV,
		types.LayerUVCache,
		types.LayerVenv,
	}
}

// DecideLayer compares the stored metadata with the desired record.
// Missing metadata (never written, unreadable or corrupt) always means
// the layer content cannot be trusted.
func DecideLayer(kind types.LayerKind, existing *types.LayerMetadata, desired types.LayerMetadata, fp types.Fingerprint) types.LayerDecision {
	decision := types.LayerDecision{Layer: kind.Name}
	if existing == nil {
		decision.Action = types.LayerActionRecreate
		decision.Reasons = []string{"No usable cache metadata was found"}
		return decision
	}
	if existing.Fingerprint == desired.Fingerprint && sameFlags(*existing, desired) {
		decision.Action = types.LayerActionKeep
		return decision
	}
	decision.Reasons = InvalidationReasons(*existing, desired, fp)
	if !sameFlags(*existing, desired) {
		decision.Action = types.LayerActionRecreate
		return decision
	}
	switch kind.Strategy {
	case types.LayerStrategyUpdate:
		decision.Action = types.LayerActionUpdate
	default:
		decision.Action = types.LayerActionRecreate
	}
	return decision
}

// InvalidationReasons explains a fingerprint mismatch component by
// component.
func InvalidationReasons(existing types.LayerMetadata, desired types.LayerMetadata, fp types.Fingerprint) []string {
	var reasons []string
	if !sameFlags(existing, desired) {
		reasons = append(reasons, "The layer type flags have changed")
	}
	for _, component := range fp.Components {
		previous, ok := existing.Extra[component.Key]
		switch {
		case !ok:
			reasons = append(reasons, fmt.Sprintf("The %s was not recorded by the previous build", component.Label))
		case previous == component.Value:
			continue
		case component.Opaque:
			reasons = append(reasons, fmt.Sprintf("The %s has changed", component.Label))
		default:
			reasons = append(reasons, fmt.Sprintf("The %s has changed from %s to %s", component.Label, previous, component.Value))
		}
	}
	current := map[string]struct{}{}
	for _, component := range fp.Components {
		current[component.Key] = struct{}{}
	}
	for _, key := range sortedKeys(existing.Extra) {
		if _, ok := current[key]; !ok {
			reasons = append(reasons, fmt.Sprintf("The cached %s is no longer used", key))
		}
	}
	if len(reasons) == 0 && existing.Fingerprint != desired.Fingerprint {
		reasons = append(reasons, "The cache fingerprint format has changed")
	}
	return reasons
}

func sameFlags(a types.LayerMetadata, b types.LayerMetadata) bool {
	return a.Build == b.Build && a.Launch == b.Launch && a.Cache == b.Cache
}

func sortedKeys(values map[string]string) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
