package app

import (
	"context"
	"os"
	"path/filepath"

	assert "github.com/ZanzyTHEbar/assert-lib"
	"github.com/rs/zerolog/log"

	"python-buildpack/internal/core"
	"python-buildpack/internal/types"
)

// prepareLayer applies the cache decision to the filesystem and returns
// the layer path. Recreate empties the layer (metadata first) before
// anything is written to it.
func (s Service) prepareLayer(ctx context.Context, layer layerPlan) (string, error) {
	name := layer.Kind.Name
	assert.NotEmpty(ctx, string(name), "layer name must be set")
	event := log.Ctx(ctx).Info().Str("layer", string(name)).Str("action", string(layer.Decision.Action))
	if len(layer.Decision.Reasons) > 0 {
		event = event.Strs("reasons", layer.Decision.Reasons)
	}
	event.Msg("layer decision")

	switch layer.Decision.Action {
	case types.LayerActionKeep:
		return s.Layers.Path(name), nil
	case types.LayerActionUpdate:
		return s.Layers.Ensure(name)
	default:
		if err := s.Layers.Reset(name); err != nil {
			return "", err
		}
		return s.Layers.Path(name), nil
	}
}

// commitLayer records the layer as reusable. It runs only after the
// layer content is complete.
func (s Service) commitLayer(layer layerPlan) error {
	return s.Layers.WriteMetadata(layer.Kind.Name, layer.Desired)
}

// launchEnv selects the modifications a launch layer persists. PATH is
// left out because the platform already adds the bin of every launch
// layer.
func launchEnv(contributions ...types.LayerContribution) []types.EnvModification {
	var out []types.EnvModification
	for _, contribution := range contributions {
		for _, mod := range core.LaunchModifications(contribution) {
			if mod.Name == "PATH" {
				continue
			}
			out = append(out, mod)
		}
	}
	return out
}

func baseContribution() types.LayerContribution {
	return types.LayerContribution{Modifications: core.BaseModifications()}
}

// firstMatch returns the first path matching pattern, or "" when none
// does.
func firstMatch(pattern string) string {
	matches, err := filepath.Glob(pattern)
	if err != nil || len(matches) == 0 {
		return ""
	}
	return matches[0]
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
