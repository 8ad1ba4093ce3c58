package app

import (
	"context"

	"python-buildpack/internal/core"
)

// Inspect reports the stored metadata of every buildpack layer and the
// decision the next build would make for it.
func (s Service) Inspect(ctx context.Context, req InspectRequest) (InspectResult, error) {
	plan, err := s.plan(ctx, req.Target, req.CatalogPath)
	if err != nil {
		return InspectResult{}, err
	}
	planned := map[string]layerPlan{}
	for _, layer := range plan.layers() {
		planned[string(layer.Kind.Name)] = layer
	}
	result := InspectResult{
		PythonVersion:  plan.Version,
		PackageManager: plan.Selection.Manager,
	}
	for _, name := range core.LayerNames() {
		if layer, ok := planned[string(name)]; ok {
			result.Layers = append(result.Layers, InspectLayer{
				Name:     name,
				Present:  layer.Existing != nil,
				Existing: layer.Existing,
				Decision: layer.Decision,
				Used:     true,
			})
			continue
		}
		existing, err := s.Layers.ReadMetadata(ctx, name)
		if err != nil {
			return InspectResult{}, err
		}
		result.Layers = append(result.Layers, InspectLayer{
			Name:     name,
			Present:  existing != nil,
			Existing: existing,
		})
	}
	return result, nil
}
