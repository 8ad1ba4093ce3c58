package app

import (
	"context"
)

// Resolve answers which interpreter a build would install, without
// touching any layer.
func (s Service) Resolve(ctx context.Context, req ResolveRequest) (ResolveResult, error) {
	catalog, err := s.loadCatalog(req.CatalogPath)
	if err != nil {
		return ResolveResult{}, err
	}
	specifier, version, err := s.resolvePythonVersion(ctx, catalog, req.Target)
	if err != nil {
		return ResolveResult{}, err
	}
	return ResolveResult{Version: version, Specifier: specifier}, nil
}
