package ports

import "python-buildpack/internal/types"

type ReleaseCatalogPort interface {
	// LoadCatalog returns the embedded catalog, or the file at path when
	// path is set.
	LoadCatalog(path string) (types.ReleaseCatalog, error)
}
