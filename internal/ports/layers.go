package ports

import (
	"context"

	"python-buildpack/internal/types"
)

// LayerStorePort is the only reader and writer of layer metadata.
// Installers receive a content path and never touch the metadata file.
type LayerStorePort interface {
	Path(name types.LayerName) string
	// ReadMetadata returns nil when the metadata is missing or cannot be
	// decoded.
	ReadMetadata(ctx context.Context, name types.LayerName) (*types.LayerMetadata, error)
	WriteMetadata(name types.LayerName, metadata types.LayerMetadata) error
	// Reset removes the metadata, then the content, and leaves an empty
	// content directory behind.
	Reset(name types.LayerName) error
	// Remove deletes the metadata and the content of a layer that is no
	// longer used.
	Remove(name types.LayerName) error
	// RemoveMetadata deletes only the metadata, so a layer refreshed in
	// place reads as absent until it is committed again.
	RemoveMetadata(name types.LayerName) error
	Ensure(name types.LayerName) (string, error)
	WriteLaunchEnv(name types.LayerName, modifications []types.EnvModification) error
	// WriteLaunch replaces launch.toml with the given processes.
	WriteLaunch(processes []types.LaunchProcess) error
}
