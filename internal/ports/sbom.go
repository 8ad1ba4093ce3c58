package ports

import "python-buildpack/internal/types"

type SBOMPort interface {
	WriteSBOM(path string, subject string, createdAt string, packages []types.InstalledPackage) error
}
