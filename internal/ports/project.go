package ports

import "python-buildpack/internal/types"

// ProjectFilesPort reads files relative to the app directory.
type ProjectFilesPort interface {
	Exists(name string) bool
	ReadFile(name string) ([]byte, error)
	// ReadPyProject returns nil when pyproject.toml does not exist.
	ReadPyProject() (*types.PyProject, error)
	ReadLockfile(manager types.PackageManager) (types.Lockfile, error)
	// ReadProjectDescriptor returns nil when project.toml does not exist.
	ReadProjectDescriptor() (*types.ProjectDescriptor, error)
}
