package adapters

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ZanzyTHEbar/errbuilder-go"

	"python-buildpack/internal/ports"
	"python-buildpack/internal/shared"
	"python-buildpack/internal/types"
)

// ProjectFilesAdapter reads the app source directory. Names are slash
// separated and relative to AppDir.
type ProjectFilesAdapter struct {
	AppDir string
}

func NewProjectFilesAdapter(appDir string) ProjectFilesAdapter {
	return ProjectFilesAdapter{AppDir: appDir}
}

type pyprojectFile struct {
	Project struct {
		RequiresPython string `toml:"requires-python"`
	} `toml:"project"`
	Tool struct {
		Poetry struct {
			Dependencies map[string]interface{} `toml:"dependencies"`
		} `toml:"poetry"`
	} `toml:"tool"`
}

type projectDescriptorFile struct {
	Com struct {
		Salesforce *struct {
			Type *string `toml:"type"`
		} `toml:"salesforce"`
	} `toml:"com"`
}

type lockfileDocument struct {
	Packages []struct {
		Name    string `toml:"name"`
		Version string `toml:"version"`
	} `toml:"package"`
}

func (a ProjectFilesAdapter) path(name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("%s is outside the app directory", name))
	}
	return filepath.Join(a.AppDir, clean), nil
}

// Exists reports whether name is present. A trailing slash only matches
// a directory.
func (a ProjectFilesAdapter) Exists(name string) bool {
	path, err := a.path(name)
	if err != nil {
		return false
	}
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	if strings.HasSuffix(name, "/") {
		return info.IsDir()
	}
	return true
}

func (a ProjectFilesAdapter) ReadFile(name string) ([]byte, error) {
	path, err := a.path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("%s not found", name)).
			WithCause(err)
	}
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to read %s", name)).
			WithCause(err)
	}
	return data, nil
}

func (a ProjectFilesAdapter) ReadPyProject() (*types.PyProject, error) {
	if !a.Exists("pyproject.toml") {
		return nil, nil
	}
	data, err := a.ReadFile("pyproject.toml")
	if err != nil {
		return nil, err
	}
	var file pyprojectFile
	if _, err := toml.Decode(string(data), &file); err != nil {
		return nil, invalidProjectFile("pyproject.toml", err)
	}
	return &types.PyProject{
		RequiresPython: strings.TrimSpace(file.Project.RequiresPython),
		PoetryPython:   poetryPythonConstraint(file.Tool.Poetry.Dependencies["python"]),
	}, nil
}

// poetryPythonConstraint accepts both python = "^3.12" and
// python = { version = "^3.12" }.
func poetryPythonConstraint(value interface{}) string {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case map[string]interface{}:
		if version, ok := v["version"].(string); ok {
			return strings.TrimSpace(version)
		}
	}
	return ""
}

// ReadLockfile lists the pinned packages of the manager's lock. For pip,
// only name==version lines of requirements.txt count as pinned, and those
// without an environment marker are required.
func (a ProjectFilesAdapter) ReadLockfile(manager types.PackageManager) (types.Lockfile, error) {
	name := lockfileName(manager)
	data, err := a.ReadFile(name)
	if err != nil {
		return types.Lockfile{}, err
	}
	lock := types.Lockfile{Path: name}
	switch manager {
	case types.PackageManagerUV, types.PackageManagerPoetry:
		var doc lockfileDocument
		if _, err := toml.Decode(string(data), &doc); err != nil {
			return types.Lockfile{}, invalidProjectFile(name, err)
		}
		for _, pkg := range doc.Packages {
			lock.Packages = append(lock.Packages, types.LockedPackage{
				Name:    shared.NormalizePipName(pkg.Name),
				Version: strings.TrimSpace(pkg.Version),
			})
		}
	default:
		lock.Packages = pinnedRequirements(string(data))
	}
	sort.Slice(lock.Packages, func(i, j int) bool {
		return lock.Packages[i].Name < lock.Packages[j].Name
	})
	return lock, nil
}

// ReadProjectDescriptor reads the [com.salesforce] table of project.toml.
// Unknown project types are rejected so a misspelt "function" fails the
// build.
func (a ProjectFilesAdapter) ReadProjectDescriptor() (*types.ProjectDescriptor, error) {
	const name = "project.toml"
	if !a.Exists(name) {
		return nil, nil
	}
	data, err := a.ReadFile(name)
	if err != nil {
		return nil, err
	}
	var file projectDescriptorFile
	if _, err := toml.Decode(string(data), &file); err != nil {
		return nil, invalidProjectFile(name, err)
	}
	descriptor := &types.ProjectDescriptor{}
	salesforce := file.Com.Salesforce
	if salesforce == nil {
		return descriptor, nil
	}
	if salesforce.Type == nil || types.SalesforceProjectType(*salesforce.Type) != types.SalesforceProjectFunction {
		found := "no type"
		if salesforce.Type != nil {
			found = fmt.Sprintf("type %q", *salesforce.Type)
		}
		return nil, types.NewBuildError(types.ErrorKindProjectConfiguration, types.ReasonInvalidProjectFile,
			errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("%s sets [com.salesforce] with %s; the only supported type is %q", name, found, types.SalesforceProjectFunction)))
	}
	descriptor.SalesforceType = types.SalesforceProjectFunction
	return descriptor, nil
}

func lockfileName(manager types.PackageManager) string {
	switch manager {
	case types.PackageManagerUV:
		return "uv.lock"
	case types.PackageManagerPoetry:
		return "poetry.lock"
	default:
		return "requirements.txt"
	}
}

func pinnedRequirements(content string) []types.LockedPackage {
	var packages []types.LockedPackage
	for _, raw := range strings.Split(content, "\n") {
		line := strings.TrimSpace(raw)
		if idx := strings.Index(line, " #"); idx != -1 {
			line = strings.TrimSpace(line[:idx])
		}
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "-") {
			continue
		}
		required := true
		if idx := strings.IndexAny(line, ";"); idx != -1 {
			line = strings.TrimSpace(line[:idx])
			required = false
		}
		name, version, ok := strings.Cut(line, "==")
		if !ok {
			continue
		}
		if idx := strings.Index(name, "["); idx != -1 {
			name = name[:idx]
		}
		fields := strings.Fields(version)
		if len(fields) == 0 {
			continue
		}
		packages = append(packages, types.LockedPackage{
			Name:     shared.NormalizePipName(name),
			Version:  fields[0],
			Required: required,
		})
	}
	return packages
}

func invalidProjectFile(name string, err error) error {
	return types.NewBuildError(types.ErrorKindProjectConfiguration, types.ReasonInvalidProjectFile,
		errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("%s is not valid TOML; check the file for syntax errors", name)).
			WithCause(err))
}

var _ ports.ProjectFilesPort = ProjectFilesAdapter{}
