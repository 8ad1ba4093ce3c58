package core

import (
	"encoding/json"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	pep440 "github.com/aquasecurity/go-pep440-version"
	"mvdan.cc/sh/v3/syntax"

	"python-buildpack/internal/shared"
	"python-buildpack/internal/types"
)

// PackageManagerSpec is one variant of the closed set of supported
// package managers.
type PackageManagerSpec struct {
	Manager types.PackageManager
	// Marker is the file whose presence selects this manager.
	Marker string
	// Declarations are hashed into the dependency layer fingerprint.
	Declarations []string
	ToolLayer    types.LayerName
	CacheLayer   types.LayerName
}

// packageManagerSpecs is ordered by precedence, most specific lock first.
var packageManagerSpecs = []PackageManagerSpec{
	{
		Manager:      types.PackageManagerUV,
		Marker:       "uv.lock",
		Declarations: []string{"uv.lock", PyProjectFile},
		ToolLayer:    types.LayerUV,
		CacheLayer:   types.LayerUVCache,
	},
	{
		Manager:      types.PackageManagerPoetry,
		Marker:       "poetry.lock",
		Declarations: []string{"poetry.lock", PyProjectFile},
		ToolLayer:    types.LayerPoetry,
		CacheLayer:   types.LayerPoetryCache,
	},
	{
		Manager:      types.PackageManagerPip,
		Marker:       RequirementsFile,
		Declarations: []string{RequirementsFile},
		ToolLayer:    types.LayerPip,
		CacheLayer:   types.LayerPipCache,
	},
}

func PackageManagerPrecedence() []PackageManagerSpec {
	return append([]PackageManagerSpec(nil), packageManagerSpecs...)
}

func PackageManagerSpecFor(manager types.PackageManager) (PackageManagerSpec, bool) {
	for _, spec := range packageManagerSpecs {
		if spec.Manager == manager {
			return spec, true
		}
	}
	return PackageManagerSpec{}, false
}

func ToolLayerName(manager types.PackageManager) types.LayerName {
	spec, _ := PackageManagerSpecFor(manager)
	return spec.ToolLayer
}

func CacheLayerName(manager types.PackageManager) types.LayerName {
	spec, _ := PackageManagerSpecFor(manager)
	return spec.CacheLayer
}

// InstallPaths locates everything a manager invocation touches.
type InstallPaths struct {
	AppDir      string
	PythonLayer string
	ToolLayer   string
	CacheLayer  string
	VenvLayer   string
}

func (p InstallPaths) Python() string {
	return filepath.Join(p.PythonLayer, "bin", "python")
}

func (p InstallPaths) VenvPython() string {
	return filepath.Join(p.VenvLayer, "bin", "python")
}

// BundledPipPath is the glob of the pip wheel that ships with the
// interpreter. Wheels are importable zip archives, so pip can run
// straight from it.
func BundledPipPath(pythonLayer string, version types.PythonVersion) string {
	return filepath.Join(pythonLayer, "lib", "python"+version.MajorMinor(), "ensurepip", "_bundled", "pip-*.whl")
}

// ToolInstallCommand installs pip or Poetry into the tool layer using
// the bundled pip wheel. uv is downloaded instead and has no command.
func ToolInstallCommand(manager types.PackageManager, version string, bundledPipWheel string, paths InstallPaths) (types.Command, bool) {
	var requirement string
	switch manager {
	case types.PackageManagerPip:
		requirement = "pip==" + version
	case types.PackageManagerPoetry:
		requirement = "poetry==" + version
	default:
		return types.Command{}, false
	}
	return types.Command{
		Name: paths.Python(),
		Args: []string{
			filepath.Join(bundledPipWheel, "pip"),
			"install",
			"--isolated",
			"--no-cache-dir",
			"--no-input",
			"--no-warn-script-location",
			"--quiet",
			"--user",
			requirement,
		},
		Dir: paths.AppDir,
	}, true
}

// VenvCommand creates the dependency layer virtual environment. Packages
// are installed by the manager from outside the venv, so it needs no pip.
func VenvCommand(paths InstallPaths) types.Command {
	return types.Command{
		Name: paths.Python(),
		Args: []string{"-m", "venv", "--without-pip", paths.VenvLayer},
		Dir:  paths.AppDir,
	}
}

// InstallCommand runs the manager in isolation mode against the venv.
// Bytecode is compiled separately, so every manager skips it here.
func InstallCommand(manager types.PackageManager, managerVersion string, paths InstallPaths, upgrade bool) types.Command {
	switch manager {
	case types.PackageManagerUV:
		return types.Command{
			Name: filepath.Join(paths.ToolLayer, "bin", "uv"),
			Args: []string{
				"sync",
				"--locked",
				"--no-default-groups",
				"--no-config",
				"--no-progress",
				"--cache-dir", paths.CacheLayer,
			},
			Dir: paths.AppDir,
		}
	case types.PackageManagerPoetry:
		sync := []string{"sync"}
		if !poetryHasSyncCommand(managerVersion) {
			sync = []string{"install", "--sync"}
		}
		return types.Command{
			Name: filepath.Join(paths.ToolLayer, "bin", "poetry"),
			Args: append(sync,
				"--only", "main",
				"--no-interaction",
				"--no-ansi",
				"--no-plugins",
			),
			Dir: paths.AppDir,
		}
	default:
		args := []string{
			"--python", paths.VenvPython(),
			"install",
			"--isolated",
			"--no-input",
			"--no-compile",
			"--no-warn-script-location",
			"--progress-bar", "off",
			"--cache-dir", paths.CacheLayer,
			"--src", filepath.Join(paths.VenvLayer, "src"),
			"--requirement", RequirementsFile,
		}
		if upgrade {
			args = append(args, "--upgrade", "--upgrade-strategy", "eager")
		}
		return types.Command{
			Name: filepath.Join(paths.ToolLayer, "bin", "pip"),
			Args: args,
			Dir:  paths.AppDir,
		}
	}
}

// poetryHasSyncCommand reports whether the Poetry release has the sync
// command that replaced install --sync in 2.0.
func poetryHasSyncCommand(version string) bool {
	parsed, err := pep440.Parse(strings.TrimSpace(version))
	if err != nil {
		return false
	}
	since, err := pep440.Parse("2.0.0")
	if err != nil {
		return false
	}
	return parsed.Compare(since) >= 0
}

// installedPackagesScript prints the venv distributions in pip list JSON
// form. Poetry has no command that lists what is actually installed.
const installedPackagesScript = `import importlib.metadata, json
print(json.dumps(sorted(({"name": d.metadata["Name"], "version": d.version} for d in importlib.metadata.distributions()), key=lambda p: p["name"].lower())))`

// VerifyCommand asks the manager (or the venv interpreter) to report the
// installed set as JSON.
func VerifyCommand(manager types.PackageManager, paths InstallPaths) types.Command {
	switch manager {
	case types.PackageManagerUV:
		return types.Command{
			Name:    filepath.Join(paths.ToolLayer, "bin", "uv"),
			Args:    []string{"pip", "list", "--format=json", "--no-config", "--python", paths.VenvPython()},
			Dir:     paths.AppDir,
			Capture: true,
		}
	case types.PackageManagerPoetry:
		return types.Command{
			Name:    paths.VenvPython(),
			Args:    []string{"-c", installedPackagesScript},
			Dir:     paths.AppDir,
			Capture: true,
		}
	default:
		return types.Command{
			Name:    filepath.Join(paths.ToolLayer, "bin", "pip"),
			Args:    []string{"--python", paths.VenvPython(), "list", "--format=json", "--isolated"},
			Dir:     paths.AppDir,
			Capture: true,
		}
	}
}

// ParseInstalledPackages decodes pip list style JSON, normalizing names
// per PEP 503 and sorting by name.
func ParseInstalledPackages(output string) ([]types.InstalledPackage, error) {
	var entries []types.InstalledPackage
	if err := json.Unmarshal([]byte(strings.TrimSpace(output)), &entries); err != nil {
		return nil, types.NewBuildError(types.ErrorKindSubprocess, types.ReasonUnparsableOutput,
			errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("the installed package list is not valid JSON").
				WithCause(err))
	}
	packages := make([]types.InstalledPackage, 0, len(entries))
	for _, entry := range entries {
		name := shared.NormalizePipName(entry.Name)
		if name == "" {
			continue
		}
		packages = append(packages, types.InstalledPackage{Name: name, Version: strings.TrimSpace(entry.Version)})
	}
	sort.Slice(packages, func(i, j int) bool {
		return packages[i].Name < packages[j].Name
	})
	return packages, nil
}

// DescribeCommand renders a command as a shell line for logs, with
// credentials masked.
func DescribeCommand(cmd types.Command) string {
	parts := append([]string{filepath.Base(cmd.Name)}, cmd.Args...)
	quoted := make([]string, 0, len(parts))
	for _, part := range parts {
		if q, err := syntax.Quote(part, syntax.LangBash); err == nil {
			part = q
		}
		quoted = append(quoted, part)
	}
	return shared.RedactCredentials(strings.Join(quoted, " "))
}
