package core

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"python-buildpack/internal/types"
)

// SourceDateEpoch pins embedded timestamps (1980-01-01T00:00:01Z, the
// earliest value zip based wheels accept).
const SourceDateEpoch = "315532801"

// ForbiddenEnvVars redirect the interpreter home, the install target or
// the package manager cache, which breaks a relocated runtime or an
// isolated install.
var ForbiddenEnvVars = []string{
	"PIP_CACHE_DIR",
	"PIP_PREFIX",
	"PIP_PYTHON",
	"PIP_ROOT",
	"PIP_TARGET",
	"PIP_USER",
	"POETRY_CACHE_DIR",
	"POETRY_VIRTUALENVS_PATH",
	"PYTHONHOME",
	"PYTHONINSPECT",
	"PYTHONNOUSERSITE",
	"PYTHONPLATLIBDIR",
	"PYTHONUSERBASE",
	"UV_CACHE_DIR",
	"UV_PROJECT_ENVIRONMENT",
	"VIRTUAL_ENV",
}

// CheckForbiddenEnv fails on the first denylisted variable present in
// the snapshot, in name order.
func CheckForbiddenEnv(snapshot types.Environment) error {
	for _, name := range ForbiddenEnvVars {
		if _, ok := snapshot.Lookup(name); !ok {
			continue
		}
		return types.NewBuildError(types.ErrorKindEnvironmentConflict, "",
			errbuilder.New().
				WithCode(errbuilder.CodeFailedPrecondition).
				WithMsg(fmt.Sprintf("the environment variable %s is set, but it conflicts with the Python runtime or package manager configuration this buildpack manages; unset %s (for example remove it from your app config vars) and retry", name, name)))
	}
	return nil
}

// BaseModifications are applied to every build and launch environment
// before any layer contribution.
func BaseModifications() []types.EnvModification {
	return []types.EnvModification{
		{Name: "LANG", Value: "C.UTF-8", Behavior: types.EnvBehaviorOverride, Scope: types.EnvScopeAll},
		{Name: "PIP_DISABLE_PIP_VERSION_CHECK", Value: "1", Behavior: types.EnvBehaviorOverride, Scope: types.EnvScopeAll},
		{Name: "PYTHONUNBUFFERED", Value: "1", Behavior: types.EnvBehaviorOverride, Scope: types.EnvScopeAll},
		{Name: "SOURCE_DATE_EPOCH", Value: SourceDateEpoch, Behavior: types.EnvBehaviorDefault, Scope: types.EnvScopeBuild},
	}
}

// BuildEnvironment composes the process environment for phase. Layer
// contributions apply runtime first, then tool, then dependencies, and
// path entries prepend, so later layers shadow earlier ones.
func BuildEnvironment(snapshot types.Environment, contributions []types.LayerContribution, phase types.Phase) (types.Environment, error) {
	if err := CheckForbiddenEnv(snapshot); err != nil {
		return nil, err
	}
	env := snapshot.Clone()
	for _, mod := range BaseModifications() {
		applyModification(env, mod, phase)
	}
	ordered := append([]types.LayerContribution(nil), contributions...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Role < ordered[j].Role
	})
	for _, contribution := range ordered {
		for _, mod := range contribution.Modifications {
			applyModification(env, mod, phase)
		}
	}
	return env, nil
}

// LaunchModifications returns the modifications of a contribution that
// must survive into the running app.
func LaunchModifications(contribution types.LayerContribution) []types.EnvModification {
	var out []types.EnvModification
	for _, mod := range contribution.Modifications {
		if appliesTo(mod.Scope, types.PhaseLaunch) {
			out = append(out, mod)
		}
	}
	return out
}

func applyModification(env types.Environment, mod types.EnvModification, phase types.Phase) {
	if !appliesTo(mod.Scope, phase) {
		return
	}
	switch mod.Behavior {
	case types.EnvBehaviorPrepend:
		delimiter := mod.Delimiter
		if delimiter == "" {
			delimiter = string(os.PathListSeparator)
		}
		if current, ok := env.Lookup(mod.Name); ok && current != "" {
			env[mod.Name] = mod.Value + delimiter + current
			return
		}
		env[mod.Name] = mod.Value
	case types.EnvBehaviorDefault:
		if _, ok := env.Lookup(mod.Name); ok {
			return
		}
		env[mod.Name] = mod.Value
	default:
		env[mod.Name] = mod.Value
	}
}

func appliesTo(scope types.EnvScope, phase types.Phase) bool {
	switch scope {
	case types.EnvScopeBuild:
		return phase == types.PhaseBuild
	case types.EnvScopeLaunch:
		return phase == types.PhaseLaunch
	default:
		return true
	}
}

// RuntimeContribution describes what the interpreter layer exports.
func RuntimeContribution(layerPath string, version types.PythonVersion) types.LayerContribution {
	return types.LayerContribution{
		Layer: types.LayerPython,
		Role:  types.LayerRoleRuntime,
		Path:  layerPath,
		Modifications: []types.EnvModification{
			{Name: "PATH", Value: filepath.Join(layerPath, "bin"), Behavior: types.EnvBehaviorPrepend, Scope: types.EnvScopeAll},
			{Name: "PYTHONHOME", Value: layerPath, Behavior: types.EnvBehaviorOverride, Scope: types.EnvScopeAll},
			{Name: "CPATH", Value: filepath.Join(layerPath, "include", "python"+version.MajorMinor()), Behavior: types.EnvBehaviorPrepend, Scope: types.EnvScopeBuild},
			{Name: "PKG_CONFIG_PATH", Value: filepath.Join(layerPath, "lib", "pkgconfig"), Behavior: types.EnvBehaviorPrepend, Scope: types.EnvScopeBuild},
		},
	}
}

// ToolContribution describes what a package manager tool layer exports.
// Tool layers are build only.
func ToolContribution(manager types.PackageManager, layerPath string) types.LayerContribution {
	mods := []types.EnvModification{
		{Name: "PATH", Value: filepath.Join(layerPath, "bin"), Behavior: types.EnvBehaviorPrepend, Scope: types.EnvScopeBuild},
	}
	switch manager {
	case types.PackageManagerUV:
		mods = append(mods,
			types.EnvModification{Name: "UV_NO_MANAGED_PYTHON", Value: "1", Behavior: types.EnvBehaviorOverride, Scope: types.EnvScopeBuild},
			types.EnvModification{Name: "UV_PYTHON_DOWNLOADS", Value: "never", Behavior: types.EnvBehaviorOverride, Scope: types.EnvScopeBuild},
		)
	default:
		mods = append(mods,
			types.EnvModification{Name: "PYTHONUSERBASE", Value: layerPath, Behavior: types.EnvBehaviorOverride, Scope: types.EnvScopeBuild},
		)
	}
	return types.LayerContribution{
		Layer:         ToolLayerName(manager),
		Role:          types.LayerRoleTool,
		Path:          layerPath,
		Modifications: mods,
	}
}

// DependencyContribution describes what the dependency layer exports.
func DependencyContribution(manager types.PackageManager, venvPath string, cachePath string) types.LayerContribution {
	mods := []types.EnvModification{
		{Name: "PATH", Value: filepath.Join(venvPath, "bin"), Behavior: types.EnvBehaviorPrepend, Scope: types.EnvScopeAll},
		{Name: "VIRTUAL_ENV", Value: venvPath, Behavior: types.EnvBehaviorOverride, Scope: types.EnvScopeAll},
	}
	switch manager {
	case types.PackageManagerUV:
		mods = append(mods,
			types.EnvModification{Name: "UV_PROJECT_ENVIRONMENT", Value: venvPath, Behavior: types.EnvBehaviorOverride, Scope: types.EnvScopeBuild},
			types.EnvModification{Name: "UV_CACHE_DIR", Value: cachePath, Behavior: types.EnvBehaviorOverride, Scope: types.EnvScopeBuild},
		)
	case types.PackageManagerPoetry:
		mods = append(mods,
			types.EnvModification{Name: "POETRY_CACHE_DIR", Value: cachePath, Behavior: types.EnvBehaviorOverride, Scope: types.EnvScopeBuild},
			types.EnvModification{Name: "POETRY_VIRTUALENVS_CREATE", Value: "false", Behavior: types.EnvBehaviorOverride, Scope: types.EnvScopeBuild},
		)
	}
	return types.LayerContribution{
		Layer:         types.LayerVenv,
		Role:          types.LayerRoleDependencies,
		Path:          venvPath,
		Modifications: mods,
	}
}
