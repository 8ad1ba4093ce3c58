package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"python-buildpack/internal/core"
	"python-buildpack/internal/types"
)

// layerPlan is the cache decision for one layer together with the
// metadata it will carry once populated.
type layerPlan struct {
	Kind        types.LayerKind
	Fingerprint types.Fingerprint
	Desired     types.LayerMetadata
	Existing    *types.LayerMetadata
	Decision    types.LayerDecision
}

// buildPlan holds everything decided before the first layer is touched.
type buildPlan struct {
	Catalog        types.ReleaseCatalog
	Specifier      types.VersionSpecifier
	Version        types.PythonVersion
	Selection      types.PackageManagerSelection
	ManagerVersion string
	Declarations   []string
	Lockfile       types.Lockfile
	// Function is set for Salesforce Function projects.
	Function bool
	Runtime        layerPlan
	Tool           layerPlan
	Cache          layerPlan
	Dependencies   layerPlan
	Warnings       []string
}

func (p buildPlan) layers() []layerPlan {
	return []layerPlan{p.Runtime, p.Tool, p.Cache, p.Dependencies}
}

func (p buildPlan) decisions() []types.LayerDecision {
	out := make([]types.LayerDecision, 0, 4)
	for _, layer := range p.layers() {
		out = append(out, layer.Decision)
	}
	return out
}

func (s Service) loadCatalog(path string) (types.ReleaseCatalog, error) {
	return s.Catalog.LoadCatalog(strings.TrimSpace(path))
}

// resolvePythonVersion reads every version source once and resolves the
// winning specifier against the catalog.
func (s Service) resolvePythonVersion(ctx context.Context, catalog types.ReleaseCatalog, target types.Target) (types.VersionSpecifier, types.PythonVersion, error) {
	var inputs core.VersionInputs
	if s.Project.Exists(core.RuntimeTxtFile) {
		data, err := s.Project.ReadFile(core.RuntimeTxtFile)
		if err != nil {
			return types.VersionSpecifier{}, types.PythonVersion{}, err
		}
		contents := string(data)
		inputs.RuntimeTxt = &contents
	}
	if s.Project.Exists(core.PythonVersionFile) {
		data, err := s.Project.ReadFile(core.PythonVersionFile)
		if err != nil {
			return types.VersionSpecifier{}, types.PythonVersion{}, err
		}
		contents := string(data)
		inputs.PinFile = &contents
	}
	pyproject, err := s.Project.ReadPyProject()
	if err != nil {
		return types.VersionSpecifier{}, types.PythonVersion{}, err
	}
	inputs.PyProject = pyproject

	specifier, err := core.SelectVersionSpecifier(inputs, catalog.DefaultVersion)
	if err != nil {
		return types.VersionSpecifier{}, types.PythonVersion{}, err
	}
	version, err := core.ResolveVersion(specifier, catalog)
	if err != nil {
		return types.VersionSpecifier{}, types.PythonVersion{}, err
	}
	if err := core.CheckAvailability(version, catalog, target); err != nil {
		return types.VersionSpecifier{}, types.PythonVersion{}, err
	}
	log.Ctx(ctx).Info().
		Str("version", version.String()).
		Str("source", string(specifier.Source)).
		Str("requested", specifier.Raw).
		Msg("resolved Python version")
	return specifier, version, nil
}

// readDeclarations collects the files hashed into the dependency layer
// fingerprint, in a stable order.
func (s Service) readDeclarations(manager types.PackageManager) ([]string, map[string][]byte, []string, error) {
	if manager == types.PackageManagerPip {
		scan, err := core.ScanRequirements(core.RequirementsFile, s.Project.ReadFile)
		if err != nil {
			return nil, nil, nil, err
		}
		return scan.Files, scan.Contents, scan.Warnings, nil
	}
	spec, ok := core.PackageManagerSpecFor(manager)
	if !ok {
		return nil, nil, nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("unsupported package manager %q", manager))
	}
	contents := make(map[string][]byte, len(spec.Declarations))
	for _, name := range spec.Declarations {
		data, err := s.Project.ReadFile(name)
		if err != nil {
			return nil, nil, nil, types.NewBuildError(types.ErrorKindProjectConfiguration, types.ReasonInvalidProjectFile,
				errbuilder.New().
					WithCode(errbuilder.CodeFailedPrecondition).
					WithMsg(fmt.Sprintf("%s requires %s, but it could not be read", spec.Marker, name)).
					WithCause(err))
		}
		contents[name] = data
	}
	return append([]string(nil), spec.Declarations...), contents, nil, nil
}

func (s Service) planLayer(ctx context.Context, name types.LayerName, fp types.Fingerprint) (layerPlan, error) {
	kind, ok := core.LayerKindFor(name)
	if !ok {
		return layerPlan{}, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("unknown layer %q", name))
	}
	existing, err := s.Layers.ReadMetadata(ctx, name)
	if err != nil {
		return layerPlan{}, err
	}
	desired := core.DesiredMetadata(kind, fp)
	return layerPlan{
		Kind:        kind,
		Fingerprint: fp,
		Desired:     desired,
		Existing:    existing,
		Decision:    core.DecideLayer(kind, existing, desired, fp),
	}, nil
}

func runtimeFingerprint(target types.Target, version types.PythonVersion) types.Fingerprint {
	return core.NewFingerprint().
		WithTarget(target).
		With(core.FingerprintKeyPythonVersion, "Python version", version.String()).
		Build()
}

// toolFingerprint uses the interpreter series only, so a patch upgrade
// keeps the installed manager.
func toolFingerprint(target types.Target, manager types.PackageManager, managerVersion string, version types.PythonVersion) types.Fingerprint {
	return core.NewFingerprint().
		WithTarget(target).
		With(core.FingerprintKeyManager, "package manager", string(manager)).
		With(core.FingerprintKeyManagerVersion, string(manager)+" version", managerVersion).
		With(core.FingerprintKeyPythonSeries, "Python series", version.MajorMinor()).
		Build()
}

func cacheFingerprint(target types.Target, manager types.PackageManager) types.Fingerprint {
	return core.NewFingerprint().
		WithTarget(target).
		With(core.FingerprintKeyManager, "package manager", string(manager)).
		Build()
}

func dependencyFingerprint(target types.Target, version types.PythonVersion, manager types.PackageManager, managerVersion string, files []string, contents map[string][]byte) types.Fingerprint {
	builder := core.NewFingerprint().
		WithTarget(target).
		With(core.FingerprintKeyPythonVersion, "Python version", version.String()).
		With(core.FingerprintKeyManager, "package manager", string(manager)).
		With(core.FingerprintKeyManagerVersion, string(manager)+" version", managerVersion)
	for _, name := range files {
		builder = builder.WithFile(name, contents[name])
	}
	return builder.Build()
}

// plan runs every decision of a build without side effects. Build and
// inspect share it.
func (s Service) plan(ctx context.Context, target types.Target, catalogPath string) (buildPlan, error) {
	descriptor, err := s.Project.ReadProjectDescriptor()
	if err != nil {
		return buildPlan{}, err
	}
	catalog, err := s.loadCatalog(catalogPath)
	if err != nil {
		return buildPlan{}, err
	}
	specifier, version, err := s.resolvePythonVersion(ctx, catalog, target)
	if err != nil {
		return buildPlan{}, err
	}
	selection, err := s.Managers.Select(s.Project.Exists)
	if err != nil {
		return buildPlan{}, err
	}
	plan := buildPlan{
		Catalog:   catalog,
		Specifier: specifier,
		Version:   version,
		Selection: selection,
		Function:  core.IsFunctionProject(descriptor),
	}
	if len(selection.Ignored) > 0 {
		plan.Warnings = append(plan.Warnings, fmt.Sprintf(
			"found %s as well as %s; using %s and ignoring the other files",
			selection.Marker, strings.Join(selection.Ignored, ", "), selection.Manager))
	}
	managerVersion, ok := catalog.PackageManagers[selection.Manager]
	if !ok || strings.TrimSpace(managerVersion) == "" {
		return buildPlan{}, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("the release catalog has no version for %s", selection.Manager))
	}
	plan.ManagerVersion = managerVersion

	files, contents, warnings, err := s.readDeclarations(selection.Manager)
	if err != nil {
		return buildPlan{}, err
	}
	plan.Declarations = files
	plan.Warnings = append(plan.Warnings, warnings...)
	// A lockfile that does not parse fails here instead of inside the
	// manager subprocess. Its pins are checked again after the install.
	if plan.Lockfile, err = s.Project.ReadLockfile(selection.Manager); err != nil {
		return buildPlan{}, err
	}

	if plan.Runtime, err = s.planLayer(ctx, types.LayerPython, runtimeFingerprint(target, version)); err != nil {
		return buildPlan{}, err
	}
	if plan.Tool, err = s.planLayer(ctx, core.ToolLayerName(selection.Manager), toolFingerprint(target, selection.Manager, managerVersion, version)); err != nil {
		return buildPlan{}, err
	}
	if plan.Cache, err = s.planLayer(ctx, core.CacheLayerName(selection.Manager), cacheFingerprint(target, selection.Manager)); err != nil {
		return buildPlan{}, err
	}
	depsFP := dependencyFingerprint(target, version, selection.Manager, managerVersion, files, contents)
	if plan.Dependencies, err = s.planLayer(ctx, types.LayerVenv, depsFP); err != nil {
		return buildPlan{}, err
	}
	return plan, nil
}
