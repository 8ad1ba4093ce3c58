package app

import "python-buildpack/internal/types"

type BuildRequest struct {
	Target types.Target
	// Environment is the ambient process environment, captured once.
	Environment         types.Environment
	CatalogPath         string
	RuntimeBaseURL      string
	UVBaseURL           string
	UpgradePolicy       types.UpgradePolicy
	DjangoCollectstatic bool
}

type BuildResult struct {
	PythonVersion  types.PythonVersion
	Specifier      types.VersionSpecifier
	PackageManager types.PackageManager
	Decisions      []types.LayerDecision
	Installed      []types.InstalledPackage
	CompiledFiles  int
	Warnings       []string
	// Function reports a Salesforce Function that passed its check and
	// got a web process.
	Function bool
}

type DetectRequest struct{}

type DetectResult struct {
	Detected    bool
	MatchedFile string
	// PackageManager is empty when no supported marker is present; the
	// build reports that as an error.
	PackageManager types.PackageManager
}

type ResolveRequest struct {
	Target      types.Target
	CatalogPath string
}

type ResolveResult struct {
	Version   types.PythonVersion
	Specifier types.VersionSpecifier
}

type InspectRequest struct {
	Target      types.Target
	CatalogPath string
}

type InspectLayer struct {
	Name     types.LayerName
	Present  bool
	Existing *types.LayerMetadata
	Decision types.LayerDecision
	// Used is false for layers of package managers other than the
	// selected one.
	Used bool
}

type InspectResult struct {
	PythonVersion  types.PythonVersion
	PackageManager types.PackageManager
	Layers         []InspectLayer
}
