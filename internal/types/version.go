package types

import "fmt"

type PythonVersion struct {
	Major int
	Minor int
	Patch int
}

func (v PythonVersion) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// MajorMinor returns the "X.Y" form used in interpreter paths such as
// include/python3.12.
func (v PythonVersion) MajorMinor() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

type VersionSpecifier struct {
	Raw    string
	Source VersionSource
	// Origin is the file the specifier was read from, empty for the
	// catalog default.
	Origin string
}

type ReleaseCatalogEntry struct {
	Version   PythonVersion
	EndOfLife bool
	// MinDistroVersions maps a distro name to the oldest distro release
	// the runtime archive is published for.
	MinDistroVersions map[string]string
}

type ReleaseCatalog struct {
	DefaultVersion  string
	Releases        []ReleaseCatalogEntry
	PackageManagers map[PackageManager]string
	RuntimeURL      string
	UVURL           string
}

// Target describes the base image a build runs on.
type Target struct {
	Stack         string
	Arch          string
	DistroName    string
	DistroVersion string
}

func (t Target) Distro() string {
	return fmt.Sprintf("%s-%s", t.DistroName, t.DistroVersion)
}
