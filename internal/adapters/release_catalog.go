package adapters

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"gopkg.in/yaml.v3"

	"python-buildpack/internal/ports"
	"python-buildpack/internal/types"
)

//go:embed release_catalog.yaml
var embeddedReleaseCatalog []byte

type ReleaseCatalogAdapter struct{}

func NewReleaseCatalogAdapter() ReleaseCatalogAdapter {
	return ReleaseCatalogAdapter{}
}

type releaseCatalogFile struct {
	DefaultVersion  string                 `yaml:"default_version"`
	RuntimeURL      string                 `yaml:"runtime_url"`
	UVURL           string                 `yaml:"uv_url"`
	PackageManagers map[string]string      `yaml:"package_managers"`
	Releases        []releaseCatalogRecord `yaml:"releases"`
}

type releaseCatalogRecord struct {
	Version           string            `yaml:"version"`
	EndOfLife         bool              `yaml:"end_of_life"`
	MinDistroVersions map[string]string `yaml:"min_distro_versions"`
}

func (a ReleaseCatalogAdapter) LoadCatalog(path string) (types.ReleaseCatalog, error) {
	data := embeddedReleaseCatalog
	source := "embedded release catalog"
	if strings.TrimSpace(path) != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return types.ReleaseCatalog{}, errbuilder.New().
				WithCode(errbuilder.CodeNotFound).
				WithMsg("release catalog file not found").
				WithCause(err)
		}
		data = content
		source = path
	}
	return parseReleaseCatalog(data, source)
}

func parseReleaseCatalog(data []byte, source string) (types.ReleaseCatalog, error) {
	var file releaseCatalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return types.ReleaseCatalog{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("failed to parse %s", source)).
			WithCause(err)
	}
	catalog := types.ReleaseCatalog{
		DefaultVersion:  strings.TrimSpace(file.DefaultVersion),
		RuntimeURL:      strings.TrimSpace(file.RuntimeURL),
		UVURL:           strings.TrimSpace(file.UVURL),
		PackageManagers: map[types.PackageManager]string{},
	}
	if catalog.DefaultVersion == "" || catalog.RuntimeURL == "" || catalog.UVURL == "" {
		return types.ReleaseCatalog{}, catalogError(source, "default_version, runtime_url and uv_url are required")
	}
	for _, manager := range []types.PackageManager{types.PackageManagerPip, types.PackageManagerPoetry, types.PackageManagerUV} {
		version := strings.TrimSpace(file.PackageManagers[string(manager)])
		if version == "" {
			return types.ReleaseCatalog{}, catalogError(source, fmt.Sprintf("package_managers.%s is required", manager))
		}
		catalog.PackageManagers[manager] = version
	}
	seen := map[types.PythonVersion]struct{}{}
	for _, record := range file.Releases {
		version, err := parseCatalogVersion(record.Version)
		if err != nil {
			return types.ReleaseCatalog{}, catalogError(source, err.Error())
		}
		if _, dup := seen[version]; dup {
			return types.ReleaseCatalog{}, catalogError(source, fmt.Sprintf("release %s is listed twice", version))
		}
		seen[version] = struct{}{}
		catalog.Releases = append(catalog.Releases, types.ReleaseCatalogEntry{
			Version:           version,
			EndOfLife:         record.EndOfLife,
			MinDistroVersions: record.MinDistroVersions,
		})
	}
	if len(catalog.Releases) == 0 {
		return types.ReleaseCatalog{}, catalogError(source, "no releases are listed")
	}
	return catalog, nil
}

func parseCatalogVersion(value string) (types.PythonVersion, error) {
	parts := strings.Split(strings.TrimSpace(value), ".")
	if len(parts) != 3 {
		return types.PythonVersion{}, fmt.Errorf("release %q is not X.Y.Z", value)
	}
	numbers := make([]int, 3)
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return types.PythonVersion{}, fmt.Errorf("release %q is not X.Y.Z", value)
		}
		numbers[i] = n
	}
	return types.PythonVersion{Major: numbers[0], Minor: numbers[1], Patch: numbers[2]}, nil
}

func catalogError(source string, msg string) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(fmt.Sprintf("invalid %s: %s", source, msg))
}

var _ ports.ReleaseCatalogPort = ReleaseCatalogAdapter{}
