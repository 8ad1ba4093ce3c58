package policies

import (
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"python-buildpack/internal/core"
	"python-buildpack/internal/types"
)

// unsupportedManagerFiles belong to tools this buildpack does not drive.
// They only improve the message when no supported marker exists.
var unsupportedManagerFiles = []struct {
	file string
	tool string
}{
	{file: "Pipfile", tool: "Pipenv"},
	{file: "Pipfile.lock", tool: "Pipenv"},
	{file: "pdm.lock", tool: "PDM"},
	{file: "setup.py", tool: "setuptools"},
}

// PackageManagerPolicy picks exactly one manager from the marker files
// present, in precedence order.
type PackageManagerPolicy struct {
	Precedence []core.PackageManagerSpec
}

func NewPackageManagerPolicy() PackageManagerPolicy {
	return PackageManagerPolicy{Precedence: core.PackageManagerPrecedence()}
}

func (p PackageManagerPolicy) Select(exists func(name string) bool) (types.PackageManagerSelection, error) {
	var selection types.PackageManagerSelection
	for _, spec := range p.Precedence {
		if !exists(spec.Marker) {
			continue
		}
		if selection.Manager == "" {
			selection.Manager = spec.Manager
			selection.Marker = spec.Marker
			continue
		}
		selection.Ignored = append(selection.Ignored, spec.Marker)
	}
	if selection.Manager != "" {
		return selection, nil
	}
	return types.PackageManagerSelection{}, types.NewBuildError(types.ErrorKindProjectConfiguration, types.ReasonNoPackageManager,
		errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg(noPackageManagerMessage(p.Precedence, exists)))
}

func noPackageManagerMessage(precedence []core.PackageManagerSpec, exists func(name string) bool) string {
	markers := make([]string, 0, len(precedence))
	for _, spec := range precedence {
		markers = append(markers, fmt.Sprintf("%s (%s)", spec.Marker, spec.Manager))
	}
	msg := fmt.Sprintf("no Python package manager files were found; add one of: %s", strings.Join(markers, ", "))
	for _, candidate := range unsupportedManagerFiles {
		if exists(candidate.file) {
			msg += fmt.Sprintf(". Found %s, but %s is not supported; migrate the project to uv, Poetry or a requirements.txt file", candidate.file, candidate.tool)
			break
		}
	}
	return msg
}
