package core

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"python-buildpack/internal/types"
)

const (
	PythonVersionFile = ".python-version"
	PyProjectFile     = "pyproject.toml"
	RuntimeTxtFile    = "runtime.txt"
)

// VersionInputs holds the raw contents of every version source present
// in the app. Nil means the file does not exist.
type VersionInputs struct {
	PinFile    *string
	RuntimeTxt *string
	PyProject  *types.PyProject
}

// SelectVersionSpecifier applies source precedence: the pin file, then
// the project manifest, then the catalog default.
func SelectVersionSpecifier(inputs VersionInputs, defaultVersion string) (types.VersionSpecifier, error) {
	if inputs.RuntimeTxt != nil {
		return types.VersionSpecifier{}, runtimeTxtError(*inputs.RuntimeTxt)
	}
	if inputs.PinFile != nil {
		return ParsePinFile(*inputs.PinFile, PythonVersionFile)
	}
	if inputs.PyProject != nil {
		if value := strings.TrimSpace(inputs.PyProject.RequiresPython); value != "" {
			return types.VersionSpecifier{Raw: value, Source: types.VersionSourcePyProject, Origin: PyProjectFile}, nil
		}
		if value := strings.TrimSpace(inputs.PyProject.PoetryPython); value != "" {
			return types.VersionSpecifier{Raw: value, Source: types.VersionSourcePyProject, Origin: PyProjectFile}, nil
		}
	}
	return types.VersionSpecifier{Raw: defaultVersion, Source: types.VersionSourceDefault}, nil
}

// ParsePinFile reads a .python-version file. Blank lines and # comments
// are skipped and exactly one version must remain.
func ParsePinFile(contents string, origin string) (types.VersionSpecifier, error) {
	var versions []string
	for _, line := range strings.Split(contents, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		versions = append(versions, trimmed)
	}
	switch len(versions) {
	case 0:
		return types.VersionSpecifier{}, resolutionError(types.ReasonInvalidPinFile, errbuilder.CodeInvalidArgument,
			fmt.Sprintf("%s does not contain a Python version; add a line such as 3.13", origin))
	case 1:
		return types.VersionSpecifier{Raw: versions[0], Source: types.VersionSourcePinFile, Origin: origin}, nil
	default:
		quoted := make([]string, 0, len(versions))
		for _, version := range versions {
			quoted = append(quoted, strconv.QuoteToASCII(version))
		}
		return types.VersionSpecifier{}, resolutionError(types.ReasonInvalidPinFile, errbuilder.CodeInvalidArgument,
			fmt.Sprintf("%s contains multiple Python versions (%s); keep exactly one", origin, strings.Join(quoted, ", ")))
	}
}

func runtimeTxtError(contents string) error {
	requested := strings.TrimSpace(contents)
	suggestion := "3.13"
	if version, ok := strings.CutPrefix(requested, "python-"); ok {
		if parts, valid := parseNumericParts(version); valid && len(parts) >= 2 {
			suggestion = fmt.Sprintf("%d.%d", parts[0], parts[1])
		}
	}
	return resolutionError(types.ReasonRuntimeTxtUnsupported, errbuilder.CodeFailedPrecondition,
		fmt.Sprintf("%s (containing %s) is no longer supported; delete it and create a %s file containing %s",
			RuntimeTxtFile, strconv.QuoteToASCII(requested), PythonVersionFile, suggestion))
}
