package core

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	pep440 "github.com/aquasecurity/go-pep440-version"

	"python-buildpack/internal/types"
)

// CheckLockedVersions compares the verified installed set with the lock.
// Every installed package the lock names must carry a locked version,
// and every required pin must be installed. A lock may list the same
// package more than once for different environments.
func CheckLockedVersions(lock types.Lockfile, installed []types.InstalledPackage) error {
	if len(lock.Packages) == 0 {
		return nil
	}
	locked := map[string][]string{}
	required := map[string]bool{}
	for _, pkg := range lock.Packages {
		locked[pkg.Name] = append(locked[pkg.Name], pkg.Version)
		if pkg.Required {
			required[pkg.Name] = true
		}
	}

	var problems []string
	present := map[string]bool{}
	for _, pkg := range installed {
		present[pkg.Name] = true
		versions, ok := locked[pkg.Name]
		if !ok || matchesAnyVersion(pkg.Version, versions) {
			continue
		}
		problems = append(problems, fmt.Sprintf("%s: locked %s, installed %s", pkg.Name, strings.Join(versions, " or "), pkg.Version))
	}
	for name := range required {
		if !present[name] {
			problems = append(problems, fmt.Sprintf("%s: locked %s, not installed", name, strings.Join(locked[name], " or ")))
		}
	}
	if len(problems) == 0 {
		return nil
	}
	sort.Strings(problems)
	return types.NewBuildError(types.ErrorKindSubprocess, types.ReasonVerificationFailed,
		errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg(fmt.Sprintf("the installed packages do not match %s:\n  %s", lock.Path, strings.Join(problems, "\n  "))))
}

// matchesAnyVersion compares PEP 440 versions, so 1.0 matches 1.0.0.
func matchesAnyVersion(installed string, versions []string) bool {
	got, gotErr := pep440.Parse(installed)
	for _, version := range versions {
		if version == installed {
			return true
		}
		if gotErr != nil {
			continue
		}
		want, err := pep440.Parse(version)
		if err == nil && got.Equal(want) {
			return true
		}
	}
	return false
}
