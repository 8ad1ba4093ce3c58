package core

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ZanzyTHEbar/errbuilder-go"
	pep440 "github.com/aquasecurity/go-pep440-version"
	debversion "github.com/knqyf263/go-deb-version"

	"python-buildpack/internal/types"
)

// ResolveVersion turns a specifier into one catalog release. It is a pure
// function of its inputs so fingerprints built from the result are stable.
func ResolveVersion(spec types.VersionSpecifier, catalog types.ReleaseCatalog) (types.PythonVersion, error) {
	if err := checkPlainText(spec); err != nil {
		return types.PythonVersion{}, err
	}
	raw := strings.TrimSpace(spec.Raw)
	if raw == "" {
		return types.PythonVersion{}, types.NewFormatError(types.FormatProblemUnparseable,
			errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("empty Python version %s", describeOrigin(spec))))
	}
	if isConstraintExpression(raw) {
		return resolveConstraint(spec, raw, catalog)
	}
	parts, ok := parseNumericParts(raw)
	if !ok {
		return types.PythonVersion{}, types.NewFormatError(types.FormatProblemUnparseable,
			errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("invalid Python version %q %s; expected a version like %s", raw, describeOrigin(spec), catalog.DefaultVersion)))
	}
	switch len(parts) {
	case 1:
		return types.PythonVersion{}, majorOnlyError(spec, parts[0], catalog)
	case 2:
		return resolveMinor(spec, parts[0], parts[1], catalog)
	case 3:
		return resolveExact(spec, types.PythonVersion{Major: parts[0], Minor: parts[1], Patch: parts[2]}, catalog)
	default:
		return types.PythonVersion{}, types.NewFormatError(types.FormatProblemUnparseable,
			errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("invalid Python version %q %s; expected X.Y or X.Y.Z", raw, describeOrigin(spec))))
	}
}

// CheckAvailability verifies the runtime archive is published for the
// target distro.
func CheckAvailability(version types.PythonVersion, catalog types.ReleaseCatalog, target types.Target) error {
	entry, ok := findRelease(catalog, version)
	if !ok {
		return resolutionError(types.ReasonUnknownVersion, errbuilder.CodeNotFound,
			fmt.Sprintf("Python %s is not in the release catalog", version))
	}
	floor, ok := entry.MinDistroVersions[target.DistroName]
	if !ok || strings.TrimSpace(target.DistroVersion) == "" {
		return nil
	}
	wanted, err := debversion.NewVersion(target.DistroVersion)
	if err != nil {
		return resolutionError(types.ReasonUnavailableForStack, errbuilder.CodeInvalidArgument,
			fmt.Sprintf("invalid distro version %q for stack %s", target.DistroVersion, target.Stack))
	}
	minimum, err := debversion.NewVersion(floor)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("invalid catalog distro floor %q for Python %s", floor, version)).
			WithCause(err)
	}
	if wanted.LessThan(minimum) {
		return resolutionError(types.ReasonUnavailableForStack, errbuilder.CodeFailedPrecondition,
			fmt.Sprintf("Python %s is not available for %s; it requires %s %s or newer", version, target.Distro(), target.DistroName, floor))
	}
	return nil
}

func resolveExact(spec types.VersionSpecifier, wanted types.PythonVersion, catalog types.ReleaseCatalog) (types.PythonVersion, error) {
	entry, ok := findRelease(catalog, wanted)
	if !ok {
		msg := fmt.Sprintf("Python %s %s is not a known release", wanted, describeOrigin(spec))
		if latest, found := latestPatch(catalog, wanted.Major, wanted.Minor); found {
			msg = fmt.Sprintf("%s; the latest %s release is %s", msg, wanted.MajorMinor(), latest.Version)
		}
		return types.PythonVersion{}, resolutionError(types.ReasonUnknownVersion, errbuilder.CodeNotFound, msg)
	}
	if entry.EndOfLife {
		return types.PythonVersion{}, endOfLifeError(spec, entry.Version)
	}
	return entry.Version, nil
}

func resolveMinor(spec types.VersionSpecifier, major int, minor int, catalog types.ReleaseCatalog) (types.PythonVersion, error) {
	entry, ok := latestPatch(catalog, major, minor)
	if !ok {
		return types.PythonVersion{}, resolutionError(types.ReasonUnknownMinor, errbuilder.CodeNotFound,
			fmt.Sprintf("Python %d.%d %s is not a known release series; supported series are %s", major, minor, describeOrigin(spec), strings.Join(supportedSeries(catalog), ", ")))
	}
	if entry.EndOfLife {
		return types.PythonVersion{}, endOfLifeError(spec, entry.Version)
	}
	return entry.Version, nil
}

func resolveConstraint(spec types.VersionSpecifier, raw string, catalog types.ReleaseCatalog) (types.PythonVersion, error) {
	expr := NormalizeVersionConstraint(raw)
	specifiers, err := pep440.NewSpecifiers(expr)
	if err != nil {
		return types.PythonVersion{}, types.NewFormatError(types.FormatProblemUnparseable,
			errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("invalid Python version constraint %q %s", raw, describeOrigin(spec))).
				WithCause(err))
	}
	for _, entry := range sortedReleases(catalog) {
		parsed, err := pep440.Parse(entry.Version.String())
		if err != nil {
			continue
		}
		if !specifiers.Check(parsed) {
			continue
		}
		if entry.EndOfLife {
			return types.PythonVersion{}, endOfLifeError(spec, entry.Version)
		}
		return entry.Version, nil
	}
	return types.PythonVersion{}, resolutionError(types.ReasonUnsatisfiableConstraint, errbuilder.CodeFailedPrecondition,
		fmt.Sprintf("no known Python release satisfies %q %s", raw, describeOrigin(spec)))
}

func majorOnlyError(spec types.VersionSpecifier, major int, catalog types.ReleaseCatalog) error {
	for _, entry := range catalog.Releases {
		if entry.Version.Major == major && !entry.EndOfLife {
			return types.NewFormatError(types.FormatProblemMajorOnly,
				errbuilder.New().
					WithCode(errbuilder.CodeInvalidArgument).
					WithMsg(fmt.Sprintf("Python version %d %s is missing a minor version; request a series such as %s", major, describeOrigin(spec), catalog.DefaultVersion)))
		}
	}
	return types.NewFormatError(types.FormatProblemUnsupportedMajor,
		errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("Python major version %d %s is not supported", major, describeOrigin(spec))))
}

func endOfLifeError(spec types.VersionSpecifier, version types.PythonVersion) error {
	return resolutionError(types.ReasonEndOfLifeVersion, errbuilder.CodeFailedPrecondition,
		fmt.Sprintf("Python %s %s has reached its upstream end of life and is no longer supported; upgrade to a newer series", version.MajorMinor(), describeOrigin(spec)))
}

// checkPlainText rejects control, format and invalid bytes. These usually
// come from copy and paste and would otherwise be reported as a
// confusing parse failure.
func checkPlainText(spec types.VersionSpecifier) error {
	raw := strings.TrimSpace(spec.Raw)
	for offset := 0; offset < len(raw); {
		r, size := utf8.DecodeRuneInString(raw[offset:])
		if r == utf8.RuneError && size <= 1 {
			return invisibleCharacterError(spec, raw, fmt.Sprintf("byte 0x%02X", raw[offset]), offset)
		}
		if r != ' ' && (!unicode.IsPrint(r) || unicode.Is(unicode.Cf, r)) {
			return invisibleCharacterError(spec, raw, fmt.Sprintf("character U+%04X", r), offset)
		}
		offset += size
	}
	return nil
}

func invisibleCharacterError(spec types.VersionSpecifier, raw string, what string, offset int) error {
	return types.NewFormatError(types.FormatProblemInvisibleCharacter,
		errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("Python version %s %s contains the invisible or non-printable %s at byte offset %d; it is not a plain version string, retype it by hand", strconv.QuoteToASCII(raw), describeOrigin(spec), what, offset)))
}

func isConstraintExpression(raw string) bool {
	return strings.ContainsAny(raw, "<>=!~^*,|")
}

func parseNumericParts(raw string) ([]int, bool) {
	fields := strings.Split(raw, ".")
	parts := make([]int, 0, len(fields))
	for _, field := range fields {
		if field == "" {
			return nil, false
		}
		for _, r := range field {
			if r < '0' || r > '9' {
				return nil, false
			}
		}
		value, err := strconv.Atoi(field)
		if err != nil {
			return nil, false
		}
		parts = append(parts, value)
	}
	return parts, true
}

func findRelease(catalog types.ReleaseCatalog, version types.PythonVersion) (types.ReleaseCatalogEntry, bool) {
	for _, entry := range catalog.Releases {
		if entry.Version == version {
			return entry, true
		}
	}
	return types.ReleaseCatalogEntry{}, false
}

func latestPatch(catalog types.ReleaseCatalog, major int, minor int) (types.ReleaseCatalogEntry, bool) {
	for _, entry := range sortedReleases(catalog) {
		if entry.Version.Major == major && entry.Version.Minor == minor {
			return entry, true
		}
	}
	return types.ReleaseCatalogEntry{}, false
}

// sortedReleases returns the catalog newest first.
func sortedReleases(catalog types.ReleaseCatalog) []types.ReleaseCatalogEntry {
	ordered := append([]types.ReleaseCatalogEntry(nil), catalog.Releases...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return compareVersions(ordered[i].Version, ordered[j].Version) > 0
	})
	return ordered
}

func compareVersions(a types.PythonVersion, b types.PythonVersion) int {
	switch {
	case a.Major != b.Major:
		return sign(a.Major - b.Major)
	case a.Minor != b.Minor:
		return sign(a.Minor - b.Minor)
	default:
		return sign(a.Patch - b.Patch)
	}
}

func sign(value int) int {
	switch {
	case value < 0:
		return -1
	case value > 0:
		return 1
	default:
		return 0
	}
}

func supportedSeries(catalog types.ReleaseCatalog) []string {
	seen := map[string]struct{}{}
	var series []string
	for _, entry := range sortedReleases(catalog) {
		if entry.EndOfLife {
			continue
		}
		key := entry.Version.MajorMinor()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		series = append(series, key)
	}
	return series
}

func describeOrigin(spec types.VersionSpecifier) string {
	switch spec.Source {
	case types.VersionSourcePinFile:
		return fmt.Sprintf("requested in %s", originOr(spec, ".python-version"))
	case types.VersionSourcePyProject:
		return fmt.Sprintf("requested by requires-python in %s", originOr(spec, "pyproject.toml"))
	case types.VersionSourceDefault:
		return "(buildpack default)"
	default:
		return "requested"
	}
}

func originOr(spec types.VersionSpecifier, fallback string) string {
	if strings.TrimSpace(spec.Origin) == "" {
		return fallback
	}
	return spec.Origin
}

func resolutionError(reason types.ErrorReason, code errbuilder.ErrCode, msg string) error {
	return types.NewBuildError(types.ErrorKindVersionResolution, reason,
		errbuilder.New().WithCode(code).WithMsg(msg))
}
