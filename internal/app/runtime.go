package app

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"python-buildpack/internal/core"
	"python-buildpack/internal/types"
)

// uvArchitectures maps platform architectures to the names used in uv
// release assets.
var uvArchitectures = map[string]string{
	"amd64": "x86_64",
	"arm64": "aarch64",
}

// runtimeURL expands the catalog template. A base URL override keeps the
// archive file name and replaces everything before it.
func runtimeURL(catalog types.ReleaseCatalog, baseURL string, version types.PythonVersion, target types.Target) string {
	template := catalog.RuntimeURL
	if base := strings.TrimRight(strings.TrimSpace(baseURL), "/"); base != "" {
		template = base + "/" + path.Base(template)
	}
	return strings.NewReplacer(
		"{version}", version.String(),
		"{distro_name}", target.DistroName,
		"{distro_version}", target.DistroVersion,
		"{arch}", target.Arch,
	).Replace(template)
}

func uvURL(catalog types.ReleaseCatalog, baseURL string, version string, target types.Target) (string, error) {
	arch, ok := uvArchitectures[target.Arch]
	if !ok {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg(fmt.Sprintf("uv is not published for architecture %q", target.Arch))
	}
	template := catalog.UVURL
	if base := strings.TrimRight(strings.TrimSpace(baseURL), "/"); base != "" {
		template = base + "/{version}/" + path.Base(template)
	}
	return strings.NewReplacer(
		"{version}", version,
		"{uv_arch}", arch,
	).Replace(template), nil
}

// installRuntime populates the interpreter layer unless it is kept.
func (s Service) installRuntime(ctx context.Context, plan buildPlan, req BuildRequest) (types.LayerContribution, error) {
	layerPath, err := s.prepareLayer(ctx, plan.Runtime)
	if err != nil {
		return types.LayerContribution{}, err
	}
	contribution := core.RuntimeContribution(layerPath, plan.Version)
	if plan.Runtime.Decision.Action == types.LayerActionKeep {
		return contribution, nil
	}

	url := runtimeURL(plan.Catalog, req.RuntimeBaseURL, plan.Version, req.Target)
	log.Ctx(ctx).Info().Str("version", plan.Version.String()).Msg("installing Python")
	if err := s.Downloader.FetchArchive(ctx, url, types.ArchiveFormatTarZstd, layerPath, 0); err != nil {
		if types.ReasonOf(err) == types.ReasonNotAvailable {
			return types.LayerContribution{}, types.NewBuildError(types.ErrorKindNetwork, types.ReasonNotAvailable,
				errbuilder.New().
					WithCode(errbuilder.CodeNotFound).
					WithMsg(fmt.Sprintf("Python %s is not available for stack %s (%s, %s)", plan.Version, req.Target.Stack, req.Target.Distro(), req.Target.Arch)).
					WithCause(err))
		}
		return types.LayerContribution{}, err
	}
	if err := s.Layers.WriteLaunchEnv(types.LayerPython, launchEnv(baseContribution(), contribution)); err != nil {
		return types.LayerContribution{}, err
	}
	if err := s.commitLayer(plan.Runtime); err != nil {
		return types.LayerContribution{}, err
	}
	return contribution, nil
}
