package app

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"python-buildpack/internal/core"
	"python-buildpack/internal/shared"
	"python-buildpack/internal/types"
)

// installTool puts the selected package manager into its own layer.
func (s Service) installTool(ctx context.Context, plan buildPlan, req BuildRequest, runtime types.LayerContribution) (types.LayerContribution, error) {
	manager := plan.Selection.Manager
	layerPath, err := s.prepareLayer(ctx, plan.Tool)
	if err != nil {
		return types.LayerContribution{}, err
	}
	contribution := core.ToolContribution(manager, layerPath)
	if plan.Tool.Decision.Action == types.LayerActionKeep {
		return contribution, nil
	}

	log.Ctx(ctx).Info().Str("manager", string(manager)).Str("version", plan.ManagerVersion).Msg("installing package manager")
	if manager == types.PackageManagerUV {
		url, err := uvURL(plan.Catalog, req.UVBaseURL, plan.ManagerVersion, req.Target)
		if err != nil {
			return types.LayerContribution{}, err
		}
		if err := s.Downloader.FetchArchive(ctx, url, types.ArchiveFormatTarGzip, filepath.Join(layerPath, "bin"), 1); err != nil {
			return types.LayerContribution{}, err
		}
	} else {
		wheel := firstMatch(core.BundledPipPath(runtime.Path, plan.Version))
		if wheel == "" {
			return types.LayerContribution{}, types.NewBuildError(types.ErrorKindSubprocess, types.ReasonInstallFailed,
				errbuilder.New().
					WithCode(errbuilder.CodeNotFound).
					WithMsg(fmt.Sprintf("the pip wheel bundled with Python %s was not found", plan.Version)))
		}
		paths := core.InstallPaths{AppDir: s.AppDir, PythonLayer: runtime.Path, ToolLayer: layerPath}
		cmd, _ := core.ToolInstallCommand(manager, plan.ManagerVersion, wheel, paths)
		env, err := core.BuildEnvironment(req.Environment, []types.LayerContribution{runtime, contribution}, types.PhaseBuild)
		if err != nil {
			return types.LayerContribution{}, err
		}
		if _, err := s.runWithRetry(ctx, cmd, env, fmt.Sprintf("installing %s %s", manager, plan.ManagerVersion)); err != nil {
			return types.LayerContribution{}, err
		}
	}
	if err := s.commitLayer(plan.Tool); err != nil {
		return types.LayerContribution{}, err
	}
	return contribution, nil
}

// runWithRetry runs a command that talks to a package index. Failures
// the classifier marks retryable are tried again within the retry
// budget; anything else fails at once.
func (s Service) runWithRetry(ctx context.Context, cmd types.Command, env types.Environment, what string) (types.CommandResult, error) {
	var result types.CommandResult
	exhausted, err := s.Retry.Do(ctx, func(attempt int) (bool, error) {
		event := log.Ctx(ctx).Info()
		if attempt > 0 {
			event = log.Ctx(ctx).Warn().Int("attempt", attempt+1)
		}
		event.Str("command", core.DescribeCommand(cmd)).Msg(what)
		res, runErr := s.Runner.Run(ctx, cmd, env)
		result = res
		if runErr == nil {
			return false, nil
		}
		return core.ClassifyCommandFailure(res, runErr) == types.FailureRetryable, runErr
	})
	if err == nil {
		return result, nil
	}
	if ctx.Err() != nil {
		return result, err
	}
	if exhausted {
		return result, types.NewBuildError(types.ErrorKindNetwork, types.ReasonRetriesExhausted,
			errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg(fmt.Sprintf("%s failed on network errors after %d attempts:\n%s", what, s.Retry.Attempts, failureDetail(result))).
				WithCause(err))
	}
	return result, types.NewBuildError(types.ErrorKindSubprocess, types.ReasonInstallFailed,
		errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("%s failed:\n%s", what, failureDetail(result))).
			WithCause(err))
}

func failureDetail(result types.CommandResult) string {
	if result.StderrTail != "" {
		return result.StderrTail
	}
	return shared.RedactCredentials(shared.Tail(result.Stdout, 20))
}
