package app

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"python-buildpack/internal/core"
	"python-buildpack/internal/types"
)

// SBOMFileName is written next to the dependency layer metadata.
const SBOMFileName = "venv.sbom.spdx.json"

type dependencyInstall struct {
	Contribution  types.LayerContribution
	Installed     []types.InstalledPackage
	CompiledFiles int
	Skipped       bool
}

// prepareCache makes the cache layer available. Cache layers only grow,
// so their metadata is written before they are populated.
func (s Service) prepareCache(ctx context.Context, plan buildPlan) (string, error) {
	layerPath, err := s.prepareLayer(ctx, plan.Cache)
	if err != nil {
		return "", err
	}
	if plan.Cache.Decision.Action == types.LayerActionKeep {
		return layerPath, nil
	}
	if err := s.commitLayer(plan.Cache); err != nil {
		return "", err
	}
	return layerPath, nil
}

// installDependencies runs the Installing and Verified states and
// finalizes the dependency layer. A kept layer is left alone unless the
// upgrade policy asks for a refresh.
func (s Service) installDependencies(ctx context.Context, plan buildPlan, req BuildRequest, tracker *installTracker, runtime types.LayerContribution, tool types.LayerContribution, cachePath string) (dependencyInstall, error) {
	manager := plan.Selection.Manager
	keep := plan.Dependencies.Decision.Action == types.LayerActionKeep
	upgrade := keep && req.UpgradePolicy == types.UpgradePolicyOnKeep

	venvPath, err := s.prepareLayer(ctx, plan.Dependencies)
	if err != nil {
		return dependencyInstall{}, err
	}
	contribution := core.DependencyContribution(manager, venvPath, cachePath)
	if keep && !upgrade {
		return dependencyInstall{Contribution: contribution, Skipped: true}, nil
	}
	if upgrade {
		// The refresh runs in place; until it is verified the layer must
		// not read as complete.
		if err := s.Layers.RemoveMetadata(plan.Dependencies.Kind.Name); err != nil {
			return dependencyInstall{}, err
		}
	}

	paths := core.InstallPaths{
		AppDir:      s.AppDir,
		PythonLayer: runtime.Path,
		ToolLayer:   tool.Path,
		CacheLayer:  cachePath,
		VenvLayer:   venvPath,
	}
	env, err := core.BuildEnvironment(req.Environment, []types.LayerContribution{runtime, tool, contribution}, types.PhaseBuild)
	if err != nil {
		return dependencyInstall{}, err
	}
	if err := tracker.Advance(types.InstallStateInstalling); err != nil {
		return dependencyInstall{}, err
	}
	if !fileExists(paths.VenvPython()) {
		venv := core.VenvCommand(paths)
		if _, err := s.Runner.Run(ctx, venv, env); err != nil {
			return dependencyInstall{}, types.NewBuildError(types.ErrorKindSubprocess, types.ReasonInstallFailed,
				errbuilder.New().
					WithCode(errbuilder.CodeInternal).
					WithMsg("failed to create the virtual environment").
					WithCause(err))
		}
	}
	if _, err := s.runWithRetry(ctx, core.InstallCommand(manager, plan.ManagerVersion, paths, upgrade), env, fmt.Sprintf("installing dependencies with %s", manager)); err != nil {
		return dependencyInstall{}, err
	}

	installed, err := s.verifyDependencies(ctx, manager, plan.Lockfile, paths, env)
	if err != nil {
		return dependencyInstall{}, err
	}
	if err := tracker.Advance(types.InstallStateVerified); err != nil {
		return dependencyInstall{}, err
	}

	compiled, err := s.Compiler.Compile(ctx, paths.VenvPython(), filepath.Join(venvPath, "lib"), env)
	if err != nil {
		return dependencyInstall{}, err
	}
	createdAt := s.now().UTC().Format(time.RFC3339)
	if epoch, ok := req.Environment["SOURCE_DATE_EPOCH"]; ok {
		createdAt = epoch
	}
	if err := s.SBOMWriter.WriteSBOM(filepath.Join(s.LayersDir, SBOMFileName), string(types.LayerVenv), createdAt, installed); err != nil {
		return dependencyInstall{}, err
	}
	if err := s.Layers.WriteLaunchEnv(types.LayerVenv, launchEnv(contribution)); err != nil {
		return dependencyInstall{}, err
	}
	if err := s.commitLayer(plan.Dependencies); err != nil {
		return dependencyInstall{}, err
	}
	return dependencyInstall{
		Contribution:  contribution,
		Installed:     installed,
		CompiledFiles: compiled,
	}, nil
}

// verifyDependencies asks for the installed set and holds it against the
// lockfile pins. Any failure leaves the layer without metadata, so the
// next build starts over.
func (s Service) verifyDependencies(ctx context.Context, manager types.PackageManager, lock types.Lockfile, paths core.InstallPaths, env types.Environment) ([]types.InstalledPackage, error) {
	cmd := core.VerifyCommand(manager, paths)
	log.Ctx(ctx).Debug().Str("command", core.DescribeCommand(cmd)).Msg("verifying installed packages")
	result, err := s.Runner.Run(ctx, cmd, env)
	if err != nil {
		return nil, types.NewBuildError(types.ErrorKindSubprocess, types.ReasonVerificationFailed,
			errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg(fmt.Sprintf("%s could not list the installed packages:\n%s", manager, failureDetail(result))).
				WithCause(err))
	}
	installed, err := core.ParseInstalledPackages(result.Stdout)
	if err != nil {
		return nil, err
	}
	if err := core.CheckLockedVersions(lock, installed); err != nil {
		return nil, err
	}
	log.Ctx(ctx).Info().Int("packages", len(installed)).Msg("dependencies verified")
	return installed, nil
}

func (s Service) now() time.Time {
	if s.Clock == nil {
		return time.Now()
	}
	return s.Clock()
}
