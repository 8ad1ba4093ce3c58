package app

import (
	"context"
	"fmt"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"python-buildpack/internal/core"
	"python-buildpack/internal/types"
)

// Build runs the pipeline: resolve, acquire the runtime, acquire the
// package manager, install dependencies and finalize. Stages run one
// after another; the only fan-out is bytecode compilation.
func (s Service) Build(ctx context.Context, req BuildRequest) (BuildResult, error) {
	// Conflicts must surface before any download or subprocess.
	if err := core.CheckForbiddenEnv(req.Environment); err != nil {
		return BuildResult{}, err
	}
	policy, err := normalizeUpgradePolicy(req.UpgradePolicy)
	if err != nil {
		return BuildResult{}, err
	}
	req.UpgradePolicy = policy

	tracker := newInstallTracker(ctx)
	result, err := s.build(ctx, req, tracker)
	if err != nil {
		tracker.Fail(err)
		return BuildResult{}, err
	}
	return result, nil
}

func (s Service) build(ctx context.Context, req BuildRequest, tracker *installTracker) (BuildResult, error) {
	plan, err := s.plan(ctx, req.Target, req.CatalogPath)
	if err != nil {
		return BuildResult{}, err
	}
	for _, warning := range plan.Warnings {
		log.Ctx(ctx).Warn().Msg(warning)
	}
	tracker.manager = plan.Selection.Manager
	if err := tracker.Advance(types.InstallStateDetected); err != nil {
		return BuildResult{}, err
	}

	runtime, err := s.installRuntime(ctx, plan, req)
	if err != nil {
		return BuildResult{}, err
	}
	tool, err := s.installTool(ctx, plan, req, runtime)
	if err != nil {
		return BuildResult{}, err
	}
	if err := tracker.Advance(types.InstallStateToolAcquired); err != nil {
		return BuildResult{}, err
	}
	cachePath, err := s.prepareCache(ctx, plan)
	if err != nil {
		return BuildResult{}, err
	}
	deps, err := s.installDependencies(ctx, plan, req, tracker, runtime, tool, cachePath)
	if err != nil {
		return BuildResult{}, err
	}

	if req.DjangoCollectstatic || plan.Function {
		env, err := core.BuildEnvironment(req.Environment, []types.LayerContribution{runtime, tool, deps.Contribution}, types.PhaseBuild)
		if err != nil {
			return BuildResult{}, err
		}
		if req.DjangoCollectstatic {
			if _, err := s.runCollectstatic(ctx, deps.Contribution.Path, env); err != nil {
				return BuildResult{}, err
			}
		}
		if plan.Function {
			if err := s.checkFunction(ctx, deps.Contribution.Path, env); err != nil {
				return BuildResult{}, err
			}
		}
	}
	if err := s.pruneUnusedLayers(ctx, plan); err != nil {
		return BuildResult{}, err
	}
	if err := tracker.Advance(types.InstallStateDone); err != nil {
		return BuildResult{}, err
	}

	log.Ctx(ctx).Info().
		Str("python", plan.Version.String()).
		Str("manager", string(plan.Selection.Manager)).
		Int("packages", len(deps.Installed)).
		Bool("dependencies_reused", deps.Skipped).
		Bool("salesforce_function", plan.Function).
		Msg("build complete")
	return BuildResult{
		PythonVersion:  plan.Version,
		Specifier:      plan.Specifier,
		PackageManager: plan.Selection.Manager,
		Decisions:      plan.decisions(),
		Installed:      deps.Installed,
		CompiledFiles:  deps.CompiledFiles,
		Warnings:       plan.Warnings,
		Function:       plan.Function,
	}, nil
}

// pruneUnusedLayers removes tool and cache layers left behind by a
// package manager the app no longer uses.
func (s Service) pruneUnusedLayers(ctx context.Context, plan buildPlan) error {
	used := map[types.LayerName]bool{}
	for _, layer := range plan.layers() {
		used[layer.Kind.Name] = true
	}
	for _, name := range core.LayerNames() {
		if used[name] || !fileExists(s.Layers.Path(name)) {
			continue
		}
		log.Ctx(ctx).Info().Str("layer", string(name)).Msg("removing unused layer")
		if err := s.Layers.Remove(name); err != nil {
			return err
		}
	}
	return nil
}

func normalizeUpgradePolicy(policy types.UpgradePolicy) (types.UpgradePolicy, error) {
	switch policy {
	case "":
		return types.UpgradePolicyNever, nil
	case types.UpgradePolicyNever, types.UpgradePolicyOnKeep:
		return policy, nil
	default:
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("invalid upgrade policy %q; expected %s or %s", policy, types.UpgradePolicyNever, types.UpgradePolicyOnKeep))
	}
}
