package app

import (
	"context"
	"fmt"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"python-buildpack/internal/core"
	"python-buildpack/internal/types"
)

// checkFunction validates a Salesforce Function with the runtime the app
// depends on and registers the process that serves it.
func (s Service) checkFunction(ctx context.Context, venvPath string, env types.Environment) error {
	cmd := core.FunctionCheckCommand(venvPath, s.AppDir)
	if !fileExists(cmd.Name) {
		return types.NewBuildError(types.ErrorKindProjectConfiguration, types.ReasonFunctionCheck,
			errbuilder.New().
				WithCode(errbuilder.CodeFailedPrecondition).
				WithMsg(fmt.Sprintf("project.toml marks this app as a Salesforce Function, but %s is not installed; add salesforce-functions to the app dependencies", core.FunctionRuntimeProgram)))
	}
	log.Ctx(ctx).Info().Str("command", core.DescribeCommand(cmd)).Msg("validating Salesforce Function")
	result, err := s.Runner.Run(ctx, cmd, env)
	if err != nil {
		return types.NewBuildError(types.ErrorKindSubprocess, types.ReasonFunctionCheck,
			errbuilder.New().
				WithCode(errbuilder.CodeFailedPrecondition).
				WithMsg("the Salesforce Function failed validation:\n"+failureDetail(result)).
				WithCause(err))
	}
	log.Ctx(ctx).Info().Msg("function passed validation")
	return s.Layers.WriteLaunch(core.FunctionLaunchProcesses())
}
