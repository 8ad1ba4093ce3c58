package app

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"python-buildpack/internal/core"
	"python-buildpack/internal/types"
)

const djangoManageScript = "manage.py"

// runCollectstatic collects Django static files into the app. Apps that
// do not use django.contrib.staticfiles report the command as unknown
// and are skipped.
func (s Service) runCollectstatic(ctx context.Context, venvPath string, env types.Environment) (bool, error) {
	if !s.Project.Exists(djangoManageScript) {
		return false, nil
	}
	if !fileExists(filepath.Join(venvPath, "bin", "django-admin")) {
		log.Ctx(ctx).Debug().Msg("manage.py found but Django is not installed, skipping collectstatic")
		return false, nil
	}
	python := filepath.Join(venvPath, "bin", "python")
	help := types.Command{
		Name:    python,
		Args:    []string{djangoManageScript, "help", "collectstatic"},
		Dir:     s.AppDir,
		Capture: true,
	}
	result, err := s.Runner.Run(ctx, help, env)
	if strings.Contains(result.Stdout+result.StderrTail, "Unknown command") {
		log.Ctx(ctx).Info().Msg("Django staticfiles app is not enabled, skipping collectstatic")
		return false, nil
	}
	if err != nil {
		return false, collectstaticError(result, err)
	}

	collect := types.Command{
		Name: python,
		Args: []string{djangoManageScript, "collectstatic", "--noinput"},
		Dir:  s.AppDir,
	}
	log.Ctx(ctx).Info().Str("command", core.DescribeCommand(collect)).Msg("running Django collectstatic")
	result, err = s.Runner.Run(ctx, collect, env)
	if err != nil {
		return false, collectstaticError(result, err)
	}
	return true, nil
}

func collectstaticError(result types.CommandResult, err error) error {
	return types.NewBuildError(types.ErrorKindSubprocess, types.ReasonCollectstatic,
		errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("Django collectstatic failed; fix the error below or disable it with PYTHON_BUILDPACK_DJANGO_COLLECTSTATIC=false:\n"+failureDetail(result)).
			WithCause(err))
}
