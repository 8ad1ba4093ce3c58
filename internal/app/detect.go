package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"python-buildpack/internal/policies"
	"python-buildpack/internal/types"
)

// Detect reports whether the app looks like a Python project. Detection
// passes even when no package manager marker exists, so the build can
// explain what is missing.
func (s Service) Detect(ctx context.Context, _ DetectRequest) (DetectResult, error) {
	matched, ok := policies.DetectPythonProject(s.Project.Exists)
	if !ok {
		log.Ctx(ctx).Info().Msg("no Python project files found")
		return DetectResult{}, nil
	}
	result := DetectResult{Detected: true, MatchedFile: matched}
	selection, err := s.Managers.Select(s.Project.Exists)
	if err == nil {
		result.PackageManager = selection.Manager
	} else if types.KindOf(err) != types.ErrorKindProjectConfiguration {
		return DetectResult{}, err
	}
	log.Ctx(ctx).Info().
		Str("file", matched).
		Str("manager", string(result.PackageManager)).
		Msg("Python project detected")
	return result, nil
}
