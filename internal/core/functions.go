package core

import (
	"path/filepath"
	"strings"

	"python-buildpack/internal/types"
)

// FunctionRuntimeProgram is the CLI of the Salesforce Functions Python
// runtime, installed into the venv as an app dependency.
const FunctionRuntimeProgram = "sf-functions-python"

func IsFunctionProject(descriptor *types.ProjectDescriptor) bool {
	return descriptor != nil && descriptor.SalesforceType == types.SalesforceProjectFunction
}

// FunctionCheckCommand validates the function in the app directory. Output
// is captured and only shown when the check fails.
func FunctionCheckCommand(venvPath string, appDir string) types.Command {
	return types.Command{
		Name:    filepath.Join(venvPath, "bin", FunctionRuntimeProgram),
		Args:    []string{"check", "."},
		Dir:     appDir,
		Capture: true,
	}
}

// FunctionLaunchProcesses serves the function as the default web process.
// The command goes through bash so PORT is expanded at launch.
func FunctionLaunchProcesses() []types.LaunchProcess {
	serve := strings.Join([]string{
		"exec", FunctionRuntimeProgram, "serve",
		"--host", "0.0.0.0",
		"--port", `"${PORT:-8080}"`,
		"--workers", "4",
		".",
	}, " ")
	return []types.LaunchProcess{{
		Type:    "web",
		Command: []string{"bash"},
		Args:    []string{"-c", serve},
		Default: true,
	}}
}
