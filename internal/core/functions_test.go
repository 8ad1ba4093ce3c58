package core

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"python-buildpack/internal/types"
)

func TestIsFunctionProject(t *testing.T) {
	assert.False(t, IsFunctionProject(nil))
	assert.False(t, IsFunctionProject(&types.ProjectDescriptor{}))
	assert.True(t, IsFunctionProject(&types.ProjectDescriptor{SalesforceType: types.SalesforceProjectFunction}))
}

func TestFunctionCheckCommand(t *testing.T) {
	want := types.Command{
		Name:    "/layers/venv/bin/sf-functions-python",
		Args:    []string{"check", "."},
		Dir:     "/workspace",
		Capture: true,
	}
	if diff := cmp.Diff(want, FunctionCheckCommand("/layers/venv", "/workspace")); diff != "" {
		t.Fatalf("unexpected command (-want +got):\n%s", diff)
	}
}

func TestFunctionLaunchProcesses(t *testing.T) {
	want := []types.LaunchProcess{{
		Type:    "web",
		Command: []string{"bash"},
		Args:    []string{"-c", `exec sf-functions-python serve --host 0.0.0.0 --port "${PORT:-8080}" --workers 4 .`},
		Default: true,
	}}
	if diff := cmp.Diff(want, FunctionLaunchProcesses()); diff != "" {
		t.Fatalf("unexpected processes (-want +got):\n%s", diff)
	}
}
