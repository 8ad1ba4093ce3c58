package app

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"python-buildpack/internal/adapters"
	"python-buildpack/internal/types"
)

func pipProject(t *testing.T, h *harness) {
	t.Helper()
	h.write(t, ".python-version", "3.12\n")
	h.write(t, "requirements.txt", "flask==3.0.0\n-r requirements/base.txt\n")
	h.write(t, "requirements/base.txt", "gunicorn==23.0.0\n")
}

func TestBuildFreshPipProject(t *testing.T) {
	h := newHarness(t)
	pipProject(t, h)

	result, err := h.build(t, BuildRequest{})
	require.NoError(t, err)

	assert.Equal(t, "3.12.8", result.PythonVersion.String())
	assert.Equal(t, types.VersionSourcePinFile, result.Specifier.Source)
	assert.Equal(t, types.PackageManagerPip, result.PackageManager)
	wantActions := map[types.LayerName]types.LayerAction{
		types.LayerPython:   types.LayerActionRecreate,
		types.LayerPip:      types.LayerActionRecreate,
		types.LayerPipCache: types.LayerActionRecreate,
		types.LayerVenv:     types.LayerActionRecreate,
	}
	if diff := cmp.Diff(wantActions, actions(result.Decisions)); diff != "" {
		t.Fatalf("unexpected decisions (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"tool", "venv", "install", "verify"}, h.runner.kinds()); diff != "" {
		t.Fatalf("unexpected commands (-want +got):\n%s", diff)
	}
	require.Equal(t, []string{
		"https://heroku-buildpack-python.s3.us-east-1.amazonaws.com/python-3.12.8-ubuntu-24.04-amd64.tar.zst",
	}, h.downloader.calls())
	assert.Equal(t, []types.InstalledPackage{
		{Name: "flask", Version: "3.0.0"},
		{Name: "werkzeug", Version: "3.0.1"},
	}, result.Installed)
	assert.Equal(t, 12, result.CompiledFiles)
	assert.Equal(t, []string{filepath.Join(h.layersDir, "venv", "lib")}, h.compiler.roots)

	for _, name := range []types.LayerName{types.LayerPython, types.LayerPip, types.LayerPipCache, types.LayerVenv} {
		assert.True(t, h.metadataExists(name), "metadata for %s", name)
	}

	data, err := os.ReadFile(filepath.Join(h.layersDir, SBOMFileName))
	require.NoError(t, err)
	var sbom struct {
		Packages []struct {
			Name string `json:"name"`
		} `json:"packages"`
	}
	require.NoError(t, json.Unmarshal(data, &sbom))
	require.Len(t, sbom.Packages, 2)
	assert.Equal(t, "flask", sbom.Packages[0].Name)

	override, err := os.ReadFile(filepath.Join(h.layersDir, "python", "env.launch", "PYTHONHOME.override"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(h.layersDir, "python"), string(override))
	_, err = os.Stat(filepath.Join(h.layersDir, "python", "env.launch", "PATH.prepend"))
	assert.True(t, os.IsNotExist(err))
	virtualEnv, err := os.ReadFile(filepath.Join(h.layersDir, "venv", "env.launch", "VIRTUAL_ENV.override"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(h.layersDir, "venv"), string(virtualEnv))
}

func TestBuildInstallEnvironment(t *testing.T) {
	h := newHarness(t)
	pipProject(t, h)

	_, err := h.build(t, BuildRequest{})
	require.NoError(t, err)

	cmd, env, ok := h.runner.find("install")
	require.True(t, ok)
	assert.Equal(t, h.appDir, cmd.Dir)
	assert.Contains(t, cmd.Args, "--isolated")
	assert.Contains(t, cmd.Args, filepath.Join(h.layersDir, "pip-cache"))
	assert.Equal(t, "315532801", env["SOURCE_DATE_EPOCH"])
	assert.Equal(t, filepath.Join(h.layersDir, "venv"), env["VIRTUAL_ENV"])
	assert.Equal(t, "/home/app", env["HOME"])
	path := strings.Split(env["PATH"], string(os.PathListSeparator))
	require.GreaterOrEqual(t, len(path), 3)
	assert.Equal(t, []string{
		filepath.Join(h.layersDir, "venv", "bin"),
		filepath.Join(h.layersDir, "pip", "bin"),
		filepath.Join(h.layersDir, "python", "bin"),
	}, path[:3])
}

func TestBuildKeepsEveryLayerOnIdenticalInputs(t *testing.T) {
	h := newHarness(t)
	pipProject(t, h)

	_, err := h.build(t, BuildRequest{})
	require.NoError(t, err)
	result, err := h.rebuild(t, BuildRequest{})
	require.NoError(t, err)

	for layer, action := range actions(result.Decisions) {
		assert.Equal(t, types.LayerActionKeep, action, "layer %s", layer)
	}
	assert.Empty(t, h.runner.kinds())
	assert.Empty(t, h.downloader.calls())
	assert.Empty(t, result.Installed)
}

func TestBuildDeclarationChangeInvalidatesOnlyDependencies(t *testing.T) {
	h := newHarness(t)
	pipProject(t, h)
	_, err := h.build(t, BuildRequest{})
	require.NoError(t, err)

	h.write(t, "requirements/base.txt", "gunicorn==23.0.1\n")
	result, err := h.rebuild(t, BuildRequest{})
	require.NoError(t, err)

	wantActions := map[types.LayerName]types.LayerAction{
		types.LayerPython:   types.LayerActionKeep,
		types.LayerPip:      types.LayerActionKeep,
		types.LayerPipCache: types.LayerActionKeep,
		types.LayerVenv:     types.LayerActionRecreate,
	}
	if diff := cmp.Diff(wantActions, actions(result.Decisions)); diff != "" {
		t.Fatalf("unexpected decisions (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"The file requirements/base.txt has changed"}, reasonsFor(result.Decisions, types.LayerVenv))
	if diff := cmp.Diff([]string{"venv", "install", "verify"}, h.runner.kinds()); diff != "" {
		t.Fatalf("unexpected commands (-want +got):\n%s", diff)
	}
	assert.Empty(t, h.downloader.calls())
}

func TestBuildPatchChangeKeepsToolLayer(t *testing.T) {
	h := newHarness(t)
	pipProject(t, h)
	h.write(t, ".python-version", "3.12.7\n")
	_, err := h.build(t, BuildRequest{})
	require.NoError(t, err)

	h.write(t, ".python-version", "3.12.8\n")
	result, err := h.rebuild(t, BuildRequest{})
	require.NoError(t, err)

	wantActions := map[types.LayerName]types.LayerAction{
		types.LayerPython:   types.LayerActionRecreate,
		types.LayerPip:      types.LayerActionKeep,
		types.LayerPipCache: types.LayerActionKeep,
		types.LayerVenv:     types.LayerActionRecreate,
	}
	if diff := cmp.Diff(wantActions, actions(result.Decisions)); diff != "" {
		t.Fatalf("unexpected decisions (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"The Python version has changed from 3.12.7 to 3.12.8"}, reasonsFor(result.Decisions, types.LayerPython))
	assert.NotContains(t, h.runner.kinds(), "tool")
	assert.Len(t, h.downloader.calls(), 1)
}

func TestBuildRejectsForbiddenEnvironmentBeforeAnySubprocess(t *testing.T) {
	h := newHarness(t)
	pipProject(t, h)

	_, err := h.build(t, BuildRequest{Environment: types.Environment{"PYTHONHOME": "/opt/python"}})
	require.Error(t, err)
	assert.Equal(t, types.ErrorKindEnvironmentConflict, types.KindOf(err))
	assert.Contains(t, err.Error(), "PYTHONHOME")
	assert.Empty(t, h.runner.kinds())
	assert.Empty(t, h.downloader.calls())
	assert.False(t, h.metadataExists(types.LayerPython))
}

func TestBuildRetriesNetworkFailures(t *testing.T) {
	h := newHarness(t)
	pipProject(t, h)
	failures := 0
	h.runner.respond = func(kind string, _ types.Command) (types.CommandResult, bool, error) {
		if kind != "install" || failures >= 2 {
			return types.CommandResult{}, false, nil
		}
		failures++
		return types.CommandResult{ExitCode: 1, StderrTail: "ERROR: Connection reset by peer"}, true, errors.New("pip exited with status 1")
	}

	_, err := h.build(t, BuildRequest{})
	require.NoError(t, err)
	if diff := cmp.Diff([]string{"tool", "venv", "install", "install", "install", "verify"}, h.runner.kinds()); diff != "" {
		t.Fatalf("unexpected commands (-want +got):\n%s", diff)
	}
}

func TestBuildInstallFailures(t *testing.T) {
	tests := []struct {
		name       string
		stderr     string
		wantKind   types.ErrorKind
		wantReason types.ErrorReason
		wantCalls  int
	}{
		{
			name:       "fatal failure is not retried",
			stderr:     "ERROR: No matching distribution found for flask==99",
			wantKind:   types.ErrorKindSubprocess,
			wantReason: types.ReasonInstallFailed,
			wantCalls:  1,
		},
		{
			name:       "network failure exhausts retries",
			stderr:     "ERROR: 503 Service Unavailable",
			wantKind:   types.ErrorKindNetwork,
			wantReason: types.ReasonRetriesExhausted,
			wantCalls:  3,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			pipProject(t, h)
			h.runner.respond = func(kind string, _ types.Command) (types.CommandResult, bool, error) {
				if kind != "install" {
					return types.CommandResult{}, false, nil
				}
				return types.CommandResult{ExitCode: 1, StderrTail: tc.stderr}, true, errors.New("pip exited with status 1")
			}

			_, err := h.build(t, BuildRequest{})
			require.Error(t, err)
			assert.Equal(t, tc.wantKind, types.KindOf(err))
			assert.Equal(t, tc.wantReason, types.ReasonOf(err))
			assert.Contains(t, err.Error(), tc.stderr)
			installs := 0
			for _, kind := range h.runner.kinds() {
				if kind == "install" {
					installs++
				}
			}
			assert.Equal(t, tc.wantCalls, installs)
			assert.False(t, h.metadataExists(types.LayerVenv))
			assert.True(t, h.metadataExists(types.LayerPip))
		})
	}
}

func TestBuildVerificationFailureSkipsMetadata(t *testing.T) {
	tests := []struct {
		name       string
		result     types.CommandResult
		err        error
		wantReason types.ErrorReason
		wantMsg    string
	}{
		{
			name:       "listing fails",
			result:     types.CommandResult{ExitCode: 2, StderrTail: "broken environment"},
			err:        errors.New("pip exited with status 2"),
			wantReason: types.ReasonVerificationFailed,
		},
		{
			name:       "listing is not json",
			result:     types.CommandResult{Stdout: "flask 3.0.0"},
			wantReason: types.ReasonUnparsableOutput,
		},
		{
			name:       "installed version differs from pin",
			result:     types.CommandResult{Stdout: `[{"name": "Flask", "version": "3.0.1"}]`},
			wantReason: types.ReasonVerificationFailed,
			wantMsg:    "flask: locked 3.0.0, installed 3.0.1",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			pipProject(t, h)
			h.runner.respond = func(kind string, _ types.Command) (types.CommandResult, bool, error) {
				if kind != "verify" {
					return types.CommandResult{}, false, nil
				}
				return tc.result, true, tc.err
			}

			_, err := h.build(t, BuildRequest{})
			require.Error(t, err)
			assert.Equal(t, types.ErrorKindSubprocess, types.KindOf(err))
			assert.Equal(t, tc.wantReason, types.ReasonOf(err))
			assert.Contains(t, err.Error(), tc.wantMsg)
			assert.False(t, h.metadataExists(types.LayerVenv))
			assert.Empty(t, h.compiler.roots)

			h.runner.respond = nil
			result, err := h.rebuild(t, BuildRequest{})
			require.NoError(t, err)
			assert.Equal(t, types.LayerActionRecreate, actions(result.Decisions)[types.LayerVenv])
		})
	}
}

func TestBuildRuntimeNotAvailable(t *testing.T) {
	h := newHarness(t)
	pipProject(t, h)
	h.downloader.err = types.NewBuildError(types.ErrorKindNetwork, types.ReasonNotAvailable,
		errbuilder.New().WithCode(errbuilder.CodeNotFound).WithMsg("404 Not Found"))

	_, err := h.build(t, BuildRequest{})
	require.Error(t, err)
	assert.Equal(t, types.ErrorKindNetwork, types.KindOf(err))
	assert.Equal(t, types.ReasonNotAvailable, types.ReasonOf(err))
	assert.Contains(t, err.Error(), "Python 3.12.8 is not available for stack heroku-24")
	assert.False(t, h.metadataExists(types.LayerPython))
	assert.Empty(t, h.runner.kinds())
}

func TestBuildRuntimeBaseURLOverride(t *testing.T) {
	h := newHarness(t)
	pipProject(t, h)

	_, err := h.build(t, BuildRequest{RuntimeBaseURL: "https://mirror.example.com/python/"})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://mirror.example.com/python/python-3.12.8-ubuntu-24.04-amd64.tar.zst"}, h.downloader.calls())
}

func TestBuildUVProject(t *testing.T) {
	h := newHarness(t)
	h.write(t, "pyproject.toml", "[project]\nname = \"app\"\nrequires-python = \">=3.11,<3.13\"\n")
	h.write(t, "uv.lock", "version = 1\n\n[[package]]\nname = \"Flask\"\nversion = \"3.0.0\"\n")
	h.write(t, "requirements.txt", "flask\n")

	result, err := h.build(t, BuildRequest{UVBaseURL: "https://mirror.example.com/uv"})
	require.NoError(t, err)

	assert.Equal(t, types.PackageManagerUV, result.PackageManager)
	assert.Equal(t, "3.12.8", result.PythonVersion.String())
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "requirements.txt")
	assert.Equal(t, []string{
		"https://heroku-buildpack-python.s3.us-east-1.amazonaws.com/python-3.12.8-ubuntu-24.04-amd64.tar.zst",
		"https://mirror.example.com/uv/0.6.5/uv-x86_64-unknown-linux-gnu.tar.gz",
	}, h.downloader.calls())
	assert.Equal(t, filepath.Join(h.layersDir, "uv", "bin"), h.downloader.dests[1])
	assert.Equal(t, 1, h.downloader.strips[1])
	if diff := cmp.Diff([]string{"venv", "install", "verify"}, h.runner.kinds()); diff != "" {
		t.Fatalf("unexpected commands (-want +got):\n%s", diff)
	}
	_, env, ok := h.runner.find("install")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(h.layersDir, "venv"), env["UV_PROJECT_ENVIRONMENT"])
	assert.Equal(t, "never", env["UV_PYTHON_DOWNLOADS"])
}

func TestBuildPrunesLayersOfPreviousManager(t *testing.T) {
	h := newHarness(t)
	pipProject(t, h)
	_, err := h.build(t, BuildRequest{})
	require.NoError(t, err)

	h.write(t, "pyproject.toml", "[project]\nname = \"app\"\n")
	h.write(t, "uv.lock", "version = 1\n")
	_, err = h.rebuild(t, BuildRequest{})
	require.NoError(t, err)

	for _, name := range []types.LayerName{types.LayerPip, types.LayerPipCache} {
		assert.False(t, h.metadataExists(name), "metadata for %s", name)
		_, err := os.Stat(filepath.Join(h.layersDir, string(name)))
		assert.True(t, os.IsNotExist(err), "layer %s", name)
	}
	assert.True(t, h.metadataExists(types.LayerUV))
}

func TestBuildUpgradePolicy(t *testing.T) {
	h := newHarness(t)
	pipProject(t, h)
	_, err := h.build(t, BuildRequest{})
	require.NoError(t, err)

	result, err := h.rebuild(t, BuildRequest{UpgradePolicy: types.UpgradePolicyOnKeep})
	require.NoError(t, err)
	assert.Equal(t, types.LayerActionKeep, actions(result.Decisions)[types.LayerVenv])
	cmd, _, ok := h.runner.find("install")
	require.True(t, ok)
	assert.Contains(t, strings.Join(cmd.Args, " "), "--upgrade --upgrade-strategy eager")
	assert.Len(t, result.Installed, 2)

	_, err = h.rebuild(t, BuildRequest{UpgradePolicy: "sometimes"})
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeInvalidArgument, errbuilder.CodeOf(err))
}

func TestBuildUpgradeFailureDropsVenvMetadata(t *testing.T) {
	h := newHarness(t)
	pipProject(t, h)
	_, err := h.build(t, BuildRequest{})
	require.NoError(t, err)
	require.True(t, h.metadataExists(types.LayerVenv))

	h.runner.respond = func(kind string, _ types.Command) (types.CommandResult, bool, error) {
		if kind != "verify" {
			return types.CommandResult{}, false, nil
		}
		return types.CommandResult{ExitCode: 1, StderrTail: "broken environment"}, true, errors.New("pip exited with status 1")
	}
	_, err = h.rebuild(t, BuildRequest{UpgradePolicy: types.UpgradePolicyOnKeep})
	require.Error(t, err)
	assert.Equal(t, types.ReasonVerificationFailed, types.ReasonOf(err))
	assert.False(t, h.metadataExists(types.LayerVenv))
	assert.True(t, h.metadataExists(types.LayerPython))

	h.runner.respond = nil
	result, err := h.rebuild(t, BuildRequest{})
	require.NoError(t, err)
	assert.Equal(t, types.LayerActionRecreate, actions(result.Decisions)[types.LayerVenv])
	assert.True(t, h.metadataExists(types.LayerVenv))
}

func TestBuildWritesLaunchEnvBeforeMetadata(t *testing.T) {
	h := newHarness(t)
	pipProject(t, h)
	layers := &recordingLayers{LayerStoreAdapter: adapters.NewLayerStoreAdapter(h.layersDir)}
	h.service.Layers = layers

	_, err := h.build(t, BuildRequest{})
	require.NoError(t, err)
	want := []string{
		"launch-env:python", "metadata:python",
		"metadata:pip",
		"metadata:pip-cache",
		"launch-env:venv", "metadata:venv",
	}
	if diff := cmp.Diff(want, layers.writes); diff != "" {
		t.Fatalf("unexpected layer writes (-want +got):\n%s", diff)
	}
}

func TestBuildDjangoCollectstatic(t *testing.T) {
	tests := []struct {
		name      string
		enabled   bool
		helpOut   string
		wantKinds []string
	}{
		{name: "runs when staticfiles is installed", enabled: true, helpOut: "Usage: manage.py collectstatic", wantKinds: []string{"collectstatic-help", "collectstatic"}},
		{name: "skips unknown command", enabled: true, helpOut: "Unknown command: 'collectstatic'", wantKinds: []string{"collectstatic-help"}},
		{name: "disabled", enabled: false, wantKinds: nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			pipProject(t, h)
			h.write(t, "manage.py", "import django\n")
			_, err := h.build(t, BuildRequest{})
			require.NoError(t, err)
			bin := filepath.Join(h.layersDir, "venv", "bin")
			require.NoError(t, os.MkdirAll(bin, 0o755))
			require.NoError(t, os.WriteFile(filepath.Join(bin, "django-admin"), []byte("#!/bin/sh\n"), 0o755))

			h.runner.respond = func(kind string, _ types.Command) (types.CommandResult, bool, error) {
				if kind != "collectstatic-help" {
					return types.CommandResult{}, false, nil
				}
				return types.CommandResult{Stdout: tc.helpOut}, true, nil
			}
			_, err = h.rebuild(t, BuildRequest{DjangoCollectstatic: tc.enabled})
			require.NoError(t, err)
			if diff := cmp.Diff(tc.wantKinds, h.runner.kinds()); diff != "" {
				t.Fatalf("unexpected commands (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBuildDjangoCollectstaticFailure(t *testing.T) {
	h := newHarness(t)
	pipProject(t, h)
	h.write(t, "manage.py", "import django\n")
	_, err := h.build(t, BuildRequest{})
	require.NoError(t, err)
	bin := filepath.Join(h.layersDir, "venv", "bin")
	require.NoError(t, os.MkdirAll(bin, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(bin, "django-admin"), []byte("#!/bin/sh\n"), 0o755))
	h.runner.respond = func(kind string, _ types.Command) (types.CommandResult, bool, error) {
		if kind != "collectstatic" {
			return types.CommandResult{}, false, nil
		}
		return types.CommandResult{ExitCode: 1, StderrTail: "ImproperlyConfigured: STATIC_ROOT"}, true, errors.New("python exited with status 1")
	}

	_, err = h.rebuild(t, BuildRequest{DjangoCollectstatic: true})
	require.Error(t, err)
	assert.Equal(t, types.ReasonCollectstatic, types.ReasonOf(err))
	assert.Contains(t, err.Error(), "STATIC_ROOT")
}

func TestBuildProjectErrors(t *testing.T) {
	tests := []struct {
		name       string
		files      map[string]string
		wantKind   types.ErrorKind
		wantReason types.ErrorReason
	}{
		{
			name:       "no package manager",
			files:      map[string]string{"setup.py": "", "Pipfile": ""},
			wantKind:   types.ErrorKindProjectConfiguration,
			wantReason: types.ReasonNoPackageManager,
		},
		{
			name:       "runtime.txt",
			files:      map[string]string{"runtime.txt": "python-3.11.4", "requirements.txt": ""},
			wantKind:   types.ErrorKindVersionResolution,
			wantReason: types.ReasonRuntimeTxtUnsupported,
		},
		{
			name:       "end of life",
			files:      map[string]string{".python-version": "3.8", "requirements.txt": ""},
			wantKind:   types.ErrorKindVersionResolution,
			wantReason: types.ReasonEndOfLifeVersion,
		},
		{
			name:       "unknown series",
			files:      map[string]string{".python-version": "3.99", "requirements.txt": ""},
			wantKind:   types.ErrorKindVersionResolution,
			wantReason: types.ReasonUnknownMinor,
		},
		{
			name:       "invalid lockfile",
			files:      map[string]string{"poetry.lock": "[[package]\n", "pyproject.toml": "[tool.poetry]\n"},
			wantKind:   types.ErrorKindProjectConfiguration,
			wantReason: types.ReasonInvalidProjectFile,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			for name, content := range tc.files {
				h.write(t, name, content)
			}
			_, err := h.build(t, BuildRequest{})
			require.Error(t, err)
			assert.Equal(t, tc.wantKind, types.KindOf(err))
			assert.Equal(t, tc.wantReason, types.ReasonOf(err))
			assert.Empty(t, h.runner.kinds())
			assert.Empty(t, h.downloader.calls())
		})
	}
}

func TestBuildSalesforceFunction(t *testing.T) {
	tests := []struct {
		name       string
		installed  bool
		check      types.CommandResult
		checkErr   error
		wantKind   types.ErrorKind
		wantMsg    string
		wantLaunch bool
	}{
		{name: "passes validation", installed: true, wantLaunch: true},
		{
			name:      "fails validation",
			installed: true,
			check:     types.CommandResult{ExitCode: 1, StderrTail: "Function failed to load: no function named 'function' in main.py"},
			checkErr:  errors.New("sf-functions-python exited with status 1"),
			wantKind:  types.ErrorKindSubprocess,
			wantMsg:   "no function named 'function'",
		},
		{
			name:     "runtime not installed",
			wantKind: types.ErrorKindProjectConfiguration,
			wantMsg:  "sf-functions-python is not installed",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			pipProject(t, h)
			h.write(t, "project.toml", "[_]\nschema-version = \"0.2\"\n\n[com.salesforce]\ntype = \"function\"\n")
			h.runner.respond = func(kind string, cmd types.Command) (types.CommandResult, bool, error) {
				switch kind {
				case "install":
					if tc.installed {
						bin := filepath.Join(h.layersDir, "venv", "bin")
						require.NoError(t, os.MkdirAll(bin, 0o755))
						require.NoError(t, os.WriteFile(filepath.Join(bin, "sf-functions-python"), []byte("#!/bin/sh\n"), 0o755))
					}
				case "sf-functions-python":
					assert.Equal(t, []string{"check", "."}, cmd.Args)
					assert.Equal(t, h.appDir, cmd.Dir)
					return tc.check, true, tc.checkErr
				}
				return types.CommandResult{}, false, nil
			}

			result, err := h.build(t, BuildRequest{})
			launch, readErr := os.ReadFile(filepath.Join(h.layersDir, "launch.toml"))
			if tc.wantKind != "" {
				require.Error(t, err)
				assert.Equal(t, tc.wantKind, types.KindOf(err))
				assert.Equal(t, types.ReasonFunctionCheck, types.ReasonOf(err))
				assert.Contains(t, err.Error(), tc.wantMsg)
				assert.True(t, os.IsNotExist(readErr))
				return
			}
			require.NoError(t, err)
			assert.True(t, result.Function)
			assert.Contains(t, h.runner.kinds(), "sf-functions-python")
			require.NoError(t, readErr)
			assert.Contains(t, string(launch), `type = "web"`)
			assert.Contains(t, string(launch), `sf-functions-python serve --host 0.0.0.0`)
		})
	}
}

func TestBuildRejectsUnknownSalesforceProjectType(t *testing.T) {
	h := newHarness(t)
	pipProject(t, h)
	h.write(t, "project.toml", "[com.salesforce]\ntype = \"app\"\n")

	_, err := h.build(t, BuildRequest{})
	require.Error(t, err)
	assert.Equal(t, types.ReasonInvalidProjectFile, types.ReasonOf(err))
	assert.Empty(t, h.runner.kinds())
	assert.Empty(t, h.downloader.calls())
}

func TestBuildWithoutFunctionSkipsCheck(t *testing.T) {
	h := newHarness(t)
	pipProject(t, h)
	h.write(t, "project.toml", "[io.buildpacks]\nbuilder = \"heroku/builder:24\"\n")

	result, err := h.build(t, BuildRequest{})
	require.NoError(t, err)
	assert.False(t, result.Function)
	assert.NotContains(t, h.runner.kinds(), "sf-functions-python")
	_, err = os.Stat(filepath.Join(h.layersDir, "launch.toml"))
	assert.True(t, os.IsNotExist(err))
}
