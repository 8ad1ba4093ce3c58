package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"python-buildpack/internal/adapters"
	"python-buildpack/internal/policies"
	"python-buildpack/internal/shared"
	"python-buildpack/internal/types"
)

var testTarget = types.Target{
	Stack:         "heroku-24",
	Arch:          "amd64",
	DistroName:    "ubuntu",
	DistroVersion: "24.04",
}

const flaskListing = `[{"name": "Flask", "version": "3.0.0"}, {"name": "Werkzeug", "version": "3.0.1"}]`

type fakeRunner struct {
	mu       sync.Mutex
	commands []types.Command
	envs     []types.Environment
	// respond overrides the default result; returning handled=false falls
	// through to the default.
	respond func(kind string, cmd types.Command) (types.CommandResult, bool, error)
}

func (r *fakeRunner) Run(_ context.Context, cmd types.Command, env types.Environment) (types.CommandResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, cmd)
	r.envs = append(r.envs, env)
	kind := commandKind(cmd)
	if r.respond != nil {
		if result, handled, err := r.respond(kind, cmd); handled {
			return result, err
		}
	}
	if kind == "verify" {
		return types.CommandResult{Stdout: flaskListing}, nil
	}
	return types.CommandResult{}, nil
}

func (r *fakeRunner) kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, cmd := range r.commands {
		out = append(out, commandKind(cmd))
	}
	return out
}

func (r *fakeRunner) find(kind string) (types.Command, types.Environment, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, cmd := range r.commands {
		if commandKind(cmd) == kind {
			return cmd, r.envs[i], true
		}
	}
	return types.Command{}, nil, false
}

func (r *fakeRunner) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = nil
	r.envs = nil
}

func commandKind(cmd types.Command) string {
	base := filepath.Base(cmd.Name)
	args := cmd.Args
	switch {
	case len(args) > 0 && args[0] == djangoManageScript && slices.Contains(args, "help"):
		return "collectstatic-help"
	case len(args) > 0 && args[0] == djangoManageScript:
		return "collectstatic"
	case slices.ContainsFunc(args, func(arg string) bool {
		return strings.HasPrefix(arg, "pip==") || strings.HasPrefix(arg, "poetry==")
	}):
		return "tool"
	case len(args) > 1 && args[0] == "-m" && args[1] == "venv":
		return "venv"
	case cmd.Capture && (slices.Contains(args, "list") || (len(args) > 0 && args[0] == "-c")):
		return "verify"
	case base == "pip" && slices.Contains(args, "install"),
		base == "uv" && len(args) > 0 && args[0] == "sync",
		base == "poetry" && len(args) > 0 && (args[0] == "install" || args[0] == "sync"):
		return "install"
	default:
		return base
	}
}

type fakeDownloader struct {
	mu      sync.Mutex
	urls    []string
	dests   []string
	strips  []int
	formats []types.ArchiveFormat
	err     error
}

// FetchArchive lays out just enough of the real archives for the build
// to continue: the bundled pip wheel of a runtime and the uv binary.
func (d *fakeDownloader) FetchArchive(_ context.Context, url string, format types.ArchiveFormat, dest string, strip int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.urls = append(d.urls, url)
	d.dests = append(d.dests, dest)
	d.strips = append(d.strips, strip)
	d.formats = append(d.formats, format)
	if d.err != nil {
		return d.err
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return err
	}
	if format == types.ArchiveFormatTarGzip {
		return os.WriteFile(filepath.Join(dest, "uv"), []byte("#!/bin/sh\n"), 0o755)
	}
	series, ok := runtimeSeries(url)
	if !ok {
		return errors.New("unexpected runtime url " + url)
	}
	bundled := filepath.Join(dest, "lib", "python"+series, "ensurepip", "_bundled")
	if err := os.MkdirAll(bundled, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(bundled, "pip-24.3.1-py3-none-any.whl"), []byte("wheel"), 0o644)
}

func (d *fakeDownloader) calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.urls...)
}

func (d *fakeDownloader) reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.urls, d.dests, d.strips, d.formats = nil, nil, nil, nil
}

func runtimeSeries(url string) (string, bool) {
	_, rest, ok := strings.Cut(filepath.Base(url), "python-")
	if !ok {
		return "", false
	}
	parts := strings.SplitN(rest, ".", 3)
	if len(parts) < 3 {
		return "", false
	}
	return parts[0] + "." + parts[1], true
}

type fakeCompiler struct {
	mu    sync.Mutex
	roots []string
	err   error
}

func (c *fakeCompiler) Compile(_ context.Context, _ string, root string, _ types.Environment) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roots = append(c.roots, root)
	if c.err != nil {
		return 0, c.err
	}
	return 12, nil
}

type harness struct {
	appDir     string
	layersDir  string
	runner     *fakeRunner
	downloader *fakeDownloader
	compiler   *fakeCompiler
	service    Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		appDir:     t.TempDir(),
		layersDir:  t.TempDir(),
		runner:     &fakeRunner{},
		downloader: &fakeDownloader{},
		compiler:   &fakeCompiler{},
	}
	retry := shared.NewRetryPolicy(3, 1)
	retry.Sleep = func(context.Context, time.Duration) error { return nil }
	h.service = Service{
		AppDir:     h.appDir,
		LayersDir:  h.layersDir,
		Catalog:    adapters.NewReleaseCatalogAdapter(),
		Layers:     adapters.NewLayerStoreAdapter(h.layersDir),
		Project:    adapters.NewProjectFilesAdapter(h.appDir),
		Runner:     h.runner,
		Downloader: h.downloader,
		Compiler:   h.compiler,
		SBOMWriter: adapters.NewSBOMWriterAdapter(),
		Managers:   policies.NewPackageManagerPolicy(),
		Retry:      retry,
		Clock: func() time.Time {
			return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		},
	}
	return h
}

// recordingLayers notes the order of metadata and launch env writes.
type recordingLayers struct {
	adapters.LayerStoreAdapter
	writes []string
}

func (l *recordingLayers) WriteMetadata(name types.LayerName, metadata types.LayerMetadata) error {
	l.writes = append(l.writes, "metadata:"+string(name))
	return l.LayerStoreAdapter.WriteMetadata(name, metadata)
}

func (l *recordingLayers) WriteLaunchEnv(name types.LayerName, modifications []types.EnvModification) error {
	l.writes = append(l.writes, "launch-env:"+string(name))
	return l.LayerStoreAdapter.WriteLaunchEnv(name, modifications)
}

func (h *harness) write(t *testing.T, name string, content string) {
	t.Helper()
	path := filepath.Join(h.appDir, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func (h *harness) build(t *testing.T, req BuildRequest) (BuildResult, error) {
	t.Helper()
	if req.Target == (types.Target{}) {
		req.Target = testTarget
	}
	if req.Environment == nil {
		req.Environment = types.Environment{"HOME": "/home/app"}
	}
	return h.service.Build(t.Context(), req)
}

// rebuild clears the recorded calls and builds again on the same layers.
func (h *harness) rebuild(t *testing.T, req BuildRequest) (BuildResult, error) {
	t.Helper()
	h.runner.reset()
	h.downloader.reset()
	return h.build(t, req)
}

func (h *harness) metadataExists(name types.LayerName) bool {
	_, err := os.Stat(filepath.Join(h.layersDir, string(name)+".toml"))
	return err == nil
}

func actions(decisions []types.LayerDecision) map[types.LayerName]types.LayerAction {
	out := make(map[types.LayerName]types.LayerAction, len(decisions))
	for _, decision := range decisions {
		out[decision.Layer] = decision.Action
	}
	return out
}

func reasonsFor(decisions []types.LayerDecision, layer types.LayerName) []string {
	for _, decision := range decisions {
		if decision.Layer == layer {
			return decision.Reasons
		}
	}
	return nil
}
