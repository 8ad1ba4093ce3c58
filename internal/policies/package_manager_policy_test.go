package policies

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"python-buildpack/internal/types"
)

func present(names ...string) func(string) bool {
	set := map[string]bool{}
	for _, name := range names {
		set[name] = true
	}
	return func(name string) bool {
		return set[name]
	}
}

func TestPackageManagerPolicySelect(t *testing.T) {
	tests := []struct {
		name  string
		files []string
		want  types.PackageManagerSelection
	}{
		{
			name:  "pip",
			files: []string{"requirements.txt"},
			want:  types.PackageManagerSelection{Manager: types.PackageManagerPip, Marker: "requirements.txt"},
		},
		{
			name:  "poetry",
			files: []string{"poetry.lock", "pyproject.toml"},
			want:  types.PackageManagerSelection{Manager: types.PackageManagerPoetry, Marker: "poetry.lock"},
		},
		{
			name:  "uv beats everything",
			files: []string{"requirements.txt", "poetry.lock", "uv.lock"},
			want: types.PackageManagerSelection{
				Manager: types.PackageManagerUV,
				Marker:  "uv.lock",
				Ignored: []string{"poetry.lock", "requirements.txt"},
			},
		},
	}
	policy := NewPackageManagerPolicy()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := policy.Select(present(tt.files...))
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("unexpected selection (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPackageManagerPolicyNoManager(t *testing.T) {
	policy := NewPackageManagerPolicy()

	_, err := policy.Select(present("pyproject.toml"))
	require.Error(t, err)
	assert.Equal(t, types.ErrorKindProjectConfiguration, types.KindOf(err))
	assert.Equal(t, types.ReasonNoPackageManager, types.ReasonOf(err))
	assert.Contains(t, err.Error(), "uv.lock (uv), poetry.lock (poetry), requirements.txt (pip)")
	assert.NotContains(t, err.Error(), "is not supported")

	_, err = policy.Select(present("Pipfile", "Pipfile.lock"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Found Pipfile, but Pipenv is not supported")
}

func TestDetectPythonProject(t *testing.T) {
	tests := []struct {
		name  string
		files []string
		want  string
		found bool
	}{
		{name: "nothing", files: []string{"package.json", "Gemfile"}},
		{name: "pin file first", files: []string{"requirements.txt", ".python-version"}, want: ".python-version", found: true},
		{name: "misspelled requirements", files: []string{"requirments.txt"}, want: "requirments.txt", found: true},
		{name: "committed venv", files: []string{".venv/"}, want: ".venv/", found: true},
		{name: "pipenv", files: []string{"Pipfile"}, want: "Pipfile", found: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := DetectPythonProject(present(tt.files...))
			assert.Equal(t, tt.found, found)
			assert.Equal(t, tt.want, got)
		})
	}
}
