package policies

// KnownProjectFiles mark a directory as a Python project. The list is
// wider than the supported manager files so that incomplete projects still
// reach the build and get an actionable error there.
var KnownProjectFiles = []string{
	".python-version",
	"__init__.py",
	"app.py",
	"main.py",
	"manage.py",
	"pdm.lock",
	"Pipfile",
	"Pipfile.lock",
	"poetry.lock",
	"pyproject.toml",
	"requirements.txt",
	"runtime.txt",
	"server.py",
	"setup.cfg",
	"setup.py",
	"uv.lock",
	// Common misspellings of requirements.txt.
	"requirement.txt",
	"Requirements.txt",
	"requirements.text",
	"requirements.txt.txt",
	"requirments.txt",
	// Committed virtual environments.
	".venv/",
	"venv/",
}

// DetectPythonProject returns the first known project file present.
func DetectPythonProject(exists func(name string) bool) (string, bool) {
	for _, name := range KnownProjectFiles {
		if exists(name) {
			return name, true
		}
	}
	return "", false
}
