package types

type PackageManagerSelection struct {
	Manager PackageManager
	Marker  string
	// Ignored lists markers of lower precedence managers that were also
	// present.
	Ignored []string
}

type PyProject struct {
	RequiresPython string
	PoetryPython   string
}

type SalesforceProjectType string

const SalesforceProjectFunction SalesforceProjectType = "function"

// ProjectDescriptor is the part of project.toml the build reads.
type ProjectDescriptor struct {
	// SalesforceType is empty when there is no [com.salesforce] table.
	SalesforceType SalesforceProjectType
}

type LockedPackage struct {
	Name    string
	Version string
	// Required pins must be installed. Lock entries of optional groups or
	// behind environment markers only need to match when present.
	Required bool
}

type Lockfile struct {
	Path     string
	Packages []LockedPackage
}

type InstalledPackage struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type Command struct {
	Name string
	Args []string
	Dir  string
	Env  []string
	// Capture collects stdout instead of streaming it to the build log.
	Capture bool
}

type CommandResult struct {
	ExitCode int
	Stdout   string
	// StderrTail holds the last lines of stderr for diagnostics.
	StderrTail string
}
