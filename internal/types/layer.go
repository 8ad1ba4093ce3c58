package types

type LayerName string

const (
	LayerPython      LayerName = "python"
	LayerPip         LayerName = "pip"
	LayerPoetry      LayerName = "poetry"
	LayerUV          LayerName = "uv"
	LayerPipCache    LayerName = "pip-cache"
	LayerPoetryCache LayerName = "poetry-cache"
	LayerUVCache     LayerName = "uv-cache"
	LayerVenv        LayerName = "venv"
)

// LayerKind holds the fixed flags of a layer. Flags are never computed
// per build.
type LayerKind struct {
	Name     LayerName
	Role     LayerRole
	Build    bool
	Launch   bool
	Cache    bool
	Strategy LayerStrategy
}

type LayerMetadata struct {
	Fingerprint string
	Build       bool
	Launch      bool
	Cache       bool
	Extra       map[string]string
}

type FingerprintComponent struct {
	Key   string
	Label string
	Value string
	// Opaque components (content hashes) are reported as changed
	// without printing their values.
	Opaque bool
}

type Fingerprint struct {
	Components []FingerprintComponent
}

type LayerDecision struct {
	Layer   LayerName
	Action  LayerAction
	Reasons []string
}

// LaunchProcess is one [[processes]] entry of launch.toml.
type LaunchProcess struct {
	Type    string   `toml:"type"`
	Command []string `toml:"command"`
	Args    []string `toml:"args,omitempty"`
	Default bool     `toml:"default"`
}
