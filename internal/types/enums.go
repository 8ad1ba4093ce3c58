package types

type PackageManager string

const (
	PackageManagerPip    PackageManager = "pip"
	PackageManagerPoetry PackageManager = "poetry"
	PackageManagerUV     PackageManager = "uv"
)

type VersionSource string

const (
	VersionSourcePinFile   VersionSource = "python-version-file"
	VersionSourcePyProject VersionSource = "pyproject"
	VersionSourceDefault   VersionSource = "default"
)

type Phase string

const (
	PhaseBuild  Phase = "build"
	PhaseLaunch Phase = "launch"
)

type LayerAction string

const (
	LayerActionKeep     LayerAction = "keep"
	LayerActionUpdate   LayerAction = "update"
	LayerActionRecreate LayerAction = "recreate"
)

type LayerStrategy string

const (
	LayerStrategyRecreate LayerStrategy = "recreate"
	LayerStrategyUpdate   LayerStrategy = "update"
)

// LayerRole orders environment contributions. Lower roles are applied
// first, so later roles shadow them on search paths.
type LayerRole int

const (
	LayerRoleRuntime LayerRole = iota
	LayerRoleTool
	LayerRoleCache
	LayerRoleDependencies
)

type EnvBehavior string

const (
	EnvBehaviorOverride EnvBehavior = "override"
	EnvBehaviorPrepend  EnvBehavior = "prepend"
	EnvBehaviorDefault  EnvBehavior = "default"
)

type EnvScope string

const (
	EnvScopeAll    EnvScope = "all"
	EnvScopeBuild  EnvScope = "build"
	EnvScopeLaunch EnvScope = "launch"
)

type UpgradePolicy string

const (
	UpgradePolicyNever  UpgradePolicy = "never"
	UpgradePolicyOnKeep UpgradePolicy = "on-keep"
)

type ArchiveFormat string

const (
	ArchiveFormatTarZstd ArchiveFormat = "tar.zst"
	ArchiveFormatTarGzip ArchiveFormat = "tar.gz"
)

type InstallState string

const (
	InstallStateIdle         InstallState = "idle"
	InstallStateDetected     InstallState = "detected"
	InstallStateToolAcquired InstallState = "tool-acquired"
	InstallStateInstalling   InstallState = "installing"
	InstallStateVerified     InstallState = "verified"
	InstallStateDone         InstallState = "done"
	InstallStateFailed       InstallState = "failed"
)

type FailureClass string

const (
	FailureRetryable FailureClass = "retryable"
	FailureFatal     FailureClass = "fatal"
)
