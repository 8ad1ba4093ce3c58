package core

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"python-buildpack/internal/types"
)

// ProtocolVersion is mixed into every fingerprint. Bumping it
// invalidates all cached layers.
const ProtocolVersion = "1"

const (
	FingerprintKeyProtocol       = "protocol_version"
	FingerprintKeyStack          = "stack"
	FingerprintKeyArch           = "arch"
	FingerprintKeyDistro         = "distro"
	FingerprintKeyPythonVersion  = "python_version"
	FingerprintKeyPythonSeries   = "python_series"
	FingerprintKeyManager        = "package_manager"
	FingerprintKeyManagerVersion = "package_manager_version"
	fingerprintKeyFilePrefix     = "file:"
)

type FingerprintBuilder struct {
	components []types.FingerprintComponent
}

func NewFingerprint() *FingerprintBuilder {
	return &FingerprintBuilder{}
}

// WithTarget adds the components shared by every layer.
func (b *FingerprintBuilder) WithTarget(target types.Target) *FingerprintBuilder {
	return b.
		With(FingerprintKeyProtocol, "buildpack protocol version", ProtocolVersion).
		With(FingerprintKeyStack, "stack", target.Stack).
		With(FingerprintKeyArch, "CPU architecture", target.Arch).
		With(FingerprintKeyDistro, "OS", target.Distro())
}

func (b *FingerprintBuilder) With(key string, label string, value string) *FingerprintBuilder {
	b.components = append(b.components, types.FingerprintComponent{
		Key:   key,
		Label: label,
		Value: value,
	})
	return b
}

// WithFile adds a content hash of a declaration file. Only the hash is
// stored, never the content.
func (b *FingerprintBuilder) WithFile(name string, content []byte) *FingerprintBuilder {
	sum := sha256.Sum256(content)
	b.components = append(b.components, types.FingerprintComponent{
		Key:    fingerprintKeyFilePrefix + name,
		Label:  "file " + name,
		Value:  hex.EncodeToString(sum[:]),
		Opaque: true,
	})
	return b
}

func (b *FingerprintBuilder) Build() types.Fingerprint {
	components := append([]types.FingerprintComponent(nil), b.components...)
	sort.SliceStable(components, func(i, j int) bool {
		return components[i].Key < components[j].Key
	})
	return types.Fingerprint{Components: components}
}

// FingerprintDigest hashes the key ordered components. Equal digests
// mean the layer content is interchangeable.
func FingerprintDigest(fp types.Fingerprint) string {
	var builder strings.Builder
	for _, component := range fp.Components {
		builder.WriteString(component.Key)
		builder.WriteString("=")
		builder.WriteString(component.Value)
		builder.WriteString("\n")
	}
	sum := sha256.Sum256([]byte(builder.String()))
	return "sha256:" + hex.EncodeToString(sum[:])
}

// DesiredMetadata is the record a layer carries once populated for fp.
// Components are copied into Extra so a later mismatch can be explained.
func DesiredMetadata(kind types.LayerKind, fp types.Fingerprint) types.LayerMetadata {
	extra := make(map[string]string, len(fp.Components))
	for _, component := range fp.Components {
		extra[component.Key] = component.Value
	}
	return types.LayerMetadata{
		Fingerprint: FingerprintDigest(fp),
		Build:       kind.Build,
		Launch:      kind.Launch,
		Cache:       kind.Cache,
		Extra:       extra,
	}
}
