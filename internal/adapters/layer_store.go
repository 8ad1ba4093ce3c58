package adapters

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"python-buildpack/internal/ports"
	"python-buildpack/internal/types"
)

const fingerprintMetadataKey = "fingerprint"

// LayerStoreAdapter keeps layers in the CNB layout: content under
// <root>/<name>/ and metadata in <root>/<name>.toml.
type LayerStoreAdapter struct {
	Root string
}

func NewLayerStoreAdapter(root string) LayerStoreAdapter {
	return LayerStoreAdapter{Root: root}
}

type layerMetadataFile struct {
	Types    layerTypesTable   `toml:"types"`
	Metadata map[string]string `toml:"metadata"`
}

type layerTypesTable struct {
	Build  bool `toml:"build"`
	Cache  bool `toml:"cache"`
	Launch bool `toml:"launch"`
}

func (a LayerStoreAdapter) Path(name types.LayerName) string {
	return filepath.Join(a.Root, string(name))
}

func (a LayerStoreAdapter) metadataPath(name types.LayerName) string {
	return filepath.Join(a.Root, string(name)+".toml")
}

func (a LayerStoreAdapter) ReadMetadata(ctx context.Context, name types.LayerName) (*types.LayerMetadata, error) {
	path := a.metadataPath(name)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, layerIOError(fmt.Sprintf("failed to read metadata of layer %s", name), err)
	}
	var file layerMetadataFile
	if _, err := toml.Decode(string(data), &file); err != nil {
		log.Ctx(ctx).Warn().Str("layer", string(name)).Err(err).Msg("layer metadata is corrupt, treating layer as absent")
		return nil, nil
	}
	fingerprint := strings.TrimSpace(file.Metadata[fingerprintMetadataKey])
	if fingerprint == "" {
		log.Ctx(ctx).Warn().Str("layer", string(name)).Msg("layer metadata has no fingerprint, treating layer as absent")
		return nil, nil
	}
	extra := make(map[string]string, len(file.Metadata))
	for key, value := range file.Metadata {
		if key == fingerprintMetadataKey {
			continue
		}
		extra[key] = value
	}
	return &types.LayerMetadata{
		Fingerprint: fingerprint,
		Build:       file.Types.Build,
		Launch:      file.Types.Launch,
		Cache:       file.Types.Cache,
		Extra:       extra,
	}, nil
}

// WriteMetadata replaces the metadata file atomically, so an interrupted
// build leaves either the old record or the new one.
func (a LayerStoreAdapter) WriteMetadata(name types.LayerName, metadata types.LayerMetadata) error {
	if err := os.MkdirAll(a.Root, 0o755); err != nil {
		return layerIOError("failed to create layers directory", err)
	}
	values := make(map[string]string, len(metadata.Extra)+1)
	for key, value := range metadata.Extra {
		values[key] = value
	}
	values[fingerprintMetadataKey] = metadata.Fingerprint
	file := layerMetadataFile{
		Types: layerTypesTable{
			Build:  metadata.Build,
			Cache:  metadata.Cache,
			Launch: metadata.Launch,
		},
		Metadata: values,
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(file); err != nil {
		return layerIOError(fmt.Sprintf("failed to encode metadata of layer %s", name), err)
	}
	return writeFileAtomic(a.metadataPath(name), buf.Bytes(), 0o644)
}

func (a LayerStoreAdapter) Reset(name types.LayerName) error {
	if err := a.Remove(name); err != nil {
		return err
	}
	_, err := a.Ensure(name)
	return err
}

// Remove deletes the metadata before the content, so a crash in between
// leaves a layer that reads as absent.
func (a LayerStoreAdapter) Remove(name types.LayerName) error {
	if err := a.RemoveMetadata(name); err != nil {
		return err
	}
	if err := os.RemoveAll(a.Path(name)); err != nil {
		return layerIOError(fmt.Sprintf("failed to remove layer %s", name), err)
	}
	return nil
}

func (a LayerStoreAdapter) RemoveMetadata(name types.LayerName) error {
	if err := os.Remove(a.metadataPath(name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return layerIOError(fmt.Sprintf("failed to remove metadata of layer %s", name), err)
	}
	return nil
}

func (a LayerStoreAdapter) Ensure(name types.LayerName) (string, error) {
	path := a.Path(name)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", layerIOError(fmt.Sprintf("failed to create layer %s", name), err)
	}
	return path, nil
}

// WriteLaunchEnv persists modifications as env.launch files: NAME.override,
// NAME.default, or NAME.prepend together with NAME.delim.
func (a LayerStoreAdapter) WriteLaunchEnv(name types.LayerName, modifications []types.EnvModification) error {
	dir := filepath.Join(a.Path(name), "env.launch")
	if err := os.RemoveAll(dir); err != nil {
		return layerIOError(fmt.Sprintf("failed to clear launch env of layer %s", name), err)
	}
	if len(modifications) == 0 {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return layerIOError(fmt.Sprintf("failed to create launch env of layer %s", name), err)
	}
	for _, mod := range modifications {
		base := filepath.Join(dir, mod.Name)
		if err := os.WriteFile(base+"."+string(mod.Behavior), []byte(mod.Value), 0o644); err != nil {
			return layerIOError(fmt.Sprintf("failed to write launch env %s of layer %s", mod.Name, name), err)
		}
		if mod.Behavior != types.EnvBehaviorPrepend {
			continue
		}
		delimiter := mod.Delimiter
		if delimiter == "" {
			delimiter = string(os.PathListSeparator)
		}
		if err := os.WriteFile(base+".delim", []byte(delimiter), 0o644); err != nil {
			return layerIOError(fmt.Sprintf("failed to write launch env %s of layer %s", mod.Name, name), err)
		}
	}
	return nil
}

type launchFile struct {
	Processes []types.LaunchProcess `toml:"processes"`
}

func (a LayerStoreAdapter) WriteLaunch(processes []types.LaunchProcess) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(launchFile{Processes: processes}); err != nil {
		return layerIOError("failed to encode launch.toml", err)
	}
	return writeFileAtomic(filepath.Join(a.Root, "launch.toml"), buf.Bytes(), 0o644)
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return layerIOError("failed to create temporary metadata file", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = os.Remove(tmpName)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return layerIOError("failed to write temporary metadata file", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return layerIOError("failed to sync temporary metadata file", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return layerIOError("failed to close temporary metadata file", err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		cleanup()
		return layerIOError("failed to set metadata file permissions", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return layerIOError("failed to replace metadata file", err)
	}
	return nil
}

func layerIOError(msg string, err error) error {
	return types.NewBuildError(types.ErrorKindLayerIO, "",
		errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(msg).
			WithCause(err))
}

var _ ports.LayerStorePort = LayerStoreAdapter{}
