package cli

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"python-buildpack/internal/app"
	"python-buildpack/internal/types"
)

func resolveString(cmd *cobra.Command, value string, key string, flagName string) string {
	if cmd == nil {
		if value != "" {
			return value
		}
		return viper.GetString(key)
	}
	if flagChanged(cmd, flagName) {
		return value
	}
	return viper.GetString(key)
}

func resolveInt(cmd *cobra.Command, value int, key string, flagName string) int {
	if cmd == nil {
		return value
	}
	if flagChanged(cmd, flagName) {
		return value
	}
	return viper.GetInt(key)
}

func resolveBool(cmd *cobra.Command, value bool, key string, flagName string) bool {
	if cmd == nil {
		return value
	}
	if flagChanged(cmd, flagName) {
		return value
	}
	return viper.GetBool(key)
}

func flagChanged(cmd *cobra.Command, name string) bool {
	if cmd == nil || strings.TrimSpace(name) == "" {
		return false
	}
	if flag := cmd.Flags().Lookup(name); flag != nil {
		return flag.Changed
	}
	if flag := cmd.InheritedFlags().Lookup(name); flag != nil {
		return flag.Changed
	}
	if flag := cmd.PersistentFlags().Lookup(name); flag != nil {
		return flag.Changed
	}
	return false
}

func resolveTarget(cmd *cobra.Command, cfg *RootConfig) types.Target {
	return types.Target{
		Stack:         resolveString(cmd, cfg.Stack, "stack", "stack"),
		Arch:          resolveString(cmd, cfg.Arch, "arch", "arch"),
		DistroName:    resolveString(cmd, cfg.DistroName, "distro_name", "distro-name"),
		DistroVersion: resolveString(cmd, cfg.DistroVersion, "distro_version", "distro-version"),
	}
}

func newAppService(cmd *cobra.Command, cfg *RootConfig) app.Service {
	return app.NewService(app.ServiceConfig{
		AppDir:    resolveString(cmd, cfg.AppDir, "app_dir", "app-dir"),
		LayersDir: resolveString(cmd, cfg.LayersDir, "layers_dir", "layers-dir"),
	})
}
