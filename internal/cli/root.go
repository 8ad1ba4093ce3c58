package cli

import (
	"context"
	"errors"
	"os"
	"runtime"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"python-buildpack/internal/types"
)

// version is set at build time via ldflags.
var version = "dev"

const envPrefix = "PYTHON_BUILDPACK"

// exitCodeNotDetected is the buildpack protocol code for "this buildpack
// does not apply".
const exitCodeNotDetected = 100

var errNotDetected = errors.New("no Python project files found")

type RootConfig struct {
	ConfigFile    string
	LogLevel      string
	AppDir        string
	LayersDir     string
	Stack         string
	Arch          string
	DistroName    string
	DistroVersion string
	Catalog       string
}

func Execute() {
	root := newRootCommand()
	if err := root.ExecuteContext(context.Background()); err != nil {
		code := exitCodeForError(err)
		if code != exitCodeNotDetected {
			event := log.Error()
			if kind := types.KindOf(err); kind != "" {
				event = event.Str("kind", string(kind))
			}
			if reason := types.ReasonOf(err); reason != "" {
				event = event.Str("reason", string(reason))
			}
			event.Msg(errorMessage(err))
		}
		os.Exit(code)
	}
}

func newRootCommand() *cobra.Command {
	cfg := &RootConfig{}
	cmd := &cobra.Command{
		Use:           "python-buildpack",
		Short:         "Build Python apps into cached runtime and dependency layers",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := initConfig(cfg.ConfigFile); err != nil {
				return err
			}
			setupLogging(viper.GetString("log_level"))
			cmd.SetContext(log.Logger.WithContext(cmd.Context()))
			return nil
		},
	}
	flags := cmd.PersistentFlags()
	flags.StringVar(&cfg.ConfigFile, "config", "", "Config file path")
	flags.StringVar(&cfg.LogLevel, "log-level", "info", "Log level")
	flags.StringVar(&cfg.AppDir, "app-dir", ".", "Application source directory")
	flags.StringVar(&cfg.LayersDir, "layers-dir", "layers", "Directory holding the buildpack layers")
	flags.StringVar(&cfg.Stack, "stack", "heroku-24", "Stack identifier")
	flags.StringVar(&cfg.Arch, "arch", runtime.GOARCH, "Target CPU architecture")
	flags.StringVar(&cfg.DistroName, "distro-name", "ubuntu", "Target distribution name")
	flags.StringVar(&cfg.DistroVersion, "distro-version", "24.04", "Target distribution version")
	flags.StringVar(&cfg.Catalog, "catalog", "", "Release catalog override (YAML)")
	_ = viper.BindPFlag("log_level", flags.Lookup("log-level"))
	_ = viper.BindPFlag("app_dir", flags.Lookup("app-dir"))
	_ = viper.BindPFlag("layers_dir", flags.Lookup("layers-dir"))
	_ = viper.BindPFlag("stack", flags.Lookup("stack"))
	_ = viper.BindPFlag("arch", flags.Lookup("arch"))
	_ = viper.BindPFlag("distro_name", flags.Lookup("distro-name"))
	_ = viper.BindPFlag("distro_version", flags.Lookup("distro-version"))
	_ = viper.BindPFlag("catalog", flags.Lookup("catalog"))

	cmd.AddCommand(newBuildCommand(cfg))
	cmd.AddCommand(newDetectCommand(cfg))
	cmd.AddCommand(newResolveCommand(cfg))
	cmd.AddCommand(newInspectCommand(cfg))
	return cmd
}

func initConfig(configFile string) error {
	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv()

	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("failed to read config file").
				WithCause(err)
		}
		return nil
	}

	viper.SetConfigName("python-buildpack")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.config/python-buildpack")
	if err := viper.ReadInConfig(); err != nil {
		return nil
	}
	return nil
}

// setupLogging sends logs to stderr; stdout carries command results.
func setupLogging(level string) {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

func exitCodeForError(err error) int {
	if errors.Is(err, errNotDetected) {
		return exitCodeNotDetected
	}
	switch types.KindOf(err) {
	case types.ErrorKindProjectConfiguration:
		return 2
	case types.ErrorKindEnvironmentConflict:
		return 3
	case types.ErrorKindVersionResolution:
		return 4
	case types.ErrorKindLayerIO:
		return 5
	case types.ErrorKindNetwork:
		return 6
	case types.ErrorKindSubprocess:
		return 7
	}
	switch errbuilder.CodeOf(err) {
	case errbuilder.CodeInvalidArgument, errbuilder.CodeAlreadyExists:
		return 2
	case errbuilder.CodePermissionDenied:
		return 3
	case errbuilder.CodeFailedPrecondition:
		return 4
	case errbuilder.CodeNotFound, errbuilder.CodeInternal:
		return 5
	default:
		return 1
	}
}

func errorMessage(err error) string {
	var builder *errbuilder.ErrBuilder
	if errors.As(err, &builder) && strings.TrimSpace(builder.Msg) != "" {
		return builder.Msg
	}
	return err.Error()
}
