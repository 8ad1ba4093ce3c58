package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"python-buildpack/internal/app"
	"python-buildpack/internal/types"
)

type buildOptions struct {
	RuntimeBaseURL      string
	UVBaseURL           string
	UpgradePolicy       string
	Retries             int
	RetryDelayMs        int
	HTTPTimeout         int
	CompileWorkers      int
	DjangoCollectstatic bool
}

func newBuildCommand(cfg *RootConfig) *cobra.Command {
	opts := buildOptions{}
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Install the Python runtime, package manager and dependencies into layers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBuild(cmd.Context(), cmd, cfg, opts)
		},
	}

	cmd.Flags().StringVar(&opts.RuntimeBaseURL, "runtime-base-url", "", "Mirror URL for Python runtime archives")
	cmd.Flags().StringVar(&opts.UVBaseURL, "uv-base-url", "", "Mirror URL for uv release archives")
	cmd.Flags().StringVar(&opts.UpgradePolicy, "upgrade-policy", string(types.UpgradePolicyNever), "Reinstall dependencies of a cached layer: never or on-keep")
	cmd.Flags().IntVar(&opts.Retries, "retries", 3, "Attempts for network operations")
	cmd.Flags().IntVar(&opts.RetryDelayMs, "retry-delay-ms", 200, "Base delay between attempts in milliseconds")
	cmd.Flags().IntVar(&opts.HTTPTimeout, "http-timeout", 300, "Download timeout in seconds")
	cmd.Flags().IntVar(&opts.CompileWorkers, "compile-workers", 0, "Bytecode compile workers (0 uses all CPUs)")
	cmd.Flags().BoolVar(&opts.DjangoCollectstatic, "django-collectstatic", true, "Run Django collectstatic when Django is installed")

	_ = viper.BindPFlag("runtime_base_url", cmd.Flags().Lookup("runtime-base-url"))
	_ = viper.BindPFlag("uv_base_url", cmd.Flags().Lookup("uv-base-url"))
	_ = viper.BindPFlag("upgrade_policy", cmd.Flags().Lookup("upgrade-policy"))
	_ = viper.BindPFlag("retries", cmd.Flags().Lookup("retries"))
	_ = viper.BindPFlag("retry_delay_ms", cmd.Flags().Lookup("retry-delay-ms"))
	_ = viper.BindPFlag("http_timeout", cmd.Flags().Lookup("http-timeout"))
	_ = viper.BindPFlag("compile_workers", cmd.Flags().Lookup("compile-workers"))
	_ = viper.BindPFlag("django_collectstatic", cmd.Flags().Lookup("django-collectstatic"))

	return cmd
}

func runBuild(ctx context.Context, cmd *cobra.Command, cfg *RootConfig, opts buildOptions) error {
	service := app.NewService(app.ServiceConfig{
		AppDir:         resolveString(cmd, cfg.AppDir, "app_dir", "app-dir"),
		LayersDir:      resolveString(cmd, cfg.LayersDir, "layers_dir", "layers-dir"),
		HTTPTimeoutSec: resolveInt(cmd, opts.HTTPTimeout, "http_timeout", "http-timeout"),
		Retries:        resolveInt(cmd, opts.Retries, "retries", "retries"),
		RetryDelayMs:   resolveInt(cmd, opts.RetryDelayMs, "retry_delay_ms", "retry-delay-ms"),
		CompileWorkers: resolveInt(cmd, opts.CompileWorkers, "compile_workers", "compile-workers"),
	})
	result, err := service.Build(ctx, app.BuildRequest{
		Target:              resolveTarget(cmd, cfg),
		Environment:         types.EnvironmentFromPairs(os.Environ()),
		CatalogPath:         resolveString(cmd, cfg.Catalog, "catalog", "catalog"),
		RuntimeBaseURL:      resolveString(cmd, opts.RuntimeBaseURL, "runtime_base_url", "runtime-base-url"),
		UVBaseURL:           resolveString(cmd, opts.UVBaseURL, "uv_base_url", "uv-base-url"),
		UpgradePolicy:       types.UpgradePolicy(resolveString(cmd, opts.UpgradePolicy, "upgrade_policy", "upgrade-policy")),
		DjangoCollectstatic: resolveBool(cmd, opts.DjangoCollectstatic, "django_collectstatic", "django-collectstatic"),
	})
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "python: %s (%s)\n", result.PythonVersion, describeSpecifier(result.Specifier))
	fmt.Fprintf(out, "package manager: %s\n", result.PackageManager)
	for _, decision := range result.Decisions {
		fmt.Fprintf(out, "layer %s: %s\n", decision.Layer, decision.Action)
	}
	fmt.Fprintf(out, "installed packages: %d\n", len(result.Installed))
	if result.Function {
		fmt.Fprintln(out, "salesforce function: validated")
	}
	return nil
}

func describeSpecifier(spec types.VersionSpecifier) string {
	if spec.Origin == "" {
		return "default"
	}
	return fmt.Sprintf("%s from %s", spec.Raw, spec.Origin)
}
