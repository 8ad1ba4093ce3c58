package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"python-buildpack/internal/app"
)

func newResolveCommand(cfg *RootConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve",
		Short: "Print the Python version a build would install",
		RunE: func(cmd *cobra.Command, _ []string) error {
			service := newAppService(cmd, cfg)
			result, err := service.Resolve(cmd.Context(), app.ResolveRequest{
				Target:      resolveTarget(cmd, cfg),
				CatalogPath: resolveString(cmd, cfg.Catalog, "catalog", "catalog"),
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", result.Version)
			fmt.Fprintf(cmd.OutOrStdout(), "source: %s (%s)\n", result.Specifier.Source, describeSpecifier(result.Specifier))
			return nil
		},
	}
}
