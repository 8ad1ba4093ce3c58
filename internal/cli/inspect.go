package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"python-buildpack/internal/app"
)

func newInspectCommand(cfg *RootConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "Show layer metadata and the decision the next build would make",
		RunE: func(cmd *cobra.Command, _ []string) error {
			service := newAppService(cmd, cfg)
			result, err := service.Inspect(cmd.Context(), app.InspectRequest{
				Target:      resolveTarget(cmd, cfg),
				CatalogPath: resolveString(cmd, cfg.Catalog, "catalog", "catalog"),
			})
			if err != nil {
				return err
			}
			printInspect(cmd, result)
			return nil
		},
	}
}

func printInspect(cmd *cobra.Command, result app.InspectResult) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "python: %s\n", result.PythonVersion)
	fmt.Fprintf(out, "package manager: %s\n", result.PackageManager)
	for _, layer := range result.Layers {
		switch {
		case !layer.Used && !layer.Present:
			continue
		case !layer.Used:
			fmt.Fprintf(out, "- %s: unused, removed on next build\n", layer.Name)
			continue
		}
		fingerprint := "none"
		if layer.Existing != nil {
			fingerprint = layer.Existing.Fingerprint
		}
		fmt.Fprintf(out, "- %s: %s (fingerprint %s)\n", layer.Name, layer.Decision.Action, fingerprint)
		if len(layer.Decision.Reasons) > 0 {
			fmt.Fprintf(out, "  %s\n", strings.Join(layer.Decision.Reasons, "\n  "))
		}
	}
}
