package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"python-buildpack/internal/app"
)

func newDetectCommand(cfg *RootConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "detect",
		Short: "Report whether the app is a Python project",
		RunE: func(cmd *cobra.Command, _ []string) error {
			service := newAppService(cmd, cfg)
			result, err := service.Detect(cmd.Context(), app.DetectRequest{})
			if err != nil {
				return err
			}
			if !result.Detected {
				return errNotDetected
			}
			manager := string(result.PackageManager)
			if manager == "" {
				manager = "none"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "detected: %s (package manager: %s)\n", result.MatchedFile, manager)
			return nil
		},
	}
}
