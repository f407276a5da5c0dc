package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/backendex/backendex/pkg/config"
)

func newValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file without contacting the controller",
		Long: `Load the configuration file and run every offline check: CUE schema
conformance, struct-level validation, regex compilation, and policy file
readability. No network call is made.`,
		Example: `  # Validate the default config file
  backendex validate

  # Validate a specific file
  backendex validate -c ./prod.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			fmt.Printf("%s is valid (controller %s, output %s/%s)\n",
				configPath, cfg.Controller.BaseURL, cfg.Output.Format, cfg.Output.Path)
			return nil
		},
	}

	return cmd
}
