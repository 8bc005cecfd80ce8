package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/provisio/provisio/pkg/repo"
)

func newValidateCommand() *cobra.Command {
	var checkRepository bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a manifest",
		Long: `Validate the manifest named by --config: required fields, feature
selection, and telemetry settings. With --check-repository the root
descriptor is also fetched and parsed.`,
		Example: `  # Validate the manifest only
  provisio -c provisio.yaml validate

  # Also fetch and parse the root descriptor
  provisio -c provisio.yaml validate --check-repository`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("validate requires --config")
			}

			m, err := loadManifest(resolveFlags{})
			if err != nil {
				return err
			}

			if checkRepository {
				loader := repo.NewLoader(repo.NewFetcher())
				desc, err := loader.Load(cmd.Context(), m.Repository)
				if err != nil {
					return fmt.Errorf("root repository check failed: %w", err)
				}
				fmt.Printf("Repository %q loaded: %d entries\n", desc.Name, len(desc.Entries))
			}

			fmt.Println("Manifest is valid")
			return nil
		},
	}

	cmd.Flags().BoolVar(&checkRepository, "check-repository", false, "fetch and parse the root descriptor")

	return cmd
}
