package cli

import (
	"fmt"

	"github.com/cloo-solutions/insightd/internal/config"
	"github.com/cloo-solutions/insightd/internal/registry"
	"github.com/spf13/cobra"
)

// CreatorsCmd returns the creators command
func CreatorsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "creators",
		Short: "List and validate registered creators",
		Long: `Load the creator registry, report any invalid entry and list the creators.

The registry path comes from --file, or REGISTRY_PATH when the flag is unset.`,
		Args: cobra.NoArgs,
		RunE: runCreators,
	}

	cmd.Flags().StringP("tier", "t", "", "Only list creators of this tier")
	cmd.Flags().StringP("file", "f", "", "Registry document (JSON, YAML or TOML)")

	return cmd
}

func runCreators(cmd *cobra.Command, args []string) error {
	tierFlag, _ := cmd.Flags().GetString("tier")
	tier, err := parseTier(tierFlag)
	if err != nil {
		return err
	}

	path, _ := cmd.Flags().GetString("file")
	if path == "" {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		path = cfg.RegistryPath
	}

	creators, err := registry.New(path).Load(cmd.Context())
	if err != nil {
		return err
	}
	creators = registry.Filter(creators, tier)

	if jsonOutput(cmd) {
		return writeJSON(cmd, creators)
	}
	if len(creators) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No creators registered")
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderCreators(creators))
	return nil
}
