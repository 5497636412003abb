package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/strataorm/strata/cmd/strata/output"
)

// schemaCmd represents the schema command
var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Manage the physical schema derived from the model manifest",
	Long: `Create or drop the tables backing the manifest's models, including the
join tables of their to-many associations.

Examples:
  strata schema create --db postgres://localhost/app --manifest models.yaml
  strata schema drop   --db sqlite://app.db`,
}

// schemaCreateCmd creates model and join tables
var schemaCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create model tables and join tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSchema(true)
	},
}

// schemaDropCmd drops model and join tables
var schemaDropCmd = &cobra.Command{
	Use:   "drop",
	Short: "Drop model tables and join tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSchema(false)
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
	schemaCmd.AddCommand(schemaCreateCmd, schemaDropCmd)
}

func runSchema(create bool) error {
	manifest, err := LoadManifest(manifestPath)
	if err != nil {
		return err
	}

	ctx := context.Background()
	conn, err := openConnection(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := manifest.Apply(conn); err != nil {
		return err
	}

	if create {
		if err := conn.CreateSchema(ctx); err != nil {
			output.Error("schema create failed")
			return err
		}
		output.Success("created tables for %d model(s)", len(manifest.Models))
		return nil
	}

	if err := conn.DropSchema(ctx); err != nil {
		output.Error("schema drop failed")
		return err
	}
	output.Success("dropped tables for %d model(s)", len(manifest.Models))
	return nil
}
