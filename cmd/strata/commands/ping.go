package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/strataorm/strata/cmd/strata/output"
)

// pingCmd verifies the engine connection
var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Verify the engine connection",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		drv, err := openDriver(ctx, dbURL)
		if err != nil {
			output.Error("connection failed")
			return err
		}
		defer drv.Close()
		output.Success("engine reachable")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pingCmd)
}
