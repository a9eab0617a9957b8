package commands

import (
	"github.com/spf13/cobra"
)

func (c *CLI) newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Refresh the local index of every configured channel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			indices, err := c.app.SyncAll(cmd.Context())
			if err != nil {
				return err
			}
			for _, idx := range indices {
				cmd.Printf("%s/%s: %d packages\n", idx.Channel, idx.Subdir, len(idx.Records))
			}
			return nil
		},
	}
}
