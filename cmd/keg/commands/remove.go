package commands

import (
	"github.com/spf13/cobra"
)

func (c *CLI) newRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove [packages...]",
		Short: "Remove packages from the prefix",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := c.app.Remove(cmd.Context(), prefixFlag(cmd), args)
			if err != nil {
				return err
			}
			cmd.Printf("%s: %d linked, %d unlinked\n", result.State, result.Linked, result.Unlinked)
			return nil
		},
	}
}
