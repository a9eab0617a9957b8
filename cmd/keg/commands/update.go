package commands

import (
	"github.com/spf13/cobra"
)

func (c *CLI) newUpdateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update [specs...]",
		Short: "Update packages to the newest consistent versions",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			all, _ := cmd.Flags().GetBool("all")
			if len(args) == 0 && !all {
				_ = cmd.Help()
				return nil
			}
			result, err := c.app.Update(cmd.Context(), prefixFlag(cmd), args, all)
			if err != nil {
				return err
			}
			cmd.Printf("%s: %d linked, %d unlinked\n", result.State, result.Linked, result.Unlinked)
			return nil
		},
	}
	cmd.Flags().BoolP("all", "a", false, "Update every installed package")
	return cmd
}
