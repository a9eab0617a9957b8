package commands

import (
	"github.com/spf13/cobra"
)

func (c *CLI) newInstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "install [specs...]",
		Short: "Install packages into the prefix",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				// Display command usage help without returning an error
				_ = cmd.Help()
				return nil
			}
			result, err := c.app.Install(cmd.Context(), prefixFlag(cmd), args)
			if err != nil {
				return err
			}
			cmd.Printf("%s: %d linked, %d unlinked\n", result.State, result.Linked, result.Unlinked)
			return nil
		},
	}
}
