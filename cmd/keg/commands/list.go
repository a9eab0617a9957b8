package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func (c *CLI) newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the packages installed in the prefix",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			records, err := c.app.List(prefixFlag(cmd))
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 4, 2, ' ', 0)
			for _, rec := range records {
				marker := ""
				if rec.RequestedByUser {
					marker = "*"
				}
				_, _ = fmt.Fprintf(w, "%s%s\t%s\t%s\t%s\n",
					rec.Record.Name.String(), marker, rec.Record.Version, rec.Record.Build, rec.Record.Channel)
			}
			return w.Flush()
		},
	}
}
