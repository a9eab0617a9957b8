// Package commands implements the CLI commands for the keg package manager.
package commands

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"go.trai.ch/keg/internal/app"
	"go.trai.ch/keg/internal/build"
)

// CLI represents the command line interface for keg.
type CLI struct {
	app     *app.App
	rootCmd *cobra.Command
}

// New creates a new CLI instance with the given app.
func New(a *app.App) *CLI {
	rootCmd := &cobra.Command{
		Use:           "keg",
		Short:         "A transactional package and environment manager",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       build.Version,
	}

	rootCmd.InitDefaultVersionFlag()
	rootCmd.Flags().Lookup("version").Usage = "Print the application version"

	rootCmd.InitDefaultHelpFlag()
	rootCmd.Flags().Lookup("help").Usage = "Show help for command"

	rootCmd.PersistentFlags().StringP("prefix", "p", defaultPrefix(), "Target environment prefix")
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to the configuration file")
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		// The config loader reads KEG_CONFIG at load time, so the flag only
		// has to land in the environment before the first operation runs.
		if path, _ := cmd.Flags().GetString("config"); path != "" {
			return os.Setenv("KEG_CONFIG", path)
		}
		return nil
	}

	c := &CLI{
		app:     a,
		rootCmd: rootCmd,
	}

	rootCmd.AddCommand(c.newInstallCmd())
	rootCmd.AddCommand(c.newRemoveCmd())
	rootCmd.AddCommand(c.newUpdateCmd())
	rootCmd.AddCommand(c.newSyncCmd())
	rootCmd.AddCommand(c.newListCmd())
	rootCmd.AddCommand(c.newVersionCmd())

	return c
}

// Execute runs the root command with the given context.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

// SetArgs sets the arguments for the root command. Used for testing.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// SetOutput redirects command output. Used for testing.
func (c *CLI) SetOutput(w interface{ Write([]byte) (int, error) }) {
	c.rootCmd.SetOut(w)
	c.rootCmd.SetErr(w)
}

func defaultPrefix() string {
	if p := os.Getenv("KEG_PREFIX"); p != "" {
		return p
	}
	return "env"
}

func prefixFlag(cmd *cobra.Command) string {
	prefix, _ := cmd.Flags().GetString("prefix")
	return prefix
}
