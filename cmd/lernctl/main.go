package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fluentlabs/lernplan/cmd/lernctl/commands"
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "lernctl",
		Short: "Operations tool for the lesson engine",
		Long:  "CLI tool for migrations, learner administration, and cache maintenance",
	}

	rootCmd.AddCommand(commands.NewMigrateCmd())
	rootCmd.AddCommand(commands.NewUserCmd())
	rootCmd.AddCommand(commands.NewProgressCmd())
	rootCmd.AddCommand(commands.NewCatalogCmd())
	rootCmd.AddCommand(commands.NewCacheCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
