// Package main is the entry point for the recipelab CLI.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via ldflags.
var version = "dev"

// rootCmd is the base command for the recipelab CLI.
var rootCmd = &cobra.Command{
	Use:   "recipelab",
	Short: "Recipe server with unit conversion and AI recipe scanning",
	Long: `recipelab stores recipes, rewrites their measurements between metric and
imperial units, and turns food photos or videos into recipe drafts with a
vision model.

Run "recipelab serve" for the HTTP API or "recipelab convert" to convert text
from the command line.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default: ./recipelab.yaml)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
