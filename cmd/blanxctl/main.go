package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "blanxctl",
	Short: "blanxctl - operational tooling for the blanx backend",
	Long: `blanxctl runs maintenance tasks directly against the blanx
database: pruning old read notifications and auditing unread counts.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if err := godotenv.Load(); err != nil {
			fmt.Fprintln(os.Stderr, "Warning: .env file not found, using system environment variables")
		}
	},
}

func init() {
	rootCmd.AddCommand(pruneCmd)
	rootCmd.AddCommand(recountCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
