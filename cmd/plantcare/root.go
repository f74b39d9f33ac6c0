package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:   "plantcare",
	Short: "Plant care dashboard",
	Long:  "plantcare serves the live plant dashboard and can simulate the plant device.",
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Optional .env file to load before the environment")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(simulateCmd)
}

func envFiles() []string {
	if envFile == "" {
		return nil
	}
	return []string{envFile}
}
