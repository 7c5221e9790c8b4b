package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/trajview"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of trajview",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "trajview version %s\n", strings.TrimSpace(trajview.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
