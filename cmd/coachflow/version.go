package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/coachflow"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of coachflow",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "coachflow version %s\n", strings.TrimSpace(coachflow.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
