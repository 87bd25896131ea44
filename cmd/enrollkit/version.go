package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/enrollkit/enrollkit"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of enrollkit",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("enrollkit version %s\n", enrollkit.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
