package main

import (
	"fmt"

	"github.com/glyphhq/glyph"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of glyph",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("glyph version %s\n", glyph.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
