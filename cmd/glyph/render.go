package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var renderCmd = &cobra.Command{
	Use:   "render <session-id>",
	Short: "Render a session to its artifact",
	Long:  `Renders the session's current document through the rendering backend and writes the artifact to a file (or stdout with -o -).`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		format, _ := cmd.Flags().GetString("format")
		output, _ := cmd.Flags().GetString("output")

		client, cleanup, err := buildClient(cmd, upstreamOptions(cmd)...)
		if err != nil {
			fmt.Printf("Error initializing glyph: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()

		artifact, sess, err := client.Render(cmd.Context(), args[0], format)
		if err != nil {
			fmt.Printf("Error rendering session: %v\n", err)
			os.Exit(1)
		}

		if output == "-" {
			if _, err := os.Stdout.Write(artifact.Data); err != nil {
				fmt.Fprintf(os.Stderr, "Error writing artifact: %v\n", err)
				os.Exit(1)
			}
			return
		}

		if output == "" {
			output = sess.Filename()
		}
		if err := os.WriteFile(output, artifact.Data, 0o644); err != nil {
			fmt.Printf("Error writing artifact: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote %d bytes to %s\n", len(artifact.Data), output)
	},
}

func init() {
	rootCmd.AddCommand(renderCmd)
	renderCmd.Flags().StringP("format", "f", "", "Override the session output format (pdf or png)")
	renderCmd.Flags().StringP("output", "o", "", "Output file (default: derived from the session; '-' for stdout)")
	renderCmd.Flags().String("renderer-url", "", "Base URL of the rendering backend")
	renderCmd.Flags().String("interpreter-url", "", "Base URL of the instruction interpreter service")
}
