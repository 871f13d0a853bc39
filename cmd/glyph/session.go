package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage document sessions",
	Long:  `List, inspect, and expire document sessions in the configured store.`,
}

var sessionLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List live sessions",
	Run: func(cmd *cobra.Command, args []string) {
		client, cleanup, err := buildClient(cmd)
		if err != nil {
			fmt.Printf("Error initializing glyph: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()

		ids, err := client.List(cmd.Context())
		if err != nil {
			fmt.Printf("Error listing sessions: %v\n", err)
			os.Exit(1)
		}

		if len(ids) == 0 {
			fmt.Println("No live sessions found.")
			return
		}

		fmt.Println("Live Sessions:")
		for _, id := range ids {
			fmt.Println("- " + id)
		}
	},
}

var sessionInspectCmd = &cobra.Command{
	Use:   "inspect <session-id>",
	Short: "Inspect the state of a session",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client, cleanup, err := buildClient(cmd)
		if err != nil {
			fmt.Printf("Error initializing glyph: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()

		sess, err := client.Get(cmd.Context(), args[0])
		if err != nil {
			fmt.Printf("Error loading session '%s': %v\n", args[0], err)
			os.Exit(1)
		}

		// Pretty print JSON
		data, err := json.MarshalIndent(sess, "", "  ")
		if err != nil {
			fmt.Printf("Error marshaling session: %v\n", err)
			os.Exit(1)
		}

		fmt.Println(string(data))
	},
}

var sessionRmCmd = &cobra.Command{
	Use:   "rm <session-id>...",
	Short: "Expire one or more sessions",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client, cleanup, err := buildClient(cmd)
		if err != nil {
			fmt.Printf("Error initializing glyph: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()

		hasError := false
		for _, id := range args {
			if err := client.Expire(cmd.Context(), id); err != nil {
				fmt.Printf("Error expiring '%s': %v\n", id, err)
				hasError = true
			} else {
				fmt.Printf("Expired session '%s'\n", id)
			}
		}

		if hasError {
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionLsCmd)
	sessionCmd.AddCommand(sessionInspectCmd)
	sessionCmd.AddCommand(sessionRmCmd)
}
