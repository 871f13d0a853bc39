package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/glyphhq/glyph"
	"github.com/glyphhq/glyph/internal/tui"
	"github.com/spf13/cobra"
)

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "List available document templates",
	Run: func(cmd *cobra.Command, args []string) {
		category, _ := cmd.Flags().GetString("category")

		client, cleanup, err := buildClient(cmd)
		if err != nil {
			fmt.Printf("Error initializing glyph: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()

		tpls, err := client.Templates().List(cmd.Context(), category)
		if err != nil {
			fmt.Printf("Error listing templates: %v\n", err)
			os.Exit(1)
		}

		if len(tpls) == 0 {
			fmt.Println("No templates found.")
			return
		}

		tui.PrintBanner(glyph.Version)

		var md strings.Builder
		for _, tpl := range tpls {
			fmt.Fprintf(&md, "# %s\n\n", tpl.ID)
			if tpl.Category != "" {
				fmt.Fprintf(&md, "*%s*\n\n", tpl.Category)
			}
			if tpl.Description != "" {
				fmt.Fprintf(&md, "%s\n\n", tpl.Description)
			}
			fmt.Fprintf(&md, "Regions: `%s`\n\n", strings.Join(tpl.RegionNames, "`, `"))
		}

		render := tui.NewRenderer()
		out, err := render(md.String())
		if err != nil {
			// Fall back to plain markdown on rendering trouble.
			out = md.String()
		}
		fmt.Print(out)
	},
}

var templatesShowCmd = &cobra.Command{
	Use:   "show <template-id>",
	Short: "Show a template's regions and markup",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client, cleanup, err := buildClient(cmd)
		if err != nil {
			fmt.Printf("Error initializing glyph: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()

		tpl, err := client.Templates().Resolve(cmd.Context(), args[0])
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}

		var md strings.Builder
		fmt.Fprintf(&md, "# %s\n\n", tpl.ID)
		if tpl.Description != "" {
			fmt.Fprintf(&md, "%s\n\n", tpl.Description)
		}
		fmt.Fprintf(&md, "Regions: `%s`\n\n", strings.Join(tpl.RegionNames, "`, `"))
		fmt.Fprintf(&md, "```html\n%s\n```\n", tpl.Markup)

		render := tui.NewRenderer()
		out, err := render(md.String())
		if err != nil {
			out = md.String()
		}
		fmt.Print(out)
	},
}

var templatesSchemaCmd = &cobra.Command{
	Use:   "schema <template-id>",
	Short: "Print a template's data schema as JSON",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client, cleanup, err := buildClient(cmd)
		if err != nil {
			fmt.Printf("Error initializing glyph: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()

		tpl, err := client.Templates().Resolve(cmd.Context(), args[0])
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}

		schema := tpl.Schema
		if schema == nil {
			schema = map[string]any{}
		}
		out, err := json.MarshalIndent(schema, "", "  ")
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(out))
	},
}

func init() {
	rootCmd.AddCommand(templatesCmd)
	templatesCmd.Flags().String("category", "", "Filter templates by category")
	templatesCmd.AddCommand(templatesShowCmd, templatesSchemaCmd)
}
