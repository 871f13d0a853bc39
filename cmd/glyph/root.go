package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/glyphhq/glyph"
	"github.com/glyphhq/glyph/internal/logging"
	"github.com/glyphhq/glyph/pkg/adapters/chromium"
	"github.com/glyphhq/glyph/pkg/adapters/interpreter"
	redisAdapter "github.com/glyphhq/glyph/pkg/adapters/redis"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "glyph",
	Short: "Glyph is a document-session engine",
	Long:  `Glyph turns templates plus data into living documents that can be edited region by region and rendered to PDF or PNG.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("templates", "./templates", "Directory containing template definitions")
	rootCmd.PersistentFlags().String("redis", "", "Redis address for shared session storage (empty = in-memory)")
	rootCmd.PersistentFlags().String("redis-password", "", "Redis password")
	rootCmd.PersistentFlags().Int("redis-db", 0, "Redis database number")
	rootCmd.PersistentFlags().Bool("json-logs", false, "Emit logs as JSON")
}

func newLogger(cmd *cobra.Command) *slog.Logger {
	if jsonLogs, _ := cmd.Flags().GetBool("json-logs"); jsonLogs {
		return logging.NewJSON(slog.LevelInfo)
	}
	return logging.New(slog.LevelInfo)
}

// buildClient assembles a glyph client from the persistent flags.
func buildClient(cmd *cobra.Command, extra ...glyph.Option) (*glyph.Client, func(), error) {
	templatesDir, _ := cmd.Flags().GetString("templates")
	redisAddr, _ := cmd.Flags().GetString("redis")

	logger := newLogger(cmd)
	opts := []glyph.Option{glyph.WithLogger(logger)}
	cleanup := func() {}

	if redisAddr != "" {
		password, _ := cmd.Flags().GetString("redis-password")
		db, _ := cmd.Flags().GetInt("redis-db")

		store := redisAdapter.New(redisAddr, password, db)
		opts = append(opts,
			glyph.WithStore(store),
			glyph.WithLocker(redisAdapter.NewLocker(store.Client(), "glyph:")),
		)
		cleanup = func() { _ = store.Close() }
	}

	opts = append(opts, extra...)

	client, err := glyph.New(templatesDir, opts...)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return client, cleanup, nil
}

// upstreamOptions wires the interpreter and renderer backends from flags.
func upstreamOptions(cmd *cobra.Command) []glyph.Option {
	var opts []glyph.Option
	if url, _ := cmd.Flags().GetString("interpreter-url"); url != "" {
		opts = append(opts, glyph.WithInterpreter(interpreter.New(url)))
	}
	if url, _ := cmd.Flags().GetString("renderer-url"); url != "" {
		opts = append(opts, glyph.WithRenderer(chromium.New(url)))
	}
	return opts
}
