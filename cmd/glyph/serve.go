package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/glyphhq/glyph"
	"github.com/glyphhq/glyph/pkg/adapters/httpapi"
	"github.com/glyphhq/glyph/pkg/adapters/memory"
	redisAdapter "github.com/glyphhq/glyph/pkg/adapters/redis"
	"github.com/glyphhq/glyph/pkg/observability"
	"github.com/glyphhq/glyph/pkg/ports"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long:  `Starts the Glyph engine in server mode, exposing the session lifecycle as a JSON API over HTTP.`,
	Run: func(cmd *cobra.Command, args []string) {
		logger := newLogger(cmd)
		port, _ := cmd.Flags().GetString("port")

		metrics := observability.NewMetrics()

		client, cleanup, err := buildClient(cmd, append(upstreamOptions(cmd),
			glyph.WithLifecycleHooks(metrics.Hooks()))...)
		if err != nil {
			fmt.Printf("Error initializing glyph: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()

		apiOpts := []httpapi.Option{
			httpapi.WithTemplates(client.Templates()),
			httpapi.WithMetrics(metrics),
			httpapi.WithLogger(logger),
		}
		if ks := buildKeyStore(cmd); ks != nil {
			apiOpts = append(apiOpts, httpapi.WithKeyStore(ks))
		}

		srv := &http.Server{
			Addr:    ":" + port,
			Handler: httpapi.NewHandler(client.Engine(), apiOpts...),
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)

		go func() {
			logger.Info("starting glyph server", "addr", srv.Addr)
			serverErrors <- srv.ListenAndServe()
		}()

		// Channel to listen for interrupt or terminate signals.
		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		// Blocking main and waiting for shutdown.
		select {
		case err := <-serverErrors:
			fmt.Printf("Server error: %v\n", err)
			os.Exit(1)

		case sig := <-shutdown:
			logger.Info("starting shutdown", "signal", sig.String())

			// Give outstanding requests a deadline for completion.
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				logger.Error("graceful shutdown did not complete", "error", err)
				if err := srv.Close(); err != nil {
					logger.Error("error killing server", "error", err)
				}
			}
			logger.Info("glyph server stopped gracefully")
		}
	},
}

// buildKeyStore seeds API keys from --api-key key:owner pairs. With Redis
// configured the keys live there so all instances share them.
func buildKeyStore(cmd *cobra.Command) ports.KeyStore {
	pairs, _ := cmd.Flags().GetStringSlice("api-key")
	if len(pairs) == 0 {
		return nil
	}

	var ks ports.KeyStore
	if redisAddr, _ := cmd.Flags().GetString("redis"); redisAddr != "" {
		password, _ := cmd.Flags().GetString("redis-password")
		db, _ := cmd.Flags().GetInt("redis-db")
		ks = redisAdapter.NewKeyStore(redisAdapter.New(redisAddr, password, db).Client(), "glyph:")
	} else {
		ks = memory.NewKeyStore()
	}

	for _, pair := range pairs {
		key, owner, found := strings.Cut(pair, ":")
		if !found || key == "" {
			fmt.Printf("Ignoring malformed --api-key %q (want key:owner)\n", pair)
			continue
		}
		if err := ks.Put(cmd.Context(), key, owner); err != nil {
			fmt.Printf("Failed to register api key: %v\n", err)
		}
	}
	return ks
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	serveCmd.Flags().String("interpreter-url", "", "Base URL of the instruction interpreter service")
	serveCmd.Flags().String("renderer-url", "", "Base URL of the rendering backend")
	serveCmd.Flags().StringSlice("api-key", nil, "API keys in key:owner form (repeatable); enables auth")
}
