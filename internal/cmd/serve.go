package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/kartoza/lab-test-optimizer/internal/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func (a *app) newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the recommendation API",
		Long: `Serve the recommendation API over HTTP.

The artifact is loaded once at startup. In model mode a missing or invalid
artifact does not stop the server: /ready reports 503 and /analyze returns
the "Error loading model" result until the server is restarted with a
valid artifact.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			eng := a.newEngine(true)
			if !eng.Ready() {
				a.logger.Warn("engine not ready, serving degraded results", "mode", eng.Mode())
			}
			srv := server.New(a.cfg, eng, a.logger)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(srv.Start)
			g.Go(func() error {
				<-gctx.Done()
				return srv.Stop(context.Background())
			})
			return g.Wait()
		},
	}

	cmd.Flags().Int("port", 0, "HTTP server port (default 8080)")
	cmd.Flags().Int("cache-size", 0, "prediction cache entries, 0 disables the cache")
	a.bindFlags(cmd.Flags(), map[string]string{
		"server.port":       "port",
		"engine.cache_size": "cache-size",
	})

	return cmd
}
