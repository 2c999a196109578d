package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/luqui/recipe-engine/internal/server"
)

// newServeCmd creates the serve command, which runs the HTTP API.
func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the resolution engine as an HTTP API",
		Long: `Run an HTTP server exposing resolution and planning endpoints.

Optional backends are configured through the environment:
  RECIPEDEPS_REDIS_ADDR  shared descriptor cache (e.g. localhost:6379)
  RECIPEDEPS_MONGO_URI   run history storage

Examples:
  recipedeps serve
  recipedeps serve --addr :9090`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			ctx := c.Context()
			logger := loggerFromContext(ctx)
			srv, err := server.New(ctx, server.Config{
				Addr:      addr,
				RedisAddr: os.Getenv("RECIPEDEPS_REDIS_ADDR"),
				MongoURI:  os.Getenv("RECIPEDEPS_MONGO_URI"),
			}, logger)
			if err != nil {
				return err
			}
			return srv.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	return cmd
}
