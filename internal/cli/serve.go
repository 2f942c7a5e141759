package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/blockworld/internal/server"
)

const shutdownTimeout = 5 * time.Second

type serveOpts struct {
	addr         string
	sourceFile   string
	noCache      bool
	allowOrigins []string
}

// serveCommand creates the serve command that exposes blocks and world
// rooms over HTTP.
func (c *CLI) serveCommand() *cobra.Command {
	var opts serveOpts

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve blocks and world rooms over HTTP",
		Long: `Serve starts an HTTP server with these routes:

  GET /healthz
  GET /blocks/{height}/markup     MML document
  GET /blocks/{height}/stats      parcel histogram and cache status
  GET /blocks/{height}/scene      scene tree, bounds and camera as JSON
  GET /blocks/{height}/tree.svg   scene tree diagram
  GET /world                      player counts per room
  GET /world/{height}             websocket room for the block

Block routes accept the render flags as query parameters (seed, color,
scale, anim, model, model-size, model-chance, refresh).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), &opts)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", "", "listen address (default from config, :8080)")
	cmd.Flags().StringVar(&opts.sourceFile, "source-file", "", "read values from a file instead of the API ({height} is replaced)")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable caching")
	cmd.Flags().StringSliceVar(&opts.allowOrigins, "allow-origin", nil, "allowed CORS and websocket origins (default from config, any)")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, opts *serveOpts) error {
	cfg, err := loadConfig(c.ConfigPath)
	if err != nil {
		return err
	}
	runner, err := c.newRunner(ctx, cfg, sourceOpts{file: opts.sourceFile, noCache: opts.noCache})
	if err != nil {
		return err
	}
	defer runner.Close()

	srv := server.New(runner, nil, c.Logger)
	defer srv.Hub.Close()
	srv.Defaults = cfg.renderDefaults()
	srv.AllowOrigins = cfg.Server.AllowOrigins
	if len(opts.allowOrigins) > 0 {
		srv.AllowOrigins = opts.allowOrigins
	}

	addr := cfg.Server.Addr
	if opts.addr != "" {
		addr = opts.addr
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	hs := &http.Server{
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	printSuccess("Listening on %s", StyleLink.Render("http://"+ln.Addr().String()))
	errc := make(chan error, 1)
	go func() { errc <- hs.Serve(ln) }()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	c.Logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := hs.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
