package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/loom/internal/api"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(flags *rootFlags) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve read-only graph queries over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return withApp(ctx, flags, func(a *app) error {
				addr := listen
				if addr == "" {
					addr = a.settings.viper.GetString(cfgKeyListen)
				}
				var events api.EventSource
				if a.store != nil {
					events = a.store
				}
				srv := &http.Server{
					Addr:              addr,
					Handler:           api.NewRouter(a.engine, events, a.log.Named("api")),
					ReadHeaderTimeout: 5 * time.Second,
				}

				errc := make(chan error, 1)
				go func() { errc <- srv.ListenAndServe() }()
				a.log.Info("serving", zap.String("addr", addr))
				fmt.Fprintf(cmd.OutOrStdout(), "Listening on %s\n", addr)

				select {
				case err := <-errc:
					return sysErr("serve: %w", err)
				case <-ctx.Done():
				}

				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					return sysErr("shutdown: %w", err)
				}
				if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
					return sysErr("serve: %w", err)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (default: serve.listen from config)")
	return cmd
}
