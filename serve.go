package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/golang/glog"
	"github.com/serroba/online-board/internal/acl"
	"github.com/serroba/online-board/internal/api"
	"github.com/serroba/online-board/internal/storage"
	"github.com/serroba/online-board/internal/ws"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the relay server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			store := storage.NewMemoryStore()
			hub := ws.NewHub()

			var policy *storage.SnapshotPolicy
			if cfg.Relay.SnapshotEvery > 0 {
				policy = storage.NewSnapshotPolicy(cfg.Relay.SnapshotEvery)
			}

			serverCfg := api.ServerConfig{
				Store:           store,
				Hub:             hub,
				SnapshotPolicy:  policy,
				MaxMessageBytes: int64(cfg.Relay.MaxMessageBytes),
			}
			if cfg.Relay.Membership {
				serverCfg.Members = acl.NewMemoryStore()
			}

			server := api.NewServer(serverCfg)

			httpServer := &http.Server{
				Addr:              cfg.Relay.Addr,
				Handler:           server.Handler(),
				ReadHeaderTimeout: cfg.Relay.ReadHeaderTimeout,
			}

			errCh := make(chan error, 1)

			go func() {
				glog.Infof("Starting relay on %s", cfg.Relay.Addr)
				errCh <- httpServer.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			glog.Infof("Shutting down relay")

			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Relay.ShutdownTimeout)
			defer cancel()

			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				return err
			}

			if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
				return err
			}

			return nil
		},
	}
	cmd.Flags().String("addr", "", "listen address (overrides config)")
	_ = viper.BindPFlag("addr", cmd.Flags().Lookup("addr"))

	return cmd
}
