package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mktbiz-byte/cnec-platform/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the creator platform API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		agg, clients, aggCache, err := initAggregator(ctx)
		if err != nil {
			return err
		}
		defer clients.Close()
		if aggCache != nil {
			defer aggCache.Close()
		}

		uploader, err := initUploader()
		if err != nil {
			return err
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := server.New(server.Config{
			Port:             port,
			AllowedOrigins:   cfg.Server.AllowedOrigins,
			BoxTolerance:     cfg.Review.BoxToleranceSecs,
			CommentTolerance: cfg.Review.CommentToleranceSecs,
		}, agg, st, uploader)

		zap.L().Info("api server listening",
			zap.Int("port", port),
			zap.Int("configured_regions", len(clients.Configured())),
		)
		return srv.ListenAndServe(ctx)
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (overrides config)")
	rootCmd.AddCommand(serveCmd)
}
