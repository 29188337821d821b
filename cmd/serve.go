package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/scheme-matcher/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve recommendations and Aadhaar verification over HTTP",
	Run: func(_ *cobra.Command, _ []string) {
		serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("address", "a", "", "listen address (default :5000)")
	viper.BindPFlag("server.address", serveCmd.Flags().Lookup("address"))
}

func serve() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := newLogger()
	defer logger.Sync()

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the scheme-matcher server", zap.String("version", buildVersion()))

	d, err := buildDeps(ctx, config, logger)
	if err != nil {
		logger.Fatal("building dependencies", zap.Error(err))
	}
	defer d.close(logger)

	var verifier server.Verifier
	if d.verifier != nil {
		verifier = d.verifier
	}

	srv := server.New(config.Server, d.recommender, verifier, d.checks, logger)
	if err := srv.Run(ctx); err != nil {
		logger.Error("server stopped with error", zap.Error(err))
		return
	}

	logger.Info("server stopped")
}
