package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spigell/interviewer/internal/api"
	"github.com/spigell/interviewer/internal/logger"
	"github.com/spigell/interviewer/internal/sweeper"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the interview HTTP API",
	Run: func(cmd *cobra.Command, _ []string) {
		serve(cmd)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "listen address, overrides server.addr")
	viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
}

func serve(_ *cobra.Command) {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	defer logger.Sync()

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the interviewer", zap.String("version", version))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := runServer(ctx, config, logger); err != nil {
		logger.Fatal("serving", zap.Error(err))
	}
	logger.Info("server stopped")
}

func runServer(ctx context.Context, config *Config, logger *zap.Logger) error {
	app, err := buildApp(ctx, config, buildOptions{Registerer: prometheus.DefaultRegisterer}, logger)
	if err != nil {
		return fmt.Errorf("building application: %w", err)
	}
	defer app.Close()

	if config.Sweeper.Enabled {
		sw, err := sweeper.New(&sweeper.Config{
			Interval: config.Sweeper.Interval,
			TTL:      config.Sweeper.SessionTTL,
		}, app.processor, logger)
		if err != nil {
			return err
		}
		go sw.Run(ctx)
	}

	router := api.NewRouter(app.processor, &api.Options{
		Voice:   config.Server.Voice,
		Metrics: promhttp.Handler(),
		Logger:  logger.Named("http"),
	})

	srv := &http.Server{
		Addr:              config.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		// Steps wait on several AI calls, each bounded by the provider timeout.
		WriteTimeout: 3*config.Interview.ProviderTimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listening on %s: %w", srv.Addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}
