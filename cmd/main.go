package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang-payment-adapters/config"
	"golang-payment-adapters/internal/services/payments"
	"golang-payment-adapters/internal/services/payments/handler"
	"golang-payment-adapters/internal/services/payments/providers"
	"golang-payment-adapters/internal/services/payments/types"
	"golang-payment-adapters/pkg/logger"
	"golang-payment-adapters/pkg/metric"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const serviceName = "payment-adapters"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Logger, serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("application failed", zap.Error(err))
		os.Exit(1)
	}
	log.Info("application exited normally")
}

func run(ctx context.Context, cfg *config.AppConfig, log *zap.Logger) error {
	node, err := snowflake.NewNode(cfg.Http.NodeID)
	if err != nil {
		return fmt.Errorf("main.run: snowflake node: %w", err)
	}

	adapters, err := providers.FromConfig(cfg,
		providers.WithLogger(log.Named("providers")),
		providers.WithNode(node),
	)
	if err != nil {
		return fmt.Errorf("main.run: building providers: %w", err)
	}
	if len(adapters) == 0 {
		log.Warn("no payment provider is enabled")
	}

	enabled := make([]payments.PaymentProvider, 0, len(adapters))
	for _, a := range adapters {
		enabled = append(enabled, a)
		log.Info("provider enabled", zap.String("provider", a.Name()), zap.Strings("extensions", a.Supports()))
	}
	registry, err := payments.NewRegistry(enabled...)
	if err != nil {
		return fmt.Errorf("main.run: %w", err)
	}

	metrics := metric.NewFactory()
	service := payments.NewService(registry, cfg.Callbacks, logFulfilment(log), log.Named("payments"), metrics.Payments())
	h := handler.NewHandler(service, log.Named("http"), cfg.Http.MaxBodyBytes)

	server := &http.Server{
		Addr:         cfg.Http.Addr,
		Handler:      h.Routes(metrics.Handler()),
		ReadTimeout:  cfg.Http.ReadTimeout,
		WriteTimeout: cfg.Http.WriteTimeout,
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		log.Info("server running", zap.String("addr", cfg.Http.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("main.run: serve: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Http.ShutdownTimeout)
		defer cancel()

		log.Info("shutting down", zap.Duration("timeout", cfg.Http.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("main.run: shutdown: %w", err)
		}
		return nil
	})
	return eg.Wait()
}

// logFulfilment stands in for the order store: it records each fulfilled
// order once.
func logFulfilment(log *zap.Logger) payments.FulfilFunc {
	return func(_ context.Context, res types.PaymentResult) error {
		log.Info("fulfil order",
			zap.String("provider", res.Provider),
			zap.String("order_id", res.OrderID),
			zap.String("amount", res.Amount.String()),
			zap.String("currency", res.Currency),
		)
		return nil
	}
}
