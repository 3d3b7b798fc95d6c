package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"payflow-be/internal/checkout"
	"payflow-be/internal/config"
	"payflow-be/internal/db"
	"payflow-be/internal/events"
	"payflow-be/internal/logger"
	"payflow-be/internal/middleware"
	"payflow-be/internal/order"
	"payflow-be/internal/payment"
	"payflow-be/internal/payment/webhook"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

var (
	initDBFunc      = db.InitDB
	startServerFunc = startServer
)

func main() {
	if err := run(); err != nil {
		logger.L().Fatal("server stopped", zap.Error(err))
	}
}

func run() error {
	cfg := config.LoadConfig()
	logger.Init(cfg.AppEnv)
	defer logger.Sync()

	database := initDBFunc(cfg)
	defer database.Close()

	router, cleanup := newServer(cfg, database)
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.L().Info("payment server running", zap.String("port", cfg.AppPort), zap.String("env", cfg.AppEnv))
	return startServerFunc(ctx, ":"+cfg.AppPort, router)
}

// newServer wires the payment stack and returns the HTTP handler plus a
// cleanup func releasing the publisher and Redis client.
func newServer(cfg *config.Config, database *sql.DB) (http.Handler, func()) {
	log := logger.L()

	orderRepo := order.NewRepository(database)
	paymentRepo := payment.NewRepository(database)
	gateway := payment.NewMollieGateway(cfg, cfg.GatewayBaseURL)

	var (
		locker   payment.Locker = payment.NewMemoryLocker()
		closers  []func() error
		redisCli *redis.Client
	)
	if cfg.RedisAddr != "" {
		redisCli = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		locker = payment.NewRedisLocker(redisCli)
		closers = append(closers, redisCli.Close)
		log.Info("using redis order locks", zap.String("addr", cfg.RedisAddr))
	}

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.KafkaBrokers != "" {
		kp := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		publisher = kp
		closers = append(closers, kp.Close)
		log.Info("publishing order transitions", zap.String("topic", cfg.KafkaTopic))
	}

	paymentSvc := payment.NewService(orderRepo, gateway, cfg, locker, publisher, payment.Options{
		RedirectURL: cfg.RedirectURL,
		WebhookURL:  cfg.WebhookURL,
	})

	webhookHandler := webhook.NewWebhookHandler(paymentSvc, paymentRepo)
	checkoutHandler := checkout.NewHandler(paymentSvc, cfg)

	router := setupRouter(routes{
		webhook:          webhookHandler.PaymentWebhookHandler,
		redirect:         webhookHandler.RedirectHandler,
		startTransaction: checkoutHandler.StartTransaction,
		issuers:          checkoutHandler.Issuers,
		jwtSecret:        []byte(cfg.JWTSecret),
	})

	cleanup := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				log.Warn("cleanup failed", zap.Error(err))
			}
		}
	}
	return router, cleanup
}

type routes struct {
	webhook          http.HandlerFunc
	redirect         http.HandlerFunc
	startTransaction http.HandlerFunc
	issuers          http.HandlerFunc
	jwtSecret        []byte
}

// setupRouter rate limits per route. On checkout routes the limiter runs
// after RequireAuth so authenticated callers are keyed by token subject
// instead of address.
func setupRouter(r routes) http.Handler {
	mux := http.NewServeMux()
	requireAuth := middleware.RequireAuth(r.jwtSecret)
	limit := middleware.RateLimitMiddleware

	mux.Handle("GET /health", limit(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})))
	mux.Handle("GET /metrics", limit(promhttp.Handler()))

	mux.Handle("POST /webhook/payment", limit(r.webhook))
	mux.Handle("GET /payment/return", limit(r.redirect))
	mux.Handle("POST /checkout/transactions", requireAuth(limit(r.startTransaction)))
	mux.Handle("GET /checkout/issuers", requireAuth(limit(r.issuers)))

	var h http.Handler = mux
	h = logger.LoggingMiddleware(h)
	h = logger.RequestIDMiddleware(h)
	return h
}

func startServer(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.L().Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
