// main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"go-storefront/config"
	"go-storefront/controllers"
	"go-storefront/middleware"
	"go-storefront/routes"
	"go-storefront/storage"
	"go-storefront/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}

	log := utils.NewLogger(cfg.LogLevel, cfg.LogFormat)
	controllers.RequestTimeout = cfg.RequestTimeout

	if err := run(cfg, log); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}

func run(cfg *config.Config, log *logrus.Logger) error {
	ctx := context.Background()

	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	if cfg.SeedSampleData {
		created, err := storage.SeedProducts(ctx, store)
		if err != nil {
			return fmt.Errorf("seed products: %w", err)
		}
		if created > 0 {
			log.WithField("count", created).Info("seeded sample products")
		}
	}

	// Initialize EmailService
	emailService := utils.NewEmailService(newMailer(cfg, log), log)
	tokens := utils.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL)

	// Initialize controllers
	userController := controllers.NewUserController(store, tokens, emailService)
	productController := controllers.NewProductController(store)
	cartController := controllers.NewCartController(store, store)
	orderController := controllers.NewOrderController(store, store, emailService)

	if cfg.HasAdmin() {
		created, err := userController.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminEmail, cfg.AdminPassword)
		if err != nil {
			return fmt.Errorf("bootstrap admin: %w", err)
		}
		if created {
			log.WithField("username", cfg.AdminUsername).Info("created admin account")
		}
	}

	stopCleanup := make(chan struct{})
	defer close(stopCleanup)
	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	limiter.StartCleanup(time.Minute, stopCleanup)

	// Set up the router
	router := mux.NewRouter()
	routes.RegisterRoutes(router, routes.Options{Tokens: tokens, Logger: log, Limiter: limiter},
		userController, productController, cartController, orderController)

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{"addr": server.Addr, "store": cfg.StoreDriver}).Info("server is running")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.WithField("signal", sig.String()).Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// openStore connects the configured backend and, when Redis is configured,
// puts the product cache in front of it.
func openStore(ctx context.Context, cfg *config.Config, log *logrus.Logger) (storage.Store, func(), error) {
	var (
		store     storage.Store
		closeFunc = func() {}
	)

	switch cfg.StoreDriver {
	case config.DriverPostgres:
		db, err := storage.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		pg := storage.NewPostgresStore(db)
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, nil, fmt.Errorf("migrate postgres: %w", err)
		}
		store = pg
		closeFunc = func() {
			if err := pg.Close(); err != nil {
				log.WithError(err).Warn("failed to close postgres")
			}
		}
	case config.DriverMongo:
		client, err := storage.ConnectMongo(ctx, cfg.MongoURI)
		if err != nil {
			return nil, nil, err
		}
		mongoStore := storage.NewMongoStore(client, cfg.MongoDatabase)
		if err := mongoStore.EnsureIndexes(ctx); err != nil {
			mongoStore.Close(ctx)
			return nil, nil, fmt.Errorf("create mongo indexes: %w", err)
		}
		store = mongoStore
		closeFunc = func() {
			if err := mongoStore.Close(context.Background()); err != nil {
				log.WithError(err).Warn("failed to disconnect mongo")
			}
		}
	default:
		log.Warn("using in-memory store; data is lost on restart")
		store = storage.NewMemoryStore()
	}

	if cfg.RedisURL == "" {
		return store, closeFunc, nil
	}

	opts, err := redisOptions(cfg)
	if err != nil {
		closeFunc()
		return nil, nil, err
	}
	rdb, err := storage.ConnectRedis(ctx, opts)
	if err != nil {
		closeFunc()
		return nil, nil, err
	}
	log.WithField("addr", opts.Addr).Info("product cache enabled")

	closeStore := closeFunc
	return storage.NewCachedStore(store, rdb, cfg.ProductCacheTTL, log), func() {
		if err := rdb.Close(); err != nil {
			log.WithError(err).Warn("failed to close redis")
		}
		closeStore()
	}, nil
}

// redisOptions accepts either host:port or a redis:// URL.
func redisOptions(cfg *config.Config) (storage.RedisOptions, error) {
	if !strings.Contains(cfg.RedisURL, "://") {
		return storage.RedisOptions{Addr: cfg.RedisURL, Password: cfg.RedisPassword, DB: cfg.RedisDB}, nil
	}
	parsed, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return storage.RedisOptions{}, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	opts := storage.RedisOptions{Addr: parsed.Addr, Password: parsed.Password, DB: parsed.DB}
	if opts.Password == "" {
		opts.Password = cfg.RedisPassword
	}
	return opts, nil
}

func newMailer(cfg *config.Config, log logrus.FieldLogger) utils.Mailer {
	switch cfg.EmailProvider {
	case config.EmailPostmark:
		return utils.NewPostmarkMailer(cfg.PostmarkAPIToken, cfg.EmailSender)
	case config.EmailSendGrid:
		return utils.NewSendGridMailer(cfg.SendGridAPIKey, cfg.EmailSender)
	}
	return utils.NoopMailer{Log: log}
}
