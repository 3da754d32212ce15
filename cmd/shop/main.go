package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vali024/valix-shop/internal/addressbook"
	"github.com/vali024/valix-shop/internal/cache"
	"github.com/vali024/valix-shop/internal/cart"
	"github.com/vali024/valix-shop/internal/catalog"
	"github.com/vali024/valix-shop/internal/config"
	h "github.com/vali024/valix-shop/internal/http"
	"github.com/vali024/valix-shop/internal/order"
	"github.com/vali024/valix-shop/internal/orderstore"
	"github.com/vali024/valix-shop/internal/poller"
	"github.com/vali024/valix-shop/internal/pricing"
	"github.com/vali024/valix-shop/internal/publisher"
	"github.com/vali024/valix-shop/internal/repository"
	"github.com/vali024/valix-shop/pkg/circuitbreaker"
	"github.com/vali024/valix-shop/pkg/logger"
)

type eventPublisher interface {
	order.Publisher
	Close() error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	zap.ReplaceGlobals(log)

	if err := run(cfg, log); err != nil {
		log.Fatal("shop stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx := context.Background()

	rules, err := pricingRules(cfg)
	if err != nil {
		return err
	}
	policy, err := cart.ParseMergePolicy(cfg.MergePolicy)
	if err != nil {
		return err
	}

	// catalog
	catalogRepo, err := catalog.NewRepository(cfg.CatalogPath)
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	defer catalogRepo.Close()
	if err := catalogRepo.RunMigrations(cfg.CatalogMigrationsDir); err != nil {
		return fmt.Errorf("catalog migrations: %w", err)
	}
	log.Info("catalog ready", zap.String("path", cfg.CatalogPath))

	// mongo
	mongoDB, err := repository.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDatabase, repository.MongoPool{
		MaxPoolSize:    cfg.MongoMaxPoolSize,
		MinPoolSize:    cfg.MongoMinPoolSize,
		ConnectTimeout: cfg.MongoConnectTimeout,
	})
	if err != nil {
		return fmt.Errorf("connect mongo: %w", err)
	}
	defer mongoDB.Client().Disconnect(context.Background())

	cartRepo := repository.NewMongoCartRepository(mongoDB)
	addressRepo := repository.NewMongoAddressRepository(mongoDB)
	if err := cartRepo.CreateIndexes(ctx); err != nil {
		return fmt.Errorf("cart indexes: %w", err)
	}
	if err := addressRepo.CreateIndexes(ctx); err != nil {
		return fmt.Errorf("address indexes: %w", err)
	}
	log.Info("connected to mongodb", zap.String("database", cfg.MongoDatabase))

	// redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	log.Info("redis ping succeeded", zap.String("addr", cfg.RedisAddr))

	// postgres
	port, err := strconv.Atoi(cfg.PostgresPort)
	if err != nil {
		return fmt.Errorf("POSTGRES_PORT: %w", err)
	}
	cred := &orderstore.Credentials{
		Host:              cfg.PostgresHost,
		Port:              port,
		User:              cfg.PostgresUser,
		Password:          cfg.PostgresPassword,
		DBName:            cfg.PostgresDB,
		SSLMode:           cfg.PostgresSSLMode,
		MigrationsDirPath: cfg.OrderMigrationsDir,
	}
	orderRepo, err := orderstore.NewPostgresRepository(cred)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer orderRepo.Close()
	if err := orderRepo.RunMigrations(cred); err != nil {
		return fmt.Errorf("order migrations: %w", err)
	}
	log.Info("connected to postgres", zap.String("database", cfg.PostgresDB))

	// cart
	cartService := cart.NewService(cartRepo, cache.NewRedisCache(redisClient), log.Named("cart"))
	breaker := circuitbreaker.New(circuitbreaker.DefaultSettings("cart-sync"), log)
	syncer := cart.NewSyncer(cartService, breaker, log.Named("sync"))
	sessions := cache.NewSessionStore(redisClient, cfg.SessionTTL)
	manager := cart.NewManager(catalogRepo, sessions, cartService, syncer,
		cart.Options{Policy: policy, Rules: &rules}, log.Named("cart"))

	// orders
	var events eventPublisher = publisher.Nop{}
	if cfg.KafkaEnabled {
		events = publisher.NewKafkaPublisher(cfg.OrderEventsTopic, log.Named("publisher"), cfg.KafkaBrokers...)
	}
	defer events.Close()

	addresses := addressbook.NewService(addressRepo, log.Named("addresses"))
	locker := order.NewRedisLocker(redisClient)
	assembler := order.NewAssembler(orderRepo, catalogRepo, syncer, addresses, locker, events,
		order.Config{Rules: &rules, PaymentSecret: cfg.PaymentSecret}, log.Named("orders"))

	pollCtx, stopPoller := context.WithCancel(ctx)
	defer stopPoller()
	if cfg.KafkaEnabled {
		p := poller.NewPoller(assembler, cfg.PaymentsTopic, cfg.PaymentsGroupID, log.Named("poller"), cfg.KafkaBrokers...)
		defer p.Close()
		go p.Run(pollCtx)
	}

	router := h.NewRouter(h.RouterConfig{
		JWTSecret:          []byte(cfg.JWTSecret),
		RequestTimeout:     cfg.RequestTimeout,
		MaxRequestBodySize: cfg.MaxRequestBodySize,
		Log:                log.Named("http"),
	}, h.Handlers{
		Items:     h.NewItemHandler(catalogRepo, cfg.RequestTimeout),
		Cart:      h.NewCartHandler(manager, locker, cfg.RequestTimeout),
		Orders:    h.NewOrdersHandler(assembler, manager, locker, cfg.RequestTimeout),
		Addresses: h.NewAddressHandler(addresses, cfg.RequestTimeout),
		Admin:     h.NewAdminHandler(assembler, catalogRepo, cfg.RequestTimeout),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("shop starting", zap.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}
	stopPoller()
	if err := syncer.Close(shutdownCtx); err != nil {
		log.Warn("cart syncer did not drain", zap.Error(err))
	}

	log.Info("server exited")
	return nil
}

// pricingRules applies TAX_PERCENT and DELIVERY_FEE over the defaults.
func pricingRules(cfg *config.Config) (pricing.Rules, error) {
	rules := pricing.DefaultRules
	if cfg.TaxPercent != "" {
		v, err := decimal.NewFromString(cfg.TaxPercent)
		if err != nil {
			return rules, fmt.Errorf("TAX_PERCENT: %w", err)
		}
		rules.TaxPercent = v
	}
	if cfg.DeliveryFee != "" {
		v, err := decimal.NewFromString(cfg.DeliveryFee)
		if err != nil {
			return rules, fmt.Errorf("DELIVERY_FEE: %w", err)
		}
		rules.DeliveryFee = v
	}
	return rules, nil
}
