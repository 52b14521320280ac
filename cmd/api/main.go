package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/azizikri/referral-claim/internal/config"
	httphandler "github.com/azizikri/referral-claim/internal/delivery/http"
	"github.com/azizikri/referral-claim/internal/delivery/kafka"
	"github.com/azizikri/referral-claim/internal/logger"
	"github.com/azizikri/referral-claim/internal/metrics"
	"github.com/azizikri/referral-claim/internal/ratelimit"
	"github.com/azizikri/referral-claim/internal/relayer"
	"github.com/azizikri/referral-claim/internal/repository"
	"github.com/azizikri/referral-claim/internal/usecase"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Environment: cfg.AppEnv,
		LogLevel:    cfg.LogLevel,
		ServiceName: "referral-claim",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := initDB(ctx, cfg)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool, cfg.MigrationsDir, log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	signer, err := relayer.NewSigner(
		cfg.RelayerPrivateKey,
		cfg.ClaimContractAddress,
		cfg.ChainID,
		cfg.RelayerSignsPerSec,
		cfg.RelayerBurst,
	)
	if err != nil {
		log.Fatal("failed to load relayer key", zap.Error(err))
	}
	log.Info("relayer ready",
		zap.String("signer", signer.Address().Hex()),
		zap.String("contract", signer.ContractAddress()),
		zap.Int64("chain_id", signer.ChainID()))

	store := repository.New(pool)
	service := usecase.NewReferralService(store, signer, log)

	limiter, rdb, err := newLimiter(cfg, store)
	if err != nil {
		log.Fatal("failed to set up rate limiter", zap.Error(err))
	}
	if rdb != nil {
		defer rdb.Close()
	}

	var gateway usecase.ReferralGateway
	var kafkaClient *kgo.Client
	var replyClient *kgo.Client
	var retryClient *kgo.Client

	if cfg.EventDrivenEnabled {
		brokers := strings.Split(cfg.KafkaBrokers, ",")
		kafkaClient, err = newConsumerClient(brokers, cfg.KafkaClientID, cfg.KafkaGroupID, kafka.RequestTopics...)
		if err != nil {
			log.Fatal("failed to create kafka client", zap.Error(err))
		}

		if err := kafka.EnsureTopics(ctx, kafkaClient, cfg, log); err != nil {
			log.Warn("failed to ensure topics", zap.Error(err))
		}

		kgateway := kafka.NewGateway(cfg, kafkaClient, log)
		gateway = kgateway

		consumer := kafka.NewConsumer(cfg, kafkaClient, service, log)
		go consumer.Start(ctx)

		retryClient, err = newConsumerClient(brokers, cfg.KafkaClientID+"-retry", cfg.KafkaRetryGroupID, kafka.RetryTopics...)
		if err != nil {
			log.Fatal("failed to create retry kafka client", zap.Error(err))
		}
		retryConsumer := kafka.NewConsumer(cfg, retryClient, service, log)
		go retryConsumer.StartRetry(ctx)

		replyClient, err = newReplyClient(brokers, cfg.KafkaClientID+"-reply", kafka.TopicReplyPrefix+cfg.KafkaInstanceID)
		if err != nil {
			log.Fatal("failed to create reply kafka client", zap.Error(err))
		}
		startReplyPoller(ctx, replyClient, kgateway)

		log.Info("event-driven mode enabled", zap.String("instance", cfg.KafkaInstanceID))
	} else {
		gateway = kafka.NewDirectGateway(service)
	}

	handler := httphandler.NewHandler(gateway, service, signer, limiter, cfg.RateLimitFailOpen, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httphandler.AccessLog(log))
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		checkCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := pool.Ping(checkCtx); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		if rdb != nil {
			if err := rdb.Ping(checkCtx).Err(); err != nil {
				http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("READY"))
	})
	r.Handle("/metrics", metrics.Handler())

	handler.Routes(r)

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	wg := sync.WaitGroup{}
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("starting server", zap.String("port", cfg.AppPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown error", zap.Error(err))
	}

	if kafkaClient != nil {
		kafkaClient.Close()
	}
	if replyClient != nil {
		replyClient.Close()
	}
	if retryClient != nil {
		retryClient.Close()
	}

	wg.Wait()
	log.Info("shutdown complete")
}

func initDB(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("unable to parse database url: %w", err)
	}
	if cfg.DBMaxConns > 0 {
		poolCfg.MaxConns = cfg.DBMaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return pool, nil
}

// newLimiter returns the configured limiter and, for the redis backend, the
// client so readiness checks can ping it.
func newLimiter(cfg *config.Config, store repository.Store) (ratelimit.Limiter, *redis.Client, error) {
	switch cfg.RateLimitBackend {
	case ratelimit.BackendRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		return ratelimit.NewRedisLimiter(rdb, cfg.RateLimitRequests, cfg.RateLimitWindow, "referral"), rdb, nil
	case ratelimit.BackendPostgres:
		return ratelimit.NewPostgresLimiter(store, cfg.RateLimitRequests, cfg.RateLimitWindow), nil, nil
	case ratelimit.BackendNone:
		return ratelimit.Noop(), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown rate limit backend %q", cfg.RateLimitBackend)
	}
}

func newConsumerClient(brokers []string, clientID, groupID string, topics ...string) (*kgo.Client, error) {
	return kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ClientID(clientID),
		kgo.ConsumerGroup(groupID),
		kgo.ConsumeTopics(topics...),
		kgo.DisableAutoCommit(),
	)
}

func newReplyClient(brokers []string, clientID, topic string) (*kgo.Client, error) {
	return kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ClientID(clientID),
		kgo.ConsumeTopics(topic),
	)
}

func startReplyPoller(ctx context.Context, client *kgo.Client, gateway *kafka.Gateway) {
	go func() {
		for {
			fetches := client.PollFetches(ctx)
			if fetches.IsClientClosed() || ctx.Err() != nil {
				return
			}
			iter := fetches.RecordIter()
			for !iter.Done() {
				record := iter.Next()
				gateway.HandleResponse(record.Value)
			}
		}
	}()
}
