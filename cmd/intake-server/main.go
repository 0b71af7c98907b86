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

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/example/message-intake/internal/config"
	"github.com/example/message-intake/internal/definitions"
	"github.com/example/message-intake/internal/dispatch"
	"github.com/example/message-intake/internal/kafka/producer"
	"github.com/example/message-intake/internal/logger"
	"github.com/example/message-intake/internal/mapping"
	"github.com/example/message-intake/internal/pipeline"
	"github.com/example/message-intake/internal/schema"
	"github.com/example/message-intake/internal/server"
	"github.com/example/message-intake/internal/storage"
	"github.com/example/message-intake/internal/transaction"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fail("config load", err)
	}

	baseLogger, err := logger.New(cfg.App.Env, cfg.App.LogLevel)
	if err != nil {
		fail("logger init", err)
	}
	log := baseLogger.With().Str("service", "intake-server").Logger()

	blobStore, err := buildBlobStore(cfg.Storage)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise blob store")
	}

	txnStore, err := buildTransactionStore(cfg.Transactions, logger.Component(log, "transaction-store"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise transaction store")
	}

	archiver, err := storage.NewArchiver(blobStore, cfg.Storage.MessageBucket, logger.Component(log, "archiver"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise archiver")
	}

	lookup := definitions.NewStaticLookup()
	if err := lookup.LoadFile(cfg.Definitions.TableFile); err != nil {
		log.Fatal().Err(err).Msg("failed to load definition table")
	}

	checker, err := schema.NewInvoker(lookup, blobStore, cfg.Storage.RuntimeBucket, logger.Component(log, "schema"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise schema invoker")
	}

	resolver, err := buildResolver(cfg.Mapping, logger.Component(log, "mapping"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise mapping resolver")
	}

	registry, prod, err := buildRegistry(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build target registry")
	}
	if prod != nil {
		defer func() {
			if err := prod.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close kafka producer")
			}
		}()
	}
	log.Info().Strs("targets", registry.Names()).Msg("delivery targets registered")

	dispatcher, err := dispatch.NewDispatcher(registry, logger.Component(log, "dispatcher"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise dispatcher")
	}

	pipe, err := pipeline.New(txnStore, archiver, checker, resolver, dispatcher, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise pipeline")
	}

	srv, err := server.New(server.Config{
		IntakePath:   cfg.Server.IntakePath,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		MaxInFlight:  cfg.Server.MaxInFlight,
	}, pipe, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise http server")
	}

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	log.Info().Int("port", cfg.App.Port).Str("intake_path", cfg.Server.IntakePath).Msg("intake server started")

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
		if err := server.Shutdown(context.Background(), httpServer, 15*time.Second); err != nil {
			log.Error().Err(err).Msg("graceful shutdown failed")
		}
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("http server terminated with error")
		}
	}
}

func buildBlobStore(cfg config.StorageConfig) (storage.BlobStore, error) {
	switch strings.ToLower(cfg.Backend) {
	case "memory":
		return storage.NewMemoryStore(), nil
	case "filesystem":
		return storage.NewFilesystemStore(cfg.Root)
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
	}
}

func buildTransactionStore(cfg config.TransactionConfig, log zerolog.Logger) (transaction.Store, error) {
	switch strings.ToLower(cfg.Backend) {
	case "memory":
		return transaction.NewMemoryStore(), nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		return transaction.NewRedisStore(client, cfg.KeyPrefix, log)
	default:
		return nil, fmt.Errorf("unsupported transaction backend %q", cfg.Backend)
	}
}

func buildResolver(cfg config.MappingConfig, log zerolog.Logger) (mapping.Resolver, error) {
	switch strings.ToLower(cfg.Backend) {
	case "static":
		resolver := mapping.NewStaticResolver()
		if err := resolver.LoadFile(cfg.TableFile); err != nil {
			return nil, err
		}
		return resolver, nil
	case "http":
		return mapping.NewClient(cfg.BaseURL, time.Duration(cfg.TimeoutSeconds)*time.Second, log)
	default:
		return nil, fmt.Errorf("unsupported mapping backend %q", cfg.Backend)
	}
}

// buildRegistry loads the target registry file and instantiates the delivery
// capabilities. The Kafka producer is only created when at least one kafka
// target is declared.
func buildRegistry(cfg *config.Config, log zerolog.Logger) (*dispatch.Registry, *producer.Producer, error) {
	entries, err := dispatch.LoadRegistryFile(cfg.Targets.RegistryFile)
	if err != nil {
		return nil, nil, err
	}

	registry := dispatch.NewRegistry()
	deliverTimeout := time.Duration(cfg.Targets.DeliverTimeoutSeconds) * time.Second

	var prod *producer.Producer
	for _, entry := range entries {
		var deliverer dispatch.Deliverer
		switch entry.Kind {
		case "http":
			deliverer, err = dispatch.NewHTTPTarget(entry.Name, entry.URL, deliverTimeout, logger.Component(log, "target-"+entry.Name))
		case "kafka":
			if prod == nil {
				prod, err = producer.New(cfg.Kafka.Brokers, logger.Component(log, "kafka-producer"))
				if err != nil {
					return nil, nil, err
				}
			}
			deliverer, err = dispatch.NewKafkaTarget(entry.Name, entry.Topic, prod, logger.Component(log, "target-"+entry.Name))
		}
		if err != nil {
			return nil, prod, err
		}
		if err := registry.Register(entry.Name, deliverer); err != nil {
			return nil, prod, err
		}
	}
	return registry, prod, nil
}

func fail(stage string, err error) {
	l := zerolog.New(os.Stdout).With().Timestamp().Logger()
	l.Fatal().Err(err).Str("stage", stage).Msg("intake server init failed")
}
