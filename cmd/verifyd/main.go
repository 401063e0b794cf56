// Package main implements the verifyd service for lunamint.
// It consumes verification requests from Kafka, checks bills against the
// registry, and publishes the results.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/taellinglin/lunamint/internal/config"
	"github.com/taellinglin/lunamint/internal/genesis"
	"github.com/taellinglin/lunamint/internal/messaging"
	"github.com/taellinglin/lunamint/internal/metrics"
	"github.com/taellinglin/lunamint/internal/mining"
	"github.com/taellinglin/lunamint/internal/registry"
	"github.com/taellinglin/lunamint/internal/registry/postgres"
	"github.com/taellinglin/lunamint/internal/registry/redis"
	"github.com/taellinglin/lunamint/pkg/errors"
	"github.com/taellinglin/lunamint/pkg/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := log.New(cfg.ServiceName, cfg.Version, cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting verifyd", "version", cfg.Version)

	kafkaClient := messaging.NewKafkaClient(cfg.KafkaBrokers, logger)

	pgClient, err := postgres.NewClient(&postgres.Config{
		URL:          cfg.PostgresURL,
		MaxOpenConns: 25,
		MaxIdleConns: 5,
		MaxLifetime:  5 * time.Minute,
	})
	if err != nil {
		logger.WithError(err).Error("failed to connect to Postgres")
		os.Exit(1)
	}
	defer func() {
		if err := pgClient.Close(); err != nil {
			logger.WithError(err).Error("failed to close Postgres client")
		}
	}()

	var cache registry.Cache
	redisClient, err := redis.NewClient(&redis.Config{URL: cfg.RedisURL})
	if err != nil {
		logger.WithError(err).Warn("Redis unavailable, running without cache")
	} else {
		cache = redisClient
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.WithError(err).Error("failed to close Redis client")
			}
		}()
	}

	var metricsClient *metrics.Client
	if cfg.InfluxToken != "" {
		metricsClient, err = metrics.NewClient(&metrics.Config{
			URL:    cfg.InfluxURL,
			Token:  cfg.InfluxToken,
			Org:    cfg.InfluxOrg,
			Bucket: cfg.InfluxBucket,
		})
		if err != nil {
			logger.WithError(err).Warn("InfluxDB unavailable, running without metrics")
			metricsClient = nil
		} else {
			defer metricsClient.Close()
		}
	}

	store := registry.NewManager(postgres.NewBillRepository(pgClient), cache)
	service := genesis.NewService(store, mining.NewMiner(nil, logger), logger)

	verifier := NewVerifier(cfg, logger, kafkaClient, service, metricsClient)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := verifier.Start(ctx); err != nil && err != context.Canceled {
			logger.WithError(err).Error("verifier failed")
			cancel()
		}
	}()

	<-sigChan
	logger.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := verifier.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("shutdown failed")
		os.Exit(1)
	}

	if err := kafkaClient.Close(); err != nil {
		logger.WithError(err).Error("failed to close Kafka client")
	}

	logger.Info("verifyd stopped")
}

// publisher is the messaging surface the verifier needs.
type publisher interface {
	Publish(ctx context.Context, topic, key string, msg any) error
}

// verificationRecorder is the metrics surface the verifier needs.
type verificationRecorder interface {
	WriteVerification(serial string, valid bool, method string)
}

// Verifier consumes verification requests and publishes results
type Verifier struct {
	cfg       *config.Config
	logger    *log.Logger
	publisher publisher
	service   *genesis.Service
	recorder  verificationRecorder

	kafka *messaging.KafkaClient
	done  chan struct{}
}

// NewVerifier creates a new verifier
func NewVerifier(cfg *config.Config, logger *log.Logger, kafkaClient *messaging.KafkaClient, service *genesis.Service, metricsClient *metrics.Client) *Verifier {
	v := &Verifier{
		cfg:     cfg,
		logger:  logger.WithComponent("verifyd"),
		service: service,
		kafka:   kafkaClient,
		done:    make(chan struct{}),
	}
	if kafkaClient != nil {
		v.publisher = kafkaClient
	}
	// Avoid a typed-nil interface when metrics are disabled
	if metricsClient != nil {
		v.recorder = metricsClient
	}
	return v
}

// Start runs the verify request consumer until the context is cancelled or
// Shutdown is called.
func (v *Verifier) Start(ctx context.Context) error {
	v.logger.Info("verifier starting")

	consumerCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-v.done:
			cancel()
		case <-consumerCtx.Done():
		}
	}()

	return v.kafka.StartConsumer(consumerCtx, messaging.TopicVerifyRequests, v.cfg.KafkaGroupID, v)
}

// Shutdown stops the consumer loop
func (v *Verifier) Shutdown(_ context.Context) error {
	v.logger.Info("shutting down verifier")
	close(v.done)
	return nil
}

// HandleMessage processes one verification request from Kafka. A negative
// verification is a published result; only registry I/O failures are
// returned as errors.
func (v *Verifier) HandleMessage(ctx context.Context, key string, value []byte) error {
	var req messaging.VerifyRequestMessage
	if err := json.Unmarshal(value, &req); err != nil {
		return errors.Wrap(err, errors.ErrorTypeValidation, "handle_verify_request",
			"failed to unmarshal verify request").
			WithContext("key", key)
	}

	logger := v.logger.WithFields("request_id", req.RequestID, "bill_serial", req.BillSerial)

	result, err := v.service.VerifyBill(ctx, req.BillSerial)
	if err != nil {
		logger.WithError(err).Error("verification failed on registry lookup")
		return err
	}

	msg := &messaging.VerifyResultMessage{
		RequestID:    req.RequestID,
		BillSerial:   req.BillSerial,
		Valid:        result.Valid,
		Method:       result.Method,
		ErrorMessage: result.Error,
		VerifiedAt:   time.Now(),
	}
	if err := v.publisher.Publish(ctx, messaging.TopicVerifyResults, req.RequestID, msg); err != nil {
		logger.WithError(err).Error("failed to publish verify result")
		return err
	}

	if v.recorder != nil {
		v.recorder.WriteVerification(req.BillSerial, result.Valid, result.Method)
	}

	return nil
}
