// Package main implements the mintd service for lunamint.
// It consumes mint requests from Kafka, mines genesis bills, registers them,
// and publishes issuance results.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/taellinglin/lunamint/internal/bill"
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

const statsInterval = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := log.New(cfg.ServiceName, cfg.Version, cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting mintd",
		"version", cfg.Version,
		"batch_workers", cfg.BatchWorkers,
		"batch_size", cfg.BatchSize,
	)

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

	batch := mining.NewBatchHasher(cfg.BatchWorkers, cfg.BatchSize, cfg.BatchTimeout, logger)
	miner := mining.NewMiner(batch, logger)
	service := genesis.NewService(store, miner, logger)
	service.EnableRetargeting(cfg.TargetMiningTime)

	signingKey := os.Getenv("MINT_SIGNING_KEY")
	if signingKey == "" {
		var publicKey string
		signingKey, publicKey = bill.GenerateKeyPair()
		logger.Warn("MINT_SIGNING_KEY not set, generated ephemeral signing key",
			"public_key", publicKey)
	}

	minter := NewMinter(cfg, logger, kafkaClient, service, miner, metricsClient, signingKey)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := minter.Start(ctx); err != nil && err != context.Canceled {
			logger.WithError(err).Error("minter failed")
			cancel()
		}
	}()

	<-sigChan
	logger.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := minter.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("shutdown failed")
		os.Exit(1)
	}

	if err := kafkaClient.Close(); err != nil {
		logger.WithError(err).Error("failed to close Kafka client")
	}

	logger.Info("mintd stopped")
}

// publisher is the messaging surface the minter needs.
type publisher interface {
	Publish(ctx context.Context, topic, key string, msg any) error
}

// billRecorder is the metrics surface the minter needs. Nil-able; metrics
// are best effort.
type billRecorder interface {
	WriteBillMined(serial string, denomination uint64, difficulty uint32, attempts uint64, miningTime float64)
	WriteMiningStats(service string, billsMined, blocksMined, totalAttempts uint64, totalMiningTime float64)
}

// Minter consumes mint requests and turns them into issued bills
type Minter struct {
	cfg        *config.Config
	logger     *log.Logger
	publisher  publisher
	service    *genesis.Service
	miner      *mining.Miner
	recorder   billRecorder
	signingKey string

	kafka *messaging.KafkaClient
	done  chan struct{}
}

// NewMinter creates a new minter
func NewMinter(cfg *config.Config, logger *log.Logger, kafkaClient *messaging.KafkaClient, service *genesis.Service, miner *mining.Miner, metricsClient *metrics.Client, signingKey string) *Minter {
	m := &Minter{
		cfg:        cfg,
		logger:     logger.WithComponent("mintd"),
		service:    service,
		miner:      miner,
		signingKey: signingKey,
		kafka:      kafkaClient,
		done:       make(chan struct{}),
	}
	if kafkaClient != nil {
		m.publisher = kafkaClient
	}
	// Avoid a typed-nil interface when metrics are disabled
	if metricsClient != nil {
		m.recorder = metricsClient
	}
	return m
}

// Start starts the stats reporter and the mint request consumer. It blocks
// until the context is cancelled or Shutdown is called.
func (m *Minter) Start(ctx context.Context) error {
	m.logger.Info("minter starting")

	go m.reportStats(ctx)

	consumerCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-m.done:
			cancel()
		case <-consumerCtx.Done():
		}
	}()

	return m.kafka.StartConsumer(consumerCtx, messaging.TopicMintRequests, m.cfg.KafkaGroupID, m)
}

// Shutdown stops the nonce search and the consumer loop
func (m *Minter) Shutdown(_ context.Context) error {
	m.logger.Info("shutting down minter")
	m.miner.Stop()
	close(m.done)
	return nil
}

// HandleMessage processes one mint request from Kafka
func (m *Minter) HandleMessage(ctx context.Context, key string, value []byte) error {
	var req messaging.MintRequestMessage
	if err := json.Unmarshal(value, &req); err != nil {
		return errors.Wrap(err, errors.ErrorTypeValidation, "handle_mint_request",
			"failed to unmarshal mint request").
			WithContext("key", key)
	}

	logger := m.logger.WithFields("request_id", req.RequestID).WithOwner(req.UserAddress)
	logger.Info("processing mint request", "denomination", req.Denomination)

	start := time.Now()
	fin, err := m.service.IssueBill(ctx, req.Denomination, req.UserAddress, req.BillData, m.signingKey)
	if err != nil && fin == nil {
		logger.WithError(err).Error("mint request failed")
		failure := &messaging.MintFailedMessage{
			RequestID:    req.RequestID,
			Denomination: req.Denomination,
			UserAddress:  req.UserAddress,
			ErrorMessage: err.Error(),
			FailedAt:     time.Now(),
		}
		if pubErr := m.publisher.Publish(ctx, messaging.TopicMintFailures, req.RequestID, failure); pubErr != nil {
			logger.WithError(pubErr).Error("failed to publish mint failure")
		}
		return err
	}
	if err != nil {
		// Bill was mined but not persisted; announce it anyway, the proof
		// is not lost.
		logger.WithError(err).Error("bill mined but registry write failed")
	}

	issued := &messaging.BillIssuedMessage{
		RequestID:    req.RequestID,
		BillSerial:   fin.BillSerial,
		Denomination: fin.Denomination,
		UserAddress:  fin.UserAddress,
		Hash:         fin.Hash,
		Nonce:        fin.Nonce,
		Difficulty:   fin.Difficulty,
		MiningTime:   fin.MiningTime,
		LunaValue:    fin.LunaValue,
		Transaction:  fin.Transaction,
		IssuedAt:     time.Now(),
	}
	if err := m.publisher.Publish(ctx, messaging.TopicBillsIssued, fin.BillSerial, issued); err != nil {
		logger.WithError(err).Error("failed to publish issued bill")
	}

	if m.recorder != nil {
		m.recorder.WriteBillMined(fin.BillSerial, fin.Denomination, fin.Difficulty, fin.Nonce+1, fin.MiningTime)
	}

	logger.LogBillMined(fin.BillSerial, fin.Denomination, fin.Difficulty, fin.Nonce, fin.MiningTime)
	logger.Info("mint request completed", "elapsed_s", time.Since(start).Seconds())
	return nil
}

// reportStats periodically publishes the miner's cumulative counters
func (m *Minter) reportStats(ctx context.Context) {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.done:
			return
		case <-ticker.C:
			stats := m.miner.Stats()
			msg := &messaging.MiningStatsMessage{
				Service:           m.cfg.ServiceName,
				BillsMined:        stats.BillsMined,
				BlocksMined:       stats.BlocksMined,
				TotalMiningTime:   stats.TotalMiningTime,
				TotalHashAttempts: stats.TotalHashAttempts,
				ReportedAt:        time.Now(),
			}
			if err := m.publisher.Publish(ctx, messaging.TopicMiningStats, m.cfg.ServiceName, msg); err != nil {
				m.logger.WithError(err).Error("failed to publish mining stats")
			}
			if m.recorder != nil {
				m.recorder.WriteMiningStats(m.cfg.ServiceName,
					stats.BillsMined, stats.BlocksMined,
					stats.TotalHashAttempts, stats.TotalMiningTime)
			}
		}
	}
}
