package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"newsagent/api"
	"newsagent/archive"
	"newsagent/classifier"
	"newsagent/config"
	"newsagent/deduplication"
	"newsagent/kafka"
	"newsagent/logging"
	"newsagent/pipeline"
	"newsagent/rssfeeds"
	"newsagent/storage"
	"newsagent/tasks"
	"newsagent/types"

	"github.com/redis/go-redis/v9"
)

const shutdownTimeout = 10 * time.Second

func main() {
	port := flag.String("port", "", "HTTP port (overrides PORT)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.Error("failed to load configuration", "err", err)
		os.Exit(1)
	}
	if *port != "" {
		cfg.Port = *port
	}
	logging.Init(os.Stderr, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logging.Error("server stopped", "err", err)
		os.Exit(1)
	}
	logging.Info("server exited")
}

func run(ctx context.Context, cfg *config.Config) error {
	store, err := storage.Open(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	dedup, err := deduplication.NewDeduplicator(store, deduplication.Config{SimilarityThreshold: cfg.DedupThreshold})
	if err != nil {
		return err
	}

	var (
		taskStore tasks.Store
		filter    rssfeeds.LinkFilter
	)
	if cfg.RedisEnabled() {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		taskStore = tasks.NewRedisStore(client, "", cfg.TaskTTL)

		bloom, err := rssfeeds.NewRedisBloom(ctx, rssfeeds.BloomConfig{
			Addr:       cfg.RedisAddr,
			Password:   cfg.RedisPassword,
			DB:         cfg.RedisDB,
			Key:        cfg.BloomKey,
			TTL:        cfg.BloomTTL,
			Capacity:   cfg.BloomCapacity,
			ErrorRate:  cfg.BloomErrorRate,
			NonScaling: cfg.BloomNonScaling,
		})
		if err != nil {
			logging.Warn("link bloom filter disabled", "err", err)
		} else {
			defer bloom.Close()
			filter = bloom
		}
		logging.Info("using redis task store", "addr", cfg.RedisAddr)
	} else {
		mem := tasks.NewMemoryStore(cfg.TaskTTL, time.Minute)
		defer mem.Close()
		taskStore = mem
	}

	collector := rssfeeds.NewCollector(store, rssfeeds.CollectorConfig{
		MaxItems:    cfg.FeedMaxItems,
		Concurrency: cfg.FeedFetchConcurrency,
		Extract:     cfg.ExtractFullContent,
		Filter:      filter,
	})

	var cls classifier.Classifier = classifier.NewKeywordClassifier(cfg.RelevanceThreshold)
	if cfg.CohereAPIKey != "" {
		embedder := classifier.NewCohereEmbeddings(cfg.CohereAPIKey, cfg.CohereModel)
		cls = classifier.NewEmbeddingClassifier(embedder, cfg.RelevanceThreshold, cfg.CohereRPS)
		logging.Info("using embedding classifier", "model", cfg.CohereModel)
	}

	runnerCfg := pipeline.RunnerConfig{Threshold: cfg.DedupThreshold, GlobalScope: cfg.DedupGlobalScope}
	if cfg.ArchiveEnabled() {
		s3, err := archive.NewS3(ctx, archive.S3Config{
			Bucket:       cfg.S3Bucket,
			Region:       cfg.AWSRegion,
			Profile:      cfg.AWSProfile,
			Endpoint:     cfg.S3Endpoint,
			UsePathStyle: cfg.S3PathStyle,
		})
		if err != nil {
			return fmt.Errorf("failed to set up s3 archive: %w", err)
		}
		runnerCfg.Archiver = archive.NewArchiver(s3, cfg.S3Prefix)
		logging.Info("archiving relevant articles", "bucket", cfg.S3Bucket, "prefix", cfg.S3Prefix)
	}

	runner := pipeline.NewRunner(store, collector, dedup, cls, taskStore, runnerCfg)
	queue := pipeline.NewQueue(runner, taskStore, cfg.WorkerCount, cfg.QueueSize)

	var scheduler *pipeline.Scheduler
	if cfg.CronSchedule != "" {
		scheduler, err = pipeline.NewScheduler(queue, cfg.CronSchedule,
			types.ProcessRequest{Feeds: cfg.DefaultFeeds, Criteria: cfg.DefaultCriteria})
		if err != nil {
			return err
		}
		scheduler.Start()
	}

	if cfg.KafkaEnabled() {
		consumer, err := kafka.NewConsumer(kafka.ConsumerConfig{
			Brokers:  cfg.KafkaBrokers,
			Topic:    cfg.KafkaTopic,
			GroupID:  cfg.KafkaGroupID,
			ClientID: "newsagent",
			Handler:  kafka.NewRequestHandler(queue),
		})
		if err != nil {
			return fmt.Errorf("failed to create kafka consumer: %w", err)
		}
		defer consumer.Close()
		go func() {
			if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logging.Error("kafka consumer failed to start", "err", err)
			}
		}()
	}

	router := api.NewRouter(api.Deps{
		Queue:    queue,
		Tasks:    taskStore,
		Articles: store,
		Dedup:    dedup,
		Fetch:    rssfeeds.FetchFeed,
		Ping:     store.Ping,
	})
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info("starting API server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logging.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if scheduler != nil {
		<-scheduler.Stop().Done()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Warn("http shutdown", "err", err)
	}
	if err := queue.Close(shutdownCtx); err != nil {
		logging.Warn("workers did not finish in time", "err", err)
	}
	return nil
}
