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

	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"hypeledger/internal/catalog"
	"hypeledger/internal/config"
	"hypeledger/internal/handler"
	"hypeledger/internal/infrastructure/cache"
	"hypeledger/internal/infrastructure/database"
	"hypeledger/internal/infrastructure/lock"
	"hypeledger/internal/infrastructure/mq"
	"hypeledger/internal/job"
	"hypeledger/internal/ledger"
	"hypeledger/internal/logging"
	"hypeledger/internal/repository"
	"hypeledger/pkg/idgen"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config; empty uses defaults and HYPE_* env only")
	flag.Parse()

	if err := run(*configPath); err != nil {
		log.WithError(err).Fatal("server exited")
	}
}

func run(configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}

	logCloser, err := logging.Setup(cfg.Log)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	if err := idgen.Init(cfg.Economy.WorkerID); err != nil {
		return err
	}

	cat, err := loadCatalog(cfg.Economy.CatalogFile)
	if err != nil {
		return err
	}

	policy, err := newPolicy(cfg.Economy)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// storage
	var (
		store ledger.Store = ledger.NewMemoryStore()
		db    *gorm.DB
	)
	if cfg.Database.Driver != config.DriverMemory {
		db, err = database.Open(cfg.Database)
		if err != nil {
			return err
		}
		outboxTopic := ""
		if cfg.Kafka.Enabled {
			outboxTopic = cfg.Kafka.Topic.LedgerEvents
		}
		store = repository.NewStore(db, outboxTopic)
	}

	// redis: distributed lock and balance fan-out
	var (
		locker      ledger.Locker = ledger.NewLocalLocker()
		redisClient *redis.Client
	)
	notifier := ledger.NewChangeNotifier()
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedisClient(cfg.Redis)
		if err != nil {
			return err
		}
		defer redisClient.Close()

		notifier.Subscribe(cache.NewBalancePublisher(redisClient).OnBalanceChanged)
		if cfg.Lock.Backend == config.LockBackendRedis {
			locker = lock.NewRedisLocker(redisClient, lock.Options{
				TTL:           cfg.Lock.TTL,
				RetryInterval: cfg.Lock.RetryInterval,
				MaxRetries:    cfg.Lock.MaxRetries,
			})
		}
	}

	engine, err := ledger.NewEngine(ledger.Options{
		Catalog:        cat,
		Store:          store,
		Locker:         locker,
		Sustainability: ledger.NewSustainabilityController(policy),
		Notifier:       notifier,
	})
	if err != nil {
		return err
	}
	if err := engine.Init(ctx); err != nil {
		return err
	}

	// background jobs
	var outboxRepo *repository.OutboxRepository
	if db != nil {
		outboxRepo = repository.NewOutboxRepository(db)
	}
	if cfg.Kafka.Enabled {
		producer, err := mq.NewProducer(cfg.Kafka)
		if err != nil {
			return err
		}
		defer producer.Close()

		outboxSender := job.NewOutboxSender(outboxRepo, producer, cfg.Business)
		go outboxSender.Start(ctx)
	}

	scheduler := job.NewScheduler(engine, outboxRepo, cfg.Economy.RevenueSyncSpec)
	if err := scheduler.Start(ctx); err != nil {
		return err
	}
	defer scheduler.Stop()

	router := handler.SetupRouter(engine, cfg.Server.Mode)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.WithFields(log.Fields{
			"port":   cfg.Server.Port,
			"driver": cfg.Database.Driver,
			"lock":   cfg.Lock.Backend,
		}).Info("hype ledger listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		return fmt.Errorf("http server: %w", err)
	}

	log.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
	notifier.Wait()

	log.Info("server stopped")
	return nil
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default(), nil
	}
	return catalog.LoadFile(path)
}

func newPolicy(cfg config.EconomyConfig) (ledger.Policy, error) {
	ratio, err := cfg.Coverage()
	if err != nil {
		return ledger.Policy{}, err
	}
	tiers := make([]catalog.Tier, 0, len(cfg.GatedTiers))
	for _, t := range cfg.GatedTiers {
		tiers = append(tiers, catalog.Tier(t))
	}
	return ledger.Policy{
		CoverageRatio:  ratio,
		ConversionRate: cfg.ConversionRate,
		GatedTiers:     tiers,
	}, nil
}
