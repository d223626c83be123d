package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"go-loginguard/pkg/alerter"
	"go-loginguard/pkg/analyzer"
	"go-loginguard/pkg/api"
	"go-loginguard/pkg/config"
	"go-loginguard/pkg/consumer"
	"go-loginguard/pkg/encoder"
	"go-loginguard/pkg/features"
	"go-loginguard/pkg/geo"
	"go-loginguard/pkg/logger"
	"go-loginguard/pkg/storage"
)

func init() {
	logger.Bootstrap()
	if err := config.Init(); err != nil {
		logger.Log.Fatal("load config failed: ", err)
	}

	cfg := config.GlobalConfig
	if err := logger.Init(logger.Options{
		Level:   cfg.Log.Level,
		Path:    cfg.Log.Path,
		Console: cfg.Log.Console,
	}); err != nil {
		logger.Log.Fatal("init logger failed: ", err)
	}
}

func main() {
	defer logger.Sync()
	cfg := config.GlobalConfig

	logger.Log.Info("starting login guard...")

	encoders, err := encoder.LoadSet(cfg.Models.Dir)
	if err != nil {
		logger.Log.Fatal("load encoders failed: ", err)
	}
	scorer, err := analyzer.LoadScorer(filepath.Join(cfg.Models.Dir, cfg.Models.ModelFile))
	if err != nil {
		logger.Log.Fatal("load model failed: ", err)
	}
	logger.Log.Infof("model loaded: %d trees, %d features", scorer.Forest().NumTrees(), scorer.Forest().NumFeatures())

	resolver, closeGeo := newResolver(&cfg)
	defer closeGeo()

	recorder := newRecorder(&cfg)
	defer func() {
		if err := recorder.Close(); err != nil {
			logger.Log.Errorf("close audit sinks: %v", err)
		}
	}()

	loginAnalyzer := analyzer.NewLoginAnalyzer(
		features.NewAssembler(encoders, resolver, cfg.Location()),
		scorer,
		recorder,
		alerter.NewAlerter(nil, cfg.Alert.Cooldown),
	)

	server := api.NewServer(api.Options{
		Addr:           cfg.Server.Addr,
		RedirectURL:    cfg.Server.RedirectURL,
		TrustedProxies: cfg.Server.TrustedProxies,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		ModelTrees:     scorer.Forest().NumTrees(),
	}, loginAnalyzer)
	serverErr := server.Start()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consumerDone := make(chan struct{})
	if len(cfg.Kafka.Brokers) > 0 && cfg.Kafka.Topic != "" {
		kafkaConsumer, err := consumer.NewConsumer(consumer.Options{
			Brokers:     cfg.Kafka.Brokers,
			GroupID:     cfg.Kafka.GroupID,
			Version:     cfg.Kafka.Version,
			ConsumeFrom: cfg.Kafka.ConsumeFrom,
		}, loginAnalyzer)
		if err != nil {
			logger.Log.Fatal("init kafka consumer failed: ", err)
		}
		defer kafkaConsumer.Close()

		go func() {
			defer close(consumerDone)
			if err := kafkaConsumer.Start(ctx, cfg.Kafka.Topic); err != nil {
				logger.Log.Errorf("kafka consumer stopped: %v", err)
			}
		}()
	} else {
		close(consumerDone)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Log.Info("login guard ready")
	select {
	case sig := <-sigChan:
		logger.Log.Infof("received signal %v, shutting down", sig)
	case err := <-serverErr:
		logger.Log.Errorf("http server failed: %v", err)
	}

	cancel()
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := server.Stop(shutdownCtx); err != nil {
		logger.Log.Errorf("http shutdown: %v", err)
	}
	<-consumerDone
}

// newResolver builds the configured geolocation provider, optionally behind
// the Redis cache. The returned func releases its resources.
func newResolver(cfg *config.Config) (geo.Resolver, func()) {
	var resolver geo.Resolver
	closers := []func(){}

	switch cfg.GeoIP.Provider {
	case "maxmind":
		mm, err := geo.OpenMaxMind(cfg.GeoIP.CityPath, cfg.GeoIP.ASNPath)
		if err != nil {
			logger.Log.Fatal("open GeoIP databases failed: ", err)
		}
		closers = append(closers, func() { mm.Close() })
		resolver = mm
	case "ipapi":
		resolver = geo.NewIPAPI(cfg.GeoIP.APIURL, cfg.GeoIP.Timeout)
	default:
		logger.Log.Warnf("geolocation disabled (provider %q)", cfg.GeoIP.Provider)
		resolver = geo.Disabled()
	}

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		closers = append(closers, func() { client.Close() })
		resolver = geo.NewCached(resolver, client, cfg.Redis.TTL)
		logger.Log.Infof("geo cache enabled at %s", cfg.Redis.Addr)
	}

	return resolver, func() {
		for _, c := range closers {
			c()
		}
	}
}

// newRecorder opens the audit log plus every configured remote sink.
func newRecorder(cfg *config.Config) *storage.Recorder {
	primary, err := storage.NewJSONLSink(cfg.Audit.Path)
	if err != nil {
		logger.Log.Fatal("open audit log failed: ", err)
	}

	var async []storage.Sink
	if cfg.MySQL.DSN != "" {
		sink, err := storage.NewMySQLSink(cfg.MySQL.DSN, cfg.MySQL.MaxIdle, cfg.MySQL.MaxOpen)
		if err != nil {
			logger.Log.Fatal("connect MySQL failed: ", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := sink.EnsureSchema(ctx); err != nil {
			logger.Log.Fatal("create audit table failed: ", err)
		}
		cancel()
		async = append(async, sink)
	}
	if cfg.InfluxDB.URL != "" {
		async = append(async, storage.NewInfluxSink(cfg.InfluxDB.URL, cfg.InfluxDB.Token, cfg.InfluxDB.Org, cfg.InfluxDB.Bucket))
	}
	if len(cfg.Kafka.Brokers) > 0 && cfg.Kafka.AuditTopic != "" {
		sink, err := storage.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.AuditTopic, cfg.Kafka.Version)
		if err != nil {
			logger.Log.Fatal("init kafka audit producer failed: ", err)
		}
		async = append(async, sink)
	}

	for _, s := range async {
		logger.Log.Infof("audit sink enabled: %s", s.Name())
	}
	return storage.NewRecorder(primary, async, cfg.Audit.QueueSize)
}
