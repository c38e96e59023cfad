package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	_ "net/http/pprof"

	"github.com/IliaW/catalog-crawler/config"
	"github.com/IliaW/catalog-crawler/internal/archive"
	"github.com/IliaW/catalog-crawler/internal/broker"
	cacheClient "github.com/IliaW/catalog-crawler/internal/cache"
	"github.com/IliaW/catalog-crawler/internal/derive"
	"github.com/IliaW/catalog-crawler/internal/enrich"
	"github.com/IliaW/catalog-crawler/internal/keyword"
	"github.com/IliaW/catalog-crawler/internal/orchestrator"
	"github.com/IliaW/catalog-crawler/internal/persistence"
	"github.com/IliaW/catalog-crawler/internal/render"
	"github.com/IliaW/catalog-crawler/internal/telemetry"
	"github.com/IliaW/catalog-crawler/internal/walker"
	_ "github.com/lib/pq"
	"github.com/lmittmann/tint"
)

var (
	cfg         *config.Config
	db          *sql.DB
	sourceRepo  persistence.SourceStorage
	catalogRepo persistence.CatalogStorage
	sessionRepo persistence.SessionStorage
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg = config.MustLoad()
	setupLogger()
	metrics := telemetry.SetupMetrics(context.Background(), cfg)
	defer metrics.Close()
	db = setupDatabase()
	defer closeDatabase()
	sourceRepo = persistence.NewSourceRepository(db)
	catalogRepo = persistence.NewCatalogRepository(db)
	sessionRepo = persistence.NewSessionRepository(db)
	keywords := keyword.NewDbProvider(db, cfg.KeywordSettings.ReloadInterval)
	deriver := derive.NewFieldDeriver(keywords)

	indexSink := broker.NewKafkaIndexSink(metrics.KafkaProducerMetrics, cfg.KafkaSettings.Producer)
	defer indexSink.Close()
	kafkaDLQ := broker.NewKafkaDLQ(cfg.ServiceName, cfg.KafkaSettings.Producer)
	defer kafkaDLQ.Close()

	var visitedCache cacheClient.VisitedClient
	if cfg.CacheSettings.Enabled {
		visitedCache = cacheClient.NewMemcachedClient(cfg.CacheSettings)
		defer visitedCache.Close()
	}
	var snapshots walker.SnapshotArchiver
	if cfg.S3Settings.Enabled {
		snapshots = archive.NewS3SnapshotClient(cfg)
	}

	httpTransport := getHttpTransport()
	slog.Info("starting application on port "+cfg.Port, slog.String("env", cfg.Env),
		slog.Duration("run interval", cfg.RunInterval))
	go healthCheckHandler()

	runCrawl := func(ctx context.Context) {
		sources, err := sourceRepo.ListActive()
		if err != nil {
			slog.Error("failed to list sources.", slog.String("err", err.Error()))
			return
		}
		if len(sources) == 0 {
			slog.Warn("no active sources registered. nothing to crawl.")
			return
		}

		// The renderer (and its shared headless browser) lives for exactly
		// one run.
		renderer := render.NewSiteRenderer(cfg, httpTransport)
		defer renderer.Close()

		w := &walker.Walker{
			Fetcher:  renderer,
			Deriver:  deriver,
			Archive:  snapshots,
			MaxPages: cfg.CrawlerSettings.MaxPagesPerSource,
			Delay:    cfg.CrawlerSettings.InterPageDelay,
			Metrics:  metrics.CrawlMetrics,
		}
		var enricher *enrich.Enricher
		if cfg.EnrichmentSettings.Enabled {
			enricher = &enrich.Enricher{
				Fetcher:      renderer,
				Cache:        visitedCache,
				MaxPerSource: cfg.EnrichmentSettings.MaxRecordsPerSource,
				Delay:        cfg.EnrichmentSettings.InterVisitDelay,
				Metrics:      metrics.CrawlMetrics,
			}
		}
		orch := &orchestrator.Orchestrator{
			Walker:      w,
			Enricher:    enricher,
			Records:     catalogRepo,
			Index:       indexSink,
			Sessions:    sessionRepo,
			DLQ:         kafkaDLQ,
			Concurrency: concurrencyLimit(),
			Metrics:     metrics.CrawlMetrics,
		}
		orch.Run(ctx, sources)
	}

	runCrawl(ctx)
	ticker := time.NewTicker(cfg.RunInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("stopping server...")
			slog.Info("server stopped.")
			return
		case <-ticker.C:
			runCrawl(ctx)
		}
	}
}

func setupLogger() *slog.Logger {
	envLogLevel := strings.ToLower(cfg.LogLevel)
	var slogLevel slog.Level
	err := slogLevel.UnmarshalText([]byte(envLogLevel))
	if err != nil {
		log.Printf("encountenred log level: '%s'. The package does not support custom log levels", envLogLevel)
		slogLevel = slog.LevelDebug
	}
	log.Printf("slog level overwritten to '%v'", slogLevel)
	slog.SetLogLoggerLevel(slogLevel)

	replaceAttrs := func(groups []string, a slog.Attr) slog.Attr {
		if a.Key == slog.SourceKey {
			source := a.Value.Any().(*slog.Source)
			source.File = filepath.Base(source.File)
		}
		return a
	}

	var logger *slog.Logger
	if strings.ToLower(cfg.LogType) == "json" {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			AddSource:   true,
			Level:       slogLevel,
			ReplaceAttr: replaceAttrs}))
	} else {
		logger = slog.New(tint.NewHandler(os.Stdout, &tint.Options{
			AddSource:   true,
			Level:       slogLevel,
			ReplaceAttr: replaceAttrs,
			NoColor: func() bool {
				if cfg.Env == "local" {
					return false
				}
				return true
			}()}))
	}

	slog.SetDefault(logger)
	logger.Debug("debug messages are enabled.")

	return logger
}

func setupDatabase() *sql.DB {
	slog.Info("connecting to the database...")
	connStr := fmt.Sprintf("user=%s password=%s host=%s port=%s dbname=%s sslmode=disable",
		cfg.DbSettings.User,
		cfg.DbSettings.Password,
		cfg.DbSettings.Host,
		cfg.DbSettings.Port,
		cfg.DbSettings.Name,
	)
	database, err := sql.Open("postgres", connStr)
	if err != nil {
		slog.Error("failed to establish database connection.", slog.String("err", err.Error()))
		os.Exit(1)
	}
	database.SetConnMaxLifetime(cfg.DbSettings.ConnMaxLifetime)
	database.SetMaxOpenConns(cfg.DbSettings.MaxOpenConns)
	database.SetMaxIdleConns(cfg.DbSettings.MaxIdleConns)

	maxRetry := 6
	for i := 1; i <= maxRetry; i++ {
		slog.Info("ping the database.", slog.String("attempt", fmt.Sprintf("%d/%d", i, maxRetry)))
		pingErr := database.Ping()
		if pingErr != nil {
			slog.Error("not responding.", slog.String("err", pingErr.Error()))
			if i == maxRetry {
				slog.Error("failed to establish database connection.")
				os.Exit(1)
			}
			slog.Info(fmt.Sprintf("wait %d seconds", 5*i))
			time.Sleep(time.Duration(5*i) * time.Second)
		} else {
			break
		}
	}
	slog.Info("connected to the database!")

	return database
}

func closeDatabase() {
	slog.Info("closing database connection.")
	err := db.Close()
	if err != nil {
		slog.Error("failed to close database connection.", slog.String("err", err.Error()))
	}
}

// Set -1 to admit as many source pipelines as there are CPUs
func concurrencyLimit() int {
	limit := cfg.CrawlerSettings.ConcurrencyLimit
	if limit == -1 {
		return runtime.NumCPU()
	}
	if limit <= 0 {
		slog.Error("concurrency limit is 0 or less than -1")
		os.Exit(1)
	}

	return limit
}

func healthCheckHandler() {
	http.HandleFunc("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("pong"))
	})
	if err := http.ListenAndServe(":"+cfg.Port, nil); err != nil {
		slog.Error("http server error", slog.String("err", err.Error()))
	}
}

func getHttpTransport() *http.Transport {
	return &http.Transport{
		MaxIdleConns:        cfg.HttpClientSettings.MaxIdleConnections,
		MaxIdleConnsPerHost: cfg.HttpClientSettings.MaxIdleConnectionsPerHost,
		MaxConnsPerHost:     cfg.HttpClientSettings.MaxConnectionsPerHost,
		IdleConnTimeout:     cfg.HttpClientSettings.IdleConnectionTimeout,
		TLSHandshakeTimeout: cfg.HttpClientSettings.TlsHandshakeTimeout,
		DialContext: (&net.Dialer{
			Timeout:   cfg.HttpClientSettings.DialTimeout,
			KeepAlive: cfg.HttpClientSettings.DialKeepAlive,
		}).DialContext,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.HttpClientSettings.TlsInsecureSkipVerify,
		},
	}
}
