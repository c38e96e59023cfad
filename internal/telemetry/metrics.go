package telemetry

import (
	"context"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel"

	"go.opentelemetry.io/contrib/detectors/aws/ecs"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/IliaW/catalog-crawler/config"
	"github.com/google/uuid"
)

var meter metric.Meter

type MetricsProvider struct {
	CrawlMetrics         *CrawlMetrics
	KafkaProducerMetrics *KafkaProducerMetrics
	Close                func()
}

type CrawlMetrics struct {
	PagesFetchedCnt    func(count int64)
	FetchErrorCnt      func(count int64)
	RecordsFoundCnt    func(count int64)
	RecordsEnrichedCnt func(count int64)
	FailedSourceCnt    func(count int64)
}

type KafkaProducerMetrics struct {
	SuccessfullySendMsgCnt func(count int64)
	FailedSendMsgCnt       func(count int64)
}

// NoopCrawl returns crawl counters that record nothing. Used by tests and
// when telemetry is not wired.
func NoopCrawl() *CrawlMetrics {
	noop := func(int64) {}
	return &CrawlMetrics{
		PagesFetchedCnt:    noop,
		FetchErrorCnt:      noop,
		RecordsFoundCnt:    noop,
		RecordsEnrichedCnt: noop,
		FailedSourceCnt:    noop,
	}
}

func SetupMetrics(ctx context.Context, cfg *config.Config) *MetricsProvider {
	metricsProvider := new(MetricsProvider)
	var meterProvider *sdkmetric.MeterProvider

	if cfg.TelemetrySettings.Enabled {
		r, err := newResource(cfg)
		if err != nil {
			slog.Error("failed to get resource.", slog.String("err", err.Error()))
			os.Exit(1)
		}
		exporter, err := newMetricExporter(ctx, cfg.TelemetrySettings)
		if err != nil {
			slog.Error("failed to get metric exporter.", slog.String("err", err.Error()))
			os.Exit(1)
		}
		meterProvider = newMeterProvider(exporter, *r)
		otel.SetMeterProvider(meterProvider)
	}

	meter = otel.Meter(cfg.ServiceName)
	metricsProvider.Close = func() {
		if meterProvider != nil {
			err := meterProvider.Shutdown(ctx)
			if err != nil {
				slog.Error("failed to shutdown metrics provider.", slog.String("err", err.Error()))
			}
		}
	}

	// Set up crawl metrics
	pagesFetchedCounter, err := meter.Int64Counter("catalog-crawler.pages.fetched",
		metric.WithDescription("The number of listing pages fetched across all sources"),
		metric.WithUnit("{pages}"))
	fetchErrorCounter, err := meter.Int64Counter("catalog-crawler.pages.fetch-error",
		metric.WithDescription("The number of page fetches that ended a walk with fetch_error"),
		metric.WithUnit("{pages}"))
	recordsFoundCounter, err := meter.Int64Counter("catalog-crawler.records.found",
		metric.WithDescription("The number of catalog records extracted"),
		metric.WithUnit("{records}"))
	recordsEnrichedCounter, err := meter.Int64Counter("catalog-crawler.records.enriched",
		metric.WithDescription("The number of records that gained purchase links from detail page visits"),
		metric.WithUnit("{records}"))
	failedSourceCounter, err := meter.Int64Counter("catalog-crawler.sources.failed",
		metric.WithDescription("The number of source pipelines that ended in the failed state. Sent to DLQ."),
		metric.WithUnit("{sources}"))
	if err != nil {
		slog.Error("failed to create telemetry counters for crawler.", slog.String("err", err.Error()))
		os.Exit(1)
	}
	metricsProvider.CrawlMetrics = &CrawlMetrics{
		PagesFetchedCnt: func(count int64) {
			if cfg.TelemetrySettings.Enabled {
				pagesFetchedCounter.Add(ctx, count)
			}
		},
		FetchErrorCnt: func(count int64) {
			if cfg.TelemetrySettings.Enabled {
				fetchErrorCounter.Add(ctx, count)
			}
		},
		RecordsFoundCnt: func(count int64) {
			if cfg.TelemetrySettings.Enabled {
				recordsFoundCounter.Add(ctx, count)
			}
		},
		RecordsEnrichedCnt: func(count int64) {
			if cfg.TelemetrySettings.Enabled {
				recordsEnrichedCounter.Add(ctx, count)
			}
		},
		FailedSourceCnt: func(count int64) {
			if cfg.TelemetrySettings.Enabled {
				failedSourceCounter.Add(ctx, count)
			}
		},
	}

	// Set up kafka producer metrics
	kafkaProducerSuccessCounter, err := meter.Int64Counter("catalog-crawler.kafka.send.success",
		metric.WithDescription("The number of messages that the kafka producer successfully sent"),
		metric.WithUnit("{messages}"))
	kafkaProducerFailCounter, err := meter.Int64Counter("catalog-crawler.kafka.send.fail",
		metric.WithDescription("The number of messages that the kafka producer could not send"),
		metric.WithUnit("{messages}"))
	if err != nil {
		slog.Error("failed to create telemetry counters for kafka producer.", slog.String("err", err.Error()))
		os.Exit(1)
	}
	metricsProvider.KafkaProducerMetrics = &KafkaProducerMetrics{
		SuccessfullySendMsgCnt: func(count int64) {
			if cfg.TelemetrySettings.Enabled {
				kafkaProducerSuccessCounter.Add(ctx, count)
			}
		},
		FailedSendMsgCnt: func(count int64) {
			if cfg.TelemetrySettings.Enabled {
				kafkaProducerFailCounter.Add(ctx, count)
			}
		},
	}

	// initialize metrics in DataDog for setup UI
	if cfg.TelemetrySettings.Enabled {
		metricsProvider.CrawlMetrics.PagesFetchedCnt(1)
		metricsProvider.CrawlMetrics.FetchErrorCnt(1)
		metricsProvider.CrawlMetrics.RecordsFoundCnt(1)
		metricsProvider.CrawlMetrics.RecordsEnrichedCnt(1)
		metricsProvider.CrawlMetrics.FailedSourceCnt(1)
		metricsProvider.KafkaProducerMetrics.SuccessfullySendMsgCnt(1)
		metricsProvider.KafkaProducerMetrics.FailedSendMsgCnt(1)
	}

	return metricsProvider
}

func newResource(cfg *config.Config) (*resource.Resource, error) {
	ecsResourceDetector := ecs.NewResourceDetector()
	ecsResource, err := ecsResourceDetector.Detect(context.Background())
	if err != nil {
		slog.Error("ecs detection failed", slog.String("err", err.Error()))
	}
	mergedResource, err := resource.Merge(ecsResource, resource.Default())
	if err != nil {
		slog.Error("failed to merge resources", slog.String("err", err.Error()))
	}
	keyValue, found := ecsResource.Set().Value("container.id")
	var serviceId string
	if found {
		serviceId = keyValue.AsString()
	} else {
		serviceId = uuid.New().String()
	}
	return resource.Merge(mergedResource,
		resource.NewWithAttributes(semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.DeploymentEnvironment(cfg.Env),
			semconv.ServiceInstanceID(serviceId),
		))
}

func newMetricExporter(ctx context.Context, cfg *config.TelemetryConfig) (sdkmetric.Exporter, error) {
	return otlpmetrichttp.New(ctx,
		otlpmetrichttp.WithEndpoint(cfg.CollectorUrl),
		otlpmetrichttp.WithInsecure())
}

func newMeterProvider(meterExporter sdkmetric.Exporter, resource resource.Resource) *sdkmetric.MeterProvider {
	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(meterExporter)),
		sdkmetric.WithResource(&resource),
	)
	return meterProvider
}
