package broker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/IliaW/catalog-crawler/config"
	"github.com/IliaW/catalog-crawler/internal/model"
	"github.com/IliaW/catalog-crawler/internal/telemetry"
	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/compress/lz4"
)

// KafkaIndexSink publishes freshly upserted records as index tasks for the
// downstream search indexer. Best-effort: a write failure is logged and
// counted, never propagated to the crawl.
type KafkaIndexSink struct {
	kafkaWriter *kafka.Writer
	metrics     *telemetry.KafkaProducerMetrics
	cfg         *config.ProducerConfig
}

func NewKafkaIndexSink(metrics *telemetry.KafkaProducerMetrics, cfg *config.ProducerConfig) *KafkaIndexSink {
	kafkaWriter := kafka.Writer{
		Addr:         kafka.TCP(cfg.Addr...),
		Topic:        cfg.IndexTopicName,
		Balancer:     &kafka.Hash{},
		MaxAttempts:  cfg.MaxAttempts,
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: kafka.RequiredAcks(cfg.RequiredAsks),
		Async:        cfg.Async,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				slog.Error("failed to send messages to kafka.", slog.String("err", err.Error()))
			}
		},
		Compression: kafka.Compression(new(lz4.Codec).Code()),
	}
	return &KafkaIndexSink{
		kafkaWriter: &kafkaWriter,
		metrics:     metrics,
		cfg:         cfg,
	}
}

// Index publishes one message per record, keyed by record id, and returns how
// many were handed to the broker.
func (s *KafkaIndexSink) Index(records []*model.CatalogRecord) int {
	batch := make([]kafka.Message, 0, len(records))
	for _, rec := range records {
		body, err := json.Marshal(rec)
		if err != nil {
			slog.Error("marshaling error.", slog.String("err", err.Error()),
				slog.String("record", rec.ID))
			s.metrics.FailedSendMsgCnt(1)
			continue
		}
		batch = append(batch, kafka.Message{
			Key:   []byte(rec.ID),
			Value: body,
		})
	}
	if len(batch) == 0 {
		return 0
	}

	err := s.kafkaWriter.WriteMessages(context.Background(), batch...)
	if err != nil {
		slog.Error("failed to send index tasks to kafka.", slog.String("err", err.Error()))
		s.metrics.FailedSendMsgCnt(int64(len(batch)))
		return 0
	}
	s.metrics.SuccessfullySendMsgCnt(int64(len(batch)))
	slog.Debug("index tasks sent to kafka.", slog.Int("batch length", len(batch)))

	return len(batch)
}

func (s *KafkaIndexSink) Close() {
	err := s.kafkaWriter.Close()
	if err != nil {
		slog.Error("failed to close kafka writer.", slog.String("err", err.Error()))
	}
}

type deadLetter struct {
	Service string `json:"service"`
	Source  string `json:"source"`
	Error   string `json:"error"`
	Time    int64  `json:"time"`
}

// KafkaDLQClient records sources whose pipeline failed permanently.
type KafkaDLQClient struct {
	serviceName string
	kafkaWriter *kafka.Writer
}

func NewKafkaDLQ(serviceName string, cfg *config.ProducerConfig) *KafkaDLQClient {
	return &KafkaDLQClient{
		serviceName: serviceName,
		kafkaWriter: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Addr...),
			Topic:        cfg.DeadLetterTopicName,
			Balancer:     &kafka.Hash{},
			MaxAttempts:  cfg.MaxAttempts,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			RequiredAcks: kafka.RequiredAcks(cfg.RequiredAsks),
		},
	}
}

func (c *KafkaDLQClient) SendSourceToDLQ(sourceName string, cause error) {
	body, err := json.Marshal(&deadLetter{
		Service: c.serviceName,
		Source:  sourceName,
		Error:   cause.Error(),
		Time:    time.Now().Unix(),
	})
	if err != nil {
		slog.Error("marshaling error.", slog.String("err", err.Error()))
		return
	}
	err = c.kafkaWriter.WriteMessages(context.Background(), kafka.Message{
		Key:   []byte(sourceName),
		Value: body,
	})
	if err != nil {
		slog.Error("failed to send source to DLQ.", slog.String("source", sourceName),
			slog.String("err", err.Error()))
		return
	}
	slog.Debug("source sent to DLQ.", slog.String("source", sourceName))
}

func (c *KafkaDLQClient) Close() {
	err := c.kafkaWriter.Close()
	if err != nil {
		slog.Error("failed to close kafka DLQ writer.", slog.String("err", err.Error()))
	}
}
