package repository

import (
	"context"
	"strconv"
	"time"

	"MarketPull/internal/domain/models"
	domrepo "MarketPull/internal/domain/repository"
	pkgkafka "MarketPull/pkg/kafka"

	"github.com/segmentio/kafka-go"
)

// KafkaPublisher implements Publisher for Kafka. Trades and full market
// payloads go to separate topics, both keyed by symbol so per-symbol
// ordering survives partitioning.
type KafkaPublisher struct {
	producer     *pkgkafka.Producer
	tradeTopic   string
	payloadTopic string
}

func NewKafkaPublisher(producer *pkgkafka.Producer, tradeTopic, payloadTopic string) domrepo.Publisher {
	return &KafkaPublisher{producer: producer, tradeTopic: tradeTopic, payloadTopic: payloadTopic}
}

func (p *KafkaPublisher) PublishTrade(ctx context.Context, t *models.Trade) error {
	return p.producer.Publish(ctx, p.tradeTopic, []byte(t.Symbol), map[string]interface{}{
		"symbol": t.Symbol,
		"t":      t.Timestamp,
		"p":      t.Price,
		"q":      t.Volume,
	})
}

func (p *KafkaPublisher) PublishTradeBatch(ctx context.Context, trades []*models.Trade) error {
	if len(trades) == 0 {
		return nil
	}
	// One trace id per fetch cycle so the consumer side can correlate a batch
	trace := strconv.FormatInt(time.Now().UnixNano(), 36)
	msgs := make([]pkgkafka.Message, len(trades))
	for i, t := range trades {
		msgs[i] = pkgkafka.Message{
			Key: []byte(t.Symbol),
			Value: map[string]interface{}{
				"symbol": t.Symbol,
				"t":      t.Timestamp,
				"p":      t.Price,
				"q":      t.Volume,
			},
			Headers: []kafka.Header{pkgkafka.TraceHeader(trace)},
		}
	}
	return p.producer.PublishBatch(ctx, p.tradeTopic, msgs)
}

func (p *KafkaPublisher) PublishPayload(ctx context.Context, payload *models.MarketPayload) error {
	return p.producer.Publish(ctx, p.payloadTopic, []byte(payload.Symbol), payload)
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// PayloadPublisherSink adapts a Publisher into an ingestion sink.
type PayloadPublisherSink struct {
	pub domrepo.Publisher
}

func NewPayloadPublisherSink(pub domrepo.Publisher) *PayloadPublisherSink {
	return &PayloadPublisherSink{pub: pub}
}

func (s *PayloadPublisherSink) Name() string { return "kafka" }

func (s *PayloadPublisherSink) Write(ctx context.Context, p *models.MarketPayload) error {
	return s.pub.PublishPayload(ctx, p)
}
