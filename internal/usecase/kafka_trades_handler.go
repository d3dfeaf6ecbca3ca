package usecase

import (
	"context"
	"encoding/json"
	"time"

	"MarketPull/internal/domain/models"
	domrepo "MarketPull/internal/domain/repository"
	pkgkafka "MarketPull/pkg/kafka"
)

// KafkaTradesHandler consumes trade messages from Kafka and writes them to
// trade storage.
type KafkaTradesHandler struct {
	topic   string
	storage domrepo.TradeStorage
	metrics domrepo.Metrics
}

func NewKafkaTradesHandler(topic string, storage domrepo.TradeStorage, metrics domrepo.Metrics) *KafkaTradesHandler {
	return &KafkaTradesHandler{topic: topic, storage: storage, metrics: metrics}
}

func (h *KafkaTradesHandler) Topic() string { return h.topic }

// incoming message schema: {symbol, t, p, q}
func (h *KafkaTradesHandler) Handle(ctx context.Context, b []byte) error {
	var m struct {
		Symbol string  `json:"symbol"`
		T      int64   `json:"t"`
		P      float64 `json:"p"`
		Q      float64 `json:"q"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	if m.T > 1e11 { // ms
		m.T = m.T / 1000
	}
	// E2E latency from event time to now (approx)
	h.metrics.RecordLatency("trade_e2e_seconds", time.Since(time.Unix(m.T, 0)).Seconds())

	start := time.Now()
	err := h.storage.Store(ctx, &models.Trade{
		Symbol:    m.Symbol,
		Timestamp: m.T,
		Price:     m.P,
		Volume:    m.Q,
	})
	h.metrics.RecordLatency("trade_insert_seconds", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_store")
		return err
	}
	h.metrics.RecordMessageSent("clickhouse", m.Symbol)
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaTradesHandler)(nil)
