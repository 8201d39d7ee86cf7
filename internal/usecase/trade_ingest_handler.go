package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"PairSpread/internal/domain/models"
	domrepo "PairSpread/internal/domain/repository"
)

var errInvalidTrade = errors.New("invalid trade")

// TradeIngestHandler consumes ledger trades from Kafka and writes them through
// a TradeWriter. A message holds one trade object or an array of them.
type TradeIngestHandler struct {
	topic   string
	writer  domrepo.TradeWriter
	metrics domrepo.Metrics
}

func NewTradeIngestHandler(topic string, writer domrepo.TradeWriter, metrics domrepo.Metrics) *TradeIngestHandler {
	if metrics == nil {
		metrics = domrepo.NopMetrics{}
	}
	return &TradeIngestHandler{topic: topic, writer: writer, metrics: metrics}
}

func (h *TradeIngestHandler) Topic() string { return h.topic }

func (h *TradeIngestHandler) Handle(ctx context.Context, b []byte) error {
	trades, err := decodeTrades(b)
	if err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	for i := range trades {
		if err := validateTrade(&trades[i]); err != nil {
			h.metrics.RecordError("consumer_invalid")
			return fmt.Errorf("trade %d: %w", i, err)
		}
	}
	if len(trades) == 0 {
		return nil
	}

	start := time.Now()
	err = h.writer.StoreBatch(ctx, trades)
	h.metrics.RecordLatency("ledger_insert", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_store")
		return err
	}
	h.metrics.RecordMessageSent("clickhouse", h.topic)
	return nil
}

func decodeTrades(b []byte) ([]models.TradeRecord, error) {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '[' {
		var out []models.TradeRecord
		if err := json.Unmarshal(b, &out); err != nil {
			return nil, fmt.Errorf("decode trades: %w", err)
		}
		return out, nil
	}
	var t models.TradeRecord
	if err := json.Unmarshal(b, &t); err != nil {
		return nil, fmt.Errorf("decode trade: %w", err)
	}
	return []models.TradeRecord{t}, nil
}

func validateTrade(t *models.TradeRecord) error {
	if _, _, err := SplitPair(t.Symbol); err != nil {
		return fmt.Errorf("%w: %v", errInvalidTrade, err)
	}
	if t.EntryDT.IsZero() || t.ExitDT.IsZero() {
		return fmt.Errorf("%w: entry_dt and exit_dt are required", errInvalidTrade)
	}
	if t.ExitDT.Before(t.EntryDT) {
		return fmt.Errorf("%w: exit_dt before entry_dt", errInvalidTrade)
	}
	t.EntryDT = t.EntryDT.UTC()
	t.ExitDT = t.ExitDT.UTC()
	return nil
}
