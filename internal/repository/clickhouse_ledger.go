package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"PairSpread/internal/domain/models"
	applogger "PairSpread/pkg/logger"
)

const tradeColumns = "symbol, entry_dt, exit_dt, position_size, entry_price_0, qty_0, entry_price_1, qty_1, " +
	"exit_type, profit_loss, fees, status, exit_price_0, exit_price_1"

const tradeColumnCount = 14

// insertChunk bounds the rows of one multi-row INSERT.
const insertChunk = 2000

// ClickHouseLedger stores and queries trades in a ClickHouse table.
type ClickHouseLedger struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

func NewClickHouseLedger(db *sql.DB, table string, l *applogger.Logger) *ClickHouseLedger {
	if l == nil {
		l = applogger.Nop()
	}
	return &ClickHouseLedger{db: db, table: table, l: l}
}

// SchemaStatements returns the idempotent DDL for the ledger table.
// ReplacingMergeTree collapses re-ingested duplicates of the same trade.
func SchemaStatements(table string) []string {
	return []string{fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s (
            symbol        LowCardinality(String),
            entry_dt      DateTime64(3, 'UTC'),
            exit_dt       DateTime64(3, 'UTC'),
            position_size Float64,
            entry_price_0 Float64,
            qty_0         Float64,
            entry_price_1 Float64,
            qty_1         Float64,
            exit_type     LowCardinality(String),
            profit_loss   Float64,
            fees          Float64,
            status        LowCardinality(String),
            exit_price_0  Float64,
            exit_price_1  Float64,
            inserted_at   DateTime64(3, 'UTC') DEFAULT now64(3)
        ) ENGINE = ReplacingMergeTree(inserted_at)
        ORDER BY (symbol, entry_dt, exit_dt)`, table)}
}

func (s *ClickHouseLedger) selectQuery() string {
	return fmt.Sprintf(`
        SELECT %s
        FROM %s FINAL
        WHERE symbol = ? AND entry_dt >= ? AND exit_dt <= ?
        ORDER BY entry_dt ASC`, tradeColumns, s.table)
}

func (s *ClickHouseLedger) LoadTrades(ctx context.Context, symbol string, start, end time.Time) ([]models.TradeRecord, error) {
	began := time.Now()
	rows, err := s.db.QueryContext(ctx, s.selectQuery(), symbol, start.UTC(), end.UTC())
	if err != nil {
		s.l.Error("clickhouse load_trades query error",
			applogger.String("table", s.table),
			applogger.String("symbol", symbol),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("load trades: %w", err)
	}
	defer rows.Close()

	out := make([]models.TradeRecord, 0)
	for rows.Next() {
		var t models.TradeRecord
		if err := rows.Scan(
			&t.Symbol, &t.EntryDT, &t.ExitDT, &t.PositionSize,
			&t.EntryPrice0, &t.Qty0, &t.EntryPrice1, &t.Qty1,
			&t.ExitType, &t.ProfitLoss, &t.Fees, &t.Status,
			&t.ExitPrice0, &t.ExitPrice1,
		); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		t.EntryDT = t.EntryDT.UTC()
		t.ExitDT = t.ExitDT.UTC()
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	s.l.Debug("clickhouse load_trades ok",
		applogger.String("symbol", symbol),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(began)),
	)
	return out, nil
}

// StoreBatch inserts trades with multi-row VALUES statements.
func (s *ClickHouseLedger) StoreBatch(ctx context.Context, trades []models.TradeRecord) error {
	for start := 0; start < len(trades); start += insertChunk {
		end := start + insertChunk
		if end > len(trades) {
			end = len(trades)
		}
		q, args := insertStatement(s.table, trades[start:end])
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			s.l.Error("clickhouse store_trades error",
				applogger.String("table", s.table),
				applogger.Int("rows", end-start),
				applogger.Error(err),
			)
			return fmt.Errorf("store trades: %w", err)
		}
	}
	return nil
}

func insertStatement(table string, trades []models.TradeRecord) (string, []interface{}) {
	placeholder := "(" + strings.TrimSuffix(strings.Repeat("?, ", tradeColumnCount), ", ") + ")"
	values := make([]string, len(trades))
	args := make([]interface{}, 0, len(trades)*tradeColumnCount)
	for i, t := range trades {
		values[i] = placeholder
		args = append(args,
			t.Symbol, t.EntryDT.UTC(), t.ExitDT.UTC(), t.PositionSize,
			t.EntryPrice0, t.Qty0, t.EntryPrice1, t.Qty1,
			t.ExitType, t.ProfitLoss, t.Fees, t.Status,
			t.ExitPrice0, t.ExitPrice1,
		)
	}
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", table, tradeColumns, strings.Join(values, ", "))
	return q, args
}

func (s *ClickHouseLedger) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
