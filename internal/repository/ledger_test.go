package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"PairSpread/internal/domain/models"
)

const tradesheet = `symbol,entry_dt,exit_dt,position_size,entry_price_0,qty_0,entry_price_1,qty_1,exit_type,profit_loss,fees,status,exit_price_0,exit_price_1
BTCUSDT_ETHUSDT,2024-01-02 04:00:00,2024-01-05 08:00:00,1000,42000.5,0.01,2200.1,0.2,tp,12.5,0.8,closed,42500,2190
BTCUSDT_ETHUSDT,2023-12-30 00:00:00,2024-01-03 00:00:00,1000,41000,0.01,2100,0.2,sl,-5,0.8,closed,40900,2120
BTCUSDT_ETHUSDT,2024-01-20 00:00:00,2024-02-02 00:00:00,1000,43000,0.01,2300,0.2,tp,3,0.8,closed,43100,2290
ETHUSDT_BTCUSDT,2024-01-02 00:00:00,2024-01-04 00:00:00,1000,1,1,1,1,tp,1,0,closed,1,1
BTCUSDT_ETHUSDT,2024-01-10T00:00:00Z,2024-02-01,500,1,1,1,1,time,0,0,closed,,
BTCUSDT_ETHUSDT,2024-01-15 00:00:00,,500,1,1,1,1,,0,0,open,,
`

var (
	jan1 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	feb1 = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
)

func writeSheet(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tradesheet.csv")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write sheet: %v", err)
	}
	return path
}

func TestCSVLedgerFilters(t *testing.T) {
	l, err := NewCSVLedger(writeSheet(t, tradesheet))
	if err != nil {
		t.Fatalf("NewCSVLedger: %v", err)
	}
	trades, err := l.LoadTrades(context.Background(), "BTCUSDT_ETHUSDT", jan1, feb1)
	if err != nil {
		t.Fatalf("LoadTrades: %v", err)
	}
	// row 1 matches; row 2 enters before start; row 3 exits after end;
	// row 4 is the reversed pair; row 5 exits exactly at end; row 6 is open
	if len(trades) != 2 {
		t.Fatalf("trades = %d, want 2: %+v", len(trades), trades)
	}
	first := trades[0]
	if first.EntryPrice0 != 42000.5 || first.Qty1 != 0.2 || first.ExitType != "tp" || first.Status != "closed" {
		t.Errorf("first = %+v", first)
	}
	if want := time.Date(2024, 1, 2, 4, 0, 0, 0, time.UTC); !first.EntryDT.Equal(want) {
		t.Errorf("entry_dt = %v, want %v", first.EntryDT, want)
	}
	if !trades[1].ExitDT.Equal(feb1) || trades[1].ExitPrice0 != 0 {
		t.Errorf("second = %+v", trades[1])
	}
}

func TestCSVLedgerNoMatchIsEmptyNotNil(t *testing.T) {
	l, err := NewCSVLedger(writeSheet(t, tradesheet))
	if err != nil {
		t.Fatalf("NewCSVLedger: %v", err)
	}
	trades, err := l.LoadTrades(context.Background(), "SOLUSDT_ADAUSDT", jan1, feb1)
	if err != nil {
		t.Fatalf("LoadTrades: %v", err)
	}
	if trades == nil || len(trades) != 0 {
		t.Errorf("trades = %#v, want empty non-nil slice", trades)
	}
}

func TestCSVLedgerRejectsDirectory(t *testing.T) {
	if _, err := NewCSVLedger(t.TempDir()); !errors.Is(err, ErrLedgerNotFile) {
		t.Errorf("err = %v, want ErrLedgerNotFile", err)
	}
	if _, err := NewCSVLedger(filepath.Join(t.TempDir(), "missing.csv")); !errors.Is(err, ErrLedgerNotFile) {
		t.Errorf("err = %v, want ErrLedgerNotFile", err)
	}
}

func TestCSVLedgerBadRows(t *testing.T) {
	body := "symbol,entry_dt,exit_dt,fees\nA_B,yesterday,2024-01-02,0\n"
	l, err := NewCSVLedger(writeSheet(t, body))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := l.LoadTrades(context.Background(), "A_B", jan1, feb1); err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Errorf("err = %v, want line-numbered parse error", err)
	}

	l, _ = NewCSVLedger(writeSheet(t, "symbol,entry_dt\nA_B,2024-01-02\n"))
	if _, err := l.LoadTrades(context.Background(), "A_B", jan1, feb1); err == nil {
		t.Error("expected missing column error")
	}
}

func TestInsertStatement(t *testing.T) {
	trades := []models.TradeRecord{{Symbol: "A_B"}, {Symbol: "C_D"}}
	q, args := insertStatement("trades", trades)
	if len(args) != 2*tradeColumnCount {
		t.Fatalf("args = %d", len(args))
	}
	if strings.Count(q, "?") != len(args) {
		t.Errorf("placeholders = %d, args = %d", strings.Count(q, "?"), len(args))
	}
	if !strings.HasPrefix(q, "INSERT INTO trades (symbol, entry_dt") {
		t.Errorf("query = %s", q)
	}
	if got := len(strings.Split(tradeColumns, ",")); got != tradeColumnCount {
		t.Errorf("columns = %d, want %d", got, tradeColumnCount)
	}
}

type recordingProducer struct {
	topic string
	key   []byte
	value interface{}
}

func (p *recordingProducer) Publish(_ context.Context, topic string, key []byte, value interface{}) error {
	p.topic, p.key, p.value = topic, key, value
	return nil
}

func TestKafkaSignalPublisher(t *testing.T) {
	prod := &recordingProducer{}
	pub := NewKafkaSignalPublisher(prod, "pair-signals")
	snap := models.SignalSnapshot{Pair: "BTCUSDT_ETHUSDT", Rows: 10}
	if err := pub.PublishSnapshot(context.Background(), snap); err != nil {
		t.Fatal(err)
	}
	if prod.topic != "pair-signals" || string(prod.key) != "BTCUSDT_ETHUSDT" {
		t.Errorf("topic/key = %s/%s", prod.topic, prod.key)
	}
	if got, ok := prod.value.(models.SignalSnapshot); !ok || got.Rows != 10 {
		t.Errorf("value = %#v", prod.value)
	}
}
