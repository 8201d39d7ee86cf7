package repository

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"PairSpread/internal/domain/models"
	"PairSpread/pkg/util"
)

// ErrLedgerNotFile is returned when the ledger path is missing or not a regular file.
var ErrLedgerNotFile = errors.New("trade ledger path is not a regular file")

var requiredColumns = []string{"symbol", "entry_dt", "exit_dt"}

// CSVLedger reads trades from a tradesheet CSV with a header row. The file is
// re-read on every query so edits are picked up without a restart.
type CSVLedger struct {
	path string
}

// NewCSVLedger validates that path is a regular file.
func NewCSVLedger(path string) (*CSVLedger, error) {
	l := &CSVLedger{path: path}
	if err := l.Health(context.Background()); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *CSVLedger) Health(context.Context) error {
	fi, err := os.Stat(l.path)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrLedgerNotFile, l.path, err)
	}
	if !fi.Mode().IsRegular() {
		return fmt.Errorf("%w: %s", ErrLedgerNotFile, l.path)
	}
	return nil
}

// LoadTrades keeps rows whose symbol equals the full pair string, entry_dt >= start
// and exit_dt <= end. Rows with an empty entry_dt or exit_dt never match.
func (l *CSVLedger) LoadTrades(ctx context.Context, symbol string, start, end time.Time) ([]models.TradeRecord, error) {
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return []models.TradeRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read ledger header: %w", err)
	}
	cols := indexColumns(header)
	for _, c := range requiredColumns {
		if _, ok := cols[c]; !ok {
			return nil, fmt.Errorf("ledger missing column %q", c)
		}
	}

	out := make([]models.TradeRecord, 0)
	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read ledger line %d: %w", line, err)
		}

		row := csvRow{cols: cols, rec: rec}
		if row.str("symbol") != symbol {
			continue
		}
		t, ok, err := row.trade()
		if err != nil {
			return nil, fmt.Errorf("ledger line %d: %w", line, err)
		}
		if ok && t.Within(symbol, start, end) {
			out = append(out, t)
		}
	}
	return out, nil
}

func indexColumns(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		cols[h] = i
	}
	return cols
}

type csvRow struct {
	cols map[string]int
	rec  []string
}

func (r csvRow) str(col string) string {
	i, ok := r.cols[col]
	if !ok || i >= len(r.rec) {
		return ""
	}
	return strings.TrimSpace(r.rec[i])
}

// num parses an optional numeric cell; empty cells read as zero.
func (r csvRow) num(col string) (float64, error) {
	s := r.str(col)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("column %s: %w", col, err)
	}
	return v, nil
}

func (r csvRow) time(col string) (time.Time, bool, error) {
	s := r.str(col)
	if s == "" {
		return time.Time{}, false, nil
	}
	t, ok := util.ParseTime(s)
	if !ok {
		return time.Time{}, false, fmt.Errorf("column %s: unparsable time %q", col, s)
	}
	return t, true, nil
}

// trade converts the row; ok is false when either date is empty.
func (r csvRow) trade() (models.TradeRecord, bool, error) {
	t := models.TradeRecord{
		Symbol:   r.str("symbol"),
		ExitType: r.str("exit_type"),
		Status:   r.str("status"),
	}

	var okEntry, okExit bool
	var err error
	if t.EntryDT, okEntry, err = r.time("entry_dt"); err != nil {
		return t, false, err
	}
	if t.ExitDT, okExit, err = r.time("exit_dt"); err != nil {
		return t, false, err
	}

	nums := []struct {
		col string
		dst *float64
	}{
		{"position_size", &t.PositionSize},
		{"entry_price_0", &t.EntryPrice0},
		{"qty_0", &t.Qty0},
		{"entry_price_1", &t.EntryPrice1},
		{"qty_1", &t.Qty1},
		{"profit_loss", &t.ProfitLoss},
		{"fees", &t.Fees},
		{"exit_price_0", &t.ExitPrice0},
		{"exit_price_1", &t.ExitPrice1},
	}
	for _, n := range nums {
		if *n.dst, err = r.num(n.col); err != nil {
			return t, false, err
		}
	}
	return t, okEntry && okExit, nil
}
