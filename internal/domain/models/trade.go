package models

import "time"

// TradeRecord is a realized pair trade from the ledger. Leg 0 is the first
// symbol of the pair and leg 1 the second.
type TradeRecord struct {
	Symbol       string    `json:"symbol" ch:"symbol"`
	EntryDT      time.Time `json:"entry_dt" ch:"entry_dt"`
	ExitDT       time.Time `json:"exit_dt" ch:"exit_dt"`
	PositionSize float64   `json:"position_size" ch:"position_size"`
	EntryPrice0  float64   `json:"entry_price_0" ch:"entry_price_0"`
	Qty0         float64   `json:"qty_0" ch:"qty_0"`
	EntryPrice1  float64   `json:"entry_price_1" ch:"entry_price_1"`
	Qty1         float64   `json:"qty_1" ch:"qty_1"`
	ExitType     string    `json:"exit_type" ch:"exit_type"`
	ProfitLoss   float64   `json:"profit_loss" ch:"profit_loss"`
	Fees         float64   `json:"fees" ch:"fees"`
	Status       string    `json:"status" ch:"status"`
	ExitPrice0   float64   `json:"exit_price_0" ch:"exit_price_0"`
	ExitPrice1   float64   `json:"exit_price_1" ch:"exit_price_1"`
}

// Within reports whether the trade belongs to symbol and lies inside [start, end]:
// entry at or after start and exit at or before end.
func (t TradeRecord) Within(symbol string, start, end time.Time) bool {
	return t.Symbol == symbol && !t.EntryDT.Before(start) && !t.ExitDT.After(end)
}
