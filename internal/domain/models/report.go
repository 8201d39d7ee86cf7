package models

import "time"

// ReportParams is the validated input of a pair report.
type ReportParams struct {
	Pair     string
	Symbol1  string
	Symbol2  string
	Start    time.Time
	End      time.Time
	Interval string
	Signal   SignalParams
}

// PairReport joins the computed signal with the ledger trades of the pair.
type PairReport struct {
	Pair     string        `json:"pair"`
	Interval string        `json:"interval"`
	Start    time.Time     `json:"start"`
	End      time.Time     `json:"end"`
	Params   SignalParams  `json:"params"`
	Signal   []SignalRow   `json:"signal"`
	Trades   []TradeRecord `json:"trades"`
	Warnings []string      `json:"warnings,omitempty"`
}

// SignalSnapshot is the message published after each report.
type SignalSnapshot struct {
	Pair       string       `json:"pair"`
	Interval   string       `json:"interval"`
	Params     SignalParams `json:"params"`
	Rows       int          `json:"rows"`
	Last       *SignalRow   `json:"last,omitempty"`
	TradeCount int          `json:"trade_count"`
	ComputedAt time.Time    `json:"computed_at"`
}
