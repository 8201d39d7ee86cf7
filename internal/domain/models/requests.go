package models

// PairReportRequest is bound from the query string of the report endpoints.
// Numeric knobs stay strings so that an explicit "0" is distinguishable from
// an absent parameter; absent ones take the configured signal defaults.
type PairReportRequest struct {
	Symbol    string `query:"symbol" json:"symbol" validate:"required,pair"`
	StartDate string `query:"start_date" json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `query:"end_date" json:"end_date" validate:"required,datetime=2006-01-02"`
	Interval  string `query:"interval" json:"interval" validate:"omitempty,oneof=1m 3m 5m 15m 30m 1h 2h 4h 6h 8h 12h 1d 3d 1w 1M"`
	Alpha     string `query:"alpha" json:"alpha"`
	Beta      string `query:"beta" json:"beta"`
	Window    string `query:"window" json:"window" validate:"omitempty,number"`
	EntryZ    string `query:"entry_z" json:"entry_z"`
	ExitZ     string `query:"exit_z" json:"exit_z"`
}
