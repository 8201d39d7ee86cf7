package spread

import (
	"errors"
	"fmt"
	"time"
)

// ErrEmptyAlignment means the two series share no timestamp.
var ErrEmptyAlignment = errors.New("series have no timestamps in common")

// InvalidPriceError reports a price that cannot be log-transformed.
type InvalidPriceError struct {
	Series    int // 1 or 2
	Index     int
	Timestamp time.Time
	Price     float64
}

func (e *InvalidPriceError) Error() string {
	return fmt.Sprintf("series %d: invalid price %v at index %d (%s)",
		e.Series, e.Price, e.Index, e.Timestamp.UTC().Format(time.RFC3339))
}
