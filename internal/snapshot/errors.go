package snapshot

import (
	"fmt"

	"StockScope/internal/model"
)

// ErrorKind classifies a per-ticker problem.
type ErrorKind string

const (
	KindLookupFailure       ErrorKind = "lookup_failure"
	KindInsufficientHistory ErrorKind = "insufficient_history"
	KindEmptyHistory        ErrorKind = "empty_history"
	KindMalformedInput      ErrorKind = "malformed_input"
)

// SnapshotError describes a problem with one requested ticker. When Field is
// empty the ticker was dropped from the result; otherwise only that field or
// data kind is missing.
type SnapshotError struct {
	Ticker model.TickerSymbol `json:"ticker"`
	Index  int                `json:"index"`
	Kind   ErrorKind          `json:"kind"`
	Field  string             `json:"field,omitempty"`
	Err    error              `json:"-"`
}

func (e *SnapshotError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s %s: %s: %v", e.Ticker, e.Field, e.Kind, e.Err)
	}
	return fmt.Sprintf("error fetching data for %s: %v", e.Ticker, e.Err)
}

func (e *SnapshotError) Unwrap() error { return e.Err }

// Message is the user-facing text of the error.
func (e *SnapshotError) Message() string {
	switch e.Kind {
	case KindInsufficientHistory:
		return fmt.Sprintf("%s: revenue growth unavailable (fewer than two statement periods)", e.Ticker)
	case KindEmptyHistory:
		return fmt.Sprintf("%s: no price data in the selected range", e.Ticker)
	}
	return e.Error()
}
