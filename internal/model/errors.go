package model

import "errors"

var (
	// ErrNotFound means the provider cannot resolve the ticker or has no data of the requested kind.
	ErrNotFound = errors.New("ticker not found")
	// ErrUnavailable means the provider could not be reached or answered with a server error.
	ErrUnavailable = errors.New("provider unavailable")
	// ErrMalformedInput means the ticker list parsed to zero entries.
	ErrMalformedInput = errors.New("no ticker symbols given")
	// ErrInsufficientHistory means fewer than two statement periods carry revenue.
	ErrInsufficientHistory = errors.New("insufficient statement history")
	// ErrProviderUnavailable is returned once for a run in which every ticker hit ErrUnavailable.
	ErrProviderUnavailable = errors.New("market data provider unreachable")
)
