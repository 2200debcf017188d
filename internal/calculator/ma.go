package calculator

import (
	"errors"
	"time"

	"github.com/markcheno/go-talib"

	"StockScope/internal/model"
)

// MAPoint is one value of a moving-average overlay.
type MAPoint struct {
	Date  time.Time
	Value float64
}

// MovingAverage returns the simple moving average of adjusted closes over the
// given window. The first window-1 days have no value and are omitted.
func MovingAverage(points []model.PriceHistoryPoint, window int) ([]MAPoint, error) {
	if window <= 0 {
		return nil, errors.New("window must be positive")
	}
	if len(points) < window {
		return nil, errors.New("not enough data for moving average")
	}
	sma := talib.Sma(extractAdjCloses(points), window)
	out := make([]MAPoint, 0, len(points)-window+1)
	for i := window - 1; i < len(points); i++ {
		out = append(out, MAPoint{Date: points[i].Date, Value: sma[i]})
	}
	return out, nil
}

func extractAdjCloses(points []model.PriceHistoryPoint) []float64 {
	closes := make([]float64, len(points))
	for i, p := range points {
		closes[i] = p.AdjClose
	}
	return closes
}
