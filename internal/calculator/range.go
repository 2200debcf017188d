package calculator

import (
	"errors"
	"time"

	"gonum.org/v1/gonum/floats"

	"StockScope/internal/model"
)

// Calculate52WeekRange scans the points dated within one year before end and
// returns the lowest low and the highest high.
func Calculate52WeekRange(points []model.PriceHistoryPoint, end time.Time) (low, high float64, err error) {
	window := model.DateRange{End: end}.YearBefore()
	lows := make([]float64, 0, len(points))
	highs := make([]float64, 0, len(points))
	for _, p := range points {
		if !window.Contains(p.Date) {
			continue
		}
		lows = append(lows, p.Low)
		highs = append(highs, p.High)
	}
	if len(lows) == 0 {
		return 0, 0, errors.New("no price points in the trailing year")
	}
	return floats.Min(lows), floats.Max(highs), nil
}

// Calculate52WeekPosition returns where the current price sits within the 52-week range (0.0~1.0).
func Calculate52WeekPosition(current, high, low float64) (float64, error) {
	if high == low {
		return 0.5, nil
	}
	if high < low {
		return 0, errors.New("high must be >= low")
	}
	pos := (current - low) / (high - low)
	if pos < 0 {
		pos = 0
	}
	if pos > 1 {
		pos = 1
	}
	return pos, nil
}
