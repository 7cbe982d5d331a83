// Package bars holds the daily-bar arithmetic for the moving-average signal.
package bars

import (
	"errors"

	"exitbot/internal/broker"
)

var ErrInsufficientData = errors.New("not enough bars for moving average")

// Closes extracts the close series in bar order.
func Closes(series []broker.Bar) []float64 {
	out := make([]float64, len(series))
	for i, b := range series {
		out[i] = b.Close
	}
	return out
}

// SMA returns the arithmetic mean of the trailing window values.
func SMA(values []float64, window int) (float64, error) {
	if window <= 0 {
		return 0, errors.New("window must be positive")
	}
	if len(values) < window {
		return 0, ErrInsufficientData
	}
	sum := 0.0
	for _, v := range values[len(values)-window:] {
		sum += v
	}
	return sum / float64(window), nil
}

// CloseAndSMA returns the last close and the trailing moving average of the
// series, or ErrInsufficientData when fewer than period bars are available.
func CloseAndSMA(series []broker.Bar, period int) (lastClose, ma float64, err error) {
	if len(series) == 0 {
		return 0, 0, ErrInsufficientData
	}
	closes := Closes(series)
	ma, err = SMA(closes, period)
	if err != nil {
		return 0, 0, err
	}
	return closes[len(closes)-1], ma, nil
}
