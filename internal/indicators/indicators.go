// Package indicators provides pure numerical transforms over OHLCV candle
// series. Every function is stateless and deterministic, and returns a
// neutral sentinel instead of an error when the series is too short: callers
// treat sentinel values as "do not trade", never as a failure.
package indicators

import (
	"math"

	"spotbot/internal/domain"
)

// Bands holds the three Bollinger Band lines.
type Bands struct {
	Upper  float64
	Middle float64
	Lower  float64
}

// MACDResult holds the MACD line, its signal line and the histogram.
type MACDResult struct {
	MACDLine   float64
	SignalLine float64
	Histogram  float64
}

// SMA returns the mean of closes over the last period bars, or 0 when fewer
// than period bars are supplied.
func SMA(klines []*domain.Kline, period int) float64 {
	if len(klines) < period || period <= 0 {
		return 0
	}
	sum := 0.0
	for i := len(klines) - period; i < len(klines); i++ {
		sum += klines[i].Close
	}
	return sum / float64(period)
}

// EMA returns the exponential moving average of closes. It is seeded with the
// first close of the supplied window and applies the recurrence
// ema = (close - ema) * 2/(period+1) + ema left to right, so the caller
// controls sensitivity through how much history it passes in.
func EMA(klines []*domain.Kline, period int) float64 {
	if len(klines) == 0 || period <= 0 {
		return 0
	}
	multiplier := 2.0 / float64(period+1)
	ema := klines[0].Close
	for i := 1; i < len(klines); i++ {
		ema = (klines[i].Close-ema)*multiplier + ema
	}
	return ema
}

// emaSeries applies the same recurrence to a plain float series.
func emaSeries(values []float64, period int) float64 {
	if len(values) == 0 || period <= 0 {
		return 0
	}
	multiplier := 2.0 / float64(period+1)
	ema := values[0]
	for i := 1; i < len(values); i++ {
		ema = (values[i]-ema)*multiplier + ema
	}
	return ema
}

// RSI returns the relative strength index over the last period close-to-close
// transitions: average gain vs average loss, range [0,100]. Returns 100 when
// there are no losses and the 50.0 neutral sentinel when fewer than period+1
// bars are supplied.
func RSI(klines []*domain.Kline, period int) float64 {
	if len(klines) < period+1 || period <= 0 {
		return 50.0
	}
	gain, loss := 0.0, 0.0
	for i := len(klines) - period; i < len(klines); i++ {
		diff := klines[i].Close - klines[i-1].Close
		if diff > 0 {
			gain += diff
		} else {
			loss += math.Abs(diff)
		}
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// BollingerBands returns {SMA + k*sigma, SMA, SMA - k*sigma} where sigma is
// the population standard deviation of closes over the window, or the zero
// sentinel when fewer than period bars are supplied.
func BollingerBands(klines []*domain.Kline, period int, k float64) Bands {
	if len(klines) < period || period <= 0 {
		return Bands{}
	}
	sum := 0.0
	for i := len(klines) - period; i < len(klines); i++ {
		sum += klines[i].Close
	}
	sma := sum / float64(period)
	variance := 0.0
	for i := len(klines) - period; i < len(klines); i++ {
		d := klines[i].Close - sma
		variance += d * d
	}
	sd := math.Sqrt(variance / float64(period))
	return Bands{Upper: sma + k*sd, Middle: sma, Lower: sma - k*sd}
}

// ATR returns a fixed-window mean of True Range over the supplied series.
// The accumulation starts at the second bar (high-low only, no previous
// close) and the sum is divided by len-1; this is not Wilder smoothing.
// Returns 0 when fewer than period+1 bars are supplied.
func ATR(klines []*domain.Kline, period int) float64 {
	if len(klines) < period+1 || period <= 0 {
		return 0
	}

	sum := klines[1].High - klines[1].Low
	for i := 2; i < len(klines); i++ {
		high := klines[i].High
		low := klines[i].Low
		prevClose := klines[i-1].Close

		tr := math.Max(high-low, math.Max(math.Abs(high-prevClose), math.Abs(low-prevClose)))
		sum += tr
	}
	return sum / float64(len(klines)-1)
}

// AverageATR returns the mean of expanding-window ATR values over the series:
// for each bar i the ATR of klines[:i+1] is computed with the given period
// and the results are averaged. Used on daily candles for volatility context.
func AverageATR(klines []*domain.Kline, period int) float64 {
	if len(klines) == 0 {
		return 0
	}
	sum := 0.0
	for i := range klines {
		sum += ATR(klines[:i+1], period)
	}
	return sum / float64(len(klines))
}

// MACD returns the MACD line (fast EMA - slow EMA over the full window), the
// signal line (EMA of a reconstructed MACD-line series) and the histogram.
// Returns the zero sentinel when fewer than max(fast,slow)+signal bars are
// supplied.
//
// The signal line recomputes one EMA pair per trailing window to rebuild the
// MACD series before smoothing, which is O(n*slow) on purpose: the window
// seeding makes a streaming shortcut produce different values.
func MACD(klines []*domain.Kline, fast, slow, signal int) MACDResult {
	need := fast
	if slow > need {
		need = slow
	}
	if len(klines) < need+signal || fast <= 0 || slow <= 0 || signal <= 0 {
		return MACDResult{}
	}

	macdLine := EMA(klines, fast) - EMA(klines, slow)
	signalLine := macdSignal(klines, fast, slow, signal)

	return MACDResult{
		MACDLine:   macdLine,
		SignalLine: signalLine,
		Histogram:  macdLine - signalLine,
	}
}

func macdSignal(klines []*domain.Kline, fast, slow, signal int) float64 {
	if len(klines) < slow+signal {
		return 0
	}
	series := make([]float64, 0, len(klines)-slow)
	for i := slow; i < len(klines); i++ {
		emaFast := EMA(klines[i-fast+1:i+1], fast)
		emaSlow := EMA(klines[i-slow+1:i+1], slow)
		series = append(series, emaFast-emaSlow)
	}
	return emaSeries(series, signal)
}

// ADX returns the instantaneous DX over the last period transitions:
// directional movement and true range are accumulated over the window,
// DI+/DI- are derived from them and DX = |DI+ - DI-| / (DI+ + DI-) * 100.
// The DX is not further smoothed into a classic ADX series. Returns 0 when
// fewer than period+1 bars are supplied or when the window has no range.
func ADX(klines []*domain.Kline, period int) float64 {
	if len(klines) < period+1 || period <= 0 {
		return 0
	}

	var plusDM, minusDM, trSum float64
	for i := len(klines) - period; i < len(klines); i++ {
		cur, prev := klines[i], klines[i-1]

		upMove := cur.High - prev.High
		downMove := prev.Low - cur.Low
		if upMove > downMove && upMove > 0 {
			plusDM += upMove
		}
		if downMove > upMove && downMove > 0 {
			minusDM += downMove
		}

		tr := math.Max(cur.High-cur.Low, math.Max(math.Abs(cur.High-prev.Close), math.Abs(cur.Low-prev.Close)))
		trSum += tr
	}
	if trSum == 0 {
		return 0
	}

	plusDI := plusDM / trSum * 100
	minusDI := minusDM / trSum * 100
	den := plusDI + minusDI
	if den == 0 {
		return 0
	}
	return math.Abs(plusDI-minusDI) / den * 100
}

// VWAP returns the volume-weighted mean of typical price (high+low+close)/3
// over the last period bars, or 0 when fewer than period bars are supplied or
// the window carries no volume.
func VWAP(klines []*domain.Kline, period int) float64 {
	if len(klines) < period || period <= 0 {
		return 0
	}
	var pvSum, volSum float64
	for i := len(klines) - period; i < len(klines); i++ {
		k := klines[i]
		typical := (k.High + k.Low + k.Close) / 3
		pvSum += typical * k.Volume
		volSum += k.Volume
	}
	if volSum == 0 {
		return 0
	}
	return pvSum / volSum
}
