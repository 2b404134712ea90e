package indicators

import (
	"math"
	"testing"

	"spotbot/internal/domain"
)

func closeSeries(closes ...float64) []*domain.Kline {
	klines := make([]*domain.Kline, len(closes))
	for i, c := range closes {
		klines[i] = &domain.Kline{Open: c, High: c, Low: c, Close: c, Volume: 1}
	}
	return klines
}

func approx(t *testing.T, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("got %f, want %f", got, want)
	}
}

func TestSMA(t *testing.T) {
	tests := []struct {
		name   string
		closes []float64
		period int
		want   float64
	}{
		{"last three of five", []float64{1, 2, 3, 4, 5}, 3, 4},
		{"full window", []float64{1, 2, 3, 4, 5}, 5, 3},
		{"insufficient data returns sentinel", []float64{1, 2, 3}, 4, 0},
		{"zero period returns sentinel", []float64{1, 2, 3}, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			approx(t, SMA(closeSeries(tt.closes...), tt.period), tt.want, 1e-9)
		})
	}
}

func TestEMA(t *testing.T) {
	// Seeded with the first close: 10 -> 32/3 -> 104/9.
	approx(t, EMA(closeSeries(10, 11, 12), 2), 104.0/9.0, 1e-9)

	// A constant series stays on the constant.
	approx(t, EMA(closeSeries(5, 5, 5, 5), 3), 5, 1e-9)

	if got := EMA(nil, 3); got != 0 {
		t.Errorf("empty series: got %f, want 0", got)
	}
}

func TestRSI(t *testing.T) {
	tests := []struct {
		name   string
		closes []float64
		period int
		want   float64
	}{
		{"mixed gains and losses", []float64{10, 11, 10, 12}, 3, 75},
		{"all gains", []float64{1, 2, 3, 4}, 3, 100},
		{"all losses", []float64{4, 3, 2, 1}, 3, 0},
		{"insufficient data returns neutral", []float64{1, 2, 3}, 3, 50},
		{"exactly period bars still neutral", []float64{1, 2, 3, 4}, 4, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			approx(t, RSI(closeSeries(tt.closes...), tt.period), tt.want, 1e-9)
		})
	}
}

func TestBollingerBands(t *testing.T) {
	// Classic population-stddev set: mean 5, sigma 2.
	klines := closeSeries(2, 4, 4, 4, 5, 5, 7, 9)
	bands := BollingerBands(klines, 8, 2)
	approx(t, bands.Middle, 5, 1e-9)
	approx(t, bands.Upper, 9, 1e-9)
	approx(t, bands.Lower, 1, 1e-9)

	empty := BollingerBands(closeSeries(1, 2, 3), 4, 2)
	if empty != (Bands{}) {
		t.Errorf("insufficient data: got %+v, want zero bands", empty)
	}
}

func TestATR(t *testing.T) {
	klines := []*domain.Kline{
		{High: 10, Low: 8, Close: 9},
		{High: 11, Low: 9, Close: 10},
		{High: 12, Low: 10, Close: 11},
	}
	// Seed 11-9=2, then TR(3rd bar)=2, divided by len-1.
	approx(t, ATR(klines, 2), 2, 1e-9)

	if got := ATR(klines[:2], 2); got != 0 {
		t.Errorf("insufficient data: got %f, want 0", got)
	}
}

func TestAverageATR(t *testing.T) {
	klines := []*domain.Kline{
		{High: 10, Low: 8, Close: 9},
		{High: 11, Low: 9, Close: 10},
		{High: 12, Low: 10, Close: 11},
	}
	// Prefix ATRs are 0, 0 and 2.
	approx(t, AverageATR(klines, 2), 2.0/3.0, 1e-9)

	if got := AverageATR(nil, 2); got != 0 {
		t.Errorf("empty series: got %f, want 0", got)
	}
}

func TestMACD(t *testing.T) {
	// A flat series has identical fast and slow EMAs everywhere.
	flat := MACD(closeSeries(5, 5, 5, 5, 5, 5, 5, 5), 2, 3, 2)
	approx(t, flat.MACDLine, 0, 1e-9)
	approx(t, flat.SignalLine, 0, 1e-9)
	approx(t, flat.Histogram, 0, 1e-9)

	// Rising series: fast EMA leads the slow one.
	rising := MACD(closeSeries(1, 2, 3, 4, 5, 6, 7, 8), 2, 3, 2)
	if rising.MACDLine <= rising.SignalLine {
		t.Errorf("rising series: MACD line %f should exceed signal %f", rising.MACDLine, rising.SignalLine)
	}
	approx(t, rising.Histogram, rising.MACDLine-rising.SignalLine, 1e-9)

	short := MACD(closeSeries(1, 2, 3, 4), 2, 3, 2)
	if short != (MACDResult{}) {
		t.Errorf("insufficient data: got %+v, want zero result", short)
	}
}

func TestADX(t *testing.T) {
	rising := []*domain.Kline{
		{High: 10, Low: 9, Close: 9.5},
		{High: 11, Low: 10, Close: 10.5},
		{High: 12, Low: 11, Close: 11.5},
	}
	// Pure upward movement: DI- is zero, DX pins at 100.
	approx(t, ADX(rising, 2), 100, 1e-9)

	if got := ADX(rising[:2], 2); got != 0 {
		t.Errorf("insufficient data: got %f, want 0", got)
	}

	flat := []*domain.Kline{
		{High: 5, Low: 5, Close: 5},
		{High: 5, Low: 5, Close: 5},
		{High: 5, Low: 5, Close: 5},
	}
	if got := ADX(flat, 2); got != 0 {
		t.Errorf("rangeless window: got %f, want 0", got)
	}
}

func TestVWAP(t *testing.T) {
	klines := []*domain.Kline{
		{High: 12, Low: 8, Close: 10, Volume: 2},
		{High: 22, Low: 18, Close: 20, Volume: 1},
	}
	// Typical prices 10 and 20 weighted 2:1.
	approx(t, VWAP(klines, 2), 40.0/3.0, 1e-9)

	if got := VWAP(klines, 3); got != 0 {
		t.Errorf("insufficient data: got %f, want 0", got)
	}

	noVolume := []*domain.Kline{
		{High: 12, Low: 8, Close: 10},
		{High: 22, Low: 18, Close: 20},
	}
	if got := VWAP(noVolume, 2); got != 0 {
		t.Errorf("zero volume window: got %f, want 0", got)
	}
}
