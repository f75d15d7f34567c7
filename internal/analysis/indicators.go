package analysis

import (
	"math"

	"vault-trading-bot/internal/market"
)

// Default indicator periods.
const (
	RSIPeriod        = 14
	MACDFastPeriod   = 12
	MACDSlowPeriod   = 26
	MACDSignalPeriod = 9
	BollingerPeriod  = 20
	BollingerK       = 2.0
)

// MinCandles is the minimum history required for a full analysis: the slow
// MACD EMA plus its signal line.
const MinCandles = MACDSlowPeriod + MACDSignalPeriod

// closes extracts the close series from a candle sequence.
func closes(candles []market.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// SMA calculates the simple moving average of the trailing period.
func SMA(values []float64, period int) float64 {
	if len(values) < period || period <= 0 {
		return 0
	}
	sum := 0.0
	for i := len(values) - period; i < len(values); i++ {
		sum += values[i]
	}
	return sum / float64(period)
}

// EMA calculates the exponential moving average, seeded with an SMA over the
// first period values.
func EMA(values []float64, period int) float64 {
	series := emaSeries(values, period)
	if len(series) == 0 {
		return 0
	}
	return series[len(series)-1]
}

// emaSeries returns the EMA value at every index from period-1 onward.
func emaSeries(values []float64, period int) []float64 {
	if len(values) < period || period <= 0 {
		return nil
	}

	multiplier := 2.0 / float64(period+1)
	out := make([]float64, 0, len(values)-period+1)

	ema := SMA(values[:period], period)
	out = append(out, ema)
	for i := period; i < len(values); i++ {
		ema = (values[i] * multiplier) + (ema * (1 - multiplier))
		out = append(out, ema)
	}
	return out
}

// RSI calculates the Relative Strength Index with Wilder smoothing. Returns
// the neutral 50 when there is not enough history.
func RSI(candles []market.Candle, period int) float64 {
	if len(candles) < period+1 {
		return 50.0
	}

	// Seed averages over the first period of changes
	avgGain := 0.0
	avgLoss := 0.0
	for i := 1; i <= period; i++ {
		change := candles[i].Close - candles[i-1].Close
		if change > 0 {
			avgGain += change
		} else {
			avgLoss += -change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	// Wilder smoothing over the remainder
	for i := period + 1; i < len(candles); i++ {
		change := candles[i].Close - candles[i-1].Close
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// MACDResult holds MACD indicator values.
type MACDResult struct {
	MACD      float64
	Signal    float64
	Histogram float64
}

// MACD calculates the MACD line, its signal line (a true EMA over the MACD
// history) and the histogram.
func MACD(candles []market.Candle, fastPeriod, slowPeriod, signalPeriod int) *MACDResult {
	if len(candles) < slowPeriod+signalPeriod {
		return &MACDResult{}
	}

	values := closes(candles)
	fast := emaSeries(values, fastPeriod)
	slow := emaSeries(values, slowPeriod)

	// Align the two series on their tails and build the MACD line history
	offset := len(fast) - len(slow)
	macdLine := make([]float64, len(slow))
	for i := range slow {
		macdLine[i] = fast[i+offset] - slow[i]
	}

	signal := emaSeries(macdLine, signalPeriod)
	if len(signal) == 0 {
		return &MACDResult{MACD: macdLine[len(macdLine)-1]}
	}

	m := macdLine[len(macdLine)-1]
	s := signal[len(signal)-1]
	return &MACDResult{
		MACD:      m,
		Signal:    s,
		Histogram: m - s,
	}
}

// BollingerBands holds the volatility bands around the SMA midline.
type BollingerBands struct {
	Upper  float64 `json:"upper"`
	Middle float64 `json:"middle"`
	Lower  float64 `json:"lower"`
}

// Bollinger computes the bands over the trailing period, k standard
// deviations wide. Returns nil without enough history.
func Bollinger(candles []market.Candle, period int, k float64) *BollingerBands {
	if len(candles) < period || period <= 0 {
		return nil
	}
	values := closes(candles)
	middle := SMA(values, period)
	sd := StdDev(values, period)
	return &BollingerBands{
		Upper:  middle + k*sd,
		Middle: middle,
		Lower:  middle - k*sd,
	}
}

// StdDev calculates the standard deviation of the trailing period.
func StdDev(values []float64, period int) float64 {
	if len(values) < period || period <= 0 {
		return 0
	}
	mean := SMA(values, period)
	variance := 0.0
	for i := len(values) - period; i < len(values); i++ {
		diff := values[i] - mean
		variance += diff * diff
	}
	return math.Sqrt(variance / float64(period))
}
