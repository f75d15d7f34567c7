package analysis

import (
	"vault-trading-bot/internal/market"
)

// Volume pressure classifications.
const (
	VolumeBuying  = "buying"
	VolumeSelling = "selling"
	VolumeNeutral = "neutral"
)

// VolumeProfile summarizes the volume context of the most recent candle
// against its lookback window.
type VolumeProfile struct {
	CurrentVolume float64 `json:"current_volume"`
	AverageVolume float64 `json:"average_volume"`
	VolumeRatio   float64 `json:"volume_ratio"` // current / average
	HighVolume    bool    `json:"high_volume"`  // ratio > 2
	ClimaxVolume  bool    `json:"climax_volume"` // ratio > 3
	OBV           float64 `json:"obv"`
	OBVRising     bool    `json:"obv_rising"`
	Pressure      string  `json:"pressure"` // buying, selling, neutral
	VWAP          float64 `json:"vwap"`
}

// VolumeAnalyzer provides volume-based confirmation for a directional read.
type VolumeAnalyzer struct {
	avgPeriod int
}

// NewVolumeAnalyzer creates a volume analyzer averaging over avgPeriod
// candles (20 when non-positive).
func NewVolumeAnalyzer(avgPeriod int) *VolumeAnalyzer {
	if avgPeriod <= 0 {
		avgPeriod = 20
	}
	return &VolumeAnalyzer{avgPeriod: avgPeriod}
}

// Profile computes the volume profile for the last candle. Nil on empty
// input.
func (va *VolumeAnalyzer) Profile(candles []market.Candle) *VolumeProfile {
	if len(candles) == 0 {
		return nil
	}

	last := candles[len(candles)-1]
	avg := va.averageVolume(candles)

	var ratio float64
	if avg > 0 {
		ratio = last.Volume / avg
	}

	return &VolumeProfile{
		CurrentVolume: last.Volume,
		AverageVolume: avg,
		VolumeRatio:   ratio,
		HighVolume:    ratio > 2.0,
		ClimaxVolume:  ratio > 3.0,
		OBV:           OBV(candles),
		OBVRising:     va.obvRising(candles, va.avgPeriod),
		Pressure:      volumePressure(last),
		VWAP:          VWAP(candles),
	}
}

func (va *VolumeAnalyzer) averageVolume(candles []market.Candle) float64 {
	period := va.avgPeriod
	if len(candles) < period {
		period = len(candles)
	}
	sum := 0.0
	for i := len(candles) - period; i < len(candles); i++ {
		sum += candles[i].Volume
	}
	return sum / float64(period)
}

// volumePressure classifies the last candle's volume as buying or selling
// pressure. A close above the open with little upper wick is buying; the
// mirror case is selling.
func volumePressure(c market.Candle) string {
	body := c.Body()
	switch {
	case c.IsBullish():
		if c.UpperWick() < body*0.2 {
			return VolumeBuying
		}
	case c.IsBearish():
		if c.LowerWick() < body*0.2 {
			return VolumeSelling
		}
	}
	return VolumeNeutral
}

// OBV computes On-Balance Volume: volume added on up closes, subtracted on
// down closes.
func OBV(candles []market.Candle) float64 {
	obv := 0.0
	for i := 1; i < len(candles); i++ {
		switch {
		case candles[i].Close > candles[i-1].Close:
			obv += candles[i].Volume
		case candles[i].Close < candles[i-1].Close:
			obv -= candles[i].Volume
		}
	}
	return obv
}

// obvRising compares OBV over the latest window against the one before it.
func (va *VolumeAnalyzer) obvRising(candles []market.Candle, period int) bool {
	if len(candles) < period+1 {
		return false
	}
	current := OBV(candles[len(candles)-period:])
	previous := OBV(candles[len(candles)-period-1 : len(candles)-1])
	return current > previous
}

// VWAP computes the volume-weighted average price over the candles.
func VWAP(candles []market.Candle) float64 {
	totalVolumePrice := 0.0
	totalVolume := 0.0
	for _, c := range candles {
		typical := (c.High + c.Low + c.Close) / 3
		totalVolumePrice += typical * c.Volume
		totalVolume += c.Volume
	}
	if totalVolume == 0 {
		return 0
	}
	return totalVolumePrice / totalVolume
}
