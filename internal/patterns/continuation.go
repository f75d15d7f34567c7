package patterns

import "vault-trading-bot/internal/market"

// Momentum continuation predicates: three consecutive decisive candles in the
// same direction, each closing beyond the previous close.

// isThreeWhiteSoldiers checks for three rising bullish candles with real
// bodies and successively higher closes.
func (d *Detector) isThreeWhiteSoldiers(c1, c2, c3 market.Candle) bool {
	for _, c := range []market.Candle{c1, c2, c3} {
		if !c.IsBullish() {
			return false
		}
		// Each soldier needs a real body, not a doji drift
		if c.Range() == 0 || c.Body() < c.Range()*0.5 {
			return false
		}
	}
	if c2.Close <= c1.Close || c3.Close <= c2.Close {
		return false
	}
	// Each candle opens within the previous body (no runaway gaps)
	if c2.Open < c1.Open || c2.Open > c1.Close {
		return false
	}
	if c3.Open < c2.Open || c3.Open > c2.Close {
		return false
	}
	return true
}

// isThreeBlackCrows checks the bearish mirror: three falling bearish candles
// with successively lower closes.
func (d *Detector) isThreeBlackCrows(c1, c2, c3 market.Candle) bool {
	for _, c := range []market.Candle{c1, c2, c3} {
		if !c.IsBearish() {
			return false
		}
		if c.Range() == 0 || c.Body() < c.Range()*0.5 {
			return false
		}
	}
	if c2.Close >= c1.Close || c3.Close >= c2.Close {
		return false
	}
	if c2.Open > c1.Open || c2.Open < c1.Close {
		return false
	}
	if c3.Open > c2.Open || c3.Open < c2.Close {
		return false
	}
	return true
}
