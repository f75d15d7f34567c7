package patterns

import "vault-trading-bot/internal/market"

// Reversal pattern predicates. Each predicate takes candles in chronological
// order and reports whether the pattern completes on the last one.

// isMorningStar checks for a Morning Star (bullish reversal).
func (d *Detector) isMorningStar(c1, c2, c3 market.Candle) bool {
	// C1: long bearish candle
	if !c1.IsBearish() {
		return false
	}
	if c1.Range() == 0 || c1.Body() < c1.Range()*0.6 {
		return false
	}

	// C2: small body (indecision)
	if c2.Body() > c1.Body()*0.4 {
		return false
	}

	// C3: long bullish candle
	if !c3.IsBullish() {
		return false
	}
	if c3.Range() == 0 || c3.Body() < c3.Range()*0.6 {
		return false
	}

	// C3 must close above the midpoint of C1
	midpoint := (c1.Open + c1.Close) / 2
	return c3.Close >= midpoint
}

// isEveningStar checks for an Evening Star (bearish reversal).
func (d *Detector) isEveningStar(c1, c2, c3 market.Candle) bool {
	if !c1.IsBullish() {
		return false
	}
	if c1.Range() == 0 || c1.Body() < c1.Range()*0.6 {
		return false
	}

	if c2.Body() > c1.Body()*0.4 {
		return false
	}

	if !c3.IsBearish() {
		return false
	}
	if c3.Range() == 0 || c3.Body() < c3.Range()*0.6 {
		return false
	}

	midpoint := (c1.Open + c1.Close) / 2
	return c3.Close <= midpoint
}

// isBullishEngulfing checks whether c2's body completely engulfs c1's.
func (d *Detector) isBullishEngulfing(c1, c2 market.Candle) bool {
	if !c1.IsBearish() || !c2.IsBullish() {
		return false
	}
	// C2 opens at or below C1 close and closes at or above C1 open
	return c2.Open <= c1.Close && c2.Close >= c1.Open
}

// isBearishEngulfing checks the bearish mirror of the engulfing pattern.
func (d *Detector) isBearishEngulfing(c1, c2 market.Candle) bool {
	if !c1.IsBullish() || !c2.IsBearish() {
		return false
	}
	return c2.Open >= c1.Close && c2.Close <= c1.Open
}

// isBullishHarami checks for a small bullish candle inside a large bearish one.
func (d *Detector) isBullishHarami(c1, c2 market.Candle) bool {
	if !c1.IsBearish() || !c2.IsBullish() {
		return false
	}
	if c2.Body() > c1.Body()*0.6 {
		return false
	}
	// C2 body contained within C1 body
	return c2.Open >= c1.Close && c2.Close <= c1.Open
}

// isBearishHarami checks for a small bearish candle inside a large bullish one.
func (d *Detector) isBearishHarami(c1, c2 market.Candle) bool {
	if !c1.IsBullish() || !c2.IsBearish() {
		return false
	}
	if c2.Body() > c1.Body()*0.6 {
		return false
	}
	return c2.Open <= c1.Close && c2.Close >= c1.Open
}

// isDoji checks for an indecision candle: body under 10% of range.
func (d *Detector) isDoji(c market.Candle) bool {
	if c.Range() == 0 {
		return false
	}
	return c.Body()/c.Range() < 0.10
}

// isShootingStar checks for a long upper wick after an up candle.
func (d *Detector) isShootingStar(c market.Candle, prev *market.Candle) bool {
	body := c.Body()

	// Long upper wick, at least 2x body
	if c.UpperWick() < body*2 {
		return false
	}
	// Small or no lower wick
	if c.LowerWick() > body*0.3 {
		return false
	}
	// Needs an uptrend context when the previous candle is known
	if prev != nil && !prev.IsBullish() {
		return false
	}
	return true
}

// isHammer checks for a long lower wick after a down candle.
func (d *Detector) isHammer(c market.Candle, prev *market.Candle) bool {
	body := c.Body()

	if c.LowerWick() < body*2 {
		return false
	}
	if c.UpperWick() > body*0.3 {
		return false
	}
	if prev != nil && !prev.IsBearish() {
		return false
	}
	return true
}
