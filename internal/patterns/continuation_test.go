package patterns

import "testing"

// TestThreeWhiteSoldiers tests the bullish momentum continuation pattern
func TestThreeWhiteSoldiers(t *testing.T) {
	d := NewDetector(0.5, 20)

	c1 := candle(100, 105.5, 99.5, 105)
	c2 := candle(104, 109.5, 103.5, 109)
	c3 := candle(108, 113.5, 107.5, 113)

	if !d.isThreeWhiteSoldiers(c1, c2, c3) {
		t.Error("Should detect valid Three White Soldiers")
	}

	// Third candle closes below the second
	weak := candle(108, 109, 106, 108.5)
	if d.isThreeWhiteSoldiers(c1, c2, weak) {
		t.Error("Should NOT detect when momentum stalls")
	}

	// Gap open above the previous body breaks the pattern
	gapped := candle(110, 115.5, 109.5, 115)
	if d.isThreeWhiteSoldiers(c1, c2, gapped) {
		t.Error("Should NOT detect with a runaway gap open")
	}
}

// TestThreeBlackCrows tests the bearish momentum continuation pattern
func TestThreeBlackCrows(t *testing.T) {
	d := NewDetector(0.5, 20)

	c1 := candle(113, 113.5, 107.5, 108)
	c2 := candle(109, 109.5, 103.5, 104)
	c3 := candle(105, 105.5, 99.5, 100)

	if !d.isThreeBlackCrows(c1, c2, c3) {
		t.Error("Should detect valid Three Black Crows")
	}

	// A bullish candle in the middle breaks it
	bull := candle(104, 109.5, 103.5, 109)
	if d.isThreeBlackCrows(c1, bull, c3) {
		t.Error("Should NOT detect with a bullish middle candle")
	}
}
