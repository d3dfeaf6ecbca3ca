package features

import "math"

// Pure indicator math over an ordered series of closing prices (oldest to
// newest). Every function reports ok=false when the window is too short
// instead of guessing; callers map that to an absent value.

// SMA returns the arithmetic mean of the last period values.
func SMA(values []float64, period int) (float64, bool) {
	if period <= 0 || len(values) < period {
		return 0, false
	}
	sum := 0.0
	for _, v := range values[len(values)-period:] {
		sum += v
	}
	return sum / float64(period), true
}

// EMA seeds with the SMA of the first period values, then folds the rest in
// with multiplier 2/(period+1).
func EMA(values []float64, period int) (float64, bool) {
	if period <= 0 || len(values) < period {
		return 0, false
	}
	mult := 2 / float64(period+1)
	ema := 0.0
	for _, v := range values[:period] {
		ema += v
	}
	ema /= float64(period)
	for _, v := range values[period:] {
		ema = (v-ema)*mult + ema
	}
	return ema, true
}

// RSI computes the Relative Strength Index over the last period deltas.
// Needs period+1 values. Result is always within [0,100]; 100 exactly when
// the window has no losses.
func RSI(values []float64, period int) (float64, bool) {
	if period <= 0 || len(values) <= period {
		return 0, false
	}
	window := values[len(values)-period-1:]
	gainSum := 0.0
	lossSum := 0.0
	for i := 1; i < len(window); i++ {
		change := window[i] - window[i-1]
		if change >= 0 {
			gainSum += change
		} else {
			lossSum += -change
		}
	}
	avgGain := gainSum / float64(period)
	avgLoss := lossSum / float64(period)
	if avgLoss == 0 {
		return 100, true
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs)), true
}

// MACD returns the latest MACD line value and its signal line. The fast and
// slow EMAs are seeded with their SMAs and advanced together so the MACD
// series starts once slow values are available; the signal is the EMA of
// that series. Needs slow+signal values.
func MACD(values []float64, fast, slow, signal int) (macd, sig float64, ok bool) {
	if fast <= 0 || slow <= fast || signal <= 0 || len(values) < slow+signal {
		return 0, 0, false
	}
	multFast := 2 / float64(fast+1)
	multSlow := 2 / float64(slow+1)

	emaFast := 0.0
	for _, v := range values[:fast] {
		emaFast += v
	}
	emaFast /= float64(fast)
	emaSlow := 0.0
	for _, v := range values[:slow] {
		emaSlow += v
	}
	emaSlow /= float64(slow)

	for _, v := range values[fast:slow] {
		emaFast = (v-emaFast)*multFast + emaFast
	}

	macdLine := make([]float64, 0, len(values)-slow)
	for _, v := range values[slow:] {
		emaFast = (v-emaFast)*multFast + emaFast
		emaSlow = (v-emaSlow)*multSlow + emaSlow
		macdLine = append(macdLine, emaFast-emaSlow)
	}
	if len(macdLine) < signal {
		return 0, 0, false
	}
	sig, _ = EMA(macdLine, signal)
	return macdLine[len(macdLine)-1], sig, true
}

// LogReturns computes r_t = ln(v_t / v_{t-1}) for consecutive strictly
// positive values; non-positive pairs are skipped, not zeroed.
func LogReturns(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}
	out := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		prev, cur := values[i-1], values[i]
		if prev <= 0 || cur <= 0 {
			continue
		}
		out = append(out, math.Log(cur/prev))
	}
	return out
}

// AnnualizedVolatility scales the population variance of the log returns by
// periodsPerDay and returns the square root.
func AnnualizedVolatility(logReturns []float64, periodsPerDay int) (float64, bool) {
	if len(logReturns) == 0 {
		return 0, false
	}
	mean := 0.0
	for _, r := range logReturns {
		mean += r
	}
	mean /= float64(len(logReturns))
	variance := 0.0
	for _, r := range logReturns {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(logReturns))
	return math.Sqrt(variance * float64(periodsPerDay)), true
}
