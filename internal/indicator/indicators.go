// Package indicator computes technical indicators over a symbol's daily price
// frame. The built-in formulas are pure functions over float64 slices; NaN
// marks values that are undefined because the lookback window is not yet
// full or the formula has no defined result (for example a zero price range).
package indicator

import "math"

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// SMA is the rolling arithmetic mean of the last period values. Results are
// NaN until period observations exist, and NaN whenever the window holds a
// NaN.
func SMA(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period < 1 {
		return out
	}
	for i := period - 1; i < len(values); i++ {
		sum := 0.0
		for _, v := range values[i-period+1 : i+1] {
			sum += v
		}
		out[i] = sum / float64(period)
	}
	return out
}

// EMA is the recursive exponential moving average with smoothing factor
// 2/(period+1), seeded with the first observed value. It is defined from the
// first observed point onward. A NaN input carries the previous average.
func EMA(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period < 1 {
		return out
	}
	alpha := 2.0 / (float64(period) + 1.0)
	return recursiveMean(values, alpha, out)
}

// recursiveMean fills out with y[t] = alpha*x[t] + (1-alpha)*y[t-1], seeded
// with the first non-NaN value.
func recursiveMean(values []float64, alpha float64, out []float64) []float64 {
	seeded := false
	prev := 0.0
	for i, v := range values {
		if math.IsNaN(v) {
			if seeded {
				out[i] = prev
			}
			continue
		}
		if !seeded {
			prev = v
			seeded = true
		} else {
			prev = alpha*v + (1-alpha)*prev
		}
		out[i] = prev
	}
	return out
}

// RSI is the Relative Strength Index with Wilder smoothing (alpha=1/period).
// The first period points are NaN. When the average loss is zero the index
// saturates at 100.
func RSI(values []float64, period int) []float64 {
	n := len(values)
	out := nanSlice(n)
	if period < 1 || n == 0 {
		return out
	}

	alpha := 1.0 / float64(period)
	var avgGain, avgLoss float64
	for i := 0; i < n; i++ {
		gain, loss := 0.0, 0.0
		if i > 0 {
			d := values[i] - values[i-1]
			if d > 0 {
				gain = d
			} else if d < 0 {
				loss = -d
			}
		}
		if i == 0 {
			avgGain, avgLoss = gain, loss
		} else {
			avgGain = alpha*gain + (1-alpha)*avgGain
			avgLoss = alpha*loss + (1-alpha)*avgLoss
		}

		if i < period {
			continue
		}
		if avgLoss == 0 {
			out[i] = 100
			continue
		}
		out[i] = 100 - 100/(1+avgGain/avgLoss)
	}
	return out
}

// MACD returns the MACD line (fast EMA minus slow EMA), its signal EMA, and
// the histogram (line minus signal).
func MACD(values []float64, fast, slow, signal int) (line, signalLine, histogram []float64) {
	fastEMA := EMA(values, fast)
	slowEMA := EMA(values, slow)

	n := len(values)
	line = make([]float64, n)
	for i := range line {
		line[i] = fastEMA[i] - slowEMA[i]
	}
	signalLine = EMA(line, signal)
	histogram = make([]float64, n)
	for i := range histogram {
		histogram[i] = line[i] - signalLine[i]
	}
	return line, signalLine, histogram
}

// BollingerBands returns the upper, middle, and lower bands. The middle band
// is SMA(period); the band width is numStd times the rolling sample standard
// deviation (N-1 denominator).
func BollingerBands(values []float64, period int, numStd float64) (upper, middle, lower []float64) {
	n := len(values)
	middle = SMA(values, period)
	upper = nanSlice(n)
	lower = nanSlice(n)

	sd := rollingSampleStd(values, middle, period)
	for i := 0; i < n; i++ {
		upper[i] = middle[i] + sd[i]*numStd
		lower[i] = middle[i] - sd[i]*numStd
	}
	return upper, middle, lower
}

func rollingSampleStd(values, means []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period < 2 {
		return out
	}
	for i := period - 1; i < len(values); i++ {
		mean := means[i]
		if math.IsNaN(mean) {
			continue
		}
		ss := 0.0
		for _, v := range values[i-period+1 : i+1] {
			d := v - mean
			ss += d * d
		}
		out[i] = math.Sqrt(ss / float64(period-1))
	}
	return out
}

// ATR is the Average True Range: a Wilder recursive mean of the true range,
// NaN until period observations exist. The first true range is high-low.
func ATR(high, low, closes []float64, period int) []float64 {
	n := len(closes)
	out := nanSlice(n)
	if period < 1 || n == 0 {
		return out
	}

	tr := make([]float64, n)
	tr[0] = high[0] - low[0]
	for i := 1; i < n; i++ {
		prev := closes[i-1]
		tr[i] = math.Max(high[i]-low[i], math.Max(math.Abs(high[i]-prev), math.Abs(low[i]-prev)))
	}

	alpha := 1.0 / float64(period)
	avg := tr[0]
	for i := 0; i < n; i++ {
		if i > 0 {
			avg = alpha*tr[i] + (1-alpha)*avg
		}
		if i >= period-1 {
			out[i] = avg
		}
	}
	return out
}

// Stochastic returns %K and %D. %K is NaN while the window is short and where
// the rolling high-low range is zero; %D is SMA(%K, dPeriod).
func Stochastic(high, low, closes []float64, kPeriod, dPeriod int) (k, d []float64) {
	n := len(closes)
	k = nanSlice(n)
	if kPeriod >= 1 {
		for i := kPeriod - 1; i < n; i++ {
			lo, hi := math.Inf(1), math.Inf(-1)
			valid := true
			for j := i - kPeriod + 1; j <= i; j++ {
				if math.IsNaN(low[j]) || math.IsNaN(high[j]) {
					valid = false
					break
				}
				lo = math.Min(lo, low[j])
				hi = math.Max(hi, high[j])
			}
			if !valid || hi-lo == 0 {
				continue
			}
			k[i] = (closes[i] - lo) / (hi - lo) * 100
		}
	}
	return k, SMA(k, dPeriod)
}

// VWAP is the cumulative volume-weighted typical price from the start of the
// series. It is NaN while cumulative volume is zero.
func VWAP(high, low, closes, volume []float64) []float64 {
	n := len(closes)
	out := nanSlice(n)
	var cumPV, cumVol float64
	for i := 0; i < n; i++ {
		tp := (high[i] + low[i] + closes[i]) / 3.0
		cumPV += tp * volume[i]
		cumVol += volume[i]
		if cumVol != 0 {
			out[i] = cumPV / cumVol
		}
	}
	return out
}
