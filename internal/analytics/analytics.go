// Package analytics computes glucose trend statistics over timestamped
// readings. It is pure math: no I/O, no clock, no upstream types.
package analytics

import (
	"math"
	"time"
)

// Reading is one glucose value in mg/dL at a point in device-local time.
type Reading struct {
	Time  time.Time
	Value float64
}

// Summary aggregates a set of readings against a target range.
// Percentages are 0..100.
type Summary struct {
	Count        int
	Mean         float64
	SD           float64
	CV           float64
	TimeInRange  float64
	TimeBelow    float64
	TimeAbove    float64
	GMI          float64
	EstimatedA1C float64
}

// Summarize computes the standard CGM statistics for readings against the
// [low, high] target range, bounds inclusive. An empty input yields a zero
// Summary.
func Summarize(readings []Reading, low, high float64) Summary {
	n := len(readings)
	if n == 0 {
		return Summary{}
	}

	var sum float64
	var inRange, below, above int
	for _, r := range readings {
		sum += r.Value
		switch {
		case r.Value < low:
			below++
		case r.Value > high:
			above++
		default:
			inRange++
		}
	}
	mean := sum / float64(n)

	var sqDiff float64
	for _, r := range readings {
		d := r.Value - mean
		sqDiff += d * d
	}
	sd := math.Sqrt(sqDiff / float64(n))

	cv := 0.0
	if mean != 0 {
		cv = sd / mean * 100
	}

	return Summary{
		Count:       n,
		Mean:        mean,
		SD:          sd,
		CV:          cv,
		TimeInRange: float64(inRange) / float64(n) * 100,
		TimeBelow:   float64(below) / float64(n) * 100,
		TimeAbove:   float64(above) / float64(n) * 100,
		// Glucose management indicator, Bergenstal et al. 2018.
		GMI: 3.31 + 0.02392*mean,
		// ADAG estimated A1C from mean glucose.
		EstimatedA1C: (mean + 46.7) / 28.7,
	}
}

// DefaultDawnThreshold is the minimum early-morning rise, in mg/dL, that
// counts as a dawn-phenomenon day.
const DefaultDawnThreshold = 20.0

// DawnResult reports early-morning glucose rises. A day qualifies when it
// has readings both in the 00:00-04:00 and the 04:00-08:00 window.
type DawnResult struct {
	Detected      bool
	DaysEvaluated int
	DaysWithRise  int
	AverageRise   float64
}

// DetectDawnPhenomenon compares, per day, the mean of the 04:00-08:00 window
// against the mean of the 00:00-04:00 window. The phenomenon is reported
// when at least half of the qualifying days rise by threshold or more.
// A threshold <= 0 selects DefaultDawnThreshold.
func DetectDawnPhenomenon(readings []Reading, threshold float64) DawnResult {
	if threshold <= 0 {
		threshold = DefaultDawnThreshold
	}

	type windows struct {
		nightSum float64
		nightN   int
		dawnSum  float64
		dawnN    int
	}
	days := make(map[string]*windows)

	for _, r := range readings {
		hour := r.Time.Hour()
		if hour >= 8 {
			continue
		}
		key := r.Time.Format("2006-01-02")
		w := days[key]
		if w == nil {
			w = &windows{}
			days[key] = w
		}
		if hour < 4 {
			w.nightSum += r.Value
			w.nightN++
		} else {
			w.dawnSum += r.Value
			w.dawnN++
		}
	}

	var result DawnResult
	var riseSum float64
	for _, w := range days {
		if w.nightN == 0 || w.dawnN == 0 {
			continue
		}
		rise := w.dawnSum/float64(w.dawnN) - w.nightSum/float64(w.nightN)
		result.DaysEvaluated++
		riseSum += rise
		if rise >= threshold {
			result.DaysWithRise++
		}
	}

	if result.DaysEvaluated > 0 {
		result.AverageRise = riseSum / float64(result.DaysEvaluated)
		result.Detected = result.DaysWithRise*2 >= result.DaysEvaluated
	}
	return result
}
