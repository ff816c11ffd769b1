// Package stats derives run statistics from evaluated candidates and writes
// them as JSON artifacts under a benchmarks directory.
package stats

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

type ScoreSummary struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// Summarize reports descriptive statistics over scores. An empty slice yields
// the zero summary.
func Summarize(scores []float64) ScoreSummary {
	if len(scores) == 0 {
		return ScoreSummary{}
	}
	mean, std := stat.MeanStdDev(scores, nil)
	if len(scores) == 1 {
		std = 0
	}
	return ScoreSummary{
		Count:  len(scores),
		Mean:   mean,
		StdDev: std,
		Min:    floats.Min(scores),
		Max:    floats.Max(scores),
	}
}

// BestSoFar returns the running maximum of scores.
func BestSoFar(scores []float64) []float64 {
	out := make([]float64, len(scores))
	for i, s := range scores {
		if i == 0 || s > out[i-1] {
			out[i] = s
			continue
		}
		out[i] = out[i-1]
	}
	return out
}
