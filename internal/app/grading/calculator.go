// Package grading holds the pure grade arithmetic: the weighted final average,
// score parsing and the approval rule. Nothing here touches storage.
package grading

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	MinScore = 0.0
	MaxScore = 10.0
)

// Weights are the contributions of each input to the final average.
type Weights struct {
	Partial1 float64
	Partial2 float64
	Project  float64
}

// DefaultWeights is (P1*4 + P2*4 + PROJECT*2) / 10.
func DefaultWeights() Weights {
	return Weights{Partial1: 0.4, Partial2: 0.4, Project: 0.2}
}

// Calculator computes final averages with a fixed set of weights.
// Arithmetic is decimal, so 0.4*7.005 is exactly 2.802 and rounding is
// predictable: half away from zero at two places (7.005 -> 7.01).
type Calculator struct {
	w1, w2, w3 decimal.Decimal
}

// NewCalculator returns a calculator using w.
func NewCalculator(w Weights) *Calculator {
	return &Calculator{
		w1: decimal.NewFromFloat(w.Partial1),
		w2: decimal.NewFromFloat(w.Partial2),
		w3: decimal.NewFromFloat(w.Project),
	}
}

// Compute returns the final average, or nil when any input is missing or is
// not a score in [0, 10].
func (c *Calculator) Compute(partial1, partial2, project *float64) *float64 {
	if partial1 == nil || partial2 == nil || project == nil {
		return nil
	}
	if !ValidScore(*partial1) || !ValidScore(*partial2) || !ValidScore(*project) {
		return nil
	}

	sum := decimal.NewFromFloat(*partial1).Mul(c.w1).
		Add(decimal.NewFromFloat(*partial2).Mul(c.w2)).
		Add(decimal.NewFromFloat(*project).Mul(c.w3))

	avg, _ := sum.Round(2).Float64()
	return &avg
}

// ValidScore reports whether v is a finite score in [0, 10].
func ValidScore(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= MinScore && v <= MaxScore
}

// Round2 rounds v to two decimal places, half away from zero. Scores are
// stored as NUMERIC(4,2) and every value written goes through here first.
func Round2(v float64) float64 {
	r, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return r
}

// ParseScore converts v into a score. It never panics: nil, NaN, values out
// of range and unparseable strings all return false.
func ParseScore(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case nil:
		return 0, false
	case float64:
		f = x
	case *float64:
		if x == nil {
			return 0, false
		}
		f = *x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int32:
		f = float64(x)
	case int64:
		f = float64(x)
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case decimal.Decimal:
		f, _ = x.Float64()
	case string:
		s := strings.Replace(strings.TrimSpace(x), ",", ".", 1)
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if !ValidScore(f) {
		return 0, false
	}
	return f, true
}
