package grading

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// Status is the display status of a record in the history.
type Status string

const (
	StatusApproved     Status = "approved"
	StatusFailed       Status = "failed"
	StatusUndefined    Status = "undefined"
	StatusCompleted    Status = "completed"
	StatusNotCompleted Status = "not_completed"
)

// DefaultCutoff is the minimum final average for approval.
const DefaultCutoff = 7.0

// Policy is the grading configuration handed to the recalculation engine and
// the history query at construction time.
type Policy struct {
	Weights Weights
	Cutoff  float64
}

// DefaultPolicy returns 40/40/20 weights with a 7.0 cutoff.
func DefaultPolicy() Policy {
	return Policy{Weights: DefaultWeights(), Cutoff: DefaultCutoff}
}

// Validate checks the weights are non-negative and sum to one, and that the
// cutoff is a possible score.
func (p Policy) Validate() error {
	w := p.Weights
	if w.Partial1 < 0 || w.Partial2 < 0 || w.Project < 0 {
		return fmt.Errorf("grading weights cannot be negative")
	}
	sum := decimal.NewFromFloat(w.Partial1).Add(decimal.NewFromFloat(w.Partial2)).Add(decimal.NewFromFloat(w.Project))
	if !sum.Equal(decimal.NewFromInt(1)) {
		return fmt.Errorf("grading weights must sum to 1, got %s", sum.String())
	}
	if !ValidScore(p.Cutoff) {
		return fmt.Errorf("cutoff %.2f is not a valid score", p.Cutoff)
	}
	return nil
}

// Calculator returns a calculator using the policy weights.
func (p Policy) Calculator() *Calculator {
	return NewCalculator(p.Weights)
}

// Approval maps an average to approved/failed, or undefined when there is no
// average. An average equal to the cutoff is approved.
func (p Policy) Approval(average *float64) Status {
	if average == nil || math.IsNaN(*average) {
		return StatusUndefined
	}
	avg := decimal.NewFromFloat(*average).Round(2)
	if avg.GreaterThanOrEqual(decimal.NewFromFloat(p.Cutoff)) {
		return StatusApproved
	}
	return StatusFailed
}

// Completion maps the completion flag of a completion-only course.
func Completion(completed bool) Status {
	if completed {
		return StatusCompleted
	}
	return StatusNotCompleted
}

// FormulaNote describes the average formula for display.
func (p Policy) FormulaNote() string {
	return fmt.Sprintf("final average = partial1*%s + partial2*%s + project*%s, approved at %.1f or above",
		decimal.NewFromFloat(p.Weights.Partial1).String(),
		decimal.NewFromFloat(p.Weights.Partial2).String(),
		decimal.NewFromFloat(p.Weights.Project).String(),
		p.Cutoff)
}
