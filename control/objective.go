package control

import (
	"time"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/rcognita/turtlenav/localization"
)

// Objective is the quadratic stage cost χᵀ·diag(R1)·χ over χ = [x, y, θ, v, ω] together with its
// running sum, each stage weighted by the sampling period.
type Objective struct {
	weights     *mat.DiagDense
	period      float64
	accumulated float64
}

// NewObjective returns an objective with the five diagonal weights of R1.
func NewObjective(weights []float64, period time.Duration) (*Objective, error) {
	if len(weights) != 5 {
		return nil, errors.Errorf("objective needs 5 weights, got %d", len(weights))
	}
	return &Objective{
		weights: mat.NewDiagDense(5, append([]float64(nil), weights...)),
		period:  period.Seconds(),
	}, nil
}

// Stage returns the stage cost of s and a.
func (o *Objective) Stage(s localization.State, a Action) float64 {
	chi := mat.NewVecDense(5, append(s.Vector(), a.Vector()...))
	return mat.Inner(chi, o.weights, chi)
}

// Update adds the stage cost of s and a to the running sum and returns both.
func (o *Objective) Update(s localization.State, a Action) (stage, accumulated float64) {
	stage = o.Stage(s, a)
	o.accumulated += stage * o.period
	return stage, o.accumulated
}

// Accumulated is the running sum so far.
func (o *Objective) Accumulated() float64 {
	return o.accumulated
}
