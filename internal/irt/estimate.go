package irt

import (
	"math"

	"github.com/pavelanni/adaptest/internal/model"
)

// posteriorFloor keeps normalization finite when posterior mass underflows.
const posteriorFloor = 1e-12

// Grid is an evenly spaced quadrature grid over ability, bounds inclusive.
type Grid struct {
	Min  float64
	Max  float64
	Size int
}

// Points returns the grid abscissae. A grid of size 1 is the single point Min;
// a non-positive size yields no points.
func (g Grid) Points() []float64 {
	if g.Size <= 0 {
		return nil
	}
	pts := make([]float64, g.Size)
	if g.Size == 1 {
		pts[0] = g.Min
		return pts
	}
	step := (g.Max - g.Min) / float64(g.Size-1)
	for i := range pts {
		pts[i] = g.Min + float64(i)*step
	}
	// Pin the upper bound so accumulated rounding never moves it.
	pts[g.Size-1] = g.Max
	return pts
}

// Prior is a Gaussian ability prior.
type Prior struct {
	Mean float64
	SD   float64
}

// StandardPrior is N(0, 1).
var StandardPrior = Prior{Mean: 0, SD: 1}

func (p Prior) density(x float64) float64 {
	sd := p.SD
	if sd <= 0 {
		sd = 1
	}
	z := (x - p.Mean) / sd
	return math.Exp(-0.5 * z * z)
}

// Estimate is an EAP point estimate with its posterior standard deviation.
type Estimate struct {
	Theta float64
	SE    float64
}

// EstimateTheta returns the expected-a-posteriori ability given the
// responses (outcomes[i] is 1 for correct, 0 otherwise) to the items at
// administered[i].
func EstimateTheta(params []model.ItemParams, administered, outcomes []int, grid Grid, prior Prior) float64 {
	return Posterior(params, administered, outcomes, grid, prior).Theta
}

// Posterior computes the EAP estimate and posterior SD over grid.
// With no responses, or an empty grid, it returns the prior mean and SD.
func Posterior(params []model.ItemParams, administered, outcomes []int, grid Grid, prior Prior) Estimate {
	pts := grid.Points()
	if len(administered) == 0 || len(pts) == 0 {
		return Estimate{Theta: prior.Mean, SE: prior.SD}
	}

	post := make([]float64, len(pts))
	for i, x := range pts {
		post[i] = prior.density(x)
	}
	n := min(len(administered), len(outcomes))
	for k := 0; k < n; k++ {
		ip := params[administered[k]]
		for i, x := range pts {
			p := ProbabilityCorrect(ip.A, ip.B, ip.C, x)
			if outcomes[k] == 1 {
				post[i] *= p
			} else {
				post[i] *= 1 - p
			}
		}
	}

	var sum float64
	for _, w := range post {
		sum += w
	}
	sum = math.Max(sum, posteriorFloor)

	var mean float64
	for i, x := range pts {
		post[i] /= sum
		mean += x * post[i]
	}
	var variance float64
	for i, x := range pts {
		d := x - mean
		variance += d * d * post[i]
	}
	return Estimate{Theta: mean, SE: math.Sqrt(variance)}
}
