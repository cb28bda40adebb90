// Package irt implements the three-parameter logistic (3PL) item response
// model, Fisher-information item selection and grid-based EAP ability
// estimation.
package irt

import (
	"math"

	"github.com/pavelanni/adaptest/internal/model"
)

// infoEpsilon is the distance from 0 or 1 below which a response
// probability is treated as certain and carries no information.
const infoEpsilon = 1e-6

// sigmoid is the logistic function, split on sign so that exp never overflows.
func sigmoid(x float64) float64 {
	if x >= 0 {
		return 1.0 / (1.0 + math.Exp(-x))
	}
	ex := math.Exp(x)
	return ex / (1.0 + ex)
}

// ProbabilityCorrect returns the probability that an examinee of ability
// theta answers an item with parameters (a, b, c) correctly.
// The result lies in [c, 1]. Degenerate a (zero or negative) is accepted.
func ProbabilityCorrect(a, b, c, theta float64) float64 {
	return c + (1.0-c)*sigmoid(a*(theta-b))
}

// FisherInformation returns the 3PL item information at theta,
//
//	I(theta) = a² · (p-c)² · (1-p) / ((1-c)² · p)
//
// which equals P'(theta)² / (p·(1-p)). It is 0 when p is within
// infoEpsilon of 0 or 1.
func FisherInformation(a, b, c, theta float64) float64 {
	p := ProbabilityCorrect(a, b, c, theta)
	q := 1.0 - p
	if p < infoEpsilon || q < infoEpsilon {
		return 0
	}
	num := a * a * (p - c) * (p - c) * q
	den := (1.0 - c) * (1.0 - c) * p
	return num / den
}

// Information is FisherInformation for a parameter triple.
func Information(ip model.ItemParams, theta float64) float64 {
	return FisherInformation(ip.A, ip.B, ip.C, theta)
}
