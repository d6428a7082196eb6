package simulator

import (
	"math"
	"math/rand"
)

// UniformDistribution samples evenly from [min, max)
type UniformDistribution struct {
	min float64
	max float64
}

func NewUniformDistribution(min, max float64) *UniformDistribution {
	return &UniformDistribution{min: min, max: max}
}

// NewSymmetricDistribution samples evenly from [-spread, spread)
func NewSymmetricDistribution(spread float64) *UniformDistribution {
	return NewUniformDistribution(-spread, spread)
}

func (d *UniformDistribution) Sample(rng *rand.Rand) float64 {
	return d.min + rng.Float64()*(d.max-d.min)
}

func (d *UniformDistribution) Contains(v float64) bool {
	return v >= d.min && v <= d.max
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
