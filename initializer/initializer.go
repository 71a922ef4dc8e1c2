// Package initializer provides WeightInitializer implementations for
// network.NetworkFactory.GenerateRandomWeights (spec §4.1).
//
// Random draws for weight initialization are one of the two places
// randomness enters the core (spec §9); both an "internal generator" and a
// "pass a seed" entry point are provided here so callers who need
// reproducibility are never forced through implicit, process-wide mutable
// RNG state. Draws go through erand.Rand (erand.GaussianGen/UniformMeanRange)
// rather than math/rand directly, the same indirection axon/prjn.go uses so
// a projection's random source can be swapped without touching its callers.
package initializer

import (
	"math"

	"github.com/emer/emergent/v2/erand"
)

// Xavier draws each weight in a layer with n inputs from a normal
// distribution with mean 0 and standard deviation 1/sqrt(n), and each bias
// from a normal distribution with mean 0 and standard deviation 1
// (spec §4.1). It is the default initializer.
//
// A zero-value Xavier uses the process's shared random source, the
// "internal generator" entry point; use NewSeededXavier for the
// deterministic "pass a seed" entry point.
type Xavier struct {
	rng erand.Rand
}

// NewXavier returns a Xavier initializer drawing from the process's shared
// random source.
func NewXavier() *Xavier {
	return &Xavier{rng: erand.NewGlobalRand()}
}

// NewSeededXavier returns a Xavier initializer with its own per-instance
// generator seeded deterministically. Two Xavier instances built with the
// same seed produce the same draw sequence for the same call order (spec
// §4.1: "this order is mandatory because it determines reproducibility of
// seeded initializers").
func NewSeededXavier(seed int64) *Xavier {
	return &Xavier{rng: erand.NewSysRand(seed)}
}

// RandomWeight draws one weight for a neuron with weightsPerNeuron incoming
// connections. weightsPerNeuron must be >= 1.
func (x *Xavier) RandomWeight(weightsPerNeuron int) float32 {
	if weightsPerNeuron < 1 {
		weightsPerNeuron = 1
	}
	stddev := 1.0 / math.Sqrt(float64(weightsPerNeuron))
	return float32(erand.GaussianGen(0, stddev, -1, x.rng))
}

// RandomBias draws one bias value from N(0, 1).
func (x *Xavier) RandomBias() float32 {
	return float32(erand.GaussianGen(0, 1, -1, x.rng))
}

// Uniform draws weights and biases independently and uniformly in
// [-Range, +Range]. Used by tasks.ApplyRandomMutation's mutation buffer
// (spec §4.6).
type Uniform struct {
	Range float32
	rng   erand.Rand
}

// NewUniform returns a Uniform draw over [-r, +r] using the shared global
// random source.
func NewUniform(r float32) *Uniform {
	return &Uniform{Range: r, rng: erand.NewGlobalRand()}
}

// NewSeededUniform returns a Uniform draw over [-r, +r] with its own seeded
// generator.
func NewSeededUniform(r float32, seed int64) *Uniform {
	return &Uniform{Range: r, rng: erand.NewSysRand(seed)}
}

// RandomWeight draws a uniform sample in [-Range, +Range], ignoring
// weightsPerNeuron.
func (u *Uniform) RandomWeight(int) float32 {
	return float32(erand.UniformMeanRange(0, float64(u.Range), -1, u.rng))
}

// RandomBias draws a uniform sample in [-Range, +Range].
func (u *Uniform) RandomBias() float32 {
	return float32(erand.UniformMeanRange(0, float64(u.Range), -1, u.rng))
}
