package network

import (
	"math"
)

// Activation identifies the per-layer nonlinearity applied to a neuron's
// pre-activation sum. The numeric values are part of the on-disk binary
// format (§6) and must never be renumbered.
type Activation int32

// The activation functions every backend must implement identically at
// float32 precision (spec §4.5).
const (
	Sigmoid Activation = iota
	ReLU
	Tanh
	LeakyReLU
	Identity
	Threshold
	SoftPlus
	ArcTan
)

//go:generate goki generate

// String, SetString, IsValid, ParseActivation, and the rest of the
// goki.dev/enums.Enum surface live in enumgen.go.

// Apply evaluates the activation function at x (spec §4.5).
func Apply(act Activation, x float32) float32 {
	switch act {
	case Sigmoid:
		return sigmoid32(x)
	case ReLU:
		if x < 0 {
			return 0
		}
		return x
	case Tanh:
		return 2*sigmoid32(2*x) - 1
	case LeakyReLU:
		if x < 0 {
			return 0.01 * x
		}
		return x
	case Identity:
		return x
	case Threshold:
		if x < 0 {
			return 0
		}
		return 1
	case SoftPlus:
		return float32(math.Log(1 + math.Exp(float64(x))))
	case ArcTan:
		return float32(math.Atan(float64(x)))
	default:
		return x
	}
}

// ApplyPrime evaluates the activation's derivative at pre-activation value z,
// given the already-computed activation value a = Apply(act, z) (spec §4.5).
func ApplyPrime(act Activation, z, a float32) float32 {
	switch act {
	case Sigmoid:
		return a * (1 - a)
	case ReLU:
		if z < 0 {
			return 0
		}
		return 1
	case Tanh:
		return 1 - a*a
	case LeakyReLU:
		if z < 0 {
			return 0.01
		}
		return 1
	case Identity:
		return 1
	case Threshold:
		return 0
	case SoftPlus:
		return sigmoid32(z)
	case ArcTan:
		return 1 / (z*z + 1)
	default:
		return 1
	}
}

func sigmoid32(x float32) float32 {
	return float32(1 / (1 + math.Exp(float64(-x))))
}
