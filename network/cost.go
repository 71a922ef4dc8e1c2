package network

//go:generate goki generate

// CostFunction selects how TrainMinibatch seeds backpropagation at the
// output layer (spec §3, §4.5). String/SetString/IsValid and the rest of
// the goki.dev/enums.Enum surface live in enumgen.go.
type CostFunction int32

const (
	// MeanSquared is (a - target)^2 / 2; its cost delta is
	// (a - target) * activation_prime(z).
	MeanSquared CostFunction = iota

	// CrossEntropySigmoid is valid only when the output layer's activation
	// is Sigmoid; its cost delta collapses to (a - target). Per spec §9
	// this is undefined-but-must-not-crash when paired with any other
	// activation -- CostDelta below never validates the pairing.
	CrossEntropySigmoid
)

// CostDelta computes the partial derivative of the cost with respect to the
// output neuron's pre-activation z (the "cost delta", spec §4.5 / GLOSSARY).
func CostDelta(cost CostFunction, act Activation, z, a, target float32) float32 {
	switch cost {
	case CrossEntropySigmoid:
		return a - target
	case MeanSquared:
		fallthrough
	default:
		return (a - target) * ApplyPrime(act, z, a)
	}
}

// Regularization selects the weight-decay term apply_gradients folds in
// (spec §4.5/§4.6). String/SetString/IsValid live in enumgen.go.
type Regularization int32

const (
	NoRegularization Regularization = iota
	L1
	L2
)

// RegularizationTerms computes the (r1, r2) coefficients apply_gradients
// uses, per spec §4.6 step 6. learningRate and lambda are as given in the
// TrainingSuite; trainingSetSize is |training_data|.
func RegularizationTerms(reg Regularization, learningRate, lambda float32, trainingSetSize int) (r1, r2 float32) {
	scaledLambda := lambda * (float32(1) / float32(trainingSetSize))
	switch reg {
	case L2:
		return 1 - learningRate*scaledLambda, 0
	case L1:
		return 1, -learningRate * scaledLambda
	default:
		return 1, 0
	}
}
