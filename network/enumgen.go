// Enum methods for Activation, CostFunction and Regularization.
//
// Hand-maintained here in place of the `goki generate` build step (this
// module never invokes code generators), but follows the exact shape that
// tool produces for enum types elsewhere in the ecosystem (see
// erand.RndDists's enumgen.go), so Activation/CostFunction/Regularization
// satisfy goki.dev/enums.Enum the same way every other enum in the stack
// does.

package network

import (
	"strconv"
	"strings"

	"goki.dev/enums"
)

var _ActivationValues = []Activation{Sigmoid, ReLU, Tanh, LeakyReLU, Identity, Threshold, SoftPlus, ArcTan}

var _ActivationMap = map[Activation]string{
	Sigmoid:   `Sigmoid`,
	ReLU:      `ReLU`,
	Tanh:      `Tanh`,
	LeakyReLU: `LeakyReLU`,
	Identity:  `Identity`,
	Threshold: `Threshold`,
	SoftPlus:  `SoftPlus`,
	ArcTan:    `ArcTan`,
}

var _ActivationNameToValueMap = map[string]Activation{
	`Sigmoid`:   Sigmoid,
	`sigmoid`:   Sigmoid,
	`ReLU`:      ReLU,
	`relu`:      ReLU,
	`Tanh`:      Tanh,
	`tanh`:      Tanh,
	`LeakyReLU`: LeakyReLU,
	`leakyrelu`: LeakyReLU,
	`Identity`:  Identity,
	`identity`:  Identity,
	`Threshold`: Threshold,
	`threshold`: Threshold,
	`SoftPlus`:  SoftPlus,
	`softplus`:  SoftPlus,
	`ArcTan`:    ArcTan,
	`arctan`:    ArcTan,
}

// String returns the string representation of this Activation value.
func (a Activation) String() string {
	if str, ok := _ActivationMap[a]; ok {
		return str
	}
	return strconv.FormatInt(int64(a), 10)
}

// SetString sets the Activation value from its string representation.
func (a *Activation) SetString(s string) error {
	if val, ok := _ActivationNameToValueMap[s]; ok {
		*a = val
		return nil
	}
	if val, ok := _ActivationNameToValueMap[strings.ToLower(s)]; ok {
		*a = val
		return nil
	}
	return errInvalidEnum("Activation", s)
}

// Int64 returns the Activation value as an int64.
func (a Activation) Int64() int64 { return int64(a) }

// SetInt64 sets the Activation value from an int64.
func (a *Activation) SetInt64(in int64) { *a = Activation(in) }

// Desc returns the description of the Activation value.
func (a Activation) Desc() string { return a.String() }

// ActivationValues returns all possible values for the type Activation.
func ActivationValues() []Activation { return _ActivationValues }

// Values returns all possible values as a slice of [enums.Enum].
func (a Activation) Values() []enums.Enum {
	res := make([]enums.Enum, len(_ActivationValues))
	for i, d := range _ActivationValues {
		res[i] = d
	}
	return res
}

// IsValid returns whether the value is a valid option for type Activation.
func (a Activation) IsValid() bool {
	_, ok := _ActivationMap[a]
	return ok
}

// MarshalText implements the [encoding.TextMarshaler] interface.
func (a Activation) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// UnmarshalText implements the [encoding.TextUnmarshaler] interface.
func (a *Activation) UnmarshalText(text []byte) error { return a.SetString(string(text)) }

// ParseActivation parses an activation's name back into its enum value.
func ParseActivation(s string) (Activation, error) {
	var a Activation
	if err := a.SetString(s); err != nil {
		return 0, err
	}
	return a, nil
}

var _ enums.Enum = Sigmoid

var _CostFunctionValues = []CostFunction{MeanSquared, CrossEntropySigmoid}

var _CostFunctionMap = map[CostFunction]string{
	MeanSquared:         `MeanSquared`,
	CrossEntropySigmoid: `CrossEntropySigmoid`,
}

var _CostFunctionNameToValueMap = map[string]CostFunction{
	`MeanSquared`:         MeanSquared,
	`meansquared`:         MeanSquared,
	`CrossEntropySigmoid`: CrossEntropySigmoid,
	`crossentropysigmoid`: CrossEntropySigmoid,
}

func (c CostFunction) String() string {
	if str, ok := _CostFunctionMap[c]; ok {
		return str
	}
	return strconv.FormatInt(int64(c), 10)
}

func (c *CostFunction) SetString(s string) error {
	if val, ok := _CostFunctionNameToValueMap[s]; ok {
		*c = val
		return nil
	}
	if val, ok := _CostFunctionNameToValueMap[strings.ToLower(s)]; ok {
		*c = val
		return nil
	}
	return errInvalidEnum("CostFunction", s)
}

func (c CostFunction) Int64() int64      { return int64(c) }
func (c *CostFunction) SetInt64(in int64) { *c = CostFunction(in) }
func (c CostFunction) Desc() string      { return c.String() }

func CostFunctionValues() []CostFunction { return _CostFunctionValues }

func (c CostFunction) Values() []enums.Enum {
	res := make([]enums.Enum, len(_CostFunctionValues))
	for i, d := range _CostFunctionValues {
		res[i] = d
	}
	return res
}

func (c CostFunction) IsValid() bool {
	_, ok := _CostFunctionMap[c]
	return ok
}

func (c CostFunction) MarshalText() ([]byte, error) { return []byte(c.String()), nil }
func (c *CostFunction) UnmarshalText(text []byte) error { return c.SetString(string(text)) }

var _ enums.Enum = MeanSquared

var _RegularizationValues = []Regularization{NoRegularization, L1, L2}

var _RegularizationMap = map[Regularization]string{
	NoRegularization: `NoRegularization`,
	L1:               `L1`,
	L2:               `L2`,
}

var _RegularizationNameToValueMap = map[string]Regularization{
	`NoRegularization`: NoRegularization,
	`noregularization`: NoRegularization,
	`L1`:               L1,
	`l1`:               L1,
	`L2`:               L2,
	`l2`:               L2,
}

func (r Regularization) String() string {
	if str, ok := _RegularizationMap[r]; ok {
		return str
	}
	return strconv.FormatInt(int64(r), 10)
}

func (r *Regularization) SetString(s string) error {
	if val, ok := _RegularizationNameToValueMap[s]; ok {
		*r = val
		return nil
	}
	if val, ok := _RegularizationNameToValueMap[strings.ToLower(s)]; ok {
		*r = val
		return nil
	}
	return errInvalidEnum("Regularization", s)
}

func (r Regularization) Int64() int64       { return int64(r) }
func (r *Regularization) SetInt64(in int64) { *r = Regularization(in) }
func (r Regularization) Desc() string       { return r.String() }

func RegularizationValues() []Regularization { return _RegularizationValues }

func (r Regularization) Values() []enums.Enum {
	res := make([]enums.Enum, len(_RegularizationValues))
	for i, d := range _RegularizationValues {
		res[i] = d
	}
	return res
}

func (r Regularization) IsValid() bool {
	_, ok := _RegularizationMap[r]
	return ok
}

func (r Regularization) MarshalText() ([]byte, error) { return []byte(r.String()), nil }
func (r *Regularization) UnmarshalText(text []byte) error { return r.SetString(string(text)) }

var _ enums.Enum = NoRegularization
