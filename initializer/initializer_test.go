package initializer

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeededXavierIsReproducible(t *testing.T) {
	a := NewSeededXavier(5489)
	b := NewSeededXavier(5489)

	for i := 0; i < 100; i++ {
		assert.Equal(t, a.RandomWeight(10), b.RandomWeight(10))
	}
	for i := 0; i < 100; i++ {
		assert.Equal(t, a.RandomBias(), b.RandomBias())
	}
}

func TestXavierStandardDeviationApprox(t *testing.T) {
	x := NewSeededXavier(42)
	const n = 20000
	const weightsPerNeuron = 16
	var sum, sumSq float64
	for i := 0; i < n; i++ {
		w := float64(x.RandomWeight(weightsPerNeuron))
		sum += w
		sumSq += w * w
	}
	mean := sum / n
	variance := sumSq/n - mean*mean
	wantStdDev := 1.0 / math.Sqrt(weightsPerNeuron)
	assert.InDelta(t, 0, mean, 0.05)
	assert.InDelta(t, wantStdDev, math.Sqrt(variance), 0.05)
}

func TestUniformRange(t *testing.T) {
	u := NewSeededUniform(0.5, 7)
	for i := 0; i < 1000; i++ {
		w := u.RandomWeight(0)
		assert.GreaterOrEqual(t, w, float32(-0.5))
		assert.LessOrEqual(t, w, float32(0.5))
	}
}
