package cutplan

import "math/rand/v2"

// RandomSource produces uniform values in [0, 1). Implementations are
// sequential state machines and must not be shared between goroutines.
type RandomSource interface {
	Float64() float64
}

// NewRandomSource returns a fresh PCG generator seeded with seed. Two
// sources built from the same seed produce identical streams, and the PCG
// output is fixed across Go releases, so recorded plans stay valid.
func NewRandomSource(seed int64) RandomSource {
	return rand.New(rand.NewPCG(uint64(seed), 0))
}

// Rand11 draws a value uniform in [-1, 1).
func Rand11(r RandomSource) float64 {
	return r.Float64()*2 - 1
}

// randVector draws a vector with each component uniform in [-1, 1).
// Components are drawn in X, Y, Z order.
func randVector(r RandomSource) (x, y, z float64) {
	x = Rand11(r)
	y = Rand11(r)
	z = Rand11(r)
	return x, y, z
}
