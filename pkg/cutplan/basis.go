package cutplan

import (
	"github.com/chazu/papercut/pkg/vecmath"
)

// DegenerateEpsilon is the squared-length threshold below which a drawn or
// crossed vector is treated as zero.
const DegenerateEpsilon = 1e-12

// Basis is an orthonormal set of three vectors.
type Basis struct {
	V1, V2, V3 vecmath.Vector3
}

// Handedness returns +1 when V3 = V1 × V2 and -1 when V3 = V2 × V1.
// GenerateBasis always produces -1, the left-handed frame of the host
// modeling package the cut plans were designed for.
func (b Basis) Handedness() int {
	if b.V1.Cross(b.V2).Dot(b.V3) >= 0 {
		return 1
	}
	return -1
}

// GenerateBasis draws a random orthonormal basis from r. It consumes
// exactly six values: a, then b, then v3 = a × b, v2 = a × v3, v1 = a.
// If the draw is degenerate it returns ErrDegenerateBasis and the caller
// may draw again.
func GenerateBasis(r RandomSource) (Basis, error) {
	a := vecmath.Vec(randVector(r))
	b := vecmath.Vec(randVector(r))

	v3 := a.Cross(b)
	if a.IsNearZero(DegenerateEpsilon) || v3.IsNearZero(DegenerateEpsilon) {
		return Basis{}, ErrDegenerateBasis
	}
	v2 := a.Cross(v3)

	return Basis{
		V1: a.Normalize(),
		V2: v2.Normalize(),
		V3: v3.Normalize(),
	}, nil
}
