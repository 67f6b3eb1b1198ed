// Package cutplan samples random cutting planes that are guaranteed to
// pass through a solid's bounding volume. Each plan is a deterministic
// function of the object's extent, its world matrix, an iteration count
// and a seed. Applying the cuts is left to a Cutter.
package cutplan

import (
	"math"

	"github.com/pkg/errors"

	"github.com/chazu/papercut/pkg/vecmath"
)

const (
	// DefaultOffsetFactor scales the bounding radius to get the distance
	// the plane origin is pushed out by.
	DefaultOffsetFactor = 4.0

	// DefaultMaxBasisAttempts bounds the redraws of a degenerate basis
	// within one iteration.
	DefaultMaxBasisAttempts = 8
)

// Extent is an object's local axis-aligned bounding box.
type Extent struct {
	Center vecmath.Vector3 `json:"center"`
	Radius vecmath.Vector3 `json:"radius"` // half-extents per axis
}

// ExtentFromBounds converts min/max corners, as returned by
// kernel.Solid.BoundingBox, to an Extent.
func ExtentFromBounds(min, max [3]float64) Extent {
	lo := vecmath.FromArray(min)
	hi := vecmath.FromArray(max)
	return Extent{
		Center: lo.Add(hi).Scale(0.5),
		Radius: hi.Sub(lo).Scale(0.5),
	}
}

// BoundingRadius is the radius of the sphere enclosing the box.
func (e Extent) BoundingRadius() float64 {
	return e.Radius.Length()
}

// Validate rejects negative or non-finite components.
func (e Extent) Validate() error {
	if !e.Center.IsFinite() || !e.Radius.IsFinite() {
		return errors.Wrapf(ErrInvalidArgument, "extent %v/%v is not finite", e.Center, e.Radius)
	}
	if e.Radius.X < 0 || e.Radius.Y < 0 || e.Radius.Z < 0 {
		return errors.Wrapf(ErrInvalidArgument, "extent radius %v has a negative component", e.Radius)
	}
	return nil
}

// Descriptor is one cutting plane in world space: the plane through P1
// spanned by N1 and N2. P2 equals P1; both are kept so the descriptor maps
// directly onto knife tools that take two points and two directions.
type Descriptor struct {
	P1 vecmath.Vector3 `json:"p1"`
	P2 vecmath.Vector3 `json:"p2"`
	N1 vecmath.Vector3 `json:"n1"`
	N2 vecmath.Vector3 `json:"n2"`
}

// Normal returns N1 × N2, the plane normal (not normalized).
func (d Descriptor) Normal() vecmath.Vector3 {
	return d.N1.Cross(d.N2)
}

// Sampler generates cut plans. The zero value is not usable; use
// NewSampler or fill every field.
type Sampler struct {
	// OffsetFactor multiplies the bounding radius |Extent.Radius| to get
	// the push-out distance of each plane origin.
	OffsetFactor float64

	// MaxBasisAttempts bounds basis redraws per iteration.
	MaxBasisAttempts int
}

// NewSampler returns a Sampler with the default policy.
func NewSampler() *Sampler {
	return &Sampler{
		OffsetFactor:     DefaultOffsetFactor,
		MaxBasisAttempts: DefaultMaxBasisAttempts,
	}
}

func (s *Sampler) validate(extent Extent, iterations int) error {
	if iterations < 0 {
		return errors.Wrapf(ErrInvalidArgument, "iterations = %d", iterations)
	}
	if s.OffsetFactor <= 0 || math.IsNaN(s.OffsetFactor) || math.IsInf(s.OffsetFactor, 0) {
		return errors.Wrapf(ErrInvalidArgument, "offset factor = %v", s.OffsetFactor)
	}
	if s.MaxBasisAttempts < 1 {
		return errors.Wrapf(ErrInvalidArgument, "max basis attempts = %d", s.MaxBasisAttempts)
	}
	return extent.Validate()
}

// Sample returns iterations descriptors for the object described by
// extent and world. The same inputs always yield the same descriptors:
// every call seeds its own RandomSource.
//
// Arguments are checked before anything is drawn. A degenerate basis is
// redrawn up to MaxBasisAttempts times before the call fails.
//
// The push-out distance is measured in local units. Plane origins clear the
// world-space bounding sphere only when world is rigid or scales uniformly.
// Under a non-uniform scale the clearance shrinks to the smallest axis
// scale times the local bounding radius, though every plane still passes
// through the object's box.
func (s *Sampler) Sample(extent Extent, world vecmath.Matrix4, iterations int, seed int64) ([]Descriptor, error) {
	if err := s.validate(extent, iterations); err != nil {
		return nil, err
	}
	return s.sample(NewRandomSource(seed), extent, world, iterations)
}

// SampleFrom is Sample with a caller-supplied source. The source is
// consumed in a fixed order: three midpoint draws, then six draws per
// basis attempt, for every iteration.
func (s *Sampler) SampleFrom(r RandomSource, extent Extent, world vecmath.Matrix4, iterations int) ([]Descriptor, error) {
	if err := s.validate(extent, iterations); err != nil {
		return nil, err
	}
	return s.sample(r, extent, world, iterations)
}

func (s *Sampler) sample(r RandomSource, extent Extent, world vecmath.Matrix4, iterations int) ([]Descriptor, error) {
	offsetDistance := extent.BoundingRadius() * s.OffsetFactor
	descs := make([]Descriptor, 0, iterations)

	for i := 0; i < iterations; i++ {
		midpoint := extent.Center.Add(extent.Radius.MulElem(vecmath.Vec(randVector(r))))

		b, err := s.drawBasis(r)
		if err != nil {
			return nil, errors.Wrapf(err, "iteration %d", i)
		}

		// The push-out direction lies in the plane spanned by V1 and V2, so
		// the plane keeps passing through midpoint while its origin moves
		// clear of the bounding sphere.
		direction := b.V1.Add(b.V2).Scale(0.5)
		local := vecmath.Matrix4{
			Off: midpoint.Sub(direction.Scale(offsetDistance)),
			V1:  b.V1,
			V2:  b.V2,
			V3:  b.V2.Cross(b.V1),
		}.Normalized()

		w := world.Mul(local)
		descs = append(descs, Descriptor{P1: w.Off, P2: w.Off, N1: w.V1, N2: w.V2})
	}

	return descs, nil
}

func (s *Sampler) drawBasis(r RandomSource) (Basis, error) {
	var err error
	for attempt := 0; attempt < s.MaxBasisAttempts; attempt++ {
		var b Basis
		b, err = GenerateBasis(r)
		if err == nil {
			return b, nil
		}
	}
	return Basis{}, errors.Wrapf(err, "gave up after %d attempts", s.MaxBasisAttempts)
}
