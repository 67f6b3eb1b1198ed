package kernel

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrDegeneratePlane is returned for a plane with a zero or
	// non-finite normal.
	ErrDegeneratePlane = errors.New("kernel: degenerate cutting plane")

	// ErrPlaneMissesSolid is returned when the plane does not cross the
	// solid's bounding box.
	ErrPlaneMissesSolid = errors.New("kernel: cutting plane misses solid")
)

// Plane is a knife cut through Point with the given Normal. A positive
// Kerf removes a slab of that thickness centred on the plane.
type Plane struct {
	Point  [3]float64 `json:"point"`
	Normal [3]float64 `json:"normal"`
	Kerf   float64    `json:"kerf,omitempty"`
}

func dot(a, b [3]float64) float64 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

// Unit returns p with a unit-length normal.
func (p Plane) Unit() (Plane, error) {
	l := math.Sqrt(dot(p.Normal, p.Normal))
	if l < 1e-12 || math.IsNaN(l) || math.IsInf(l, 0) {
		return p, fmt.Errorf("%w: normal %v", ErrDegeneratePlane, p.Normal)
	}
	for i := range p.Normal {
		p.Normal[i] /= l
	}
	return p, nil
}

// Distance returns the signed distance of q from the plane. The normal
// must be unit length.
func (p Plane) Distance(q [3]float64) float64 {
	return dot(p.Normal, [3]float64{q[0] - p.Point[0], q[1] - p.Point[1], q[2] - p.Point[2]})
}

// PlaneIntersectsBox reports whether the plane through point with the
// given unit normal crosses the box [min, max]. Touching counts.
func PlaneIntersectsBox(min, max, point, normal [3]float64) bool {
	p := Plane{Point: point, Normal: normal}
	var center [3]float64
	reach := 0.0
	for i := 0; i < 3; i++ {
		center[i] = (min[i] + max[i]) / 2
		reach += (max[i] - min[i]) / 2 * math.Abs(normal[i])
	}
	return math.Abs(p.Distance(center)) <= reach
}

// PrepareCut normalises p and checks it against the bounds of s. Kernel
// implementations call it before cutting.
func PrepareCut(s Solid, p Plane) (Plane, error) {
	if p.Kerf < 0 || math.IsNaN(p.Kerf) {
		return p, fmt.Errorf("%w: kerf %v", ErrDegeneratePlane, p.Kerf)
	}
	u, err := p.Unit()
	if err != nil {
		return p, err
	}
	min, max := s.BoundingBox()
	if !PlaneIntersectsBox(min, max, u.Point, u.Normal) {
		return p, fmt.Errorf("%w: plane through %v misses box %v-%v", ErrPlaneMissesSolid, u.Point, min, max)
	}
	return u, nil
}
