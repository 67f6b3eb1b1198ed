package vecmath

import (
	"github.com/go-gl/mathgl/mgl64"
)

// Matrix4 is an affine transform described by an origin and three basis
// vectors. A point p maps to Off + V1*p.X + V2*p.Y + V3*p.Z.
type Matrix4 struct {
	Off Vector3 `json:"off"`
	V1  Vector3 `json:"v1"`
	V2  Vector3 `json:"v2"`
	V3  Vector3 `json:"v3"`
}

// Identity returns the identity transform.
func Identity() Matrix4 {
	return Matrix4{
		V1: Vector3{X: 1},
		V2: Vector3{Y: 1},
		V3: Vector3{Z: 1},
	}
}

// Translation returns a pure translation by v.
func Translation(v Vector3) Matrix4 {
	m := Identity()
	m.Off = v
	return m
}

// RotationEuler returns a rotation by Euler angles in degrees, applied
// X first, then Y, then Z. This matches kernel.Kernel.Rotate.
func RotationEuler(degX, degY, degZ float64) Matrix4 {
	rx := mgl64.HomogRotate3DX(mgl64.DegToRad(degX))
	ry := mgl64.HomogRotate3DY(mgl64.DegToRad(degY))
	rz := mgl64.HomogRotate3DZ(mgl64.DegToRad(degZ))
	return FromMat4(rz.Mul4(ry).Mul4(rx))
}

// Scaling returns a scale transform along each axis.
func Scaling(s Vector3) Matrix4 {
	return Matrix4{
		V1: Vector3{X: s.X},
		V2: Vector3{Y: s.Y},
		V3: Vector3{Z: s.Z},
	}
}

// FromMat4 converts a column-major mgl64.Mat4. The projective row is ignored.
func FromMat4(m mgl64.Mat4) Matrix4 {
	return Matrix4{
		V1:  FromMgl(m.Col(0).Vec3()),
		V2:  FromMgl(m.Col(1).Vec3()),
		V3:  FromMgl(m.Col(2).Vec3()),
		Off: FromMgl(m.Col(3).Vec3()),
	}
}

// Mat4 converts to a column-major mgl64.Mat4 with Off in the last column.
func (m Matrix4) Mat4() mgl64.Mat4 {
	return mgl64.Mat4FromCols(
		m.V1.Mgl().Vec4(0),
		m.V2.Mgl().Vec4(0),
		m.V3.Mgl().Vec4(0),
		m.Off.Mgl().Vec4(1),
	)
}

// Mul composes two transforms. The result applies b first, then m.
func (m Matrix4) Mul(b Matrix4) Matrix4 {
	return FromMat4(m.Mat4().Mul4(b.Mat4()))
}

// MulPoint transforms a point, including the translation.
func (m Matrix4) MulPoint(p Vector3) Vector3 {
	return m.Off.Add(m.MulDirection(p))
}

// MulDirection transforms a direction, ignoring the translation.
func (m Matrix4) MulDirection(d Vector3) Vector3 {
	return m.V1.Scale(d.X).Add(m.V2.Scale(d.Y)).Add(m.V3.Scale(d.Z))
}

// Determinant of the 3x3 basis part.
func (m Matrix4) Determinant() float64 {
	return m.Mat4().Det()
}

// Normalized returns a transform with the same origin and an orthonormal
// basis. V1 keeps its direction, V2 is orthogonalized against V1, and V3
// is rebuilt perpendicular to both while keeping the side it was on.
func (m Matrix4) Normalized() Matrix4 {
	v1 := m.V1.Normalize()
	v2 := m.V2.Sub(v1.Scale(v1.Dot(m.V2))).Normalize()
	v3 := v1.Cross(v2)
	if m.V3.Dot(v3) < 0 {
		v3 = v3.Scale(-1)
	}
	return Matrix4{Off: m.Off, V1: v1, V2: v2, V3: v3.Normalize()}
}

// ApproxEqual compares all four columns within tol.
func (m Matrix4) ApproxEqual(o Matrix4, tol float64) bool {
	return m.Off.ApproxEqual(o.Off, tol) &&
		m.V1.ApproxEqual(o.V1, tol) &&
		m.V2.ApproxEqual(o.V2, tol) &&
		m.V3.ApproxEqual(o.V3, tol)
}
