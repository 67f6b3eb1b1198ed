package sdfx

import (
	"errors"
	"math"
	"testing"

	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/chazu/papercut/pkg/kernel"
)

func TestBox(t *testing.T) {
	k := New()
	box := k.Box(100, 50, 25)
	mesh, err := k.ToMesh(box)
	if err != nil {
		t.Fatalf("ToMesh failed: %v", err)
	}
	if mesh.IsEmpty() {
		t.Fatal("mesh is empty")
	}
	if mesh.VertexCount() == 0 {
		t.Fatal("expected non-zero vertex count")
	}
	triCount := mesh.TriangleCount()
	if triCount == 0 {
		t.Fatal("expected non-zero triangle count")
	}
	// A box should produce exactly 12 triangles (2 per face, 6 faces).
	if triCount != 12 {
		t.Logf("box triangle count: %d (expected 12)", triCount)
	}
	// Verify vertex and index array sizes are consistent.
	if len(mesh.Vertices) != len(mesh.Normals) {
		t.Fatalf("vertices length %d != normals length %d", len(mesh.Vertices), len(mesh.Normals))
	}
	if len(mesh.Indices) != triCount*3 {
		t.Fatalf("indices length %d != triCount*3 %d", len(mesh.Indices), triCount*3)
	}
}

func TestCylinder(t *testing.T) {
	k := New()
	cyl := k.Cylinder(50, 10, 32)
	mesh, err := k.ToMesh(cyl)
	if err != nil {
		t.Fatalf("ToMesh failed: %v", err)
	}
	if mesh.IsEmpty() {
		t.Fatal("mesh is empty")
	}
	if mesh.TriangleCount() == 0 {
		t.Fatal("expected non-zero triangle count")
	}
	t.Logf("cylinder triangle count: %d", mesh.TriangleCount())
}

func TestDifference(t *testing.T) {
	k := New()

	box := k.Box(100, 100, 100)
	boxMesh, err := k.ToMesh(box)
	if err != nil {
		t.Fatalf("ToMesh(box) failed: %v", err)
	}

	cyl := k.Cylinder(120, 20, 32)
	diff := k.Difference(box, cyl)
	diffMesh, err := k.ToMesh(diff)
	if err != nil {
		t.Fatalf("ToMesh(diff) failed: %v", err)
	}
	if diffMesh.IsEmpty() {
		t.Fatal("difference mesh is empty")
	}
	// A box with a hole should have more triangles than a plain box.
	if diffMesh.TriangleCount() <= boxMesh.TriangleCount() {
		t.Fatalf("difference (%d triangles) should have more triangles than box (%d triangles)",
			diffMesh.TriangleCount(), boxMesh.TriangleCount())
	}
	t.Logf("box triangles: %d, difference triangles: %d", boxMesh.TriangleCount(), diffMesh.TriangleCount())
}

func TestUnion(t *testing.T) {
	k := New()
	box1 := k.Box(50, 50, 50)
	box2 := k.Translate(k.Box(50, 50, 50), 30, 0, 0)
	u := k.Union(box1, box2)
	mesh, err := k.ToMesh(u)
	if err != nil {
		t.Fatalf("ToMesh failed: %v", err)
	}
	if mesh.IsEmpty() {
		t.Fatal("union mesh is empty")
	}
	t.Logf("union triangle count: %d", mesh.TriangleCount())
}

func TestTranslate(t *testing.T) {
	k := New()
	box := k.Box(10, 10, 10)
	translated := k.Translate(box, 100, 200, 300)

	min, max := translated.BoundingBox()

	// Translated box(10,10,10) by (100,200,300) should be centered at (100,200,300).
	// So bounds should be approximately (95,195,295) to (105,205,305).
	const tol = 0.5
	expectMin := [3]float64{95, 195, 295}
	expectMax := [3]float64{105, 205, 305}

	for i := 0; i < 3; i++ {
		if math.Abs(min[i]-expectMin[i]) > tol {
			t.Errorf("min[%d] = %f, expected ~%f", i, min[i], expectMin[i])
		}
		if math.Abs(max[i]-expectMax[i]) > tol {
			t.Errorf("max[%d] = %f, expected ~%f", i, max[i], expectMax[i])
		}
	}
}

func TestBoundingBox(t *testing.T) {
	k := New()
	box := k.Box(100, 50, 25)
	min, max := box.BoundingBox()

	const tol = 0.01
	expectMin := [3]float64{-50, -25, -12.5}
	expectMax := [3]float64{50, 25, 12.5}

	for i := 0; i < 3; i++ {
		if math.Abs(min[i]-expectMin[i]) > tol {
			t.Errorf("min[%d] = %f, expected %f", i, min[i], expectMin[i])
		}
		if math.Abs(max[i]-expectMax[i]) > tol {
			t.Errorf("max[%d] = %f, expected %f", i, max[i], expectMax[i])
		}
	}
}

func TestIntersection(t *testing.T) {
	k := New()
	box1 := k.Box(100, 100, 100)
	box2 := k.Translate(k.Box(100, 100, 100), 50, 0, 0)
	inter := k.Intersection(box1, box2)
	mesh, err := k.ToMesh(inter)
	if err != nil {
		t.Fatalf("ToMesh failed: %v", err)
	}
	if mesh.IsEmpty() {
		t.Fatal("intersection mesh is empty")
	}
	t.Logf("intersection triangle count: %d", mesh.TriangleCount())
}

func TestRotate(t *testing.T) {
	k := New()
	box := k.Box(100, 10, 10)

	// A long box along X rotated 90 degrees around Z should extend along Y instead.
	rotated := k.Rotate(box, 0, 0, 90)
	min, max := rotated.BoundingBox()

	// After 90-degree Z rotation, the X extent should be small and Y extent large.
	xExtent := max[0] - min[0]
	yExtent := max[1] - min[1]

	const tol = 1.0
	if math.Abs(xExtent-10) > tol {
		t.Errorf("rotated X extent = %f, expected ~10", xExtent)
	}
	if math.Abs(yExtent-100) > tol {
		t.Errorf("rotated Y extent = %f, expected ~100", yExtent)
	}
}

func TestSphere(t *testing.T) {
	k := NewWithCells(40)
	ball := k.Sphere(10)
	min, max := ball.BoundingBox()
	for i := 0; i < 3; i++ {
		if math.Abs(min[i]+10) > 0.01 || math.Abs(max[i]-10) > 0.01 {
			t.Errorf("axis %d bounds = [%f, %f], want [-10, 10]", i, min[i], max[i])
		}
	}
	mesh, err := k.ToMesh(ball)
	if err != nil {
		t.Fatalf("ToMesh failed: %v", err)
	}
	if mesh.IsEmpty() {
		t.Fatal("sphere mesh is empty")
	}
}

func TestNewWithCells(t *testing.T) {
	if got := NewWithCells(0).cells; got != DefaultMeshCells {
		t.Errorf("NewWithCells(0).cells = %d, want %d", got, DefaultMeshCells)
	}
	coarse, err := NewWithCells(16).ToMesh(NewWithCells(16).Sphere(5))
	if err != nil {
		t.Fatalf("ToMesh failed: %v", err)
	}
	fine, err := NewWithCells(64).ToMesh(NewWithCells(64).Sphere(5))
	if err != nil {
		t.Fatalf("ToMesh failed: %v", err)
	}
	if fine.TriangleCount() <= coarse.TriangleCount() {
		t.Errorf("64 cells gave %d triangles, 16 cells gave %d", fine.TriangleCount(), coarse.TriangleCount())
	}
}

func TestCutWithKerfOpensSlab(t *testing.T) {
	k := NewWithCells(40)
	box := k.Box(20, 20, 20)

	cut, err := k.Cut(box, kernel.Plane{Normal: [3]float64{0, 0, 2}, Kerf: 2})
	if err != nil {
		t.Fatalf("Cut failed: %v", err)
	}

	s := unwrap(cut)
	// The centre sits in the removed slab, points either side stay solid.
	if d := s.Evaluate(v3.Vec{}); d <= 0 {
		t.Errorf("centre distance = %f, want outside (> 0)", d)
	}
	for _, z := range []float64{-5, 5} {
		if d := s.Evaluate(v3.Vec{Z: z}); d >= 0 {
			t.Errorf("distance at z=%g is %f, want inside (< 0)", z, d)
		}
	}

	mesh, err := k.ToMesh(cut)
	if err != nil {
		t.Fatalf("ToMesh failed: %v", err)
	}
	if mesh.IsEmpty() {
		t.Fatal("cut mesh is empty")
	}
}

func TestCutWithoutKerfKeepsVolume(t *testing.T) {
	k := NewWithCells(40)
	box := k.Box(20, 20, 20)

	cut, err := k.Cut(box, kernel.Plane{Point: [3]float64{3, 0, 0}, Normal: [3]float64{1, 1, 0}})
	if err != nil {
		t.Fatalf("Cut failed: %v", err)
	}
	s := unwrap(cut)
	for _, p := range []v3.Vec{{X: -5}, {X: 5}, {Y: 7, Z: -7}} {
		if d := s.Evaluate(p); d >= 0 {
			t.Errorf("distance at %v is %f, want inside (< 0)", p, d)
		}
	}
}

func TestCutFailures(t *testing.T) {
	k := New()
	box := k.Box(10, 10, 10)
	tests := []struct {
		name  string
		plane kernel.Plane
		want  error
	}{
		{"zero normal", kernel.Plane{}, kernel.ErrDegeneratePlane},
		{"misses", kernel.Plane{Point: [3]float64{0, 0, 50}, Normal: [3]float64{0, 0, 1}}, kernel.ErrPlaneMissesSolid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := k.Cut(box, tt.plane)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Cut() error = %v, want %v", err, tt.want)
			}
			if got != box {
				t.Error("failed Cut should return the solid unchanged")
			}
		})
	}
}
