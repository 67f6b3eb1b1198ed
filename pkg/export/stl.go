// Package export writes tessellated meshes to files.
package export

import (
	"fmt"

	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/chazu/papercut/pkg/kernel"
)

// Triangles flattens indexed meshes back into sdfx triangles. Indices that
// point past the vertex array are an error.
func Triangles(meshes []*kernel.Mesh) ([]*sdf.Triangle3, error) {
	var n int
	for _, m := range meshes {
		n += m.TriangleCount()
	}
	out := make([]*sdf.Triangle3, 0, n)

	for _, m := range meshes {
		for i := 0; i+2 < len(m.Indices); i += 3 {
			var tri sdf.Triangle3
			for j := 0; j < 3; j++ {
				idx := m.Indices[i+j]
				p, ok := m.Vertex(idx)
				if !ok {
					return nil, fmt.Errorf("mesh %q: index %d out of range (%d vertices)", m.PartName, idx, m.VertexCount())
				}
				tri[j] = v3.Vec{X: p[0], Y: p[1], Z: p[2]}
			}
			out = append(out, &tri)
		}
	}
	return out, nil
}

// WriteSTL writes all meshes into one binary STL file and returns the
// number of triangles written.
func WriteSTL(path string, meshes []*kernel.Mesh) (int, error) {
	tris, err := Triangles(meshes)
	if err != nil {
		return 0, fmt.Errorf("export: %w", err)
	}
	if err := render.SaveSTL(path, tris); err != nil {
		return 0, fmt.Errorf("export: write %s: %w", path, err)
	}
	return len(tris), nil
}
