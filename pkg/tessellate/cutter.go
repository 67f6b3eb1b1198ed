package tessellate

import (
	"github.com/chazu/papercut/pkg/cutplan"
	"github.com/chazu/papercut/pkg/kernel"
)

// kernelCutter applies descriptors to a world-space solid held by a
// kernel. A rejected cut leaves the solid as it was.
type kernelCutter struct {
	k     kernel.Kernel
	solid kernel.Solid
	kerf  float64
}

var _ cutplan.Cutter = (*kernelCutter)(nil)

// PlaneOf converts a descriptor to a kernel cutting plane.
func PlaneOf(d cutplan.Descriptor, kerf float64) kernel.Plane {
	return kernel.Plane{
		Point:  d.P1.Array(),
		Normal: d.Normal().Array(),
		Kerf:   kerf,
	}
}

func (c *kernelCutter) Cut(d cutplan.Descriptor) error {
	s, err := c.k.Cut(c.solid, PlaneOf(d, c.kerf))
	if err != nil {
		return err
	}
	c.solid = s
	return nil
}
