// Package gsplat provides 3D Gaussian splat records and point cloud I/O.
package gsplat

import (
	"github.com/binzume/splatrig/geom"
)

// Unassigned marks a splat that has not been classified or bound yet.
const Unassigned = -1

// CulledOpacity is the raw opacity logit written to splats that should
// render fully transparent. Culled splats keep their slot so persisted
// binding arrays stay index-aligned.
const CulledOpacity = -100

// Splat is a single anisotropic Gaussian primitive, stored as in the
// point cloud file: position in cloud object space, zeroth-order SH color
// coefficients, raw opacity logit, log scales, unit rotation quaternion.
type Splat struct {
	Position geom.Vector3
	Color    [3]float32
	Opacity  float32
	Scale    geom.Vector3
	Rotation geom.Quaternion

	// Binding state, populated by the rig pipeline.
	Bone       int // owning bone index, Unassigned until classified
	Vertex     int // bound mesh vertex index, Unassigned until bound
	Offset     geom.Vector3
	ColorIndex int // debug palette ordinal, Unassigned when not colored
}

// Cloud is an ordered splat array. Index order is significant: persisted
// binding arrays are parallel to it.
type Cloud struct {
	Splats []Splat
}

func NewCloud(n int) *Cloud {
	c := &Cloud{Splats: make([]Splat, n)}
	for i := range c.Splats {
		c.Splats[i].Bone = Unassigned
		c.Splats[i].Vertex = Unassigned
		c.Splats[i].ColorIndex = Unassigned
	}
	return c
}

func (c *Cloud) Count() int {
	return len(c.Splats)
}

// Subset copies the records at the given indices into a new cloud.
func (c *Cloud) Subset(indices []int) *Cloud {
	sub := &Cloud{Splats: make([]Splat, 0, len(indices))}
	for _, i := range indices {
		sub.Splats = append(sub.Splats, c.Splats[i])
	}
	return sub
}

// Cull makes the given splats fully transparent without removing them.
func (c *Cloud) Cull(indices []int) {
	for _, i := range indices {
		c.Splats[i].Opacity = CulledOpacity
	}
}

// Bounds returns the axis-aligned bounding box of all splat centers.
func (c *Cloud) Bounds() (*geom.Vector3, *geom.Vector3) {
	if len(c.Splats) == 0 {
		return geom.NewVector3(0, 0, 0), geom.NewVector3(0, 0, 0)
	}
	min := c.Splats[0].Position
	max := c.Splats[0].Position
	for i := range c.Splats {
		p := &c.Splats[i].Position
		if p.X < min.X {
			min.X = p.X
		}
		if p.Y < min.Y {
			min.Y = p.Y
		}
		if p.Z < min.Z {
			min.Z = p.Z
		}
		if p.X > max.X {
			max.X = p.X
		}
		if p.Y > max.Y {
			max.Y = p.Y
		}
		if p.Z > max.Z {
			max.Z = p.Z
		}
	}
	return &min, &max
}

// CentroidXZ returns the mean horizontal position of all splat centers.
func (c *Cloud) CentroidXZ() *geom.Vector2 {
	var x, z float64
	if len(c.Splats) == 0 {
		return geom.NewVector2(0, 0)
	}
	for i := range c.Splats {
		x += float64(c.Splats[i].Position.X)
		z += float64(c.Splats[i].Position.Z)
	}
	n := float64(len(c.Splats))
	return geom.NewVector2(float32(x/n), float32(z/n))
}
