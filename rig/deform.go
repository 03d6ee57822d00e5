package rig

import (
	"math"

	"github.com/binzume/splatrig/avatar"
	"github.com/binzume/splatrig/geom"
	"github.com/binzume/splatrig/gsplat"
)

// Deformer re-evaluates splat positions and orientations from the current
// skeleton pose. Bind captures per-splat rest state once; Apply recomputes
// every splat from that rest state, so repeated calls never accumulate
// error and a pose equal to the bind pose reproduces the bind positions
// exactly.
type Deformer struct {
	mesh  *avatar.SkinnedMesh
	bound bool

	// per-splat rest state, in the bound vertex's rest mesh space
	restLocal []geom.Vector3
	localRot  []geom.Quaternion
	restScale []geom.Vector3
	scaleBias geom.Element

	// Skipped counts the splats left untouched by the last Apply
	// because they were never bound or were culled.
	Skipped int
}

func NewDeformer(mesh *avatar.SkinnedMesh) *Deformer {
	return &Deformer{mesh: mesh}
}

// Bind snapshots the rest state of every bound splat against the given
// measurement pose. toWorld maps cloud object space to the skeleton's
// space; a uniform scale in it is folded into the splat log scales.
// Binding is one-way: a bound deformer cannot be rebound.
func (d *Deformer) Bind(cloud *gsplat.Cloud, pose *avatar.Pose, toWorld *geom.Matrix4) error {
	if d.bound {
		return newErrorf(CodePoseValidation, "deformer already bound")
	}
	_, worldRot, worldScale := toWorld.Decompose()
	d.scaleBias = geom.Element(math.Log(float64(worldScale.X)))
	n := cloud.Count()
	d.restLocal = make([]geom.Vector3, n)
	d.localRot = make([]geom.Quaternion, n)
	d.restScale = make([]geom.Vector3, n)
	for i := range cloud.Splats {
		s := &cloud.Splats[i]
		d.restScale[i] = s.Scale
		if s.Vertex == gsplat.Unassigned {
			continue
		}
		skin := d.mesh.VertexSkinMatrix(s.Vertex, pose)
		d.restLocal[i] = *skin.Inverse().ApplyTo(toWorld.ApplyTo(&s.Position))
		skinRot := skin.RotationQuaternion()
		d.localRot[i] = *skinRot.Inverse().Mul(worldRot).Mul(&s.Rotation)
	}
	d.bound = true
	return nil
}

// Apply writes posed world-space positions, rotations and scales into the
// cloud. Unbound or culled splats are skipped and counted. Never produces
// NaN: a degenerate skin matrix leaves the splat at its last position.
func (d *Deformer) Apply(cloud *gsplat.Cloud, pose *avatar.Pose) error {
	if !d.bound {
		return newErrorf(CodePoseValidation, "deformer not bound")
	}
	if cloud.Count() != len(d.restLocal) {
		return newErrorf(CodePoseValidation, "cloud size %d does not match bound size %d", cloud.Count(), len(d.restLocal))
	}
	skipped := 0
	for i := range cloud.Splats {
		s := &cloud.Splats[i]
		if s.Vertex == gsplat.Unassigned || s.Opacity <= gsplat.CulledOpacity {
			skipped++
			continue
		}
		skin := d.mesh.VertexSkinMatrix(s.Vertex, pose)
		p := skin.ApplyTo(&d.restLocal[i])
		if isNaN32(p.X) || isNaN32(p.Y) || isNaN32(p.Z) {
			skipped++
			continue
		}
		s.Position = *p
		s.Rotation = *skin.RotationQuaternion().Mul(&d.localRot[i])
		s.Scale = *d.restScale[i].Add(&geom.Vector3{X: d.scaleBias, Y: d.scaleBias, Z: d.scaleBias})
	}
	d.Skipped = skipped
	return nil
}

func isNaN32(v geom.Element) bool {
	return v != v
}
