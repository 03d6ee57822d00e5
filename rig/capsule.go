package rig

import (
	"math"

	"github.com/binzume/splatrig/avatar"
	"github.com/binzume/splatrig/geom"
)

// BoneCapsule is a capped-cylinder proxy for one limb segment, tagged with
// the child bone's index. Triangles are in world space at the pose the
// capsule was built from; rebuild after any pose change.
type BoneCapsule struct {
	Bone       int
	Triangles  []geom.Triangle
	ColorIndex int
}

const capsuleRadialSegments = 8

// BuildCapsules builds one capsule per segment whose parent and child
// humanoid bones both exist in the skeleton. Bones missing from the table
// produce nothing; an empty result is a valid degenerate case.
func BuildCapsules(skel *avatar.Skeleton, pose *avatar.Pose, segments []SegmentSpec) []BoneCapsule {
	var capsules []BoneCapsule
	for _, seg := range segments {
		parent := skel.HumanBone(seg.Parent)
		child := skel.HumanBone(seg.Child)
		if parent < 0 || child < 0 {
			continue
		}
		p0 := pose.BonePosition(parent)
		p1 := pose.BonePosition(child)
		tris := tessellateCapsule(p0, p1, seg.Radius, seg.ScaleX, seg.ScaleZ)
		if tris == nil {
			continue
		}
		capsules = append(capsules, BoneCapsule{
			Bone:       child,
			Triangles:  tris,
			ColorIndex: len(capsules) % len(DebugPalette),
		})
	}
	return capsules
}

// tessellateCapsule meshes a capped cylinder from p0 to p1. The cylinder
// body is the joint distance minus twice the radius so adjacent capsules
// do not overlap at joints; the caps are triangle fans to the end points.
func tessellateCapsule(p0, p1 *geom.Vector3, radius, scaleX, scaleZ float32) []geom.Triangle {
	axis := p1.Sub(p0)
	dist := axis.Len()
	if dist <= 0 || radius <= 0 {
		return nil
	}
	if scaleX == 0 {
		scaleX = 1
	}
	if scaleZ == 0 {
		scaleZ = 1
	}
	length := dist - 2*radius
	if length <= 0 {
		length = dist * 0.5
	}

	mid := p0.Add(axis.Scale(0.5))
	rot := geom.NewQuaternionFromTo(geom.NewVector3(0, 1, 0), axis.Normalize())

	// two rings of radial vertices plus tip points on the axis
	half := length / 2
	ellipse := geom.NewVector3(radius*scaleX, 1, radius*scaleZ)
	ring := make([][2]*geom.Vector3, capsuleRadialSegments)
	for i := 0; i < capsuleRadialSegments; i++ {
		angle := 2 * math.Pi * float64(i) / capsuleRadialSegments
		rim := geom.NewVector3(geom.Element(math.Cos(angle)), 0, geom.Element(math.Sin(angle))).ScaleBy(ellipse)
		ring[i] = [2]*geom.Vector3{
			mid.Add(rot.ApplyTo(rim.Add(geom.NewVector3(0, -half, 0)))),
			mid.Add(rot.ApplyTo(rim.Add(geom.NewVector3(0, half, 0)))),
		}
	}
	tipBottom := mid.Add(rot.ApplyTo(geom.NewVector3(0, -half-radius, 0)))
	tipTop := mid.Add(rot.ApplyTo(geom.NewVector3(0, half+radius, 0)))

	var tris []geom.Triangle
	for i := 0; i < capsuleRadialSegments; i++ {
		j := (i + 1) % capsuleRadialSegments
		b0, t0 := ring[i][0], ring[i][1]
		b1, t1 := ring[j][0], ring[j][1]
		// side quad
		tris = append(tris,
			geom.Triangle{*b0, *b1, *t1},
			geom.Triangle{*b0, *t1, *t0})
		// caps
		tris = append(tris,
			geom.Triangle{*b1, *b0, *tipBottom},
			geom.Triangle{*t0, *t1, *tipTop})
	}
	return tris
}
