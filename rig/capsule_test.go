package rig

import (
	"testing"

	"github.com/binzume/splatrig/avatar"
	"github.com/binzume/splatrig/geom"
)

// testSkeleton builds a minimal humanoid: hips at 0.9, spine at 1.2,
// head at 1.55, with inverse bind matrices so the rest pose skins to
// identity.
func testSkeleton(t *testing.T) *avatar.Skeleton {
	t.Helper()
	ident := geom.Quaternion{W: 1}
	one := geom.Vector3{X: 1, Y: 1, Z: 1}
	bones := []avatar.Bone{
		{Name: "J_Hips", HumanName: "hips", Parent: -1, Translation: geom.Vector3{Y: 0.9}, Rotation: ident, Scale: one},
		{Name: "J_Spine", HumanName: "spine", Parent: 0, Translation: geom.Vector3{Y: 0.3}, Rotation: ident, Scale: one},
		{Name: "J_Head", HumanName: "head", Parent: 1, Translation: geom.Vector3{Y: 0.35}, Rotation: ident, Scale: one},
	}
	skel, err := avatar.NewSkeleton(bones)
	if err != nil {
		t.Fatal(err)
	}
	rest := skel.RestPose()
	for i := range skel.Bones {
		skel.Bones[i].InverseBind = rest.World[i].Inverse()
	}
	return skel
}

func TestBuildCapsules(t *testing.T) {
	skel := testSkeleton(t)
	pose := skel.RestPose()
	capsules := BuildCapsules(skel, pose, DefaultConfig().Segments)
	if len(capsules) != 1 {
		t.Fatalf("capsules = %d, want 1 (hips-spine only)", len(capsules))
	}
	c := capsules[0]
	if c.Bone != 1 {
		t.Errorf("capsule bone = %d, want 1 (child bone)", c.Bone)
	}
	if c.ColorIndex != 0 {
		t.Errorf("color index = %d, want 0", c.ColorIndex)
	}
	if len(c.Triangles) != capsuleRadialSegments*4 {
		t.Errorf("triangles = %d, want %d", len(c.Triangles), capsuleRadialSegments*4)
	}
	// all geometry must stay near the hips-spine segment
	mid := geom.NewVector3(0, 1.05, 0)
	for _, tri := range c.Triangles {
		for k := 0; k < 3; k++ {
			if tri[k].DistanceTo(mid) > 0.5 {
				t.Fatalf("triangle vertex %v too far from segment midpoint", tri[k])
			}
		}
	}
}

func TestBuildCapsulesSkipsMissingBones(t *testing.T) {
	skel := testSkeleton(t)
	pose := skel.RestPose()
	specs := []SegmentSpec{
		{Parent: "leftUpperArm", Child: "leftLowerArm", Radius: 0.05},
	}
	if capsules := BuildCapsules(skel, pose, specs); len(capsules) != 0 {
		t.Errorf("capsules = %d, want 0 for absent bones", len(capsules))
	}
}

func TestTessellateCapsuleDegenerate(t *testing.T) {
	p := geom.NewVector3(0, 1, 0)
	if tris := tessellateCapsule(p, p, 0.1, 1, 1); tris != nil {
		t.Errorf("zero-length segment produced %d triangles", len(tris))
	}
	if tris := tessellateCapsule(p, geom.NewVector3(0, 2, 0), 0, 1, 1); tris != nil {
		t.Errorf("zero radius produced %d triangles", len(tris))
	}
}

func TestTessellateCapsuleShortSegment(t *testing.T) {
	// distance smaller than 2r still yields a valid capsule
	tris := tessellateCapsule(geom.NewVector3(0, 0, 0), geom.NewVector3(0, 0.05, 0), 0.1, 1, 1)
	if len(tris) == 0 {
		t.Fatal("short segment produced no triangles")
	}
}
