package avatar

import (
	"math"
	"testing"

	"github.com/binzume/splatrig/geom"
)

// twoBoneSkeleton: root at origin, child 1m above, both identity rotation.
func twoBoneSkeleton(t *testing.T) *Skeleton {
	t.Helper()
	ident := geom.Quaternion{W: 1}
	one := geom.Vector3{X: 1, Y: 1, Z: 1}
	s, err := NewSkeleton([]Bone{
		{Name: "root", HumanName: "hips", Parent: -1, Rotation: ident, Scale: one},
		{Name: "child", HumanName: "spine", Parent: 0, Translation: geom.Vector3{Y: 1}, Rotation: ident, Scale: one},
	})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestRestPoseWorldMatrices(t *testing.T) {
	s := twoBoneSkeleton(t)
	pose := s.RestPose()

	if p := pose.BonePosition(0); p.Len() > 1e-6 {
		t.Error("root should be at origin: ", p)
	}
	if p := pose.BonePosition(1); p.Sub(geom.NewVector3(0, 1, 0)).Len() > 1e-6 {
		t.Error("child should be at (0,1,0): ", p)
	}
}

func TestHumanBoneLookup(t *testing.T) {
	s := twoBoneSkeleton(t)
	if s.HumanBone("spine") != 1 {
		t.Error("spine should map to bone 1")
	}
	if s.HumanBone("head") != -1 {
		t.Error("unmapped bone should be -1")
	}
}

func TestPoseWithLocalRotations(t *testing.T) {
	s := twoBoneSkeleton(t)
	// rotate root 90 deg around Z: child moves from (0,1,0) to (-1,0,0)
	rot := geom.NewQuaternionFromAxisAngle(geom.NewVector3(0, 0, 1), math.Pi/2)
	pose := s.PoseWithLocalRotations(map[int]*geom.Quaternion{0: rot})

	if p := pose.BonePosition(1); p.Sub(geom.NewVector3(-1, 0, 0)).Len() > 1e-5 {
		t.Error("rotated child position: ", p)
	}
}

func TestSkinMatrixBlend(t *testing.T) {
	s := twoBoneSkeleton(t)
	pose := s.RestPose()

	// half/half blend of two identity-skin bones stays identity
	m := pose.SkinMatrix([4]uint16{0, 1, 0, 0}, [4]float32{0.5, 0.5, 0, 0})
	v := m.ApplyTo(geom.NewVector3(1, 2, 3))
	// bone 1 has no inverse bind, so its skin matrix translates by (0,1,0)
	want := geom.NewVector3(1, 2.5, 3)
	if v.Sub(want).Len() > 1e-6 {
		t.Error("blended: ", v, "want", want)
	}
}

func TestNewSkeletonRejectsBadParent(t *testing.T) {
	_, err := NewSkeleton([]Bone{{Name: "a", Parent: 5}})
	if err == nil {
		t.Error("out of range parent should fail")
	}
	_, err = NewSkeleton([]Bone{{Name: "a", Parent: 0}})
	if err == nil {
		t.Error("self parent should fail")
	}
}

func TestNewSkeletonRejectsParentCycle(t *testing.T) {
	_, err := NewSkeleton([]Bone{
		{Name: "a", Parent: 1},
		{Name: "b", Parent: 0},
	})
	if err == nil {
		t.Error("two-bone cycle should fail")
	}
	_, err = NewSkeleton([]Bone{
		{Name: "root", Parent: -1},
		{Name: "a", Parent: 2},
		{Name: "b", Parent: 1},
	})
	if err == nil {
		t.Error("cycle off the root should fail")
	}
}

func TestMeshPosedPosition(t *testing.T) {
	s := twoBoneSkeleton(t)
	ibm := geom.NewTranslateMatrix4(0, -1, 0) // inverse bind of the child bone
	s.Bones[1].InverseBind = ibm

	mesh := &SkinnedMesh{
		Positions: []geom.Vector3{{X: 0.1, Y: 1, Z: 0}},
		Joints:    [][4]uint16{{1, 0, 0, 0}},
		Weights:   [][4]float32{{1, 0, 0, 0}},
	}
	pose := s.RestPose()
	p := mesh.PosedPosition(0, pose)
	if p.Sub(geom.NewVector3(0.1, 1, 0)).Len() > 1e-6 {
		t.Error("rest pose should reproduce the bind position: ", p)
	}
}
