package rig

import (
	"context"
	"math"
	"testing"

	"github.com/binzume/splatrig/geom"
	"github.com/binzume/splatrig/gsplat"
)

func TestDeformerIdentity(t *testing.T) {
	skel := testSkeleton(t)
	pose := skel.RestPose()
	mesh := testMesh()
	pools := map[int][]int{0: {0, 1, 2, 3}, 1: {4, 5, 6, 7}}

	cloud := gsplat.NewCloud(50)
	for i := range cloud.Splats {
		cloud.Splats[i].Position = geom.Vector3{X: 0.01 * float32(i%5), Y: 0.9 + 0.3*float32(i)/50}
		cloud.Splats[i].Rotation = geom.Quaternion{W: 1}
		cloud.Splats[i].Bone = i % 2
		cloud.Splats[i].Opacity = 1
	}
	if err := BindSplats(context.Background(), cloud, mesh, pose, geom.NewMatrix4(), pools, nil); err != nil {
		t.Fatal(err)
	}
	original := make([]geom.Vector3, cloud.Count())
	for i := range cloud.Splats {
		original[i] = cloud.Splats[i].Position
	}

	d := NewDeformer(mesh)
	if err := d.Bind(cloud, pose, geom.NewMatrix4()); err != nil {
		t.Fatal(err)
	}
	// applying the bind pose twice must reproduce the bind positions
	for n := 0; n < 2; n++ {
		if err := d.Apply(cloud, pose); err != nil {
			t.Fatal(err)
		}
	}
	for i := range cloud.Splats {
		if cloud.Splats[i].Position.DistanceTo(&original[i]) > 1e-5 {
			t.Fatalf("splat %d moved to %v from %v under the bind pose", i, cloud.Splats[i].Position, original[i])
		}
		if geom.Abs(cloud.Splats[i].Rotation.W-1) > 1e-5 {
			t.Fatalf("splat %d rotation drifted: %v", i, cloud.Splats[i].Rotation)
		}
	}
	if d.Skipped != 0 {
		t.Errorf("skipped = %d, want 0", d.Skipped)
	}
}

func TestDeformerRotation(t *testing.T) {
	skel := testSkeleton(t)
	rest := skel.RestPose()
	mesh := testMesh()

	cloud := gsplat.NewCloud(1)
	hips := rest.BonePosition(0)
	cloud.Splats[0].Position = *hips.Add(geom.NewVector3(0.2, 0, 0))
	cloud.Splats[0].Rotation = geom.Quaternion{W: 1}
	cloud.Splats[0].Opacity = 1
	cloud.Splats[0].Bone = 0
	if err := BindSplats(context.Background(), cloud, mesh, rest, geom.NewMatrix4(), map[int][]int{0: {0}}, nil); err != nil {
		t.Fatal(err)
	}

	d := NewDeformer(mesh)
	if err := d.Bind(cloud, rest, geom.NewMatrix4()); err != nil {
		t.Fatal(err)
	}

	// rotate the hips 90 degrees around Y; the splat orbits the bone and
	// its quaternion picks up the same rotation
	q := geom.NewQuaternionFromAxisAngle(geom.NewVector3(0, 1, 0), geom.Element(math.Pi/2))
	posed := skel.PoseWithLocalRotations(map[int]*geom.Quaternion{0: q})
	if err := d.Apply(cloud, posed); err != nil {
		t.Fatal(err)
	}

	// the splat orbits the hips: (0.2, 0.9, 0) rotates to (0, 0.9, -0.2)
	got := cloud.Splats[0].Position
	expect := geom.NewVector3(0, 0.9, -0.2)
	if got.DistanceTo(expect) > 1e-5 {
		t.Fatalf("position = %v, want %v", got, expect)
	}
	wantRot := posed.Skin[0].RotationQuaternion()
	if geom.Abs(geom.Abs(cloud.Splats[0].Rotation.Dot(wantRot))-1) > 1e-4 {
		t.Errorf("rotation = %v, want %v up to sign", cloud.Splats[0].Rotation, wantRot)
	}
}

func TestDeformerStateMachine(t *testing.T) {
	mesh := testMesh()
	cloud := gsplat.NewCloud(1)
	d := NewDeformer(mesh)
	if err := d.Apply(cloud, testSkeleton(t).RestPose()); !IsCode(err, CodePoseValidation) {
		t.Fatalf("apply before bind: err = %v, want PoseValidation", err)
	}
	pose := testSkeleton(t).RestPose()
	if err := d.Bind(cloud, pose, geom.NewMatrix4()); err != nil {
		t.Fatal(err)
	}
	if err := d.Bind(cloud, pose, geom.NewMatrix4()); !IsCode(err, CodePoseValidation) {
		t.Fatalf("second bind: err = %v, want PoseValidation", err)
	}
}

func TestDeformerSkipsUnbound(t *testing.T) {
	mesh := testMesh()
	pose := testSkeleton(t).RestPose()
	cloud := gsplat.NewCloud(3)
	cloud.Splats[0].Vertex = 0
	cloud.Splats[0].Opacity = 1
	cloud.Splats[1].Vertex = gsplat.Unassigned
	cloud.Splats[2].Vertex = 0
	cloud.Splats[2].Opacity = gsplat.CulledOpacity

	d := NewDeformer(mesh)
	if err := d.Bind(cloud, pose, geom.NewMatrix4()); err != nil {
		t.Fatal(err)
	}
	if err := d.Apply(cloud, pose); err != nil {
		t.Fatal(err)
	}
	if d.Skipped != 2 {
		t.Errorf("skipped = %d, want 2", d.Skipped)
	}
}
