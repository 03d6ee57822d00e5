package rig

import (
	"context"
	"testing"

	"github.com/binzume/splatrig/avatar"
	"github.com/binzume/splatrig/geom"
	"github.com/binzume/splatrig/gsplat"
)

// testMesh is an 8-vertex strip along the hips-spine segment of
// testSkeleton: the lower half skinned to the hips, the upper to the spine.
func testMesh() *avatar.SkinnedMesh {
	mesh := &avatar.SkinnedMesh{}
	for i := 0; i < 8; i++ {
		bone := uint16(0)
		if i >= 4 {
			bone = 1
		}
		mesh.Positions = append(mesh.Positions, geom.Vector3{
			X: 0.02 * float32(i%2),
			Y: 0.9 + 0.3*float32(i)/7,
		})
		mesh.Joints = append(mesh.Joints, [4]uint16{bone})
		mesh.Weights = append(mesh.Weights, [4]float32{1})
	}
	return mesh
}

func TestBindSplatsBoneConsistency(t *testing.T) {
	skel := testSkeleton(t)
	pose := skel.RestPose()
	mesh := testMesh()
	pools := map[int][]int{
		0: {0, 1, 2, 3},
		1: {4, 5, 6, 7},
	}

	cloud := gsplat.NewCloud(100)
	for i := range cloud.Splats {
		cloud.Splats[i].Position = geom.Vector3{
			X: 0.05 * float32(i%3),
			Y: 0.85 + 0.4*float32(i)/100,
		}
		cloud.Splats[i].Bone = i % 2
	}
	if err := BindSplats(context.Background(), cloud, mesh, pose, geom.NewMatrix4(), pools, nil); err != nil {
		t.Fatal(err)
	}
	inPool := func(v int, pool []int) bool {
		for _, p := range pool {
			if p == v {
				return true
			}
		}
		return false
	}
	for i := range cloud.Splats {
		s := &cloud.Splats[i]
		if s.Vertex == gsplat.Unassigned {
			t.Fatalf("splat %d left unbound", i)
		}
		if !inPool(s.Vertex, pools[s.Bone]) {
			t.Fatalf("splat %d bound to vertex %d outside bone %d pool", i, s.Vertex, s.Bone)
		}
	}
}

func TestBindSplatsFastStride(t *testing.T) {
	skel := testSkeleton(t)
	pose := skel.RestPose()
	mesh := testMesh()
	pools := map[int][]int{
		0: {0, 1, 2, 3},
		1: {4, 5, 6, 7},
	}

	cloud := gsplat.NewCloud(40)
	for i := range cloud.Splats {
		cloud.Splats[i].Position = geom.Vector3{Y: 0.85 + 0.4*float32(i)/40}
		cloud.Splats[i].Bone = i % 2
	}
	// this splat sits exactly on vertex 1, which fast mode never samples
	cloud.Splats[0].Position = mesh.Positions[1]
	cloud.Splats[0].Bone = 0

	opts := &ClassifyOptions{Fast: true}
	if err := BindSplats(context.Background(), cloud, mesh, pose, geom.NewMatrix4(), pools, opts); err != nil {
		t.Fatal(err)
	}
	for i := range cloud.Splats {
		s := &cloud.Splats[i]
		if s.Vertex == gsplat.Unassigned {
			t.Fatalf("splat %d left unbound", i)
		}
		// stride 3 only visits pool positions 0 and 3
		if s.Bone == 0 && s.Vertex != 0 && s.Vertex != 3 {
			t.Fatalf("splat %d bound to unsampled vertex %d", i, s.Vertex)
		}
		if s.Bone == 1 && s.Vertex != 4 && s.Vertex != 7 {
			t.Fatalf("splat %d bound to unsampled vertex %d", i, s.Vertex)
		}
		if s.Bone != i%2 {
			t.Fatalf("splat %d changed bone to %d", i, s.Bone)
		}
	}
	if cloud.Splats[0].Vertex != 0 {
		t.Errorf("splat on vertex 1 bound to %d, want the nearest sampled vertex 0",
			cloud.Splats[0].Vertex)
	}
}

func TestBindSplatsOffset(t *testing.T) {
	skel := testSkeleton(t)
	pose := skel.RestPose()
	mesh := testMesh()
	pools := map[int][]int{0: {0}}

	// rest pose skins to identity, so the offset is the world-space delta
	cloud := gsplat.NewCloud(1)
	cloud.Splats[0].Position = geom.Vector3{X: 0.1, Y: 0.95, Z: 0.03}
	cloud.Splats[0].Bone = 0
	if err := BindSplats(context.Background(), cloud, mesh, pose, geom.NewMatrix4(), pools, nil); err != nil {
		t.Fatal(err)
	}
	want := cloud.Splats[0].Position.Sub(&mesh.Positions[0])
	if cloud.Splats[0].Offset.DistanceTo(want) > 1e-5 {
		t.Errorf("offset = %v, want %v", cloud.Splats[0].Offset, want)
	}
}

func TestBindSplatsEmptyPoolFallback(t *testing.T) {
	skel := testSkeleton(t)
	pose := skel.RestPose()
	mesh := testMesh()
	pools := map[int][]int{1: {4, 5, 6, 7}}

	cloud := gsplat.NewCloud(1)
	cloud.Splats[0].Position = geom.Vector3{Y: 1.2}
	cloud.Splats[0].Bone = 0 // no pool for bone 0
	if err := BindSplats(context.Background(), cloud, mesh, pose, geom.NewMatrix4(), pools, nil); err != nil {
		t.Fatal(err)
	}
	if cloud.Splats[0].Bone != 1 {
		t.Errorf("fallback bone = %d, want 1 (adopted from nearest vertex)", cloud.Splats[0].Bone)
	}
	if cloud.Splats[0].Vertex < 4 {
		t.Errorf("fallback vertex = %d, want one from bone 1's pool", cloud.Splats[0].Vertex)
	}
}

func TestBindSplatsSkeletonOnly(t *testing.T) {
	skel := testSkeleton(t)
	cloud := gsplat.NewCloud(5)
	if err := BindSplats(context.Background(), cloud, &avatar.SkinnedMesh{}, skel.RestPose(), geom.NewMatrix4(), nil, nil); err != nil {
		t.Fatal(err)
	}
	for i := range cloud.Splats {
		if cloud.Splats[i].Vertex != 0 {
			t.Fatalf("splat %d vertex = %d, want 0", i, cloud.Splats[i].Vertex)
		}
		if cloud.Splats[i].Offset.Len() != 0 {
			t.Fatalf("splat %d offset = %v, want zero", i, cloud.Splats[i].Offset)
		}
	}
}

func TestCullByDistance(t *testing.T) {
	skel := testSkeleton(t)
	pose := skel.RestPose()
	mesh := testMesh()

	cloud := gsplat.NewCloud(2)
	cloud.Splats[0].Position = mesh.Positions[0]
	cloud.Splats[0].Bone = 0
	cloud.Splats[0].Vertex = 0
	cloud.Splats[0].Opacity = 1
	cloud.Splats[1].Position = *mesh.Positions[0].Add(geom.NewVector3(2, 0, 0))
	cloud.Splats[1].Bone = 0
	cloud.Splats[1].Vertex = 0
	cloud.Splats[1].Opacity = 1

	n := CullByDistance(cloud, mesh, pose, geom.NewMatrix4(), skel, DefaultConfig())
	if n != 1 {
		t.Fatalf("culled = %d, want 1", n)
	}
	if cloud.Splats[0].Opacity != 1 {
		t.Error("near splat was culled")
	}
	if cloud.Splats[1].Opacity != gsplat.CulledOpacity {
		t.Error("far splat kept its opacity")
	}
	if cloud.Count() != 2 {
		t.Error("culling must not remove records")
	}
}
