package gsplat

import (
	"bytes"
	"testing"

	"github.com/binzume/splatrig/geom"
)

func testCloud(n int) *Cloud {
	cloud := NewCloud(n)
	for i := range cloud.Splats {
		s := &cloud.Splats[i]
		s.Position = geom.Vector3{X: float32(i), Y: float32(i) * 0.5, Z: -float32(i)}
		s.Color = [3]float32{0.1, 0.2, 0.3}
		s.Opacity = float32(i) * 0.01
		s.Scale = geom.Vector3{X: -4, Y: -5, Z: -6}
		s.Rotation = geom.Quaternion{X: 0, Y: 0, Z: 0, W: 1}
	}
	return cloud
}

func TestPLYRoundTrip(t *testing.T) {
	cloud := testCloud(100)

	var buf bytes.Buffer
	if err := Write(cloud, &buf); err != nil {
		t.Fatal(err)
	}

	loaded, err := Parse(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Count() != cloud.Count() {
		t.Fatalf("count: %d != %d", loaded.Count(), cloud.Count())
	}
	for i := range cloud.Splats {
		a, b := &cloud.Splats[i], &loaded.Splats[i]
		if a.Position != b.Position || a.Color != b.Color || a.Opacity != b.Opacity ||
			a.Scale != b.Scale || a.Rotation != b.Rotation {
			t.Fatalf("splat %d: %+v != %+v", i, a, b)
		}
	}
	if loaded.Splats[0].Bone != Unassigned || loaded.Splats[0].Vertex != Unassigned {
		t.Error("loaded splats should start unassigned")
	}
}

func TestParseRejectsASCII(t *testing.T) {
	src := "ply\nformat ascii 1.0\nelement vertex 0\nend_header\n"
	if _, err := Parse(bytes.NewReader([]byte(src))); err == nil {
		t.Error("ascii ply should be rejected")
	}
}

func TestParseRejectsBadVertexCount(t *testing.T) {
	for _, count := range []string{"-5", "999999999999"} {
		src := "ply\nformat binary_little_endian 1.0\nelement vertex " + count + "\n" +
			"property float x\nproperty float y\nproperty float z\nend_header\n"
		if _, err := Parse(bytes.NewReader([]byte(src))); err == nil {
			t.Errorf("vertex count %s should be rejected", count)
		}
	}
}

func TestCullKeepsIndexStability(t *testing.T) {
	cloud := testCloud(10)
	cloud.Cull([]int{3, 7})
	if cloud.Count() != 10 {
		t.Fatal("cull must not remove records")
	}
	if cloud.Splats[3].Opacity != CulledOpacity || cloud.Splats[7].Opacity != CulledOpacity {
		t.Error("culled splats should be transparent")
	}
	if cloud.Splats[4].Opacity == CulledOpacity {
		t.Error("untouched splat culled")
	}
}

func TestSubset(t *testing.T) {
	cloud := testCloud(5)
	sub := cloud.Subset([]int{4, 0})
	if sub.Count() != 2 {
		t.Fatal("subset size")
	}
	if sub.Splats[0].Position != cloud.Splats[4].Position {
		t.Error("subset order should follow indices")
	}
}
