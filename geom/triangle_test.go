package geom

import (
	"testing"
)

func TestClosestPointOnTriangle(t *testing.T) {
	const eps = 0.000001

	a := NewVector3(0, 0, 0)
	b := NewVector3(1, 0, 0)
	c := NewVector3(0, 1, 0)

	for _, tc := range []struct {
		p    *Vector3
		want *Vector3
	}{
		{NewVector3(0.25, 0.25, 1), NewVector3(0.25, 0.25, 0)}, // face
		{NewVector3(-1, -1, 0), NewVector3(0, 0, 0)},           // vertex a
		{NewVector3(2, -1, 0), NewVector3(1, 0, 0)},            // vertex b
		{NewVector3(-1, 2, 0), NewVector3(0, 1, 0)},            // vertex c
		{NewVector3(0.5, -1, 0), NewVector3(0.5, 0, 0)},        // edge ab
		{NewVector3(-1, 0.5, 0), NewVector3(0, 0.5, 0)},        // edge ac
		{NewVector3(1, 1, 0), NewVector3(0.5, 0.5, 0)},         // edge bc
	} {
		got := ClosestPointOnTriangle(tc.p, a, b, c)
		if got.Sub(tc.want).Len() > eps {
			t.Error("closest: ", tc.p, got, "want", tc.want)
		}
	}
}

func TestPointTriangleDistanceSqr(t *testing.T) {
	const eps = 0.000001

	a := NewVector3(0, 0, 0)
	b := NewVector3(2, 0, 0)
	c := NewVector3(0, 2, 0)

	d := PointTriangleDistanceSqr(NewVector3(0.5, 0.5, 3), a, b, c)
	if Abs(d-9) > eps {
		t.Error("distance above face: ", d)
	}

	d = PointTriangleDistanceSqr(NewVector3(0.5, 0.5, 0), a, b, c)
	if d > eps {
		t.Error("point on face: ", d)
	}
}
