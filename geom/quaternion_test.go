package geom

import (
	"math"
	"testing"
)

func TestQuaternion(t *testing.T) {
	const eps = 0.000001

	{
		q := NewEuler(0, 0, 0, RotationOrderXYZ).ToQuaternion()
		v1 := NewVector3(1, 2, 3)
		v2 := q.ApplyTo(v1)
		if v2.Sub(v1).Len() > eps {
			t.Error("v1 != v2: ", v1, v2)
		}
	}

	{
		q := NewEuler(2*math.Pi, 0, 0, RotationOrderXYZ).ToQuaternion()
		v1 := NewVector3(1, 2, 3)
		v2 := q.ApplyTo(v1)
		if v2.Sub(v1).Len() > eps {
			t.Error("v1 != v2: ", v1, v2)
		}
	}

	{
		q := NewEuler(math.Pi, 0, 0, RotationOrderXYZ).ToQuaternion()
		q = q.Mul(q)
		v1 := NewVector3(1, 2, 3)
		v2 := q.ApplyTo(v1)
		if v2.Sub(v1).Len() > eps {
			t.Error("v1 != v2: ", v1, v2)
		}
	}

	{
		q := NewEuler(1, 2, 3, RotationOrderXYZ).ToQuaternion()
		q = q.Mul(q.Inverse())
		v1 := NewVector3(1, 2, 3)
		v2 := q.ApplyTo(v1)
		if v2.Sub(v1).Len() > eps {
			t.Error("v1 != v2: ", v1, v2)
		}
	}
}

func TestQuaternionFromTo(t *testing.T) {
	const eps = 0.000001

	for _, c := range [][2]*Vector3{
		{NewVector3(1, 0, 0), NewVector3(0, 1, 0)},
		{NewVector3(0, 1, 0), NewVector3(0, 0, 1)},
		{NewVector3(1, 0, 0), NewVector3(1, 0, 0)},
		{NewVector3(1, 0, 0), NewVector3(-1, 0, 0)},
		{NewVector3(0.6, 0.8, 0), NewVector3(0, 0, 1)},
	} {
		q := NewQuaternionFromTo(c[0], c[1])
		v := q.ApplyTo(c[0])
		if v.Sub(c[1]).Len() > eps {
			t.Error("rotated: ", c[0], "->", v, "want", c[1])
		}
		if Abs(q.Len()-1) > eps {
			t.Error("not unit: ", q)
		}
	}
}

func TestQuaternionMatrixConsistency(t *testing.T) {
	const eps = 0.000001

	q := NewEuler(0.4, -0.8, 1.2, RotationOrderZXY).ToQuaternion()
	m := NewRotationMatrix4FromQuaternion(q)
	v := NewVector3(0.3, -2, 1.5)

	v1 := q.ApplyTo(v)
	v2 := m.ApplyTo(v)
	if v1.Sub(v2).Len() > eps {
		t.Error("quaternion and matrix disagree: ", v1, v2)
	}
}
