package geom

import "math"

type Vector4 struct {
	X Element
	Y Element
	Z Element
	W Element
}

type Quaternion = Vector4

func NewVector4(x, y, z, w float32) *Vector4 {
	return &Vector4{X: x, Y: y, Z: z, W: w}
}

func NewQuaternion(x, y, z, w float32) *Vector4 {
	return &Vector4{X: x, Y: y, Z: z, W: w}
}

func NewQuaternionFromArray(arr [4]Element) *Vector4 {
	return &Vector4{X: arr[0], Y: arr[1], Z: arr[2], W: arr[3]}
}

// NewQuaternionFromAxisAngle builds a rotation of angle radians around axis.
// axis must be a unit vector.
func NewQuaternionFromAxisAngle(axis *Vector3, angle Element) *Vector4 {
	s := Element(math.Sin(float64(angle) / 2))
	return &Vector4{
		X: axis.X * s,
		Y: axis.Y * s,
		Z: axis.Z * s,
		W: Element(math.Cos(float64(angle) / 2)),
	}
}

// NewQuaternionFromTo builds the shortest rotation taking unit vector a to
// unit vector b.
func NewQuaternionFromTo(a, b *Vector3) *Vector4 {
	d := a.Dot(b)
	if d < -0.999999 {
		// opposite directions: pick any perpendicular axis
		axis := NewVector3(1, 0, 0).Cross(a)
		if axis.LenSqr() < 0.000001 {
			axis = NewVector3(0, 1, 0).Cross(a)
		}
		return NewQuaternionFromAxisAngle(axis.Normalize(), math.Pi)
	}
	c := a.Cross(b)
	return (&Vector4{X: c.X, Y: c.Y, Z: c.Z, W: d + 1}).Normalize()
}

func (v *Vector4) Add(v2 *Vector4) *Vector4 {
	return &Vector4{X: v.X + v2.X, Y: v.Y + v2.Y, Z: v.Z + v2.Z, W: v.W + v2.W}
}

func (v *Vector4) Sub(v2 *Vector4) *Vector4 {
	return &Vector4{X: v.X - v2.X, Y: v.Y - v2.Y, Z: v.Z - v2.Z, W: v.W - v2.W}
}

func (v *Vector4) Dot(v2 *Vector4) Element {
	return v.X*v2.X + v.Y*v2.Y + v.Z*v2.Z + v.W*v2.W
}

func (v *Vector4) Len() Element {
	return Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z + v.W*v.W)
}

func (v *Vector4) LenSqr() Element {
	return v.X*v.X + v.Y*v.Y + v.Z*v.Z + v.W*v.W
}

func (v *Vector4) Normalize() *Vector4 {
	l := v.Len()
	if l > 0 {
		v.X /= l
		v.Y /= l
		v.Z /= l
		v.W /= l
	} else {
		v.W = 1
	}
	return v
}

func (v *Vector4) Inverse() *Vector4 {
	return &Vector4{X: -v.X, Y: -v.Y, Z: -v.Z, W: v.W}
}

// Mul returns the Hamilton product a * b.
func (a *Vector4) Mul(b *Vector4) *Vector4 {
	return &Vector4{
		W: a.W*b.W - a.X*b.X - a.Y*b.Y - a.Z*b.Z, // 1
		X: a.W*b.X + a.X*b.W + a.Y*b.Z - a.Z*b.Y, // i
		Y: a.W*b.Y - a.X*b.Z + a.Y*b.W + a.Z*b.X, // j
		Z: a.W*b.Z + a.X*b.Y - a.Y*b.X + a.Z*b.W, // k
	}
}

// ApplyTo rotates v2 by the quaternion. q * v * ~q
func (q *Vector4) ApplyTo(v2 *Vector3) *Vector3 {
	p := &Vector4{X: v2.X, Y: v2.Y, Z: v2.Z, W: 0}
	r := q.Mul(p).Mul(q.Inverse())
	return &Vector3{X: r.X, Y: r.Y, Z: r.Z}
}
