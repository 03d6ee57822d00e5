package avatar

import (
	"github.com/binzume/splatrig/geom"
)

// SkinnedMesh holds vertex positions in mesh-local (unposed) space with
// their skin bindings. Positions are immutable after load.
type SkinnedMesh struct {
	Positions []geom.Vector3
	Joints    [][4]uint16
	Weights   [][4]float32
}

func (m *SkinnedMesh) VertexCount() int {
	if m == nil {
		return 0
	}
	return len(m.Positions)
}

// PosedPosition applies the pose's skin transform to vertex i.
func (m *SkinnedMesh) PosedPosition(i int, pose *Pose) *geom.Vector3 {
	return pose.SkinMatrix(m.Joints[i], m.Weights[i]).ApplyTo(&m.Positions[i])
}

// VertexSkinMatrix returns the blended skin matrix for vertex i.
func (m *SkinnedMesh) VertexSkinMatrix(i int, pose *Pose) *geom.Matrix4 {
	return pose.SkinMatrix(m.Joints[i], m.Weights[i])
}

// Model is the loaded avatar asset: skeleton, skinned mesh, plus the raw
// container bytes so the archive writer can embed the original file.
type Model struct {
	Skeleton *Skeleton
	Mesh     *SkinnedMesh
	RawGLB   []byte
}

// MeshSource yields an avatar model. File-backed and stream-backed
// implementations live in the vrm package.
type MeshSource interface {
	LoadModel() (*Model, error)
}
