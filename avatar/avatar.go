// Package avatar defines the in-memory skeletal mesh model consumed by the
// binding pipeline: bone hierarchy, pose snapshots and skinned vertices.
// File format concerns live in the vrm package.
package avatar

import (
	"fmt"

	"github.com/binzume/splatrig/geom"
)

// Bone is one joint of a humanoid skeleton in rest pose.
type Bone struct {
	Name      string
	HumanName string // humanoid bone name ("leftLowerArm"), empty if unmapped
	Parent    int    // index into Skeleton.Bones, -1 for roots

	Translation geom.Vector3
	Rotation    geom.Quaternion
	Scale       geom.Vector3

	InverseBind *geom.Matrix4 // nil means identity
}

// LocalMatrix composes the bone's rest TRS.
func (b *Bone) LocalMatrix() *geom.Matrix4 {
	return geom.NewTRSMatrix4(&b.Translation, &b.Rotation, &b.Scale)
}

// Skeleton is a bone hierarchy with humanoid name lookup.
type Skeleton struct {
	Bones []Bone

	humanIndex map[string]int
}

func NewSkeleton(bones []Bone) (*Skeleton, error) {
	humanIndex := map[string]int{}
	for i := range bones {
		if p := bones[i].Parent; p >= len(bones) || p == i {
			return nil, fmt.Errorf("avatar: bone %d: bad parent %d", i, p)
		}
		if bones[i].HumanName != "" {
			humanIndex[bones[i].HumanName] = i
		}
	}
	// a valid hierarchy reaches a root within len(bones) steps
	for i := range bones {
		j := bones[i].Parent
		for steps := 0; j >= 0; steps++ {
			if steps >= len(bones) {
				return nil, fmt.Errorf("avatar: bone %d: parent cycle", i)
			}
			j = bones[j].Parent
		}
	}
	return &Skeleton{Bones: bones, humanIndex: humanIndex}, nil
}

// HumanBone returns the bone index mapped to a humanoid bone name, or -1.
func (s *Skeleton) HumanBone(name string) int {
	if i, ok := s.humanIndex[name]; ok {
		return i
	}
	return -1
}

// worldMatrices resolves bone world matrices from per-bone local matrices.
// Iterative: walks each unresolved parent chain with an explicit stack,
// bone depth is small.
func (s *Skeleton) worldMatrices(local []*geom.Matrix4) []geom.Matrix4 {
	world := make([]geom.Matrix4, len(s.Bones))
	done := make([]bool, len(s.Bones))
	var stack []int
	for i := range s.Bones {
		j := i
		for j >= 0 && !done[j] {
			stack = append(stack, j)
			j = s.Bones[j].Parent
		}
		for len(stack) > 0 {
			k := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if p := s.Bones[k].Parent; p >= 0 {
				world[k] = *world[p].Mul(local[k])
			} else {
				world[k] = *local[k]
			}
			done[k] = true
		}
	}
	return world
}

// RestPose snapshots the skeleton's rest (bind) pose.
func (s *Skeleton) RestPose() *Pose {
	local := make([]*geom.Matrix4, len(s.Bones))
	for i := range s.Bones {
		local[i] = s.Bones[i].LocalMatrix()
	}
	return s.newPose(local)
}

// PoseWithLocalRotations snapshots a pose where some bones have their rest
// rotation replaced. rotations maps bone index to the new local rotation.
func (s *Skeleton) PoseWithLocalRotations(rotations map[int]*geom.Quaternion) *Pose {
	local := make([]*geom.Matrix4, len(s.Bones))
	for i := range s.Bones {
		b := &s.Bones[i]
		rot := &b.Rotation
		if r, ok := rotations[i]; ok {
			rot = r
		}
		local[i] = geom.NewTRSMatrix4(&b.Translation, rot, &b.Scale)
	}
	return s.newPose(local)
}

func (s *Skeleton) newPose(local []*geom.Matrix4) *Pose {
	world := s.worldMatrices(local)
	skin := make([]geom.Matrix4, len(s.Bones))
	for i := range s.Bones {
		if ibm := s.Bones[i].InverseBind; ibm != nil {
			skin[i] = *world[i].Mul(ibm)
		} else {
			skin[i] = world[i]
		}
	}
	return &Pose{World: world, Skin: skin}
}

// Pose is an immutable snapshot of bone world matrices at one pose instant.
// Capsule building, classification and binding all read the same snapshot
// so geometry and vertices reflect the same pose.
type Pose struct {
	World []geom.Matrix4 // world matrix per bone
	Skin  []geom.Matrix4 // world * inverseBind per bone
}

// BonePosition returns a bone's world position.
func (p *Pose) BonePosition(bone int) *geom.Vector3 {
	return p.World[bone].Translation()
}

// SkinMatrix blends the skinning matrices of up to four bones. Weights are
// assumed normalized; zero-weight entries are skipped.
func (p *Pose) SkinMatrix(joints [4]uint16, weights [4]float32) *geom.Matrix4 {
	m := geom.Matrix4{}
	for k := 0; k < 4; k++ {
		w := weights[k]
		if w == 0 {
			continue
		}
		sm := &p.Skin[joints[k]]
		for e := 0; e < 16; e++ {
			m[e] += sm[e] * w
		}
	}
	return &m
}
