package vrm

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/binzume/splatrig/avatar"
	"github.com/binzume/splatrig/geom"
)

// FileSource loads an avatar model from a .vrm or .glb file on disk.
type FileSource struct {
	Path string
}

func (s *FileSource) LoadModel() (*avatar.Model, error) {
	raw, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, err
	}
	doc, err := gltf.Open(s.Path)
	if err != nil {
		return nil, err
	}
	return ModelFromDocument(doc, raw)
}

// StreamSource loads an avatar model from an already-open glb stream.
type StreamSource struct {
	R io.Reader
}

func (s *StreamSource) LoadModel() (*avatar.Model, error) {
	raw, err := io.ReadAll(s.R)
	if err != nil {
		return nil, err
	}
	doc := new(gltf.Document)
	if err := gltf.NewDecoder(bytes.NewReader(raw)).Decode(doc); err != nil {
		return nil, err
	}
	return ModelFromDocument(doc, raw)
}

// ModelFromDocument extracts the skeleton and the skinned mesh from a
// parsed document. raw is kept on the model so archives can embed the
// original container bytes untouched.
func ModelFromDocument(doc *gltf.Document, raw []byte) (*avatar.Model, error) {
	skinnedNode := -1
	for i, node := range doc.Nodes {
		if node.Mesh != nil && node.Skin != nil {
			skinnedNode = i
			break
		}
	}
	if skinnedNode == -1 {
		return nil, fmt.Errorf("vrm: no skinned mesh node")
	}
	node := doc.Nodes[skinnedNode]
	skin := doc.Skins[*node.Skin]

	// a document mapping none of the humanoid bones would classify every
	// splat to bone 0 with no signal; individual missing bones are fine,
	// the capsule table skips them
	if missing := Ext(doc).CheckRequiredBones(); len(missing) == len(RequiredBones) {
		return nil, fmt.Errorf("vrm: no humanoid bone mapping")
	}

	skeleton, err := extractSkeleton(doc, skin)
	if err != nil {
		return nil, err
	}
	mesh, err := extractMesh(doc, doc.Meshes[*node.Mesh])
	if err != nil {
		return nil, err
	}
	return &avatar.Model{Skeleton: skeleton, Mesh: mesh, RawGLB: raw}, nil
}

func extractSkeleton(doc *gltf.Document, skin *gltf.Skin) (*avatar.Skeleton, error) {
	// node index -> parent node index
	nodeParent := make([]int, len(doc.Nodes))
	for i := range nodeParent {
		nodeParent[i] = -1
	}
	for i, node := range doc.Nodes {
		for _, c := range node.Children {
			if int(c) < len(nodeParent) {
				nodeParent[c] = i
			}
		}
	}

	humanNames := Ext(doc).HumanBoneNames()

	// joint order defines bone order: skin weights index into it directly
	nodeToBone := map[int]int{}
	for bi, ni := range skin.Joints {
		nodeToBone[int(ni)] = bi
	}

	ibms, err := readInverseBindMatrices(doc, skin)
	if err != nil {
		return nil, err
	}

	bones := make([]avatar.Bone, len(skin.Joints))
	for bi, ni := range skin.Joints {
		node := doc.Nodes[ni]
		b := &bones[bi]
		b.Name = node.Name
		b.HumanName = humanNames[int(ni)]
		b.Translation = geom.Vector3{X: node.Translation[0], Y: node.Translation[1], Z: node.Translation[2]}
		b.Rotation = geom.Quaternion{X: node.Rotation[0], Y: node.Rotation[1], Z: node.Rotation[2], W: node.Rotation[3]}
		b.Scale = geom.Vector3{X: node.Scale[0], Y: node.Scale[1], Z: node.Scale[2]}
		if b.Rotation.LenSqr() == 0 {
			b.Rotation = geom.Quaternion{W: 1}
		}
		if b.Scale.LenSqr() == 0 {
			b.Scale = geom.Vector3{X: 1, Y: 1, Z: 1}
		}
		if ibms != nil {
			b.InverseBind = ibms[bi]
		}

		// nearest ancestor that is itself a joint; the walk is bounded so
		// a cyclic node graph errors instead of spinning
		b.Parent = -1
		steps := 0
		for p := nodeParent[ni]; p >= 0; p = nodeParent[p] {
			if pb, ok := nodeToBone[p]; ok {
				b.Parent = pb
				break
			}
			if steps++; steps > len(doc.Nodes) {
				return nil, fmt.Errorf("vrm: node graph cycle above joint %d", ni)
			}
		}
	}
	return avatar.NewSkeleton(bones)
}

func readInverseBindMatrices(doc *gltf.Document, skin *gltf.Skin) ([]*geom.Matrix4, error) {
	if skin.InverseBindMatrices == nil {
		return nil, nil
	}
	accessor := doc.Accessors[*skin.InverseBindMatrices]
	if accessor.BufferView == nil {
		return nil, nil
	}
	bufferView := doc.BufferViews[*accessor.BufferView]
	data := doc.Buffers[bufferView.Buffer].Data
	if len(data) == 0 {
		return nil, nil
	}
	mats := make([]*geom.Matrix4, len(skin.Joints))
	for i := range skin.Joints {
		offset := bufferView.ByteOffset + accessor.ByteOffset + uint32(i)*64
		if int(offset)+64 > len(data) {
			return nil, fmt.Errorf("vrm: inverse bind matrix %d out of range", i)
		}
		mat := &geom.Matrix4{}
		for e := 0; e < 16; e++ {
			bits := binary.LittleEndian.Uint32(data[int(offset)+e*4 : int(offset)+e*4+4])
			mat[e] = math.Float32frombits(bits)
		}
		mats[i] = mat
	}
	return mats, nil
}

func extractMesh(doc *gltf.Document, mesh *gltf.Mesh) (*avatar.SkinnedMesh, error) {
	out := &avatar.SkinnedMesh{}
	for pi, prim := range mesh.Primitives {
		posAcc, ok := prim.Attributes["POSITION"]
		if !ok {
			continue
		}
		pos, err := modeler.ReadPosition(doc, doc.Accessors[posAcc], [][3]float32{})
		if err != nil {
			return nil, fmt.Errorf("vrm: primitive %d: %w", pi, err)
		}

		var joints [][4]uint16
		var weights [][4]float32
		if a, ok := prim.Attributes["JOINTS_0"]; ok {
			joints, err = modeler.ReadJoints(doc, doc.Accessors[a], [][4]uint16{})
			if err != nil {
				return nil, fmt.Errorf("vrm: primitive %d joints: %w", pi, err)
			}
		}
		if a, ok := prim.Attributes["WEIGHTS_0"]; ok {
			weights, err = modeler.ReadWeights(doc, doc.Accessors[a], [][4]float32{})
			if err != nil {
				return nil, fmt.Errorf("vrm: primitive %d weights: %w", pi, err)
			}
		}

		for i, p := range pos {
			out.Positions = append(out.Positions, geom.Vector3{X: p[0], Y: p[1], Z: p[2]})
			if joints != nil && i < len(joints) {
				out.Joints = append(out.Joints, joints[i])
			} else {
				out.Joints = append(out.Joints, [4]uint16{})
			}
			if weights != nil && i < len(weights) {
				out.Weights = append(out.Weights, weights[i])
			} else {
				out.Weights = append(out.Weights, [4]float32{1, 0, 0, 0})
			}
		}
	}
	if len(out.Positions) == 0 {
		return nil, fmt.Errorf("vrm: mesh has no positions")
	}
	return out, nil
}
