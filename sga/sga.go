// Package sga reads and writes the splat-avatar archive: a zip container
// holding the avatar model, the bound splat cloud and the binding arrays
// that tie them together.
package sga

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/binzume/splatrig/geom"
	"github.com/binzume/splatrig/gsplat"
)

// Archive entry names.
const (
	ModelEntry   = "model.glb"
	SplatsEntry  = "splats.ply"
	BindingEntry = "binding.json"
)

// BoneOperation is a rest-pose correction applied to one humanoid bone
// before binding arrays are evaluated.
type BoneOperation struct {
	Bone     string     `json:"bone"`
	Rotation [4]float32 `json:"rotation"` // x, y, z, w
}

// Binding is the persisted splat-to-skeleton attachment. The three arrays
// are parallel to the splat order in the archive's point cloud;
// RelativeOffset is flattened xyz triplets. Float values survive the JSON
// round trip bit-exactly: float32 widens to float64 without loss and the
// encoder emits the shortest representation, which parses back to the
// identical value.
type Binding struct {
	ModelScale       float32         `json:"modelScale"`
	BoneOperations   []BoneOperation `json:"boneOperations"`
	GsPosition       [3]float32      `json:"gsPosition"`
	GsQuaternion     [4]float32      `json:"gsQuaternion"`
	AssignedBoneID   []int           `json:"assignedBoneId"`
	AssignedVertexID []int           `json:"assignedVertexId"`
	RelativeOffset   []float32       `json:"relativeOffset"`
}

// Validate checks the parallel-array contract.
func (b *Binding) Validate(splats int) error {
	n := len(b.AssignedBoneID)
	if n != splats {
		return fmt.Errorf("sga: %d bone assignments for %d splats", n, splats)
	}
	if len(b.AssignedVertexID) != n {
		return fmt.Errorf("sga: %d vertex assignments for %d bone assignments", len(b.AssignedVertexID), n)
	}
	if len(b.RelativeOffset) != 3*n {
		return fmt.Errorf("sga: %d offset values, want %d", len(b.RelativeOffset), 3*n)
	}
	return nil
}

// NewBinding captures the binding state of a bound cloud.
func NewBinding(cloud *gsplat.Cloud, scale float32, position *geom.Vector3, rotation *geom.Quaternion) *Binding {
	b := &Binding{
		ModelScale:   scale,
		GsPosition:   [3]float32{position.X, position.Y, position.Z},
		GsQuaternion: [4]float32{rotation.X, rotation.Y, rotation.Z, rotation.W},
	}
	for i := range cloud.Splats {
		s := &cloud.Splats[i]
		b.AssignedBoneID = append(b.AssignedBoneID, s.Bone)
		b.AssignedVertexID = append(b.AssignedVertexID, s.Vertex)
		b.RelativeOffset = append(b.RelativeOffset, s.Offset.X, s.Offset.Y, s.Offset.Z)
	}
	return b
}

// Restore writes the binding arrays back into a freshly-loaded cloud.
func (b *Binding) Restore(cloud *gsplat.Cloud) error {
	if err := b.Validate(cloud.Count()); err != nil {
		return err
	}
	for i := range cloud.Splats {
		s := &cloud.Splats[i]
		s.Bone = b.AssignedBoneID[i]
		s.Vertex = b.AssignedVertexID[i]
		s.Offset = geom.Vector3{
			X: b.RelativeOffset[3*i],
			Y: b.RelativeOffset[3*i+1],
			Z: b.RelativeOffset[3*i+2],
		}
	}
	return nil
}

// BoneGroups partitions the splats by bone into dense group ids assigned
// in first-seen order, so renderers can batch per bone deterministically.
// Returns the per-splat group id and the group count.
func (b *Binding) BoneGroups() ([]int, int) {
	groups := make([]int, len(b.AssignedBoneID))
	index := map[int]int{}
	for i, bone := range b.AssignedBoneID {
		g, ok := index[bone]
		if !ok {
			g = len(index)
			index[bone] = g
		}
		groups[i] = g
	}
	return groups, len(index)
}

// Archive is the in-memory form of an .sga file.
type Archive struct {
	ModelGLB []byte
	Splats   *gsplat.Cloud
	Binding  *Binding
}

// Save writes the archive as a zip stream.
func Save(w io.Writer, a *Archive) error {
	if err := a.Binding.Validate(a.Splats.Count()); err != nil {
		return err
	}
	zw := zip.NewWriter(w)

	mw, err := zw.Create(ModelEntry)
	if err != nil {
		return err
	}
	if _, err := mw.Write(a.ModelGLB); err != nil {
		return err
	}

	sw, err := zw.Create(SplatsEntry)
	if err != nil {
		return err
	}
	if err := gsplat.Write(a.Splats, sw); err != nil {
		return err
	}

	bw, err := zw.Create(BindingEntry)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(bw)
	if err := enc.Encode(a.Binding); err != nil {
		return err
	}
	return zw.Close()
}

// SaveFile writes the archive atomically: the zip is staged to a temp file
// in the target directory and renamed into place only when complete, so a
// failed run never leaves a partial archive behind.
func SaveFile(path string, a *Archive) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".sga-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := Save(tmp, a); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Load reads an archive from a zip stream.
func Load(r io.ReaderAt, size int64) (*Archive, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, err
	}
	a := &Archive{}
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		switch f.Name {
		case ModelEntry:
			a.ModelGLB, err = io.ReadAll(rc)
		case SplatsEntry:
			a.Splats, err = gsplat.Parse(rc)
		case BindingEntry:
			a.Binding = &Binding{}
			err = json.NewDecoder(rc).Decode(a.Binding)
		}
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("sga: reading %s: %w", f.Name, err)
		}
	}
	if a.ModelGLB == nil || a.Splats == nil || a.Binding == nil {
		return nil, fmt.Errorf("sga: archive missing required entries")
	}
	if err := a.Binding.Validate(a.Splats.Count()); err != nil {
		return nil, err
	}
	if err := a.Binding.Restore(a.Splats); err != nil {
		return nil, err
	}
	return a, nil
}

// LoadFile opens and reads an .sga archive from disk.
func LoadFile(path string) (*Archive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	return Load(f, st.Size())
}
