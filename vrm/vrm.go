// Package vrm loads VRM/glTF avatars into the in-memory model consumed by
// the binding pipeline.
package vrm

// https://vrm.dev/
// https://github.com/vrm-c/vrm-specification/blob/master/specification/0.0/README.ja.md

import (
	"encoding/json"

	"github.com/qmuntal/gltf"
)

const ExtensionName = "VRM"

func init() {
	gltf.RegisterExtension(ExtensionName, Unmarshal)
}

type Metadata struct {
	Title   string `json:"title"`
	Version string `json:"version"`
	Author  string `json:"author"`

	LicenseName     string `json:"licenseName"`
	OtherLicenseUrl string `json:"otherLicenseUrl"`
}

type Bone struct {
	Bone             string  `json:"bone"`
	Node             int     `json:"node"`
	UseDefaultValues bool    `json:"useDefaultValues"`
	AxisLength       float32 `json:"axisLength"`
}

type Humanoid struct {
	Bones []*Bone `json:"humanBones"`
}

type VRM struct {
	Meta     Metadata `json:"meta"`
	Humanoid Humanoid `json:"humanoid"`

	ExporterVersion string `json:"exporterVersion"`
}

func Unmarshal(data []byte) (interface{}, error) {
	var vrmext VRM
	if err := json.Unmarshal([]byte(data), &vrmext); err != nil {
		return nil, err
	}
	return &vrmext, nil
}

// RequiredBones is the humanoid bone set every VRM 0.x model must map.
var RequiredBones = []string{
	"hips", "spine", "chest", "neck", "head",
	"leftUpperArm", "leftLowerArm", "leftHand",
	"rightUpperArm", "rightLowerArm", "rightHand",
	"leftUpperLeg", "leftLowerLeg", "leftFoot",
	"rightUpperLeg", "rightLowerLeg", "rightFoot",
}

// HumanBoneNames maps glTF node index to humanoid bone name.
func (v *VRM) HumanBoneNames() map[int]string {
	names := map[int]string{}
	if v == nil {
		return names
	}
	for _, b := range v.Humanoid.Bones {
		if b.Bone != "" {
			names[b.Node] = b.Bone
		}
	}
	return names
}

// CheckRequiredBones returns the names of missing required humanoid bones.
// A nil receiver (no VRM extension) reports everything missing.
func (v *VRM) CheckRequiredBones() []string {
	mapped := map[string]bool{}
	if v != nil {
		for _, b := range v.Humanoid.Bones {
			mapped[b.Bone] = true
		}
	}
	var missing []string
	for _, name := range RequiredBones {
		if !mapped[name] {
			missing = append(missing, name)
		}
	}
	return missing
}

// Ext extracts the VRM extension from a loaded document, nil if absent.
func Ext(doc *gltf.Document) *VRM {
	if ext, ok := doc.Extensions[ExtensionName].(*VRM); ok {
		return ext
	}
	return nil
}
