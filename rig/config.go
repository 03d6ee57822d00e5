package rig

import (
	"os"

	"gopkg.in/yaml.v2"
)

// SegmentSpec declares one capsule between two humanoid bones.
// Radius is in meters; ScaleX/ScaleZ flatten the cross section.
type SegmentSpec struct {
	Parent string  `yaml:"parent"`
	Child  string  `yaml:"child"`
	Radius float32 `yaml:"radius"`
	ScaleX float32 `yaml:"scale_x"`
	ScaleZ float32 `yaml:"scale_z"`
}

// CullSpec caps how far a bound splat may sit from its vertex before it is
// made transparent. Bones are named, not indexed, so the table survives
// skeletons with different joint ordering.
type CullSpec struct {
	Bone        string  `yaml:"bone"`
	MaxDistance float32 `yaml:"max_distance"`
}

type Config struct {
	Segments []SegmentSpec `yaml:"segments"`
	Culling  []CullSpec    `yaml:"culling"`

	// DefaultCullDistance applies to bones without a CullSpec. Zero
	// disables culling for them.
	DefaultCullDistance float32 `yaml:"default_cull_distance"`
}

// DefaultConfig covers the standard VRM humanoid segment set.
func DefaultConfig() *Config {
	return &Config{
		Segments: []SegmentSpec{
			{Parent: "hips", Child: "spine", Radius: 0.11, ScaleX: 1.2, ScaleZ: 0.8},
			{Parent: "spine", Child: "chest", Radius: 0.11, ScaleX: 1.2, ScaleZ: 0.8},
			{Parent: "chest", Child: "neck", Radius: 0.10, ScaleX: 1.3, ScaleZ: 0.8},
			{Parent: "neck", Child: "head", Radius: 0.09, ScaleX: 1.0, ScaleZ: 1.0},
			{Parent: "leftShoulder", Child: "leftUpperArm", Radius: 0.05, ScaleX: 1.0, ScaleZ: 1.0},
			{Parent: "leftUpperArm", Child: "leftLowerArm", Radius: 0.05, ScaleX: 1.0, ScaleZ: 1.0},
			{Parent: "leftLowerArm", Child: "leftHand", Radius: 0.04, ScaleX: 1.0, ScaleZ: 1.0},
			{Parent: "rightShoulder", Child: "rightUpperArm", Radius: 0.05, ScaleX: 1.0, ScaleZ: 1.0},
			{Parent: "rightUpperArm", Child: "rightLowerArm", Radius: 0.05, ScaleX: 1.0, ScaleZ: 1.0},
			{Parent: "rightLowerArm", Child: "rightHand", Radius: 0.04, ScaleX: 1.0, ScaleZ: 1.0},
			{Parent: "leftUpperLeg", Child: "leftLowerLeg", Radius: 0.07, ScaleX: 1.0, ScaleZ: 1.0},
			{Parent: "leftLowerLeg", Child: "leftFoot", Radius: 0.06, ScaleX: 1.0, ScaleZ: 1.0},
			{Parent: "rightUpperLeg", Child: "rightLowerLeg", Radius: 0.07, ScaleX: 1.0, ScaleZ: 1.0},
			{Parent: "rightLowerLeg", Child: "rightFoot", Radius: 0.06, ScaleX: 1.0, ScaleZ: 1.0},
		},
		Culling: []CullSpec{
			{Bone: "head", MaxDistance: 0.35},
			{Bone: "leftFoot", MaxDistance: 0.12},
			{Bone: "rightFoot", MaxDistance: 0.12},
		},
		DefaultCullDistance: 0.25,
	}
}

// LoadConfig reads a YAML segment/culling table. Missing fields fall back
// to the defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	conf := DefaultConfig()
	if err := yaml.Unmarshal(data, conf); err != nil {
		return nil, err
	}
	return conf, nil
}

// cullDistance resolves the threshold for a humanoid bone name.
func (c *Config) cullDistance(humanName string) float32 {
	for _, spec := range c.Culling {
		if spec.Bone == humanName {
			return spec.MaxDistance
		}
	}
	return c.DefaultCullDistance
}
