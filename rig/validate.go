package rig

import (
	"errors"
	"image"
	"math"

	"github.com/binzume/splatrig/avatar"
	"github.com/binzume/splatrig/geom"
)

// MinKeypointConfidence is the lowest detector confidence still treated
// as a usable keypoint.
const MinKeypointConfidence = 0.3

// Canonical keypoint names expected from a detector.
const (
	KeypointLeftShoulder  = "leftShoulder"
	KeypointRightShoulder = "rightShoulder"
	KeypointLeftElbow     = "leftElbow"
	KeypointRightElbow    = "rightElbow"
	KeypointLeftWrist     = "leftWrist"
	KeypointRightWrist    = "rightWrist"
	KeypointLeftHip       = "leftHip"
	KeypointRightHip      = "rightHip"
	KeypointLeftKnee      = "leftKnee"
	KeypointRightKnee     = "rightKnee"
	KeypointLeftAnkle     = "leftAnkle"
	KeypointRightAnkle    = "rightAnkle"
)

// Keypoint is a named anatomical landmark in image pixel coordinates.
type Keypoint struct {
	Name       string
	Position   geom.Vector2
	Confidence float32
}

// OrthoView describes the orthographic front-view projection a cloud was
// rendered with, so detector results can be mapped back to world heights.
// Image Y grows downward; world Y grows upward.
type OrthoView struct {
	MinX, MaxX    float32 // world X extent of the image
	MinY, MaxY    float32 // world Y extent of the image
	Width, Height int
}

func (v *OrthoView) WorldX(px float32) float32 {
	return v.MinX + (v.MaxX-v.MinX)*px/float32(v.Width)
}

func (v *OrthoView) WorldY(py float32) float32 {
	return v.MaxY - (v.MaxY-v.MinY)*py/float32(v.Height)
}

// KeypointDetector is the external pose-estimation oracle. Detect takes a
// rendered front view and returns named keypoints in pixel coordinates.
type KeypointDetector interface {
	Detect(img image.Image, view *OrthoView) ([]Keypoint, error)
}

func findKeypoint(kps []Keypoint, name string) *Keypoint {
	for i := range kps {
		if kps[i].Name == name && kps[i].Confidence >= MinKeypointConfidence {
			return &kps[i]
		}
	}
	return nil
}

// CheckGroundPenetration verifies that the detected knees sit above the
// calibrated floor plane. A knee below the floor means the floor estimate
// landed on shin or shoe geometry; the returned error carries the knee
// height so a retry can cap the floor search below it.
func CheckGroundPenetration(kps []Keypoint, view *OrthoView, floor float32) error {
	var kneeY float32
	found := false
	for _, name := range []string{KeypointLeftKnee, KeypointRightKnee} {
		kp := findKeypoint(kps, name)
		if kp == nil {
			continue
		}
		y := view.WorldY(kp.Position.Y)
		if !found || y < kneeY {
			kneeY = y
			found = true
		}
	}
	if !found {
		// no confident knee, nothing to check against
		return nil
	}
	if kneeY < floor {
		return wrapError(CodeGroundPenetration,
			&GroundPenetrationError{KneeY: kneeY, Floor: floor},
			"knee below calibrated floor")
	}
	return nil
}

// CheckAPose verifies the measurement pose is a usable A-pose: on each
// side with confident keypoints the arm must slope downward, wrist below
// elbow below shoulder. A raised or T-posed arm would bind sleeve splats
// to torso vertices.
func CheckAPose(kps []Keypoint, view *OrthoView) error {
	sides := [][3]string{
		{KeypointLeftShoulder, KeypointLeftElbow, KeypointLeftWrist},
		{KeypointRightShoulder, KeypointRightElbow, KeypointRightWrist},
	}
	for _, side := range sides {
		shoulder := findKeypoint(kps, side[0])
		elbow := findKeypoint(kps, side[1])
		wrist := findKeypoint(kps, side[2])
		if shoulder == nil || elbow == nil || wrist == nil {
			continue
		}
		sy := view.WorldY(shoulder.Position.Y)
		ey := view.WorldY(elbow.Position.Y)
		wy := view.WorldY(wrist.Position.Y)
		if !(wy < ey && ey < sy) {
			return newErrorf(CodePoseValidation,
				"arm %s/%s/%s not in A-pose order (shoulder %.2f, elbow %.2f, wrist %.2f)",
				side[0], side[1], side[2], sy, ey, wy)
		}
	}
	return nil
}

// armCorrectionTolerance is the smallest arm-angle mismatch worth
// correcting; differences below ~2 degrees are detector noise.
const armCorrectionTolerance = 0.035

// BoneCorrection is a rest-pose rotation adjustment for one humanoid bone,
// derived from detected keypoints.
type BoneCorrection struct {
	Bone     string
	Rotation geom.Quaternion
}

// ArmCorrections compares the detected arm droop against the skeleton's
// rest pose and returns per-upper-arm rotations bringing the rest pose in
// line with the measurement. Without this, a cloud captured with the arms
// lower than the avatar's A-pose binds sleeve splats off the arm surface.
// Sides with a missing shoulder or wrist keypoint, or without mapped arm
// bones, are left uncorrected.
func ArmCorrections(kps []Keypoint, view *OrthoView, skel *avatar.Skeleton, pose *avatar.Pose) []BoneCorrection {
	sides := []struct {
		upper, hand     string
		shoulder, wrist string
		axisSign        geom.Element
	}{
		{"leftUpperArm", "leftHand", KeypointLeftShoulder, KeypointLeftWrist, -1},
		{"rightUpperArm", "rightHand", KeypointRightShoulder, KeypointRightWrist, 1},
	}
	var corrections []BoneCorrection
	for _, side := range sides {
		shoulder := findKeypoint(kps, side.shoulder)
		wrist := findKeypoint(kps, side.wrist)
		if shoulder == nil || wrist == nil {
			continue
		}
		upper := skel.HumanBone(side.upper)
		hand := skel.HumanBone(side.hand)
		if upper < 0 || hand < 0 {
			continue
		}
		observed := armDroop(
			view.WorldX(shoulder.Position.X), view.WorldY(shoulder.Position.Y),
			view.WorldX(wrist.Position.X), view.WorldY(wrist.Position.Y))
		up := pose.BonePosition(upper)
		hp := pose.BonePosition(hand)
		rest := armDroop(up.X, up.Y, hp.X, hp.Y)
		delta := observed - rest
		if geom.Abs(delta) <= armCorrectionTolerance {
			continue
		}
		q := geom.NewQuaternionFromAxisAngle(&geom.Vector3{Z: 1}, side.axisSign*delta)
		corrections = append(corrections, BoneCorrection{Bone: side.upper, Rotation: *q})
	}
	return corrections
}

// armDroop is the angle of the shoulder-to-wrist vector below horizontal,
// in radians, measured in the front-view plane.
func armDroop(sx, sy, wx, wy geom.Element) geom.Element {
	return geom.Element(math.Atan2(float64(sy-wy), math.Abs(float64(wx-sx))))
}

// KneeHeightOf extracts the knee height from a ground-penetration error,
// if err is one.
func KneeHeightOf(err error) (float32, bool) {
	var gp *GroundPenetrationError
	if errors.As(err, &gp) {
		return gp.KneeY, true
	}
	return 0, false
}
