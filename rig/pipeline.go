package rig

import (
	"context"
	"image"

	"go.uber.org/zap"

	"github.com/binzume/splatrig/avatar"
	"github.com/binzume/splatrig/geom"
	"github.com/binzume/splatrig/gsplat"
)

// headTopOffset is added above the head bone to estimate the model's
// standing height from its skeleton.
const headTopOffset = 0.12

const frontViewSize = 512

// Pipeline runs the full binding session: calibrate, build capsules,
// classify, bind, validate, cull. Stages are strictly sequential; each
// owns exclusive write access to the splat fields it populates.
type Pipeline struct {
	Mesh  avatar.MeshSource
	Cloud gsplat.CloudSource

	Config   *Config
	Detector KeypointDetector // nil skips keypoint validation
	Logger   *zap.Logger

	Fast             bool
	SkipValidation   bool
	RemoveBackground bool
	Debug            *DebugWriter

	Calibrator *CalibratorOptions
	Progress   func(done, total int)
}

// Result is the complete binding session output, enough to persist an
// archive or to drive a deformer directly.
type Result struct {
	Model       *avatar.Model
	Foreground  *gsplat.Cloud
	Background  *gsplat.Cloud
	Calibration *CalibrationResult

	// Cloud-to-model placement, persisted alongside the binding arrays.
	Scale    float32
	Position geom.Vector3
	Rotation geom.Quaternion

	// Rest-pose adjustments derived from the detected keypoints; empty
	// when validation is skipped or the detector found nothing usable.
	Corrections []BoneCorrection

	Culled int
}

// Run executes the pipeline. One automatic retry is attempted when the
// ground-penetration check fails, with the floor search capped below the
// detected knee; any second failure is final. No partial result is ever
// returned alongside an error.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	model, err := p.Mesh.LoadModel()
	if err != nil {
		return nil, wrapError(CodeAssetLoad, err, "loading avatar model")
	}
	cloud, err := p.Cloud.LoadCloud()
	if err != nil {
		return nil, wrapError(CodeAssetLoad, err, "loading point cloud")
	}
	logger.Info("assets loaded",
		zap.Int("splats", cloud.Count()),
		zap.Int("vertices", model.Mesh.VertexCount()),
		zap.Int("bones", len(model.Skeleton.Bones)))

	result, err := p.run(ctx, model, cloud, nil)
	if kneeY, retry := KneeHeightOf(err); retry {
		logger.Warn("floor above detected knee, recalibrating",
			zap.Float32("knee", kneeY))
		result, err = p.run(ctx, model, cloud, &CalibrationHint{MaxFloor: kneeY})
	}
	if err != nil {
		return nil, err
	}
	logger.Info("binding complete",
		zap.Int("foreground", result.Foreground.Count()),
		zap.Float32("scale", result.Scale),
		zap.Int("culled", result.Culled))
	return result, nil
}

func (p *Pipeline) run(ctx context.Context, model *avatar.Model, cloud *gsplat.Cloud, hint *CalibrationHint) (*Result, error) {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	calib, err := Calibrate(cloud, hint, p.Calibrator)
	if err != nil {
		return nil, err
	}
	logger.Info("calibrated",
		zap.Float32("floor", calib.Floor),
		zap.Float32("height", calib.Height()),
		zap.Float32("radius", calib.SearchRadius))

	fg := cloud.Subset(calib.Foreground)
	bg := cloud.Subset(calib.Background)
	if err := p.Debug.WriteColumnHeatmap("column", cloud, calib); err != nil {
		logger.Warn("debug heatmap failed", zap.Error(err))
	}

	var kps []Keypoint
	var view *OrthoView
	if !p.SkipValidation && p.Detector != nil {
		var img image.Image
		img, view = RenderFrontView(fg, frontViewSize)
		kps, err = p.Detector.Detect(img, view)
		if err != nil {
			return nil, wrapError(CodePoseValidation, err, "keypoint detection")
		}
		if err := CheckGroundPenetration(kps, view, calib.Floor); err != nil {
			return nil, err
		}
		if err := CheckAPose(kps, view); err != nil {
			return nil, err
		}
	}

	pose := model.Skeleton.RestPose()
	scale, toWorld := cloudToModel(model.Skeleton, pose, calib)

	conf := p.Config
	if conf == nil {
		conf = DefaultConfig()
	}
	capsules := BuildCapsules(model.Skeleton, pose, conf.Segments)
	opts := &ClassifyOptions{Fast: p.Fast, Progress: p.Progress}
	if err := ClassifySplats(ctx, fg, toWorld, capsules, opts); err != nil {
		return nil, err
	}
	if err := p.Debug.WriteClassification("classified", fg); err != nil {
		logger.Warn("debug classification image failed", zap.Error(err))
	}
	pools, err := ClassifyVertices(ctx, model.Mesh, pose, capsules, opts)
	if err != nil {
		return nil, err
	}
	if err := BindSplats(ctx, fg, model.Mesh, pose, toWorld, pools, opts); err != nil {
		return nil, err
	}
	culled := CullByDistance(fg, model.Mesh, pose, toWorld, model.Skeleton, conf)

	pos, rot, _ := toWorld.Decompose()
	res := &Result{
		Model:       model,
		Foreground:  fg,
		Background:  bg,
		Calibration: calib,
		Scale:       scale,
		Position:    *pos,
		Rotation:    *rot,
		Culled:      culled,
	}
	if kps != nil {
		res.Corrections = ArmCorrections(kps, view, model.Skeleton, pose)
	}
	if p.RemoveBackground {
		res.Background = &gsplat.Cloud{}
	}
	return res, nil
}

// cloudToModel derives the transform placing the calibrated cloud in the
// skeleton's space: the ankle-band centroid moves to the origin, the floor
// to Y=0, and the measured body height is normalized to the skeleton's
// rest height (head bone plus a fixed skull allowance). Rotation stays
// identity; heading is not estimated.
func cloudToModel(skel *avatar.Skeleton, pose *avatar.Pose, calib *CalibrationResult) (float32, *geom.Matrix4) {
	restHeight := geom.Element(1.6)
	if head := skel.HumanBone("head"); head >= 0 {
		restHeight = pose.BonePosition(head).Y + headTopOffset
	}
	scale := restHeight / calib.Height()
	recenter := geom.NewTranslateMatrix4(-calib.CentroidXZ.X, -calib.Floor, -calib.CentroidXZ.Y)
	return scale, geom.NewScaleMatrix4(scale, scale, scale).Mul(recenter)
}
