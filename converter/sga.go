// Package converter wires the binding pipeline to files on disk: an
// avatar model plus a gaussian splat cloud in, a splat-avatar archive out.
package converter

import (
	"context"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/binzume/splatrig/gsplat"
	"github.com/binzume/splatrig/rig"
	"github.com/binzume/splatrig/sga"
	"github.com/binzume/splatrig/vrm"
)

type SGAOptions struct {
	Config   *rig.Config
	Detector rig.KeypointDetector
	Logger   *zap.Logger

	Fast             bool
	SkipValidation   bool
	RemoveBackground bool
	DebugDir         string

	// WriteSplitClouds additionally writes <out>.fg.ply and <out>.bg.ply
	// next to the archive for separate rendering treatment.
	WriteSplitClouds bool

	Calibrator *rig.CalibratorOptions
	Progress   func(done, total int)
}

type sgaConverter struct {
	options *SGAOptions
	logger  *zap.Logger
}

func NewSGAConverter(options *SGAOptions) *sgaConverter {
	if options == nil {
		options = &SGAOptions{}
	}
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &sgaConverter{options: options, logger: logger}
}

// Convert runs the binding pipeline on the given model and cloud files
// and writes the archive to output. On terminal failure a diagnostic
// record is logged and no output file is left behind.
func (c *sgaConverter) Convert(ctx context.Context, modelPath, cloudPath, output string) error {
	pipeline := &rig.Pipeline{
		Mesh:             &vrm.FileSource{Path: modelPath},
		Cloud:            &gsplat.FileSource{Path: cloudPath},
		Config:           c.options.Config,
		Detector:         c.options.Detector,
		Logger:           c.logger,
		Fast:             c.options.Fast,
		SkipValidation:   c.options.SkipValidation,
		RemoveBackground: c.options.RemoveBackground,
		Calibrator:       c.options.Calibrator,
		Progress:         c.options.Progress,
	}
	if c.options.DebugDir != "" {
		pipeline.Debug = &rig.DebugWriter{Dir: c.options.DebugDir}
	}

	result, err := pipeline.Run(ctx)
	if err != nil {
		rig.NewDiagnostic(cloudPath, err).Log(c.logger)
		return err
	}

	binding := sga.NewBinding(result.Foreground, result.Scale,
		&result.Position, &result.Rotation)
	for _, corr := range result.Corrections {
		binding.BoneOperations = append(binding.BoneOperations, sga.BoneOperation{
			Bone:     corr.Bone,
			Rotation: [4]float32{corr.Rotation.X, corr.Rotation.Y, corr.Rotation.Z, corr.Rotation.W},
		})
	}
	archive := &sga.Archive{
		ModelGLB: result.Model.RawGLB,
		Splats:   result.Foreground,
		Binding:  binding,
	}
	if err := sga.SaveFile(output, archive); err != nil {
		return err
	}
	c.logger.Info("archive written", zap.String("path", output))

	if c.options.WriteSplitClouds {
		base := strings.TrimSuffix(output, ".sga")
		if err := writeCloud(base+".fg.ply", result.Foreground); err != nil {
			return err
		}
		if !c.options.RemoveBackground {
			if err := writeCloud(base+".bg.ply", result.Background); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeCloud(path string, cloud *gsplat.Cloud) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return gsplat.Write(cloud, f)
}
