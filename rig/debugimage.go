package rig

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"

	"golang.org/x/image/draw"

	"github.com/binzume/splatrig/gsplat"
)

const (
	debugImageGrid = 128 // raster resolution before upscaling
	debugImageSize = 512
)

// DebugWriter drops QA images into a directory. A nil writer or an empty
// directory disables all output.
type DebugWriter struct {
	Dir string
}

func (w *DebugWriter) enabled() bool {
	return w != nil && w.Dir != ""
}

// WriteColumnHeatmap renders a top-down XZ density heatmap of the
// calibrated foreground, warm where dense.
func (w *DebugWriter) WriteColumnHeatmap(name string, cloud *gsplat.Cloud, result *CalibrationResult) error {
	if !w.enabled() {
		return nil
	}
	minP, maxP := cloud.Bounds()
	img := image.NewRGBA(image.Rect(0, 0, debugImageGrid, debugImageGrid))
	counts := make([]int, debugImageGrid*debugImageGrid)
	peak := 1
	for _, i := range result.Foreground {
		p := &cloud.Splats[i].Position
		x, z := debugCell(p.X, minP.X, maxP.X), debugCell(p.Z, minP.Z, maxP.Z)
		counts[z*debugImageGrid+x]++
		if counts[z*debugImageGrid+x] > peak {
			peak = counts[z*debugImageGrid+x]
		}
	}
	for z := 0; z < debugImageGrid; z++ {
		for x := 0; x < debugImageGrid; x++ {
			v := uint8(255 * counts[z*debugImageGrid+x] / peak)
			img.Set(x, z, color.RGBA{R: v, G: v / 2, B: 255 - v, A: 255})
		}
	}
	return w.save(name, img)
}

// WriteClassification renders a top-down XZ view with each splat colored
// by its capsule palette ordinal.
func (w *DebugWriter) WriteClassification(name string, cloud *gsplat.Cloud) error {
	if !w.enabled() {
		return nil
	}
	minP, maxP := cloud.Bounds()
	img := image.NewRGBA(image.Rect(0, 0, debugImageGrid, debugImageGrid))
	for i := range cloud.Splats {
		s := &cloud.Splats[i]
		if s.ColorIndex == gsplat.Unassigned {
			continue
		}
		c := PaletteColor(s.ColorIndex)
		x, z := debugCell(s.Position.X, minP.X, maxP.X), debugCell(s.Position.Z, minP.Z, maxP.Z)
		img.Set(x, z, color.RGBA{
			R: uint8(c[0] * 255),
			G: uint8(c[1] * 255),
			B: uint8(c[2] * 255),
			A: 255,
		})
	}
	return w.save(name, img)
}

func (w *DebugWriter) save(name string, img image.Image) error {
	dst := image.NewRGBA(image.Rect(0, 0, debugImageSize, debugImageSize))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	f, err := os.Create(filepath.Join(w.Dir, name+".png"))
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, dst)
}

func debugCell(v, min, max float32) int {
	if max <= min {
		return 0
	}
	c := int(float32(debugImageGrid) * (v - min) / (max - min))
	if c < 0 {
		c = 0
	}
	if c >= debugImageGrid {
		c = debugImageGrid - 1
	}
	return c
}

// RenderFrontView rasterizes splat centers into an orthographic front
// (XY plane) image for the keypoint detector, brightest where densest.
func RenderFrontView(cloud *gsplat.Cloud, size int) (*image.RGBA, *OrthoView) {
	minP, maxP := cloud.Bounds()
	view := &OrthoView{
		MinX: minP.X, MaxX: maxP.X,
		MinY: minP.Y, MaxY: maxP.Y,
		Width: size, Height: size,
	}
	counts := make([]int, size*size)
	peak := 1
	for i := range cloud.Splats {
		p := &cloud.Splats[i].Position
		x := viewCell(p.X, minP.X, maxP.X, size)
		y := size - 1 - viewCell(p.Y, minP.Y, maxP.Y, size)
		counts[y*size+x]++
		if counts[y*size+x] > peak {
			peak = counts[y*size+x]
		}
	}
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			v := uint8(255 * counts[y*size+x] / peak)
			img.Set(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img, view
}

func viewCell(v, min, max float32, size int) int {
	if max <= min {
		return 0
	}
	c := int(float32(size) * (v - min) / (max - min))
	if c < 0 {
		c = 0
	}
	if c >= size {
		c = size - 1
	}
	return c
}
