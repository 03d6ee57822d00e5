package rig

import (
	"context"
	"math"

	"github.com/binzume/splatrig/avatar"
	"github.com/binzume/splatrig/geom"
	"github.com/binzume/splatrig/gsplat"
)

// ClassifyOptions controls the exhaustive nearest-capsule searches.
type ClassifyOptions struct {
	// Fast classifies only every Nth element exactly; skipped elements
	// inherit the previous exact result. Preview quality, not for export.
	Fast bool

	// Progress is invoked at yield points with (done, total).
	Progress func(done, total int)

	// YieldEvery is the iteration interval between context checks.
	// Zero means the default of 100.
	YieldEvery int
}

const (
	defaultYieldEvery = 100
	fastSplatStride   = 10
	fastVertexStride  = 3
)

func (o *ClassifyOptions) yieldEvery() int {
	if o == nil || o.YieldEvery <= 0 {
		return defaultYieldEvery
	}
	return o.YieldEvery
}

func (o *ClassifyOptions) fast() bool {
	return o != nil && o.Fast
}

func (o *ClassifyOptions) progress(done, total int) {
	if o != nil && o.Progress != nil {
		o.Progress(done, total)
	}
}

// nearestCapsule finds the capsule with minimum point-to-triangle distance.
// Strict less keeps the lowest capsule ordinal on exact ties.
func nearestCapsule(p *geom.Vector3, capsules []BoneCapsule) int {
	best := 0
	bestDist := geom.Element(math.MaxFloat32)
	for ci := range capsules {
		for ti := range capsules[ci].Triangles {
			tri := &capsules[ci].Triangles[ti]
			d := geom.PointTriangleDistanceSqr(p, &tri[0], &tri[1], &tri[2])
			if d < bestDist {
				bestDist = d
				best = ci
			}
		}
	}
	return best
}

// ClassifySplats assigns every splat to the bone of its nearest capsule.
// toWorld maps cloud object space into the capsules' world space. With an
// empty capsule set every splat is assigned bone 0 (skeleton-only mode).
func ClassifySplats(ctx context.Context, cloud *gsplat.Cloud, toWorld *geom.Matrix4, capsules []BoneCapsule, opts *ClassifyOptions) error {
	total := cloud.Count()
	if len(capsules) == 0 {
		for i := range cloud.Splats {
			cloud.Splats[i].Bone = 0
		}
		opts.progress(total, total)
		return nil
	}

	yield := opts.yieldEvery()
	lastBone, lastColor := 0, 0
	for i := range cloud.Splats {
		if i%yield == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
			opts.progress(i, total)
		}
		s := &cloud.Splats[i]
		if opts.fast() && i%fastSplatStride != 0 {
			s.Bone = lastBone
			s.ColorIndex = lastColor
			continue
		}
		ci := nearestCapsule(toWorld.ApplyTo(&s.Position), capsules)
		s.Bone = capsules[ci].Bone
		s.ColorIndex = capsules[ci].ColorIndex
		lastBone, lastColor = s.Bone, s.ColorIndex
	}
	opts.progress(total, total)
	return nil
}

// ClassifyVertices groups posed mesh vertices by their nearest capsule's
// bone. The result maps bone index to vertex indices; the binder needs the
// per-bone pools, not a flat array. A mesh with three or fewer vertices is
// treated as skeleton-only and yields nil.
func ClassifyVertices(ctx context.Context, mesh *avatar.SkinnedMesh, pose *avatar.Pose, capsules []BoneCapsule, opts *ClassifyOptions) (map[int][]int, error) {
	if mesh.VertexCount() <= 3 {
		return nil, nil
	}

	pools := map[int][]int{}
	total := mesh.VertexCount()
	yield := opts.yieldEvery()
	for i := 0; i < total; i++ {
		if i%yield == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			opts.progress(i, total)
		}
		bone := 0
		if len(capsules) > 0 {
			ci := nearestCapsule(mesh.PosedPosition(i, pose), capsules)
			bone = capsules[ci].Bone
		}
		pools[bone] = append(pools[bone], i)
	}
	opts.progress(total, total)
	return pools, nil
}
