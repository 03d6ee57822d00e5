package rig

import (
	"context"
	"math"

	"github.com/binzume/splatrig/avatar"
	"github.com/binzume/splatrig/geom"
	"github.com/binzume/splatrig/gsplat"
)

// BindSplats matches every classified splat to the nearest vertex of its
// own bone's pool and records the rest-space offset. The per-bone pool
// bounds the search and guarantees the splat and its vertex agree on the
// owning bone.
//
// The offset is computed with the measurement-pose skin transform removed:
//
//	offset = skin(v)⁻¹ · worldSplat − restPosition(v)
//
// so playback only has to re-apply the current skin transform. Binding is
// the one-time cost that makes per-frame deformation search-free.
func BindSplats(ctx context.Context, cloud *gsplat.Cloud, mesh *avatar.SkinnedMesh, pose *avatar.Pose, toWorld *geom.Matrix4, pools map[int][]int, opts *ClassifyOptions) error {
	// Skeleton-only mode: no usable mesh, bind everything to vertex 0
	// with a zero offset.
	if pools == nil || mesh.VertexCount() == 0 {
		for i := range cloud.Splats {
			cloud.Splats[i].Vertex = 0
			cloud.Splats[i].Offset = geom.Vector3{}
		}
		return nil
	}

	// cache posed vertex positions and which bone owns each vertex
	posed := make([]geom.Vector3, mesh.VertexCount())
	for _, pool := range pools {
		for _, vi := range pool {
			posed[vi] = *mesh.PosedPosition(vi, pose)
		}
	}

	total := cloud.Count()
	yield := opts.yieldEvery()
	stride := 1
	if opts.fast() {
		stride = fastVertexStride
	}
	for i := range cloud.Splats {
		if i%yield == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
			opts.progress(i, total)
		}
		s := &cloud.Splats[i]
		world := toWorld.ApplyTo(&s.Position)

		pool := pools[s.Bone]
		if len(pool) == 0 {
			// the splat's bone attracted no vertices; fall back to a
			// whole-mesh search and adopt the winning vertex's bone so
			// the bone-consistency invariant still holds
			bestBone, bestVi := s.Bone, -1
			bestDist := geom.Element(math.MaxFloat32)
			for bone, p := range pools {
				for k := 0; k < len(p); k += stride {
					d := posed[p[k]].Sub(world).LenSqr()
					if d < bestDist || (d == bestDist && p[k] < bestVi) {
						bestDist, bestVi, bestBone = d, p[k], bone
					}
				}
			}
			if bestVi < 0 {
				continue
			}
			s.Bone = bestBone
			bindOffset(s, mesh, pose, world, bestVi)
			continue
		}

		bestVi := pool[0]
		bestDist := posed[pool[0]].Sub(world).LenSqr()
		for k := stride; k < len(pool); k += stride {
			vi := pool[k]
			d := posed[vi].Sub(world).LenSqr()
			if d < bestDist {
				bestDist = d
				bestVi = vi
			}
		}
		bindOffset(s, mesh, pose, world, bestVi)
	}
	opts.progress(total, total)
	return nil
}

func bindOffset(s *gsplat.Splat, mesh *avatar.SkinnedMesh, pose *avatar.Pose, world *geom.Vector3, vi int) {
	local := mesh.VertexSkinMatrix(vi, pose).Inverse().ApplyTo(world)
	s.Vertex = vi
	s.Offset = *local.Sub(&mesh.Positions[vi])
}

// CullByDistance zeroes the opacity of bound splats that sit further from
// their bound vertex (in posed space) than the per-bone threshold allows.
// Records stay in place so binding arrays keep their indices. Returns the
// number of culled splats.
func CullByDistance(cloud *gsplat.Cloud, mesh *avatar.SkinnedMesh, pose *avatar.Pose, toWorld *geom.Matrix4, skel *avatar.Skeleton, conf *Config) int {
	if mesh.VertexCount() == 0 || conf == nil {
		return 0
	}
	var culled []int
	for i := range cloud.Splats {
		s := &cloud.Splats[i]
		if s.Vertex == gsplat.Unassigned || s.Bone < 0 || s.Bone >= len(skel.Bones) {
			continue
		}
		limit := conf.cullDistance(skel.Bones[s.Bone].HumanName)
		if limit <= 0 {
			continue
		}
		world := toWorld.ApplyTo(&s.Position)
		d := mesh.PosedPosition(s.Vertex, pose).Sub(world).Len()
		if d > limit {
			culled = append(culled, i)
		}
	}
	cloud.Cull(culled)
	return len(culled)
}
