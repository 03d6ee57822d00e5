package rig

import (
	"math"

	"github.com/binzume/splatrig/geom"
	"github.com/binzume/splatrig/gsplat"
)

// Calibration constants. Lengths are in meters, the cloud's native unit.
const (
	calibInitialRadius  = 0.3
	calibRadiusStep     = 0.1
	calibMaxRadius      = 3.0
	calibMinPoints      = 10000
	calibMinHeightRange = 0.3
	calibOuterBand      = 0.02    // annulus width at the column boundary
	calibSparseRatio    = 0.00025 // "effectively empty" density threshold
	calibBinSize        = 0.01
	calibWindowBins     = 5
	calibCeilingMargin  = 0.3 // skip this much above the floor before scanning

	shoeBandRatio = 0.05 // bottom fraction of body height checked for outliers
	shoeCellSize  = 0.01
	shoeMinHeight = 0.01
)

// CalibrationHint carries priors for a retried calibration.
type CalibrationHint struct {
	// MaxFloor caps the floor search: only window positions strictly
	// below this height are considered. Set from the detected knee
	// height when a first pass put the floor above the knees.
	MaxFloor float32
}

// CalibratorOptions overrides the stock thresholds. Nil means defaults.
type CalibratorOptions struct {
	MinPoints int     // minimum in-column points, default 10000
	MaxRadius float32 // search radius cap, default 3.0
}

func (o *CalibratorOptions) minPoints() int {
	if o == nil || o.MinPoints <= 0 {
		return calibMinPoints
	}
	return o.MinPoints
}

func (o *CalibratorOptions) maxRadius() float32 {
	if o == nil || o.MaxRadius <= 0 {
		return calibMaxRadius
	}
	return o.MaxRadius
}

// CalibrationResult describes the humanoid column located in the cloud.
type CalibrationResult struct {
	Floor   float32
	Ceiling float32 // head-top height

	// CentroidXZ is the horizontal centroid of the ankle band, used as
	// the standing position. HeadCentroidXZ is the top band's centroid.
	CentroidXZ     *geom.Vector2
	HeadCentroidXZ *geom.Vector2

	// SearchRadius is the column radius that satisfied all thresholds.
	// Radii lists every radius tried, in order; non-decreasing.
	SearchRadius float32
	Radii        []float32

	// Foreground holds the indices of in-column splats after shoe
	// outlier removal; Background holds everything else.
	Foreground []int
	Background []int
}

// Height returns the estimated body height.
func (r *CalibrationResult) Height() float32 {
	return r.Ceiling - r.Floor
}

// Calibrate locates a roughly cylindrical column of points plausibly
// belonging to a standing humanoid and measures floor height, head-top
// height and standing position. The column search starts narrow and
// widens by a fixed step whenever a density threshold fails, re-centering
// on the in-column centroid each round. Running past the radius cap means
// the cloud has no plausible humanoid column.
func Calibrate(cloud *gsplat.Cloud, hint *CalibrationHint, opts *CalibratorOptions) (*CalibrationResult, error) {
	if cloud.Count() == 0 {
		return nil, newErrorf(CodeCalibrationFailure, "empty point cloud")
	}
	minPoints := opts.minPoints()
	maxRadius := opts.maxRadius()
	center := cloud.CentroidXZ()
	result := &CalibrationResult{}

	for radius := float32(calibInitialRadius); ; radius += calibRadiusStep {
		if radius > maxRadius+1e-4 {
			return nil, newErrorf(CodeCalibrationFailure,
				"no humanoid column within radius %.1f (tried %d radii, last count below %d or thresholds unmet)",
				maxRadius, len(result.Radii), minPoints)
		}
		result.Radii = append(result.Radii, radius)

		column, outer := columnIndices(cloud, center, radius)
		if len(column) > 0 {
			center = columnCentroidXZ(cloud, column)
		}
		if len(column) < minPoints {
			continue
		}
		minY, maxY := columnHeightRange(cloud, column)
		if maxY-minY <= calibMinHeightRange {
			continue
		}
		if float32(outer) > calibSparseRatio*float32(len(column)) {
			// the column bleeds into the boundary annulus; widen until
			// the subject fits with clearance
			continue
		}

		bins := heightHistogram(cloud, column, minY)
		floor := minY + float32(floorBin(bins, minY, hint))*calibBinSize
		ceiling := minY + float32(ceilingBin(bins, floor-minY, len(column)))*calibBinSize
		if ceiling <= floor {
			continue
		}

		result.Floor = floor
		result.Ceiling = ceiling
		result.SearchRadius = radius

		height := ceiling - floor
		feet, err := bandCentroidXZ(cloud, column, floor+0.1*height, floor+0.2*height, "ankle")
		if err != nil {
			return nil, err
		}
		head, err := bandCentroidXZ(cloud, column, floor+0.9*height, ceiling, "head")
		if err != nil {
			return nil, err
		}
		result.CentroidXZ = feet
		result.HeadCentroidXZ = head

		outliers := shoeOutliers(cloud, column, center, floor, height)
		result.Foreground, result.Background = splitForeground(cloud, column, floor, ceiling, outliers)
		return result, nil
	}
}

// columnIndices returns the splats within radius of center on the XZ
// plane, plus the count of those inside the outer boundary annulus.
func columnIndices(cloud *gsplat.Cloud, center *geom.Vector2, radius float32) ([]int, int) {
	var indices []int
	outer := 0
	rr := radius * radius
	inner := radius - calibOuterBand
	ii := inner * inner
	for i := range cloud.Splats {
		p := &cloud.Splats[i].Position
		dx := p.X - center.X
		dz := p.Z - center.Y
		d := dx*dx + dz*dz
		if d > rr {
			continue
		}
		indices = append(indices, i)
		if d > ii {
			outer++
		}
	}
	return indices, outer
}

func columnCentroidXZ(cloud *gsplat.Cloud, indices []int) *geom.Vector2 {
	var x, z float64
	for _, i := range indices {
		x += float64(cloud.Splats[i].Position.X)
		z += float64(cloud.Splats[i].Position.Z)
	}
	n := float64(len(indices))
	return geom.NewVector2(float32(x/n), float32(z/n))
}

func columnHeightRange(cloud *gsplat.Cloud, indices []int) (float32, float32) {
	minY := cloud.Splats[indices[0]].Position.Y
	maxY := minY
	for _, i := range indices {
		y := cloud.Splats[i].Position.Y
		if y < minY {
			minY = y
		}
		if y > maxY {
			maxY = y
		}
	}
	return minY, maxY
}

func heightHistogram(cloud *gsplat.Cloud, indices []int, minY float32) []int {
	var bins []int
	for _, i := range indices {
		b := int((cloud.Splats[i].Position.Y - minY) / calibBinSize)
		if b < 0 {
			b = 0
		}
		for b >= len(bins) {
			bins = append(bins, 0)
		}
		bins[b]++
	}
	return bins
}

// floorBin slides a window up the vertical profile and picks the position
// maximizing (points inside the window) − (points just below it). The
// window sum stands in for "points above": past the foot boundary the
// density climbs for the whole window while the bins below stay near
// empty, so the differential peaks at the same bin. The naive minimum Y
// is useless here: floor noise and shoe geometry sit below the true foot
// boundary. Ties keep the lowest bin.
func floorBin(bins []int, minY float32, hint *CalibrationHint) int {
	best, bestScore, found := 0, 0, false
	for i := 0; i+calibWindowBins <= len(bins); i++ {
		if hint != nil && minY+float32(i)*calibBinSize >= hint.MaxFloor {
			break
		}
		score := 0
		for k := 0; k < calibWindowBins; k++ {
			score += bins[i+k]
		}
		for k := i - calibWindowBins; k < i; k++ {
			if k >= 0 {
				score -= bins[k]
			}
		}
		if !found || score > bestScore {
			best, bestScore, found = i, score, true
		}
	}
	if !found && hint != nil {
		// hint below the whole histogram; measure unconstrained
		return floorBin(bins, minY, nil)
	}
	return best
}

// ceilingBin scans upward from above the floor and returns the first bin
// whose density drops below the sparse threshold of the column total.
func ceilingBin(bins []int, floorOffset float32, total int) int {
	sparse := calibSparseRatio * float32(total)
	start := int((floorOffset + calibCeilingMargin) / calibBinSize)
	if start < 0 {
		start = 0
	}
	for i := start; i < len(bins); i++ {
		if float32(bins[i]) < sparse {
			return i
		}
	}
	return len(bins)
}

func bandCentroidXZ(cloud *gsplat.Cloud, indices []int, lo, hi float32, region string) (*geom.Vector2, error) {
	var x, z float64
	n := 0
	for _, i := range indices {
		y := cloud.Splats[i].Position.Y
		if y < lo || y > hi {
			continue
		}
		x += float64(cloud.Splats[i].Position.X)
		z += float64(cloud.Splats[i].Position.Z)
		n++
	}
	if n == 0 {
		return nil, newErrorf(CodeEmptyRegion, "no points in %s band [%.2f, %.2f]", region, lo, hi)
	}
	return geom.NewVector2(float32(x/float64(n)), float32(z/float64(n))), nil
}

type shoeCell struct {
	count int
	sumY  float64
	keep  bool
}

// shoeOutliers bins the bottom height band on a 1cm XZ grid and returns
// the splat indices falling outside the shoe body: cells with at-or-below
// mean occupancy or with mean height hugging the floor, plus kept cells
// isolated from the body (5 or more of the 8 neighbors not kept). Shoe
// tips throw long sparse spikes that would otherwise drag the capsule fit.
func shoeOutliers(cloud *gsplat.Cloud, indices []int, center *geom.Vector2, floor, height float32) map[int]bool {
	top := floor + shoeBandRatio*height
	cells := map[[2]int]*shoeCell{}
	var band []int
	for _, i := range indices {
		p := &cloud.Splats[i].Position
		if p.Y < floor || p.Y > top {
			continue
		}
		band = append(band, i)
		key := shoeCellKey(p, center)
		c := cells[key]
		if c == nil {
			c = &shoeCell{}
			cells[key] = c
		}
		c.count++
		c.sumY += float64(p.Y - floor)
	}
	if len(cells) == 0 {
		return nil
	}

	mean := float64(len(band)) / float64(len(cells))
	for _, c := range cells {
		c.keep = float64(c.count) > mean && c.sumY/float64(c.count) > shoeMinHeight
	}
	// demote isolated keep cells
	var demote [][2]int
	for key, c := range cells {
		if !c.keep {
			continue
		}
		notKept := 0
		for dx := -1; dx <= 1; dx++ {
			for dz := -1; dz <= 1; dz++ {
				if dx == 0 && dz == 0 {
					continue
				}
				n := cells[[2]int{key[0] + dx, key[1] + dz}]
				if n == nil || !n.keep {
					notKept++
				}
			}
		}
		if notKept >= 5 {
			demote = append(demote, key)
		}
	}
	for _, key := range demote {
		cells[key].keep = false
	}

	outliers := map[int]bool{}
	for _, i := range band {
		if !cells[shoeCellKey(&cloud.Splats[i].Position, center)].keep {
			outliers[i] = true
		}
	}
	return outliers
}

func shoeCellKey(p *geom.Vector3, center *geom.Vector2) [2]int {
	return [2]int{
		int(math.Floor(float64(p.X-center.X) / shoeCellSize)),
		int(math.Floor(float64(p.Z-center.Y) / shoeCellSize)),
	}
}

// splitForeground partitions the whole cloud: in-column splats inside the
// body height band minus shoe outliers go foreground, the rest background.
func splitForeground(cloud *gsplat.Cloud, column []int, floor, ceiling float32, outliers map[int]bool) ([]int, []int) {
	inColumn := make([]bool, cloud.Count())
	fg := make([]int, 0, len(column))
	for _, i := range column {
		inColumn[i] = true
	}
	var bg []int
	for i := range cloud.Splats {
		y := cloud.Splats[i].Position.Y
		if inColumn[i] && !outliers[i] && y >= floor && y <= ceiling {
			fg = append(fg, i)
		} else {
			bg = append(bg, i)
		}
	}
	return fg, bg
}
