package geom

import (
	"math"
	"sort"
)

// CombineRings merges a polygon's inner rings (holes) into its outer ring,
// producing a single, possibly self-touching ring the grid clipper can
// handle. Each inner ring is rotated so its leftmost vertex comes first,
// rings are processed left to right, and each is spliced into the outer ring
// at the nearest outer vertex that is not right of the ring.
//
// The inner ring slices are used as scratch space and their contents are
// undefined afterwards.
func CombineRings(outer []Point, inners [][]Point) []Point {
	if len(inners) == 0 {
		return outer
	}

	// Rotate each inner ring so its min-x vertex is first
	for i, ring := range inners {
		if len(ring) == 0 {
			continue
		}
		minIdx := 0
		for j, p := range ring {
			if p.X < ring[minIdx].X {
				minIdx = j
			}
		}
		if minIdx != 0 {
			rotated := make([]Point, 0, len(ring))
			rotated = append(rotated, ring[minIdx:]...)
			rotated = append(rotated, ring[:minIdx]...)
			inners[i] = rotated
		}
	}

	// Left to right by each ring's leftmost vertex
	sort.SliceStable(inners, func(i, j int) bool {
		xi, xj := math.Inf(1), math.Inf(1)
		if len(inners[i]) > 0 {
			xi = inners[i][0].X
		}
		if len(inners[j]) > 0 {
			xj = inners[j][0].X
		}
		return xi < xj
	})

	for _, ring := range inners {
		if len(ring) == 0 {
			continue
		}
		anchor := ring[0]

		// Nearest outer vertex not right of the ring's leftmost vertex
		best := -1
		bestDist := math.Inf(1)
		for i, p := range outer {
			if p.X > anchor.X {
				continue
			}
			if d := p.DistSq(anchor); d < bestDist {
				best = i
				bestDist = d
			}
		}
		if best < 0 {
			// Outer ring is empty or lies entirely right of the hole
			continue
		}

		// Walk out to the hole, around it, back to the anchor and then
		// resume the outer ring at the splice vertex.
		spliced := make([]Point, 0, best+1+len(ring)+1+len(outer)-best)
		spliced = append(spliced, outer[:best+1]...)
		spliced = append(spliced, ring...)
		spliced = append(spliced, anchor)
		spliced = append(spliced, outer[best:]...)
		outer = spliced
	}
	return outer
}
