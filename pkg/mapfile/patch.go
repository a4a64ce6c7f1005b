package mapfile

// QMap
//
// Copyright (C) Thomas Habets <thomas@habets.se> 2015
// https://github.com/ThomasHabets/qmap
//
//   This program is free software; you can redistribute it and/or modify
//   it under the terms of the GNU General Public License as published by
//   the Free Software Foundation; either version 2 of the License, or
//   (at your option) any later version.
//
//   This program is distributed in the hope that it will be useful,
//   but WITHOUT ANY WARRANTY; without even the implied warranty of
//   MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
//   GNU General Public License for more details.
//
//   You should have received a copy of the GNU General Public License along
//   with this program; if not, write to the Free Software Foundation, Inc.,
//   51 Franklin Street, Fifth Floor, Boston, MA 02110-1301 USA.

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	// Subdivisions per sub-patch per unit of corner to corner distance.
	subdivisionFactor = 0.1
	minSubdivisions   = 1
	maxSubdivisions   = 5

	// Parameter step used to estimate the normal.
	normalDelta = 0.001
)

// PatchVert is a control point or an evaluated point of a patch.
type PatchVert struct {
	Position mgl32.Vec3
	UV       mgl32.Vec2
	Normal   mgl32.Vec3
}

// A Patch is a curved surface made of biquadratic Bezier sub-patches.
//
// The control grid is (2m+1)x(2n+1). Sub-patch (sv,su) uses rows 2sv..2sv+2 and
// columns 2su..2su+2, so neighbours share their edge row or column.
type Patch struct {
	ID      int
	Entity  int // Index of the owning entity in Map.Entities.
	Texture string

	Width, Height int
	Flags         [3]int

	ControlPoints [][]PatchVert // Height rows of Width points.

	// Evaluated grid, set by CalculateGeometry.
	Vertices [][]PatchVert
}

// subPatches returns the number of sub-patches down and across.
func (p *Patch) subPatches() (int, int) {
	rows := len(p.ControlPoints)
	if rows < 3 || len(p.ControlPoints[0]) < 3 {
		return 0, 0
	}
	return (rows - 1) / 2, (len(p.ControlPoints[0]) - 1) / 2
}

// Subdivisions returns how many rows and columns of quads each sub-patch is split
// into, based on the distance between the first and last control point.
func (p *Patch) Subdivisions() int {
	pv, pu := p.subPatches()
	if pv < 1 || pu < 1 {
		return 0
	}
	first := p.ControlPoints[0][0].Position
	lastRow := p.ControlPoints[len(p.ControlPoints)-1]
	last := lastRow[len(lastRow)-1].Position
	n := int(last.Sub(first).Len() * subdivisionFactor)
	return max(minSubdivisions, min(n, maxSubdivisions))
}

func bezier(b0, b1, b2, t float32) float32 {
	it := 1 - t
	return b0*it*it + 2*b1*it*t + b2*t*t
}

func bezierVert(a, b, c PatchVert, t float32) PatchVert {
	var ret PatchVert
	for i := 0; i < 3; i++ {
		ret.Position[i] = bezier(a.Position[i], b.Position[i], c.Position[i], t)
	}
	for i := 0; i < 2; i++ {
		ret.UV[i] = bezier(a.UV[i], b.UV[i], c.UV[i], t)
	}
	return ret
}

// evalPoint evaluates position and UV of a 3x3 block, first across u then across v.
func evalPoint(cp *[3][3]PatchVert, u, v float32) PatchVert {
	var tmp [3]PatchVert
	for i := range tmp {
		tmp[i] = bezierVert(cp[i][0], cp[i][1], cp[i][2], u)
	}
	return bezierVert(tmp[0], tmp[1], tmp[2], v)
}

// tangent estimates the derivative direction at parameter t by stepping
// normalDelta forward, or backward when that would leave the patch.
func tangent(center mgl32.Vec3, eval func(float32) mgl32.Vec3, t float32) mgl32.Vec3 {
	if t+normalDelta <= 1 {
		return eval(t + normalDelta).Sub(center)
	}
	return center.Sub(eval(t - normalDelta))
}

func evalPatch(cp *[3][3]PatchVert, u, v float32) PatchVert {
	ret := evalPoint(cp, u, v)
	du := tangent(ret.Position, func(t float32) mgl32.Vec3 { return evalPoint(cp, t, v).Position }, u)
	dv := tangent(ret.Position, func(t float32) mgl32.Vec3 { return evalPoint(cp, u, t).Position }, v)
	n := du.Cross(dv)
	if l := n.Len(); l > 0 && !math32.IsInf(l, 0) {
		ret.Normal = n.Mul(1 / l)
	}
	return ret
}

// local maps output row/column i of n*sub total to a sub-patch and a parameter
// in [0,1] inside it.
func local(i, n, sub int) (int, float32) {
	s := min(i/n, sub-1)
	return s, float32(i-s*n) / float32(n)
}

// CalculateGeometry evaluates the patch into Vertices.
// Patches with fewer than three rows or columns get no vertices.
func (p *Patch) CalculateGeometry() {
	p.Vertices = nil
	pv, pu := p.subPatches()
	if pv < 1 || pu < 1 {
		return
	}
	n := p.Subdivisions()
	nv, nu := pv*n, pu*n

	p.Vertices = make([][]PatchVert, nv+1)
	for i := 0; i <= nv; i++ {
		subV, v := local(i, n, pv)
		p.Vertices[i] = make([]PatchVert, nu+1)
		for j := 0; j <= nu; j++ {
			subU, u := local(j, n, pu)

			var block [3][3]PatchVert
			for r := 0; r < 3; r++ {
				for c := 0; c < 3; c++ {
					block[r][c] = p.ControlPoints[subV*2+r][subU*2+c]
				}
			}
			p.Vertices[i][j] = evalPatch(&block, u, v)
		}
	}
}
