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

// This file turns a brush's planes into polygons.
//
// Every face starts out as a huge square in its own plane, which is then clipped
// by every other plane of the brush. Whatever survives is that face's polygon.

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"
)

const (
	// Half size of the initial winding. Bigger than any sane map.
	windingSize = 8192.0

	// Distance at which a point is considered on a plane.
	clipEpsilon = 1e-3

	// Distance at which two vertices are the same vertex.
	mergeEpsilon = 1e-3
)

// A Brush is a convex solid bounded by its faces' planes.
type Brush struct {
	ID     int
	Entity int // Index of the owning entity in Map.Entities.
	Faces  []*Face

	// Unique vertices of all faces, set by CalculateGeometry.
	Vertices []mgl32.Vec3
}

// Bounds is an axis aligned bounding box.
type Bounds struct {
	Min, Max mgl32.Vec3
}

// baseWinding returns a big square in the plane of f.
func baseWinding(f *Face) []mgl64.Vec3 {
	f.resolve()
	n := f.normal
	up := mgl64.Vec3{0, 0, 1}
	if math.Abs(n[2]) >= 0.9 {
		up = mgl64.Vec3{1, 0, 0}
	}
	u := up.Cross(n).Normalize()
	v := n.Cross(u)
	origin := n.Mul(f.distance)
	return []mgl64.Vec3{
		origin.Add(u.Add(v).Mul(windingSize)),
		origin.Add(u.Mul(-1).Add(v).Mul(windingSize)),
		origin.Add(u.Mul(-1).Sub(v).Mul(windingSize)),
		origin.Add(u.Sub(v).Mul(windingSize)),
	}
}

const (
	sideFront = iota
	sideBack
	sideOn
)

// clipWinding keeps the part of the polygon where n.p-d >= -clipEpsilon.
//
// Points within clipEpsilon of the plane are kept as they are. New points are
// only added for edges going from clearly in front to clearly behind (or the
// other way), so a point already on the plane never gets a twin.
func clipWinding(in []mgl64.Vec3, n mgl64.Vec3, d float64) []mgl64.Vec3 {
	if len(in) == 0 {
		return nil
	}
	dists := make([]float64, len(in))
	sides := make([]int, len(in))
	for i, p := range in {
		dists[i] = n.Dot(p) - d
		switch {
		case dists[i] > clipEpsilon:
			sides[i] = sideFront
		case dists[i] < -clipEpsilon:
			sides[i] = sideBack
		default:
			sides[i] = sideOn
		}
	}

	out := make([]mgl64.Vec3, 0, len(in)+1)
	for i, p := range in {
		j := (i + 1) % len(in)
		if sides[i] != sideBack {
			out = append(out, p)
		}
		if sides[i] == sideOn || sides[j] == sideOn || sides[i] == sides[j] {
			continue
		}
		t := dists[i] / (dists[i] - dists[j])
		out = append(out, p.Add(in[j].Sub(p).Mul(t)))
	}
	return out
}

// poolIndex returns the index of v in the vertex pool, adding it if needed.
func poolIndex(pool *[]mgl64.Vec3, v mgl64.Vec3) int {
	for n, p := range *pool {
		if p.Sub(v).Len() < mergeEpsilon {
			return n
		}
	}
	*pool = append(*pool, v)
	return len(*pool) - 1
}

// windingNormal returns the area weighted normal of a convex polygon. The
// first three points may be collinear.
func windingNormal(pool []mgl64.Vec3, idx []int) mgl64.Vec3 {
	var ret mgl64.Vec3
	v0 := pool[idx[0]]
	for i := 1; i < len(idx)-1; i++ {
		ret = ret.Add(pool[idx[i]].Sub(v0).Cross(pool[idx[i+1]].Sub(v0)))
	}
	return ret
}

// CalculateGeometry builds the polygon of every face and the shared vertex pool.
//
// Faces whose plane doesn't touch the solid, or whose points are collinear, end
// up with fewer than three vertices and should be ignored.
// The polygons wind counter-clockwise when seen from outside the brush.
func (b *Brush) CalculateGeometry() {
	var pool []mgl64.Vec3
	for _, f := range b.Faces {
		f.Vertices = nil
		if f.degenerate() {
			continue
		}

		poly := baseWinding(f)
		for _, other := range b.Faces {
			if other == f || other.degenerate() {
				continue
			}
			poly = clipWinding(poly, other.normal, other.distance)
		}

		for _, p := range poly {
			idx := poolIndex(&pool, p)
			if l := len(f.Vertices); l > 0 && f.Vertices[l-1] == idx {
				continue
			}
			f.Vertices = append(f.Vertices, idx)
		}
		if l := len(f.Vertices); l > 1 && f.Vertices[0] == f.Vertices[l-1] {
			f.Vertices = f.Vertices[:l-1]
		}

		if len(f.Vertices) >= 3 {
			if windingNormal(pool, f.Vertices).Dot(f.normal) > 0 {
				for i, j := 0, len(f.Vertices)-1; i < j; i, j = i+1, j-1 {
					f.Vertices[i], f.Vertices[j] = f.Vertices[j], f.Vertices[i]
				}
			}
		}
	}

	b.Vertices = make([]mgl32.Vec3, len(pool))
	for n, p := range pool {
		b.Vertices[n] = vec32(p)
	}
}

// Polygon returns the vertices of one of the brush's faces, in winding order.
func (b *Brush) Polygon(f *Face) []mgl32.Vec3 {
	ret := make([]mgl32.Vec3, 0, len(f.Vertices))
	for _, idx := range f.Vertices {
		ret = append(ret, b.Vertices[idx])
	}
	return ret
}

// Center returns the mean of the brush vertices.
func (b *Brush) Center() mgl32.Vec3 {
	var c mgl32.Vec3
	if len(b.Vertices) == 0 {
		return c
	}
	for _, v := range b.Vertices {
		c = c.Add(v)
	}
	return c.Mul(1 / float32(len(b.Vertices)))
}

// Bounds returns the bounding box of the brush vertices.
func (b *Brush) Bounds() Bounds {
	if len(b.Vertices) == 0 {
		return Bounds{}
	}
	ret := Bounds{Min: b.Vertices[0], Max: b.Vertices[0]}
	for _, v := range b.Vertices[1:] {
		for i := 0; i < 3; i++ {
			ret.Min[i] = min(ret.Min[i], v[i])
			ret.Max[i] = max(ret.Max[i], v[i])
		}
	}
	return ret
}
