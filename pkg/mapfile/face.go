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
	"github.com/go-gl/mathgl/mgl64"
)

const (
	// Texture size assumed until the real one has been filled in.
	defaultTextureSize = 512.0
)

var (
	// Reference axes for Standard projection, checked in this order.
	axisUp      = mgl32.Vec3{0, 0, 1}
	axisRight   = mgl32.Vec3{0, 1, 0}
	axisForward = mgl32.Vec3{1, 0, 0}
)

// Projection is how a texture is mapped onto a face.
// It is either a StandardProjection or a Valve220Projection.
type Projection interface {
	uv(f *Face, v mgl32.Vec3, size mgl32.Vec2) mgl32.Vec2
}

// StandardProjection is the original Quake texture alignment. The texture is
// projected onto whichever axis plane the face is most aligned with.
type StandardProjection struct {
	XOffset, YOffset float32
	Rotation         float32 // Degrees.
	XScale, YScale   float32
}

// Valve220Projection is the Half-Life texture alignment with explicit texture axes.
type Valve220Projection struct {
	UAxis, VAxis     mgl32.Vec3
	XOffset, YOffset float32

	// Rotation is kept so that it survives a round trip, but it's already baked
	// into the axes and is not used for texture coordinates.
	Rotation       float32
	XScale, YScale float32
}

// A Face is one bounding plane of a brush, given by three points.
//
// The plane normal is (P2-P1)x(P3-P1). For a well formed brush it points into
// the solid.
type Face struct {
	P1, P2, P3 mgl32.Vec3
	Texture    string
	Projection Projection

	// Content and surface flags. Zero to three of them, as they appeared in the file.
	Flags []int

	// Indices into the owning brush's Vertices, set by Brush.CalculateGeometry.
	Vertices []int

	resolved bool
	normal   mgl64.Vec3
	distance float64
	center   mgl32.Vec3
}

func vec64(v mgl32.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{float64(v[0]), float64(v[1]), float64(v[2])}
}

func vec32(v mgl64.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{float32(v[0]), float32(v[1]), float32(v[2])}
}

// resolve computes the plane. The points are immutable after parsing, so this only
// needs to happen once.
func (f *Face) resolve() {
	if f.resolved {
		return
	}
	f.resolved = true
	p1, p2, p3 := vec64(f.P1), vec64(f.P2), vec64(f.P3)
	n := p2.Sub(p1).Cross(p3.Sub(p1))
	if l := n.Len(); l > 1e-12 {
		f.normal = n.Mul(1 / l)
	}
	f.distance = f.normal.Dot(p1)
	f.center = f.P1.Add(f.P2).Add(f.P3).Mul(1.0 / 3.0)
}

// Normal returns the unit plane normal. It's the zero vector if the three
// points are collinear.
func (f *Face) Normal() mgl32.Vec3 {
	f.resolve()
	return vec32(f.normal)
}

// Distance returns the signed distance of the plane from the origin along Normal.
func (f *Face) Distance() float32 {
	f.resolve()
	return float32(f.distance)
}

// Center returns the mean of the three defining points.
func (f *Face) Center() mgl32.Vec3 {
	f.resolve()
	return f.center
}

// degenerate returns true if the points don't define a plane.
func (f *Face) degenerate() bool {
	f.resolve()
	return f.normal == mgl64.Vec3{}
}

// UV returns the texture coordinates of vertex v on this face, for a texture of
// the given pixel size. A zero width means the size isn't known yet.
func (f *Face) UV(v mgl32.Vec3, size mgl32.Vec2) mgl32.Vec2 {
	if size[0] == 0 {
		size = mgl32.Vec2{defaultTextureSize, defaultTextureSize}
	}
	if f.Projection == nil {
		return mgl32.Vec2{}
	}
	return f.Projection.uv(f, v, size)
}

func nonZero(s float32) float32 {
	if s == 0 {
		return 1
	}
	return s
}

func (p StandardProjection) uv(f *Face, v mgl32.Vec3, size mgl32.Vec2) mgl32.Vec2 {
	n := f.Normal()
	du := math32.Abs(n.Dot(axisUp))
	dr := math32.Abs(n.Dot(axisRight))
	df := math32.Abs(n.Dot(axisForward))

	var ret mgl32.Vec2
	switch {
	case du >= dr && du >= df:
		ret = mgl32.Vec2{v[0], -v[1]}
	case dr >= du && dr >= df:
		ret = mgl32.Vec2{v[0], -v[2]}
	default:
		ret = mgl32.Vec2{v[1], -v[2]}
	}

	sin, cos := math32.Sincos(mgl32.DegToRad(p.Rotation))
	ret = mgl32.Vec2{
		ret[0]*cos - ret[1]*sin,
		ret[0]*sin + ret[1]*cos,
	}
	return mgl32.Vec2{
		ret[0]/size[0]/nonZero(p.XScale) + p.XOffset/size[0],
		ret[1]/size[1]/nonZero(p.YScale) + p.YOffset/size[1],
	}
}

func (p Valve220Projection) uv(_ *Face, v mgl32.Vec3, size mgl32.Vec2) mgl32.Vec2 {
	return mgl32.Vec2{
		v.Dot(p.UAxis)/(size[0]*nonZero(p.XScale)) + p.XOffset/size[0],
		v.Dot(p.VAxis)/(size[1]*nonZero(p.YScale)) + p.YOffset/size[1],
	}
}
