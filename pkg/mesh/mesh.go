// Package mesh flattens resolved map geometry into triangle batches, one per
// entity and texture, ready to hand to a renderer.
//
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
//
package mesh

import (
	"path"
	"strings"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/ThomasHabets/qmap/pkg/mapfile"
)

// Tool textures that are never drawn.
var hidden = map[string]bool{
	"clip":    true,
	"skip":    true,
	"hint":    true,
	"nodraw":  true,
	"trigger": true,
}

// Batch is a set of triangles sharing entity and texture.
// Vertex attributes are parallel arrays, one entry per vertex.
type Batch struct {
	Entity    int
	Texture   string
	Positions []mgl32.Vec3
	UVs       []mgl32.Vec2
	Normals   []mgl32.Vec3
	Indices   []uint32 // Three per triangle, counter-clockwise seen from the front.
}

// Mesh is all the drawable geometry of a map.
type Mesh struct {
	Name    string
	Batches []*Batch
}

// Triangles returns the total number of triangles.
func (m *Mesh) Triangles() int {
	n := 0
	for _, b := range m.Batches {
		n += len(b.Indices) / 3
	}
	return n
}

// Hidden returns true for tool textures like clip and trigger.
func Hidden(texture string) bool {
	return hidden[strings.ToLower(path.Base(texture))]
}

func (b *Batch) add(pos mgl32.Vec3, uv mgl32.Vec2, normal mgl32.Vec3) uint32 {
	b.Positions = append(b.Positions, pos)
	b.UVs = append(b.UVs, uv)
	b.Normals = append(b.Normals, normal)
	return uint32(len(b.Positions) - 1)
}

type batcher struct {
	entity  int
	byName  map[string]*Batch
	batches []*Batch
}

func (bt *batcher) get(texture string) *Batch {
	if b, found := bt.byName[texture]; found {
		return b
	}
	b := &Batch{Entity: bt.entity, Texture: texture}
	bt.byName[texture] = b
	bt.batches = append(bt.batches, b)
	return b
}

func (bt *batcher) addBrush(m *mapfile.Map, br *mapfile.Brush) {
	for _, f := range br.Faces {
		if len(f.Vertices) < 3 || Hidden(f.Texture) {
			continue
		}
		// Plane normals point into the solid.
		normal := f.Normal().Mul(-1)
		b := bt.get(f.Texture)
		poly := br.Polygon(f)
		first := uint32(len(b.Positions))
		for _, v := range poly {
			b.add(v, m.FaceUV(f, v), normal)
		}
		for i := 1; i < len(poly)-1; i++ {
			b.Indices = append(b.Indices, first, first+uint32(i), first+uint32(i+1))
		}
	}
}

func (bt *batcher) addPatch(p *mapfile.Patch) {
	rows := len(p.Vertices)
	if rows < 2 || len(p.Vertices[0]) < 2 || Hidden(p.Texture) {
		return
	}
	cols := len(p.Vertices[0])
	b := bt.get(p.Texture)
	first := uint32(len(b.Positions))
	for _, row := range p.Vertices {
		for _, v := range row {
			b.add(v.Position, v.UV, v.Normal)
		}
	}
	at := func(i, j int) uint32 { return first + uint32(i*cols+j) }
	for i := 0; i < rows-1; i++ {
		for j := 0; j < cols-1; j++ {
			b.Indices = append(b.Indices,
				at(i, j), at(i, j+1), at(i+1, j+1),
				at(i, j), at(i+1, j+1), at(i+1, j))
		}
	}
}

// Build turns a map into batches. m.CalculateGeometry must have been called.
// Degenerate faces and tool textures are left out, as are entities with nothing
// left to draw.
func Build(m *mapfile.Map) *Mesh {
	ret := &Mesh{Name: m.Name}
	for _, e := range m.Entities {
		bt := &batcher{
			entity: e.ID,
			byName: make(map[string]*Batch),
		}
		for _, br := range e.Brushes {
			bt.addBrush(m, br)
		}
		for _, p := range e.Patches {
			bt.addPatch(p)
		}
		ret.Batches = append(ret.Batches, bt.batches...)
	}
	return ret
}
