// Package mapfile loads Quake family .map files and turns their brushes and
// patches into polygons.
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
// References:
// * http://www.gamers.org/dEngine/quake/QDP/qmapspec.html
// * https://developer.valvesoftware.com/wiki/MAP_(file_format)
package mapfile

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Map is a parsed map file.
type Map struct {
	Name     string
	Entities []*Entity

	// Pixel size per texture name. Every texture used by the map has an entry.
	// It's zero until someone that can load textures fills it in.
	TextureSizes map[string]mgl32.Vec2

	// Names from "model" properties.
	Models map[string]bool
}

// Stats is a summary of what's in a map.
type Stats struct {
	Entities        int `json:"entities"`
	Brushes         int `json:"brushes"`
	Faces           int `json:"faces"`
	DegenerateFaces int `json:"degenerate_faces"` // Faces with fewer than three vertices.
	Patches         int `json:"patches"`
	PatchVertices   int `json:"patch_vertices"`
	Textures        int `json:"textures"`
	Models          int `json:"models"`
}

func newMap() *Map {
	return &Map{
		TextureSizes: make(map[string]mgl32.Vec2),
		Models:       make(map[string]bool),
	}
}

func (m *Map) addTexture(name string) {
	if _, found := m.TextureSizes[name]; !found {
		m.TextureSizes[name] = mgl32.Vec2{}
	}
}

// Load reads and parses a map file.
func Load(fn string) (*Map, error) {
	b, err := os.ReadFile(fn)
	if err != nil {
		return nil, err
	}
	m, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("parsing %q: %w", fn, err)
	}
	m.Name = path.Base(fn)
	log.Debugf("Loaded %q: %d entities, %d textures", fn, len(m.Entities), len(m.TextureSizes))
	return m, nil
}

// Read reads a whole map from r and parses it.
func Read(r io.Reader) (*Map, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

// Textures returns the sorted names of all textures used.
func (m *Map) Textures() []string {
	var ret []string
	for t := range m.TextureSizes {
		ret = append(ret, t)
	}
	sort.Strings(ret)
	return ret
}

// FaceUV returns the texture coordinates of a vertex on f, using the known
// size of the face's texture.
func (m *Map) FaceUV(f *Face, v mgl32.Vec3) mgl32.Vec2 {
	return f.UV(v, m.TextureSizes[f.Texture])
}

// CalculateGeometry resolves the polygons of all brushes and the vertex grids
// of all patches. Brushes and patches don't share anything, so up to workers of
// them are done in parallel. workers <= 0 means one per CPU.
func (m *Map) CalculateGeometry(ctx context.Context, workers int) error {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, e := range m.Entities {
		for _, b := range e.Brushes {
			b := b
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				b.CalculateGeometry()
				return nil
			})
		}
		for _, p := range e.Patches {
			p := p
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				p.CalculateGeometry()
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if log.IsLevelEnabled(log.DebugLevel) {
		st := m.Stats()
		log.Debugf("Resolved %q: %d brushes, %d faces (%d degenerate), %d patches",
			m.Name, st.Brushes, st.Faces, st.DegenerateFaces, st.Patches)
	}
	return nil
}

// Stats counts the contents of the map. Face and vertex counts are only
// meaningful after CalculateGeometry.
func (m *Map) Stats() Stats {
	st := Stats{
		Entities: len(m.Entities),
		Textures: len(m.TextureSizes),
		Models:   len(m.Models),
	}
	for _, e := range m.Entities {
		st.Brushes += len(e.Brushes)
		st.Patches += len(e.Patches)
		for _, b := range e.Brushes {
			st.Faces += len(b.Faces)
			for _, f := range b.Faces {
				if len(f.Vertices) < 3 {
					st.DegenerateFaces++
				}
			}
		}
		for _, p := range e.Patches {
			for _, row := range p.Vertices {
				st.PatchVertices += len(row)
			}
		}
	}
	return st
}

func formatFloat(f float32) string {
	return strconv.FormatFloat(float64(f), 'g', -1, 32)
}

func formatFloats(fs ...float32) string {
	s := make([]string, len(fs))
	for n, f := range fs {
		s[n] = formatFloat(f)
	}
	return strings.Join(s, " ")
}

// quoteName quotes a texture name if it wouldn't survive as a bare word.
func quoteName(s string) string {
	if s == "" {
		return `""`
	}
	for i := 0; i < len(s); i++ {
		if isSpace(s[i]) || isStructural(s[i]) {
			return `"` + s + `"`
		}
	}
	if strings.HasPrefix(s, "//") {
		return `"` + s + `"`
	}
	return s
}

func writePoint(sb *strings.Builder, v mgl32.Vec3) {
	fmt.Fprintf(sb, "( %s ) ", formatFloats(v[0], v[1], v[2]))
}

func writeFace(sb *strings.Builder, f *Face) {
	writePoint(sb, f.P1)
	writePoint(sb, f.P2)
	writePoint(sb, f.P3)
	sb.WriteString(quoteName(f.Texture))
	switch p := f.Projection.(type) {
	case Valve220Projection:
		fmt.Fprintf(sb, " [ %s ] [ %s ] %s",
			formatFloats(p.UAxis[0], p.UAxis[1], p.UAxis[2], p.XOffset),
			formatFloats(p.VAxis[0], p.VAxis[1], p.VAxis[2], p.YOffset),
			formatFloats(p.Rotation, p.XScale, p.YScale))
	case StandardProjection:
		fmt.Fprintf(sb, " %s", formatFloats(p.XOffset, p.YOffset, p.Rotation, p.XScale, p.YScale))
	default:
		sb.WriteString(" 0 0 0 1 1")
	}
	for _, fl := range f.Flags {
		fmt.Fprintf(sb, " %d", fl)
	}
	sb.WriteString("\n")
}

func writePatch(sb *strings.Builder, p *Patch) {
	fmt.Fprintf(sb, "{\n%s\n{\n%s\n( %d %d %d %d %d )\n(\n",
		patchKeyword, quoteName(p.Texture), p.Height, p.Width, p.Flags[0], p.Flags[1], p.Flags[2])
	for _, row := range p.ControlPoints {
		sb.WriteString("( ")
		for _, cp := range row {
			fmt.Fprintf(sb, "( %s ) ", formatFloats(
				cp.Position[0], cp.Position[1], cp.Position[2], cp.UV[0], cp.UV[1]))
		}
		sb.WriteString(")\n")
	}
	sb.WriteString(")\n}\n}\n")
}

// Stringify returns the map in map file format. Parsing the output gives back
// the same map, though formatting and comments are not preserved.
func (m *Map) Stringify() string {
	var sb strings.Builder
	for n, e := range m.Entities {
		fmt.Fprintf(&sb, "// entity %d\n{\n", n)
		for _, k := range e.propertyKeys() {
			fmt.Fprintf(&sb, "\"%s\" \"%s\"\n", k, e.Properties[k])
		}
		for _, b := range e.Brushes {
			sb.WriteString("{\n")
			for _, f := range b.Faces {
				writeFace(&sb, f)
			}
			sb.WriteString("}\n")
		}
		for _, p := range e.Patches {
			writePatch(&sb, p)
		}
		sb.WriteString("}\n")
	}
	return sb.String()
}

// Print writes Stringify output to w.
func (m *Map) Print(w io.Writer) error {
	_, err := io.WriteString(w, m.Stringify())
	return err
}
