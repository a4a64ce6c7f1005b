// Package pov writes resolved maps as POV-Ray include files.
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
// * http://www.povray.org/documentation/view/3.6.1/68/
package pov

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/ThomasHabets/qmap/pkg/mapfile"
	"github.com/ThomasHabets/qmap/pkg/mesh"
)

const (
	// Prefix for all map macros.
	macroPrefix = "mapprefix_"

	// Quake's default light value.
	baseLight = 200.0
)

var macroRE = regexp.MustCompile(`[^A-Za-z0-9_]`)

// Options controls the output.
type Options struct {
	// If false, everything is flat shaded with FlatColor.
	Textures  bool
	FlatColor string

	// Added to all light_sources. Values found by experimentation.
	LightMultiplier   float64
	LightFadeDistance float64
	LightFadePower    float64
}

// DefaultOptions are the defaults of the qmap pov command.
var DefaultOptions = Options{
	FlatColor:         "Gray25",
	LightMultiplier:   3.0,
	LightFadeDistance: 20.0,
	LightFadePower:    2.0,
}

// MacroPrefix returns the macro prefix for a given map filename.
func MacroPrefix(s string) string {
	return macroPrefix + macroRE.ReplaceAllString(s, "_")
}

func vec3(v mgl32.Vec3) string {
	return fmt.Sprintf("<%g,%g,%g>", v[0], v[1], v[2])
}

// overrideTexture changes liquid textures to something more POV-Ray-y.
// If texture should be overridden, return the texture data and true.
func overrideTexture(name string) (string, bool) {
	switch strings.ToLower(name) {
	case "*lava1":
		return `
      normal { bumps 0.08 scale <1,0.25,0.35>*1 turbulence 0.6 }
      pigment { rgbf<0.5,0.0,0,0.2> }
      finish {
        reflection { 0.1 }
        diffuse 0.55
      }
`, true
	case "*04water1", "*04water2", "*slime0":
		return `
      normal { bumps 0.08 scale <1,0.25,0.35>*1 turbulence 0.6 }
      pigment { rgbf<6/256,74/256,0,0.2> }
      finish {
        reflection { 0.1 }
      }
`, true
	case "*teleport":
		return "", false
	}
	if strings.HasPrefix(name, "*") {
		return `
      normal { bumps 0.08 scale <1,0.25,0.35>*1 turbulence 0.6 }
      pigment { rgbf<0,0,1,0.2> }
      finish {
        reflection 0.3
        diffuse 0.55
      }
`, true
	}
	return "", false
}

func (o *Options) texture(name string) string {
	if tex, do := overrideTexture(name); do {
		return tex
	}
	if !o.Textures {
		return fmt.Sprintf("pigment{%s}", o.FlatColor)
	}
	return fmt.Sprintf(`
      uv_mapping
      pigment {
        image_map {
          png concat(textureprefix, "/%s.png")
          interpolate 2
        }
      }
      finish {
        reflection {0.03}
        diffuse 0.55
      }
`, name)
}

// entityMesh writes the mesh2 of the batches belonging to one entity.
func (o *Options) entityMesh(w io.Writer, batches []*mesh.Batch) {
	var verts, normals, uvs, tris, textures []string
	for n, b := range batches {
		first := len(verts)
		for i, v := range b.Positions {
			verts = append(verts, vec3(v))
			normals = append(normals, vec3(b.Normals[i]))
			uvs = append(uvs, fmt.Sprintf("<%g,%g>", b.UVs[i][0], b.UVs[i][1]))
		}
		for i := 0; i < len(b.Indices); i += 3 {
			tris = append(tris, fmt.Sprintf("<%d,%d,%d>,%d",
				first+int(b.Indices[i]), first+int(b.Indices[i+1]), first+int(b.Indices[i+2]), n))
		}
		textures = append(textures, fmt.Sprintf("// %s\n%s", b.Texture, o.texture(b.Texture)))
	}

	fmt.Fprintf(w, "object { mesh2 {\n")
	fmt.Fprintf(w, "  vertex_vectors { %d, %s }\n", len(verts), strings.Join(verts, ","))
	fmt.Fprintf(w, "  normal_vectors { %d, %s }\n", len(normals), strings.Join(normals, ","))
	if o.Textures {
		fmt.Fprintf(w, "  uv_vectors { %d, %s }\n", len(uvs), strings.Join(uvs, ","))
	}
	fmt.Fprintf(w, "  texture_list { %d, texture {%s} }\n", len(textures), strings.Join(textures, "}\ntexture{\n"))
	fmt.Fprintf(w, "  face_indices { %d, %s }\n", len(tris), strings.Join(tris, ","))
	fmt.Fprintf(w, "  pigment { rgb 1 }\n} rotate rot translate pos}\n")
}

// TriangleMesh writes one macro per entity, named prefix_<entity number>.
// Entities without visible geometry get an empty macro.
// m.CalculateGeometry must have been called.
func (o *Options) TriangleMesh(w io.Writer, m *mapfile.Map, prefix string) error {
	byEntity := make(map[int][]*mesh.Batch)
	for _, b := range mesh.Build(m).Batches {
		byEntity[b.Entity] = append(byEntity[b.Entity], b)
	}
	for _, e := range m.Entities {
		fmt.Fprintf(w, "// %s\n#macro %s_%d(pos,rot,textureprefix)\n", e.ClassName(), prefix, e.ID)
		if batches := byEntity[e.ID]; len(batches) > 0 {
			o.entityMesh(w, batches)
		}
		if _, err := fmt.Fprintf(w, "#end\n"); err != nil {
			return err
		}
	}
	return nil
}

// Lights writes the point light sources of the map.
func (o *Options) Lights(w io.Writer, m *mapfile.Map) error {
	for _, e := range m.Entities {
		if !strings.HasPrefix(e.ClassName(), "light") {
			continue
		}
		pos, ok := e.Origin()
		if !ok {
			continue
		}
		brightness := baseLight
		if s, ok := e.Property("light"); ok {
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				brightness = f
			}
		}
		if _, err := fmt.Fprintf(w, `
light_source {
  %s
  rgb<1,1,1>*%g*%g
  fade_distance %g
  fade_power %g
}
`, vec3(pos), brightness/baseLight, o.LightMultiplier, o.LightFadeDistance, o.LightFadePower); err != nil {
			return err
		}
	}
	return nil
}
