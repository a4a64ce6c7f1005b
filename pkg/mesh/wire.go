package mesh

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

// Protobuf wire encoding of Mesh, following mesh.proto.

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers from mesh.proto.
const (
	meshName    protowire.Number = 1
	meshBatches protowire.Number = 2

	batchEntity    protowire.Number = 1
	batchTexture   protowire.Number = 2
	batchPositions protowire.Number = 3
	batchUVs       protowire.Number = 4
	batchNormals   protowire.Number = 5
	batchIndices   protowire.Number = 6
)

func appendFloats(b []byte, num protowire.Number, fs []float32) []byte {
	if len(fs) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	b = protowire.AppendVarint(b, uint64(len(fs)*4))
	for _, f := range fs {
		b = protowire.AppendFixed32(b, math.Float32bits(f))
	}
	return b
}

func flatten3(vs []mgl32.Vec3) []float32 {
	ret := make([]float32, 0, len(vs)*3)
	for _, v := range vs {
		ret = append(ret, v[0], v[1], v[2])
	}
	return ret
}

func flatten2(vs []mgl32.Vec2) []float32 {
	ret := make([]float32, 0, len(vs)*2)
	for _, v := range vs {
		ret = append(ret, v[0], v[1])
	}
	return ret
}

func (b *Batch) marshal() []byte {
	var buf []byte
	if b.Entity != 0 {
		buf = protowire.AppendTag(buf, batchEntity, protowire.VarintType)
		buf = protowire.AppendVarint(buf, uint64(b.Entity))
	}
	if b.Texture != "" {
		buf = protowire.AppendTag(buf, batchTexture, protowire.BytesType)
		buf = protowire.AppendString(buf, b.Texture)
	}
	buf = appendFloats(buf, batchPositions, flatten3(b.Positions))
	buf = appendFloats(buf, batchUVs, flatten2(b.UVs))
	buf = appendFloats(buf, batchNormals, flatten3(b.Normals))
	if len(b.Indices) > 0 {
		var packed []byte
		for _, i := range b.Indices {
			packed = protowire.AppendVarint(packed, uint64(i))
		}
		buf = protowire.AppendTag(buf, batchIndices, protowire.BytesType)
		buf = protowire.AppendBytes(buf, packed)
	}
	return buf
}

// Marshal encodes the mesh in protobuf wire format.
func (m *Mesh) Marshal() []byte {
	var b []byte
	if m.Name != "" {
		b = protowire.AppendTag(b, meshName, protowire.BytesType)
		b = protowire.AppendString(b, m.Name)
	}
	for _, bt := range m.Batches {
		b = protowire.AppendTag(b, meshBatches, protowire.BytesType)
		b = protowire.AppendBytes(b, bt.marshal())
	}
	return b
}

// consumeFloats reads a packed or unpacked repeated float field.
func consumeFloats(b []byte, typ protowire.Type, out []float32) ([]float32, int, error) {
	switch typ {
	case protowire.Fixed32Type:
		v, n := protowire.ConsumeFixed32(b)
		if n < 0 {
			return nil, 0, protowire.ParseError(n)
		}
		return append(out, math.Float32frombits(v)), n, nil
	case protowire.BytesType:
		packed, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return nil, 0, protowire.ParseError(n)
		}
		if len(packed)%4 != 0 {
			return nil, 0, fmt.Errorf("packed float field length %d not a multiple of 4", len(packed))
		}
		for len(packed) > 0 {
			v, m := protowire.ConsumeFixed32(packed)
			if m < 0 {
				return nil, 0, protowire.ParseError(m)
			}
			out = append(out, math.Float32frombits(v))
			packed = packed[m:]
		}
		return out, n, nil
	}
	return nil, 0, fmt.Errorf("float field has wire type %d", typ)
}

func consumeIndices(b []byte, typ protowire.Type, out []uint32) ([]uint32, int, error) {
	switch typ {
	case protowire.VarintType:
		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return nil, 0, protowire.ParseError(n)
		}
		return append(out, uint32(v)), n, nil
	case protowire.BytesType:
		packed, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return nil, 0, protowire.ParseError(n)
		}
		for len(packed) > 0 {
			v, m := protowire.ConsumeVarint(packed)
			if m < 0 {
				return nil, 0, protowire.ParseError(m)
			}
			out = append(out, uint32(v))
			packed = packed[m:]
		}
		return out, n, nil
	}
	return nil, 0, fmt.Errorf("index field has wire type %d", typ)
}

func unmarshalBatch(b []byte) (*Batch, error) {
	ret := &Batch{}
	var pos, uv, normal []float32
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
		var err error
		switch {
		case num == batchEntity && typ == protowire.VarintType:
			var v uint64
			v, n = protowire.ConsumeVarint(b)
			ret.Entity = int(v)
		case num == batchTexture && typ == protowire.BytesType:
			ret.Texture, n = protowire.ConsumeString(b)
		case num == batchPositions:
			pos, n, err = consumeFloats(b, typ, pos)
		case num == batchUVs:
			uv, n, err = consumeFloats(b, typ, uv)
		case num == batchNormals:
			normal, n, err = consumeFloats(b, typ, normal)
		case num == batchIndices:
			ret.Indices, n, err = consumeIndices(b, typ, ret.Indices)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if err != nil {
			return nil, err
		}
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
	}

	if len(pos)%3 != 0 || len(normal)%3 != 0 || len(uv)%2 != 0 {
		return nil, fmt.Errorf("vertex attributes not whole vectors: %d positions, %d uvs, %d normals", len(pos), len(uv), len(normal))
	}
	nv := len(pos) / 3
	if len(uv)/2 != nv || len(normal)/3 != nv {
		return nil, fmt.Errorf("vertex count mismatch: %d positions, %d uvs, %d normals", nv, len(uv)/2, len(normal)/3)
	}
	for i := 0; i < nv; i++ {
		ret.Positions = append(ret.Positions, mgl32.Vec3{pos[i*3], pos[i*3+1], pos[i*3+2]})
		ret.UVs = append(ret.UVs, mgl32.Vec2{uv[i*2], uv[i*2+1]})
		ret.Normals = append(ret.Normals, mgl32.Vec3{normal[i*3], normal[i*3+1], normal[i*3+2]})
	}
	if len(ret.Indices)%3 != 0 {
		return nil, fmt.Errorf("%d indices is not whole triangles", len(ret.Indices))
	}
	for _, i := range ret.Indices {
		if int(i) >= nv {
			return nil, fmt.Errorf("index %d out of range, %d vertices", i, nv)
		}
	}
	return ret, nil
}

// Unmarshal decodes a mesh encoded by Marshal.
func Unmarshal(b []byte) (*Mesh, error) {
	ret := &Mesh{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
		switch {
		case num == meshName && typ == protowire.BytesType:
			ret.Name, n = protowire.ConsumeString(b)
		case num == meshBatches && typ == protowire.BytesType:
			var msg []byte
			msg, n = protowire.ConsumeBytes(b)
			if n >= 0 {
				bt, err := unmarshalBatch(msg)
				if err != nil {
					return nil, fmt.Errorf("batch %d: %w", len(ret.Batches), err)
				}
				ret.Batches = append(ret.Batches, bt)
			}
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
	}
	return ret, nil
}
