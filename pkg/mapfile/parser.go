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

// This file contains the recursive descent parser. The grammar is:
//
//   map     = { "{" entity "}" }
//   entity  = { quoted quoted | "{" ( brush | patch ) "}" }
//   brush   = face { face }
//   face    = point point point texture ( standard | valve220 ) [int [int [int]]]
//   point   = "(" num num num ")"
//   patch   = "patchDef2" "{" texture "(" int int int int int ")" "(" { row } ")" "}"
//   row     = "(" { "(" num num num num num ")" } ")"

import (
	"fmt"
	"strconv"

	"github.com/go-gl/mathgl/mgl32"
)

const (
	patchKeyword = "patchDef2"
	maxFaceFlags = 3
)

// ParseError describes why and where a map failed to parse.
type ParseError struct {
	Line     int
	Context  string // What was being parsed, e.g. "brush".
	Expected string
	Got      string
	Msg      string // Set instead of Expected/Got for errors that aren't about token type.
}

func (e *ParseError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("line %d: %s in %s", e.Line, e.Msg, e.Context)
	}
	return fmt.Sprintf("line %d: expected %s in %s, got %s", e.Line, e.Expected, e.Context, e.Got)
}

func describe(tok Token) string {
	switch tok.Type {
	case End:
		return tok.Type.String()
	case Word, QuotedString:
		return strconv.Quote(tok.Text)
	}
	return tok.Type.String()
}

type parser struct {
	lex *Lexer
	m   *Map

	geometryID int // Shared between brushes and patches.
}

// Parse parses a complete map file.
// On error no Map is returned, and the error is a *ParseError.
func Parse(src []byte) (*Map, error) {
	p := &parser{
		lex: NewLexer(src),
		m:   newMap(),
	}
	if err := p.parseMap(); err != nil {
		return nil, err
	}
	return p.m, nil
}

func (p *parser) unexpected(tok Token, context string, want ...TokenType) error {
	exp := ""
	for n, t := range want {
		if n > 0 {
			exp += " or "
		}
		exp += t.String()
	}
	return &ParseError{
		Line:     tok.Line,
		Context:  context,
		Expected: exp,
		Got:      describe(tok),
	}
}

func (p *parser) expect(t TokenType, context string) (Token, error) {
	tok := p.lex.Next()
	if tok.Type != t {
		return tok, p.unexpected(tok, context, t)
	}
	return tok, nil
}

// name reads a texture name, which may or may not be quoted.
func (p *parser) name(context string) (string, error) {
	tok := p.lex.Next()
	if tok.Type != Word && tok.Type != QuotedString {
		return "", p.unexpected(tok, context, Word)
	}
	return tok.Text, nil
}

func (p *parser) number(context string) (float32, error) {
	tok := p.lex.Next()
	if tok.Type != Word {
		return 0, p.unexpected(tok, context, Word)
	}
	return parseFloat(tok, context)
}

func parseFloat(tok Token, context string) (float32, error) {
	f, err := strconv.ParseFloat(tok.Text, 32)
	if err != nil {
		return 0, &ParseError{
			Line:    tok.Line,
			Context: context,
			Msg:     fmt.Sprintf("expected number, got %q", tok.Text),
		}
	}
	return float32(f), nil
}

func (p *parser) integer(context string) (int, error) {
	tok := p.lex.Next()
	if tok.Type != Word {
		return 0, p.unexpected(tok, context, Word)
	}
	return parseInt(tok, context)
}

func parseInt(tok Token, context string) (int, error) {
	i, err := strconv.Atoi(tok.Text)
	if err != nil {
		return 0, &ParseError{
			Line:    tok.Line,
			Context: context,
			Msg:     fmt.Sprintf("expected integer, got %q", tok.Text),
		}
	}
	return i, nil
}

// floats reads a fixed number of numbers.
func (p *parser) floats(context string, out ...*float32) error {
	for _, o := range out {
		var err error
		if *o, err = p.number(context); err != nil {
			return err
		}
	}
	return nil
}

func (p *parser) parseMap() error {
	for {
		tok := p.lex.Next()
		if tok.Type == End {
			return nil
		}
		if tok.Type != LBrace {
			return p.unexpected(tok, "map file", LBrace)
		}
		e := &Entity{
			ID:         len(p.m.Entities),
			Properties: make(map[string]string),
		}
		if err := p.parseEntity(e); err != nil {
			return err
		}
		p.m.Entities = append(p.m.Entities, e)
	}
}

func (p *parser) parseEntity(e *Entity) error {
	for {
		tok := p.lex.Next()
		switch tok.Type {
		case RBrace:
			return nil
		case QuotedString:
			val, err := p.expect(QuotedString, "entity")
			if err != nil {
				return err
			}
			e.Properties[tok.Text] = val.Text
			if tok.Text == "model" {
				p.m.Models[val.Text] = true
			}
		case LBrace:
			tok = p.lex.Next()
			switch {
			case tok.Type == LParen:
				p.lex.PushBack(tok)
				b := &Brush{ID: p.geometryID, Entity: e.ID}
				p.geometryID++
				if err := p.parseBrush(b); err != nil {
					return err
				}
				e.Brushes = append(e.Brushes, b)
			case tok.Type == Word && tok.Text == patchKeyword:
				pt := &Patch{ID: p.geometryID, Entity: e.ID}
				p.geometryID++
				if err := p.parsePatch(pt); err != nil {
					return err
				}
				e.Patches = append(e.Patches, pt)
			default:
				return &ParseError{
					Line:     tok.Line,
					Context:  "entity",
					Expected: fmt.Sprintf("brush or %s", patchKeyword),
					Got:      describe(tok),
				}
			}
		default:
			return p.unexpected(tok, "entity", QuotedString, LBrace, RBrace)
		}
	}
}

func (p *parser) point(context string) (mgl32.Vec3, error) {
	var v mgl32.Vec3
	if _, err := p.expect(LParen, context); err != nil {
		return v, err
	}
	if err := p.floats(context, &v[0], &v[1], &v[2]); err != nil {
		return v, err
	}
	_, err := p.expect(RParen, context)
	return v, err
}

func (p *parser) parseBrush(b *Brush) error {
	const ctx = "brush"
	for {
		tok := p.lex.Next()
		switch tok.Type {
		case RBrace:
			return nil
		case LParen:
			p.lex.PushBack(tok)
		default:
			return p.unexpected(tok, ctx, LParen, RBrace)
		}

		f := &Face{}
		var err error
		for _, pt := range []*mgl32.Vec3{&f.P1, &f.P2, &f.P3} {
			if *pt, err = p.point(ctx); err != nil {
				return err
			}
		}
		if f.Texture, err = p.name(ctx); err != nil {
			return err
		}
		p.m.addTexture(f.Texture)

		tok = p.lex.Next()
		p.lex.PushBack(tok)
		if tok.Type == LBracket {
			var proj Valve220Projection
			for _, axis := range []struct {
				v      *mgl32.Vec3
				offset *float32
			}{
				{&proj.UAxis, &proj.XOffset},
				{&proj.VAxis, &proj.YOffset},
			} {
				if _, err := p.expect(LBracket, ctx); err != nil {
					return err
				}
				if err := p.floats(ctx, &axis.v[0], &axis.v[1], &axis.v[2], axis.offset); err != nil {
					return err
				}
				if _, err := p.expect(RBracket, ctx); err != nil {
					return err
				}
			}
			if err := p.floats(ctx, &proj.Rotation, &proj.XScale, &proj.YScale); err != nil {
				return err
			}
			f.Projection = proj
		} else {
			var proj StandardProjection
			if err := p.floats(ctx, &proj.XOffset, &proj.YOffset, &proj.Rotation, &proj.XScale, &proj.YScale); err != nil {
				return err
			}
			f.Projection = proj
		}

		// Optional flags, up to the next face or the end of the brush.
		for {
			tok = p.lex.Next()
			if tok.Type == LParen || tok.Type == RBrace {
				p.lex.PushBack(tok)
				break
			}
			if tok.Type != Word {
				return p.unexpected(tok, ctx, Word, LParen, RBrace)
			}
			if len(f.Flags) == maxFaceFlags {
				return &ParseError{
					Line:    tok.Line,
					Context: ctx,
					Msg:     fmt.Sprintf("more than %d face flags", maxFaceFlags),
				}
			}
			flag, err := parseInt(tok, ctx)
			if err != nil {
				return err
			}
			f.Flags = append(f.Flags, flag)
		}
		b.Faces = append(b.Faces, f)
	}
}

func (p *parser) parsePatch(pt *Patch) error {
	const ctx = "patch"
	if _, err := p.expect(LBrace, ctx); err != nil {
		return err
	}
	var err error
	if pt.Texture, err = p.name(ctx); err != nil {
		return err
	}
	p.m.addTexture(pt.Texture)

	if _, err := p.expect(LParen, ctx); err != nil {
		return err
	}
	for _, o := range []*int{&pt.Height, &pt.Width, &pt.Flags[0], &pt.Flags[1], &pt.Flags[2]} {
		if *o, err = p.integer(ctx); err != nil {
			return err
		}
	}
	tok, err := p.expect(RParen, ctx)
	if err != nil {
		return err
	}
	if pt.Height < 3 || pt.Width < 3 || pt.Height%2 == 0 || pt.Width%2 == 0 {
		return &ParseError{
			Line:    tok.Line,
			Context: ctx,
			Msg:     fmt.Sprintf("patch size %dx%d is not odd and at least 3x3", pt.Height, pt.Width),
		}
	}

	if _, err := p.expect(LParen, ctx); err != nil {
		return err
	}
	pt.ControlPoints = make([][]PatchVert, pt.Height)
	for i := range pt.ControlPoints {
		if _, err := p.expect(LParen, ctx); err != nil {
			return err
		}
		row := make([]PatchVert, pt.Width)
		for j := range row {
			cp := &row[j]
			if _, err := p.expect(LParen, ctx); err != nil {
				return err
			}
			if err := p.floats(ctx, &cp.Position[0], &cp.Position[1], &cp.Position[2], &cp.UV[0], &cp.UV[1]); err != nil {
				return err
			}
			if _, err := p.expect(RParen, ctx); err != nil {
				return err
			}
		}
		pt.ControlPoints[i] = row
		if _, err := p.expect(RParen, ctx); err != nil {
			return err
		}
	}
	for _, t := range []TokenType{RParen, RBrace, RBrace} {
		if _, err := p.expect(t, ctx); err != nil {
			return err
		}
	}
	return nil
}
