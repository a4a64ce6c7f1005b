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

// This file contains the tokenizer for the text map format.

import (
	"fmt"
)

// TokenType is the kind of a Token.
type TokenType int

const (
	End          TokenType = iota // End of input. Returned forever once reached.
	LBrace                        // {
	RBrace                        // }
	LParen                        // (
	RParen                        // )
	LBracket                      // [
	RBracket                      // ]
	QuotedString                  // "texture/name" or "key"
	Word                          // Numbers, texture names, patchDef2, ...
)

func (t TokenType) String() string {
	switch t {
	case End:
		return "end of input"
	case LBrace:
		return "'{'"
	case RBrace:
		return "'}'"
	case LParen:
		return "'('"
	case RParen:
		return "')'"
	case LBracket:
		return "'['"
	case RBracket:
		return "']'"
	case QuotedString:
		return "quoted string"
	case Word:
		return "word"
	}
	return fmt.Sprintf("TokenType(%d)", int(t))
}

// Token is one lexical element of a map file.
type Token struct {
	Type TokenType
	Text string
	Line int // Line the token started on.
}

// Lexer splits a map file into tokens.
// It supports exactly one token of pushback.
type Lexer struct {
	src  []byte
	pos  int
	line int

	hasPushback bool
	pushback    Token
}

// NewLexer creates a lexer reading from src.
func NewLexer(src []byte) *Lexer {
	return &Lexer{
		src:  src,
		line: 1,
	}
}

// Line returns the current line number, starting at 1.
func (l *Lexer) Line() int {
	return l.line
}

// PushBack makes the next call to Next return tok.
func (l *Lexer) PushBack(tok Token) {
	if l.hasPushback {
		panic(fmt.Sprintf("mapfile: pushback of %v while already holding %v", tok.Type, l.pushback.Type))
	}
	l.hasPushback = true
	l.pushback = tok
}

// Next returns the next token, skipping whitespace and // comments.
func (l *Lexer) Next() Token {
	if l.hasPushback {
		l.hasPushback = false
		return l.pushback
	}

	l.skipWhitespaceAndComments()
	if l.pos >= len(l.src) {
		return Token{Type: End, Line: l.line}
	}

	var t TokenType
	switch l.src[l.pos] {
	case '{':
		t = LBrace
	case '}':
		t = RBrace
	case '(':
		t = LParen
	case ')':
		t = RParen
	case '[':
		t = LBracket
	case ']':
		t = RBracket
	case '"':
		return l.readQuotedString()
	default:
		return l.readWord()
	}
	tok := Token{Type: t, Text: string(l.src[l.pos]), Line: l.line}
	l.pos++
	return tok
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}

func isStructural(c byte) bool {
	switch c {
	case '{', '}', '(', ')', '[', ']', '"':
		return true
	}
	return false
}

func (l *Lexer) skipWhitespaceAndComments() {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == '\n':
			l.line++
			l.pos++
		case isSpace(c):
			l.pos++
		case c == '/' && l.pos+1 < len(l.src) && l.src[l.pos+1] == '/':
			l.pos += 2
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.pos++
			}
		default:
			return
		}
	}
}

// readQuotedString reads a "-delimited string. There are no escapes.
// An unterminated string runs to the end of the input.
func (l *Lexer) readQuotedString() Token {
	line := l.line
	l.pos++ // Opening quote.
	start := l.pos
	for l.pos < len(l.src) && l.src[l.pos] != '"' {
		if l.src[l.pos] == '\n' {
			l.line++
		}
		l.pos++
	}
	text := string(l.src[start:l.pos])
	if l.pos < len(l.src) {
		l.pos++ // Closing quote.
	}
	return Token{Type: QuotedString, Text: text, Line: line}
}

func (l *Lexer) readWord() Token {
	start := l.pos
	for l.pos < len(l.src) && !isSpace(l.src[l.pos]) && !isStructural(l.src[l.pos]) {
		l.pos++
	}
	return Token{Type: Word, Text: string(l.src[start:l.pos]), Line: l.line}
}
