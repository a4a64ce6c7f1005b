package mapfile

import (
	"testing"
)

func TestLexer(t *testing.T) {
	src := `// A comment { with braces }
{
"classname" "worldspawn" // trailing
( -1.5 2 3e2 ) [ ] tex/name*1
"multi
line"
}`
	want := []Token{
		{LBrace, "{", 2},
		{QuotedString, "classname", 3},
		{QuotedString, "worldspawn", 3},
		{LParen, "(", 4},
		{Word, "-1.5", 4},
		{Word, "2", 4},
		{Word, "3e2", 4},
		{RParen, ")", 4},
		{LBracket, "[", 4},
		{RBracket, "]", 4},
		{Word, "tex/name*1", 4},
		{QuotedString, "multi\nline", 5},
		{RBrace, "}", 7},
		{End, "", 7},
		{End, "", 7},
	}
	l := NewLexer([]byte(src))
	for n, w := range want {
		if got := l.Next(); got != w {
			t.Errorf("Token %d: got %+v, want %+v", n, got, w)
		}
	}
}

func TestLexerWordsEndAtStructure(t *testing.T) {
	l := NewLexer([]byte(`abc(def)"g h"`))
	for n, want := range []string{"abc", "(", "def", ")", "g h"} {
		if got := l.Next().Text; got != want {
			t.Errorf("Token %d: got %q, want %q", n, got, want)
		}
	}
}

func TestLexerUnterminatedString(t *testing.T) {
	l := NewLexer([]byte("\"abc\ndef"))
	if got, want := l.Next(), (Token{QuotedString, "abc\ndef", 1}); got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
	if got := l.Next().Type; got != End {
		t.Errorf("After unterminated string: got %v, want %v", got, End)
	}
	if got, want := l.Line(), 2; got != want {
		t.Errorf("Line(): got %d, want %d", got, want)
	}
}

func TestLexerPushBack(t *testing.T) {
	l := NewLexer([]byte("a b"))
	a := l.Next()
	l.PushBack(a)
	if got := l.Next(); got != a {
		t.Errorf("After pushback: got %+v, want %+v", got, a)
	}
	if got := l.Next().Text; got != "b" {
		t.Errorf("After pushback: got %q, want %q", got, "b")
	}

	defer func() {
		if recover() == nil {
			t.Errorf("Double pushback didn't panic")
		}
	}()
	l.PushBack(a)
	l.PushBack(a)
}
