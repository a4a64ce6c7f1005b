package pov

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/ThomasHabets/qmap/pkg/mapfile"
)

const testMap = `{
"classname" "worldspawn"
{
( -64 0 0 ) ( -64 1 0 ) ( -64 0 1 ) wall 0 0 0 1 1
( 64 0 0 ) ( 64 1 0 ) ( 64 0 -1 ) wall 0 0 0 1 1
( 0 -64 0 ) ( 0 -64 1 ) ( 1 -64 0 ) wall 0 0 0 1 1
( 0 64 0 ) ( 0 64 1 ) ( -1 64 0 ) wall 0 0 0 1 1
( 0 0 -64 ) ( 1 0 -64 ) ( 0 1 -64 ) *water0 0 0 0 1 1
( 0 0 64 ) ( 1 0 64 ) ( 0 -1 64 ) wall 0 0 0 1 1
}
}
{
"classname" "light"
"origin" "0 0 32"
"light" "400"
}
{
"classname" "info_player_start"
"origin" "0 0 0"
}
`

func resolved(t *testing.T) *mapfile.Map {
	t.Helper()
	m, err := mapfile.Parse([]byte(testMap))
	if err != nil {
		t.Fatal(err)
	}
	if err := m.CalculateGeometry(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	return m
}

func TestMacroPrefix(t *testing.T) {
	for _, test := range []struct {
		in, want string
	}{
		{"start.map", "mapprefix_start_map"},
		{"maps/e1m1.map", "mapprefix_maps_e1m1_map"},
		{"a-b c", "mapprefix_a_b_c"},
	} {
		if got := MacroPrefix(test.in); got != test.want {
			t.Errorf("MacroPrefix(%q): got %q, want %q", test.in, got, test.want)
		}
	}
}

func TestTriangleMesh(t *testing.T) {
	m := resolved(t)
	o := DefaultOptions
	o.Textures = true
	var buf bytes.Buffer
	if err := o.TriangleMesh(&buf, m, "p"); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if got, want := strings.Count(out, "#macro "), len(m.Entities); got != want {
		t.Errorf("Macros: got %d, want %d", got, want)
	}
	if got, want := strings.Count(out, "#end"), len(m.Entities); got != want {
		t.Errorf("Macro ends: got %d, want %d", got, want)
	}
	if got, want := strings.Count(out, "mesh2"), 1; got != want {
		t.Errorf("Meshes: got %d, want %d", got, want)
	}
	for _, want := range []string{
		"#macro p_0(pos,rot,textureprefix)",
		"#macro p_2(pos,rot,textureprefix)",
		"vertex_vectors { 24,",
		"face_indices { 12,",
		`"/wall.png"`,
		"rgbf<0,0,1,0.2>",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Output lacks %q", want)
		}
	}
}

func TestFlat(t *testing.T) {
	var buf bytes.Buffer
	if err := DefaultOptions.TriangleMesh(&buf, resolved(t), "p"); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if strings.Contains(out, "uv_vectors") {
		t.Errorf("Flat output has uv_vectors")
	}
	if !strings.Contains(out, "pigment{Gray25}") {
		t.Errorf("Flat output lacks flat color")
	}
}

func TestLights(t *testing.T) {
	var buf bytes.Buffer
	if err := DefaultOptions.Lights(&buf, resolved(t)); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if got, want := strings.Count(out, "light_source"), 1; got != want {
		t.Errorf("Lights: got %d, want %d", got, want)
	}
	if !strings.Contains(out, "<0,0,32>") {
		t.Errorf("Light position missing from %q", out)
	}
	if !strings.Contains(out, "rgb<1,1,1>*2*3") {
		t.Errorf("Light brightness wrong in %q", out)
	}
}
