package mesh

import (
	"context"
	"reflect"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/ThomasHabets/qmap/pkg/mapfile"
)

const testMap = `// Cube with one clip face, and a flat patch.
{
"classname" "worldspawn"
{
( -64 0 0 ) ( -64 1 0 ) ( -64 0 1 ) wall 0 0 0 1 1
( 64 0 0 ) ( 64 1 0 ) ( 64 0 -1 ) wall 0 0 0 1 1
( 0 -64 0 ) ( 0 -64 1 ) ( 1 -64 0 ) wall 0 0 0 1 1
( 0 64 0 ) ( 0 64 1 ) ( -1 64 0 ) wall 0 0 0 1 1
( 0 0 -64 ) ( 1 0 -64 ) ( 0 1 -64 ) floor 0 0 0 1 1
( 0 0 64 ) ( 1 0 64 ) ( 0 -1 64 ) clip 0 0 0 1 1
}
}
{
"classname" "func_group"
{
patchDef2
{
curve
( 3 3 0 0 0 )
(
( ( 0 0 0 0 0 ) ( 32 0 0 0.5 0 ) ( 64 0 0 1 0 ) )
( ( 0 32 0 0 0.5 ) ( 32 32 0 0.5 0.5 ) ( 64 32 0 1 0.5 ) )
( ( 0 64 0 0 1 ) ( 32 64 0 0.5 1 ) ( 64 64 0 1 1 ) )
)
}
}
}
`

func loadTestMap(t *testing.T) *mapfile.Map {
	t.Helper()
	m, err := mapfile.Parse([]byte(testMap))
	if err != nil {
		t.Fatalf("Parse(): %v", err)
	}
	if err := m.CalculateGeometry(context.Background(), 2); err != nil {
		t.Fatalf("CalculateGeometry(): %v", err)
	}
	return m
}

func TestHidden(t *testing.T) {
	for _, test := range []struct {
		in   string
		want bool
	}{
		{"clip", true},
		{"CLIP", true},
		{"common/nodraw", true},
		{"trigger", true},
		{"wall", false},
		{"clipper", false},
	} {
		if got := Hidden(test.in); got != test.want {
			t.Errorf("Hidden(%q): got %v, want %v", test.in, got, test.want)
		}
	}
}

func TestBuild(t *testing.T) {
	me := Build(loadTestMap(t))

	type key struct {
		entity  int
		texture string
	}
	want := map[key]struct{ verts, tris int }{
		{0, "wall"}:  {16, 8},
		{0, "floor"}: {4, 2},
		{1, "curve"}: {36, 50},
	}
	if got := len(me.Batches); got != len(want) {
		t.Fatalf("Number of batches: got %d, want %d", got, len(want))
	}
	for _, b := range me.Batches {
		w, found := want[key{b.Entity, b.Texture}]
		if !found {
			t.Errorf("Unexpected batch %d/%q", b.Entity, b.Texture)
			continue
		}
		if got := len(b.Positions); got != w.verts {
			t.Errorf("Batch %d/%q vertices: got %d, want %d", b.Entity, b.Texture, got, w.verts)
		}
		if len(b.UVs) != len(b.Positions) || len(b.Normals) != len(b.Positions) {
			t.Errorf("Batch %d/%q attribute lengths differ: %d %d %d", b.Entity, b.Texture, len(b.Positions), len(b.UVs), len(b.Normals))
		}
		if got := len(b.Indices) / 3; got != w.tris {
			t.Errorf("Batch %d/%q triangles: got %d, want %d", b.Entity, b.Texture, got, w.tris)
		}
	}
	if got, want := me.Triangles(), 60; got != want {
		t.Errorf("Triangles(): got %d, want %d", got, want)
	}
}

// Every triangle should wind counter-clockwise around its vertex normal, and
// cube normals should point away from the cube.
func TestFacing(t *testing.T) {
	me := Build(loadTestMap(t))
	for _, b := range me.Batches {
		for i := 0; i < len(b.Indices); i += 3 {
			a, c, d := b.Indices[i], b.Indices[i+1], b.Indices[i+2]
			pa, pc, pd := b.Positions[a], b.Positions[c], b.Positions[d]
			n := pc.Sub(pa).Cross(pd.Sub(pa))
			if n.Dot(b.Normals[a]) <= 0 {
				t.Errorf("Batch %q triangle %d winds the wrong way: %v vs normal %v", b.Texture, i/3, n, b.Normals[a])
			}
			if b.Entity == 0 && b.Normals[a].Dot(pa.Add(pc).Add(pd)) <= 0 {
				t.Errorf("Batch %q triangle %d normal %v points into the cube", b.Texture, i/3, b.Normals[a])
			}
		}
	}
}

func TestPatchNormals(t *testing.T) {
	me := Build(loadTestMap(t))
	for _, b := range me.Batches {
		if b.Texture != "curve" {
			continue
		}
		for i, n := range b.Normals {
			if !n.ApproxEqualThreshold(mgl32.Vec3{0, 0, 1}, 1e-3) {
				t.Errorf("Patch normal %d: got %v, want +z", i, n)
			}
		}
	}
}

func TestWire(t *testing.T) {
	me := Build(loadTestMap(t))
	me.Name = "test.map"
	got, err := Unmarshal(me.Marshal())
	if err != nil {
		t.Fatalf("Unmarshal(): %v", err)
	}
	if !reflect.DeepEqual(got, me) {
		t.Errorf("Round trip: got %+v, want %+v", got, me)
	}
}

func TestWireErrors(t *testing.T) {
	b := (&Mesh{Batches: []*Batch{{
		Texture:   "wall",
		Positions: []mgl32.Vec3{{0, 0, 0}},
		UVs:       []mgl32.Vec2{{0, 0}},
		Normals:   []mgl32.Vec3{{0, 0, 1}},
		Indices:   []uint32{0, 0, 1},
	}}}).Marshal()
	if _, err := Unmarshal(b); err == nil {
		t.Errorf("Unmarshal() with out of range index succeeded")
	}
	good := (&Mesh{Name: "x"}).Marshal()
	if _, err := Unmarshal(good[:len(good)-1]); err == nil {
		t.Errorf("Unmarshal() of truncated data succeeded")
	}
}
