package texsize

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/image/bmp"

	"github.com/ThomasHabets/qmap/pkg/mapfile"
	"github.com/ThomasHabets/qmap/pkg/pak"
)

func writeImage(t *testing.T, fn string, w, h int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(fn), 0755); err != nil {
		t.Fatal(err)
	}
	f, err := os.Create(fn)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	switch filepath.Ext(fn) {
	case ".png":
		err = png.Encode(f, img)
	case ".bmp":
		err = bmp.Encode(f, img)
	default:
		t.Fatalf("Can't write %q", fn)
	}
	if err != nil {
		t.Fatal(err)
	}
}

func TestSize(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, filepath.Join(dir, "wall.png"), 64, 32)
	writeImage(t, filepath.Join(dir, "textures", "floor.bmp"), 128, 256)
	writeImage(t, filepath.Join(dir, "base", "metal.png"), 16, 16)
	if err := os.WriteFile(filepath.Join(dir, "broken.png"), []byte("not a png"), 0644); err != nil {
		t.Fatal(err)
	}

	r := &Resolver{Dirs: []string{dir}}
	for _, test := range []struct {
		name    string
		want    mgl32.Vec2
		missing bool
		err     bool
	}{
		{name: "wall", want: mgl32.Vec2{64, 32}},
		{name: "floor", want: mgl32.Vec2{128, 256}},
		{name: "base/metal", want: mgl32.Vec2{16, 16}},
		{name: "nope", missing: true, err: true},
		{name: "broken", err: true},
	} {
		got, err := r.Size(test.name)
		if test.err != (err != nil) {
			t.Errorf("Size(%q): want err %v, got %v", test.name, test.err, err)
		}
		if test.missing != errors.Is(err, fs.ErrNotExist) {
			t.Errorf("Size(%q): want missing %v, got %v", test.name, test.missing, err)
		}
		if got != test.want {
			t.Errorf("Size(%q): got %v, want %v", test.name, got, test.want)
		}
	}
}

func TestSizeFromPak(t *testing.T) {
	var img bytes.Buffer
	if err := png.Encode(&img, image.NewGray(image.Rect(0, 0, 8, 4))); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := pak.Write(&buf, map[string][]byte{"textures/sky.png": img.Bytes()}); err != nil {
		t.Fatal(err)
	}
	fn := filepath.Join(t.TempDir(), "pak0.pak")
	if err := os.WriteFile(fn, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
	paks, err := pak.MultiOpen(fn)
	if err != nil {
		t.Fatal(err)
	}
	defer paks.Close()

	r := &Resolver{Paks: paks}
	got, err := r.Size("sky")
	if err != nil {
		t.Fatalf("Size(sky): %v", err)
	}
	if want := (mgl32.Vec2{8, 4}); got != want {
		t.Errorf("Size(sky): got %v, want %v", got, want)
	}
}

func TestBackfill(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, filepath.Join(dir, "wall.png"), 64, 32)

	m, err := mapfile.Parse([]byte(`{
"classname" "worldspawn"
{
( 0 0 0 ) ( 0 1 0 ) ( 0 0 1 ) wall 0 0 0 1 1
( 0 0 0 ) ( 0 0 1 ) ( 1 0 0 ) missing 0 0 0 1 1
( 0 0 0 ) ( 1 0 0 ) ( 0 1 0 ) wall 0 0 0 1 1
( 1 1 1 ) ( 1 1 2 ) ( 1 2 1 ) gone 0 0 0 1 1
}
}
`))
	if err != nil {
		t.Fatal(err)
	}
	r := &Resolver{Dirs: []string{dir}, Workers: 2}
	missing, err := r.Backfill(context.Background(), m)
	if err != nil {
		t.Fatalf("Backfill(): %v", err)
	}
	if want := []string{"gone", "missing"}; !reflect.DeepEqual(missing, want) {
		t.Errorf("Missing: got %q, want %q", missing, want)
	}
	if got, want := m.TextureSizes["wall"], (mgl32.Vec2{64, 32}); got != want {
		t.Errorf("Size of wall: got %v, want %v", got, want)
	}
	if got := m.TextureSizes["missing"]; got != (mgl32.Vec2{}) {
		t.Errorf("Size of missing: got %v, want zero", got)
	}
}
