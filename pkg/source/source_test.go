package source

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/ThomasHabets/qmap/pkg/pak"
)

func TestParseGSURL(t *testing.T) {
	for _, test := range []struct {
		in             string
		bucket, object string
		err            bool
	}{
		{"", "", "", true},
		{"maps/start.map", "", "", true},
		{"gs://qmap", "", "", true},
		{"gs://qmap/", "", "", true},
		{"gs:///start.map", "", "", true},
		{"gs://qmap/maps/", "", "", true},
		{"gs://qmap/start.map", "qmap", "start.map", false},
		{"gs://qmap/maps/e1m1.map", "qmap", "maps/e1m1.map", false},
	} {
		bucket, object, err := ParseGSURL(test.in)
		if test.err != (err != nil) {
			t.Errorf("For %q want err %v, got %v", test.in, test.err, err)
		}
		if bucket != test.bucket {
			t.Errorf("For %q want bucket %q, got %q", test.in, test.bucket, bucket)
		}
		if object != test.object {
			t.Errorf("For %q want object %q, got %q", test.in, test.object, object)
		}
	}
}

const testMap = `{
"classname" "worldspawn"
}
`

func TestLoadLocalAndPak(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	local := filepath.Join(dir, "local.map")
	if err := os.WriteFile(local, []byte(testMap), 0644); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := pak.Write(&buf, map[string][]byte{"maps/packed.map": []byte(testMap)}); err != nil {
		t.Fatal(err)
	}
	pakFile := filepath.Join(dir, "pak0.pak")
	if err := os.WriteFile(pakFile, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
	paks, err := pak.MultiOpen(pakFile)
	if err != nil {
		t.Fatal(err)
	}
	defer paks.Close()

	o := &Opener{Paks: paks}
	defer o.Close()
	for _, test := range []struct {
		fn   string
		name string
	}{
		{local, "local.map"},
		{"maps/packed.map", "packed.map"},
	} {
		m, err := o.Load(ctx, test.fn)
		if err != nil {
			t.Errorf("Load(%q): %v", test.fn, err)
			continue
		}
		if m.Name != test.name {
			t.Errorf("Load(%q) name: got %q, want %q", test.fn, m.Name, test.name)
		}
		if got, want := len(m.Entities), 1; got != want {
			t.Errorf("Load(%q) entities: got %d, want %d", test.fn, got, want)
		}
	}

	if _, err := o.Load(ctx, filepath.Join(dir, "nope.map")); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Load(missing): got %v, want ErrNotExist", err)
	}
}

func TestLoadBadMap(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "bad.map")
	if err := os.WriteFile(fn, []byte("{ ( }"), 0644); err != nil {
		t.Fatal(err)
	}
	o := &Opener{}
	if _, err := o.Load(context.Background(), fn); err == nil {
		t.Errorf("Load(%q) succeeded on a broken map", fn)
	}
}
