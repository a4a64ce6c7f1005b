// Package texsize finds the pixel dimensions of the textures used by a map.
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
package texsize

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"sort"
	"sync"

	"github.com/ftrvxmtrx/tga"
	"github.com/go-gl/mathgl/mgl32"
	log "github.com/sirupsen/logrus"
	"golang.org/x/image/bmp"
	"golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"

	"github.com/ThomasHabets/qmap/pkg/mapfile"
	"github.com/ThomasHabets/qmap/pkg/pak"
)

// Only the header is decoded. TGA has no magic number, so the decoder is picked
// by file extension rather than by sniffing the data.
var decoders = []struct {
	ext    string
	config func(io.Reader) (image.Config, error)
}{
	{".tga", tga.DecodeConfig},
	{".png", png.DecodeConfig},
	{".jpg", jpeg.DecodeConfig},
	{".jpeg", jpeg.DecodeConfig},
	{".bmp", bmp.DecodeConfig},
	{".webp", webp.DecodeConfig},
}

// Resolver looks textures up in directories and PAK files.
type Resolver struct {
	Dirs []string
	Paks pak.MultiPak

	// Parallel lookups in Backfill. <= 0 means one per CPU.
	Workers int
}

// candidates returns the file names to try for a texture, in order.
func candidates(name string) []string {
	var ret []string
	for _, prefix := range []string{"", "textures/"} {
		for _, d := range decoders {
			ret = append(ret, prefix+name+d.ext)
		}
	}
	return ret
}

func decodeSize(fn string, r io.Reader) (mgl32.Vec2, error) {
	for _, d := range decoders {
		if path.Ext(fn) != d.ext {
			continue
		}
		cfg, err := d.config(r)
		if err != nil {
			return mgl32.Vec2{}, fmt.Errorf("decoding %q: %w", fn, err)
		}
		if cfg.Width <= 0 || cfg.Height <= 0 {
			return mgl32.Vec2{}, fmt.Errorf("%q has bad size %dx%d", fn, cfg.Width, cfg.Height)
		}
		return mgl32.Vec2{float32(cfg.Width), float32(cfg.Height)}, nil
	}
	return mgl32.Vec2{}, fmt.Errorf("%q: unknown image format", fn)
}

func (r *Resolver) open(fn string) (io.ReadCloser, error) {
	for _, dir := range r.Dirs {
		f, err := os.Open(filepath.Join(dir, filepath.FromSlash(fn)))
		if err == nil {
			return f, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	if len(r.Paks) > 0 {
		b, err := r.Paks.ReadFile(fn)
		if err == nil {
			return io.NopCloser(bytes.NewReader(b)), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return nil, fs.ErrNotExist
}

// Size returns the width and height of a texture. If no image file is found the
// error wraps fs.ErrNotExist.
func (r *Resolver) Size(name string) (mgl32.Vec2, error) {
	for _, fn := range candidates(name) {
		f, err := r.open(fn)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return mgl32.Vec2{}, err
		}
		size, err := decodeSize(fn, f)
		f.Close()
		if err != nil {
			return mgl32.Vec2{}, err
		}
		log.Debugf("Texture %q is %q, %vx%v", name, fn, size[0], size[1])
		return size, nil
	}
	return mgl32.Vec2{}, fmt.Errorf("texture %q: %w", name, fs.ErrNotExist)
}

// Backfill fills in the size of every texture in m.TextureSizes that can be
// found, and returns the sorted names of those that couldn't.
// Broken image files are logged and reported as missing.
func (r *Resolver) Backfill(ctx context.Context, m *mapfile.Map) ([]string, error) {
	workers := r.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	var mu sync.Mutex
	found := make(map[string]mgl32.Vec2)
	var missing []string

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, name := range m.Textures() {
		name := name
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			size, err := r.Size(name)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if !errors.Is(err, fs.ErrNotExist) {
					log.Warningf("Texture %q: %v", name, err)
				}
				missing = append(missing, name)
				return nil
			}
			found[name] = size
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for name, size := range found {
		m.TextureSizes[name] = size
	}
	sort.Strings(missing)
	return missing, nil
}
