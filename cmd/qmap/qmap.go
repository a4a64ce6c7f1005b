// qmap loads Quake .map files and converts them to meshes and POV-Ray files.
package main

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

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/ThomasHabets/qmap/pkg/mapfile"
	"github.com/ThomasHabets/qmap/pkg/mesh"
	"github.com/ThomasHabets/qmap/pkg/pak"
	"github.com/ThomasHabets/qmap/pkg/pov"
	"github.com/ThomasHabets/qmap/pkg/source"
	"github.com/ThomasHabets/qmap/pkg/texsize"
)

var (
	pakFiles         = flag.String("pak", "", "Comma-separated list of pakfiles to search for maps and textures.")
	cloudCredentials = flag.String("cloud_credentials", "", "Service account JSON file for gs:// maps. Default credentials if empty.")
	textureDirs      = flag.String("texture_dirs", "", "Comma-separated list of directories with texture images.")
	workers          = flag.Int("workers", 0, "Brushes and patches resolved in parallel. 0 means one per CPU.")
	verbose          = flag.Bool("v", false, "Verbose logging.")
)

// env is what all commands need to load a map.
type env struct {
	opener   *source.Opener
	textures *texsize.Resolver
	workers  int
}

func splitList(s string) []string {
	var ret []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			ret = append(ret, p)
		}
	}
	return ret
}

// load reads, parses and resolves a map, and looks up its texture sizes.
// Returns the textures that couldn't be found.
func (e *env) load(ctx context.Context, name string) (*mapfile.Map, []string, error) {
	m, err := e.opener.Load(ctx, name)
	if err != nil {
		return nil, nil, err
	}
	missing, err := e.textures.Backfill(ctx, m)
	if err != nil {
		return nil, nil, fmt.Errorf("finding textures of %q: %w", name, err)
	}
	if err := m.CalculateGeometry(ctx, e.workers); err != nil {
		return nil, nil, fmt.Errorf("resolving %q: %w", name, err)
	}
	return m, missing, nil
}

// mustLoad is load for commands, with the map name as the only argument.
func (e *env) mustLoad(ctx context.Context, fs *flag.FlagSet) *mapfile.Map {
	if fs.NArg() != 1 {
		fs.Usage()
		log.Fatalf("Need to specify exactly one map.")
	}
	name := fs.Arg(0)
	l := log.WithFields(log.Fields{
		"batch": uuid.New().String(),
		"map":   name,
	})
	m, missing, err := e.load(ctx, name)
	if err != nil {
		l.Fatalf("Loading map: %v", err)
	}
	if len(missing) > 0 {
		l.Debugf("%d textures not found, using default size", len(missing))
	}
	return m
}

func newFlagSet(name, args string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [global options] %s [options] %s\n", os.Args[0], name, args)
		fs.PrintDefaults()
	}
	return fs
}

func info(ctx context.Context, e *env, args ...string) {
	fs := newFlagSet("info", "<map>")
	fs.Parse(args)
	m := e.mustLoad(ctx, fs)

	st := m.Stats()
	fmt.Printf("Name: %v\n", m.Name)
	fmt.Printf("Entities: %v\n", st.Entities)
	fmt.Printf("Brushes: %v\n", st.Brushes)
	fmt.Printf("Faces: %v\n", st.Faces)
	fmt.Printf("Degenerate faces: %v\n", st.DegenerateFaces)
	fmt.Printf("Patches: %v\n", st.Patches)
	fmt.Printf("Patch vertices: %v\n", st.PatchVertices)
	fmt.Printf("Textures: %v\n", st.Textures)
	fmt.Printf("Models: %v\n", st.Models)

	fmt.Printf("Entity  Brushes Patches Class\n")
	for _, ent := range m.Entities {
		fmt.Printf("%6d %8d %7d %s\n", ent.ID, len(ent.Brushes), len(ent.Patches), ent.ClassName())
	}
}

func printMap(ctx context.Context, e *env, args ...string) {
	fs := newFlagSet("print", "<map>")
	fs.Parse(args)
	if fs.NArg() != 1 {
		fs.Usage()
		log.Fatalf("Need to specify exactly one map.")
	}
	m, err := e.opener.Load(ctx, fs.Arg(0))
	if err != nil {
		log.Fatalf("Loading map: %v", err)
	}
	if err := m.Print(os.Stdout); err != nil {
		log.Fatalf("Printing map: %v", err)
	}
}

func povCmd(ctx context.Context, e *env, args ...string) {
	fs := newFlagSet("pov", "<map>")
	lights := fs.Bool("lights", true, "Export lights.")
	textures := fs.Bool("textures", false, "Use textures.")
	flatColor := fs.String("flat_color", pov.DefaultOptions.FlatColor, "Color to use without textures.")
	lightMultiplier := fs.Float64("light_multiplier", pov.DefaultOptions.LightMultiplier, "Light strength multiplier.")
	lightFadeDistance := fs.Float64("light_fade_distance", pov.DefaultOptions.LightFadeDistance, "Light fade distance.")
	lightFadePower := fs.Float64("light_fade_power", pov.DefaultOptions.LightFadePower, "Light fade power.")
	fs.Parse(args)
	m := e.mustLoad(ctx, fs)

	o := pov.Options{
		Textures:          *textures,
		FlatColor:         *flatColor,
		LightMultiplier:   *lightMultiplier,
		LightFadeDistance: *lightFadeDistance,
		LightFadePower:    *lightFadePower,
	}
	if err := o.TriangleMesh(os.Stdout, m, pov.MacroPrefix(m.Name)); err != nil {
		log.Fatalf("Writing mesh: %v", err)
	}
	if *lights {
		if err := o.Lights(os.Stdout, m); err != nil {
			log.Fatalf("Writing lights: %v", err)
		}
	}
}

func meshCmd(ctx context.Context, e *env, args ...string) {
	fs := newFlagSet("mesh", "-out <file> <map>")
	out := fs.String("out", "", "Output file.")
	fs.Parse(args)
	if *out == "" {
		fs.Usage()
		log.Fatalf("-out is mandatory")
	}
	m := e.mustLoad(ctx, fs)

	me := mesh.Build(m)
	if err := os.WriteFile(*out, me.Marshal(), 0644); err != nil {
		log.Fatalf("Writing %q: %v", *out, err)
	}
	log.Infof("Wrote %d batches with %d triangles to %q", len(me.Batches), me.Triangles(), *out)
}

func textures(ctx context.Context, e *env, args ...string) {
	fs := newFlagSet("textures", "<map>")
	fs.Parse(args)
	if fs.NArg() != 1 {
		fs.Usage()
		log.Fatalf("Need to specify exactly one map.")
	}
	m, err := e.opener.Load(ctx, fs.Arg(0))
	if err != nil {
		log.Fatalf("Loading map: %v", err)
	}
	missing, err := e.textures.Backfill(ctx, m)
	if err != nil {
		log.Fatalf("Finding textures: %v", err)
	}
	isMissing := make(map[string]bool)
	for _, t := range missing {
		isMissing[t] = true
	}
	for _, t := range m.Textures() {
		if isMissing[t] {
			fmt.Printf("%-32q missing\n", t)
			continue
		}
		size := m.TextureSizes[t]
		fmt.Printf("%-32q %4vx%v\n", t, size[0], size[1])
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [global options] command [options]\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "Commands:\n  info\n  print\n  pov\n  mesh\n  textures\n  serve\nGlobal options:\n")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()
	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	pf := splitList(*pakFiles)
	p, err := pak.MultiOpen(pf...)
	if err != nil {
		log.Fatalf("Opening pakfiles %q: %v", pf, err)
	}
	defer p.Close()

	if flag.NArg() == 0 {
		usage()
		log.Fatalf("Need to specify a command.")
	}

	e := &env{
		opener: &source.Opener{
			Paks:             p,
			CloudCredentials: *cloudCredentials,
		},
		textures: &texsize.Resolver{
			Dirs:    splitList(*textureDirs),
			Paks:    p,
			Workers: *workers,
		},
		workers: *workers,
	}
	defer e.opener.Close()

	ctx := context.Background()
	cmd := flag.Arg(0)
	args := flag.Args()[1:]
	switch cmd {
	case "info":
		info(ctx, e, args...)
	case "print":
		printMap(ctx, e, args...)
	case "pov":
		povCmd(ctx, e, args...)
	case "mesh":
		meshCmd(ctx, e, args...)
	case "textures":
		textures(ctx, e, args...)
	case "serve":
		serve(ctx, e, args...)
	case "help":
		usage()
	default:
		log.Fatalf("Unknown command %q", cmd)
	}
}
