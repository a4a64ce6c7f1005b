// Package pak loads Quake PAK files.
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
package pak

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sort"

	log "github.com/sirupsen/logrus"
)

const (
	magic     = "PACK"
	nameBytes = 56
)

type fileHeader struct {
	ID            [4]byte
	Directory     uint32
	DirectorySize uint32
}

type fileEntry struct {
	NameBytes [nameBytes]byte
	Offset    uint32
	Size      uint32
}

func (e *fileEntry) Name() string {
	if n := bytes.IndexByte(e.NameBytes[:], 0); n >= 0 {
		return string(e.NameBytes[:n])
	}
	return string(e.NameBytes[:])
}

// Entry is where a file is inside the archive.
type Entry struct {
	Pos  uint32
	Size uint32
}

// Pak is one open PAK archive.
type Pak struct {
	Name    string
	Entries map[string]Entry

	r      io.ReaderAt
	closer io.Closer
}

// Get returns a reader for one file in the archive.
func (p *Pak) Get(fn string) (*io.SectionReader, error) {
	entry, found := p.Entries[fn]
	if !found {
		return nil, fmt.Errorf("%q in %q: %w", fn, p.Name, fs.ErrNotExist)
	}
	return io.NewSectionReader(p.r, int64(entry.Pos), int64(entry.Size)), nil
}

// ReadFile returns the contents of one file in the archive.
func (p *Pak) ReadFile(fn string) ([]byte, error) {
	r, err := p.Get(fn)
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}

// Close closes the underlying file, if Open opened one.
func (p *Pak) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer.Close()
}

// MultiPak is a set of archives where later ones override earlier ones,
// like pak0.pak and pak1.pak.
type MultiPak []*Pak

// List returns the sorted names of all files in all archives.
func (m MultiPak) List() []string {
	seen := make(map[string]bool)
	var ret []string
	for _, p := range m {
		for fn := range p.Entries {
			if !seen[fn] {
				seen[fn] = true
				ret = append(ret, fn)
			}
		}
	}
	sort.Strings(ret)
	return ret
}

// MultiOpen opens all the named archives. Empty names are skipped.
func MultiOpen(fns ...string) (MultiPak, error) {
	var ret MultiPak
	for _, fn := range fns {
		if fn == "" {
			continue
		}
		p, err := Open(fn)
		if err != nil {
			ret.Close()
			return nil, err
		}
		ret = append(ret, p)
	}
	return ret, nil
}

// Get returns a reader for the file from the last archive that has it.
func (m MultiPak) Get(s string) (*io.SectionReader, error) {
	for i := len(m); i > 0; i-- {
		r, err := m[i-1].Get(s)
		if err == nil {
			return r, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%q: %w", s, fs.ErrNotExist)
}

// ReadFile returns the contents of the file from the last archive that has it.
func (m MultiPak) ReadFile(s string) ([]byte, error) {
	r, err := m.Get(s)
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}

// Close closes all archives.
func (m MultiPak) Close() {
	for _, p := range m {
		if err := p.Close(); err != nil {
			log.Warningf("Closing %q: %v", p.Name, err)
		}
	}
}

// Open opens a PAK file on disk.
func Open(fn string) (*Pak, error) {
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	p, err := New(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("reading pak %q: %w", fn, err)
	}
	p.Name = fn
	p.closer = f
	log.Debugf("Opened pak %q with %d files", fn, len(p.Entries))
	return p, nil
}

// New reads the directory of a PAK archive.
func New(r io.ReaderAt) (*Pak, error) {
	ret := &Pak{
		r:       r,
		Entries: make(map[string]Entry),
	}

	var h fileHeader
	if err := binary.Read(io.NewSectionReader(r, 0, int64(binary.Size(h))), binary.LittleEndian, &h); err != nil {
		return nil, err
	}
	if string(h.ID[:]) != magic {
		return nil, fmt.Errorf("bad magic %q", h.ID[:])
	}
	entrySize := uint32(binary.Size(fileEntry{}))
	if h.DirectorySize%entrySize != 0 {
		return nil, fmt.Errorf("directory size %d is not a multiple of %d", h.DirectorySize, entrySize)
	}

	dir := io.NewSectionReader(r, int64(h.Directory), int64(h.DirectorySize))
	for i := uint32(0); i < h.DirectorySize/entrySize; i++ {
		var e fileEntry
		if err := binary.Read(dir, binary.LittleEndian, &e); err != nil {
			return nil, err
		}
		ret.Entries[e.Name()] = Entry{
			Pos:  e.Offset,
			Size: e.Size,
		}
	}
	return ret, nil
}

// Write creates a PAK archive holding the given files.
func Write(w io.Writer, files map[string][]byte) error {
	names := make([]string, 0, len(files))
	for fn := range files {
		if len(fn) >= nameBytes {
			return fmt.Errorf("file name %q too long", fn)
		}
		names = append(names, fn)
	}
	sort.Strings(names)

	hdr := fileHeader{
		Directory:     uint32(binary.Size(fileHeader{})),
		DirectorySize: uint32(len(names) * binary.Size(fileEntry{})),
	}
	copy(hdr.ID[:], magic)
	for _, fn := range names {
		hdr.Directory += uint32(len(files[fn]))
	}
	if err := binary.Write(w, binary.LittleEndian, &hdr); err != nil {
		return err
	}
	pos := uint32(binary.Size(fileHeader{}))
	var dir []fileEntry
	for _, fn := range names {
		if _, err := w.Write(files[fn]); err != nil {
			return err
		}
		e := fileEntry{Offset: pos, Size: uint32(len(files[fn]))}
		copy(e.NameBytes[:], fn)
		dir = append(dir, e)
		pos += e.Size
	}
	return binary.Write(w, binary.LittleEndian, dir)
}
