// Package source opens map files from local disk, PAK archives or Google
// Cloud Storage.
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
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"strings"
	"sync"

	"cloud.google.com/go/storage"
	log "github.com/sirupsen/logrus"
	cloudopt "google.golang.org/api/option"

	"github.com/ThomasHabets/qmap/pkg/mapfile"
	"github.com/ThomasHabets/qmap/pkg/pak"
)

const gsPrefix = "gs://"

// Opener finds map files by name.
//
// Names starting with gs:// are read from Cloud Storage. Other names are first
// looked up in the PAK files, then on local disk.
type Opener struct {
	Paks pak.MultiPak

	// Service account JSON file. Empty means default credentials.
	CloudCredentials string

	mu  sync.Mutex
	gcs *storage.Client
}

// ParseGSURL splits gs://bucket/some/object into bucket and object name.
func ParseGSURL(s string) (string, string, error) {
	if !strings.HasPrefix(s, gsPrefix) {
		return "", "", fmt.Errorf("%q is not a gs:// URL", s)
	}
	s = s[len(gsPrefix):]
	n := strings.Index(s, "/")
	if n < 0 {
		return "", "", fmt.Errorf("%q has no object name", gsPrefix+s)
	}
	bucket, object := s[:n], s[n+1:]
	if bucket == "" || object == "" || strings.HasSuffix(object, "/") {
		return "", "", fmt.Errorf("%q is not a bucket and object", gsPrefix+s)
	}
	return bucket, object, nil
}

func (o *Opener) client(ctx context.Context) (*storage.Client, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.gcs != nil {
		return o.gcs, nil
	}
	var opts []cloudopt.ClientOption
	if o.CloudCredentials != "" {
		opts = append(opts, cloudopt.WithCredentialsFile(o.CloudCredentials))
	}
	c, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to GCS: %w", err)
	}
	o.gcs = c
	return c, nil
}

func (o *Opener) readGCS(ctx context.Context, fn string) ([]byte, error) {
	bucket, object, err := ParseGSURL(fn)
	if err != nil {
		return nil, err
	}
	c, err := o.client(ctx)
	if err != nil {
		return nil, err
	}
	r, err := c.Bucket(bucket).Object(object).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, fmt.Errorf("%q: %w", fn, fs.ErrNotExist)
	} else if err != nil {
		return nil, fmt.Errorf("opening %q: %w", fn, err)
	}
	defer r.Close()
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading %q: %w", fn, err)
	}
	return b, nil
}

// ReadFile returns the contents of the named file.
func (o *Opener) ReadFile(ctx context.Context, fn string) ([]byte, error) {
	if strings.HasPrefix(fn, gsPrefix) {
		return o.readGCS(ctx, fn)
	}
	if len(o.Paks) > 0 {
		b, err := o.Paks.ReadFile(fn)
		if err == nil {
			log.Debugf("Read %q from pak", fn)
			return b, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return os.ReadFile(fn)
}

// Load reads and parses a map.
func (o *Opener) Load(ctx context.Context, fn string) (*mapfile.Map, error) {
	b, err := o.ReadFile(ctx, fn)
	if err != nil {
		return nil, err
	}
	m, err := mapfile.Parse(b)
	if err != nil {
		return nil, fmt.Errorf("parsing %q: %w", fn, err)
	}
	m.Name = path.Base(fn)
	log.Debugf("Loaded %q: %d entities", fn, len(m.Entities))
	return m, nil
}

// Close releases the Cloud Storage client, if one was created.
// The PAK files are owned by the caller.
func (o *Opener) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.gcs == nil {
		return nil
	}
	err := o.gcs.Close()
	o.gcs = nil
	return err
}
