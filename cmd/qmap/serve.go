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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"golang.org/x/net/netutil"

	"github.com/ThomasHabets/qmap/pkg/mapfile"
	"github.com/ThomasHabets/qmap/pkg/mesh"
	"github.com/ThomasHabets/qmap/pkg/pov"
)

type ctxKey string

const requestIDKey ctxKey = "id"

type server struct {
	env      *env
	mapDir   string
	deadline time.Duration
}

type handleFunc func(ctx context.Context, w http.ResponseWriter, r *http.Request) error

type handler struct {
	s *server
	f handleFunc
}

type httpErr struct {
	code            int
	private, public string
}

func httpError(code int, pub, priv string) *httpErr {
	return &httpErr{
		code:    code,
		private: priv,
		public:  pub,
	}
}

func (e *httpErr) Error() string {
	return fmt.Sprintf("HTTP Error %d: %v", e.code, e.private)
}

func logger(ctx context.Context) *log.Entry {
	id, _ := ctx.Value(requestIDKey).(string)
	return log.WithField("request", id)
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := context.WithValue(r.Context(), requestIDKey, uuid.New().String())
	ctx, cancel := context.WithTimeout(ctx, h.s.deadline)
	defer cancel()
	l := logger(ctx).WithFields(log.Fields{
		"remote": r.RemoteAddr,
		"path":   r.URL.Path,
	})
	l.Debugf("Request")
	if err := h.f(ctx, w, r); err != nil {
		w.Header().Set("Content-Type", "text/plain")
		code := http.StatusInternalServerError
		msg := "Internal error"
		var e2 *httpErr
		if errors.As(err, &e2) {
			code = e2.code
			msg = e2.public
		}
		w.WriteHeader(code)
		fmt.Fprintf(w, "Error: %v", msg)
		l.Warningf("Error handling request: %v", err)
	}
}

func (s *server) wrap(f handleFunc) *handler {
	return &handler{s: s, f: f}
}

// mapName turns the {name} part of the URL into something the source package
// can open. It refuses anything that could escape the map directory.
func (s *server) mapName(name string) (string, error) {
	if name == "" || strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		return "", httpError(http.StatusBadRequest, "Bad map name", fmt.Sprintf("bad map name %q", name))
	}
	if path.Ext(name) == "" {
		name += ".map"
	}
	if s.mapDir == "" {
		return name, nil
	}
	if strings.HasPrefix(s.mapDir, "gs://") {
		return strings.TrimSuffix(s.mapDir, "/") + "/" + name, nil
	}
	return path.Join(s.mapDir, name), nil
}

func (s *server) load(ctx context.Context, r *http.Request) (*mapfile.Map, error) {
	name, err := s.mapName(mux.Vars(r)["name"])
	if err != nil {
		return nil, err
	}
	m, missing, err := s.env.load(ctx, name)
	var pe *mapfile.ParseError
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, httpError(http.StatusNotFound, "Map not found", err.Error())
	case errors.As(err, &pe):
		return nil, httpError(http.StatusUnprocessableEntity, pe.Error(), err.Error())
	case err != nil:
		return nil, err
	}
	if len(missing) > 0 {
		logger(ctx).Debugf("Map %q: %d textures not found", name, len(missing))
	}
	return m, nil
}

func write(w http.ResponseWriter, contentType string, b []byte) error {
	w.Header().Set("Content-Type", contentType)
	_, err := w.Write(b)
	return err
}

func (s *server) handleInfo(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	m, err := s.load(ctx, r)
	if err != nil {
		return err
	}
	b, err := json.Marshal(struct {
		Name string `json:"name"`
		mapfile.Stats
		TextureNames []string `json:"texture_names"`
	}{
		Name:         m.Name,
		Stats:        m.Stats(),
		TextureNames: m.Textures(),
	})
	if err != nil {
		return err
	}
	return write(w, "application/json", b)
}

func (s *server) handleSource(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	m, err := s.load(ctx, r)
	if err != nil {
		return err
	}
	return write(w, "text/plain; charset=utf-8", []byte(m.Stringify()))
}

func (s *server) handlePOV(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	m, err := s.load(ctx, r)
	if err != nil {
		return err
	}
	o := pov.DefaultOptions
	o.Textures = r.FormValue("textures") == "1"
	var buf bytes.Buffer
	if err := o.TriangleMesh(&buf, m, pov.MacroPrefix(m.Name)); err != nil {
		return err
	}
	if err := o.Lights(&buf, m); err != nil {
		return err
	}
	return write(w, "text/plain; charset=utf-8", buf.Bytes())
}

func (s *server) handleMesh(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	m, err := s.load(ctx, r)
	if err != nil {
		return err
	}
	return write(w, "application/x-protobuf", mesh.Build(m).Marshal())
}

func (s *server) router() *mux.Router {
	r := mux.NewRouter()
	r.Handle("/map/{name}/info", s.wrap(s.handleInfo)).Methods("GET", "HEAD")
	r.Handle("/map/{name}/source", s.wrap(s.handleSource)).Methods("GET", "HEAD")
	r.Handle("/map/{name}/pov", s.wrap(s.handlePOV)).Methods("GET", "HEAD")
	r.Handle("/map/{name}/mesh", s.wrap(s.handleMesh)).Methods("GET", "HEAD")
	return r
}

func serve(ctx context.Context, e *env, args ...string) {
	fs := newFlagSet("serve", "")
	addr := fs.String("addr", ":8080", "Address to listen to.")
	maxConns := fs.Int("max_conns", 100, "Max concurrent connections. 0 means no limit.")
	mapDir := fs.String("map_dir", "", "Directory, pak path prefix, or gs:// URL to serve maps from.")
	deadline := fs.Duration("deadline", time.Minute, "Time limit per request.")
	fs.Parse(args)
	if fs.NArg() != 0 {
		fs.Usage()
		log.Fatalf("Trailing args: %q", fs.Args())
	}

	s := &server{
		env:      e,
		mapDir:   *mapDir,
		deadline: *deadline,
	}
	sock, err := net.Listen("tcp", *addr)
	if err != nil {
		log.Fatalf("Unable to listen to %q: %v", *addr, err)
	}
	if *maxConns > 0 {
		sock = netutil.LimitListener(sock, *maxConns)
	}
	srv := &http.Server{
		Handler:           s.router(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	log.Infof("Serving maps from %q on %q", *mapDir, sock.Addr())
	if err := srv.Serve(sock); err != nil {
		log.Fatalf("Failed to serve: %v", err)
	}
}
