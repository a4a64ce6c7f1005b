package mapfile

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
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
)

// An Entity is a set of key/values plus the brushes and patches that belong to it.
// Entity 0 is normally "worldspawn", the static level geometry.
type Entity struct {
	ID         int
	Properties map[string]string
	Brushes    []*Brush
	Patches    []*Patch
}

// Property returns the value of a key.
func (e *Entity) Property(k string) (string, bool) {
	v, ok := e.Properties[k]
	return v, ok
}

// ClassName returns the "classname" property, or "" if not set.
func (e *Entity) ClassName() string {
	return e.Properties["classname"]
}

// Origin parses the "origin" property, e.g. "1 2 3".
func (e *Entity) Origin() (mgl32.Vec3, bool) {
	s, ok := e.Properties["origin"]
	if !ok {
		return mgl32.Vec3{}, false
	}
	v, err := parseVec3(s)
	if err != nil {
		return mgl32.Vec3{}, false
	}
	return v, true
}

func parseVec3(s string) (mgl32.Vec3, error) {
	parts := strings.Fields(s)
	if len(parts) != 3 {
		return mgl32.Vec3{}, fmt.Errorf("vertex coord parse fail: %q", s)
	}
	var v mgl32.Vec3
	for i, p := range parts {
		f, err := strconv.ParseFloat(p, 32)
		if err != nil {
			return mgl32.Vec3{}, fmt.Errorf("vertex coord parse fail: %q", s)
		}
		v[i] = float32(f)
	}
	return v, nil
}

// propertyKeys returns the keys in the order they are written out:
// classname first, then sorted.
func (e *Entity) propertyKeys() []string {
	var keys []string
	for k := range e.Properties {
		if k != "classname" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if _, ok := e.Properties["classname"]; ok {
		keys = append([]string{"classname"}, keys...)
	}
	return keys
}
