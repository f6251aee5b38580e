// SPDX-FileCopyrightText: 2023 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package wloutput

import (
	"strings"

	"golang.org/x/xerrors"
)

// Transform is the wl_output transform applied to a head. The numeric values
// match the wire encoding.
type Transform int32

const (
	TransformNormal Transform = iota
	TransformRotate90
	TransformRotate180
	TransformRotate270
	TransformFlipped
	TransformFlipped90
	TransformFlipped180
	TransformFlipped270
)

var transformNames = [...]string{
	TransformNormal:     "normal",
	TransformRotate90:   "rotate90",
	TransformRotate180:  "rotate180",
	TransformRotate270:  "rotate270",
	TransformFlipped:    "flipped",
	TransformFlipped90:  "flipped90",
	TransformFlipped180: "flipped180",
	TransformFlipped270: "flipped270",
}

var transformAliases = map[string]Transform{
	"0":           TransformNormal,
	"90":          TransformRotate90,
	"180":         TransformRotate180,
	"270":         TransformRotate270,
	"flipped-90":  TransformFlipped90,
	"flipped-180": TransformFlipped180,
	"flipped-270": TransformFlipped270,
	"rotate-90":   TransformRotate90,
	"rotate-180":  TransformRotate180,
	"rotate-270":  TransformRotate270,
}

func (t Transform) Valid() bool {
	return t >= TransformNormal && t <= TransformFlipped270
}

func (t Transform) String() string {
	if !t.Valid() {
		return "invalid"
	}
	return transformNames[t]
}

// Rotated reports whether the transform swaps width and height.
func (t Transform) Rotated() bool {
	switch t {
	case TransformRotate90, TransformRotate270, TransformFlipped90, TransformFlipped270:
		return true
	}
	return false
}

func ParseTransform(s string) (Transform, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range transformNames {
		if name == s {
			return Transform(i), nil
		}
	}
	if t, ok := transformAliases[s]; ok {
		return t, nil
	}
	return 0, xerrors.Errorf("unknown transform %q", s)
}

func (t Transform) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, xerrors.Errorf("invalid transform %d", int32(t))
	}
	return []byte(t.String()), nil
}

func (t *Transform) UnmarshalText(text []byte) error {
	v, err := ParseTransform(string(text))
	if err != nil {
		return err
	}
	*t = v
	return nil
}
