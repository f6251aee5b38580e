// SPDX-FileCopyrightText: 2023 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package wloutput

import (
	"fmt"
)

// HeadID is the compositor assigned identity of a head, stable for the
// lifetime of a connection.
type HeadID uint32

type Position struct {
	X int32
	Y int32
}

func (p Position) String() string {
	return fmt.Sprintf("%d,%d", p.X, p.Y)
}

// Head is one output as last reported by the compositor.
type Head struct {
	ID           HeadID
	Name         string
	Description  string
	Make         string
	Model        string
	SerialNumber string

	// physical size in millimetres, 0 when unknown
	PhysicalWidth  int32
	PhysicalHeight int32

	Enabled     bool
	Position    *Position
	Scale       Scale
	Transform   Transform
	Modes       Modes
	CurrentMode ModeID

	AdaptiveSync          bool
	AdaptiveSyncSupported bool
}

func (h Head) Clone() Head {
	c := h
	if h.Position != nil {
		pos := *h.Position
		c.Position = &pos
	}
	c.Modes = append(Modes(nil), h.Modes...)
	return c
}

// Current returns the active mode of the head.
func (h Head) Current() (Mode, bool) {
	if h.CurrentMode == 0 {
		return Mode{}, false
	}
	return h.Modes.Find(h.CurrentMode)
}

// LogicalSize returns the size the head occupies in the global layout, that
// is the current mode rotated by the transform and divided by the scale.
func (h Head) LogicalSize() (width, height int32) {
	mode, ok := h.Current()
	if !ok {
		return 0, 0
	}
	width, height = mode.Width, mode.Height
	if h.Transform.Rotated() {
		width, height = height, width
	}
	return h.Scale.Divide(width), h.Scale.Divide(height)
}

// Matches reports whether the head is the one described by name and the
// optional make, model and serial number.
func (h Head) Matches(name, make_, model, serial string) bool {
	if name != "" && h.Name != name {
		return false
	}
	if make_ != "" && h.Make != make_ {
		return false
	}
	if model != "" && h.Model != model {
		return false
	}
	if serial != "" && h.SerialNumber != serial {
		return false
	}
	return name != "" || make_ != "" || model != "" || serial != ""
}

func (h Head) String() string {
	if mode, ok := h.Current(); ok {
		return fmt.Sprintf("%s(%d) %s", h.Name, h.ID, mode)
	}
	if !h.Enabled {
		return fmt.Sprintf("%s(%d) disabled", h.Name, h.ID)
	}
	return fmt.Sprintf("%s(%d)", h.Name, h.ID)
}
