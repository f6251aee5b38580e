// SPDX-FileCopyrightText: 2023 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package layout

import (
	"fmt"
	"math"

	"github.com/linuxdeepin/dde-wloutput/wloutput"
)

// Rect is the area a head covers in the global compositor space.
type Rect struct {
	X      int32
	Y      int32
	Width  int32
	Height int32
}

func (r Rect) String() string {
	return fmt.Sprintf("%dx%d+%d+%d", r.Width, r.Height, r.X, r.Y)
}

func (r Rect) Right() int32 {
	return r.X + r.Width
}

func (r Rect) Bottom() int32 {
	return r.Y + r.Height
}

type point struct {
	x, y float64
}

func (r Rect) center() point {
	return point{float64(r.X) + float64(r.Width)/2, float64(r.Y) + float64(r.Height)/2}
}

func (r Rect) eastPoint() point {
	return point{float64(r.X), r.center().y}
}

func (r Rect) westPoint() point {
	return point{float64(r.Right()), r.center().y}
}

func (r Rect) northPoint() point {
	return point{r.center().x, float64(r.Y)}
}

func (r Rect) southPoint() point {
	return point{r.center().x, float64(r.Bottom())}
}

func distance(a, b point) float64 {
	return math.Hypot(b.x-a.x, b.y-a.y)
}

// Intersects reports whether r and o share any area.
func (r Rect) Intersects(o Rect) bool {
	return r.X < o.Right() && o.X < r.Right() && r.Y < o.Bottom() && o.Y < r.Bottom()
}

// RectOf returns the logical rectangle of an enabled head: its current mode
// rotated by the transform and divided by the scale.
func RectOf(head wloutput.Head) (Rect, bool) {
	if !head.Enabled || head.Position == nil {
		return Rect{}, false
	}
	w, h := head.LogicalSize()
	if w == 0 || h == 0 {
		return Rect{}, false
	}
	return Rect{X: head.Position.X, Y: head.Position.Y, Width: w, Height: h}, true
}

// Placement is the planned rectangle of one head.
type Placement struct {
	Head wloutput.HeadID
	Rect Rect
}

// Plan returns the rectangles the enabled heads of snap would occupy once
// changes are applied, in enumeration order.
func Plan(snap *wloutput.Snapshot, changes []wloutput.HeadChange) []Placement {
	byHead := make(map[wloutput.HeadID]wloutput.HeadChange, len(changes))
	for _, c := range changes {
		byHead[c.Head] = c
	}

	var placements []Placement
	for _, head := range snap.Heads {
		c, changed := byHead[head.ID]
		if !changed {
			if r, ok := RectOf(head); ok {
				placements = append(placements, Placement{Head: head.ID, Rect: r})
			}
			continue
		}
		if r, ok := plannedRect(head, c); ok {
			placements = append(placements, Placement{Head: head.ID, Rect: r})
		}
	}
	return placements
}

func plannedRect(head wloutput.Head, c wloutput.HeadChange) (Rect, bool) {
	enabled := head.Enabled
	if c.Enabled != nil {
		enabled = *c.Enabled
	}
	if !enabled {
		return Rect{}, false
	}

	var w, h int32
	switch {
	case c.CustomMode != nil:
		w, h = c.CustomMode.Width, c.CustomMode.Height
	case c.Mode != 0:
		mode, ok := head.Modes.Find(c.Mode)
		if !ok {
			return Rect{}, false
		}
		w, h = mode.Width, mode.Height
	default:
		mode, ok := head.Current()
		if !ok {
			mode, ok = head.Modes.Best()
		}
		if !ok {
			return Rect{}, false
		}
		w, h = mode.Width, mode.Height
	}

	transform := head.Transform
	if c.Transform != nil {
		transform = *c.Transform
	}
	if transform.Rotated() {
		w, h = h, w
	}
	scale := head.Scale
	if c.Scale != nil {
		scale = *c.Scale
	}
	if scale.Valid() {
		w, h = scale.Divide(w), scale.Divide(h)
	}

	var pos wloutput.Position
	switch {
	case c.Position != nil:
		pos = *c.Position
	case head.Position != nil:
		pos = *head.Position
	}
	return Rect{X: pos.X, Y: pos.Y, Width: w, Height: h}, true
}
