// SPDX-FileCopyrightText: 2023 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package layout

import (
	"math"

	"github.com/linuxdeepin/dde-wloutput/wloutput"
)

const (
	// snapDistance is how close two edges must be to be pulled together.
	snapDistance = 4
	// sideWeight makes horizontal neighbours lose against vertical ones of
	// similar distance.
	sideWeight = 1.25
)

type side int

const (
	sideEast side = iota
	sideWest
	sideNorth
	sideSouth
)

func clamp(v, lo, hi int32) int32 {
	if v < lo {
		v = lo
	}
	if v > hi {
		v = hi
	}
	return v
}

func abs(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}

// Align attaches moved to the nearest edge of the nearest rectangle in
// others so that no gap remains between them, then snaps edges that are
// almost aligned. moved is returned unchanged when others is empty.
func Align(moved Rect, others []Rect) Rect {
	if len(others) == 0 {
		return moved
	}

	nearest := math.MaxFloat64
	var target Rect
	var where side
	center := moved.center()
	for _, o := range others {
		candidates := []struct {
			dist float64
			side side
		}{
			{distance(o.eastPoint(), center) * sideWeight, sideEast},
			{distance(o.westPoint(), center) * sideWeight, sideWest},
			{distance(o.northPoint(), center), sideNorth},
			{distance(o.southPoint(), center), sideSouth},
		}
		for _, c := range candidates {
			if c.dist < nearest {
				nearest, where, target = c.dist, c.side, o
			}
		}
	}

	switch where {
	case sideEast:
		moved.X = target.X - moved.Width
		moved.Y = clamp(moved.Y, target.Y-moved.Height+snapDistance, target.Bottom()-snapDistance)
	case sideWest:
		moved.X = target.Right()
		moved.Y = clamp(moved.Y, target.Y-moved.Height+snapDistance, target.Bottom()-snapDistance)
	case sideNorth:
		moved.Y = target.Y - moved.Height
		moved.X = clamp(moved.X, target.X-moved.Width+snapDistance, target.Right()-snapDistance)
	case sideSouth:
		moved.Y = target.Bottom()
		moved.X = clamp(moved.X, target.X-moved.Width+snapDistance, target.Right()-snapDistance)
	}

	if abs(moved.X-target.X) <= snapDistance {
		moved.X = target.X
	}
	if abs(moved.Right()-target.Right()) <= snapDistance {
		moved.X = target.Right() - moved.Width
	}
	if abs(moved.Y-target.Y) <= snapDistance {
		moved.Y = target.Y
	}
	if abs(moved.Bottom()-target.Bottom()) <= snapDistance {
		moved.Y = target.Bottom() - moved.Height
	}
	return moved
}

// Normalize shifts all rectangles so that the smallest x and the smallest y
// are both 0.
func Normalize(rects []Rect) []Rect {
	if len(rects) == 0 {
		return nil
	}
	minX, minY := rects[0].X, rects[0].Y
	for _, r := range rects[1:] {
		if r.X < minX {
			minX = r.X
		}
		if r.Y < minY {
			minY = r.Y
		}
	}
	result := make([]Rect, len(rects))
	for i, r := range rects {
		r.X -= minX
		r.Y -= minY
		result[i] = r
	}
	return result
}

// AutoAlign plans the layout after changes, attaches the head moved to its
// nearest neighbour and anchors the whole layout at the origin. Position
// changes needed for that are merged into the returned copy of changes.
func AutoAlign(snap *wloutput.Snapshot, changes []wloutput.HeadChange, moved wloutput.HeadID) []wloutput.HeadChange {
	placements := Plan(snap, changes)
	idx := -1
	var others []Rect
	for i, p := range placements {
		if p.Head == moved {
			idx = i
			continue
		}
		others = append(others, p.Rect)
	}
	result := append([]wloutput.HeadChange(nil), changes...)
	if idx < 0 {
		return result
	}

	rects := make([]Rect, len(placements))
	for i, p := range placements {
		rects[i] = p.Rect
	}
	rects[idx] = Align(rects[idx], others)
	rects = Normalize(rects)
	logger.Debugf("aligned %d: %v", moved, rects)

	for i, p := range placements {
		r := rects[i]
		if head, ok := snap.Lookup(p.Head); ok && head.Enabled && head.Position != nil &&
			head.Position.X == r.X && head.Position.Y == r.Y && !repositioned(result, p.Head) {
			continue
		}
		result = setPosition(result, p.Head, r.X, r.Y)
	}
	return result
}

func repositioned(changes []wloutput.HeadChange, id wloutput.HeadID) bool {
	for _, c := range changes {
		if c.Head == id && c.Position != nil {
			return true
		}
	}
	return false
}

func setPosition(changes []wloutput.HeadChange, id wloutput.HeadID, x, y int32) []wloutput.HeadChange {
	for i, c := range changes {
		if c.Head == id {
			changes[i] = c.WithPosition(x, y)
			return changes
		}
	}
	return append(changes, wloutput.Change(id).WithPosition(x, y))
}
