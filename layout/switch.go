// SPDX-FileCopyrightText: 2023 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package layout

import (
	"github.com/linuxdeepin/dde-wloutput/wloutput"
	"golang.org/x/xerrors"
)

// Display modes accepted by Switch.
const (
	ModeExtend  = "extend"
	ModeMirror  = "mirror"
	ModeOnlyOne = "only-one"
)

var (
	ErrNoOutputs    = xerrors.New("no outputs")
	ErrNoCommonSize = xerrors.New("not found common size")
)

// Switch plans one of the whole-layout display modes. name selects the
// output for ModeOnlyOne and is ignored otherwise.
func Switch(snap *wloutput.Snapshot, mode, name string) ([]wloutput.HeadChange, error) {
	switch mode {
	case ModeExtend:
		return Extend(snap)
	case ModeMirror:
		return MirrorAll(snap)
	case ModeOnlyOne:
		return OnlyOne(snap, name)
	}
	return nil, xerrors.Errorf("invalid display mode %q", mode)
}

// target returns the change that brings head to the given state, leaving out
// attributes that already match.
func target(head wloutput.Head, mode wloutput.Mode, x, y int32, scale wloutput.Scale) wloutput.HeadChange {
	c := wloutput.Change(head.ID)
	if !head.Enabled {
		c = c.WithEnabled(true)
	}
	if !head.Enabled || head.CurrentMode != mode.ID {
		c = c.WithMode(mode.ID)
	}
	if head.Position == nil || head.Position.X != x || head.Position.Y != y {
		c = c.WithPosition(x, y)
	}
	if head.Transform != wloutput.TransformNormal {
		c = c.WithTransform(wloutput.TransformNormal)
	}
	if !head.Scale.Equal(scale) {
		c = c.WithScale(scale)
	}
	return c
}

func appendChange(changes []wloutput.HeadChange, c wloutput.HeadChange) []wloutput.HeadChange {
	if c.IsEmpty() {
		return changes
	}
	return append(changes, c)
}

// Extend enables every head with its best mode and places them left to
// right in enumeration order.
func Extend(snap *wloutput.Snapshot) ([]wloutput.HeadChange, error) {
	logger.Debug("switch mode extend")
	var changes []wloutput.HeadChange
	var xOffset int32
	for _, head := range snap.Heads {
		mode, ok := head.Modes.Best()
		if !ok {
			logger.Warningf("output %s has no modes", head.Name)
			continue
		}
		scale := head.Scale
		if !scale.Valid() {
			scale = wloutput.ScaleOne
		}
		changes = appendChange(changes, target(head, mode, xOffset, 0, scale))
		xOffset += scale.Divide(mode.Width)
	}
	if xOffset == 0 {
		return nil, ErrNoOutputs
	}
	return changes, nil
}

func commonSizes(heads []wloutput.Head) [][2]int32 {
	count := make(map[[2]int32]int)
	var order [][2]int32
	for _, head := range heads {
		for _, size := range head.Modes.Sizes() {
			if count[size] == 0 {
				order = append(order, size)
			}
			count[size]++
		}
	}
	var sizes [][2]int32
	for _, size := range order {
		if count[size] == len(heads) {
			sizes = append(sizes, size)
		}
	}
	return sizes
}

func maxAreaSize(sizes [][2]int32) [2]int32 {
	var best [2]int32
	for _, s := range sizes {
		if int64(s[0])*int64(s[1]) > int64(best[0])*int64(best[1]) {
			best = s
		}
	}
	return best
}

// MirrorAll shows the same content on every head: the largest size all of
// them support, at the origin, with the scale of the first head.
func MirrorAll(snap *wloutput.Snapshot) ([]wloutput.HeadChange, error) {
	logger.Debug("switch mode mirror")
	if len(snap.Heads) == 0 {
		return nil, ErrNoOutputs
	}
	sizes := commonSizes(snap.Heads)
	if len(sizes) == 0 {
		return nil, ErrNoCommonSize
	}
	size := maxAreaSize(sizes)
	logger.Debug("max common size:", size)

	scale := snap.Heads[0].Scale
	if !scale.Valid() {
		scale = wloutput.ScaleOne
	}
	var changes []wloutput.HeadChange
	for _, head := range snap.Heads {
		mode, ok := head.Modes.Match(size[0], size[1], 0, 0)
		if !ok {
			return nil, ErrNoCommonSize
		}
		changes = appendChange(changes, target(head, mode, 0, 0, scale))
	}
	return changes, nil
}

// OnlyOne enables the named head at the origin and disables all others. An
// empty name picks the first enabled head, or the first head.
func OnlyOne(snap *wloutput.Snapshot, name string) ([]wloutput.HeadChange, error) {
	logger.Debug("switch mode only one", name)
	if len(snap.Heads) == 0 {
		return nil, ErrNoOutputs
	}

	var keep wloutput.Head
	var found bool
	if name != "" {
		keep, found = snap.ByName(name)
		if !found {
			return nil, &wloutput.ValidationError{Name: name, Reason: "no such output"}
		}
	} else if enabled := snap.Enabled(); len(enabled) > 0 {
		keep = enabled[0]
	} else {
		keep = snap.Heads[0]
	}

	mode, ok := keep.Current()
	if !ok {
		if mode, ok = keep.Modes.Best(); !ok {
			return nil, &wloutput.ValidationError{Head: keep.ID, Name: keep.Name, Reason: "no modes"}
		}
	}
	scale := keep.Scale
	if !scale.Valid() {
		scale = wloutput.ScaleOne
	}

	var changes []wloutput.HeadChange
	for _, head := range snap.Heads {
		if head.ID == keep.ID {
			changes = appendChange(changes, target(head, mode, 0, 0, scale))
			continue
		}
		if head.Enabled {
			changes = append(changes, wloutput.Change(head.ID).WithEnabled(false))
		}
	}
	return changes, nil
}
