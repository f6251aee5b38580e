// SPDX-FileCopyrightText: 2023 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package wloutput

import (
	"fmt"
	"strings"
)

// refreshTolerance is the slack in millihertz when refresh rates given by
// value are matched against a head's modes.
const refreshTolerance = 10

type CustomMode struct {
	Width   int32
	Height  int32
	Refresh int32 // mHz, 0 lets the compositor pick
}

func (m CustomMode) String() string {
	return fmt.Sprintf("%dx%d@%s", m.Width, m.Height, FormatRefresh(m.Refresh))
}

// HeadChange is the set of attribute changes requested for one head. Unset
// fields are left as they are.
type HeadChange struct {
	Head         HeadID
	Enabled      *bool
	Mode         ModeID
	CustomMode   *CustomMode
	Position     *Position
	Transform    *Transform
	Scale        *Scale
	AdaptiveSync *bool
}

func Change(head HeadID) HeadChange {
	return HeadChange{Head: head}
}

func (c HeadChange) WithEnabled(enabled bool) HeadChange {
	c.Enabled = &enabled
	return c
}

func (c HeadChange) WithMode(mode ModeID) HeadChange {
	c.Mode = mode
	return c
}

func (c HeadChange) WithCustomMode(width, height, refresh int32) HeadChange {
	c.CustomMode = &CustomMode{Width: width, Height: height, Refresh: refresh}
	return c
}

func (c HeadChange) WithPosition(x, y int32) HeadChange {
	c.Position = &Position{X: x, Y: y}
	return c
}

func (c HeadChange) WithTransform(transform Transform) HeadChange {
	c.Transform = &transform
	return c
}

func (c HeadChange) WithScale(scale Scale) HeadChange {
	c.Scale = &scale
	return c
}

func (c HeadChange) WithAdaptiveSync(enabled bool) HeadChange {
	c.AdaptiveSync = &enabled
	return c
}

// hasAttributes reports whether anything beyond the enabled state changes.
func (c HeadChange) hasAttributes() bool {
	return c.Mode != 0 || c.CustomMode != nil || c.Position != nil ||
		c.Transform != nil || c.Scale != nil || c.AdaptiveSync != nil
}

func (c HeadChange) IsEmpty() bool {
	return c.Enabled == nil && !c.hasAttributes()
}

// merge overlays o on c. A mode replaces a custom mode and the other way
// round.
func (c HeadChange) merge(o HeadChange) HeadChange {
	if o.Enabled != nil {
		v := *o.Enabled
		c.Enabled = &v
	}
	if o.Mode != 0 {
		c.Mode = o.Mode
		c.CustomMode = nil
	}
	if o.CustomMode != nil {
		v := *o.CustomMode
		c.CustomMode = &v
		c.Mode = 0
	}
	if o.Position != nil {
		v := *o.Position
		c.Position = &v
	}
	if o.Transform != nil {
		v := *o.Transform
		c.Transform = &v
	}
	if o.Scale != nil {
		v := *o.Scale
		c.Scale = &v
	}
	if o.AdaptiveSync != nil {
		v := *o.AdaptiveSync
		c.AdaptiveSync = &v
	}
	return c
}

func (c HeadChange) String() string {
	parts := []string{fmt.Sprintf("head %d", c.Head)}
	if c.Enabled != nil {
		parts = append(parts, fmt.Sprintf("enabled=%v", *c.Enabled))
	}
	if c.Mode != 0 {
		parts = append(parts, fmt.Sprintf("mode=%d", c.Mode))
	}
	if c.CustomMode != nil {
		parts = append(parts, "custom="+c.CustomMode.String())
	}
	if c.Position != nil {
		parts = append(parts, "position="+c.Position.String())
	}
	if c.Transform != nil {
		parts = append(parts, "transform="+c.Transform.String())
	}
	if c.Scale != nil {
		parts = append(parts, "scale="+c.Scale.String())
	}
	if c.AdaptiveSync != nil {
		parts = append(parts, fmt.Sprintf("adaptive_sync=%v", *c.AdaptiveSync))
	}
	return strings.Join(parts, " ")
}

// ModeSpec names a mode by value. Refresh is in mHz; 0 matches any rate.
type ModeSpec struct {
	Width   int32
	Height  int32
	Refresh int32
}

// HeadConfig is the desired state of one head, as read from an interchange
// document. Heads are matched by name and, when given, make, model and serial
// number. ID is informational; identities do not survive reconnects.
type HeadConfig struct {
	ID           HeadID
	Name         string
	Make         string
	Model        string
	SerialNumber string

	Enabled      bool
	Mode         *ModeSpec
	Position     *Position
	Scale        *Scale
	Transform    *Transform
	AdaptiveSync *bool
}

func findHead(snap *Snapshot, cfg HeadConfig) (Head, bool) {
	var candidates []Head
	for _, head := range snap.Heads {
		if head.Matches(cfg.Name, cfg.Make, cfg.Model, cfg.SerialNumber) {
			candidates = append(candidates, head)
		}
	}
	if len(candidates) == 1 {
		return candidates[0], true
	}
	for _, head := range candidates {
		if cfg.ID != 0 && head.ID == cfg.ID {
			return head, true
		}
	}
	if len(candidates) > 0 {
		return candidates[0], true
	}
	return Head{}, false
}

// Diff computes the changes needed to bring the heads of snap to the desired
// configs. Heads not mentioned in configs are left alone; a config naming a
// head that does not exist is a validation error.
func Diff(snap *Snapshot, configs []HeadConfig) ([]HeadChange, error) {
	var changes []HeadChange
	index := make(map[HeadID]int)

	for _, cfg := range configs {
		head, ok := findHead(snap, cfg)
		if !ok {
			return nil, &ValidationError{Head: cfg.ID, Name: cfg.Name, Reason: "no such output"}
		}
		change, err := diffHead(head, cfg)
		if err != nil {
			return nil, err
		}
		if i, ok := index[head.ID]; ok {
			changes[i] = changes[i].merge(change)
			continue
		}
		if change.IsEmpty() {
			continue
		}
		index[head.ID] = len(changes)
		changes = append(changes, change)
	}
	return changes, nil
}

func diffHead(head Head, cfg HeadConfig) (HeadChange, error) {
	change := Change(head.ID)
	if !cfg.Enabled {
		if head.Enabled {
			change = change.WithEnabled(false)
		}
		return change, nil
	}
	if !head.Enabled {
		change = change.WithEnabled(true)
	}

	if spec := cfg.Mode; spec != nil {
		cur, ok := head.Current()
		same := ok && cur.Width == spec.Width && cur.Height == spec.Height &&
			(spec.Refresh == 0 || cur.Refresh == spec.Refresh)
		if !same {
			mode, found := head.Modes.Match(spec.Width, spec.Height, spec.Refresh, refreshTolerance)
			if !found {
				return change, invalid(head, "no mode %dx%d@%s", spec.Width, spec.Height, FormatRefresh(spec.Refresh))
			}
			if !ok || mode.ID != cur.ID {
				change = change.WithMode(mode.ID)
			}
		}
	}
	if pos := cfg.Position; pos != nil && (head.Position == nil || *head.Position != *pos) {
		change = change.WithPosition(pos.X, pos.Y)
	}
	if cfg.Scale != nil && !head.Scale.Equal(*cfg.Scale) {
		change = change.WithScale(*cfg.Scale)
	}
	if cfg.Transform != nil && head.Transform != *cfg.Transform {
		change = change.WithTransform(*cfg.Transform)
	}
	if cfg.AdaptiveSync != nil && head.AdaptiveSync != *cfg.AdaptiveSync {
		change = change.WithAdaptiveSync(*cfg.AdaptiveSync)
	}
	return change, nil
}

// ConfigOf describes the current state of a head as a HeadConfig.
func ConfigOf(head Head) HeadConfig {
	cfg := HeadConfig{
		ID:           head.ID,
		Name:         head.Name,
		Make:         head.Make,
		Model:        head.Model,
		SerialNumber: head.SerialNumber,
		Enabled:      head.Enabled,
	}
	if !head.Enabled {
		return cfg
	}
	if mode, ok := head.Current(); ok {
		cfg.Mode = &ModeSpec{Width: mode.Width, Height: mode.Height, Refresh: mode.Refresh}
	}
	if head.Position != nil {
		pos := *head.Position
		cfg.Position = &pos
	}
	scale, transform := head.Scale, head.Transform
	cfg.Scale = &scale
	cfg.Transform = &transform
	if head.AdaptiveSyncSupported {
		adaptive := head.AdaptiveSync
		cfg.AdaptiveSync = &adaptive
	}
	return cfg
}
