// SPDX-FileCopyrightText: 2023 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package wloutput

// ModeInfo and OutputInfo are the structured listing of a snapshot, used for
// JSON and YAML output.
type ModeInfo struct {
	Id        uint32  `json:"id" yaml:"id"`
	Width     int32   `json:"width" yaml:"width"`
	Height    int32   `json:"height" yaml:"height"`
	Refresh   int32   `json:"refresh" yaml:"refresh"`
	RefreshHz float64 `json:"refresh_hz" yaml:"refresh_hz"`
	Preferred bool    `json:"preferred" yaml:"preferred"`
	Current   bool    `json:"current" yaml:"current"`
}

type OutputInfo struct {
	Id             uint32     `json:"id" yaml:"id"`
	Name           string     `json:"name" yaml:"name"`
	Description    string     `json:"description,omitempty" yaml:"description,omitempty"`
	Make           string     `json:"make,omitempty" yaml:"make,omitempty"`
	Model          string     `json:"model,omitempty" yaml:"model,omitempty"`
	SerialNumber   string     `json:"serial_number,omitempty" yaml:"serial_number,omitempty"`
	PhysicalWidth  int32      `json:"physical_width" yaml:"physical_width"`
	PhysicalHeight int32      `json:"physical_height" yaml:"physical_height"`
	Enabled        bool       `json:"enabled" yaml:"enabled"`
	X              *int32     `json:"x,omitempty" yaml:"x,omitempty"`
	Y              *int32     `json:"y,omitempty" yaml:"y,omitempty"`
	Scale          string     `json:"scale" yaml:"scale"`
	Transform      Transform  `json:"transform" yaml:"transform"`
	AdaptiveSync   *bool      `json:"adaptive_sync,omitempty" yaml:"adaptive_sync,omitempty"`
	Modes          []ModeInfo `json:"modes" yaml:"modes"`
}

func InfoOf(head Head) OutputInfo {
	info := OutputInfo{
		Id:             uint32(head.ID),
		Name:           head.Name,
		Description:    head.Description,
		Make:           head.Make,
		Model:          head.Model,
		SerialNumber:   head.SerialNumber,
		PhysicalWidth:  head.PhysicalWidth,
		PhysicalHeight: head.PhysicalHeight,
		Enabled:        head.Enabled,
		Scale:          head.Scale.String(),
		Transform:      head.Transform,
		Modes:          make([]ModeInfo, 0, len(head.Modes)),
	}
	if head.Position != nil {
		x, y := head.Position.X, head.Position.Y
		info.X, info.Y = &x, &y
	}
	if head.AdaptiveSyncSupported {
		adaptive := head.AdaptiveSync
		info.AdaptiveSync = &adaptive
	}
	for _, mode := range head.Modes {
		info.Modes = append(info.Modes, ModeInfo{
			Id:        uint32(mode.ID),
			Width:     mode.Width,
			Height:    mode.Height,
			Refresh:   mode.Refresh,
			RefreshHz: float64(mode.Refresh) / 1000,
			Preferred: mode.Preferred,
			Current:   mode.ID == head.CurrentMode,
		})
	}
	return info
}

func (s *Snapshot) Infos() []OutputInfo {
	if s == nil {
		return nil
	}
	infos := make([]OutputInfo, 0, len(s.Heads))
	for _, head := range s.Heads {
		infos = append(infos, InfoOf(head))
	}
	return infos
}
