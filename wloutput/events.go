// SPDX-FileCopyrightText: 2023 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package wloutput

// Event is one decoded notification from the compositor. The set of events is
// closed; sessions translate wire messages into these values.
type Event interface {
	isEvent()
}

type HeadAdded struct{ Head HeadID }

type HeadName struct {
	Head HeadID
	Name string
}

type HeadDescription struct {
	Head        HeadID
	Description string
}

type HeadMake struct {
	Head HeadID
	Make string
}

type HeadModel struct {
	Head  HeadID
	Model string
}

type HeadSerialNumber struct {
	Head         HeadID
	SerialNumber string
}

type HeadPhysicalSize struct {
	Head          HeadID
	Width, Height int32
}

// HeadModeAdded announces that Mode now belongs to Head.
type HeadModeAdded struct {
	Head HeadID
	Mode ModeID
}

type HeadEnabled struct {
	Head    HeadID
	Enabled bool
}

type HeadCurrentMode struct {
	Head HeadID
	Mode ModeID
}

type HeadPosition struct {
	Head HeadID
	X, Y int32
}

type HeadTransform struct {
	Head      HeadID
	Transform Transform
}

type HeadScale struct {
	Head  HeadID
	Scale Scale
}

type HeadAdaptiveSync struct {
	Head    HeadID
	Enabled bool
}

type HeadRemoved struct{ Head HeadID }

type ModeSize struct {
	Mode          ModeID
	Width, Height int32
}

type ModeRefresh struct {
	Mode    ModeID
	Refresh int32
}

type ModePreferred struct{ Mode ModeID }

type ModeRemoved struct{ Mode ModeID }

// ManagerDone closes a burst.
type ManagerDone struct{ Serial uint32 }

// ManagerFinished means the compositor no longer sends events on this
// manager. It is treated like a lost connection.
type ManagerFinished struct{}

// ConfigurationOutcome resolves the configuration with the given identity.
type ConfigurationOutcome struct {
	Configuration uint32
	State         State
	Reason        string
}

func (HeadAdded) isEvent()            {}
func (HeadName) isEvent()             {}
func (HeadDescription) isEvent()      {}
func (HeadMake) isEvent()             {}
func (HeadModel) isEvent()            {}
func (HeadSerialNumber) isEvent()     {}
func (HeadPhysicalSize) isEvent()     {}
func (HeadModeAdded) isEvent()        {}
func (HeadEnabled) isEvent()          {}
func (HeadCurrentMode) isEvent()      {}
func (HeadPosition) isEvent()         {}
func (HeadTransform) isEvent()        {}
func (HeadScale) isEvent()            {}
func (HeadAdaptiveSync) isEvent()     {}
func (HeadRemoved) isEvent()          {}
func (ModeSize) isEvent()             {}
func (ModeRefresh) isEvent()          {}
func (ModePreferred) isEvent()        {}
func (ModeRemoved) isEvent()          {}
func (ManagerDone) isEvent()          {}
func (ManagerFinished) isEvent()      {}
func (ConfigurationOutcome) isEvent() {}
