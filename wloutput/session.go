// SPDX-FileCopyrightText: 2023 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package wloutput

// Session is one bound output manager on a compositor connection. Events
// delivers decoded notifications in compositor order and is closed when the
// connection is lost. Requests are only issued from the client loop.
type Session interface {
	Events() <-chan Event
	CreateConfiguration(serial uint32) (Configuration, error)
	Close() error
}

// Configuration is an open configuration context. Its outcome arrives as a
// ConfigurationOutcome event carrying ID.
type Configuration interface {
	ID() uint32
	EnableHead(head HeadID) (ConfigurationHead, error)
	DisableHead(head HeadID) error
	Apply() error
	Test() error
	Destroy() error
}

type ConfigurationHead interface {
	SetMode(mode ModeID) error
	SetCustomMode(width, height, refresh int32) error
	SetPosition(x, y int32) error
	SetTransform(transform Transform) error
	SetScale(scale Scale) error
	SetAdaptiveSync(enabled bool) error
}
