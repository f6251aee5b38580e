// SPDX-FileCopyrightText: 2023 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"github.com/godbus/dbus/v5"
	"github.com/linuxdeepin/go-lib/dbusutil"
)

func (m *Manager) List() (string, *dbus.Error) {
	return m.list(), nil
}

func (m *Manager) ListJSON() (string, *dbus.Error) {
	data, err := m.listJSON()
	return data, dbusutil.ToError(err)
}

func (m *Manager) Apply(layout string) *dbus.Error {
	err := m.applyLayout(layout, false)
	return dbusutil.ToError(err)
}

func (m *Manager) Test(layout string) *dbus.Error {
	err := m.applyLayout(layout, true)
	return dbusutil.ToError(err)
}

func (m *Manager) SetEnabled(name string, enabled bool) *dbus.Error {
	err := m.setEnabled(name, enabled)
	return dbusutil.ToError(err)
}

func (m *Manager) SwitchMode(mode string, name string) *dbus.Error {
	err := m.switchMode(mode, name)
	return dbusutil.ToError(err)
}
