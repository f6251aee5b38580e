// SPDX-FileCopyrightText: 2023 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package wlr

import (
	"fmt"
)

// wl_display
const (
	displaySync        = 0
	displayGetRegistry = 1

	displayEventError    = 0
	displayEventDeleteID = 1
)

// wl_registry
const (
	registryBind = 0

	registryEventGlobal       = 0
	registryEventGlobalRemove = 1
)

// DisplayError is a fatal protocol error reported by the compositor.
type DisplayError struct {
	Object  uint32
	Code    uint32
	Message string
}

func (e *DisplayError) Error() string {
	return fmt.Sprintf("compositor error %d on object %d: %s", e.Code, e.Object, e.Message)
}

// Display is the wl_display singleton.
type Display struct {
	BaseProxy
	err error
}

func (d *Display) GetRegistry() (*Registry, error) {
	registry := &Registry{}
	d.Context().Register(registry)
	return registry, d.Context().SendRequest(d, displayGetRegistry, registry)
}

// Sync returns a callback that is done once the compositor has handled every
// earlier request.
func (d *Display) Sync() (*Callback, error) {
	cb := &Callback{}
	d.Context().Register(cb)
	return cb, d.Context().SendRequest(d, displaySync, cb)
}

func (d *Display) Dispatch(ev *Event) {
	switch ev.Opcode {
	case displayEventError:
		e := &DisplayError{Object: ev.Uint32(), Code: ev.Uint32(), Message: ev.String()}
		logger.Warning(e)
		d.err = e
	case displayEventDeleteID:
		if id := ev.Uint32(); ev.ok() {
			d.Context().deleteID(id)
		}
	default:
		ev.unknown()
	}
}

type RegistryGlobalHandler interface {
	HandleRegistryGlobal(name uint32, iface string, version uint32)
}

type Registry struct {
	BaseProxy
	handler RegistryGlobalHandler
}

func (r *Registry) SetGlobalHandler(h RegistryGlobalHandler) {
	r.handler = h
}

// Bind creates p as an instance of the global name.
func (r *Registry) Bind(name uint32, iface string, version uint32, p Proxy) error {
	r.Context().Register(p)
	return r.Context().SendRequest(r, registryBind, name, iface, version, p)
}

func (r *Registry) Dispatch(ev *Event) {
	switch ev.Opcode {
	case registryEventGlobal:
		name, iface, version := ev.Uint32(), ev.String(), ev.Uint32()
		if ev.ok() && r.handler != nil {
			r.handler.HandleRegistryGlobal(name, iface, version)
		}
	case registryEventGlobalRemove:
		logger.Debug("global removed:", ev.Uint32())
	default:
		ev.unknown()
	}
}

// Callback is a wl_callback, done after its single event.
type Callback struct {
	BaseProxy
	done bool
}

func (cb *Callback) Done() bool {
	return cb.done
}

func (cb *Callback) Dispatch(ev *Event) {
	if ev.Opcode != 0 {
		ev.unknown()
		return
	}
	ev.Uint32()
	cb.done = true
	cb.Context().Unregister(cb)
}
