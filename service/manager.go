// SPDX-FileCopyrightText: 2023 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/linuxdeepin/dde-wloutput/layout"
	"github.com/linuxdeepin/dde-wloutput/wloutput"
	"github.com/linuxdeepin/dde-wloutput/wloutput/kdl"
	"github.com/linuxdeepin/go-lib/dbusutil"
	"golang.org/x/xerrors"
)

const (
	dbusServiceName = "org.deepin.dde.WLOutput1"
	dbusPath        = "/org/deepin/dde/WLOutput1"
	dbusInterface   = dbusServiceName

	// callTimeout bounds how long a method call waits for the compositor.
	callTimeout = 30 * time.Second

	minReconnectDelay = time.Second
	maxReconnectDelay = 30 * time.Second
)

type Options struct {
	// AutoAlign keeps the layout gap-free after SetEnabled.
	AutoAlign bool
	// Reconnect dials the compositor again after the connection was lost.
	// Without it a lost connection is final.
	Reconnect func(ctx context.Context) error
}

// Manager exports a client on the session bus.
type Manager struct {
	service *dbusutil.Service
	client  *wloutput.Client
	opts    Options

	// serialises method calls, the client runs one configuration at a time
	mu sync.Mutex

	signals *struct {
		Changed struct {
			layout string
		}
	}

	methods *struct {
		List       func() `out:"layout"`
		ListJSON   func() `out:"json"`
		Apply      func() `in:"layout"`
		Test       func() `in:"layout"`
		SetEnabled func() `in:"name,enabled"`
		SwitchMode func() `in:"mode,name"`
	}
}

func NewManager(service *dbusutil.Service, client *wloutput.Client, opts Options) *Manager {
	return &Manager{
		service: service,
		client:  client,
		opts:    opts,
	}
}

// Start exports a manager for client on the session bus. The caller runs
// Manager.Run to emit Changed.
func Start(client *wloutput.Client, opts Options) (*dbusutil.Service, *Manager, error) {
	service, err := dbusutil.NewSessionService()
	if err != nil {
		return nil, nil, err
	}
	m := NewManager(service, client, opts)
	err = service.Export(dbusPath, m)
	if err != nil {
		return nil, nil, err
	}
	err = service.RequestName(dbusServiceName)
	if err != nil {
		return nil, nil, err
	}
	return service, m, nil
}

func (m *Manager) GetInterfaceName() string {
	return dbusInterface
}

// Run emits Changed for every snapshot the client publishes and reconnects
// when the connection is lost. It returns when ctx is done or the client is
// closed.
func (m *Manager) Run(ctx context.Context) {
	for snap := range m.client.Subscribe(ctx) {
		if !snap.Stale {
			m.emitSignalChanged(kdl.Encode(snap))
			continue
		}
		if m.opts.Reconnect == nil {
			logger.Warning("compositor connection lost")
			continue
		}
		m.reconnect(ctx)
	}
}

func (m *Manager) reconnect(ctx context.Context) {
	delay := minReconnectDelay
	for {
		err := m.opts.Reconnect(ctx)
		if err == nil || xerrors.Is(err, wloutput.ErrClosed) {
			return
		}
		logger.Warningf("reconnect failed, retry in %v: %v", delay, err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

func (m *Manager) emitSignalChanged(text string) {
	if m.service == nil {
		return
	}
	err := m.service.Emit(m, "Changed", text)
	if err != nil {
		logger.Warning(err)
	}
}

func (m *Manager) list() string {
	return kdl.Encode(m.client.Snapshot())
}

func (m *Manager) listJSON() (string, error) {
	data, err := json.Marshal(m.client.Snapshot().Infos())
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// submit applies or tests changes and turns the outcome into an error.
func (m *Manager) submit(tx *wloutput.Transaction, test bool) error {
	if len(tx.Changes()) == 0 {
		logger.Debug("nothing to change")
		return nil
	}
	logger.Debug("submit:", spew.Sdump(tx.Changes()))

	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	var res *wloutput.Result
	var err error
	if test {
		res, err = tx.Test(ctx)
	} else {
		res, err = tx.Apply(ctx)
	}
	if err != nil {
		return err
	}
	return res.Err
}

func (m *Manager) applyLayout(text string, test bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	configs, err := kdl.Decode(text)
	if err != nil {
		return err
	}
	tx := m.client.Begin()
	err = tx.AddConfigs(configs)
	if err != nil {
		return err
	}
	return m.submit(tx, test)
}

func (m *Manager) setEnabled(name string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := m.client.Begin()
	snap := tx.Snapshot()
	head, ok := snap.ByName(name)
	if !ok {
		return &wloutput.ValidationError{Name: name, Reason: "no such output"}
	}
	if head.Enabled == enabled {
		return nil
	}
	changes := []wloutput.HeadChange{wloutput.Change(head.ID).WithEnabled(enabled)}
	if enabled && m.opts.AutoAlign {
		changes = layout.AutoAlign(snap, changes, head.ID)
	}
	err := tx.AddAll(changes...)
	if err != nil {
		return err
	}
	return m.submit(tx, false)
}

func (m *Manager) switchMode(mode, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := m.client.Begin()
	changes, err := layout.Switch(tx.Snapshot(), mode, name)
	if err != nil {
		return xerrors.Errorf("switch mode %s: %w", mode, err)
	}
	err = tx.AddAll(changes...)
	if err != nil {
		return err
	}
	return m.submit(tx, false)
}
