// SPDX-FileCopyrightText: 2023 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package wlr

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/linuxdeepin/dde-wloutput/wloutput"
	"golang.org/x/xerrors"
)

const (
	// highest protocol version this client speaks
	maxVersion = 4

	closeTimeout = time.Second
)

type Options struct {
	// Display is a socket name or path; empty uses the environment.
	Display string
	// MaxVersion caps the bound manager version, 0 means no cap.
	MaxVersion uint32
}

// Session is a compositor connection with a bound output manager. It
// implements wloutput.Session.
type Session struct {
	conn    net.Conn
	ctx     *Context
	manager *OutputManager

	events    chan wloutput.Event
	done      chan struct{}
	closeOnce sync.Once
	errMu     sync.Mutex
	err       error
}

// Dial connects to the compositor and binds the output manager.
func Dial(ctx context.Context, opts Options) (*Session, error) {
	conn, err := dial(ctx, opts.Display)
	if err != nil {
		return nil, err
	}
	s, err := NewSession(ctx, conn, opts)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// NewSession runs the registry handshake over conn and starts reading
// events. The session owns conn from now on.
func NewSession(ctx context.Context, conn net.Conn, opts Options) (*Session, error) {
	s := &Session{
		conn:   conn,
		ctx:    newContext(conn),
		events: make(chan wloutput.Event, 64),
		done:   make(chan struct{}),
	}

	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	err := s.handshake(opts)
	if !stop() {
		return nil, xerrors.Errorf("connect to compositor: %w", ctx.Err())
	}
	if err != nil {
		return nil, err
	}

	go s.readLoop()
	return s, nil
}

type managerGlobal struct {
	found   bool
	name    uint32
	version uint32
}

func (g *managerGlobal) HandleRegistryGlobal(name uint32, iface string, version uint32) {
	if iface == managerInterface {
		g.found, g.name, g.version = true, name, version
	}
}

func (s *Session) handshake(opts Options) error {
	display := s.ctx.Display()
	registry, err := display.GetRegistry()
	if err != nil {
		return xerrors.Errorf("get registry: %w", err)
	}
	var global managerGlobal
	registry.SetGlobalHandler(&global)
	cb, err := display.Sync()
	if err != nil {
		return xerrors.Errorf("sync: %w", err)
	}

	buf := make([]byte, maxMessageSize)
	for !cb.Done() {
		msg, err := readMessage(s.conn, buf)
		if err != nil {
			return xerrors.Errorf("read registry: %w", err)
		}
		if err := s.ctx.dispatch(msg); err != nil {
			return err
		}
	}
	registry.SetGlobalHandler(nil)

	if !global.found {
		return wloutput.ErrUnsupported
	}
	version := global.version
	if version > maxVersion {
		version = maxVersion
	}
	if opts.MaxVersion != 0 && version > opts.MaxVersion {
		version = opts.MaxVersion
	}
	if version < 1 {
		return xerrors.Errorf("%s version %d: %w", managerInterface, version, wloutput.ErrUnsupported)
	}

	s.manager = NewOutputManager(version, &translator{events: s.events, done: s.done})
	err = registry.Bind(global.name, managerInterface, version, s.manager)
	if err != nil {
		return xerrors.Errorf("bind %s: %w", managerInterface, err)
	}
	logger.Infof("bound %s version %d", managerInterface, version)
	return nil
}

// Version returns the negotiated manager version.
func (s *Session) Version() uint32 {
	return s.manager.Version()
}

func (s *Session) Events() <-chan wloutput.Event {
	return s.events
}

// Err returns the error that ended the session, if any.
func (s *Session) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *Session) setErr(err error) {
	s.errMu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.errMu.Unlock()
}

func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if _, ok := s.ctx.lookup(s.manager.ID()); ok {
			_ = s.conn.SetWriteDeadline(time.Now().Add(closeTimeout))
			if e := s.manager.Stop(); e != nil {
				logger.Debug("stop manager:", e)
			}
		}
		close(s.done)
		err = s.conn.Close()
	})
	return err
}

func (s *Session) readLoop() {
	defer close(s.events)

	buf := make([]byte, maxMessageSize)
	for {
		msg, err := readMessage(s.conn, buf)
		if err != nil {
			select {
			case <-s.done:
			default:
				logger.Warning("read compositor events:", err)
				s.setErr(xerrors.Errorf("%v: %w", err, wloutput.ErrConnectionLost))
			}
			return
		}
		if err := s.ctx.dispatch(msg); err != nil {
			s.setErr(err)
			s.conn.Close()
			return
		}
	}
}

func (s *Session) CreateConfiguration(serial uint32) (wloutput.Configuration, error) {
	cfg, err := s.manager.CreateConfiguration(serial)
	if err != nil {
		return nil, err
	}
	return &configuration{session: s, cfg: cfg}, nil
}

// head and mode resolve ids of the engine snapshot to live objects. An object
// finished since the snapshot cannot be named in a request any more.
func (s *Session) head(id wloutput.HeadID) (*OutputHead, error) {
	p, _ := s.ctx.lookup(uint32(id))
	head, ok := p.(*OutputHead)
	if !ok {
		return nil, xerrors.Errorf("head %d is gone: %w", id, wloutput.ErrCancelled)
	}
	return head, nil
}

func (s *Session) mode(id wloutput.ModeID) (*OutputMode, error) {
	p, _ := s.ctx.lookup(uint32(id))
	mode, ok := p.(*OutputMode)
	if !ok {
		return nil, xerrors.Errorf("mode %d is gone: %w", id, wloutput.ErrCancelled)
	}
	return mode, nil
}

// translator turns protocol events into engine events.
type translator struct {
	events chan<- wloutput.Event
	done   <-chan struct{}
}

func (t *translator) emit(ev wloutput.Event) {
	select {
	case t.events <- ev:
	case <-t.done:
	}
}

func headID(h *OutputHead) wloutput.HeadID {
	return wloutput.HeadID(h.ID())
}

func (t *translator) HandleHead(head *OutputHead) {
	t.emit(wloutput.HeadAdded{Head: headID(head)})
}

func (t *translator) HandleDone(serial uint32) {
	t.emit(wloutput.ManagerDone{Serial: serial})
}

func (t *translator) HandleFinished() {
	t.emit(wloutput.ManagerFinished{})
}

func (t *translator) HandleHeadName(h *OutputHead, name string) {
	t.emit(wloutput.HeadName{Head: headID(h), Name: name})
}

func (t *translator) HandleHeadDescription(h *OutputHead, description string) {
	t.emit(wloutput.HeadDescription{Head: headID(h), Description: description})
}

func (t *translator) HandleHeadPhysicalSize(h *OutputHead, width, height int32) {
	t.emit(wloutput.HeadPhysicalSize{Head: headID(h), Width: width, Height: height})
}

func (t *translator) HandleHeadMode(h *OutputHead, mode *OutputMode) {
	t.emit(wloutput.HeadModeAdded{Head: headID(h), Mode: wloutput.ModeID(mode.ID())})
}

func (t *translator) HandleHeadEnabled(h *OutputHead, enabled int32) {
	t.emit(wloutput.HeadEnabled{Head: headID(h), Enabled: enabled != 0})
}

func (t *translator) HandleHeadCurrentMode(h *OutputHead, mode uint32) {
	t.emit(wloutput.HeadCurrentMode{Head: headID(h), Mode: wloutput.ModeID(mode)})
}

func (t *translator) HandleHeadPosition(h *OutputHead, x, y int32) {
	t.emit(wloutput.HeadPosition{Head: headID(h), X: x, Y: y})
}

func (t *translator) HandleHeadTransform(h *OutputHead, transform int32) {
	t.emit(wloutput.HeadTransform{Head: headID(h), Transform: wloutput.Transform(transform)})
}

func (t *translator) HandleHeadScale(h *OutputHead, scale Fixed) {
	t.emit(wloutput.HeadScale{Head: headID(h), Scale: wloutput.ScaleFromFixed(int32(scale))})
}

func (t *translator) HandleHeadMake(h *OutputHead, manufacturer string) {
	t.emit(wloutput.HeadMake{Head: headID(h), Make: manufacturer})
}

func (t *translator) HandleHeadModel(h *OutputHead, model string) {
	t.emit(wloutput.HeadModel{Head: headID(h), Model: model})
}

func (t *translator) HandleHeadSerialNumber(h *OutputHead, serial string) {
	t.emit(wloutput.HeadSerialNumber{Head: headID(h), SerialNumber: serial})
}

func (t *translator) HandleHeadAdaptiveSync(h *OutputHead, state uint32) {
	t.emit(wloutput.HeadAdaptiveSync{Head: headID(h), Enabled: state == adaptiveSyncStateEnabled})
}

func (t *translator) HandleHeadFinished(h *OutputHead) {
	if err := h.Release(); err != nil {
		logger.Debug("release head:", err)
	}
	t.emit(wloutput.HeadRemoved{Head: headID(h)})
}

func (t *translator) HandleModeSize(m *OutputMode, width, height int32) {
	t.emit(wloutput.ModeSize{Mode: wloutput.ModeID(m.ID()), Width: width, Height: height})
}

func (t *translator) HandleModeRefresh(m *OutputMode, refresh int32) {
	t.emit(wloutput.ModeRefresh{Mode: wloutput.ModeID(m.ID()), Refresh: refresh})
}

func (t *translator) HandleModePreferred(m *OutputMode) {
	t.emit(wloutput.ModePreferred{Mode: wloutput.ModeID(m.ID())})
}

func (t *translator) HandleModeFinished(m *OutputMode) {
	if err := m.Release(); err != nil {
		logger.Debug("release mode:", err)
	}
	t.emit(wloutput.ModeRemoved{Mode: wloutput.ModeID(m.ID())})
}

func (t *translator) outcome(cfg *OutputConfiguration, state wloutput.State) {
	t.emit(wloutput.ConfigurationOutcome{Configuration: cfg.ID(), State: state})
}

func (t *translator) HandleConfigurationSucceeded(cfg *OutputConfiguration) {
	t.outcome(cfg, wloutput.StateSucceeded)
}

func (t *translator) HandleConfigurationFailed(cfg *OutputConfiguration) {
	t.outcome(cfg, wloutput.StateFailed)
}

func (t *translator) HandleConfigurationCancelled(cfg *OutputConfiguration) {
	t.outcome(cfg, wloutput.StateCancelled)
}

// configuration adapts OutputConfiguration to wloutput.Configuration.
type configuration struct {
	session *Session
	cfg     *OutputConfiguration
}

func (c *configuration) ID() uint32 {
	return c.cfg.ID()
}

func (c *configuration) EnableHead(id wloutput.HeadID) (wloutput.ConfigurationHead, error) {
	head, err := c.session.head(id)
	if err != nil {
		return nil, err
	}
	ch, err := c.cfg.EnableHead(head)
	if err != nil {
		return nil, err
	}
	return &configurationHead{session: c.session, ch: ch}, nil
}

func (c *configuration) DisableHead(id wloutput.HeadID) error {
	head, err := c.session.head(id)
	if err != nil {
		return err
	}
	return c.cfg.DisableHead(head)
}

func (c *configuration) Apply() error {
	return c.cfg.Apply()
}

func (c *configuration) Test() error {
	return c.cfg.Test()
}

func (c *configuration) Destroy() error {
	return c.cfg.Destroy()
}

type configurationHead struct {
	session *Session
	ch      *OutputConfigurationHead
}

func (h *configurationHead) SetMode(id wloutput.ModeID) error {
	mode, err := h.session.mode(id)
	if err != nil {
		return err
	}
	return h.ch.SetMode(mode)
}

func (h *configurationHead) SetCustomMode(width, height, refresh int32) error {
	return h.ch.SetCustomMode(width, height, refresh)
}

func (h *configurationHead) SetPosition(x, y int32) error {
	return h.ch.SetPosition(x, y)
}

func (h *configurationHead) SetTransform(transform wloutput.Transform) error {
	return h.ch.SetTransform(int32(transform))
}

func (h *configurationHead) SetScale(scale wloutput.Scale) error {
	return h.ch.SetScale(Fixed(scale.Fixed()))
}

func (h *configurationHead) SetAdaptiveSync(enabled bool) error {
	if v := h.session.Version(); v < 4 {
		return xerrors.Errorf("set adaptive sync needs version 4, bound %d: %w", v, wloutput.ErrUnsupported)
	}
	var state uint32
	if enabled {
		state = adaptiveSyncStateEnabled
	}
	return h.ch.SetAdaptiveSync(state)
}
