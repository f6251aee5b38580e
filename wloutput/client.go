// SPDX-FileCopyrightText: 2023 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package wloutput

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/xerrors"
)

type submission struct {
	tx       *Transaction
	changes  []HeadChange
	test     bool
	accepted chan error

	// set by the loop once the configuration was sent
	cfg       Configuration
	effective []HeadChange
}

type reconnect struct {
	session Session
	done    chan struct{}
}

// Client owns one compositor session. A single loop goroutine is the only
// user of the session: it folds events into the registry and runs at most one
// configuration at a time.
type Client struct {
	registry *Registry
	listener *Listener

	submitCh    chan *submission
	reconnectCh chan *reconnect
	quit        chan struct{}
	loopDone    chan struct{}
	closeOnce   sync.Once
	closeErr    error

	// owned by the loop
	session Session
	events  <-chan Event
	pending *submission
	// identity of the pending configuration, readable outside the loop
	pendingCfg atomic.Uint32

	mu          sync.Mutex
	ready       chan struct{}
	readyClosed bool
	lost        chan struct{}
	lostClosed  bool
	commit      chan struct{}
	subscribers map[chan *Snapshot]struct{}
}

// NewClient starts the event loop over session. The client takes ownership
// of the session and closes it on Close.
func NewClient(session Session) *Client {
	c := &Client{
		registry:    NewRegistry(),
		submitCh:    make(chan *submission),
		reconnectCh: make(chan *reconnect),
		quit:        make(chan struct{}),
		loopDone:    make(chan struct{}),
		session:     session,
		events:      session.Events(),
		ready:       make(chan struct{}),
		lost:        make(chan struct{}),
		commit:      make(chan struct{}),
		subscribers: make(map[chan *Snapshot]struct{}),
	}
	c.listener = NewListener(c.registry)
	go c.loop()
	return c
}

// Snapshot returns the current registry state without blocking.
func (c *Client) Snapshot() *Snapshot {
	return c.registry.Snapshot()
}

func (c *Client) Lookup(id HeadID) (Head, bool) {
	return c.registry.Lookup(id)
}

// Begin starts a transaction over the current snapshot.
func (c *Client) Begin() *Transaction {
	return newTransaction(c, c.registry.Snapshot())
}

// Ready waits for the first burst of the current session.
func (c *Client) Ready(ctx context.Context) error {
	c.mu.Lock()
	ready, lost := c.ready, c.lost
	c.mu.Unlock()
	return c.wait(ctx, ready, lost)
}

// Sync waits for the next burst committed after the call.
func (c *Client) Sync(ctx context.Context) error {
	c.mu.Lock()
	commit, lost := c.commit, c.lost
	c.mu.Unlock()
	return c.wait(ctx, commit, lost)
}

func (c *Client) wait(ctx context.Context, ch, lost <-chan struct{}) error {
	select {
	case <-lost:
		return ErrConnectionLost
	default:
	}
	select {
	case <-ch:
		return nil
	case <-lost:
		return ErrConnectionLost
	case <-c.loopDone:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe delivers every published snapshot until ctx is done or the
// client is closed. A slow reader only gets the latest one.
func (c *Client) Subscribe(ctx context.Context) <-chan *Snapshot {
	ch := make(chan *Snapshot, 1)

	c.mu.Lock()
	if snap := c.registry.Snapshot(); snap.Generation > 0 {
		ch <- snap
	}
	c.subscribers[ch] = struct{}{}
	c.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-c.loopDone:
		}
		c.mu.Lock()
		delete(c.subscribers, ch)
		close(ch)
		c.mu.Unlock()
	}()
	return ch
}

// Reconnect replaces the session, typically after ErrConnectionLost. The
// registry stays stale until the first burst of the new session.
func (c *Client) Reconnect(ctx context.Context, session Session) error {
	req := &reconnect{session: session, done: make(chan struct{})}
	select {
	case c.reconnectCh <- req:
	case <-c.loopDone:
		session.Close()
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	<-req.done
	return nil
}

// Close stops the loop, destroys an outstanding configuration and closes the
// session. A pending transaction resolves Failed with ErrClosed.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.quit)
		<-c.loopDone
	})
	return c.closeErr
}

func (c *Client) submit(ctx context.Context, sub *submission) error {
	select {
	case c.submitCh <- sub:
	case <-c.loopDone:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-sub.accepted:
		return err
	case <-c.loopDone:
		return ErrClosed
	}
}

func (c *Client) loop() {
	defer close(c.loopDone)

	for {
		select {
		case ev, ok := <-c.events:
			if !ok {
				c.connectionLost(ErrConnectionLost)
				continue
			}
			c.handleEvent(ev)

		case sub := <-c.submitCh:
			c.handleSubmission(sub)

		case req := <-c.reconnectCh:
			c.swapSession(req.session)
			close(req.done)

		case <-c.quit:
			c.resolvePending(failed(xerrors.Errorf("configuration abandoned: %w", ErrClosed)))
			if c.session != nil {
				c.closeErr = c.session.Close()
				c.session = nil
			}
			return
		}
	}
}

func (c *Client) handleEvent(ev Event) {
	switch ev := ev.(type) {
	case ConfigurationOutcome:
		c.handleOutcome(ev)
	case ManagerFinished:
		c.listener.Handle(ev)
		logger.Warning("output manager finished by compositor")
		c.connectionLost(xerrors.Errorf("manager finished: %w", ErrConnectionLost))
		if c.session != nil {
			if err := c.session.Close(); err != nil {
				logger.Debug("close session:", err)
			}
			c.session = nil
		}
	default:
		if snap := c.listener.Handle(ev); snap != nil {
			c.publish(snap, true)
		}
	}
}

func (c *Client) handleSubmission(sub *submission) {
	if c.session == nil || c.events == nil {
		sub.accepted <- nil
		sub.tx.resolve(failed(xerrors.Errorf("cannot submit: %w", ErrConnectionLost)))
		return
	}
	if c.pending != nil {
		logger.Debug("reject submission, configuration pending")
		sub.accepted <- ErrBusy
		return
	}
	sub.accepted <- nil

	// objects removed since Begin must not reach the compositor, it would
	// answer with a fatal protocol error instead of cancelling
	current := c.registry.Snapshot()
	for _, change := range sub.changes {
		head, ok := current.Lookup(change.Head)
		var err error
		switch {
		case !ok:
			err = xerrors.Errorf("head %d disappeared: %w", change.Head, ErrCancelled)
		case change.Mode != 0 && !head.Modes.Contains(change.Mode):
			err = xerrors.Errorf("mode %d of head %d disappeared: %w", change.Mode, change.Head, ErrCancelled)
		}
		if err != nil {
			sub.tx.resolve(&Result{State: StateCancelled, Err: err, Snapshot: current})
			return
		}
	}

	cfg, effective, err := c.send(current, sub.tx.Snapshot().Serial, sub)
	if err != nil {
		if cfg != nil {
			_ = cfg.Destroy()
		}
		sub.tx.resolve(failed(xerrors.Errorf("send configuration: %w", err)))
		return
	}
	sub.cfg = cfg
	sub.effective = effective
	c.pending = sub
	c.pendingCfg.Store(cfg.ID())
}

func (c *Client) pendingConfig() uint32 {
	return c.pendingCfg.Load()
}

// send opens a configuration for serial, the one the transaction was staged
// against, so the compositor cancels it when the layout moved on. Every head
// of current is configured, as the protocol requires.
func (c *Client) send(current *Snapshot, serial uint32, sub *submission) (Configuration, []HeadChange, error) {
	changes := make(map[HeadID]HeadChange, len(sub.changes))
	for _, change := range sub.changes {
		changes[change.Head] = change
	}

	cfg, err := c.session.CreateConfiguration(serial)
	if err != nil {
		return nil, nil, err
	}
	logger.Debugf("configuration %d for serial %d, test %v", cfg.ID(), serial, sub.test)

	var effective []HeadChange
	for _, head := range current.Heads {
		change, requested := changes[head.ID]
		if !requested {
			change = Change(head.ID)
		}
		enabled := head.Enabled
		if change.Enabled != nil {
			enabled = *change.Enabled
		}

		if !enabled {
			if err := cfg.DisableHead(head.ID); err != nil {
				return cfg, nil, err
			}
			if requested {
				effective = append(effective, change)
			}
			continue
		}

		ch, err := cfg.EnableHead(head.ID)
		if err != nil {
			return cfg, nil, err
		}
		if !head.Enabled && change.Mode == 0 && change.CustomMode == nil {
			if best, ok := head.Modes.Best(); ok {
				change.Mode = best.ID
			}
		}
		if err := configureHead(ch, change); err != nil {
			return cfg, nil, err
		}
		if requested || !change.IsEmpty() {
			effective = append(effective, change)
		}
	}

	if sub.test {
		err = cfg.Test()
	} else {
		err = cfg.Apply()
	}
	return cfg, effective, err
}

func configureHead(ch ConfigurationHead, change HeadChange) error {
	if change.Mode != 0 {
		if err := ch.SetMode(change.Mode); err != nil {
			return err
		}
	}
	if cm := change.CustomMode; cm != nil {
		if err := ch.SetCustomMode(cm.Width, cm.Height, cm.Refresh); err != nil {
			return err
		}
	}
	if change.Position != nil {
		if err := ch.SetPosition(change.Position.X, change.Position.Y); err != nil {
			return err
		}
	}
	if change.Transform != nil {
		if err := ch.SetTransform(*change.Transform); err != nil {
			return err
		}
	}
	if change.Scale != nil {
		if err := ch.SetScale(*change.Scale); err != nil {
			return err
		}
	}
	if change.AdaptiveSync != nil {
		if err := ch.SetAdaptiveSync(*change.AdaptiveSync); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) handleOutcome(ev ConfigurationOutcome) {
	sub := c.pending
	if sub == nil || sub.cfg.ID() != ev.Configuration {
		logger.Warning(violation("outcome for unknown configuration %d", ev.Configuration))
		return
	}
	c.pending = nil
	c.pendingCfg.Store(0)
	if err := sub.cfg.Destroy(); err != nil {
		logger.Debug("destroy configuration:", err)
	}

	result := &Result{State: ev.State, Tested: sub.test, Reason: ev.Reason}
	switch ev.State {
	case StateSucceeded:
		if sub.test {
			result.Snapshot = c.registry.Snapshot()
		} else {
			result.Snapshot = c.registry.Reconcile(sub.effective)
			c.publish(result.Snapshot, false)
		}
	case StateCancelled:
		result.Err = ErrCancelled
		result.Snapshot = c.registry.Snapshot()
	default:
		result.State = StateFailed
		result.Err = ErrFailed
		if ev.Reason != "" {
			result.Err = xerrors.Errorf("%s: %w", ev.Reason, ErrFailed)
		}
		result.Snapshot = c.registry.Snapshot()
	}
	sub.tx.resolve(result)
}

func (c *Client) resolvePending(result *Result) {
	sub := c.pending
	if sub == nil {
		return
	}
	c.pending = nil
	c.pendingCfg.Store(0)
	if c.events != nil && sub.cfg != nil {
		if err := sub.cfg.Destroy(); err != nil {
			logger.Debug("destroy configuration:", err)
		}
	}
	result.Tested = sub.test
	result.Snapshot = c.registry.Snapshot()
	sub.tx.resolve(result)
}

func (c *Client) connectionLost(err error) {
	c.events = nil
	c.listener.Discard()
	snap := c.registry.MarkStale()
	c.resolvePending(failed(err))

	c.mu.Lock()
	if !c.lostClosed {
		close(c.lost)
		c.lostClosed = true
	}
	c.mu.Unlock()
	c.publish(snap, false)
}

func (c *Client) swapSession(session Session) {
	if c.session != nil {
		c.resolvePending(failed(xerrors.Errorf("session replaced: %w", ErrConnectionLost)))
		if err := c.session.Close(); err != nil {
			logger.Debug("close session:", err)
		}
	}
	c.session = session
	c.events = session.Events()
	c.listener.Discard()
	c.registry.Reset()

	c.mu.Lock()
	c.ready = make(chan struct{})
	c.readyClosed = false
	c.lost = make(chan struct{})
	c.lostClosed = false
	c.mu.Unlock()
	logger.Info("reconnected to compositor")
}

func (c *Client) publish(snap *Snapshot, burst bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if burst {
		if !c.readyClosed {
			close(c.ready)
			c.readyClosed = true
		}
		close(c.commit)
		c.commit = make(chan struct{})
	}
	for ch := range c.subscribers {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}
