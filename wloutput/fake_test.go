// SPDX-FileCopyrightText: 2023 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package wloutput

import (
	"fmt"
	"sync"
)

// fakeSession records every request and lets the test drive the event
// stream.
type fakeSession struct {
	events chan Event

	mu       sync.Mutex
	requests []string
	nextCfg  uint32
	closed   bool
	failSend error
}

func newFakeSession() *fakeSession {
	return &fakeSession{events: make(chan Event, 256), nextCfg: 1}
}

func (s *fakeSession) record(format string, args ...interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSend != nil {
		return s.failSend
	}
	s.requests = append(s.requests, fmt.Sprintf(format, args...))
	return nil
}

func (s *fakeSession) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

func (s *fakeSession) Events() <-chan Event { return s.events }

func (s *fakeSession) CreateConfiguration(serial uint32) (Configuration, error) {
	s.mu.Lock()
	id := s.nextCfg
	s.nextCfg++
	s.mu.Unlock()
	if err := s.record("create_configuration %d serial=%d", id, serial); err != nil {
		return nil, err
	}
	return &fakeConfiguration{session: s, id: id}, nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.requests = append(s.requests, "close")
	return nil
}

func (s *fakeSession) send(events ...Event) {
	for _, ev := range events {
		s.events <- ev
	}
}

// disconnect simulates a lost connection.
func (s *fakeSession) disconnect() {
	close(s.events)
}

type fakeConfiguration struct {
	session *fakeSession
	id      uint32
}

func (c *fakeConfiguration) ID() uint32 { return c.id }

func (c *fakeConfiguration) EnableHead(head HeadID) (ConfigurationHead, error) {
	if err := c.session.record("enable_head %d", head); err != nil {
		return nil, err
	}
	return &fakeConfigurationHead{session: c.session, head: head}, nil
}

func (c *fakeConfiguration) DisableHead(head HeadID) error {
	return c.session.record("disable_head %d", head)
}

func (c *fakeConfiguration) Apply() error   { return c.session.record("apply %d", c.id) }
func (c *fakeConfiguration) Test() error    { return c.session.record("test %d", c.id) }
func (c *fakeConfiguration) Destroy() error { return c.session.record("destroy %d", c.id) }

type fakeConfigurationHead struct {
	session *fakeSession
	head    HeadID
}

func (h *fakeConfigurationHead) SetMode(mode ModeID) error {
	return h.session.record("%d set_mode %d", h.head, mode)
}

func (h *fakeConfigurationHead) SetCustomMode(width, height, refresh int32) error {
	return h.session.record("%d set_custom_mode %dx%d@%d", h.head, width, height, refresh)
}

func (h *fakeConfigurationHead) SetPosition(x, y int32) error {
	return h.session.record("%d set_position %d,%d", h.head, x, y)
}

func (h *fakeConfigurationHead) SetTransform(transform Transform) error {
	return h.session.record("%d set_transform %s", h.head, transform)
}

func (h *fakeConfigurationHead) SetScale(scale Scale) error {
	return h.session.record("%d set_scale %s", h.head, scale)
}

func (h *fakeConfigurationHead) SetAdaptiveSync(enabled bool) error {
	return h.session.record("%d set_adaptive_sync %v", h.head, enabled)
}
