// SPDX-FileCopyrightText: 2023 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/linuxdeepin/dde-wloutput/wloutput"
	"github.com/stretchr/testify/suite"
)

// autoSession answers every configuration with a fixed outcome.
type autoSession struct {
	events chan wloutput.Event

	mu       sync.Mutex
	requests []string
	next     uint32
	reply    wloutput.State
}

func newAutoSession() *autoSession {
	return &autoSession{events: make(chan wloutput.Event, 64), next: 1, reply: wloutput.StateSucceeded}
}

func (s *autoSession) record(format string, args ...interface{}) {
	s.mu.Lock()
	s.requests = append(s.requests, fmt.Sprintf(format, args...))
	s.mu.Unlock()
}

func (s *autoSession) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

func (s *autoSession) Events() <-chan wloutput.Event { return s.events }

func (s *autoSession) CreateConfiguration(serial uint32) (wloutput.Configuration, error) {
	s.mu.Lock()
	id := s.next
	s.next++
	s.mu.Unlock()
	s.record("create_configuration %d", id)
	return &autoConfiguration{session: s, id: id}, nil
}

func (s *autoSession) Close() error {
	s.record("close")
	return nil
}

func (s *autoSession) announce() {
	for _, ev := range []wloutput.Event{
		wloutput.HeadAdded{Head: 10},
		wloutput.HeadName{Head: 10, Name: "DP-1"},
		wloutput.HeadModeAdded{Head: 10, Mode: 100},
		wloutput.ModeSize{Mode: 100, Width: 1920, Height: 1080},
		wloutput.ModeRefresh{Mode: 100, Refresh: 60000},
		wloutput.ModePreferred{Mode: 100},
		wloutput.HeadEnabled{Head: 10, Enabled: true},
		wloutput.HeadCurrentMode{Head: 10, Mode: 100},
		wloutput.HeadPosition{Head: 10},
		wloutput.HeadScale{Head: 10, Scale: wloutput.ScaleOne},

		wloutput.HeadAdded{Head: 20},
		wloutput.HeadName{Head: 20, Name: "HDMI-A-1"},
		wloutput.HeadModeAdded{Head: 20, Mode: 200},
		wloutput.ModeSize{Mode: 200, Width: 1280, Height: 1024},
		wloutput.ModeRefresh{Mode: 200, Refresh: 60000},
		wloutput.ModePreferred{Mode: 200},
		wloutput.HeadModeAdded{Head: 20, Mode: 201},
		wloutput.ModeSize{Mode: 201, Width: 1024, Height: 768},
		wloutput.ModeRefresh{Mode: 201, Refresh: 60000},
		wloutput.HeadEnabled{Head: 20, Enabled: false},
		wloutput.HeadScale{Head: 20, Scale: wloutput.ScaleOne},

		wloutput.ManagerDone{Serial: 1},
	} {
		s.events <- ev
	}
}

type autoConfiguration struct {
	session *autoSession
	id      uint32
}

func (c *autoConfiguration) ID() uint32 { return c.id }

func (c *autoConfiguration) EnableHead(head wloutput.HeadID) (wloutput.ConfigurationHead, error) {
	c.session.record("enable_head %d", head)
	return &autoConfigurationHead{session: c.session, head: head}, nil
}

func (c *autoConfiguration) DisableHead(head wloutput.HeadID) error {
	c.session.record("disable_head %d", head)
	return nil
}

func (c *autoConfiguration) finish(request string) error {
	c.session.record("%s %d", request, c.id)
	c.session.events <- wloutput.ConfigurationOutcome{Configuration: c.id, State: c.session.reply}
	return nil
}

func (c *autoConfiguration) Apply() error { return c.finish("apply") }
func (c *autoConfiguration) Test() error  { return c.finish("test") }

func (c *autoConfiguration) Destroy() error {
	c.session.record("destroy %d", c.id)
	return nil
}

type autoConfigurationHead struct {
	session *autoSession
	head    wloutput.HeadID
}

func (h *autoConfigurationHead) SetMode(mode wloutput.ModeID) error {
	h.session.record("%d set_mode %d", h.head, mode)
	return nil
}

func (h *autoConfigurationHead) SetCustomMode(width, height, refresh int32) error {
	h.session.record("%d set_custom_mode %dx%d@%d", h.head, width, height, refresh)
	return nil
}

func (h *autoConfigurationHead) SetPosition(x, y int32) error {
	h.session.record("%d set_position %d,%d", h.head, x, y)
	return nil
}

func (h *autoConfigurationHead) SetTransform(transform wloutput.Transform) error {
	h.session.record("%d set_transform %s", h.head, transform)
	return nil
}

func (h *autoConfigurationHead) SetScale(scale wloutput.Scale) error {
	h.session.record("%d set_scale %s", h.head, scale)
	return nil
}

func (h *autoConfigurationHead) SetAdaptiveSync(enabled bool) error {
	h.session.record("%d set_adaptive_sync %v", h.head, enabled)
	return nil
}

type ManagerTestSuite struct {
	suite.Suite
	session *autoSession
	client  *wloutput.Client
	m       *Manager
}

func (s *ManagerTestSuite) SetupTest() {
	s.session = newAutoSession()
	s.session.announce()
	s.client = wloutput.NewClient(s.session)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Require().NoError(s.client.Ready(ctx))
	s.m = NewManager(nil, s.client, Options{})
}

func (s *ManagerTestSuite) TearDownTest() {
	s.client.Close()
}

func (s *ManagerTestSuite) TestList() {
	text, busErr := s.m.List()
	s.Nil(busErr)
	s.Contains(text, `output "DP-1" id=10 enabled=#true {`)
	s.Contains(text, `output "HDMI-A-1" id=20 enabled=#false {`)

	data, busErr := s.m.ListJSON()
	s.Nil(busErr)
	var infos []wloutput.OutputInfo
	s.Require().NoError(json.Unmarshal([]byte(data), &infos))
	s.Require().Len(infos, 2)
	s.Equal("DP-1", infos[0].Name)
	s.Equal("1.0", infos[0].Scale)
	s.Len(infos[1].Modes, 2)
}

func (s *ManagerTestSuite) TestApply() {
	busErr := s.m.Apply(`output "HDMI-A-1" { mode 1024 768 60000; position 1920 0 }`)
	s.Require().Nil(busErr)
	s.Equal([]string{
		"create_configuration 1",
		"enable_head 10",
		"enable_head 20",
		"20 set_mode 201",
		"20 set_position 1920,0",
		"apply 1",
		"destroy 1",
	}, s.session.Requests())

	head, ok := s.client.Snapshot().ByName("HDMI-A-1")
	s.Require().True(ok)
	s.True(head.Enabled)
	s.Equal(wloutput.ModeID(201), head.CurrentMode)
	s.Equal(&wloutput.Position{X: 1920, Y: 0}, head.Position)
}

func (s *ManagerTestSuite) TestApplyNothing() {
	s.Nil(s.m.Apply(`output "DP-1" { mode 1920 1080 }`))
	s.Empty(s.session.Requests())
}

func (s *ManagerTestSuite) TestApplyInvalid() {
	s.NotNil(s.m.Apply(`output "DP-1" {`))
	s.NotNil(s.m.Apply(`output "VGA-1" { mode 1920 1080 }`))
	s.NotNil(s.m.Apply(`output "DP-1" { mode 800 600 }`))
	s.Empty(s.session.Requests())
}

func (s *ManagerTestSuite) TestTest() {
	busErr := s.m.Test(`output "DP-1" enabled=#false`)
	s.Require().Nil(busErr)
	s.Equal([]string{"create_configuration 1", "disable_head 10", "disable_head 20", "test 1", "destroy 1"},
		s.session.Requests())
	head, _ := s.client.Snapshot().ByName("DP-1")
	s.True(head.Enabled)
}

func (s *ManagerTestSuite) TestFailed() {
	s.session.reply = wloutput.StateFailed
	s.NotNil(s.m.Apply(`output "DP-1" enabled=#false`))
	head, _ := s.client.Snapshot().ByName("DP-1")
	s.True(head.Enabled)
}

func (s *ManagerTestSuite) TestSetEnabled() {
	s.NotNil(s.m.SetEnabled("VGA-1", true))
	s.Nil(s.m.SetEnabled("DP-1", true))
	s.Empty(s.session.Requests())

	s.Require().Nil(s.m.SetEnabled("HDMI-A-1", true))
	s.Equal([]string{
		"create_configuration 1",
		"enable_head 10",
		"enable_head 20",
		"20 set_mode 200",
		"apply 1",
		"destroy 1",
	}, s.session.Requests())
}

func (s *ManagerTestSuite) TestSetEnabledAutoAlign() {
	s.m.opts.AutoAlign = true
	s.Require().Nil(s.m.SetEnabled("HDMI-A-1", true))
	// the new output lands above DP-1, the layout is moved back to the origin
	s.Equal([]string{
		"create_configuration 1",
		"enable_head 10",
		"10 set_position 0,1024",
		"enable_head 20",
		"20 set_mode 200",
		"20 set_position 0,0",
		"apply 1",
		"destroy 1",
	}, s.session.Requests())
}

func (s *ManagerTestSuite) TestSwitchMode() {
	s.NotNil(s.m.SwitchMode("custom", ""))

	s.Require().Nil(s.m.SwitchMode("only-one", "HDMI-A-1"))
	s.Equal([]string{
		"create_configuration 1",
		"disable_head 10",
		"enable_head 20",
		"20 set_mode 200",
		"20 set_position 0,0",
		"apply 1",
		"destroy 1",
	}, s.session.Requests())
}

func (s *ManagerTestSuite) TestRunReconnects() {
	reconnected := make(chan struct{})
	s.m.opts.Reconnect = func(ctx context.Context) error {
		session := newAutoSession()
		session.announce()
		if err := s.client.Reconnect(ctx, session); err != nil {
			return err
		}
		err := s.client.Ready(ctx)
		close(reconnected)
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.m.Run(ctx)
		close(done)
	}()

	close(s.session.events)
	select {
	case <-reconnected:
	case <-time.After(5 * time.Second):
		s.FailNow("no reconnect")
	}
	snap := s.client.Snapshot()
	s.False(snap.Stale)
	s.Len(snap.Heads, 2)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		s.FailNow("Run did not return")
	}
}

func TestManagerTestSuite(t *testing.T) {
	suite.Run(t, new(ManagerTestSuite))
}
