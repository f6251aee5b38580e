// SPDX-FileCopyrightText: 2023 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package wloutput

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type ClientTestSuite struct {
	suite.Suite
	session *fakeSession
	client  *Client
	ctx     context.Context
	cancel  context.CancelFunc
}

func (s *ClientTestSuite) SetupTest() {
	s.ctx, s.cancel = context.WithTimeout(context.Background(), 5*time.Second)
	s.session = newFakeSession()
	s.client = NewClient(s.session)

	// A is enabled at 1920x1080@60, B is disabled
	events := headBurst(10, "A", true,
		Mode{ID: 100, Width: 1920, Height: 1080, Refresh: 60000},
		Mode{ID: 101, Width: 1280, Height: 720, Refresh: 60000})
	events = append(events, headBurst(20, "B", false,
		Mode{ID: 200, Width: 1280, Height: 1024, Refresh: 75000},
		Mode{ID: 201, Width: 1024, Height: 768, Refresh: 60000})...)
	events = append(events, HeadAdaptiveSync{Head: 10, Enabled: false})
	s.session.send(append(events, ManagerDone{Serial: 1})...)
	s.Require().NoError(s.client.Ready(s.ctx))
}

func (s *ClientTestSuite) TearDownTest() {
	s.client.Close()
	s.cancel()
}

type applyResult struct {
	result *Result
	err    error
}

func (s *ClientTestSuite) applyAsync(tx *Transaction) <-chan applyResult {
	ch := make(chan applyResult, 1)
	go func() {
		result, err := tx.Apply(s.ctx)
		ch <- applyResult{result, err}
	}()
	s.Require().Eventually(func() bool {
		return tx.State() == StatePending && s.client.pendingConfig() != 0
	}, time.Second, time.Millisecond)
	return ch
}

func (s *ClientTestSuite) TestDisableAEnableB() {
	tx := s.client.Begin()
	s.Require().NoError(tx.Disable(10))
	s.Require().NoError(tx.Enable(20))
	s.Require().NoError(tx.SetMode(20, 200))
	s.Require().NoError(tx.SetPosition(20, 1920, 0))

	done := s.applyAsync(tx)
	s.Equal([]string{
		"create_configuration 1 serial=1",
		"disable_head 10",
		"enable_head 20",
		"20 set_mode 200",
		"20 set_position 1920,0",
		"apply 1",
	}, s.session.Requests())

	s.session.send(ConfigurationOutcome{Configuration: 1, State: StateSucceeded})
	res := <-done
	s.Require().NoError(res.err)
	s.Equal(StateSucceeded, res.result.State)
	s.NoError(res.result.Err)
	s.Equal(StateSucceeded, tx.State())

	snap := s.client.Snapshot()
	a, _ := snap.Lookup(10)
	s.False(a.Enabled)
	s.Zero(a.CurrentMode)
	s.Nil(a.Position)
	b, _ := snap.Lookup(20)
	s.True(b.Enabled)
	s.Equal(ModeID(200), b.CurrentMode)
	s.Equal(&Position{X: 1920, Y: 0}, b.Position)
	s.Equal(snap, res.result.Snapshot)
	s.Contains(s.session.Requests(), "destroy 1")

	_, err := tx.Apply(s.ctx)
	s.ErrorIs(err, ErrNotBuilding)
}

func (s *ClientTestSuite) TestValidationNeverReachesCompositor() {
	tx := s.client.Begin()

	var verr *ValidationError
	s.True(errors.As(tx.SetMode(10, 200), &verr), "mode of another head")
	s.True(errors.As(tx.SetMode(42, 100), &verr), "unknown head")
	s.True(errors.As(tx.SetPosition(20, 0, 0), &verr), "attributes on disabled head")
	s.True(errors.As(tx.Add(Change(10).WithEnabled(false).WithMode(100)), &verr))
	s.True(errors.As(tx.Add(Change(10).WithMode(100).WithCustomMode(800, 600, 0)), &verr))
	s.True(errors.As(tx.SetCustomMode(10, 0, 600, 0), &verr))
	s.True(errors.As(tx.SetAdaptiveSync(20, true), &verr))
	s.True(errors.As(tx.SetTransform(10, Transform(9)), &verr))

	s.Require().NoError(tx.SetMode(10, 101))
	s.True(errors.As(tx.Disable(10), &verr), "disable merged with a mode change")

	// a rejected batch stages nothing
	s.True(errors.As(tx.AddAll(Change(10).WithPosition(5, 5), Change(42)), &verr))
	s.Equal([]HeadChange{Change(10).WithMode(101)}, tx.Changes())

	s.Equal(StateBuilding, tx.State())
	s.Empty(s.session.Requests())
}

func (s *ClientTestSuite) TestBusy() {
	first := s.client.Begin()
	s.Require().NoError(first.SetMode(10, 101))
	done := s.applyAsync(first)
	sent := len(s.session.Requests())

	second := s.client.Begin()
	s.Require().NoError(second.SetPosition(10, 100, 0))
	_, err := second.Apply(s.ctx)
	s.ErrorIs(err, ErrBusy)
	s.Equal(StateBuilding, second.State())
	s.Len(s.session.Requests(), sent)

	s.session.send(ConfigurationOutcome{Configuration: 1, State: StateSucceeded})
	s.Require().NoError((<-done).err)

	// the second one may go now
	done = s.applyAsync(second)
	s.session.send(ConfigurationOutcome{Configuration: 2, State: StateSucceeded})
	res := <-done
	s.Require().NoError(res.err)
	s.Equal(StateSucceeded, res.result.State)
}

func (s *ClientTestSuite) TestCancelledAndFailedLeaveRegistry() {
	before := s.client.Snapshot()

	tx := s.client.Begin()
	s.Require().NoError(tx.SetMode(10, 101))
	done := s.applyAsync(tx)
	s.session.send(ConfigurationOutcome{Configuration: 1, State: StateCancelled})
	res := <-done
	s.Require().NoError(res.err)
	s.Equal(StateCancelled, res.result.State)
	s.ErrorIs(res.result.Err, ErrCancelled)
	s.Equal(before.Generation, s.client.Snapshot().Generation)

	tx = s.client.Begin()
	s.Require().NoError(tx.SetMode(10, 101))
	done = s.applyAsync(tx)
	s.session.send(ConfigurationOutcome{Configuration: 2, State: StateFailed, Reason: "mode not supported"})
	res = <-done
	s.Equal(StateFailed, res.result.State)
	s.ErrorIs(res.result.Err, ErrFailed)
	s.Equal("mode not supported", res.result.Reason)
	s.Equal(before.Generation, s.client.Snapshot().Generation)
	head, _ := s.client.Lookup(10)
	s.Equal(ModeID(100), head.CurrentMode)
}

func (s *ClientTestSuite) TestTestDoesNotReconcile() {
	before := s.client.Snapshot()
	tx := s.client.Begin()
	s.Require().NoError(tx.SetScale(10, mustScale(s.T(), "1.5")))

	ch := make(chan applyResult, 1)
	go func() {
		result, err := tx.Test(s.ctx)
		ch <- applyResult{result, err}
	}()
	s.Require().Eventually(func() bool { return s.client.pendingConfig() != 0 }, time.Second, time.Millisecond)
	s.Contains(s.session.Requests(), "test 1")
	s.Contains(s.session.Requests(), "10 set_scale 1.5")

	s.session.send(ConfigurationOutcome{Configuration: 1, State: StateSucceeded})
	res := <-ch
	s.Require().NoError(res.err)
	s.True(res.result.Tested)
	s.Equal(StateSucceeded, res.result.State)
	s.Equal(before.Generation, s.client.Snapshot().Generation)
}

func (s *ClientTestSuite) TestNewlyEnabledGetsPreferredMode() {
	tx := s.client.Begin()
	s.Require().NoError(tx.Enable(20))
	done := s.applyAsync(tx)
	s.Contains(s.session.Requests(), "20 set_mode 200")
	s.session.send(ConfigurationOutcome{Configuration: 1, State: StateSucceeded})
	res := <-done
	b, _ := res.result.Snapshot.Lookup(20)
	s.Equal(ModeID(200), b.CurrentMode)
}

func (s *ClientTestSuite) TestConnectionLost() {
	tx := s.client.Begin()
	s.Require().NoError(tx.SetMode(10, 101))
	done := s.applyAsync(tx)

	s.session.disconnect()
	res := <-done
	s.Require().NoError(res.err)
	s.Equal(StateFailed, res.result.State)
	s.ErrorIs(res.result.Err, ErrConnectionLost)
	s.True(s.client.Snapshot().Stale)
	s.ErrorIs(s.client.Ready(s.ctx), ErrConnectionLost)

	// later submissions fail fast
	res2, err := s.client.Begin().Apply(s.ctx)
	s.Require().NoError(err)
	s.ErrorIs(res2.Err, ErrConnectionLost)

	fresh := newFakeSession()
	s.Require().NoError(s.client.Reconnect(s.ctx, fresh))
	s.True(s.client.Snapshot().Stale)
	fresh.send(append(headBurst(7, "A", true, Mode{ID: 70, Width: 1920, Height: 1080}), ManagerDone{Serial: 1})...)
	s.Require().NoError(s.client.Ready(s.ctx))

	snap := s.client.Snapshot()
	s.False(snap.Stale)
	s.Require().Len(snap.Heads, 1)
	s.Equal(HeadID(7), snap.Heads[0].ID)
}

func (s *ClientTestSuite) TestCloseResolvesPending() {
	tx := s.client.Begin()
	s.Require().NoError(tx.SetMode(10, 101))
	done := s.applyAsync(tx)

	s.NoError(s.client.Close())
	res := <-done
	s.Equal(StateFailed, res.result.State)
	s.ErrorIs(res.result.Err, ErrClosed)
	s.Contains(s.session.Requests(), "destroy 1")
	s.Contains(s.session.Requests(), "close")

	_, err := s.client.Begin().Apply(s.ctx)
	s.ErrorIs(err, ErrClosed)
}

func (s *ClientTestSuite) TestSubscribeAndSync() {
	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	sub := s.client.Subscribe(ctx)
	first := <-sub
	s.Equal(uint32(1), first.Serial)

	synced := make(chan error, 1)
	go func() { synced <- s.client.Sync(s.ctx) }()
	serial := uint32(2)
	s.Require().Eventually(func() bool {
		s.session.send(HeadName{Head: 10, Name: "A2"}, ManagerDone{Serial: serial})
		serial++
		select {
		case err := <-synced:
			s.NoError(err)
			return true
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)

	var snap *Snapshot
	s.Require().Eventually(func() bool {
		select {
		case snap = <-sub:
		default:
		}
		return snap != nil && snap.Serial >= 2
	}, time.Second, time.Millisecond)
	head, _ := snap.Lookup(10)
	s.Equal("A2", head.Name)

	cancel()
	s.Eventually(func() bool {
		_, ok := <-sub
		return !ok
	}, time.Second, time.Millisecond)
}

func (s *ClientTestSuite) waitSerial(serial uint32) {
	s.Require().Eventually(func() bool {
		return s.client.Snapshot().Serial == serial
	}, time.Second, time.Millisecond)
}

func (s *ClientTestSuite) TestRemovedModeCancels() {
	tx := s.client.Begin()
	s.Require().NoError(tx.SetMode(10, 101))
	s.session.send(ModeRemoved{Mode: 101}, ManagerDone{Serial: 2})
	s.waitSerial(2)

	res, err := tx.Apply(s.ctx)
	s.Require().NoError(err)
	s.Equal(StateCancelled, res.State)
	s.ErrorIs(res.Err, ErrCancelled)
	s.Equal(StateCancelled, tx.State())
	s.Empty(s.session.Requests())

	head, _ := s.client.Snapshot().Lookup(10)
	s.False(head.Modes.Contains(101))
}

func (s *ClientTestSuite) TestStagedSerialIsSent() {
	tx := s.client.Begin()
	s.Require().NoError(tx.SetPosition(10, 100, 0))
	s.session.send(HeadName{Head: 10, Name: "A2"}, ManagerDone{Serial: 2})
	s.waitSerial(2)

	s.applyAsync(tx)
	s.Equal("create_configuration 1 serial=1", s.session.Requests()[0])
}

func (s *ClientTestSuite) TestCtxCancelOnlyStopsWait() {
	tx := s.client.Begin()
	s.Require().NoError(tx.SetMode(10, 101))
	ctx, cancel := context.WithCancel(s.ctx)

	ch := make(chan applyResult, 1)
	go func() {
		result, err := tx.Apply(ctx)
		ch <- applyResult{result, err}
	}()
	s.Require().Eventually(func() bool { return s.client.pendingConfig() != 0 }, time.Second, time.Millisecond)
	cancel()
	res := <-ch
	s.ErrorIs(res.err, context.Canceled)
	s.Equal(StatePending, tx.State())

	s.session.send(ConfigurationOutcome{Configuration: 1, State: StateSucceeded})
	result, err := tx.Wait(s.ctx)
	s.Require().NoError(err)
	s.Equal(StateSucceeded, result.State)
}

func TestClientTestSuite(t *testing.T) {
	suite.Run(t, new(ClientTestSuite))
}
