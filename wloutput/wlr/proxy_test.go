// SPDX-FileCopyrightText: 2023 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package wlr

import (
	"testing"

	"github.com/linuxdeepin/dde-wloutput/wloutput"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextObjectIDs(t *testing.T) {
	c := newContext(nil)
	assert.Equal(t, uint32(displayID), c.Display().ID())

	a, b := &Callback{}, &Callback{}
	c.Register(a)
	c.Register(b)
	assert.Equal(t, uint32(2), a.ID())
	assert.Equal(t, uint32(3), b.ID())
	assert.Same(t, c, a.Context())

	// an unregistered id stays taken until the compositor deletes it
	c.Unregister(a)
	_, ok := c.lookup(a.ID())
	assert.False(t, ok)
	next := &Callback{}
	c.Register(next)
	assert.Equal(t, uint32(4), next.ID())

	c.deleteID(a.ID())
	reused := &Callback{}
	c.Register(reused)
	assert.Equal(t, uint32(2), reused.ID())

	head := &OutputHead{}
	head.SetID(firstServerID + 7)
	c.Register(head)
	p, ok := c.lookup(firstServerID + 7)
	require.True(t, ok)
	assert.Same(t, head, p)
	c.deleteID(head.ID())
	_, ok = c.lookup(head.ID())
	assert.True(t, ok, "server ids are not deleted by the client")
	c.Unregister(head)
	_, ok = c.lookup(head.ID())
	assert.False(t, ok)
}

func newTestManager(t *testing.T, c *Context) (*OutputManager, chan wloutput.Event) {
	events := make(chan wloutput.Event, 16)
	done := make(chan struct{})
	t.Cleanup(func() { close(done) })
	m := NewOutputManager(2, &translator{events: events, done: done})
	c.Register(m)
	return m, events
}

func dispatchEvent(t *testing.T, c *Context, sender uint32, opcode uint16, args ...interface{}) error {
	t.Helper()
	buf, err := marshal(sender, opcode, args...)
	require.NoError(t, err)
	return c.dispatch(message{sender: sender, opcode: opcode, body: buf[headerSize:]})
}

func TestContextDispatch(t *testing.T) {
	c := newContext(nil)
	m, events := newTestManager(t, c)

	require.NoError(t, dispatchEvent(t, c, m.ID(), managerEventHead, uint32(headDP)))
	assert.Equal(t, wloutput.HeadAdded{Head: headDP}, <-events)
	require.NoError(t, dispatchEvent(t, c, headDP, headEventMode, uint32(modeBig)))
	assert.Equal(t, wloutput.HeadModeAdded{Head: headDP, Mode: modeBig}, <-events)
	require.NoError(t, dispatchEvent(t, c, modeBig, modeEventSize, int32(1920), int32(1080)))
	assert.Equal(t, wloutput.ModeSize{Mode: modeBig, Width: 1920, Height: 1080}, <-events)

	// malformed events are dropped, the connection goes on
	require.NoError(t, dispatchEvent(t, c, modeBig, modeEventSize, int32(1920)))
	require.NoError(t, dispatchEvent(t, c, headDP, 99))
	require.NoError(t, dispatchEvent(t, c, 12345, 0, uint32(1)))
	assert.Empty(t, events)

	// version 2 has no release request, the mode is only forgotten
	require.NoError(t, dispatchEvent(t, c, modeBig, modeEventFinished))
	assert.Equal(t, wloutput.ModeRemoved{Mode: modeBig}, <-events)
	_, ok := c.lookup(modeBig)
	assert.False(t, ok)

	err := dispatchEvent(t, c, displayID, displayEventError, uint32(headDP), uint32(2), "bad head")
	var derr *DisplayError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, uint32(headDP), derr.Object)
	assert.Equal(t, uint32(2), derr.Code)
}
