// SPDX-FileCopyrightText: 2023 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package wlr

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalRoundTrip(t *testing.T) {
	obj := &BaseProxy{id: 9}
	buf, err := marshal(7, 3, int32(-5), uint32(42), Fixed(320), "abc", "wxyz", "", obj)
	require.NoError(t, err)
	require.Zero(t, len(buf)%4)

	msg, err := readMessage(bytes.NewReader(buf), make([]byte, maxMessageSize))
	require.NoError(t, err)
	assert.Equal(t, uint32(7), msg.sender)
	assert.Equal(t, uint16(3), msg.opcode)

	ev := &Event{Opcode: msg.opcode, data: msg.body}
	assert.Equal(t, int32(-5), ev.Int32())
	assert.Equal(t, uint32(42), ev.Uint32())
	assert.Equal(t, Fixed(320), ev.Fixed())
	assert.Equal(t, "abc", ev.String())
	assert.Equal(t, "wxyz", ev.String())
	assert.Equal(t, "", ev.String())
	assert.Equal(t, uint32(9), ev.Uint32())
	assert.NoError(t, ev.Err())
}

func TestMarshalStringPadding(t *testing.T) {
	tests := []struct {
		s    string
		size int
	}{
		{"", 8 + 4 + 4},
		{"abc", 8 + 4 + 4},
		{"abcd", 8 + 4 + 8},
		{"abcdefg", 8 + 4 + 8},
	}
	for _, tt := range tests {
		buf, err := marshal(1, 0, tt.s)
		require.NoError(t, err)
		assert.Len(t, buf, tt.size, tt.s)
		assert.Equal(t, uint32(len(tt.s)+1), order.Uint32(buf[8:]))
	}
}

func TestEventErrors(t *testing.T) {
	ev := &Event{data: []byte{1, 0}}
	ev.Uint32()
	assert.Error(t, ev.Err())

	buf, err := marshal(1, 0, uint32(1), uint32(2))
	require.NoError(t, err)
	ev = &Event{data: buf[headerSize:]}
	ev.Uint32()
	assert.Error(t, ev.Err(), "trailing bytes")

	// string length running past the body
	ev = &Event{data: order.AppendUint32(nil, 100)}
	assert.Equal(t, "", ev.String())
	assert.Error(t, ev.Err())

	ev = &Event{Opcode: 42}
	ev.unknown()
	assert.Error(t, ev.Err())

	_, err = marshal(1, 0, 3.5)
	assert.Error(t, err)
}

func TestReadMessageInvalidSize(t *testing.T) {
	header := order.AppendUint32(nil, 1)
	header = order.AppendUint32(header, 4<<16)
	_, err := readMessage(bytes.NewReader(header), make([]byte, maxMessageSize))
	assert.Error(t, err)

	header = order.AppendUint32(nil, 1)
	header = order.AppendUint32(header, 10<<16)
	_, err = readMessage(bytes.NewReader(header), make([]byte, maxMessageSize))
	assert.Error(t, err, "misaligned")
}

func TestSocketPath(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")
	t.Setenv("WAYLAND_DISPLAY", "")

	path, err := socketPath("")
	require.NoError(t, err)
	assert.Equal(t, "/run/user/1000/wayland-0", path)

	t.Setenv("WAYLAND_DISPLAY", "wayland-1")
	path, err = socketPath("")
	require.NoError(t, err)
	assert.Equal(t, "/run/user/1000/wayland-1", path)

	path, err = socketPath("/tmp/wl.sock")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/wl.sock", path)

	t.Setenv("XDG_RUNTIME_DIR", "")
	_, err = socketPath("wayland-2")
	assert.Error(t, err)
}
