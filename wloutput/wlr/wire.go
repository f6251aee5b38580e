// SPDX-FileCopyrightText: 2023 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package wlr

import (
	"encoding/binary"
	"io"

	"golang.org/x/xerrors"
)

const (
	headerSize = 8
	// largest message libwayland accepts
	maxMessageSize = 4096
)

var order = binary.NativeEndian

// Fixed is a signed 24.8 fixed point wire value.
type Fixed int32

type message struct {
	sender uint32
	opcode uint16
	body   []byte
}

func pad4(n int) int {
	return (n + 3) &^ 3
}

// marshal encodes one request. Arguments are int32, uint32, Fixed, string or
// a Proxy, which is sent as its object id.
func marshal(sender uint32, opcode uint16, args ...interface{}) ([]byte, error) {
	buf := make([]byte, headerSize, 64)
	for _, arg := range args {
		switch v := arg.(type) {
		case int32:
			buf = order.AppendUint32(buf, uint32(v))
		case uint32:
			buf = order.AppendUint32(buf, v)
		case Fixed:
			buf = order.AppendUint32(buf, uint32(v))
		case Proxy:
			buf = order.AppendUint32(buf, v.ID())
		case string:
			n := len(v) + 1
			buf = order.AppendUint32(buf, uint32(n))
			buf = append(buf, v...)
			for i := len(v); i < pad4(n); i++ {
				buf = append(buf, 0)
			}
		default:
			return nil, xerrors.Errorf("unsupported argument type %T", arg)
		}
	}
	if len(buf) > maxMessageSize {
		return nil, xerrors.Errorf("message of %d bytes too large", len(buf))
	}
	order.PutUint32(buf[0:4], sender)
	order.PutUint32(buf[4:8], uint32(len(buf))<<16|uint32(opcode))
	return buf, nil
}

// readMessage reads one framed message. The returned body is only valid until
// the next call with the same buffer.
func readMessage(r io.Reader, buf []byte) (message, error) {
	if _, err := io.ReadFull(r, buf[:headerSize]); err != nil {
		return message{}, err
	}
	sender := order.Uint32(buf[0:4])
	sizeOpcode := order.Uint32(buf[4:8])
	size := int(sizeOpcode >> 16)
	if size < headerSize || size%4 != 0 || size > len(buf) {
		return message{}, xerrors.Errorf("invalid message size %d from object %d", size, sender)
	}
	body := buf[headerSize:size]
	if _, err := io.ReadFull(r, body); err != nil {
		return message{}, err
	}
	return message{sender: sender, opcode: uint16(sizeOpcode), body: body}, nil
}
