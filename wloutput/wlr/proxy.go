// SPDX-FileCopyrightText: 2023 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package wlr

import (
	"net"
	"sync"

	"golang.org/x/xerrors"
)

const (
	displayID = 1
	// ids below this are allocated by the client
	firstServerID = 0xff000000
)

// Proxy is the client side of one protocol object.
type Proxy interface {
	ID() uint32
	SetID(id uint32)
	Context() *Context
	SetContext(ctx *Context)
	Dispatch(ev *Event)
}

// BaseProxy carries the identity of a protocol object. Object types embed it
// and implement Dispatch.
type BaseProxy struct {
	id  uint32
	ctx *Context
}

func (p *BaseProxy) ID() uint32 {
	return p.id
}

func (p *BaseProxy) SetID(id uint32) {
	p.id = id
}

func (p *BaseProxy) Context() *Context {
	return p.ctx
}

func (p *BaseProxy) SetContext(ctx *Context) {
	p.ctx = ctx
}

func (p *BaseProxy) Dispatch(ev *Event) {}

// Event is one message addressed to a proxy. Arguments are read in order;
// the first decoding error sticks.
type Event struct {
	Opcode uint16
	data   []byte
	off    int
	err    error
}

func (e *Event) Uint32() uint32 {
	if e.err != nil {
		return 0
	}
	if e.off+4 > len(e.data) {
		e.err = xerrors.New("message truncated")
		return 0
	}
	v := order.Uint32(e.data[e.off:])
	e.off += 4
	return v
}

func (e *Event) Int32() int32 {
	return int32(e.Uint32())
}

func (e *Event) Fixed() Fixed {
	return Fixed(e.Uint32())
}

func (e *Event) String() string {
	n := int(e.Uint32())
	if e.err != nil || n == 0 {
		return ""
	}
	if e.off+pad4(n) > len(e.data) {
		e.err = xerrors.Errorf("string of %d bytes truncated", n)
		return ""
	}
	s := e.data[e.off : e.off+n-1]
	e.off += pad4(n)
	return string(s)
}

func (e *Event) ok() bool {
	return e.Err() == nil
}

func (e *Event) unknown() {
	if e.err == nil {
		e.err = xerrors.Errorf("unknown opcode %d", e.Opcode)
	}
}

// Err reports a decoding failure or unread arguments.
func (e *Event) Err() error {
	if e.err != nil {
		return e.err
	}
	if e.off != len(e.data) {
		return xerrors.Errorf("%d trailing bytes", len(e.data)-e.off)
	}
	return nil
}

// Context is the object table of one connection. Requests are written
// through it and events are routed to the proxy they address.
type Context struct {
	conn    net.Conn
	display *Display

	writeMu sync.Mutex

	mu      sync.Mutex
	objects map[uint32]Proxy
	free    []uint32
	nextID  uint32
}

func newContext(conn net.Conn) *Context {
	c := &Context{
		conn:    conn,
		objects: make(map[uint32]Proxy),
		nextID:  displayID,
	}
	c.display = &Display{}
	c.Register(c.display)
	return c
}

// Display returns the wl_display object of the connection.
func (c *Context) Display() *Display {
	return c.display
}

// Register adds p to the table. A proxy without an id is a client created
// object and gets the lowest free id.
func (c *Context) Register(p Proxy) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p.ID() == 0 {
		var id uint32
		if n := len(c.free); n > 0 {
			id = c.free[n-1]
			c.free = c.free[:n-1]
		} else {
			id = c.nextID
			c.nextID++
		}
		p.SetID(id)
	}
	p.SetContext(c)
	c.objects[p.ID()] = p
}

// Unregister drops p from event routing. Client ids return to the pool only
// once the compositor confirms with delete_id.
func (c *Context) Unregister(p Proxy) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := p.ID()
	if c.objects[id] != p {
		return
	}
	if id >= firstServerID {
		delete(c.objects, id)
	} else {
		c.objects[id] = nil
	}
}

func (c *Context) lookup(id uint32) (Proxy, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := c.objects[id]
	return p, p != nil
}

func (c *Context) deleteID(id uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.objects[id]; !ok || id >= firstServerID {
		return
	}
	delete(c.objects, id)
	c.free = append(c.free, id)
}

// SendRequest writes one request from p. Proxy arguments go out as their
// object id.
func (c *Context) SendRequest(p Proxy, opcode uint16, args ...interface{}) error {
	buf, err := marshal(p.ID(), opcode, args...)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err = c.conn.Write(buf)
	return err
}

// dispatch routes msg to its proxy. Only a compositor error ends the
// connection; malformed events are logged and dropped.
func (c *Context) dispatch(msg message) error {
	p, ok := c.lookup(msg.sender)
	if !ok {
		logger.Debugf("event %d for unknown object %d", msg.opcode, msg.sender)
		return nil
	}
	ev := &Event{Opcode: msg.opcode, data: msg.body}
	p.Dispatch(ev)
	if err := c.display.err; err != nil {
		return err
	}
	if err := ev.Err(); err != nil {
		logger.Warningf("%T@%d event %d: %v", p, msg.sender, msg.opcode, err)
	}
	return nil
}
