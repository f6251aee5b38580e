// SPDX-FileCopyrightText: 2023 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package wloutput

import (
	"sync"
	"sync/atomic"

	"github.com/davecgh/go-spew/spew"
)

// Snapshot is an immutable copy of the registry. Callers may keep it as long
// as they like; later commits never touch it.
type Snapshot struct {
	Heads []Head
	// Serial of the last done event folded into this snapshot.
	Serial uint32
	// Generation increases with every published snapshot.
	Generation uint64
	// Stale is set once the connection the state was read from is gone.
	Stale bool
}

func (s *Snapshot) Lookup(id HeadID) (Head, bool) {
	if s == nil {
		return Head{}, false
	}
	for _, head := range s.Heads {
		if head.ID == id {
			return head, true
		}
	}
	return Head{}, false
}

func (s *Snapshot) ByName(name string) (Head, bool) {
	if s == nil {
		return Head{}, false
	}
	for _, head := range s.Heads {
		if head.Name == name {
			return head, true
		}
	}
	return Head{}, false
}

// Enabled returns the enabled heads in enumeration order.
func (s *Snapshot) Enabled() []Head {
	if s == nil {
		return nil
	}
	var result []Head
	for _, head := range s.Heads {
		if head.Enabled {
			result = append(result, head)
		}
	}
	return result
}

func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	c := *s
	c.Heads = make([]Head, len(s.Heads))
	for i, head := range s.Heads {
		c.Heads[i] = head.Clone()
	}
	return &c
}

// Registry holds the known heads. It has two writers, committed bursts and
// reconciled transactions, both driven from the client loop. Readers only
// ever see whole snapshots.
type Registry struct {
	mu       sync.Mutex
	heads    map[HeadID]*Head
	order    []HeadID
	modeHead map[ModeID]HeadID
	serial   uint32
	gen      uint64
	reset    bool

	current atomic.Pointer[Snapshot]
}

func NewRegistry() *Registry {
	r := &Registry{
		heads:    make(map[HeadID]*Head),
		modeHead: make(map[ModeID]HeadID),
	}
	r.current.Store(&Snapshot{})
	return r
}

// Snapshot returns the last published snapshot. It never blocks.
func (r *Registry) Snapshot() *Snapshot {
	return r.current.Load()
}

func (r *Registry) Lookup(id HeadID) (Head, bool) {
	return r.Snapshot().Lookup(id)
}

// ApplyBatch folds the events of one burst and publishes the result. Deltas
// that reference unknown heads or modes are logged and dropped; the rest of
// the batch is still applied.
func (r *Registry) ApplyBatch(serial uint32, events []Event) *Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.reset {
		r.heads = make(map[HeadID]*Head)
		r.modeHead = make(map[ModeID]HeadID)
		r.order = nil
		r.reset = false
	}

	for _, ev := range events {
		if err := r.fold(ev); err != nil {
			logger.Warning(err)
		}
	}
	r.normalize()
	r.serial = serial
	snap := r.publish(false)
	logger.Debugf("commit burst serial %d generation %d, %d heads", serial, snap.Generation, len(snap.Heads))
	return snap
}

func (r *Registry) head(id HeadID) (*Head, *ProtocolViolation) {
	head, ok := r.heads[id]
	if !ok {
		return nil, violation("unknown head %d", id)
	}
	return head, nil
}

func (r *Registry) mode(id ModeID) (*Mode, *ProtocolViolation) {
	headID, ok := r.modeHead[id]
	if !ok {
		return nil, violation("unknown mode %d", id)
	}
	head := r.heads[headID]
	for i := range head.Modes {
		if head.Modes[i].ID == id {
			return &head.Modes[i], nil
		}
	}
	return nil, violation("mode %d missing from head %d", id, headID)
}

func (r *Registry) fold(ev Event) error {
	switch ev := ev.(type) {
	case HeadAdded:
		if _, ok := r.heads[ev.Head]; ok {
			return violation("head %d added twice", ev.Head)
		}
		r.heads[ev.Head] = &Head{ID: ev.Head, Scale: ScaleOne}
		r.order = append(r.order, ev.Head)

	case HeadRemoved:
		head, err := r.head(ev.Head)
		if err != nil {
			return err
		}
		for _, mode := range head.Modes {
			delete(r.modeHead, mode.ID)
		}
		delete(r.heads, ev.Head)
		for i, id := range r.order {
			if id == ev.Head {
				r.order = append(r.order[:i], r.order[i+1:]...)
				break
			}
		}

	case HeadModeAdded:
		head, err := r.head(ev.Head)
		if err != nil {
			return err
		}
		if owner, ok := r.modeHead[ev.Mode]; ok {
			return violation("mode %d already belongs to head %d", ev.Mode, owner)
		}
		head.Modes = append(head.Modes, Mode{ID: ev.Mode})
		r.modeHead[ev.Mode] = ev.Head

	case ModeRemoved:
		headID, ok := r.modeHead[ev.Mode]
		if !ok {
			return violation("unknown mode %d", ev.Mode)
		}
		head := r.heads[headID]
		for i, mode := range head.Modes {
			if mode.ID == ev.Mode {
				head.Modes = append(head.Modes[:i], head.Modes[i+1:]...)
				break
			}
		}
		if head.CurrentMode == ev.Mode {
			head.CurrentMode = 0
		}
		delete(r.modeHead, ev.Mode)

	case ModeSize:
		mode, err := r.mode(ev.Mode)
		if err != nil {
			return err
		}
		mode.Width, mode.Height = ev.Width, ev.Height
	case ModeRefresh:
		mode, err := r.mode(ev.Mode)
		if err != nil {
			return err
		}
		mode.Refresh = ev.Refresh
	case ModePreferred:
		mode, err := r.mode(ev.Mode)
		if err != nil {
			return err
		}
		mode.Preferred = true

	case HeadCurrentMode:
		head, err := r.head(ev.Head)
		if err != nil {
			return err
		}
		if owner, ok := r.modeHead[ev.Mode]; !ok || owner != ev.Head {
			return violation("current mode %d of head %d is not one of its modes", ev.Mode, ev.Head)
		}
		head.CurrentMode = ev.Mode

	default:
		return r.foldHeadAttr(ev)
	}
	return nil
}

func (r *Registry) foldHeadAttr(ev Event) error {
	var id HeadID
	switch ev := ev.(type) {
	case HeadName:
		id = ev.Head
	case HeadDescription:
		id = ev.Head
	case HeadMake:
		id = ev.Head
	case HeadModel:
		id = ev.Head
	case HeadSerialNumber:
		id = ev.Head
	case HeadPhysicalSize:
		id = ev.Head
	case HeadEnabled:
		id = ev.Head
	case HeadPosition:
		id = ev.Head
	case HeadTransform:
		id = ev.Head
	case HeadScale:
		id = ev.Head
	case HeadAdaptiveSync:
		id = ev.Head
	default:
		logger.Debugf("registry ignores %T", ev)
		return nil
	}

	head, err := r.head(id)
	if err != nil {
		return err
	}
	switch ev := ev.(type) {
	case HeadName:
		head.Name = ev.Name
	case HeadDescription:
		head.Description = ev.Description
	case HeadMake:
		head.Make = ev.Make
	case HeadModel:
		head.Model = ev.Model
	case HeadSerialNumber:
		head.SerialNumber = ev.SerialNumber
	case HeadPhysicalSize:
		head.PhysicalWidth, head.PhysicalHeight = ev.Width, ev.Height
	case HeadEnabled:
		head.Enabled = ev.Enabled
	case HeadPosition:
		head.Position = &Position{X: ev.X, Y: ev.Y}
	case HeadTransform:
		if !ev.Transform.Valid() {
			return violation("head %d: invalid transform %d", id, int32(ev.Transform))
		}
		head.Transform = ev.Transform
	case HeadScale:
		if !ev.Scale.Valid() {
			return violation("head %d: invalid scale", id)
		}
		head.Scale = ev.Scale
	case HeadAdaptiveSync:
		head.AdaptiveSync = ev.Enabled
		head.AdaptiveSyncSupported = true
	}
	return nil
}

// normalize enforces the head invariants after a fold.
func (r *Registry) normalize() {
	for _, id := range r.order {
		head := r.heads[id]
		if !head.Enabled {
			head.CurrentMode = 0
			head.Position = nil
			continue
		}
		if head.CurrentMode != 0 && !head.Modes.Contains(head.CurrentMode) {
			logger.Warning(violation("head %d: current mode %d not in its mode set", id, head.CurrentMode))
			head.CurrentMode = 0
		}
		if head.Position == nil {
			head.Position = &Position{}
		}
	}
}

// Reconcile folds the changes of a succeeded transaction into a new snapshot.
// Later bursts from the compositor overwrite whatever is set here.
func (r *Registry) Reconcile(changes []HeadChange) *Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, change := range changes {
		head, ok := r.heads[change.Head]
		if !ok {
			logger.Debugf("reconcile: head %d is gone", change.Head)
			continue
		}
		if change.Enabled != nil {
			head.Enabled = *change.Enabled
		}
		if change.Mode != 0 && head.Modes.Contains(change.Mode) {
			head.CurrentMode = change.Mode
		}
		if cm := change.CustomMode; cm != nil {
			head.CurrentMode = 0
			if mode, ok := head.Modes.Match(cm.Width, cm.Height, cm.Refresh, refreshTolerance); ok {
				head.CurrentMode = mode.ID
			}
		}
		if change.Position != nil {
			pos := *change.Position
			head.Position = &pos
		}
		if change.Transform != nil {
			head.Transform = *change.Transform
		}
		if change.Scale != nil {
			head.Scale = *change.Scale
		}
		if change.AdaptiveSync != nil {
			head.AdaptiveSync = *change.AdaptiveSync
		}
	}
	r.normalize()
	snap := r.publish(false)
	logger.Debug("reconciled:", spew.Sdump(changes))
	return snap
}

// MarkStale republishes the current state flagged as stale.
func (r *Registry) MarkStale() *Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.publish(true)
}

// Reset makes the next batch rebuild the registry from scratch. Until then
// the last state stays readable, flagged as stale.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reset = true
	r.publish(true)
}

func (r *Registry) publish(stale bool) *Snapshot {
	r.gen++
	snap := &Snapshot{
		Heads:      make([]Head, 0, len(r.order)),
		Serial:     r.serial,
		Generation: r.gen,
		Stale:      stale,
	}
	for _, id := range r.order {
		snap.Heads = append(snap.Heads, r.heads[id].Clone())
	}
	r.current.Store(snap)
	return snap
}
