// SPDX-FileCopyrightText: 2023 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package wloutput

// Listener buffers the events of a burst and commits them to the registry on
// the closing done event, so readers never see a half initialised head.
type Listener struct {
	registry *Registry
	pending  []Event

	// entities created within the pending burst
	addedHeads map[HeadID]bool
	addedModes map[ModeID]HeadID
}

func NewListener(registry *Registry) *Listener {
	l := &Listener{registry: registry}
	l.Discard()
	return l
}

// Pending returns the number of buffered events.
func (l *Listener) Pending() int {
	return len(l.pending)
}

// Discard drops the pending burst.
func (l *Listener) Discard() {
	l.pending = nil
	l.addedHeads = make(map[HeadID]bool)
	l.addedModes = make(map[ModeID]HeadID)
}

// Handle takes one event. It returns the committed snapshot when the event
// closed a burst and nil otherwise.
func (l *Listener) Handle(ev Event) *Snapshot {
	switch ev := ev.(type) {
	case ManagerDone:
		snap := l.registry.ApplyBatch(ev.Serial, l.pending)
		l.Discard()
		return snap

	case ManagerFinished:
		if len(l.pending) > 0 {
			logger.Debugf("manager finished, dropping %d pending events", len(l.pending))
		}
		l.Discard()
		return nil

	case ConfigurationOutcome:
		return nil

	case HeadAdded:
		l.addedHeads[ev.Head] = true
	case HeadModeAdded:
		l.addedModes[ev.Mode] = ev.Head

	case HeadRemoved:
		modes := l.modesOf(ev.Head)
		l.evict(func(e Event) bool {
			if id, ok := eventHead(e); ok && id == ev.Head {
				return true
			}
			if id, ok := eventMode(e); ok && modes[id] {
				return true
			}
			return false
		})
		for mode := range modes {
			delete(l.addedModes, mode)
		}
		if l.addedHeads[ev.Head] {
			delete(l.addedHeads, ev.Head)
			return nil
		}

	case ModeRemoved:
		l.evict(func(e Event) bool {
			id, ok := eventMode(e)
			return ok && id == ev.Mode
		})
		if _, ok := l.addedModes[ev.Mode]; ok {
			delete(l.addedModes, ev.Mode)
			return nil
		}
	}

	l.pending = append(l.pending, ev)
	return nil
}

// modesOf collects the modes of a head, both committed and pending.
func (l *Listener) modesOf(head HeadID) map[ModeID]bool {
	modes := make(map[ModeID]bool)
	if h, ok := l.registry.Lookup(head); ok {
		for _, mode := range h.Modes {
			modes[mode.ID] = true
		}
	}
	for mode, owner := range l.addedModes {
		if owner == head {
			modes[mode] = true
		}
	}
	return modes
}

func (l *Listener) evict(match func(Event) bool) {
	kept := l.pending[:0]
	for _, e := range l.pending {
		if !match(e) {
			kept = append(kept, e)
		}
	}
	for i := len(kept); i < len(l.pending); i++ {
		l.pending[i] = nil
	}
	l.pending = kept
}

func eventHead(ev Event) (HeadID, bool) {
	switch ev := ev.(type) {
	case HeadAdded:
		return ev.Head, true
	case HeadName:
		return ev.Head, true
	case HeadDescription:
		return ev.Head, true
	case HeadMake:
		return ev.Head, true
	case HeadModel:
		return ev.Head, true
	case HeadSerialNumber:
		return ev.Head, true
	case HeadPhysicalSize:
		return ev.Head, true
	case HeadModeAdded:
		return ev.Head, true
	case HeadEnabled:
		return ev.Head, true
	case HeadCurrentMode:
		return ev.Head, true
	case HeadPosition:
		return ev.Head, true
	case HeadTransform:
		return ev.Head, true
	case HeadScale:
		return ev.Head, true
	case HeadAdaptiveSync:
		return ev.Head, true
	case HeadRemoved:
		return ev.Head, true
	}
	return 0, false
}

func eventMode(ev Event) (ModeID, bool) {
	switch ev := ev.(type) {
	case HeadModeAdded:
		return ev.Mode, true
	case HeadCurrentMode:
		return ev.Mode, true
	case ModeSize:
		return ev.Mode, true
	case ModeRefresh:
		return ev.Mode, true
	case ModePreferred:
		return ev.Mode, true
	case ModeRemoved:
		return ev.Mode, true
	}
	return 0, false
}
