// SPDX-FileCopyrightText: 2023 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package wloutput

import (
	"context"
	"math"
	"sync"

	"golang.org/x/xerrors"
)

type State int

const (
	StateBuilding State = iota
	StatePending
	StateSucceeded
	StateCancelled
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateBuilding:
		return "building"
	case StatePending:
		return "pending"
	case StateSucceeded:
		return "succeeded"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

func (s State) Terminal() bool {
	return s >= StateSucceeded
}

// Result is the terminal outcome of a transaction.
type Result struct {
	State State
	// Tested is set when the configuration was only tested, not applied.
	Tested bool
	// Reason is an opaque diagnostic, empty when the compositor gave none.
	Reason string
	// Err is nil on success and wraps ErrCancelled, ErrFailed,
	// ErrConnectionLost or ErrClosed otherwise.
	Err error
	// Snapshot is the registry after the outcome was folded in.
	Snapshot *Snapshot
}

// Transaction is a staged configuration change. It is used once: after it
// reached a terminal state a new one has to be started with Client.Begin.
type Transaction struct {
	client   *Client
	snapshot *Snapshot

	mu      sync.Mutex
	state   State
	changes map[HeadID]HeadChange
	order   []HeadID
	result  *Result
	done    chan struct{}
}

func newTransaction(client *Client, snapshot *Snapshot) *Transaction {
	return &Transaction{
		client:   client,
		snapshot: snapshot,
		changes:  make(map[HeadID]HeadChange),
		done:     make(chan struct{}),
	}
}

// Snapshot returns the snapshot the transaction validates against.
func (tx *Transaction) Snapshot() *Snapshot {
	return tx.snapshot
}

func (tx *Transaction) State() State {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return tx.state
}

// Result returns the outcome, or nil while the transaction is not terminal.
func (tx *Transaction) Result() *Result {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return tx.result
}

// Changes returns the staged changes in the order heads were first touched.
func (tx *Transaction) Changes() []HeadChange {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	result := make([]HeadChange, 0, len(tx.order))
	for _, id := range tx.order {
		result = append(result, tx.changes[id])
	}
	return result
}

// Add stages one change. An invalid change is rejected and leaves the
// transaction as it was. Changes for the same head merge, later values win.
func (tx *Transaction) Add(change HeadChange) error {
	return tx.AddAll(change)
}

// AddAll stages all changes or none of them.
func (tx *Transaction) AddAll(changes ...HeadChange) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if tx.state != StateBuilding {
		return ErrNotBuilding
	}
	if tx.snapshot.Stale {
		return xerrors.Errorf("cannot stage changes: %w", ErrStale)
	}

	staged := make(map[HeadID]HeadChange, len(changes))
	var added []HeadID
	for _, change := range changes {
		merged, ok := staged[change.Head]
		if !ok {
			merged, ok = tx.changes[change.Head]
			if !ok {
				merged = Change(change.Head)
				added = append(added, change.Head)
			}
		}
		merged, err := tx.validate(merged, change)
		if err != nil {
			return err
		}
		staged[change.Head] = merged
	}

	for id, change := range staged {
		tx.changes[id] = change
	}
	tx.order = append(tx.order, added...)
	return nil
}

func (tx *Transaction) validate(staged, change HeadChange) (HeadChange, error) {
	head, ok := tx.snapshot.Lookup(change.Head)
	if !ok {
		return staged, &ValidationError{Head: change.Head, Reason: "unknown head"}
	}
	if change.Mode != 0 && change.CustomMode != nil {
		return staged, invalid(head, "both a mode and a custom mode requested")
	}

	merged := staged.merge(change)
	enabled := head.Enabled
	if merged.Enabled != nil {
		enabled = *merged.Enabled
	}
	if merged.hasAttributes() {
		if merged.Enabled != nil && !*merged.Enabled {
			return staged, invalid(head, "cannot disable and change attributes at once")
		}
		if !enabled {
			return staged, invalid(head, "output is disabled, enable it to change attributes")
		}
	}
	if merged.Mode != 0 && !head.Modes.Contains(merged.Mode) {
		return staged, invalid(head, "mode %d is not supported", merged.Mode)
	}
	if cm := merged.CustomMode; cm != nil && (cm.Width <= 0 || cm.Height <= 0 || cm.Refresh < 0) {
		return staged, invalid(head, "invalid custom mode %s", cm)
	}
	if merged.Scale != nil && !merged.Scale.Valid() {
		return staged, invalid(head, "scale must be positive")
	}
	if merged.Transform != nil && !merged.Transform.Valid() {
		return staged, invalid(head, "invalid transform %d", int32(*merged.Transform))
	}
	if merged.AdaptiveSync != nil && !head.AdaptiveSyncSupported {
		return staged, invalid(head, "adaptive sync is not supported")
	}
	return merged, nil
}

func (tx *Transaction) Enable(head HeadID) error {
	return tx.Add(Change(head).WithEnabled(true))
}

func (tx *Transaction) Disable(head HeadID) error {
	return tx.Add(Change(head).WithEnabled(false))
}

func (tx *Transaction) SetMode(head HeadID, mode ModeID) error {
	return tx.Add(Change(head).WithMode(mode))
}

func (tx *Transaction) SetCustomMode(head HeadID, width, height, refresh int32) error {
	return tx.Add(Change(head).WithCustomMode(width, height, refresh))
}

func (tx *Transaction) SetPosition(head HeadID, x, y int32) error {
	return tx.Add(Change(head).WithPosition(x, y))
}

func (tx *Transaction) SetTransform(head HeadID, transform Transform) error {
	return tx.Add(Change(head).WithTransform(transform))
}

func (tx *Transaction) SetScale(head HeadID, scale Scale) error {
	return tx.Add(Change(head).WithScale(scale))
}

func (tx *Transaction) SetAdaptiveSync(head HeadID, enabled bool) error {
	return tx.Add(Change(head).WithAdaptiveSync(enabled))
}

// Mirror places target over the rectangle of source. Target gets the mode
// closest to the current mode of source; when it has no mode of that size
// its best mode is used and scaled to cover the same logical area.
func (tx *Transaction) Mirror(target, source HeadID) error {
	change, err := MirrorChange(tx.snapshot, target, source)
	if err != nil {
		return err
	}
	return tx.Add(change)
}

// MirrorChange computes the change that makes target show the same logical
// area as source.
func MirrorChange(snap *Snapshot, target, source HeadID) (HeadChange, error) {
	dst, ok := snap.Lookup(target)
	if !ok {
		return HeadChange{}, &ValidationError{Head: target, Reason: "unknown head"}
	}
	src, ok := snap.Lookup(source)
	if !ok {
		return HeadChange{}, &ValidationError{Head: source, Reason: "unknown head"}
	}
	if target == source {
		return HeadChange{}, invalid(dst, "cannot mirror an output onto itself")
	}
	srcMode, ok := src.Current()
	if !src.Enabled || !ok {
		return HeadChange{}, invalid(src, "mirror source is not active")
	}

	change := Change(target).WithEnabled(true).WithTransform(src.Transform)
	if src.Position != nil {
		change = change.WithPosition(src.Position.X, src.Position.Y)
	}

	if mode, ok := dst.Modes.Match(srcMode.Width, srcMode.Height, srcMode.Refresh, math.MaxInt32); ok {
		return change.WithMode(mode.ID).WithScale(src.Scale), nil
	}
	mode, ok := dst.Modes.Best()
	if !ok {
		return HeadChange{}, invalid(dst, "output has no modes")
	}

	// scale so that dst covers the logical width of src
	srcW, dstW := int64(srcMode.Width), int64(mode.Width)
	if src.Transform.Rotated() {
		srcW, dstW = int64(srcMode.Height), int64(mode.Height)
	}
	scale, err := NewScale(dstW*src.Scale.Num(), srcW*src.Scale.Den())
	if err != nil {
		return HeadChange{}, invalid(dst, "cannot compute mirror scale: %v", err)
	}
	return change.WithMode(mode.ID).WithScale(scale), nil
}

// AddConfigs stages the changes needed to reach the desired configs.
func (tx *Transaction) AddConfigs(configs []HeadConfig) error {
	changes, err := Diff(tx.snapshot, configs)
	if err != nil {
		return err
	}
	return tx.AddAll(changes...)
}

// Apply submits the transaction and waits for the compositor's answer. The
// returned error is only set when no outcome was reached: ErrBusy and
// ErrNotBuilding leave the transaction untouched, a cancelled ctx stops the
// wait but not the transaction. Compositor outcomes are reported in Result.
func (tx *Transaction) Apply(ctx context.Context) (*Result, error) {
	return tx.submit(ctx, false)
}

// Test asks the compositor whether the configuration would be accepted
// without applying it.
func (tx *Transaction) Test(ctx context.Context) (*Result, error) {
	return tx.submit(ctx, true)
}

func (tx *Transaction) submit(ctx context.Context, test bool) (*Result, error) {
	tx.mu.Lock()
	if tx.state != StateBuilding {
		tx.mu.Unlock()
		return nil, ErrNotBuilding
	}
	changes := make([]HeadChange, 0, len(tx.order))
	for _, id := range tx.order {
		changes = append(changes, tx.changes[id])
	}
	tx.state = StatePending
	tx.mu.Unlock()

	sub := &submission{
		tx:       tx,
		changes:  changes,
		test:     test,
		accepted: make(chan error, 1),
	}
	err := tx.client.submit(ctx, sub)
	if err != nil {
		tx.mu.Lock()
		if tx.state == StatePending {
			tx.state = StateBuilding
		}
		tx.mu.Unlock()
		return nil, err
	}
	return tx.Wait(ctx)
}

// Wait blocks until the transaction reached a terminal state.
func (tx *Transaction) Wait(ctx context.Context) (*Result, error) {
	select {
	case <-tx.done:
		return tx.Result(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (tx *Transaction) resolve(result *Result) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.state.Terminal() {
		return
	}
	tx.state = result.State
	tx.result = result
	close(tx.done)
	if result.Err != nil {
		logger.Warningf("configuration %s: %v", result.State, result.Err)
	} else {
		logger.Debugf("configuration %s (test %v)", result.State, result.Tested)
	}
}

func failed(err error) *Result {
	return &Result{State: StateFailed, Err: err}
}
