// SPDX-FileCopyrightText: 2023 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package wloutput

import (
	"fmt"

	"golang.org/x/xerrors"
)

var (
	// ErrBusy is returned when a transaction is submitted while another one
	// is pending on the same connection.
	ErrBusy = xerrors.New("another configuration is pending")
	// ErrCancelled is the error of a transaction the compositor cancelled.
	// The layout changed underneath it; retry against a fresh snapshot.
	ErrCancelled = xerrors.New("configuration cancelled by compositor")
	// ErrFailed is the error of a transaction the compositor rejected.
	ErrFailed         = xerrors.New("configuration rejected by compositor")
	ErrConnectionLost = xerrors.New("compositor connection lost")
	ErrClosed         = xerrors.New("client closed")
	ErrNotBuilding    = xerrors.New("transaction already submitted")
	ErrUnsupported    = xerrors.New("compositor does not support wlr output management")
	ErrStale          = xerrors.New("output state is stale")
)

// ValidationError rejects a change request before anything is sent to the
// compositor.
type ValidationError struct {
	Head   HeadID
	Name   string
	Reason string
}

func (e *ValidationError) Error() string {
	switch {
	case e.Name != "":
		return fmt.Sprintf("invalid change for output %s: %s", e.Name, e.Reason)
	case e.Head != 0:
		return fmt.Sprintf("invalid change for head %d: %s", e.Head, e.Reason)
	}
	return "invalid change: " + e.Reason
}

func invalid(head Head, format string, args ...interface{}) *ValidationError {
	return &ValidationError{
		Head:   head.ID,
		Name:   head.Name,
		Reason: fmt.Sprintf(format, args...),
	}
}

// ProtocolViolation describes a compositor event that does not fit the
// current state. It is logged and the offending delta is dropped.
type ProtocolViolation struct {
	Reason string
}

func (e *ProtocolViolation) Error() string {
	return "protocol violation: " + e.Reason
}

func violation(format string, args ...interface{}) *ProtocolViolation {
	return &ProtocolViolation{Reason: fmt.Sprintf(format, args...)}
}
