// SPDX-FileCopyrightText: 2023 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package wlr

import (
	"context"

	"github.com/linuxdeepin/dde-wloutput/wloutput"
	"golang.org/x/xerrors"
)

// Connect dials the compositor and returns a client whose registry holds the
// first complete burst. The caller must Close the client.
func Connect(ctx context.Context, opts Options) (*wloutput.Client, error) {
	session, err := Dial(ctx, opts)
	if err != nil {
		return nil, err
	}
	client := wloutput.NewClient(session)
	if err := client.Ready(ctx); err != nil {
		client.Close()
		if sessErr := session.Err(); sessErr != nil {
			return nil, xerrors.Errorf("wait for outputs: %w", sessErr)
		}
		return nil, xerrors.Errorf("wait for outputs: %w", err)
	}
	return client, nil
}

// Do runs fn with a connected client and releases the connection, and any
// configuration still outstanding, on every return path.
func Do(ctx context.Context, opts Options, fn func(*wloutput.Client) error) (err error) {
	client, err := Connect(ctx, opts)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := client.Close(); closeErr != nil {
			logger.Debug("close connection:", closeErr)
		}
	}()
	return fn(client)
}

// Reconnect dials again and swaps the new session into client.
func Reconnect(ctx context.Context, client *wloutput.Client, opts Options) error {
	session, err := Dial(ctx, opts)
	if err != nil {
		return err
	}
	if err := client.Reconnect(ctx, session); err != nil {
		session.Close()
		return err
	}
	return client.Ready(ctx)
}
