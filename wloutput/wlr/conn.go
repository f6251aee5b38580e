// SPDX-FileCopyrightText: 2023 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package wlr

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"strconv"

	"golang.org/x/xerrors"
)

// socketPath resolves the compositor socket the way libwayland does.
func socketPath(display string) (string, error) {
	if display == "" {
		display = os.Getenv("WAYLAND_DISPLAY")
	}
	if display == "" {
		display = "wayland-0"
	}
	if filepath.IsAbs(display) {
		return display, nil
	}
	runtimeDir := os.Getenv("XDG_RUNTIME_DIR")
	if runtimeDir == "" {
		return "", xerrors.New("XDG_RUNTIME_DIR is not set")
	}
	return filepath.Join(runtimeDir, display), nil
}

// dial connects to the compositor. An inherited WAYLAND_SOCKET takes
// precedence over the socket path.
func dial(ctx context.Context, display string) (net.Conn, error) {
	if display == "" {
		if fdStr := os.Getenv("WAYLAND_SOCKET"); fdStr != "" {
			os.Unsetenv("WAYLAND_SOCKET")
			fd, err := strconv.Atoi(fdStr)
			if err != nil {
				return nil, xerrors.Errorf("invalid WAYLAND_SOCKET %q: %w", fdStr, err)
			}
			file := os.NewFile(uintptr(fd), "wayland-socket")
			defer file.Close()
			conn, err := net.FileConn(file)
			if err != nil {
				return nil, xerrors.Errorf("use WAYLAND_SOCKET: %w", err)
			}
			return conn, nil
		}
	}

	path, err := socketPath(display)
	if err != nil {
		return nil, err
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, xerrors.Errorf("connect to compositor: %w", err)
	}
	logger.Debug("connected to", path)
	return conn, nil
}
