// SPDX-FileCopyrightText: 2023 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/linuxdeepin/dde-wloutput/wloutput"
	"github.com/linuxdeepin/dde-wloutput/wloutput/kdl"
	"github.com/linuxdeepin/dde-wloutput/wloutput/wlr"
	"golang.org/x/xerrors"
)

// editors write files in several steps, wait for them to settle
const watchDebounce = 200 * time.Millisecond

func (a *app) runApply(args []string) int {
	fs := a.newFlagSet("apply", "[-test] [-watch] [FILE|-]",
		"Apply an output layout document, read from standard input when FILE is - or missing.")
	test := fs.Bool("test", false, "only test the configuration")
	watch := fs.Bool("watch", false, "apply FILE again whenever it changes")
	if code, ok := parseFlags(fs, args, 0, 1); !ok {
		return code
	}
	filename := fs.Arg(0)
	if filename == "" {
		filename = "-"
	}

	if *watch {
		if filename == "-" {
			return usageError(fs, "-watch needs a file")
		}
		return a.report(a.watch(filename, *test))
	}

	configs, err := readDocument(filename)
	if err != nil {
		return a.report(err)
	}
	return a.transact(*test, func(snap *wloutput.Snapshot) ([]wloutput.HeadChange, error) {
		return wloutput.Diff(snap, configs)
	})
}

func readDocument(filename string) ([]wloutput.HeadConfig, error) {
	var content []byte
	var err error
	if filename == "-" {
		content, err = io.ReadAll(os.Stdin)
	} else {
		content, err = os.ReadFile(filename)
	}
	if err != nil {
		return nil, err
	}
	configs, err := kdl.Decode(string(content))
	if err != nil {
		return nil, xerrors.Errorf("%s: %w", filename, err)
	}
	return configs, nil
}

// watch keeps one connection open and applies filename at start and after
// every change until interrupted.
func (a *app) watch(filename string, test bool) error {
	ctx, cancel := signalContext()
	defer cancel()

	filename, err := filepath.Abs(filename)
	if err != nil {
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	// watch the directory, editors replace files by renaming over them
	err = watcher.Add(filepath.Dir(filename))
	if err != nil {
		return err
	}

	client, err := wlr.Connect(ctx, a.opts)
	if err != nil {
		if errors.Is(err, wloutput.ErrUnsupported) {
			return err
		}
		return &connectError{err: err}
	}
	defer client.Close()

	a.applyWatched(ctx, client, filename, test)
	timer := time.NewTimer(watchDebounce)
	timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filename {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			logger.Debug("layout file changed:", ev)
			timer.Reset(watchDebounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warning(err)
		case <-timer.C:
			a.applyWatched(ctx, client, filename, test)
		}
	}
}

// applyWatched applies filename once. Errors are reported and the watch
// goes on; a lost connection is dialled again first.
func (a *app) applyWatched(ctx context.Context, client *wloutput.Client, filename string, test bool) {
	configs, err := readDocument(filename)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Debug("layout file removed")
			return
		}
		a.report(err)
		return
	}

	if client.Snapshot().Stale {
		logger.Info("compositor connection lost, reconnecting")
		err = wlr.Reconnect(ctx, client, a.opts)
		if err != nil {
			a.report(&connectError{err: err})
			return
		}
	}
	err = a.submit(ctx, client.Begin(), test, func(snap *wloutput.Snapshot) ([]wloutput.HeadChange, error) {
		return wloutput.Diff(snap, configs)
	})
	if err != nil {
		a.report(err)
		return
	}
	logger.Info("applied", filename)
}
