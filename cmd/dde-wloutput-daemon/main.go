// SPDX-FileCopyrightText: 2023 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/linuxdeepin/dde-wloutput/config"
	"github.com/linuxdeepin/dde-wloutput/layout"
	"github.com/linuxdeepin/dde-wloutput/service"
	"github.com/linuxdeepin/dde-wloutput/wloutput"
	"github.com/linuxdeepin/dde-wloutput/wloutput/wlr"
	"github.com/linuxdeepin/go-lib/log"
	"golang.org/x/sync/errgroup"
)

var logger = log.NewLogger("dde-wloutput-daemon")

func setLogLevel(level log.Priority) {
	logger.SetLogLevel(level)
	wloutput.SetLogLevel(level)
	wlr.SetLogLevel(level)
	layout.SetLogLevel(level)
	config.SetLogLevel(level)
	service.SetLogLevel(level)
}

func main() {
	debug := flag.Bool("d", false, "debug output")
	cfgFile := flag.String("config", "", "configuration file")
	flag.Parse()
	if *debug {
		setLogLevel(log.LevelDebug)
	}

	cfg, err := config.Load(*cfgFile)
	if err != nil {
		logger.Fatal("failed to load config:", err)
	}
	if !*debug {
		setLogLevel(cfg.Priority())
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	opts := wlr.Options{Display: cfg.Display, MaxVersion: cfg.MaxProtocolVersion}
	client, err := wlr.Connect(ctx, opts)
	if err != nil {
		logger.Fatal("failed to connect compositor:", err)
	}
	defer client.Close()

	srv, m, err := service.Start(client, service.Options{
		AutoAlign: cfg.AutoAlign,
		Reconnect: func(ctx context.Context) error {
			return wlr.Reconnect(ctx, client, opts)
		},
	})
	if err != nil {
		logger.Fatal("failed to start service:", err)
	}
	logger.Info("started, outputs:", len(client.Snapshot().Heads))

	stopped := make(chan struct{})
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		m.Run(ctx)
		return nil
	})
	g.Go(func() error {
		select {
		case <-ctx.Done():
			logger.Info("stopping")
			srv.Quit()
		case <-stopped:
		}
		return nil
	})
	srv.Wait()
	close(stopped)
	cancel()
	_ = g.Wait()
}
