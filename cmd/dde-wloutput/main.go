// SPDX-FileCopyrightText: 2023 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/linuxdeepin/dde-wloutput/config"
	"github.com/linuxdeepin/dde-wloutput/layout"
	"github.com/linuxdeepin/dde-wloutput/wloutput"
	"github.com/linuxdeepin/dde-wloutput/wloutput/kdl"
	"github.com/linuxdeepin/dde-wloutput/wloutput/wlr"
	"github.com/linuxdeepin/go-lib/log"
)

const (
	exitOK          = 0
	exitUsage       = 1
	exitInvalid     = 2
	exitCancelled   = 3
	exitFailed      = 4
	exitConnection  = 5
	exitUnsupported = 6
)

var logger = log.NewLogger("dde-wloutput")

type app struct {
	cfg    *config.Config
	opts   wlr.Options
	stdout io.Writer
	stderr io.Writer
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("dde-wloutput", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	debug := fs.Bool("d", false, "debug output")
	cfgFile := fs.String("config", "", "configuration file")
	fs.Usage = func() { printMainUsage(os.Stderr) }
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return exitOK
		}
		return exitUsage
	}
	if *debug {
		setLogLevel(log.LevelDebug)
	}

	cfg, err := config.Load(*cfgFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitUsage
	}
	if !*debug {
		setLogLevel(cfg.Priority())
	}

	a := &app{
		cfg:    cfg,
		opts:   wlr.Options{Display: cfg.Display, MaxVersion: cfg.MaxProtocolVersion},
		stdout: os.Stdout,
		stderr: os.Stderr,
	}

	if fs.NArg() == 0 {
		printMainUsage(os.Stdout)
		return exitOK
	}
	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "list":
		return a.runList(rest)
	case "enable":
		return a.runEnable(rest, true)
	case "disable":
		return a.runEnable(rest, false)
	case "mode":
		return a.runMode(rest)
	case "position":
		return a.runPosition(rest)
	case "scale":
		return a.runScale(rest)
	case "transform":
		return a.runTransform(rest)
	case "adaptive-sync":
		return a.runAdaptiveSync(rest)
	case "mirror":
		return a.runMirror(rest)
	case "switch":
		return a.runSwitch(rest)
	case "apply":
		return a.runApply(rest)
	case "help", "-h", "--help":
		printMainUsage(os.Stdout)
		return exitOK
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printMainUsage(os.Stderr)
		return exitUsage
	}
}

func setLogLevel(level log.Priority) {
	logger.SetLogLevel(level)
	wloutput.SetLogLevel(level)
	wlr.SetLogLevel(level)
	layout.SetLogLevel(level)
	config.SetLogLevel(level)
}

func printMainUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: dde-wloutput [-d] [-config FILE] <command> [options]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  list [-kdl|-json|-yaml]            List outputs and their modes")
	fmt.Fprintln(w, "  enable OUTPUT                      Enable an output")
	fmt.Fprintln(w, "  disable OUTPUT                     Disable an output")
	fmt.Fprintln(w, "  mode OUTPUT WIDTH HEIGHT           Set the mode of an output")
	fmt.Fprintln(w, "  position OUTPUT X Y                Move an output")
	fmt.Fprintln(w, "  scale OUTPUT SCALE                 Set the scale of an output")
	fmt.Fprintln(w, "  transform OUTPUT TRANSFORM         Rotate or flip an output")
	fmt.Fprintln(w, "  adaptive-sync OUTPUT true|false    Toggle adaptive sync")
	fmt.Fprintln(w, "  mirror OUTPUT FROM                 Show the content of FROM on OUTPUT")
	fmt.Fprintln(w, "  switch extend|mirror|only-one [OUTPUT]")
	fmt.Fprintln(w, "                                     Switch the display mode")
	fmt.Fprintln(w, "  apply [-test] [-watch] [FILE|-]    Apply an output layout document")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Run 'dde-wloutput <command> -h' for command-specific options.")
}

// newFlagSet returns a flag set for a command that prints usage and
// synopsis on -h.
func (a *app) newFlagSet(name, synopsis, description string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	fs.Usage = func() {
		fmt.Fprintf(a.stderr, "Usage: dde-wloutput %s %s\n\n", name, synopsis)
		fmt.Fprintln(a.stderr, description)
		fmt.Fprintln(a.stderr, "")
		fs.PrintDefaults()
	}
	return fs
}

// parseFlags parses args and checks the number of positional arguments.
// ok is false when the command should return code right away.
func parseFlags(fs *flag.FlagSet, args []string, minArgs, maxArgs int) (code int, ok bool) {
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return exitOK, false
		}
		return exitUsage, false
	}
	if fs.NArg() < minArgs || (maxArgs >= 0 && fs.NArg() > maxArgs) {
		fs.Usage()
		return exitUsage, false
	}
	return exitOK, true
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

type connectError struct {
	err error
}

func (e *connectError) Error() string { return e.err.Error() }
func (e *connectError) Unwrap() error { return e.err }

// withClient connects to the compositor and runs fn. Errors from the
// connection attempt are wrapped in connectError.
func (a *app) withClient(ctx context.Context, fn func(*wloutput.Client) error) error {
	connected := false
	err := wlr.Do(ctx, a.opts, func(client *wloutput.Client) error {
		connected = true
		return fn(client)
	})
	if err != nil && !connected && !errors.Is(err, wloutput.ErrUnsupported) {
		return &connectError{err: err}
	}
	return err
}

// report prints err and returns the matching exit code.
func (a *app) report(err error) int {
	code := exitCode(err)
	if err != nil {
		fmt.Fprintln(a.stderr, "error:", err)
	}
	return code
}

func exitCode(err error) int {
	var (
		validation *wloutput.ValidationError
		parse      *kdl.ParseError
		connect    *connectError
	)
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &validation), errors.As(err, &parse):
		return exitInvalid
	case errors.Is(err, wloutput.ErrUnsupported):
		return exitUnsupported
	case errors.Is(err, wloutput.ErrCancelled):
		return exitCancelled
	case errors.Is(err, wloutput.ErrFailed):
		return exitFailed
	case errors.As(err, &connect),
		errors.Is(err, wloutput.ErrConnectionLost),
		errors.Is(err, wloutput.ErrStale),
		errors.Is(err, wloutput.ErrClosed):
		return exitConnection
	}
	return exitUsage
}
