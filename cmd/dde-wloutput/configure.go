// SPDX-FileCopyrightText: 2023 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"flag"
	"fmt"
	"strconv"

	"github.com/davecgh/go-spew/spew"
	"github.com/linuxdeepin/dde-wloutput/layout"
	"github.com/linuxdeepin/dde-wloutput/wloutput"
	"golang.org/x/xerrors"
)

// planFunc computes the changes of a command against the snapshot the
// transaction was started from.
type planFunc func(snap *wloutput.Snapshot) ([]wloutput.HeadChange, error)

// transact connects, stages the planned changes and applies or tests them.
func (a *app) transact(test bool, plan planFunc) int {
	ctx, cancel := signalContext()
	defer cancel()
	err := a.withClient(ctx, func(client *wloutput.Client) error {
		return a.submit(ctx, client.Begin(), test, plan)
	})
	return a.report(err)
}

func (a *app) submit(ctx context.Context, tx *wloutput.Transaction, test bool, plan planFunc) error {
	changes, err := plan(tx.Snapshot())
	if err != nil {
		return err
	}
	err = tx.AddAll(changes...)
	if err != nil {
		return err
	}
	if len(tx.Changes()) == 0 {
		fmt.Fprintln(a.stdout, "nothing to change")
		return nil
	}
	logger.Debug("changes:", spew.Sdump(tx.Changes()))

	var res *wloutput.Result
	if test {
		res, err = tx.Test(ctx)
	} else {
		res, err = tx.Apply(ctx)
	}
	if err != nil {
		return err
	}
	if res.Err != nil {
		return res.Err
	}
	if test {
		fmt.Fprintln(a.stdout, "configuration ok")
	}
	return nil
}

func findOutput(snap *wloutput.Snapshot, name string) (wloutput.Head, error) {
	head, ok := snap.ByName(name)
	if !ok {
		return head, &wloutput.ValidationError{Name: name, Reason: "no such output"}
	}
	return head, nil
}

func requireEnabled(head wloutput.Head) error {
	if !head.Enabled {
		return &wloutput.ValidationError{Head: head.ID, Name: head.Name, Reason: "output is disabled, enable it first"}
	}
	return nil
}

// align runs auto alignment for the moved head unless it is turned off.
func (a *app) align(snap *wloutput.Snapshot, changes []wloutput.HeadChange, moved wloutput.HeadID, noAlign bool) []wloutput.HeadChange {
	if !a.cfg.AutoAlign || noAlign || len(changes) == 0 {
		return changes
	}
	return layout.AutoAlign(snap, changes, moved)
}

func usageError(fs *flag.FlagSet, format string, args ...interface{}) int {
	fmt.Fprintf(fs.Output(), "error: "+format+"\n", args...)
	return exitUsage
}

func parseInt32(text string) (int32, error) {
	v, err := strconv.ParseInt(text, 10, 32)
	if err != nil {
		return 0, xerrors.Errorf("invalid number %q", text)
	}
	return int32(v), nil
}

func parseBool(text string) (bool, error) {
	switch text {
	case "true", "on", "enabled", "1":
		return true, nil
	case "false", "off", "disabled", "0":
		return false, nil
	}
	return false, xerrors.Errorf("invalid boolean %q", text)
}

func (a *app) runEnable(args []string, enabled bool) int {
	name, verb := "enable", "Enable"
	if !enabled {
		name, verb = "disable", "Disable"
	}
	fs := a.newFlagSet(name, "[-test] [-no-align] OUTPUT", verb+" an output.")
	test := fs.Bool("test", false, "only test the configuration")
	noAlign := fs.Bool("no-align", false, "do not align the layout")
	if code, ok := parseFlags(fs, args, 1, 1); !ok {
		return code
	}
	output := fs.Arg(0)

	return a.transact(*test, func(snap *wloutput.Snapshot) ([]wloutput.HeadChange, error) {
		head, err := findOutput(snap, output)
		if err != nil {
			return nil, err
		}
		if head.Enabled == enabled {
			return nil, nil
		}
		changes := []wloutput.HeadChange{wloutput.Change(head.ID).WithEnabled(enabled)}
		if enabled {
			changes = a.align(snap, changes, head.ID, *noAlign)
		}
		return changes, nil
	})
}

func (a *app) runMode(args []string) int {
	fs := a.newFlagSet("mode", "[options] OUTPUT WIDTH HEIGHT",
		"Set the mode of an output, enabling it when needed.")
	refresh := fs.String("refresh", "", "refresh rate in Hz, e.g. 59.94")
	custom := fs.Bool("custom", false, "request a custom mode instead of an advertised one")
	posX := fs.Int("pos-x", 0, "x position")
	posY := fs.Int("pos-y", 0, "y position")
	scaleText := fs.String("scale", "", "scale, e.g. 1.25, 125% or 5/4")
	transformText := fs.String("transform", "", "transform, e.g. normal, 90, flipped-270")
	adaptiveText := fs.String("adaptive-sync", "", "true or false")
	test := fs.Bool("test", false, "only test the configuration")
	noAlign := fs.Bool("no-align", false, "do not align the layout")
	if code, ok := parseFlags(fs, args, 3, 3); !ok {
		return code
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	output := fs.Arg(0)
	width, err := parseInt32(fs.Arg(1))
	if err != nil {
		return usageError(fs, "width: %v", err)
	}
	height, err := parseInt32(fs.Arg(2))
	if err != nil {
		return usageError(fs, "height: %v", err)
	}
	if width <= 0 || height <= 0 {
		return usageError(fs, "mode size must be positive")
	}
	var mhz int32
	if *refresh != "" {
		mhz, err = wloutput.ParseRefresh(*refresh)
		if err != nil {
			return usageError(fs, "refresh: %v", err)
		}
	}

	cfg := wloutput.HeadConfig{Name: output, Enabled: true}
	if !*custom {
		cfg.Mode = &wloutput.ModeSpec{Width: width, Height: height, Refresh: mhz}
	}
	if *scaleText != "" {
		scale, err := wloutput.ParseScale(*scaleText)
		if err != nil {
			return usageError(fs, "scale: %v", err)
		}
		cfg.Scale = &scale
	}
	if *transformText != "" {
		transform, err := wloutput.ParseTransform(*transformText)
		if err != nil {
			return usageError(fs, "transform: %v", err)
		}
		cfg.Transform = &transform
	}
	if *adaptiveText != "" {
		adaptive, err := parseBool(*adaptiveText)
		if err != nil {
			return usageError(fs, "adaptive-sync: %v", err)
		}
		cfg.AdaptiveSync = &adaptive
	}

	return a.transact(*test, func(snap *wloutput.Snapshot) ([]wloutput.HeadChange, error) {
		head, err := findOutput(snap, output)
		if err != nil {
			return nil, err
		}
		cfg.ID = head.ID
		if set["pos-x"] || set["pos-y"] {
			var pos wloutput.Position
			if head.Position != nil {
				pos = *head.Position
			}
			if set["pos-x"] {
				pos.X = int32(*posX)
			}
			if set["pos-y"] {
				pos.Y = int32(*posY)
			}
			cfg.Position = &pos
		}
		changes, err := wloutput.Diff(snap, []wloutput.HeadConfig{cfg})
		if err != nil {
			return nil, err
		}
		if *custom {
			changes = append(changes, wloutput.Change(head.ID).WithCustomMode(width, height, mhz))
		}
		return a.align(snap, changes, head.ID, *noAlign), nil
	})
}

func (a *app) runPosition(args []string) int {
	fs := a.newFlagSet("position", "[-test] [-no-align] OUTPUT X Y", "Move an output.")
	test := fs.Bool("test", false, "only test the configuration")
	noAlign := fs.Bool("no-align", false, "do not align the layout")
	if code, ok := parseFlags(fs, args, 3, 3); !ok {
		return code
	}
	output := fs.Arg(0)
	x, err := parseInt32(fs.Arg(1))
	if err != nil {
		return usageError(fs, "x: %v", err)
	}
	y, err := parseInt32(fs.Arg(2))
	if err != nil {
		return usageError(fs, "y: %v", err)
	}

	return a.transact(*test, func(snap *wloutput.Snapshot) ([]wloutput.HeadChange, error) {
		head, err := findOutput(snap, output)
		if err != nil {
			return nil, err
		}
		if err := requireEnabled(head); err != nil {
			return nil, err
		}
		changes := []wloutput.HeadChange{wloutput.Change(head.ID).WithPosition(x, y)}
		return a.align(snap, changes, head.ID, *noAlign), nil
	})
}

// runAttribute handles the commands that set a single attribute of an
// enabled output.
func (a *app) runAttribute(args []string, name, synopsis, description string,
	parse func(text string, change wloutput.HeadChange) (wloutput.HeadChange, error)) int {
	fs := a.newFlagSet(name, "[-test] [-no-align] "+synopsis, description)
	test := fs.Bool("test", false, "only test the configuration")
	noAlign := fs.Bool("no-align", false, "do not align the layout")
	if code, ok := parseFlags(fs, args, 2, 2); !ok {
		return code
	}
	output := fs.Arg(0)
	// parse once up front so that bad values are usage errors
	if _, err := parse(fs.Arg(1), wloutput.Change(0)); err != nil {
		return usageError(fs, "%v", err)
	}

	return a.transact(*test, func(snap *wloutput.Snapshot) ([]wloutput.HeadChange, error) {
		head, err := findOutput(snap, output)
		if err != nil {
			return nil, err
		}
		if err := requireEnabled(head); err != nil {
			return nil, err
		}
		change, err := parse(fs.Arg(1), wloutput.Change(head.ID))
		if err != nil {
			return nil, err
		}
		changes, err := wloutput.Diff(snap, []wloutput.HeadConfig{configFor(head, change)})
		if err != nil {
			return nil, err
		}
		return a.align(snap, changes, head.ID, *noAlign), nil
	})
}

// configFor turns a single-head change into a desired state so that Diff
// drops what already matches.
func configFor(head wloutput.Head, change wloutput.HeadChange) wloutput.HeadConfig {
	return wloutput.HeadConfig{
		ID:           head.ID,
		Name:         head.Name,
		Enabled:      true,
		Scale:        change.Scale,
		Transform:    change.Transform,
		AdaptiveSync: change.AdaptiveSync,
	}
}

func (a *app) runScale(args []string) int {
	return a.runAttribute(args, "scale", "OUTPUT SCALE", "Set the scale of an output.",
		func(text string, change wloutput.HeadChange) (wloutput.HeadChange, error) {
			scale, err := wloutput.ParseScale(text)
			if err != nil {
				return change, err
			}
			return change.WithScale(scale), nil
		})
}

func (a *app) runTransform(args []string) int {
	return a.runAttribute(args, "transform", "OUTPUT TRANSFORM", "Rotate or flip an output.",
		func(text string, change wloutput.HeadChange) (wloutput.HeadChange, error) {
			transform, err := wloutput.ParseTransform(text)
			if err != nil {
				return change, err
			}
			return change.WithTransform(transform), nil
		})
}

func (a *app) runAdaptiveSync(args []string) int {
	return a.runAttribute(args, "adaptive-sync", "OUTPUT true|false", "Toggle adaptive sync of an output.",
		func(text string, change wloutput.HeadChange) (wloutput.HeadChange, error) {
			enabled, err := parseBool(text)
			if err != nil {
				return change, err
			}
			return change.WithAdaptiveSync(enabled), nil
		})
}

func (a *app) runMirror(args []string) int {
	fs := a.newFlagSet("mirror", "[-test] OUTPUT FROM",
		"Place OUTPUT over FROM so that both show the same content.")
	test := fs.Bool("test", false, "only test the configuration")
	if code, ok := parseFlags(fs, args, 2, 2); !ok {
		return code
	}
	output, from := fs.Arg(0), fs.Arg(1)

	return a.transact(*test, func(snap *wloutput.Snapshot) ([]wloutput.HeadChange, error) {
		target, err := findOutput(snap, output)
		if err != nil {
			return nil, err
		}
		source, err := findOutput(snap, from)
		if err != nil {
			return nil, err
		}
		change, err := wloutput.MirrorChange(snap, target.ID, source.ID)
		if err != nil {
			return nil, err
		}
		return []wloutput.HeadChange{change}, nil
	})
}

func (a *app) runSwitch(args []string) int {
	fs := a.newFlagSet("switch", "[-test] extend|mirror|only-one [OUTPUT]",
		"Switch the display mode of all outputs.")
	test := fs.Bool("test", false, "only test the configuration")
	if code, ok := parseFlags(fs, args, 1, 2); !ok {
		return code
	}
	mode, output := fs.Arg(0), fs.Arg(1)
	switch mode {
	case layout.ModeExtend, layout.ModeMirror, layout.ModeOnlyOne:
	default:
		return usageError(fs, "unknown display mode %q", mode)
	}

	return a.transact(*test, func(snap *wloutput.Snapshot) ([]wloutput.HeadChange, error) {
		return layout.Switch(snap, mode, output)
	})
}
