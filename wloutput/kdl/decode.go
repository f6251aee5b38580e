// SPDX-FileCopyrightText: 2023 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package kdl

import (
	"fmt"

	"github.com/linuxdeepin/dde-wloutput/wloutput"
)

func nodeError(n *Node, format string, args ...interface{}) *ParseError {
	return &ParseError{Line: n.Line, Col: n.Col, Msg: n.Name + ": " + fmt.Sprintf(format, args...)}
}

// Decode parses a document into the desired state of each output it names.
// Unknown nodes and properties are ignored.
func Decode(text string) ([]wloutput.HeadConfig, error) {
	nodes, err := Parse(text)
	if err != nil {
		return nil, err
	}
	var configs []wloutput.HeadConfig
	for _, n := range nodes {
		if n.Name != "output" {
			continue
		}
		cfg, err := decodeOutput(n)
		if err != nil {
			return nil, err
		}
		configs = append(configs, cfg)
	}
	return configs, nil
}

func stringArg(n *Node, i int) (string, error) {
	v, ok := n.Arg(i)
	if !ok {
		return "", nodeError(n, "missing argument %d", i+1)
	}
	if v.Kind != KindString {
		return "", nodeError(n, "argument %d must be a string", i+1)
	}
	return v.Text, nil
}

func intArg(n *Node, i int) (int32, error) {
	v, ok := n.Arg(i)
	if !ok {
		return 0, nodeError(n, "missing argument %d", i+1)
	}
	num, err := v.Int(32)
	if err != nil {
		return 0, nodeError(n, "argument %d: %v", i+1, err)
	}
	return int32(num), nil
}

func boolValue(n *Node, v Value) (bool, error) {
	switch {
	case v.Kind == KindBool:
		return v.Bool, nil
	case v.Kind == KindString && (v.Text == "enabled" || v.Text == "on"):
		return true, nil
	case v.Kind == KindString && (v.Text == "disabled" || v.Text == "off"):
		return false, nil
	}
	return false, nodeError(n, "expected a boolean, got %q", v.String())
}

func stringProp(n *Node, key string) (string, error) {
	v, ok := n.Prop(key)
	if !ok {
		return "", nil
	}
	if v.Kind != KindString {
		return "", nodeError(n, "property %s must be a string", key)
	}
	return v.Text, nil
}

func decodeOutput(n *Node) (wloutput.HeadConfig, error) {
	var cfg wloutput.HeadConfig
	name, err := stringArg(n, 0)
	if err != nil {
		return cfg, err
	}
	cfg.Name = name
	cfg.Enabled = true

	if v, ok := n.Prop("id"); ok {
		id, err := v.Int(64)
		if err != nil || id < 0 || id > 1<<32-1 {
			return cfg, nodeError(n, "invalid id %q", v.String())
		}
		cfg.ID = wloutput.HeadID(id)
	}
	if v, ok := n.Prop("enabled"); ok {
		if cfg.Enabled, err = boolValue(n, v); err != nil {
			return cfg, err
		}
	}

	for _, child := range n.Children {
		if err := decodeOutputChild(&cfg, child); err != nil {
			return cfg, err
		}
	}

	if !cfg.Enabled {
		return wloutput.HeadConfig{
			ID:           cfg.ID,
			Name:         cfg.Name,
			Make:         cfg.Make,
			Model:        cfg.Model,
			SerialNumber: cfg.SerialNumber,
		}, nil
	}
	return cfg, nil
}

func decodeOutputChild(cfg *wloutput.HeadConfig, n *Node) error {
	var err error
	switch n.Name {
	case "enabled":
		v, ok := n.Arg(0)
		if !ok {
			return nodeError(n, "missing argument 1")
		}
		cfg.Enabled, err = boolValue(n, v)

	case "description":
		if cfg.Make, err = stringProp(n, "make"); err != nil {
			return err
		}
		cfg.Model, err = stringProp(n, "model")
	case "make":
		cfg.Make, err = stringArg(n, 0)
	case "model":
		cfg.Model, err = stringArg(n, 0)
	case "serial_number", "serial":
		cfg.SerialNumber, err = stringArg(n, 0)

	case "position":
		var x, y int32
		if x, err = intArg(n, 0); err != nil {
			return err
		}
		if y, err = intArg(n, 1); err != nil {
			return err
		}
		cfg.Position = &wloutput.Position{X: x, Y: y}

	case "scale":
		v, ok := n.Arg(0)
		if !ok || v.Kind == KindBool || v.Kind == KindNull {
			return nodeError(n, "expected a scale")
		}
		scale, perr := wloutput.ParseScale(v.Text)
		if perr != nil {
			return nodeError(n, "%v", perr)
		}
		cfg.Scale = &scale

	case "transform":
		v, ok := n.Arg(0)
		if !ok || v.Kind == KindBool || v.Kind == KindNull {
			return nodeError(n, "expected a transform")
		}
		transform, perr := wloutput.ParseTransform(v.Text)
		if perr != nil {
			return nodeError(n, "%v", perr)
		}
		cfg.Transform = &transform

	case "adaptive_sync":
		v, ok := n.Arg(0)
		if !ok {
			return nodeError(n, "missing argument 1")
		}
		var enabled bool
		if enabled, err = boolValue(n, v); err != nil {
			return err
		}
		cfg.AdaptiveSync = &enabled

	case "mode":
		cfg.Mode, err = decodeMode(n)

	case "modes":
		for _, m := range n.Children {
			if m.Name != "mode" {
				continue
			}
			current, ok := m.Prop("current")
			if !ok {
				continue
			}
			isCurrent, err := boolValue(m, current)
			if err != nil {
				return err
			}
			if !isCurrent {
				continue
			}
			if cfg.Mode, err = decodeMode(m); err != nil {
				return err
			}
		}
	}
	return err
}

// decodeMode reads "mode WIDTH HEIGHT [REFRESH]" with the refresh rate in
// millihertz.
func decodeMode(n *Node) (*wloutput.ModeSpec, error) {
	w, err := intArg(n, 0)
	if err != nil {
		return nil, err
	}
	h, err := intArg(n, 1)
	if err != nil {
		return nil, err
	}
	spec := &wloutput.ModeSpec{Width: w, Height: h}
	if _, ok := n.Arg(2); ok {
		if spec.Refresh, err = intArg(n, 2); err != nil {
			return nil, err
		}
	}
	if w <= 0 || h <= 0 || spec.Refresh < 0 {
		return nil, nodeError(n, "invalid mode %dx%d@%d", w, h, spec.Refresh)
	}
	return spec, nil
}
