// SPDX-FileCopyrightText: 2023 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/davecgh/go-spew/spew"
	"github.com/linuxdeepin/go-lib/log"
	"github.com/linuxdeepin/go-lib/xdg/basedir"
	"golang.org/x/xerrors"
)

const sysConfigFile = "/usr/share/dde-wloutput/config.json"

// Listing formats.
const (
	FormatPlain = "plain"
	FormatKDL   = "kdl"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

var logger = log.NewLogger("dde-wloutput/config")

type Config struct {
	// LogLevel is one of error, warning, info and debug.
	LogLevel string `json:"log-level"`
	// ListFormat is the default format of the list command.
	ListFormat string `json:"list-format"`
	// AutoAlign attaches a moved output to its nearest neighbour and keeps
	// the layout anchored at the origin.
	AutoAlign bool `json:"auto-align"`
	// MaxProtocolVersion caps the negotiated zwlr_output_manager_v1
	// version; 0 means no cap.
	MaxProtocolVersion uint32 `json:"max-protocol-version"`
	// Display overrides WAYLAND_DISPLAY.
	Display string `json:"display,omitempty"`
}

func Default() *Config {
	return &Config{
		LogLevel:   "info",
		ListFormat: FormatPlain,
		AutoAlign:  true,
	}
}

// Path returns the per-user configuration file.
func Path() string {
	return filepath.Join(basedir.GetUserConfigDir(), "deepin", "dde-wloutput", "config.json")
}

// Load reads filename, or the per-user file when filename is empty, falling
// back to the system file. Defaults are returned when neither exists; fields
// missing from the file keep their defaults.
func Load(filename string) (*Config, error) {
	if filename == "" {
		filename = Path()
	}
	content, err := os.ReadFile(filename)
	if os.IsNotExist(err) {
		content, err = os.ReadFile(sysConfigFile)
	}
	if os.IsNotExist(err) {
		logger.Debug("no config file, using defaults")
		return Default(), nil
	}
	if err != nil {
		return nil, err
	}

	cfg := Default()
	err = json.Unmarshal(content, cfg)
	if err != nil {
		return nil, xerrors.Errorf("failed to parse config %s: %w", filename, err)
	}
	err = cfg.Validate()
	if err != nil {
		return nil, xerrors.Errorf("invalid config %s: %w", filename, err)
	}
	logger.Debug("load config:", spew.Sdump(cfg))
	return cfg, nil
}

func (c *Config) Validate() error {
	if _, ok := priorities[c.LogLevel]; !ok {
		return xerrors.Errorf("unknown log level %q", c.LogLevel)
	}
	switch c.ListFormat {
	case FormatPlain, FormatKDL, FormatJSON, FormatYAML:
	default:
		return xerrors.Errorf("unknown list format %q", c.ListFormat)
	}
	return nil
}

var priorities = map[string]log.Priority{
	"error":   log.LevelError,
	"warning": log.LevelWarning,
	"info":    log.LevelInfo,
	"debug":   log.LevelDebug,
}

// Priority returns the log level as a go-lib log priority.
func (c *Config) Priority() log.Priority {
	if p, ok := priorities[c.LogLevel]; ok {
		return p
	}
	return log.LevelInfo
}

func SetLogLevel(level log.Priority) {
	logger.SetLogLevel(level)
}
