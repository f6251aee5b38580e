// SPDX-FileCopyrightText: 2023 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/linuxdeepin/dde-wloutput/config"
	"github.com/linuxdeepin/dde-wloutput/wloutput"
	"github.com/linuxdeepin/dde-wloutput/wloutput/kdl"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

type listStyles struct {
	name     lipgloss.Style
	enabled  lipgloss.Style
	disabled lipgloss.Style
	label    lipgloss.Style
	current  lipgloss.Style
	dim      lipgloss.Style
}

func newListStyles(color bool) listStyles {
	if !color {
		plain := lipgloss.NewStyle()
		return listStyles{plain, plain, plain, plain, plain, plain}
	}
	return listStyles{
		name:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")),
		enabled:  lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		disabled: lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		label:    lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
		current:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62")),
		dim:      lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (a *app) runList(args []string) int {
	fs := a.newFlagSet("list", "[-kdl|-json|-yaml]", "List outputs and their modes.")
	asKDL := fs.Bool("kdl", false, "print the layout document")
	asJSON := fs.Bool("json", false, "print JSON")
	asYAML := fs.Bool("yaml", false, "print YAML")
	if code, ok := parseFlags(fs, args, 0, 0); !ok {
		return code
	}

	format := a.cfg.ListFormat
	switch {
	case *asKDL:
		format = config.FormatKDL
	case *asJSON:
		format = config.FormatJSON
	case *asYAML:
		format = config.FormatYAML
	}

	ctx, cancel := signalContext()
	defer cancel()
	err := a.withClient(ctx, func(client *wloutput.Client) error {
		return writeList(a.stdout, client.Snapshot(), format, isTerminal(a.stdout))
	})
	return a.report(err)
}

func writeList(w io.Writer, snap *wloutput.Snapshot, format string, color bool) error {
	switch format {
	case config.FormatKDL:
		_, err := io.WriteString(w, kdl.Encode(snap))
		return err
	case config.FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(snap.Infos())
	case config.FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(snap.Infos()); err != nil {
			return err
		}
		return enc.Close()
	}
	_, err := io.WriteString(w, formatPlain(snap, newListStyles(color)))
	return err
}

func formatPlain(snap *wloutput.Snapshot, st listStyles) string {
	var sb strings.Builder
	for i, head := range snap.Heads {
		if i > 0 {
			sb.WriteByte('\n')
		}
		state := st.enabled.Render("(enabled)")
		if !head.Enabled {
			state = st.disabled.Render("(disabled)")
		}
		fmt.Fprintf(&sb, "%s %s", st.name.Render(head.Name), state)
		if head.Description != "" {
			fmt.Fprintf(&sb, " %s", st.dim.Render(head.Description))
		}
		sb.WriteByte('\n')

		field := func(label, format string, args ...interface{}) {
			fmt.Fprintf(&sb, "  %s %s\n", st.label.Render(label+":"), fmt.Sprintf(format, args...))
		}
		if head.Make != "" {
			field("Make", "%s", head.Make)
		}
		if head.Model != "" {
			field("Model", "%s", head.Model)
		}
		if head.SerialNumber != "" {
			field("Serial Number", "%s", head.SerialNumber)
		}
		if head.PhysicalWidth != 0 || head.PhysicalHeight != 0 {
			field("Physical Size", "%d x %d mm", head.PhysicalWidth, head.PhysicalHeight)
		}
		if head.Enabled && head.Position != nil {
			field("Position", "%s", head.Position)
		}
		field("Scale", "%s", head.Scale)
		field("Transform", "%s", head.Transform)
		if head.AdaptiveSyncSupported {
			field("Adaptive Sync", "%v", head.AdaptiveSync)
		}
		if len(head.Modes) > 0 {
			fmt.Fprintf(&sb, "  %s\n", st.label.Render("Modes:"))
		}
		for _, mode := range head.Modes {
			text := fmt.Sprintf("%dx%d @ %s Hz", mode.Width, mode.Height, wloutput.FormatRefresh(mode.Refresh))
			if head.Enabled && mode.ID == head.CurrentMode {
				text = st.current.Render(text + " (current)")
			}
			if mode.Preferred {
				text += " " + st.dim.Render("(preferred)")
			}
			fmt.Fprintf(&sb, "    %s\n", text)
		}
	}
	return sb.String()
}
