// SPDX-FileCopyrightText: 2023 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package kdl

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/linuxdeepin/dde-wloutput/wloutput"
)

const indent = "    "

// Quote formats s as a KDL string literal.
func Quote(s string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			if unicode.IsControl(r) || isNewline(r) {
				fmt.Fprintf(&sb, `\u{%x}`, r)
				continue
			}
			sb.WriteRune(r)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}

func formatBool(b bool) string {
	if b {
		return "#true"
	}
	return "#false"
}

func formatScale(s wloutput.Scale) string {
	text := s.String()
	if strings.Contains(text, "/") {
		return Quote(text)
	}
	return text
}

// Encode writes one output block per head of snap, in enumeration order.
func Encode(snap *wloutput.Snapshot) string {
	var sb strings.Builder
	for i, head := range snap.Heads {
		if i > 0 {
			sb.WriteByte('\n')
		}
		encodeHead(&sb, head)
	}
	return sb.String()
}

func encodeHead(sb *strings.Builder, head wloutput.Head) {
	line := func(depth int, format string, args ...interface{}) {
		sb.WriteString(strings.Repeat(indent, depth))
		fmt.Fprintf(sb, format, args...)
		sb.WriteByte('\n')
	}

	line(0, "output %s id=%d enabled=%s {", Quote(head.Name), head.ID, formatBool(head.Enabled))

	desc := "description " + Quote(head.Description)
	if head.Make != "" {
		desc += " make=" + Quote(head.Make)
	}
	if head.Model != "" {
		desc += " model=" + Quote(head.Model)
	}
	line(1, "%s", desc)
	if head.SerialNumber != "" {
		line(1, "serial_number %s", Quote(head.SerialNumber))
	}
	if head.PhysicalWidth != 0 || head.PhysicalHeight != 0 {
		line(1, "physical %d %d", head.PhysicalWidth, head.PhysicalHeight)
	}
	if head.Enabled && head.Position != nil {
		line(1, "position %d %d", head.Position.X, head.Position.Y)
	}
	line(1, "scale %s", formatScale(head.Scale))
	line(1, "transform %s", Quote(head.Transform.String()))
	if head.AdaptiveSyncSupported {
		line(1, "adaptive_sync %s", formatBool(head.AdaptiveSync))
	}

	if len(head.Modes) > 0 {
		line(1, "modes {")
		for _, mode := range head.Modes {
			entry := fmt.Sprintf("mode %d %d %d", mode.Width, mode.Height, mode.Refresh)
			if head.Enabled && mode.ID == head.CurrentMode {
				entry += " current=#true"
			}
			if mode.Preferred {
				entry += " preferred=#true"
			}
			line(2, "%s", entry)
		}
		line(1, "}")
	}
	line(0, "}")
}
