// SPDX-FileCopyrightText: 2023 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package wloutput

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/xerrors"
)

// ModeID is the compositor assigned identity of a mode. Zero means no mode.
type ModeID uint32

// Mode is one resolution and refresh rate a head can be driven at.
// Refresh is in millihertz, 0 when the compositor did not report it.
type Mode struct {
	ID        ModeID
	Width     int32
	Height    int32
	Refresh   int32
	Preferred bool
}

func (m Mode) String() string {
	return fmt.Sprintf("%dx%d@%s", m.Width, m.Height, FormatRefresh(m.Refresh))
}

func (m Mode) name() string {
	return fmt.Sprintf("%dx%d", m.Width, m.Height)
}

func (m Mode) area() int64 {
	return int64(m.Width) * int64(m.Height)
}

// FormatRefresh formats a millihertz value as hertz with three decimals.
func FormatRefresh(mhz int32) string {
	return fmt.Sprintf("%d.%03d", mhz/1000, mhz%1000)
}

// ParseRefresh parses a refresh rate given in hertz ("60", "59.951") into
// millihertz without going through floating point.
func ParseRefresh(s string) (int32, error) {
	s = strings.TrimSuffix(strings.TrimSpace(s), "Hz")
	intPart, fracPart, _ := strings.Cut(s, ".")
	if intPart == "" && fracPart == "" {
		return 0, xerrors.Errorf("invalid refresh rate %q", s)
	}
	if intPart == "" {
		intPart = "0"
	}
	hz, err := strconv.ParseUint(intPart, 10, 31)
	if err != nil {
		return 0, xerrors.Errorf("invalid refresh rate %q: %w", s, err)
	}
	if len(fracPart) > 3 {
		fracPart = fracPart[:3]
	}
	fracPart += strings.Repeat("0", 3-len(fracPart))
	frac, err := strconv.ParseUint(fracPart, 10, 16)
	if err != nil {
		return 0, xerrors.Errorf("invalid refresh rate %q: %w", s, err)
	}
	mhz := hz*1000 + frac
	if mhz > 1<<31-1 {
		return 0, xerrors.Errorf("refresh rate %q out of range", s)
	}
	return int32(mhz), nil
}

type Modes []Mode

func (modes Modes) Find(id ModeID) (Mode, bool) {
	for _, mode := range modes {
		if mode.ID == id {
			return mode, true
		}
	}
	return Mode{}, false
}

func (modes Modes) Contains(id ModeID) bool {
	_, ok := modes.Find(id)
	return ok
}

func (modes Modes) Preferred() (Mode, bool) {
	for _, mode := range modes {
		if mode.Preferred {
			return mode, true
		}
	}
	return Mode{}, false
}

// Best returns the preferred mode, or the mode with the largest area and
// then the highest refresh rate when no mode is preferred.
func (modes Modes) Best() (Mode, bool) {
	if mode, ok := modes.Preferred(); ok {
		return mode, true
	}
	return getMaxAreaMode(modes)
}

func getMaxAreaMode(modes Modes) (Mode, bool) {
	if len(modes) == 0 {
		return Mode{}, false
	}
	maxAreaMode := modes[0]
	for _, mode := range modes[1:] {
		if maxAreaMode.area() < mode.area() ||
			(maxAreaMode.area() == mode.area() && maxAreaMode.Refresh < mode.Refresh) {
			maxAreaMode = mode
		}
	}
	return maxAreaMode, true
}

// Match finds a mode of the given size whose refresh rate is within
// tolerance millihertz of refresh, picking the closest one. A zero refresh
// matches the highest refresh rate of that size.
func (modes Modes) Match(width, height, refresh, tolerance int32) (Mode, bool) {
	var (
		found bool
		best  Mode
		dist  int32
	)
	for _, mode := range modes {
		if mode.Width != width || mode.Height != height {
			continue
		}
		if refresh == 0 {
			if !found || mode.Refresh > best.Refresh {
				best, found = mode, true
			}
			continue
		}
		d := mode.Refresh - refresh
		if d < 0 {
			d = -d
		}
		if d > tolerance {
			continue
		}
		if !found || d < dist {
			best, dist, found = mode, d, true
		}
	}
	return best, found
}

// Sizes returns the distinct mode sizes in enumeration order.
func (modes Modes) Sizes() [][2]int32 {
	var result [][2]int32
	seen := make(map[[2]int32]bool)
	for _, mode := range modes {
		size := [2]int32{mode.Width, mode.Height}
		if seen[size] {
			continue
		}
		seen[size] = true
		result = append(result, size)
	}
	return result
}
