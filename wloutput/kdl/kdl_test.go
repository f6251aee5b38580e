// SPDX-FileCopyrightText: 2023 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package kdl

import (
	"errors"
	"strings"
	"testing"

	"github.com/linuxdeepin/dde-wloutput/wloutput"
	"github.com/smartystreets/goconvey/convey"
)

func testSnapshot(t *testing.T) *wloutput.Snapshot {
	twoThirds, err := wloutput.NewScale(4, 3)
	if err != nil {
		t.Fatal(err)
	}
	oneAndQuarter, err := wloutput.NewScale(5, 4)
	if err != nil {
		t.Fatal(err)
	}
	return &wloutput.Snapshot{
		Serial:     3,
		Generation: 1,
		Heads: []wloutput.Head{
			{
				ID:                    42,
				Name:                  "DP-1",
				Description:           `Dell Inc. "DELL" U2720Q`,
				Make:                  "Dell Inc.",
				Model:                 "DELL U2720Q",
				SerialNumber:          "ABC123",
				PhysicalWidth:         600,
				PhysicalHeight:        340,
				Enabled:               true,
				Position:              &wloutput.Position{X: 0, Y: 0},
				Scale:                 oneAndQuarter,
				Transform:             wloutput.TransformNormal,
				AdaptiveSyncSupported: true,
				Modes: wloutput.Modes{
					{ID: 1, Width: 3840, Height: 2160, Refresh: 60000, Preferred: true},
					{ID: 2, Width: 1920, Height: 1080, Refresh: 60000},
					{ID: 3, Width: 1920, Height: 1080, Refresh: 59940},
				},
				CurrentMode: 1,
			},
			{
				ID:          43,
				Name:        "HDMI-A-1",
				Description: "Unknown",
				Enabled:     true,
				Position:    &wloutput.Position{X: 3072, Y: 0},
				Scale:       twoThirds,
				Transform:   wloutput.TransformRotate90,
				Modes: wloutput.Modes{
					{ID: 4, Width: 1280, Height: 1024, Refresh: 75025},
				},
				CurrentMode: 4,
			},
			{
				ID:          44,
				Name:        "eDP-1",
				Description: "Built-in",
				Scale:       wloutput.ScaleOne,
				Modes: wloutput.Modes{
					{ID: 5, Width: 2560, Height: 1600, Refresh: 165000, Preferred: true},
				},
			},
		},
	}
}

func TestParse(t *testing.T) {
	convey.Convey("Parse KDL documents", t, func() {
		convey.Convey("nodes, arguments, properties and children", func() {
			nodes, err := Parse(`
// leading comment
output "DP-1" id=0x2a enabled=#true {
    position 10 -20; scale 1.5
    /* block /* nested */ comment */
    modes {
        mode 1920 1080 60000 current=true
    }
}
`)
			convey.So(err, convey.ShouldBeNil)
			convey.So(nodes, convey.ShouldHaveLength, 1)
			out := nodes[0]
			convey.So(out.Name, convey.ShouldEqual, "output")
			convey.So(out.Line, convey.ShouldEqual, 3)
			convey.So(out.Args[0].Text, convey.ShouldEqual, "DP-1")
			id, err := out.Props["id"].Int(32)
			convey.So(err, convey.ShouldBeNil)
			convey.So(id, convey.ShouldEqual, int64(42))
			convey.So(out.Props["enabled"].Bool, convey.ShouldBeTrue)
			convey.So(out.Children, convey.ShouldHaveLength, 3)
			convey.So(out.Children[0].Name, convey.ShouldEqual, "position")
			convey.So(out.Children[1].Name, convey.ShouldEqual, "scale")
			convey.So(out.Children[1].Args[0].Kind, convey.ShouldEqual, KindNumber)
			convey.So(out.Children[1].Args[0].Text, convey.ShouldEqual, "1.5")
			mode := out.Children[2].Children[0]
			convey.So(mode.Args, convey.ShouldHaveLength, 3)
			convey.So(mode.Props["current"].Bool, convey.ShouldBeTrue)
		})

		convey.Convey("slashdash discards nodes, entries and blocks", func() {
			nodes, err := Parse(`
/-output "gone" { scale 2 }
output "kept" /-id=1 /-"arg" {
    /-position 1 2
    transform "rotate90"
} /-{
    scale 3
}
`)
			convey.So(err, convey.ShouldBeNil)
			convey.So(nodes, convey.ShouldHaveLength, 1)
			convey.So(nodes[0].Args, convey.ShouldHaveLength, 1)
			convey.So(nodes[0].Props, convey.ShouldBeEmpty)
			convey.So(nodes[0].Children, convey.ShouldHaveLength, 1)
			convey.So(nodes[0].Children[0].Name, convey.ShouldEqual, "transform")
		})

		convey.Convey("strings", func() {
			nodes, err := Parse(`n "a\"b\n\u{263a}" r#"raw "quoted""# #"also raw"# bare-word`)
			convey.So(err, convey.ShouldBeNil)
			args := nodes[0].Args
			convey.So(args[0].Text, convey.ShouldEqual, "a\"b\n\u263a")
			convey.So(args[1].Text, convey.ShouldEqual, `raw "quoted"`)
			convey.So(args[2].Text, convey.ShouldEqual, "also raw")
			convey.So(args[3].Text, convey.ShouldEqual, "bare-word")
		})

		convey.Convey("line continuation", func() {
			nodes, err := Parse("position \\ // continued\n  1 2\n")
			convey.So(err, convey.ShouldBeNil)
			convey.So(nodes[0].Args, convey.ShouldHaveLength, 2)
		})

		convey.Convey("keywords in argument position", func() {
			nodes, err := Parse(`adaptive_sync #false "#true" #null true; enabled #true`)
			convey.So(err, convey.ShouldBeNil)
			convey.So(nodes, convey.ShouldHaveLength, 2)
			args := nodes[0].Args
			convey.So(args, convey.ShouldHaveLength, 4)
			convey.So(args[0].Kind, convey.ShouldEqual, KindBool)
			convey.So(args[0].Bool, convey.ShouldBeFalse)
			convey.So(args[1].Kind, convey.ShouldEqual, KindString)
			convey.So(args[1].Text, convey.ShouldEqual, "#true")
			convey.So(args[2].Kind, convey.ShouldEqual, KindNull)
			convey.So(args[3].Bool, convey.ShouldBeTrue)
			convey.So(nodes[1].Args[0].Bool, convey.ShouldBeTrue)
			convey.So(nodes[1].Props, convey.ShouldBeEmpty)
		})

		convey.Convey("errors carry a position", func() {
			tests := []struct {
				text string
				line int
				col  int
			}{
				{"output \"DP-1\" {\n    position 1 2\n", 3, 1},
				{"output \"DP-1\n", 1, 8},
				{"a\n}\n", 2, 1},
				{"a 1x2\n", 1, 3},
				{"a #maybe\n", 1, 9},
				{"a /* open\n", 1, 3},
				{"a \"\\q\"\n", 1, 6},
			}
			for _, tt := range tests {
				_, err := Parse(tt.text)
				var perr *ParseError
				convey.So(errors.As(err, &perr), convey.ShouldBeTrue)
				convey.So(perr.Line, convey.ShouldEqual, tt.line)
				convey.So(perr.Col, convey.ShouldEqual, tt.col)
			}
		})
	})
}

func TestEncode(t *testing.T) {
	convey.Convey("Encode a snapshot", t, func() {
		text := Encode(testSnapshot(t))

		convey.So(text, convey.ShouldStartWith, `output "DP-1" id=42 enabled=#true {`)
		convey.So(text, convey.ShouldContainSubstring, `description "Dell Inc. \"DELL\" U2720Q" make="Dell Inc." model="DELL U2720Q"`)
		convey.So(text, convey.ShouldContainSubstring, `serial_number "ABC123"`)
		convey.So(text, convey.ShouldContainSubstring, "scale 1.25\n")
		convey.So(text, convey.ShouldContainSubstring, `scale "4/3"`)
		convey.So(text, convey.ShouldContainSubstring, `transform "rotate90"`)
		convey.So(text, convey.ShouldContainSubstring, "adaptive_sync #false")
		convey.So(text, convey.ShouldContainSubstring, "mode 3840 2160 60000 current=#true preferred=#true")
		convey.So(text, convey.ShouldContainSubstring, "mode 1920 1080 59940\n")

		convey.Convey("disabled heads have no position or current mode", func() {
			i := strings.Index(text, `output "eDP-1"`)
			convey.So(i, convey.ShouldBeGreaterThan, 0)
			edp := text[i:]
			convey.So(edp, convey.ShouldStartWith, `output "eDP-1" id=44 enabled=#false {`)
			convey.So(edp, convey.ShouldNotContainSubstring, "position")
			convey.So(edp, convey.ShouldNotContainSubstring, "current=")
			convey.So(edp, convey.ShouldNotContainSubstring, "adaptive_sync")
			convey.So(edp, convey.ShouldContainSubstring, "mode 2560 1600 165000 preferred=#true")
		})
	})
}

func TestDecode(t *testing.T) {
	convey.Convey("Decode output blocks", t, func() {
		convey.Convey("full block", func() {
			configs, err := Decode(`
output "DP-1" id=42 {
    description "Dell" make="Dell Inc." model="U2720Q"
    serial_number "ABC123"
    physical 600 340
    position 1920 -10
    scale "5/4"
    transform "flipped-90"
    adaptive_sync true
    unknown_node 1 2 3
    modes {
        mode 3840 2160 60000 preferred=#true
        mode 1920 1080 59940 current=#true
    }
}
`)
			convey.So(err, convey.ShouldBeNil)
			convey.So(configs, convey.ShouldHaveLength, 1)
			cfg := configs[0]
			convey.So(cfg.ID, convey.ShouldEqual, wloutput.HeadID(42))
			convey.So(cfg.Name, convey.ShouldEqual, "DP-1")
			convey.So(cfg.Make, convey.ShouldEqual, "Dell Inc.")
			convey.So(cfg.Model, convey.ShouldEqual, "U2720Q")
			convey.So(cfg.SerialNumber, convey.ShouldEqual, "ABC123")
			convey.So(cfg.Enabled, convey.ShouldBeTrue)
			convey.So(*cfg.Position, convey.ShouldResemble, wloutput.Position{X: 1920, Y: -10})
			convey.So(cfg.Scale.String(), convey.ShouldEqual, "1.25")
			convey.So(*cfg.Transform, convey.ShouldEqual, wloutput.TransformFlipped90)
			convey.So(*cfg.AdaptiveSync, convey.ShouldBeTrue)
			convey.So(*cfg.Mode, convey.ShouldResemble, wloutput.ModeSpec{Width: 1920, Height: 1080, Refresh: 59940})
		})

		convey.Convey("short forms", func() {
			configs, err := Decode(`
output "HDMI-A-1" { mode 1280 1024; scale "150%"; transform 270 }
output "eDP-1" enabled=#false { position 5 5 }
`)
			convey.So(err, convey.ShouldBeNil)
			convey.So(configs, convey.ShouldHaveLength, 2)
			convey.So(*configs[0].Mode, convey.ShouldResemble, wloutput.ModeSpec{Width: 1280, Height: 1024})
			convey.So(configs[0].Scale.String(), convey.ShouldEqual, "1.5")
			convey.So(*configs[0].Transform, convey.ShouldEqual, wloutput.TransformRotate270)
			convey.So(configs[1].Enabled, convey.ShouldBeFalse)
			convey.So(configs[1].Position, convey.ShouldBeNil)
		})

		convey.Convey("semantic errors point at the node", func() {
			_, err := Decode("output \"DP-1\" {\n    scale \"fast\"\n}\n")
			var perr *ParseError
			convey.So(errors.As(err, &perr), convey.ShouldBeTrue)
			convey.So(perr.Line, convey.ShouldEqual, 2)
			convey.So(perr.Col, convey.ShouldEqual, 5)

			_, err = Decode("output \"DP-1\" {\n    position 1\n}\n")
			convey.So(errors.As(err, &perr), convey.ShouldBeTrue)
			convey.So(perr.Line, convey.ShouldEqual, 2)

			_, err = Decode("output 12\n")
			convey.So(err, convey.ShouldNotBeNil)
		})

		convey.Convey("round trip leaves nothing to change", func() {
			snap := testSnapshot(t)
			configs, err := Decode(Encode(snap))
			convey.So(err, convey.ShouldBeNil)
			convey.So(configs, convey.ShouldHaveLength, 3)
			changes, err := wloutput.Diff(snap, configs)
			convey.So(err, convey.ShouldBeNil)
			convey.So(changes, convey.ShouldBeEmpty)
		})

		convey.Convey("an edited document diffs against the snapshot", func() {
			snap := testSnapshot(t)
			text := strings.Replace(Encode(snap), `output "eDP-1" id=44 enabled=#false`, `output "eDP-1" id=44 enabled=#true`, 1)
			configs, err := Decode(text)
			convey.So(err, convey.ShouldBeNil)
			changes, err := wloutput.Diff(snap, configs)
			convey.So(err, convey.ShouldBeNil)
			convey.So(changes, convey.ShouldHaveLength, 1)
			convey.So(changes[0].Head, convey.ShouldEqual, wloutput.HeadID(44))
			convey.So(*changes[0].Enabled, convey.ShouldBeTrue)
		})
	})
}
