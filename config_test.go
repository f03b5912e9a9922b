package main

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

const testYaml = `
host: 10.0.0.42
command_port: 9100
video_port: 8081
token: sesame
gestures:
  hold_delay_ms: 500
  swipe_threshold_px: 45
`

func writeTestConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "rover.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRoverConfigParsing(t *testing.T) {
	Convey("parsing is successful", t, func() {
		config, err := LoadRoverConfig(writeTestConfig(t, testYaml))
		So(err, ShouldBeNil)
		So(config.Host, ShouldEqual, "10.0.0.42")
		So(config.Token, ShouldEqual, "sesame")

		Convey("the video url is assembled from host and port", func() {
			So(config.VideoURL(), ShouldEqual, "http://10.0.0.42:8081/stream")
		})

		Convey("set gesture values are kept and missing ones default", func() {
			So(config.Gestures.HoldDelayMs, ShouldEqual, 500)
			So(config.Gestures.SwipeThresholdPx, ShouldEqual, 45)
			So(config.Gestures.DoubleTapMs, ShouldEqual, 300)
			So(config.Gestures.MoveThresholdPx, ShouldEqual, 20)
		})
	})

	Convey("omitting ports falls back to defaults", t, func() {
		config, err := LoadRoverConfig(writeTestConfig(t, "host: 10.0.0.1\ntoken: x\n"))
		So(err, ShouldBeNil)
		So(config.CommandPort, ShouldEqual, 9000)
		So(config.VideoPort, ShouldEqual, 8080)
	})

	Convey("a missing file is an error", t, func() {
		_, err := LoadRoverConfig("/does/not/exist.yaml")
		So(err, ShouldNotBeNil)
	})
}
