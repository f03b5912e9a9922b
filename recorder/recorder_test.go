package recorder

import (
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestRecorder(t *testing.T) {
	Convey("events round-trip through the trip log", t, func() {
		r, err := Open(filepath.Join(t.TempDir(), "trip.db"))
		So(err, ShouldBeNil)
		defer r.Close()

		r.Record("state", "connected")
		r.Record("command", "forward")
		r.Record("command", "stop")

		events, err := r.Tail(10)
		So(err, ShouldBeNil)
		So(len(events), ShouldEqual, 3)
		So(events[0].Detail, ShouldEqual, "connected")
		So(events[2].Detail, ShouldEqual, "stop")
		So(events[2].At, ShouldNotBeZeroValue)
	})

	Convey("tail is bounded to the newest events", t, func() {
		r, err := Open(filepath.Join(t.TempDir(), "trip.db"))
		So(err, ShouldBeNil)
		defer r.Close()

		for _, dir := range []string{"forward", "forward", "left", "right", "stop"} {
			r.Record("command", dir)
		}

		events, err := r.Tail(2)
		So(err, ShouldBeNil)
		So(len(events), ShouldEqual, 2)
		So(events[0].Detail, ShouldEqual, "right")
		So(events[1].Detail, ShouldEqual, "stop")
	})

	Convey("tail on an empty log is empty, not an error", t, func() {
		r, err := Open(filepath.Join(t.TempDir(), "trip.db"))
		So(err, ShouldBeNil)
		defer r.Close()

		events, err := r.Tail(5)
		So(err, ShouldBeNil)
		So(len(events), ShouldEqual, 0)
	})
}
