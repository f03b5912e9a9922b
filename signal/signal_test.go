package signal

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestValue(t *testing.T) {
	Convey("values are stored and read back", t, func() {
		v := New(0)
		So(v.Get(), ShouldEqual, 0)

		v.Set(3)
		So(v.Get(), ShouldEqual, 3)
	})

	Convey("watchers see published values", t, func() {
		v := New("idle")
		ch, cancel := v.Watch()
		defer cancel()

		v.Set("running")
		select {
		case got := <-ch:
			So(got, ShouldEqual, "running")
		case <-time.After(time.Second):
			t.Fatal("no value received")
		}
	})

	Convey("a slow watcher only sees the latest value", t, func() {
		v := New(0)
		ch, cancel := v.Watch()
		defer cancel()

		v.Set(1)
		v.Set(2)
		v.Set(3)

		So(<-ch, ShouldEqual, 3)
		So(v.Get(), ShouldEqual, 3)
	})

	Convey("cancel closes the channel and is safe to call twice", t, func() {
		v := New(0)
		ch, cancel := v.Watch()
		cancel()
		cancel()

		_, open := <-ch
		So(open, ShouldBeFalse)

		// publishing after cancel must not panic
		v.Set(9)
	})
}
