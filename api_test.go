package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/openrover/telerover/comms"
	"github.com/openrover/telerover/control"
	"github.com/openrover/telerover/video"
)

func TestDiagnosticsAPI(t *testing.T) {
	link := comms.NewLink("sesame")
	driver := control.NewDriver(func(string) error { return nil })
	driver.Interval = 10 * time.Millisecond
	sup := video.NewSupervisor("http://127.0.0.1:1/stream")
	srv := httptest.NewServer(apiRouter(link, driver, sup, nil))
	defer srv.Close()
	defer driver.Stop()

	Convey("status reflects the core signals", t, func() {
		resp, err := http.Get(srv.URL + "/api/status")
		So(err, ShouldBeNil)
		defer resp.Body.Close()
		So(resp.StatusCode, ShouldEqual, http.StatusOK)

		var status StatusPayload
		So(json.NewDecoder(resp.Body).Decode(&status), ShouldBeNil)
		So(status.Link, ShouldEqual, "disconnected")
		So(status.Action, ShouldEqual, "none")
	})

	Convey("drive starts the requested action", t, func() {
		body := bytes.NewBufferString(`{"dir":"left"}`)
		resp, err := http.Post(srv.URL+"/api/drive", "application/json", body)
		So(err, ShouldBeNil)
		resp.Body.Close()
		So(resp.StatusCode, ShouldEqual, http.StatusOK)
		So(driver.Current().Get(), ShouldEqual, control.ActionLeft)

		Convey("and stop returns to idle", func() {
			resp, err := http.Post(srv.URL+"/api/stop", "application/json", nil)
			So(err, ShouldBeNil)
			resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			So(driver.Current().Get(), ShouldEqual, control.ActionNone)
		})
	})

	Convey("an unknown direction is rejected", t, func() {
		body := bytes.NewBufferString(`{"dir":"sideways"}`)
		resp, err := http.Post(srv.URL+"/api/drive", "application/json", body)
		So(err, ShouldBeNil)
		resp.Body.Close()
		So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
	})

	Convey("the trip log endpoint degrades to empty without a recorder", t, func() {
		resp, err := http.Get(srv.URL + "/api/log")
		So(err, ShouldBeNil)
		defer resp.Body.Close()
		So(resp.StatusCode, ShouldEqual, http.StatusOK)

		var events []struct{}
		So(json.NewDecoder(resp.Body).Decode(&events), ShouldBeNil)
		So(len(events), ShouldEqual, 0)
	})
}
