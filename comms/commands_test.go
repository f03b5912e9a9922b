package comms

import (
	"encoding/json"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestCommandWireFormat(t *testing.T) {
	Convey("auth commands carry the token", t, func() {
		data, err := json.Marshal(AuthCommand("sesame"))
		So(err, ShouldBeNil)
		So(string(data), ShouldEqual, `{"cmd":"auth","token":"sesame"}`)
	})

	Convey("move commands carry only the direction", t, func() {
		data, err := json.Marshal(MoveCommand("forward"))
		So(err, ShouldBeNil)
		So(string(data), ShouldEqual, `{"cmd":"move","dir":"forward"}`)
	})
}

func TestPeerMessageParsing(t *testing.T) {
	Convey("valid objects parse and keep the raw payload", t, func() {
		msg, err := ParsePeerMessage([]byte(`{"status":"ok","version":"0.1.3"}`))
		So(err, ShouldBeNil)
		So(msg.Status, ShouldEqual, "ok")
		So(msg.Raw, ShouldContainSubstring, "0.1.3")
	})

	Convey("non-JSON payloads return an error", t, func() {
		_, err := ParsePeerMessage([]byte("MOVE OK"))
		So(err, ShouldNotBeNil)
	})
}

func TestAuthAckMatching(t *testing.T) {
	Convey("every allow-listed indicator is accepted", t, func() {
		acks := []string{
			`{"status":"authenticated"}`,
			`{"status":"ok"}`,
			`{"status":"success"}`,
			`{"type":"heartbeat"}`,
			`{"type":"auth_success"}`,
		}
		for _, raw := range acks {
			msg, err := ParsePeerMessage([]byte(raw))
			So(err, ShouldBeNil)
			So(msg.IsAuthAck(), ShouldBeTrue)
		}
	})

	Convey("anything else is retained but not an ack", t, func() {
		msg, err := ParsePeerMessage([]byte(`{"status":"busy","type":"telemetry"}`))
		So(err, ShouldBeNil)
		So(msg.IsAuthAck(), ShouldBeFalse)
	})
}

func TestFirmwareVersionCheck(t *testing.T) {
	Convey("in-range versions pass", t, func() {
		msg := PeerMessage{Version: "0.1.4"}
		So(msg.CheckVersion("~0.1.0"), ShouldBeTrue)
	})

	Convey("out-of-range versions fail", t, func() {
		msg := PeerMessage{Version: "0.3.0"}
		So(msg.CheckVersion("~0.1.0"), ShouldBeFalse)
	})

	Convey("missing or non-semver versions are let through", t, func() {
		So(PeerMessage{}.CheckVersion("~0.1.0"), ShouldBeTrue)
		So(PeerMessage{Version: "deadbee"}.CheckVersion("~0.1.0"), ShouldBeTrue)
	})
}
