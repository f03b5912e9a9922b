package comms

import (
	"encoding/json"

	"github.com/Masterminds/semver"
)

// Command is a single outbound frame on the command channel.
type Command struct {
	Cmd   string `json:"cmd"`
	Token string `json:"token,omitempty"`
	Dir   string `json:"dir,omitempty"`
}

func AuthCommand(token string) Command {
	return Command{Cmd: "auth", Token: token}
}

func MoveCommand(dir string) Command {
	return Command{Cmd: "move", Dir: dir}
}

// PeerMessage is a permissive decode of anything the rover sends back.
// The rover firmware has never committed to a stable ack shape, so we keep
// the fields loose and match against an allow-list instead of a schema.
type PeerMessage struct {
	Status  string `json:"status"`
	Type    string `json:"type"`
	Version string `json:"version"`
	Raw     string `json:"-"`
}

// ParsePeerMessage decodes an inbound payload. A payload that is not a JSON
// object is an error; callers log and move on rather than failing the link.
func ParsePeerMessage(data []byte) (msg PeerMessage, err error) {
	err = json.Unmarshal(data, &msg)
	if err != nil {
		return
	}
	msg.Raw = string(data)
	return
}

// authAckStatuses and authAckTypes form the explicit allow-list of
// indicators we accept as "the rover is listening to us". New firmware
// variants get added here, not inferred.
var (
	authAckStatuses = []string{"authenticated", "ok", "success"}
	authAckTypes    = []string{"heartbeat", "auth_success"}
)

// IsAuthAck reports whether the message counts as an authentication
// acknowledgment.
func (m PeerMessage) IsAuthAck() bool {
	for _, s := range authAckStatuses {
		if m.Status == s {
			return true
		}
	}
	for _, t := range authAckTypes {
		if m.Type == t {
			return true
		}
	}
	return false
}

// CheckVersion tests an advertised firmware version against a semver
// constraint. Purely advisory: a mismatch is something to log, never a
// reason to drop the link. Returns true when the version is absent,
// unparseable, or within range.
func (m PeerMessage) CheckVersion(constraint string) bool {
	if m.Version == "" || constraint == "" {
		return true
	}

	v, err := semver.NewVersion(m.Version)
	if err != nil {
		// not a semver; dev builds report bare commit hashes
		return true
	}

	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return true
	}

	return c.Check(v)
}
