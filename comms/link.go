package comms

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/openrover/telerover/signal"
)

// FIRMWARE_RANGE is the advisory constraint checked against any version the
// rover advertises in its ack/heartbeat messages.
const FIRMWARE_RANGE = "~0.1.0"

const DefaultReconnectDelay = 3000 * time.Millisecond

// ConnectionState tracks where the command channel is in its lifecycle.
// Transitions are strictly ordered Disconnected → Connecting → Connected →
// Authenticated, with any state able to fall back to Disconnected.
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
	Authenticated
)

func (s ConnectionState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Authenticated:
		return "authenticated"
	default:
		return "disconnected"
	}
}

// CanSend reports whether commands may be transmitted in this state. The
// rover is allowed to never send an explicit ack, so Connected is enough.
func (s ConnectionState) CanSend() bool {
	return s == Connected || s == Authenticated
}

var (
	ErrNotConnected = errors.New("command link is not connected")
)

// Link owns the persistent command channel to the rover: a websocket that is
// dialled asynchronously, authenticated with a shared token, and redialled
// on a fixed delay after any failure until Disconnect is called.
//
// The socket is only ever touched by the dial goroutine and the read pump;
// callers interact through Connect/Send/Disconnect and the state signal.
type Link struct {
	Token          string
	ReconnectDelay time.Duration

	state    *signal.Value[ConnectionState]
	lastMsg  *signal.Value[PeerMessage]
	recorder EventSink

	mu       sync.Mutex
	wmu      sync.Mutex // serializes websocket writes
	conn     *websocket.Conn
	addr     string
	redial   bool // auto-reconnect enabled
	dialing  bool // a dial is in flight
	authSent bool // auth already sent for this connection
	retry    *time.Timer
}

// EventSink receives link lifecycle events for diagnostics. Optional.
type EventSink interface {
	Record(kind, detail string)
}

func NewLink(token string) *Link {
	return &Link{
		Token:          token,
		ReconnectDelay: DefaultReconnectDelay,
		state:          signal.New(Disconnected),
		lastMsg:        signal.New(PeerMessage{}),
	}
}

// SetRecorder attaches a diagnostics sink. Call before Connect.
func (l *Link) SetRecorder(r EventSink) {
	l.recorder = r
}

// State returns the connection state signal.
func (l *Link) State() *signal.Value[ConnectionState] {
	return l.state
}

// LastMessage returns the most recent message received from the rover,
// ack or not. Diagnostic only.
func (l *Link) LastMessage() *signal.Value[PeerMessage] {
	return l.lastMsg
}

// Connect stores the target address, enables auto-reconnect and begins an
// asynchronous connection attempt. A second call while a dial is in flight
// only updates the address.
func (l *Link) Connect(host string, port int) {
	l.mu.Lock()
	l.addr = fmt.Sprintf("ws://%s:%d/cmd", host, port)
	l.redial = true
	l.cancelRetryLocked()
	if l.dialing || l.conn != nil {
		l.mu.Unlock()
		return
	}
	l.dialing = true
	l.mu.Unlock()

	l.setState(Connecting)
	go l.dial()
}

// Disconnect disables auto-reconnect, cancels any pending redial and closes
// the transport. Terminal until Connect is called again.
func (l *Link) Disconnect() {
	l.mu.Lock()
	l.redial = false
	l.cancelRetryLocked()
	conn := l.conn
	l.conn = nil
	l.authSent = false
	l.mu.Unlock()

	if conn != nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close()
	}
	l.setState(Disconnected)
}

// Send transmits a command if the link is usable. Failure comes back as an
// error, never a panic; the caller's repeat loop provides the retry.
func (l *Link) Send(cmd Command) error {
	l.mu.Lock()
	conn := l.conn
	l.mu.Unlock()

	if conn == nil || !l.state.Get().CanSend() {
		return ErrNotConnected
	}

	l.wmu.Lock()
	err := conn.WriteJSON(cmd)
	l.wmu.Unlock()
	if err != nil {
		log.Printf("comms: write %q failed: %v", cmd.Cmd, err)
		return err
	}

	if l.recorder != nil && cmd.Cmd != "auth" {
		l.recorder.Record("command", cmd.Dir)
	}
	return nil
}

func (l *Link) dial() {
	l.mu.Lock()
	addr := l.addr
	l.mu.Unlock()

	// short attempt id for log correlation
	attempt := uuid.NewString()[:8]

	conn, _, err := websocket.DefaultDialer.Dial(addr, nil)

	l.mu.Lock()
	l.dialing = false
	if err != nil {
		l.mu.Unlock()
		log.Printf("comms: dial %s failed (attempt %s): %v", addr, attempt, err)
		l.dropped(nil)
		return
	}

	if !l.redial && l.state.Get() == Disconnected {
		// Disconnect won the race while we were dialling
		l.mu.Unlock()
		conn.Close()
		return
	}

	l.conn = conn
	l.authSent = false
	l.mu.Unlock()

	log.Printf("comms: connected to %s (attempt %s)", addr, attempt)
	l.opened()
	go l.readPump(conn)
}

// opened marks the transport up and sends the auth command. The authSent
// guard keeps auth at exactly one send per connection even if opened runs
// more than once.
func (l *Link) opened() {
	l.setState(Connected)

	l.mu.Lock()
	if l.authSent {
		l.mu.Unlock()
		return
	}
	l.authSent = true
	token := l.Token
	l.mu.Unlock()

	if err := l.Send(AuthCommand(token)); err != nil {
		log.Printf("comms: auth send failed: %v", err)
	}
}

func (l *Link) readPump(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("comms: read error: %v", err)
			}
			l.dropped(conn)
			return
		}

		msg, err := ParsePeerMessage(data)
		if err != nil {
			// garbage from the peer is not a reason to drop the link
			log.Printf("comms: unparseable message ignored: %q", data)
			continue
		}

		if msg.IsAuthAck() && l.state.Get() != Authenticated {
			l.setState(Authenticated)
			if !msg.CheckVersion(FIRMWARE_RANGE) {
				log.Printf("comms: rover firmware %s outside supported range %s", msg.Version, FIRMWARE_RANGE)
			}
		}
		l.lastMsg.Set(msg)
	}
}

// dropped handles loss of the transport: close, fall back to Disconnected
// and schedule exactly one redial if auto-reconnect is on. conn is nil when
// the dial itself failed.
func (l *Link) dropped(conn *websocket.Conn) {
	l.mu.Lock()
	if conn != nil {
		if l.conn != conn {
			// a newer connection has already replaced this one
			l.mu.Unlock()
			conn.Close()
			return
		}
		l.conn = nil
		conn.Close()
	}
	l.authSent = false
	redial := l.redial
	l.cancelRetryLocked()
	if redial {
		l.retry = time.AfterFunc(l.ReconnectDelay, l.redialFire)
	}
	l.mu.Unlock()

	if l.recorder != nil {
		l.recorder.Record("fault", "command link lost")
	}
	l.setState(Disconnected)
}

// redialFire runs when the reconnect timer expires. Skipped if something
// else already moved the link out of Disconnected.
func (l *Link) redialFire() {
	if l.state.Get() != Disconnected {
		return
	}

	l.mu.Lock()
	if !l.redial || l.dialing || l.conn != nil {
		l.mu.Unlock()
		return
	}
	l.dialing = true
	l.mu.Unlock()

	l.setState(Connecting)
	go l.dial()
}

func (l *Link) cancelRetryLocked() {
	if l.retry != nil {
		l.retry.Stop()
		l.retry = nil
	}
}

func (l *Link) setState(s ConnectionState) {
	prev := l.state.Get()
	if prev == s {
		return
	}
	l.state.Set(s)
	if l.recorder != nil {
		l.recorder.Record("state", s.String())
	}
}
