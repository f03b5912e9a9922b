package video

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"io"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openrover/telerover/signal"
)

const (
	DefaultRetryDelay     = 2000 * time.Millisecond
	DefaultConnectTimeout = 5 * time.Second
	DefaultReadTimeout    = 30 * time.Second
)

// Frame is one decoded-and-validated still from the feed.
type Frame struct {
	Seq      uint64
	TraceID  string
	Captured time.Time
	Width    int
	Height   int
	Data     []byte
}

// StreamStats is a snapshot of the supervisor's counters.
type StreamStats struct {
	FramesDecoded uint64
	FramesDropped uint64
	BytesRead     uint64
	Reconnects    uint32
	FPS           float64
	Connected     bool
}

// Supervisor owns the long-lived HTTP GET to the camera and the demux loop
// inside it. Any failure closes the connection, waits a fixed delay and
// starts over; there is no retry ceiling and no backoff growth, matching
// the command link's behaviour.
type Supervisor struct {
	URL            string
	RetryDelay     time.Duration
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration

	latest     *signal.Value[Frame]
	connecting *signal.Value[bool]
	lastErr    *signal.Value[string]

	mu        sync.Mutex
	stats     StreamStats
	seq       uint64
	lastFrame time.Time
}

func NewSupervisor(url string) *Supervisor {
	return &Supervisor{
		URL:            url,
		RetryDelay:     DefaultRetryDelay,
		ConnectTimeout: DefaultConnectTimeout,
		ReadTimeout:    DefaultReadTimeout,
		latest:         signal.New(Frame{}),
		connecting:     signal.New(false),
		lastErr:        signal.New(""),
	}
}

// Latest returns the latest-frame signal. Frames replace each other; there
// is no history.
func (s *Supervisor) Latest() *signal.Value[Frame] {
	return s.latest
}

// Connecting reports whether the supervisor is between connections.
func (s *Supervisor) Connecting() *signal.Value[bool] {
	return s.connecting
}

// LastError holds the most recent connection failure, cleared on the next
// successful connect.
func (s *Supervisor) LastError() *signal.Value[string] {
	return s.lastErr
}

// Stats returns a snapshot of the stream counters.
func (s *Supervisor) Stats() StreamStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Run blocks, maintaining the feed until ctx is cancelled.
func (s *Supervisor) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		s.connecting.Set(true)
		err := s.streamOnce(ctx)
		s.setConnected(false)
		if ctx.Err() != nil {
			return
		}

		if err != nil {
			log.Printf("video: stream ended: %v", err)
			s.lastErr.Set(err.Error())
			s.mu.Lock()
			s.stats.Reconnects++
			s.mu.Unlock()
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.RetryDelay):
		}
	}
}

// streamOnce opens one HTTP connection and demuxes it until it dies.
func (s *Supervisor) streamOnce(ctx context.Context) error {
	client := &http.Client{
		Transport: &http.Transport{
			DialContext:           s.dialWithDeadline,
			ResponseHeaderTimeout: s.ConnectTimeout,
			DisableCompression:    true,
		},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("camera returned %s", resp.Status)
	}

	s.connecting.Set(false)
	s.lastErr.Set("")
	s.setConnected(true)
	log.Printf("video: streaming from %s", s.URL)

	counter := &countingReader{r: resp.Body, supervisor: s}
	demux := NewDemuxer(counter)

	for {
		data, err := demux.NextFrame()
		switch err {
		case nil:
			s.publish(data)
		case ErrFrameTooBig:
			// oversize attempt abandoned; keep reading the same stream
			log.Printf("video: frame exceeded %d bytes, abandoned", FrameCap)
			s.countDrop()
		default:
			return err
		}
	}
}

// publish validates the bytes decode as a JPEG and republishes them as the
// latest frame. A frame that doesn't decode is dropped, never fatal.
func (s *Supervisor) publish(data []byte) {
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		log.Printf("video: undecodable frame dropped: %v", err)
		s.countDrop()
		return
	}

	now := time.Now()
	s.mu.Lock()
	s.seq++
	frame := Frame{
		Seq:      s.seq,
		TraceID:  uuid.NewString(),
		Captured: now,
		Width:    cfg.Width,
		Height:   cfg.Height,
		Data:     data,
	}
	s.stats.FramesDecoded++
	if !s.lastFrame.IsZero() {
		if dt := now.Sub(s.lastFrame); dt > 0 {
			s.stats.FPS = 1 / dt.Seconds()
		}
	}
	s.lastFrame = now
	s.mu.Unlock()

	s.latest.Set(frame)
}

func (s *Supervisor) countDrop() {
	s.mu.Lock()
	s.stats.FramesDropped++
	s.mu.Unlock()
}

func (s *Supervisor) setConnected(up bool) {
	s.mu.Lock()
	s.stats.Connected = up
	s.mu.Unlock()
}

// dialWithDeadline connects with a bounded timeout and returns a conn whose
// read deadline is pushed forward on every read, giving the body a generous
// per-read timeout without killing long-lived streams.
func (s *Supervisor) dialWithDeadline(ctx context.Context, network, addr string) (net.Conn, error) {
	d := &net.Dialer{Timeout: s.ConnectTimeout}
	conn, err := d.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}
	return &deadlineConn{Conn: conn, timeout: s.ReadTimeout}, nil
}

type deadlineConn struct {
	net.Conn
	timeout time.Duration
}

func (c *deadlineConn) Read(p []byte) (int, error) {
	if c.timeout > 0 {
		c.Conn.SetReadDeadline(time.Now().Add(c.timeout))
	}
	return c.Conn.Read(p)
}

// countingReader tallies bytes pulled off the wire into the stats.
type countingReader struct {
	r          io.Reader
	supervisor *Supervisor
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.supervisor.mu.Lock()
		c.supervisor.stats.BytesRead += uint64(n)
		c.supervisor.mu.Unlock()
	}
	return n, err
}
