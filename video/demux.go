// Package video ingests the rover's MJPEG feed: a Demuxer that carves JPEG
// frames out of a raw byte stream and a Supervisor that owns the HTTP
// connection around it, republishing each frame as the latest one.
package video

import (
	"bufio"
	"errors"
	"io"
)

const (
	// FrameCap bounds a single frame's accumulation. A stream that never
	// produces an end marker must not grow memory without limit.
	FrameCap = 5 << 20

	// SearchLimit bounds the hunt for a start marker so a silent or
	// non-image connection doesn't get scanned forever.
	SearchLimit = 100000
)

// JPEG start-of-image and end-of-image signatures. These are the only
// framing we trust; Content-Length and multipart boundaries are routinely
// wrong or absent across camera firmwares.
var (
	markerSOI = [2]byte{0xFF, 0xD8}
	markerEOI = [2]byte{0xFF, 0xD9}
)

var (
	ErrNoStart     = errors.New("no frame start marker within search limit")
	ErrFrameTooBig = errors.New("frame exceeded size cap before end marker")
)

// Demuxer scans a byte stream for complete JPEG frames. It keeps no state
// between frames beyond its read position, so a frame abandoned mid-way
// simply resumes the marker search on the next call.
type Demuxer struct {
	r *bufio.Reader
}

func NewDemuxer(r io.Reader) *Demuxer {
	return &Demuxer{r: bufio.NewReader(r)}
}

// NextFrame returns the next complete frame, start and end markers
// included. ErrNoStart and ErrFrameTooBig abandon the current attempt but
// leave the demuxer usable; any I/O error is returned as-is and the caller
// decides whether to reconnect.
func (d *Demuxer) NextFrame() ([]byte, error) {
	if err := d.seekStart(); err != nil {
		return nil, err
	}

	buf := make([]byte, 0, 64<<10)
	buf = append(buf, markerSOI[0], markerSOI[1])

	// rolling match against the end marker; a broken candidate restarts
	// from the current byte, no backtracking needed
	match := 0
	for {
		b, err := d.r.ReadByte()
		if err != nil {
			return nil, err
		}
		buf = append(buf, b)
		if len(buf) > FrameCap {
			return nil, ErrFrameTooBig
		}

		if b == markerEOI[match] {
			match++
			if match == len(markerEOI) {
				return buf, nil
			}
		} else if b == markerEOI[0] {
			match = 1
		} else {
			match = 0
		}
	}
}

// seekStart consumes bytes until a start-of-image marker has been read.
func (d *Demuxer) seekStart() error {
	match := 0
	for scanned := 0; scanned < SearchLimit; scanned++ {
		b, err := d.r.ReadByte()
		if err != nil {
			return err
		}

		if b == markerSOI[match] {
			match++
			if match == len(markerSOI) {
				return nil
			}
		} else if b == markerSOI[0] {
			match = 1
		} else {
			match = 0
		}
	}
	return ErrNoStart
}
