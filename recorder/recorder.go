// Package recorder keeps a small on-disk trip log: commands sent, link
// state changes and stream faults, for post-drive inspection from the
// shell. It is diagnostics only; nothing in the core depends on it.
package recorder

import (
	"log"
	"time"

	"github.com/asdine/storm/v3"
)

// Event is one recorded occurrence.
type Event struct {
	ID     int       `storm:"id,increment"`
	At     time.Time `storm:"index"`
	Kind   string    // "command", "state" or "fault"
	Detail string
}

type Recorder struct {
	db *storm.DB
}

func Open(path string) (*Recorder, error) {
	db, err := storm.Open(path)
	if err != nil {
		return nil, err
	}
	if err := db.Init(&Event{}); err != nil {
		db.Close()
		return nil, err
	}
	return &Recorder{db: db}, nil
}

// Record appends an event. Failures are logged and swallowed; the trip log
// must never interfere with driving.
func (r *Recorder) Record(kind, detail string) {
	err := r.db.Save(&Event{
		At:     time.Now().UTC(),
		Kind:   kind,
		Detail: detail,
	})
	if err != nil {
		log.Printf("recorder: save failed: %v", err)
	}
}

// Tail returns the most recent n events, oldest first.
func (r *Recorder) Tail(n int) ([]Event, error) {
	var events []Event
	if err := r.db.AllByIndex("At", &events, storm.Limit(n), storm.Reverse()); err != nil {
		if err == storm.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}

	// flip back to chronological order
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	return events, nil
}

func (r *Recorder) Close() error {
	return r.db.Close()
}
