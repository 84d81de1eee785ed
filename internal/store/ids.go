package store

import (
	"time"

	"github.com/google/uuid"
)

// IDGenerator produces ids for records created without one.
// Implemented by UUIDv7Generator (production) and testutil.SequenceIDs (tests).
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 record ids.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Clock returns the current time in seconds since the epoch, the unit of
// every record timestamp.
type Clock interface {
	Now() float64
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns the wall-clock time in seconds.
func (SystemClock) Now() float64 {
	return float64(time.Now().UnixMilli()) / 1000
}

// Stamps fills the bookkeeping fields of new and updated records.
type Stamps struct {
	IDs   IDGenerator
	Clock Clock
}

// DefaultStamps uses UUIDv7 ids and the system clock.
func DefaultStamps() Stamps {
	return Stamps{IDs: UUIDv7Generator{}, Clock: SystemClock{}}
}

// NewEvent assigns id and timestamps to an event being created.
func (s Stamps) NewEvent(e *Event) {
	if e.ID == "" {
		e.ID = s.IDs.Generate()
	}
	now := s.Clock.Now()
	if e.Created == 0 {
		e.Created = now
	}
	e.Modified = now
}

// NewStream assigns id and timestamps to a stream being created.
func (s Stamps) NewStream(st *Stream) {
	if st.ID == "" {
		st.ID = s.IDs.Generate()
	}
	now := s.Clock.Now()
	if st.Created == 0 {
		st.Created = now
	}
	st.Modified = now
}

// Touch updates the modification time of an event.
func (s Stamps) Touch(e *Event) {
	e.Modified = s.Clock.Now()
}

// TouchStream updates the modification time of a stream.
func (s Stamps) TouchStream(st *Stream) {
	st.Modified = s.Clock.Now()
}
