package device

import (
	"context"
	"time"
)

// Session describes an open connection to a scanner. It is transient: a new
// session is created on every successful Connect and discarded on Disconnect.
type Session struct {
	Slot        int       `json:"slot"`
	Serial      string    `json:"serial"`
	ConnectedAt time.Time `json:"connected_at"`
}

// Capture is the result of one finger acquisition: the extracted template
// plus the raw grayscale frame for preview archiving.
type Capture struct {
	Template []byte
	Frame    Frame
}

// Frame is a raw 8-bit grayscale scanner image.
type Frame struct {
	Width  int
	Height int
	Pixels []byte
}

// Device is the capability surface of a fingerprint scanner. Template bytes
// are opaque to callers; only the implementation that produced them can
// interpret them. Implementations do not retry on their own; retry policy
// belongs to the calling workflow. Every method other than Connect fails
// with ErrDeviceUnavailable when no session is open.
type Device interface {
	// Connect opens the first discoverable device. It is idempotent: calling
	// it while connected returns the existing session.
	Connect(ctx context.Context) (*Session, error)

	// Disconnect releases the device handle. No-op when not connected.
	Disconnect() error

	// Session returns the current session, or nil when not connected.
	Session() *Session

	// Capture blocks until a finger is presented or ctx is done. A deadline
	// expiry is reported as ErrCaptureTimeout, an explicit cancel as
	// ctx.Err().
	Capture(ctx context.Context) (*Capture, error)

	// Enroll writes a template into device on-board memory under personID.
	Enroll(personID int64, template []byte) error

	// Match compares a template against on-board memory. ErrNoMatch means
	// the device is certain nothing matched; any other error means it could
	// not decide.
	Match(template []byte) (personID int64, score int, err error)

	// Merge combines several samples of the same finger into one
	// representative template.
	Merge(samples [][]byte) ([]byte, error)

	// Score compares two templates and returns a similarity on the vendor
	// 0..100 scale.
	Score(a, b []byte) (int, error)

	// RemoveFromMemory drops one person's templates from on-board memory.
	RemoveFromMemory(personID int64) error

	// ClearMemory empties on-board memory.
	ClearMemory() error

	// Count reports how many templates on-board memory currently holds.
	Count() int
}
