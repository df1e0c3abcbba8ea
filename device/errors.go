package device

import "errors"

// Typed failures raised by Device implementations. Workflows translate these
// into shell-facing events; raw vendor error text never crosses that boundary.
var (
	ErrDeviceUnavailable = errors.New("no fingerprint device available")
	ErrCaptureTimeout    = errors.New("capture timed out waiting for a finger")
	ErrCaptureRejected   = errors.New("capture rejected by device")
	ErrDeviceFull        = errors.New("device on-board memory is full")
	ErrEnrollRejected    = errors.New("device rejected template enrollment")
	ErrNoMatch           = errors.New("no matching template in device memory")
)
