//go:build !zkfp || !cgo

// Package zkfp binds the vendor libzkfp SDK. This build lacks the SDK
// binding; use the emulator backend or rebuild with -tags zkfp.
package zkfp

import (
	"errors"
	"fmt"

	"github.com/ShafiqSadat/ZKFingerprint/device"
)

// ErrNotBuilt reports that the binary was compiled without SDK support.
var ErrNotBuilt = errors.New("zkfp backend not compiled in (rebuild with -tags zkfp)")

// New always fails in a non-zkfp build.
func New(threshold int) (device.Device, error) {
	return nil, fmt.Errorf("%w: %w", device.ErrDeviceUnavailable, ErrNotBuilt)
}
