//go:build zkfp && cgo

// Package zkfp binds the vendor libzkfp SDK. Capture, template extraction,
// merging, and matching all happen inside the SDK; this package only moves
// bytes across the cgo boundary and maps SDK status codes onto the device
// package's typed errors. Build with -tags zkfp on a host with the ZKFinger
// SDK installed.
package zkfp

/*
#cgo LDFLAGS: -lzkfp
#include <stdlib.h>
#include <libzkfp.h>
*/
import "C"

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
	"unsafe"

	"github.com/ShafiqSadat/ZKFingerprint/device"
)

const (
	maxTemplateSize = 2048
	acquirePoll     = 100 * time.Millisecond

	// ZKFPM_GetParameters codes
	paramImageWidth  = 1
	paramImageHeight = 2

	// ZKFPM_SetParameters code for the sensor LED; value 1 lights green
	paramGreenLED = 101
)

// SDK status codes (ZKFP_ERR_*)
const (
	sdkOK           = 0
	sdkNoDevice     = -3
	sdkCaptureNone  = -8
	sdkMemoryFull   = -9
	sdkAlreadyExist = -10
)

// Device drives the first ZKTeco scanner the SDK discovers.
type Device struct {
	threshold int

	mu       sync.Mutex
	session  *device.Session
	handle   unsafe.Pointer
	dbHandle unsafe.Pointer
	width    int
	height   int
	count    int
}

// New returns an unconnected SDK-backed device. threshold is the minimum
// identification score on the vendor 0..100 scale.
func New(threshold int) (device.Device, error) {
	return &Device{threshold: threshold}, nil
}

func (d *Device) Connect(ctx context.Context) (*device.Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.session != nil {
		return d.session, nil
	}
	if rc := C.ZKFPM_Init(); rc != sdkOK {
		return nil, fmt.Errorf("%w: SDK init failed (code %d)", device.ErrDeviceUnavailable, int(rc))
	}
	if n := C.ZKFPM_GetDeviceCount(); n <= 0 {
		C.ZKFPM_Terminate()
		return nil, device.ErrDeviceUnavailable
	}
	handle := C.ZKFPM_OpenDevice(0)
	if handle == nil {
		C.ZKFPM_Terminate()
		return nil, fmt.Errorf("%w: open failed", device.ErrDeviceUnavailable)
	}
	dbHandle := C.ZKFPM_DBInit()
	if dbHandle == nil {
		C.ZKFPM_CloseDevice(handle)
		C.ZKFPM_Terminate()
		return nil, fmt.Errorf("%w: matcher cache init failed", device.ErrDeviceUnavailable)
	}
	d.handle = unsafe.Pointer(handle)
	d.dbHandle = unsafe.Pointer(dbHandle)
	d.width = d.intParam(paramImageWidth)
	d.height = d.intParam(paramImageHeight)
	d.count = 0

	// mirror the desktop app: green LED signals a ready scanner
	one := C.int(1)
	C.ZKFPM_SetParameters(C.HANDLE(d.handle), paramGreenLED, unsafe.Pointer(&one), C.uint(unsafe.Sizeof(one)))

	d.session = &device.Session{Slot: 0, Serial: "ZKFP-0", ConnectedAt: time.Now()}
	return d.session, nil
}

func (d *Device) intParam(code int) int {
	var value C.int
	size := C.uint(unsafe.Sizeof(value))
	if rc := C.ZKFPM_GetParameters(C.HANDLE(d.handle), C.int(code), unsafe.Pointer(&value), &size); rc != sdkOK {
		return 0
	}
	return int(value)
}

func (d *Device) Disconnect() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.session == nil {
		return nil
	}
	C.ZKFPM_DBFree(C.HANDLE(d.dbHandle))
	C.ZKFPM_CloseDevice(C.HANDLE(d.handle))
	C.ZKFPM_Terminate()
	d.session, d.handle, d.dbHandle = nil, nil, nil
	return nil
}

func (d *Device) Session() *device.Session {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.session
}

// Capture polls ZKFPM_AcquireFingerprint until the sensor has a finger or
// ctx is done. The SDK has no blocking acquire, so the poll loop is the
// documented usage pattern.
func (d *Device) Capture(ctx context.Context) (*device.Capture, error) {
	d.mu.Lock()
	if d.session == nil {
		d.mu.Unlock()
		return nil, device.ErrDeviceUnavailable
	}
	handle := d.handle
	width, height := d.width, d.height
	d.mu.Unlock()

	imgBuf := make([]byte, width*height)
	tmplBuf := make([]byte, maxTemplateSize)
	ticker := time.NewTicker(acquirePoll)
	defer ticker.Stop()
	for {
		tmplLen := C.uint(len(tmplBuf))
		rc := C.ZKFPM_AcquireFingerprint(
			C.HANDLE(handle),
			(*C.uchar)(unsafe.Pointer(&imgBuf[0])), C.uint(len(imgBuf)),
			(*C.uchar)(unsafe.Pointer(&tmplBuf[0])), &tmplLen,
		)
		switch {
		case rc == sdkOK:
			template := make([]byte, int(tmplLen))
			copy(template, tmplBuf[:int(tmplLen)])
			frame := device.Frame{Width: width, Height: height, Pixels: append([]byte(nil), imgBuf...)}
			return &device.Capture{Template: template, Frame: frame}, nil
		case rc == sdkCaptureNone:
			// no finger yet; keep polling
		default:
			return nil, fmt.Errorf("%w: acquire failed (code %d)", device.ErrCaptureRejected, int(rc))
		}
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, device.ErrCaptureTimeout
			}
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (d *Device) Enroll(personID int64, template []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.session == nil {
		return device.ErrDeviceUnavailable
	}
	rc := C.ZKFPM_DBAdd(C.HANDLE(d.dbHandle), C.uint(personID),
		(*C.uchar)(unsafe.Pointer(&template[0])), C.uint(len(template)))
	switch rc {
	case sdkOK:
		d.count++
		return nil
	case sdkAlreadyExist:
		// refreshing a known id: drop and re-add
		C.ZKFPM_DBDel(C.HANDLE(d.dbHandle), C.uint(personID))
		if rc := C.ZKFPM_DBAdd(C.HANDLE(d.dbHandle), C.uint(personID),
			(*C.uchar)(unsafe.Pointer(&template[0])), C.uint(len(template))); rc != sdkOK {
			return fmt.Errorf("%w (code %d)", device.ErrEnrollRejected, int(rc))
		}
		return nil
	case sdkMemoryFull:
		return device.ErrDeviceFull
	default:
		return fmt.Errorf("%w (code %d)", device.ErrEnrollRejected, int(rc))
	}
}

func (d *Device) Match(template []byte) (int64, int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.session == nil {
		return 0, 0, device.ErrDeviceUnavailable
	}
	var fid, score C.uint
	rc := C.ZKFPM_DBIdentify(C.HANDLE(d.dbHandle),
		(*C.uchar)(unsafe.Pointer(&template[0])), C.uint(len(template)), &fid, &score)
	if rc != sdkOK {
		return 0, 0, device.ErrNoMatch
	}
	if int(score) < d.threshold {
		return 0, 0, device.ErrNoMatch
	}
	return int64(fid), int(score), nil
}

func (d *Device) Merge(samples [][]byte) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.session == nil {
		return nil, device.ErrDeviceUnavailable
	}
	if len(samples) != 3 {
		return nil, fmt.Errorf("SDK merge requires exactly 3 samples, got %d", len(samples))
	}
	merged := make([]byte, maxTemplateSize)
	mergedLen := C.uint(len(merged))
	rc := C.ZKFPM_DBMerge(C.HANDLE(d.dbHandle),
		(*C.uchar)(unsafe.Pointer(&samples[0][0])),
		(*C.uchar)(unsafe.Pointer(&samples[1][0])),
		(*C.uchar)(unsafe.Pointer(&samples[2][0])),
		(*C.uchar)(unsafe.Pointer(&merged[0])), &mergedLen,
	)
	if rc != sdkOK {
		return nil, fmt.Errorf("template merge failed (code %d)", int(rc))
	}
	out := make([]byte, int(mergedLen))
	copy(out, merged[:int(mergedLen)])
	return out, nil
}

func (d *Device) Score(a, b []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.session == nil {
		return 0, device.ErrDeviceUnavailable
	}
	rc := C.ZKFPM_DBMatch(C.HANDLE(d.dbHandle),
		(*C.uchar)(unsafe.Pointer(&a[0])), C.uint(len(a)),
		(*C.uchar)(unsafe.Pointer(&b[0])), C.uint(len(b)))
	if rc < 0 {
		return 0, fmt.Errorf("template comparison failed (code %d)", int(rc))
	}
	return int(rc), nil
}

func (d *Device) RemoveFromMemory(personID int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.session == nil {
		return device.ErrDeviceUnavailable
	}
	if rc := C.ZKFPM_DBDel(C.HANDLE(d.dbHandle), C.uint(personID)); rc == sdkOK {
		d.count--
	}
	return nil
}

func (d *Device) ClearMemory() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.session == nil {
		return device.ErrDeviceUnavailable
	}
	if rc := C.ZKFPM_DBClear(C.HANDLE(d.dbHandle)); rc != sdkOK {
		return fmt.Errorf("clearing device memory failed (code %d)", int(rc))
	}
	d.count = 0
	return nil
}

func (d *Device) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.session == nil {
		return 0
	}
	return int(C.ZKFPM_DBCount(C.HANDLE(d.dbHandle)))
}
