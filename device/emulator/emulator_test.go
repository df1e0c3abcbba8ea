package emulator

import (
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ShafiqSadat/ZKFingerprint/device"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func connectedEmulator(t *testing.T) *Emulator {
	t.Helper()
	e := New(Options{SpoolDir: t.TempDir(), MatchThreshold: 55})
	_, err := e.Connect(context.Background())
	require.NoError(t, err)
	return e
}

func writeScan(t *testing.T, dir, name string, shade uint8) {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 8, 8))
	for i := range img.Pix {
		img.Pix[i] = shade
	}
	f, err := os.Create(filepath.Join(dir, name))
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func testTemplate(t *testing.T, fill byte) []byte {
	t.Helper()
	pixels := make([]byte, 16)
	for i := range pixels {
		pixels[i] = fill
	}
	data, err := encodeTemplate(device.Frame{Width: 4, Height: 4, Pixels: pixels})
	require.NoError(t, err)
	return data
}

func TestConnectIsIdempotent(t *testing.T) {
	e := connectedEmulator(t)
	first := e.Session()
	again, err := e.Connect(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, again)
}

func TestConnectFailsWithoutSpoolDir(t *testing.T) {
	e := New(Options{SpoolDir: "/nonexistent/spool"})
	_, err := e.Connect(context.Background())
	assert.ErrorIs(t, err, device.ErrDeviceUnavailable)
}

func TestOperationsFailFastWhenDisconnected(t *testing.T) {
	e := New(Options{SpoolDir: t.TempDir()})

	_, err := e.Capture(context.Background())
	assert.ErrorIs(t, err, device.ErrDeviceUnavailable)
	assert.ErrorIs(t, e.Enroll(1, nil), device.ErrDeviceUnavailable)
	_, _, err = e.Match(nil)
	assert.ErrorIs(t, err, device.ErrDeviceUnavailable)
	_, err = e.Merge(nil)
	assert.ErrorIs(t, err, device.ErrDeviceUnavailable)
	assert.ErrorIs(t, e.ClearMemory(), device.ErrDeviceUnavailable)
}

func TestCaptureConsumesScansInNaturalOrder(t *testing.T) {
	e := connectedEmulator(t)
	dir := e.opts.SpoolDir
	writeScan(t, dir, "finger_10.png", 200)
	writeScan(t, dir, "finger_2.png", 100)

	first, err := e.Capture(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint8(100), first.Frame.Pixels[0], "finger_2 should be consumed before finger_10")

	second, err := e.Capture(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint8(200), second.Frame.Pixels[0])

	// both scans consumed
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCaptureTimesOutOnEmptySpool(t *testing.T) {
	e := connectedEmulator(t)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := e.Capture(ctx)
	assert.ErrorIs(t, err, device.ErrCaptureTimeout)
}

func TestCaptureCancelIsNotATimeout(t *testing.T) {
	e := connectedEmulator(t)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := e.Capture(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCaptureRejectsUndecodableScan(t *testing.T) {
	e := connectedEmulator(t)
	path := filepath.Join(e.opts.SpoolDir, "garbage.png")
	require.NoError(t, os.WriteFile(path, []byte("not a png"), 0o644))

	_, err := e.Capture(context.Background())
	assert.ErrorIs(t, err, device.ErrCaptureRejected)

	// the bad scan must not wedge the spool
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestEnrollAndMemoryOps(t *testing.T) {
	e := connectedEmulator(t)

	require.NoError(t, e.Enroll(1, testTemplate(t, 10)))
	require.NoError(t, e.Enroll(2, testTemplate(t, 20)))
	assert.Equal(t, 2, e.Count())

	// re-enrolling an id replaces rather than grows
	require.NoError(t, e.Enroll(1, testTemplate(t, 30)))
	assert.Equal(t, 2, e.Count())

	require.NoError(t, e.RemoveFromMemory(1))
	assert.Equal(t, 1, e.Count())

	require.NoError(t, e.ClearMemory())
	assert.Zero(t, e.Count())
}

func TestEnrollRejectsGarbageTemplate(t *testing.T) {
	e := connectedEmulator(t)
	err := e.Enroll(1, []byte("junk"))
	assert.ErrorIs(t, err, device.ErrEnrollRejected)
}

func TestEnrollHonoursCapacity(t *testing.T) {
	e := New(Options{SpoolDir: t.TempDir(), MemoryCapacity: 1})
	_, err := e.Connect(context.Background())
	require.NoError(t, err)

	require.NoError(t, e.Enroll(1, testTemplate(t, 1)))
	assert.ErrorIs(t, e.Enroll(2, testTemplate(t, 2)), device.ErrDeviceFull)

	// replacing an existing slot is still allowed at capacity
	assert.NoError(t, e.Enroll(1, testTemplate(t, 3)))
}

func TestMergeSingleSamplePassesThrough(t *testing.T) {
	e := connectedEmulator(t)
	sample := testTemplate(t, 42)
	merged, err := e.Merge([][]byte{sample})
	require.NoError(t, err)
	assert.Equal(t, sample, merged)
}

func TestTemplateEnvelopeRoundTrip(t *testing.T) {
	frame := device.Frame{Width: 3, Height: 2, Pixels: []byte{1, 2, 3, 4, 5, 6}}
	data, err := encodeTemplate(frame)
	require.NoError(t, err)

	decoded, err := decodeTemplate(data)
	require.NoError(t, err)
	assert.Equal(t, frame, decoded)
}

func TestTemplateEnvelopeRejectsTruncatedPixels(t *testing.T) {
	_, err := encodeTemplate(device.Frame{Width: 4, Height: 4, Pixels: []byte{1, 2}})
	assert.Error(t, err)
}
