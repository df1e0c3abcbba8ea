// Package emulator implements a software fingerprint device for development
// and testing. It captures by consuming grayscale scan images from a spool
// directory, extracts templates from them, and performs all matching with the
// SourceAFIS matcher. On-board memory is an in-process, insertion-ordered
// map, so the emulator honours the same first-enrolled-wins tie-break as real
// scanner memory.
package emulator

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ShafiqSadat/ZKFingerprint/device"
	"github.com/emirpasic/gods/maps/linkedhashmap"
	"github.com/facette/natsort"
	_ "github.com/spakin/netpbm" // PGM/PNM scanner dumps decode via image.Decode
)

const pollInterval = 250 * time.Millisecond

// Options configures an emulated scanner.
type Options struct {
	SpoolDir       string // directory watched for scan images
	MemoryCapacity int    // on-board template slots; <=0 means 2000 (ZK9500 default)
	MatchThreshold int    // minimum score for Match to report a hit
}

// Emulator is a device.Device backed by files and SourceAFIS.
type Emulator struct {
	opts Options

	mu      sync.Mutex
	session *device.Session
	memory  *linkedhashmap.Map // int64 person id -> template bytes
}

func New(opts Options) *Emulator {
	if opts.MemoryCapacity <= 0 {
		opts.MemoryCapacity = 2000
	}
	return &Emulator{
		opts:   opts,
		memory: linkedhashmap.New(),
	}
}

func (e *Emulator) Connect(ctx context.Context) (*device.Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session != nil {
		return e.session, nil
	}
	info, err := os.Stat(e.opts.SpoolDir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: spool directory %q not usable", device.ErrDeviceUnavailable, e.opts.SpoolDir)
	}
	e.session = &device.Session{
		Slot:        0,
		Serial:      "EMU-" + filepath.Base(e.opts.SpoolDir),
		ConnectedAt: time.Now(),
	}
	log.Printf("emulator: connected, spooling from %s", e.opts.SpoolDir)
	return e.session, nil
}

func (e *Emulator) Disconnect() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.session = nil
	return nil
}

func (e *Emulator) Session() *device.Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session
}

// Capture polls the spool directory until a scan image appears or ctx is
// done, then consumes the first file in natural sort order. The poll loop
// mirrors how a real acquisition call repeatedly asks the sensor for a frame.
func (e *Emulator) Capture(ctx context.Context) (*device.Capture, error) {
	if e.Session() == nil {
		return nil, device.ErrDeviceUnavailable
	}
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		path, err := e.nextScan()
		if err != nil {
			return nil, err
		}
		if path != "" {
			return e.consumeScan(path)
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

// nextScan returns the first pending scan image, or "" when the spool is
// empty. Files are ordered by natural sort so finger_2 precedes finger_10.
func (e *Emulator) nextScan() (string, error) {
	entries, err := os.ReadDir(e.opts.SpoolDir)
	if err != nil {
		return "", fmt.Errorf("%w: reading spool: %v", device.ErrDeviceUnavailable, err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".png", ".jpg", ".jpeg", ".pgm", ".pnm":
			names = append(names, entry.Name())
		}
	}
	if len(names) == 0 {
		return "", nil
	}
	natsort.Sort(names)
	return filepath.Join(e.opts.SpoolDir, names[0]), nil
}

func (e *Emulator) consumeScan(path string) (*device.Capture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", device.ErrCaptureRejected, err)
	}
	img, _, err := image.Decode(f)
	f.Close()
	if removeErr := os.Remove(path); removeErr != nil {
		log.Printf("emulator: could not consume scan %s: %v", path, removeErr)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: undecodable scan %s: %v", device.ErrCaptureRejected, filepath.Base(path), err)
	}
	frame := frameFromImage(img)
	template, err := encodeTemplate(frame)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", device.ErrCaptureRejected, err)
	}
	return &device.Capture{Template: template, Frame: frame}, nil
}

func (e *Emulator) Enroll(personID int64, template []byte) error {
	if e.Session() == nil {
		return device.ErrDeviceUnavailable
	}
	if _, err := decodeTemplate(template); err != nil {
		return fmt.Errorf("%w: %v", device.ErrEnrollRejected, err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.memory.Get(personID); !exists && e.memory.Size() >= e.opts.MemoryCapacity {
		return device.ErrDeviceFull
	}
	e.memory.Put(personID, template)
	return nil
}

// Match scores the probe against every template in on-board memory and
// reports the best hit at or above the threshold. Iteration order is
// insertion order, so the earliest enrolled person wins score ties.
func (e *Emulator) Match(template []byte) (int64, int, error) {
	if e.Session() == nil {
		return 0, 0, device.ErrDeviceUnavailable
	}
	if _, err := decodeTemplate(template); err != nil {
		return 0, 0, fmt.Errorf("bad probe template: %w", err)
	}

	type slot struct {
		id   int64
		data []byte
	}
	e.mu.Lock()
	candidates := make([]slot, 0, e.memory.Size())
	it := e.memory.Iterator()
	for it.Next() {
		candidates = append(candidates, slot{it.Key().(int64), it.Value().([]byte)})
	}
	e.mu.Unlock()

	bestID, bestScore := int64(0), -1
	for _, cand := range candidates {
		score, err := scorePair(template, cand.data)
		if err != nil {
			log.Printf("emulator: skipping unreadable memory slot %d: %v", cand.id, err)
			continue
		}
		if score > bestScore {
			bestID, bestScore = cand.id, score
		}
	}
	if bestScore < e.opts.MatchThreshold {
		return 0, 0, device.ErrNoMatch
	}
	return bestID, bestScore, nil
}

// Merge picks the sample most consistent with its siblings: the one whose
// summed pairwise score against the other samples is highest. A real sensor
// fuses minutiae instead, but a representative sample honours the same
// contract of one template standing in for N captures of the finger.
func (e *Emulator) Merge(samples [][]byte) ([]byte, error) {
	if e.Session() == nil {
		return nil, device.ErrDeviceUnavailable
	}
	if len(samples) == 0 {
		return nil, errors.New("merge requires at least one sample")
	}
	if len(samples) == 1 {
		return samples[0], nil
	}
	bestIdx, bestTotal := 0, -1
	for i, sample := range samples {
		total := 0
		for j, other := range samples {
			if i == j {
				continue
			}
			score, err := scorePair(sample, other)
			if err != nil {
				return nil, fmt.Errorf("sample %d unreadable: %w", j+1, err)
			}
			total += score
		}
		if total > bestTotal {
			bestIdx, bestTotal = i, total
		}
	}
	return samples[bestIdx], nil
}

func (e *Emulator) Score(a, b []byte) (int, error) {
	if e.Session() == nil {
		return 0, device.ErrDeviceUnavailable
	}
	return scorePair(a, b)
}

func (e *Emulator) RemoveFromMemory(personID int64) error {
	if e.Session() == nil {
		return device.ErrDeviceUnavailable
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.memory.Remove(personID)
	return nil
}

func (e *Emulator) ClearMemory() error {
	if e.Session() == nil {
		return device.ErrDeviceUnavailable
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.memory.Clear()
	return nil
}

func (e *Emulator) Count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.memory.Size()
}

func frameFromImage(img image.Image) device.Frame {
	bounds := img.Bounds()
	gray := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			gray.Set(x, y, img.At(x, y))
		}
	}
	frame := device.Frame{Width: bounds.Dx(), Height: bounds.Dy()}
	frame.Pixels = make([]byte, frame.Width*frame.Height)
	copy(frame.Pixels, gray.Pix)
	return frame
}
