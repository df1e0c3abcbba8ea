// Package media archives capture previews. Each successful enrollment leaves
// one PNG of the finger's final capture behind for operator inspection.
package media

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/ShafiqSadat/ZKFingerprint/device"
	"github.com/disintegration/imaging"
)

// previews larger than this are scaled down before saving
const previewMaxSize = 512

// PreviewArchive writes enrollment capture frames into a flat directory,
// one file per person, newest enrollment winning.
type PreviewArchive struct {
	dir string
}

func NewPreviewArchive(dir string) (*PreviewArchive, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create preview directory '%s': %w", dir, err)
	}
	return &PreviewArchive{dir: dir}, nil
}

// SaveEnrollment renders the frame to person_<id>_fingerprint.png and
// returns the written path.
func (a *PreviewArchive) SaveEnrollment(personID int64, frame device.Frame) (string, error) {
	if frame.Width <= 0 || frame.Height <= 0 || len(frame.Pixels) < frame.Width*frame.Height {
		return "", errors.New("capture frame is empty or malformed")
	}
	gray := &image.Gray{
		Pix:    frame.Pixels,
		Stride: frame.Width,
		Rect:   image.Rect(0, 0, frame.Width, frame.Height),
	}
	img := imaging.Clone(gray)
	if frame.Width > previewMaxSize || frame.Height > previewMaxSize {
		img = imaging.Fit(img, previewMaxSize, previewMaxSize, imaging.Lanczos)
	}
	path := filepath.Join(a.dir, fmt.Sprintf("person_%d_fingerprint.png", personID))
	if err := imaging.Save(img, path); err != nil {
		return "", fmt.Errorf("failed to save preview for person %d: %w", personID, err)
	}
	return path, nil
}
