package media

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ShafiqSadat/ZKFingerprint/device"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveEnrollmentWritesPNG(t *testing.T) {
	dir := t.TempDir()
	archive, err := NewPreviewArchive(filepath.Join(dir, "previews"))
	require.NoError(t, err)

	frame := device.Frame{Width: 4, Height: 4, Pixels: make([]byte, 16)}
	path, err := archive.SaveEnrollment(12, frame)
	require.NoError(t, err)
	assert.Equal(t, "person_12_fingerprint.png", filepath.Base(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestSaveEnrollmentRejectsEmptyFrame(t *testing.T) {
	archive, err := NewPreviewArchive(t.TempDir())
	require.NoError(t, err)

	_, err = archive.SaveEnrollment(1, device.Frame{})
	assert.Error(t, err)
}
