// Package logging points the process-wide logger at stdout and, when a log
// directory is configured, a daily-rotated file alongside it.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
)

// Setup configures the default logger. With an empty logDir everything goes
// to stdout only. The returned closer is nil-safe for the stdout-only case.
func Setup(logDir string) (io.Closer, error) {
	log.SetFlags(log.LstdFlags | log.Lmsgprefix)
	if logDir == "" {
		log.SetOutput(os.Stdout)
		return nil, nil
	}
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", logDir, err)
	}
	writer, err := rotatelogs.New(
		filepath.Join(logDir, "zkfingerprint.%Y%m%d.log"),
		rotatelogs.WithLinkName(filepath.Join(logDir, "zkfingerprint.log")),
		rotatelogs.WithRotationTime(24*time.Hour),
		rotatelogs.WithMaxAge(30*24*time.Hour),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open rotating log in %s: %w", logDir, err)
	}
	log.SetOutput(io.MultiWriter(os.Stdout, writer))
	return writer, nil
}
