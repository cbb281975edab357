package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

type LogRotation struct {
	MaxSize int64
	MaxAge  time.Duration
}

var DefaultRotation = LogRotation{
	MaxSize: 50 << 20,
	MaxAge:  7 * 24 * time.Hour,
}

func (lr LogRotation) ShouldRotate(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}

	if lr.MaxSize > 0 && info.Size() >= lr.MaxSize {
		return true
	}

	return lr.MaxAge > 0 && info.Size() > 0 && time.Since(info.ModTime()) >= lr.MaxAge
}

// Rotate renames path to a timestamped sibling and returns the new name.
func (lr LogRotation) Rotate(path string) (string, error) {
	timestamp := time.Now().Format("20060102-150405")
	ext := filepath.Ext(path)
	base := path[:len(path)-len(ext)]

	newPath := fmt.Sprintf("%s-%s%s", base, timestamp, ext)
	return newPath, os.Rename(path, newPath)
}

// rotateIfNeeded is called once when the log file is opened.
func rotateIfNeeded(path string, lr LogRotation) {
	if lr.ShouldRotate(path) {
		lr.Rotate(path)
	}
}
