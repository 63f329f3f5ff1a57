// Package logging routes the standard logger to stderr and, optionally, a
// size-rotated log file.
package logging

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/mrlokans/shelfsync/internal/config"
)

// Setup points the standard logger at stderr plus cfg.File when set.
// The returned closer flushes the rotating file and must be called on shutdown.
func Setup(cfg config.Logging) io.Closer {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if cfg.File == "" {
		log.SetOutput(os.Stderr)
		return nopCloser{}
	}

	rotator := NewRotator(cfg)
	log.SetOutput(io.MultiWriter(os.Stderr, rotator))
	log.Printf("Logging to %s (max %d MB, %d backups)", cfg.File, rotator.MaxSize, rotator.MaxBackups)
	return rotator
}

// NewRotator builds the rotating file writer for cfg.
func NewRotator(cfg config.Logging) *lumberjack.Logger {
	maxSize := cfg.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 10
	}
	maxFiles := cfg.MaxFiles
	if maxFiles < 0 {
		maxFiles = 0
	}
	return &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    maxSize,
		MaxBackups: maxFiles,
		Compress:   false,
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
