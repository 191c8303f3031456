package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions
var (
	ErrClipNotFound         = errors.New("clip not found")
	ErrInvalidFormat        = errors.New("unsupported audio format")
	ErrInvalidBuffer        = errors.New("invalid audio buffer")
	ErrSampleRateMismatch   = errors.New("sample rate does not match project rate")
	ErrDeviceUnavailable    = errors.New("audio output device unavailable")
	ErrDeviceClosed         = errors.New("audio output device closed")
	ErrNoSource             = errors.New("no source file loaded")
	ErrSeparatorUnavailable = errors.New("separation backend unavailable")
	ErrSeparationInProgress = errors.New("separation already in progress")
	ErrNoStems              = errors.New("no stems found")
)

// EngineError wraps playback and timeline errors with additional context
type EngineError struct {
	Op   string // Operation that failed
	Clip string // Clip ID if applicable
	Err  error  // Underlying error
}

func (e *EngineError) Error() string {
	if e.Clip != "" {
		return fmt.Sprintf("%s failed for clip %s: %v", e.Op, e.Clip, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// NewEngineError creates a new EngineError
func NewEngineError(op, clip string, err error) *EngineError {
	return &EngineError{Op: op, Clip: clip, Err: err}
}

// LoadError represents an error while reading or writing an audio file
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load error at %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
