package subtitle

import (
	"errors"
	"fmt"
)

// Error categories returned by FileConverter and BatchOrchestrator. Callers
// can classify failures with errors.Is.
var (
	// ErrNotFound indicates the input file does not exist.
	ErrNotFound = errors.New("input file not found")

	// ErrIO indicates a path could not be read or written (permissions,
	// disk errors, the file disappearing after discovery).
	ErrIO = errors.New("file i/o failed")

	// ErrAlreadyExists indicates the computed output path exists and
	// neither overwrite-existing nor overwrite-input was requested. It is
	// returned before any backup or write side effect.
	ErrAlreadyExists = errors.New("output file already exists")

	// ErrEncoding indicates the source bytes could not be converted to
	// UTF-8 from the detected or requested encoding.
	ErrEncoding = errors.New("encoding conversion failed")

	// ErrProcessing wraps any failure inside the single-file pipeline,
	// including the categories above and sanitizer failures.
	ErrProcessing = errors.New("subtitle processing failed")
)

// RestoreError reports that processing failed while overwriting the input in
// place and the subsequent attempt to restore the input from its backup also
// failed. Both causes are carried.
type RestoreError struct {
	Cause      error
	RestoreErr error
}

func (e *RestoreError) Error() string {
	return fmt.Sprintf("processing failed (%v) and backup restoration failed (%v)", e.Cause, e.RestoreErr)
}

// Unwrap exposes both underlying errors to errors.Is/errors.As.
func (e *RestoreError) Unwrap() []error {
	return []error{e.Cause, e.RestoreErr}
}
