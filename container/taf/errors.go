package taf

import "errors"

// Package-level errors for building and reading containers.
var (
	// ErrMissingHeader indicates the file does not start with a readable
	// container header, for example a plain Ogg stream.
	ErrMissingHeader = errors.New("taf: missing or invalid container header")

	// ErrUnsupportedStream indicates an input that is not a 2 channel
	// 48 kHz Opus stream.
	ErrUnsupportedStream = errors.New("taf: unsupported opus stream")

	// ErrHeaderTooLarge indicates the header message does not fit the
	// header block.
	ErrHeaderTooLarge = errors.New("taf: header too large")

	// ErrNoAudio indicates a stream without the expected Ogg pages.
	ErrNoAudio = errors.New("taf: no ogg pages found")

	// ErrNoInputs indicates a build without input files.
	ErrNoInputs = errors.New("taf: no input files")
)
