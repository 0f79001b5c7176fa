package opus

import "errors"

// Errors returned by packet parsing and rewriting.
var (
	// ErrPacketTooShort indicates the packet ends before its TOC byte or
	// before the code 3 count and padding bytes.
	ErrPacketTooShort = errors.New("opus: packet too short")

	// ErrInvalidFrameCount indicates a code 3 frame count of 0 or above 48.
	ErrInvalidFrameCount = errors.New("opus: invalid frame count")

	// ErrUnsupportedConfig indicates a configuration whose frame duration
	// is not handled. Only the CELT-only configurations 16-31 are.
	ErrUnsupportedConfig = errors.New("opus: unsupported configuration")

	// ErrNotFramePacking3 indicates an operation that needs a code 3 packet
	// was given a code 0, 1 or 2 packet.
	ErrNotFramePacking3 = errors.New("opus: packet is not frame packing code 3")

	// ErrAlreadyPadded indicates an attempt to add padding to a packet that
	// already has its padding flag set.
	ErrAlreadyPadded = errors.New("opus: packet already padded")

	// ErrInvalidPadding indicates a negative padding length.
	ErrInvalidPadding = errors.New("opus: invalid padding length")
)
