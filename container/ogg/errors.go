package ogg

import "errors"

// Package-level errors for Ogg parsing, padding and repacking.
var (
	// ErrInvalidPage indicates the page structure is malformed.
	// This includes a missing "OggS" capture pattern or an invalid version.
	ErrInvalidPage = errors.New("ogg: invalid page structure")

	// ErrInvalidHeader indicates an Opus header (OpusHead or OpusTags) is malformed.
	// This includes wrong magic signature, unsupported version, or truncated data.
	ErrInvalidHeader = errors.New("ogg: invalid Opus header")

	// ErrUnexpectedEOS indicates the stream ended in the middle of a page.
	ErrUnexpectedEOS = errors.New("ogg: unexpected end of stream")

	// ErrSpanningPacket indicates a page whose last packet continues on
	// the next page. Such streams are not supported.
	ErrSpanningPacket = errors.New("ogg: opus packet spans ogg pages")

	// ErrTooManySegments indicates a page would need more than 255
	// segment table entries.
	ErrTooManySegments = errors.New("ogg: too many segments")

	// ErrPageTooLarge indicates a page is already larger than the size it
	// should be padded to.
	ErrPageTooLarge = errors.New("ogg: page larger than padding target")

	// ErrUnpaddable indicates no packet on the page can absorb the single
	// byte needed to reach the padding target.
	ErrUnpaddable = errors.New("ogg: page impossible to pad")

	// ErrPadNotConverged indicates padding a page did not reach its target
	// within the allowed number of attempts.
	ErrPadNotConverged = errors.New("ogg: page padding did not converge")

	// ErrPacketTooLarge indicates a single packet does not fit an empty
	// page of the requested size.
	ErrPacketTooLarge = errors.New("ogg: packet too large for page")
)
