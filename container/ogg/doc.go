// Package ogg implements the Ogg container format for Opus audio, with the
// page level operations needed to repack a stream onto fixed size pages.
//
// This package provides low-level primitives for reading and writing Ogg Opus
// files as specified in RFC 7845 (Ogg Encapsulation for the Opus Audio Codec)
// and RFC 3533 (The Ogg Encapsulation Format).
//
// # Page Structure
//
// An Ogg page has the following structure:
//
//	Bytes 0-3:   "OggS" capture pattern (magic signature)
//	Byte 4:      Stream structure version (always 0)
//	Byte 5:      Header type flags (continuation, BOS, EOS)
//	Bytes 6-13:  Granule position (samples decoded so far)
//	Bytes 14-17: Bitstream serial number
//	Bytes 18-21: Page sequence number
//	Bytes 22-25: CRC checksum
//	Byte 26:     Number of segments
//	Bytes 27+:   Segment table (one byte per segment)
//	Remaining:   Page payload data
//
// A Page keeps its payload as a list of fragments, one per segment table
// entry. Packets larger than 254 bytes span several fragments; a fragment
// starts a packet when the previous segment was shorter than 255 bytes.
// Packets continuing on the next page are not supported and are rejected
// by ParsePage.
//
// # CRC Calculation
//
// Ogg uses CRC-32 with polynomial 0x04C11DB7 (NOT the IEEE polynomial used
// by hash/crc32). The CRC is computed over the entire page with the CRC
// field set to zero.
//
// # Padding
//
// Page.Pad grows a page to an exact byte size without touching the audio.
// The last packet is rewritten to Opus frame packing 3 and given an
// explicit padding count; the zero bytes are appended to the packet and
// the segment table grows with it. Sizes that cannot be reached that way
// are reached by first growing an earlier packet by one byte. Repack uses
// this to lay a stream out on fixed size pages.
//
// # References
//
//   - RFC 7845: Ogg Encapsulation for the Opus Audio Codec
//   - RFC 3533: The Ogg Encapsulation Format Version 0
//   - RFC 6716: Definition of the Opus Audio Codec
package ogg
