// Package opus inspects and rewrites the framing of Opus packets.
//
// Only the packet framing defined in RFC 6716 Section 3 is handled here:
// the TOC byte, the frame count byte of code 3 packets and the padding
// length encoding that follows it. Audio data is never decoded.
//
// # Packet Structure
//
// Each Opus packet starts with a TOC (Table of Contents) byte:
//   - Bits 7-3: Configuration (0-31)
//   - Bit 2: Stereo flag
//   - Bits 1-0: Frame count code (0-3)
//
// Code 3 packets carry a frame count byte after the TOC:
//   - Bit 7: VBR flag
//   - Bit 6: Padding flag
//   - Bits 5-0: Frame count (1-48)
//
// When the padding flag is set, the padding length follows as a sequence
// of bytes where each 255 adds 254 bytes of padding and continues, and the
// first byte below 255 adds its own value and terminates the sequence.
// The padding bytes themselves sit at the very end of the packet.
//
// Granule positions in Ogg Opus streams always count samples at 48 kHz,
// so all durations in this package are expressed in 48 kHz samples.
package opus
