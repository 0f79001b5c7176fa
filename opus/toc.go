// toc.go implements TOC byte parsing per RFC 6716 Section 3.1.

package opus

import "time"

// Mode is the Opus coding mode selected by a configuration.
type Mode uint8

const (
	ModeSILK   Mode = iota // SILK-only mode (configs 0-11)
	ModeHybrid             // Hybrid SILK+CELT (configs 12-15)
	ModeCELT               // CELT-only mode (configs 16-31)
)

// SampleRate is the rate granule positions and frame sizes are counted in.
const SampleRate = 48000

// TOC represents the parsed Table of Contents byte of an Opus packet.
type TOC struct {
	Config    uint8 // Configuration 0-31
	Mode      Mode  // Derived from config
	FrameSize int   // Frame size in samples at 48kHz
	Stereo    bool  // True if stereo
	FrameCode uint8 // Code 0-3
}

// configEntry holds the mode and frame size for a configuration.
type configEntry struct {
	Mode      Mode
	FrameSize int // In samples at 48kHz
}

// configTable maps configuration indices 0-31 to their properties.
// Based on RFC 6716 Section 3.1 Table.
var configTable = [32]configEntry{
	// SILK-only NB, MB, WB: 10/20/40/60ms
	{ModeSILK, 480}, {ModeSILK, 960}, {ModeSILK, 1920}, {ModeSILK, 2880},
	{ModeSILK, 480}, {ModeSILK, 960}, {ModeSILK, 1920}, {ModeSILK, 2880},
	{ModeSILK, 480}, {ModeSILK, 960}, {ModeSILK, 1920}, {ModeSILK, 2880},
	// Hybrid SWB, FB: 10/20ms
	{ModeHybrid, 480}, {ModeHybrid, 960},
	{ModeHybrid, 480}, {ModeHybrid, 960},
	// CELT NB, WB, SWB, FB: 2.5/5/10/20ms
	{ModeCELT, 120}, {ModeCELT, 240}, {ModeCELT, 480}, {ModeCELT, 960},
	{ModeCELT, 120}, {ModeCELT, 240}, {ModeCELT, 480}, {ModeCELT, 960},
	{ModeCELT, 120}, {ModeCELT, 240}, {ModeCELT, 480}, {ModeCELT, 960},
	{ModeCELT, 120}, {ModeCELT, 240}, {ModeCELT, 480}, {ModeCELT, 960},
}

// GenerateTOC creates a TOC byte from its fields.
//
//	0: 1 frame
//	1: 2 equal-sized frames
//	2: 2 different-sized frames
//	3: arbitrary number of frames
func GenerateTOC(config uint8, stereo bool, frameCode uint8) byte {
	toc := (config & 0x1F) << 3
	if stereo {
		toc |= 0x04
	}
	toc |= frameCode & 0x03
	return toc
}

// ParseTOC parses a TOC byte and returns the decoded fields.
func ParseTOC(b byte) TOC {
	config := b >> 3          // Top 5 bits
	stereo := (b & 0x04) != 0 // Bit 2
	frameCode := b & 0x03     // Bottom 2 bits

	entry := configTable[config]

	return TOC{
		Config:    config,
		Mode:      entry.Mode,
		FrameSize: entry.FrameSize,
		Stereo:    stereo,
		FrameCode: frameCode,
	}
}

// FrameSamples returns the per-frame duration in 48 kHz samples.
// Only the CELT-only configurations are supported; the 2.5, 5, 10 and 20 ms
// bands map to 120, 240, 480 and 960 samples.
func (t TOC) FrameSamples() (int, error) {
	if t.Mode != ModeCELT {
		return 0, ErrUnsupportedConfig
	}
	return t.FrameSize, nil
}

// FrameDuration returns the per-frame duration.
func (t TOC) FrameDuration() (time.Duration, error) {
	n, err := t.FrameSamples()
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * time.Second / SampleRate, nil
}
