package ogg

import (
	"io"
	"math/rand"
	"time"
)

// WriterConfig configures the Writer.
type WriterConfig struct {
	// SampleRate is the original input sample rate (informational only).
	// Opus always operates at 48kHz internally.
	SampleRate uint32

	// Channels is the output channel count (1 or 2).
	Channels uint8

	// PreSkip is the number of samples to discard at the start (at 48kHz).
	// Default is 312 for standard Opus encoder lookahead.
	PreSkip uint16

	// Serial is the bitstream serial number. A random serial is used when
	// zero.
	Serial uint32

	// PacketsPerPage is the number of packets collected on each audio page.
	// Default is 1.
	PacketsPerPage int

	// Tags is the comment header. Default is an empty header with the
	// "gotaf" vendor string.
	Tags *OpusTags
}

// Writer writes Opus packets to an Ogg container.
type Writer struct {
	w           io.Writer
	config      WriterConfig
	serial      uint32   // Bitstream serial number
	pageSeq     uint32   // Page sequence counter
	granulePos  uint64   // Sample position (at 48kHz)
	pending     [][]byte // Packets of the page being collected
	headersDone bool     // Headers written?
	closed      bool     // Stream closed?
}

// NewWriter creates a new Writer with default configuration.
// sampleRate is the original input sample rate (informational only).
// channels is 1 for mono or 2 for stereo.
func NewWriter(w io.Writer, sampleRate uint32, channels uint8) (*Writer, error) {
	return NewWriterWithConfig(w, WriterConfig{
		SampleRate: sampleRate,
		Channels:   channels,
	})
}

// NewWriterWithConfig creates a new Writer with explicit configuration and
// writes the identification and comment pages.
func NewWriterWithConfig(w io.Writer, config WriterConfig) (*Writer, error) {
	if config.Channels == 0 || config.Channels > 2 {
		return nil, ErrInvalidHeader
	}

	// Set defaults.
	if config.PreSkip == 0 {
		config.PreSkip = DefaultPreSkip
	}
	if config.PacketsPerPage <= 0 {
		config.PacketsPerPage = 1
	}
	if config.Tags == nil {
		config.Tags = &OpusTags{Vendor: "gotaf"}
	}

	serial := config.Serial
	if serial == 0 {
		rng := rand.New(rand.NewSource(time.Now().UnixNano()))
		serial = rng.Uint32()
	}

	ow := &Writer{
		w:      w,
		config: config,
		serial: serial,
	}

	// Write headers immediately.
	if err := ow.writeHeaders(); err != nil {
		return nil, err
	}

	return ow, nil
}

// writeHeaders writes the OpusHead (BOS page) and OpusTags pages.
func (ow *Writer) writeHeaders() error {
	if ow.headersDone {
		return nil
	}

	head := DefaultOpusHead(ow.config.SampleRate, ow.config.Channels)
	head.PreSkip = ow.config.PreSkip

	// Header pages MUST have granulePos = 0.
	if err := ow.writePage([][]byte{head.Encode()}, PageFlagBOS); err != nil {
		return err
	}
	if err := ow.writePage([][]byte{ow.config.Tags.Encode()}, 0); err != nil {
		return err
	}

	ow.headersDone = true
	return nil
}

// writePage writes a single Ogg page holding packets.
func (ow *Writer) writePage(packets [][]byte, headerType byte) error {
	page := &Page{
		HeaderType:   headerType,
		SerialNumber: ow.serial,
		PageSequence: ow.pageSeq,
	}
	for _, packet := range packets {
		page.AppendPacket(packet)
	}

	// Header pages have granule = 0.
	if ow.headersDone {
		page.GranulePos = ow.granulePos
	}
	page.UpdateChecksum()

	if _, err := page.WriteTo(ow.w); err != nil {
		return err
	}

	ow.pageSeq++
	return nil
}

// WritePacket adds an Opus packet to the stream.
// samples is the number of PCM samples at 48kHz represented by this packet
// (typically 960 for 20ms frames).
//
// Pages are written once they are full and a further packet arrives, so
// that Close can flag the last audio page as end of stream.
func (ow *Writer) WritePacket(packet []byte, samples int) error {
	if ow.closed {
		return ErrUnexpectedEOS
	}

	if len(ow.pending) == ow.config.PacketsPerPage {
		if err := ow.writePage(ow.pending, 0); err != nil {
			return err
		}
		ow.pending = nil
	}

	// The granule position of a page counts the samples of every packet
	// completed on it.
	ow.granulePos += uint64(samples)
	ow.pending = append(ow.pending, packet)
	return nil
}

// Close writes the last page flagged EOS and marks the stream as closed.
// The writer should not be used after Close.
func (ow *Writer) Close() error {
	if ow.closed {
		return nil
	}

	if err := ow.writePage(ow.pending, PageFlagEOS); err != nil {
		return err
	}

	ow.pending = nil
	ow.closed = true
	return nil
}

// GranulePos returns the current granule position (samples at 48kHz).
func (ow *Writer) GranulePos() uint64 {
	return ow.granulePos
}

// PageCount returns the number of pages written so far.
func (ow *Writer) PageCount() uint32 {
	return ow.pageSeq
}
