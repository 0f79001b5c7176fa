package ogg

import (
	"encoding/binary"
	"strings"
)

// Opus header constants per RFC 7845.
const (
	// DefaultPreSkip is the standard Opus encoder lookahead at 48kHz.
	// This is the number of samples to discard at the beginning of decode.
	DefaultPreSkip = 312

	// opusHeadMagic is the magic signature for the OpusHead header.
	opusHeadMagic = "OpusHead"

	// opusTagsMagic is the magic signature for the OpusTags header.
	opusTagsMagic = "OpusTags"

	// opusHeadMinSize is the minimum size of an OpusHead packet (mapping family 0).
	opusHeadMinSize = 19

	// opusHeadVersion is the required version number for OpusHead.
	opusHeadVersion = 1
)

// Comment page contents written into every container.
const (
	tonieVendor     = "Lavf58.20.100"
	tonieTagsSize   = 0x1B4
	tonieCommentPad = "pad="
)

var tonieComments = []string{
	"encoder=opusenc from opus-tools 0.1.10",
	"encoder_options=--quiet --bitrate 96 --vbr",
}

// OpusHead is the identification header for Opus in Ogg.
// This appears in the first Ogg page (BOS) and describes the stream format.
type OpusHead struct {
	// Version is the format version (must be 1).
	Version uint8

	// Channels is the output channel count.
	Channels uint8

	// PreSkip is the number of samples to discard at the start (at 48kHz).
	// Typically 312 for standard Opus encoder lookahead.
	PreSkip uint16

	// SampleRate is the original input sample rate (informational only).
	// Opus always operates at 48kHz internally.
	SampleRate uint32

	// OutputGain is the gain to apply in Q7.8 dB format.
	OutputGain int16

	// MappingFamily specifies the channel mapping. Only family 0
	// (mono/stereo, implicit order) is encoded.
	MappingFamily uint8
}

// Encode serializes the OpusHead to its 19-byte mapping family 0 form.
func (h *OpusHead) Encode() []byte {
	data := make([]byte, opusHeadMinSize)
	copy(data[0:8], opusHeadMagic)
	data[8] = h.Version
	data[9] = h.Channels
	binary.LittleEndian.PutUint16(data[10:12], h.PreSkip)
	binary.LittleEndian.PutUint32(data[12:16], h.SampleRate)
	binary.LittleEndian.PutUint16(data[16:18], uint16(h.OutputGain))
	data[18] = h.MappingFamily
	return data
}

// ParseOpusHead parses an OpusHead from bytes. Trailing channel mapping
// tables of other mapping families are ignored.
// Returns ErrInvalidHeader if the data is malformed.
func ParseOpusHead(data []byte) (*OpusHead, error) {
	if len(data) < opusHeadMinSize {
		return nil, ErrInvalidHeader
	}

	// Verify magic signature.
	if string(data[0:8]) != opusHeadMagic {
		return nil, ErrInvalidHeader
	}

	return &OpusHead{
		Version:       data[8],
		Channels:      data[9],
		PreSkip:       binary.LittleEndian.Uint16(data[10:12]),
		SampleRate:    binary.LittleEndian.Uint32(data[12:16]),
		OutputGain:    int16(binary.LittleEndian.Uint16(data[16:18])),
		MappingFamily: data[18],
	}, nil
}

// DefaultOpusHead returns an OpusHead with standard settings.
// sampleRate is the original input sample rate (informational).
// channels is 1 for mono, 2 for stereo.
func DefaultOpusHead(sampleRate uint32, channels uint8) *OpusHead {
	return &OpusHead{
		Version:    opusHeadVersion,
		Channels:   channels,
		PreSkip:    DefaultPreSkip,
		SampleRate: sampleRate,
	}
}

// OpusTags is the comment header for Opus in Ogg.
// This appears in the second Ogg page and contains metadata.
type OpusTags struct {
	// Vendor is the encoder name.
	Vendor string

	// Comments holds the user comments ("KEY=value") in stream order.
	Comments []string
}

// Encode serializes the OpusTags to bytes.
func (t *OpusTags) Encode() []byte {
	// 8 bytes: "OpusTags"
	// 4 bytes: vendor string length
	// N bytes: vendor string
	// 4 bytes: comment count
	// For each comment:
	//   4 bytes: comment length
	//   N bytes: comment string
	size := 8 + 4 + len(t.Vendor) + 4
	for _, c := range t.Comments {
		size += 4 + len(c)
	}

	data := make([]byte, 0, size)
	data = append(data, opusTagsMagic...)
	data = binary.LittleEndian.AppendUint32(data, uint32(len(t.Vendor)))
	data = append(data, t.Vendor...)
	data = binary.LittleEndian.AppendUint32(data, uint32(len(t.Comments)))
	for _, c := range t.Comments {
		data = binary.LittleEndian.AppendUint32(data, uint32(len(c)))
		data = append(data, c...)
	}
	return data
}

// Get returns the value of the first comment with the given key. Keys are
// compared case-insensitively.
func (t *OpusTags) Get(key string) (string, bool) {
	for _, c := range t.Comments {
		k, v, ok := strings.Cut(c, "=")
		if ok && strings.EqualFold(k, key) {
			return v, true
		}
	}
	return "", false
}

// ParseOpusTags parses an OpusTags from bytes.
// Returns ErrInvalidHeader if the data is malformed.
func ParseOpusTags(data []byte) (*OpusTags, error) {
	// Minimum size: 8 (magic) + 4 (vendor len) + 4 (comment count) = 16
	if len(data) < 16 {
		return nil, ErrInvalidHeader
	}

	// Verify magic signature.
	if string(data[0:8]) != opusTagsMagic {
		return nil, ErrInvalidHeader
	}

	offset := 8
	readString := func() (string, bool) {
		if offset+4 > len(data) {
			return "", false
		}
		n := int(binary.LittleEndian.Uint32(data[offset : offset+4]))
		offset += 4
		if n < 0 || offset+n > len(data) {
			return "", false
		}
		s := string(data[offset : offset+n])
		offset += n
		return s, true
	}

	vendor, ok := readString()
	if !ok {
		return nil, ErrInvalidHeader
	}
	t := &OpusTags{Vendor: vendor}

	if offset+4 > len(data) {
		return nil, ErrInvalidHeader
	}
	count := binary.LittleEndian.Uint32(data[offset : offset+4])
	offset += 4

	for i := uint32(0); i < count; i++ {
		c, ok := readString()
		if !ok {
			return nil, ErrInvalidHeader
		}
		t.Comments = append(t.Comments, c)
	}

	return t, nil
}

// TonieTags returns the comment header written into every container. A
// trailing "pad=000..." comment fills the packet to 436 bytes so that it
// occupies exactly two segments.
func TonieTags() *OpusTags {
	t := &OpusTags{
		Vendor:   tonieVendor,
		Comments: append([]string(nil), tonieComments...),
	}
	fill := tonieTagsSize - len(t.Encode()) - 4 - len(tonieCommentPad)
	t.Comments = append(t.Comments, tonieCommentPad+strings.Repeat("0", fill))
	return t
}
