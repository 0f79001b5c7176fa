// packet.go implements code 3 framing inspection and rewriting per RFC 6716
// Section 3.2.

package opus

// Frame count byte flags of code 3 packets.
const (
	countVBR     = 0x80
	countPadding = 0x40
	countFrames  = 0x3F
)

// maxFrameCount is the largest frame count a code 3 packet may carry
// (120 ms of 2.5 ms frames).
const maxFrameCount = 48

// Info contains the framing information of an Opus packet.
type Info struct {
	TOC        TOC  // Parsed TOC byte
	FrameCount int  // Number of frames (1-48)
	VBR        bool // Code 3 VBR flag
	HasPadding bool // Code 3 padding flag
	Padding    int  // Padding bytes (code 3 only)
	TotalSize  int  // Total packet size
}

// ParsePacket parses the TOC byte and, for code 3 packets, the frame count
// byte and padding length of an Opus packet. Frame lengths are not
// validated.
func ParsePacket(data []byte) (Info, error) {
	if len(data) < 1 {
		return Info{}, ErrPacketTooShort
	}

	toc := ParseTOC(data[0])
	info := Info{
		TOC:       toc,
		TotalSize: len(data),
	}

	switch toc.FrameCode {
	case 0:
		info.FrameCount = 1
	case 1, 2:
		info.FrameCount = 2
	case 3:
		if len(data) < 2 {
			return Info{}, ErrPacketTooShort
		}
		count := data[1]
		info.VBR = count&countVBR != 0
		info.HasPadding = count&countPadding != 0
		info.FrameCount = int(count & countFrames)
		if info.FrameCount == 0 || info.FrameCount > maxFrameCount {
			return Info{}, ErrInvalidFrameCount
		}

		if info.HasPadding {
			padding, _, err := parsePaddingCount(data, 2)
			if err != nil {
				return Info{}, err
			}
			info.Padding = padding
		}
	}

	return info, nil
}

// parsePaddingCount decodes the padding length starting at offset.
// Returns the padding length and the number of bytes used to encode it.
func parsePaddingCount(data []byte, offset int) (int, int, error) {
	padding := 0
	n := 0
	for {
		if offset+n >= len(data) {
			return 0, 0, ErrPacketTooShort
		}
		b := int(data[offset+n])
		n++
		if b < 255 {
			return padding + b, n, nil
		}
		padding += 254
	}
}

// FrameSamples returns the duration of one frame in 48 kHz samples.
func (i Info) FrameSamples() (int, error) {
	return i.TOC.FrameSamples()
}

// Granule returns the number of 48 kHz samples the packet decodes to.
func (i Info) Granule() (uint64, error) {
	n, err := i.TOC.FrameSamples()
	if err != nil {
		return 0, err
	}
	return uint64(n) * uint64(i.FrameCount), nil
}

// PacketGranule parses data and returns its granule contribution.
// Zero-length packets carry no frames and contribute nothing.
func PacketGranule(data []byte) (uint64, error) {
	if len(data) == 0 {
		return 0, nil
	}
	info, err := ParsePacket(data)
	if err != nil {
		return 0, err
	}
	return info.Granule()
}

// PaddingCountSize returns the number of bytes needed to encode a padding
// length of count.
func PaddingCountSize(count int) int {
	if count <= 254 {
		return 1
	}
	return 1 + (count-1)/254
}

// appendPaddingCount appends the padding length encoding of count to dst.
func appendPaddingCount(dst []byte, count int) []byte {
	for count > 254 {
		dst = append(dst, 255)
		count -= 254
	}
	return append(dst, byte(count))
}

// ConvertToFramePacking3 rewrites a code 0, 1 or 2 packet into the
// equivalent code 3 packet. The TOC frame code is set to 3 and a frame count
// byte is inserted after it, with the VBR flag set when the source was
// code 2 so that its frame length stays meaningful. The result is one byte
// longer than data.
//
// Code 3 packets and empty input are returned unchanged, so the conversion
// is idempotent.
func ConvertToFramePacking3(data []byte) []byte {
	if len(data) == 0 {
		return data
	}

	toc := ParseTOC(data[0])
	var count byte
	switch toc.FrameCode {
	case 0:
		count = 1
	case 1:
		count = 2
	case 2:
		count = 2 | countVBR
	default:
		return data
	}

	out := make([]byte, 0, len(data)+1)
	out = append(out, data[0]|0x03, count)
	return append(out, data[1:]...)
}

// SetPadding marks a code 3 packet as padded and inserts the encoding of a
// padding length of count after its frame count byte. The padding bytes
// themselves are not appended: the caller must add count zero bytes at the
// end of the returned packet.
//
// The packet must be code 3 and must not already be padded.
func SetPadding(data []byte, count int) ([]byte, error) {
	if count < 0 {
		return nil, ErrInvalidPadding
	}
	if len(data) < 2 {
		return nil, ErrPacketTooShort
	}
	if data[0]&0x03 != 3 {
		return nil, ErrNotFramePacking3
	}
	if data[1]&countPadding != 0 {
		return nil, ErrAlreadyPadded
	}

	out := make([]byte, 0, len(data)+PaddingCountSize(count))
	out = append(out, data[0], data[1]|countPadding)
	out = appendPaddingCount(out, count)
	return append(out, data[2:]...), nil
}
