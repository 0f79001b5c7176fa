package ogg

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/thesyncim/gotaf/opus"
)

// Page header flag constants.
const (
	// PageFlagContinuation indicates this page contains data from a packet
	// that began on a previous page.
	PageFlagContinuation = 0x01

	// PageFlagBOS (Beginning of Stream) indicates this is the first page
	// of a logical bitstream.
	PageFlagBOS = 0x02

	// PageFlagEOS (End of Stream) indicates this is the last page of a
	// logical bitstream.
	PageFlagEOS = 0x04
)

// Page header size constants.
const (
	// pageHeaderSize is the fixed portion of the page header (before segment table).
	pageHeaderSize = 27

	// oggMagic is the capture pattern that identifies an Ogg page.
	oggMagic = "OggS"

	// maxSegments is the largest segment table a page can carry.
	maxSegments = 255

	// maxLacing is the lacing value of a full segment. A packet continues
	// in the next segment after a segment of this size.
	maxLacing = 255
)

// Fragment is one segment of a page: the bytes described by a single
// lacing value.
type Fragment struct {
	// Data holds the segment bytes. len(Data) is the lacing value.
	Data []byte

	// First is set when the fragment begins a new packet, that is when the
	// previous lacing value on the page was below 255.
	First bool
}

// Page represents a single Ogg page.
//
// The payload is held as an ordered list of fragments so that packets can be
// grown in place by splicing the list. The segment count is always
// len(Fragments).
type Page struct {
	// Version is the stream structure version (always 0).
	Version byte

	// HeaderType contains page flags (continuation, BOS, EOS).
	HeaderType byte

	// GranulePos is the granule position, representing the number of
	// samples decoded (including this page) at the page's end.
	// For Opus, this is the sample count at 48kHz.
	GranulePos uint64

	// SerialNumber identifies the logical bitstream.
	SerialNumber uint32

	// PageSequence is the page sequence number within the bitstream.
	PageSequence uint32

	// Checksum is the CRC stored in the page header. It is written as is
	// by Encode; mutating methods refresh it.
	Checksum uint32

	// Fragments contains the page payload, one entry per segment.
	Fragments []Fragment
}

// NewPageFrom returns an empty page carrying the header fields of template.
func NewPageFrom(template *Page) *Page {
	return &Page{
		Version:      template.Version,
		HeaderType:   template.HeaderType,
		GranulePos:   template.GranulePos,
		SerialNumber: template.SerialNumber,
		PageSequence: template.PageSequence,
	}
}

// BuildSegmentTable creates a segment table for a packet of the given length.
// Packets larger than 255 bytes span multiple segments (each 255 bytes except
// the final segment which contains the remainder).
func BuildSegmentTable(packetLen int) []byte {
	n := packetLen/maxLacing + 1
	segments := make([]byte, n)
	for i := 0; i < n-1; i++ {
		segments[i] = maxLacing
	}
	// An exact multiple of 255 ends with a zero-length segment.
	segments[n-1] = byte(packetLen % maxLacing)
	return segments
}

// splitPacket slices a packet into fragments following BuildSegmentTable.
func splitPacket(data []byte) []Fragment {
	table := BuildSegmentTable(len(data))
	frags := make([]Fragment, len(table))
	offset := 0
	for i, seg := range table {
		frags[i] = Fragment{Data: data[offset : offset+int(seg)]}
		offset += int(seg)
	}
	frags[0].First = true
	return frags
}

// AppendPacket appends a complete packet to the page.
func (p *Page) AppendPacket(data []byte) {
	p.Fragments = append(p.Fragments, splitPacket(data)...)
}

// IsBOS returns true if this is a Beginning of Stream page.
func (p *Page) IsBOS() bool {
	return p.HeaderType&PageFlagBOS != 0
}

// IsEOS returns true if this is an End of Stream page.
func (p *Page) IsEOS() bool {
	return p.HeaderType&PageFlagEOS != 0
}

// Segments returns the segment (lacing) table of the page.
func (p *Page) Segments() []byte {
	table := make([]byte, len(p.Fragments))
	for i, f := range p.Fragments {
		table[i] = byte(len(f.Data))
	}
	return table
}

// Size returns the encoded size of the page in bytes.
func (p *Page) Size() int {
	size := pageHeaderSize + len(p.Fragments)
	for _, f := range p.Fragments {
		size += len(f.Data)
	}
	return size
}

// putHeader writes the fixed 27-byte header with the given checksum.
func (p *Page) putHeader(data []byte, checksum uint32) {
	copy(data[0:4], oggMagic)
	data[4] = p.Version
	data[5] = p.HeaderType
	binary.LittleEndian.PutUint64(data[6:14], p.GranulePos)
	binary.LittleEndian.PutUint32(data[14:18], p.SerialNumber)
	binary.LittleEndian.PutUint32(data[18:22], p.PageSequence)
	binary.LittleEndian.PutUint32(data[22:26], checksum)
	data[26] = byte(len(p.Fragments))
}

// ComputeChecksum computes the CRC of the page with its checksum field
// zeroed. The header, the segment table and the fragments are folded in
// that order.
func (p *Page) ComputeChecksum() uint32 {
	var hdr [pageHeaderSize]byte
	p.putHeader(hdr[:], 0)
	crc := oggCRC(hdr[:])
	crc = oggCRCUpdate(crc, p.Segments())
	for _, f := range p.Fragments {
		crc = oggCRCUpdate(crc, f.Data)
	}
	return crc
}

// UpdateChecksum recomputes and stores the page checksum.
func (p *Page) UpdateChecksum() {
	p.Checksum = p.ComputeChecksum()
}

// ChecksumValid reports whether the stored checksum matches the page data.
func (p *Page) ChecksumValid() bool {
	return p.Checksum == p.ComputeChecksum()
}

// Encode serializes the page to bytes using the stored checksum.
// The output format is:
//   - 27-byte header
//   - Segment table
//   - Payload
func (p *Page) Encode() ([]byte, error) {
	if len(p.Fragments) > maxSegments {
		return nil, fmt.Errorf("%w: %d", ErrTooManySegments, len(p.Fragments))
	}

	data := make([]byte, p.Size())
	p.putHeader(data, p.Checksum)
	offset := pageHeaderSize
	for _, f := range p.Fragments {
		data[offset] = byte(len(f.Data))
		offset++
	}
	for _, f := range p.Fragments {
		offset += copy(data[offset:], f.Data)
	}
	return data, nil
}

// WriteTo writes the encoded page to w.
func (p *Page) WriteTo(w io.Writer) (int64, error) {
	data, err := p.Encode()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(data)
	return int64(n), err
}

// Granule returns the number of samples completed on this page: the sum of
// the granule contributions of every packet starting on it.
func (p *Page) Granule() (uint64, error) {
	var granule uint64
	for i, f := range p.Fragments {
		if !f.First {
			continue
		}
		g, err := opus.PacketGranule(p.PacketAt(i))
		if err != nil {
			return 0, fmt.Errorf("page %d packet at segment %d: %w",
				p.PageSequence, i, err)
		}
		granule += g
	}
	return granule, nil
}

// CorrectValues recomputes the granule position as lastGranule plus the
// samples of every packet on the page and refreshes the checksum. The
// identification and comment pages (sequence 0 and 1) carry no samples and
// get lastGranule unchanged.
func (p *Page) CorrectValues(lastGranule uint64) error {
	if len(p.Fragments) > maxSegments {
		return fmt.Errorf("%w: %d - max %d allowed", ErrTooManySegments,
			len(p.Fragments), maxSegments)
	}

	granule := uint64(0)
	if p.PageSequence > 1 {
		var err error
		granule, err = p.Granule()
		if err != nil {
			return err
		}
	}
	p.GranulePos = lastGranule + granule
	p.UpdateChecksum()
	return nil
}

// FirstPacketSpan returns the byte size and the segment count of the first
// packet on the page.
func (p *Page) FirstPacketSpan() (size, count int) {
	if len(p.Fragments) == 0 {
		return 0, 0
	}
	count = p.PacketSpanAt(0)
	for _, f := range p.Fragments[:count] {
		size += len(f.Data)
	}
	return size, count
}

// PacketSpanAt returns the number of segments of the packet starting at
// segment i.
func (p *Page) PacketSpanAt(i int) int {
	end := i + 1
	for end < len(p.Fragments) && !p.Fragments[end].First {
		end++
	}
	return end - i
}

// PacketAt returns the concatenated bytes of the packet starting at
// segment i.
func (p *Page) PacketAt(i int) []byte {
	span := p.PacketSpanAt(i)
	if span == 1 {
		return p.Fragments[i].Data
	}
	var data []byte
	for _, f := range p.Fragments[i : i+span] {
		data = append(data, f.Data...)
	}
	return data
}

// Packets returns every packet on the page.
func (p *Page) Packets() [][]byte {
	var packets [][]byte
	for i := 0; i < len(p.Fragments); i += p.PacketSpanAt(i) {
		packets = append(packets, p.PacketAt(i))
	}
	return packets
}

// packetStart returns the first segment of the packet holding segment idx.
func (p *Page) packetStart(idx int) (int, error) {
	if idx < 0 || idx >= len(p.Fragments) {
		return 0, fmt.Errorf("%w: segment %d out of range", ErrInvalidPage, idx)
	}
	for !p.Fragments[idx].First {
		idx--
		if idx < 0 {
			return 0, fmt.Errorf("%w: could not find begin of packet", ErrInvalidPage)
		}
	}
	return idx, nil
}

// takeFirstPacket removes the first packet from the page and returns its
// fragments.
func (p *Page) takeFirstPacket() []Fragment {
	_, count := p.FirstPacketSpan()
	frags := p.Fragments[:count:count]
	p.Fragments = p.Fragments[count:]
	return frags
}

// RedistributePacket appends extra zero bytes to the packet starting at
// segment i and re-slices it into as few segments as possible, inserting
// segment table entries as needed. A packet whose length is a multiple of
// 255 gets a terminating zero-length segment.
func (p *Page) RedistributePacket(i, extra int) {
	p.replacePacket(i, p.PacketAt(i), extra)
}

// replacePacket replaces the packet starting at segment i with data followed
// by extra zero bytes.
func (p *Page) replacePacket(i int, data []byte, extra int) {
	full := make([]byte, len(data)+extra)
	copy(full, data)

	span := p.PacketSpanAt(i)
	frags := splitPacket(full)

	tail := p.Fragments[i+span:]
	out := make([]Fragment, 0, i+len(frags)+len(tail))
	out = append(out, p.Fragments[:i]...)
	out = append(out, frags...)
	out = append(out, tail...)
	p.Fragments = out
}

// ParsePage reads one Ogg page from r. r must be positioned on the capture
// pattern. A page whose last packet continues on the next page is rejected
// with ErrSpanningPacket.
//
// Returns io.EOF if r is exhausted before the first byte.
func ParsePage(r io.Reader) (*Page, error) {
	var hdr [pageHeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("%w: page header: %v", ErrUnexpectedEOS, err)
	}

	if string(hdr[0:4]) != oggMagic {
		return nil, fmt.Errorf("%w: missing capture pattern", ErrInvalidPage)
	}
	if hdr[4] != 0 {
		return nil, fmt.Errorf("%w: version %d", ErrInvalidPage, hdr[4])
	}

	p := &Page{
		Version:      hdr[4],
		HeaderType:   hdr[5],
		GranulePos:   binary.LittleEndian.Uint64(hdr[6:14]),
		SerialNumber: binary.LittleEndian.Uint32(hdr[14:18]),
		PageSequence: binary.LittleEndian.Uint32(hdr[18:22]),
		Checksum:     binary.LittleEndian.Uint32(hdr[22:26]),
	}

	table := make([]byte, hdr[26])
	if _, err := io.ReadFull(r, table); err != nil {
		return nil, fmt.Errorf("%w: segment table: %v", ErrUnexpectedEOS, err)
	}

	payloadSize := 0
	for _, seg := range table {
		payloadSize += int(seg)
	}
	payload := make([]byte, payloadSize)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("%w: payload: %v", ErrUnexpectedEOS, err)
	}

	p.Fragments = make([]Fragment, len(table))
	offset := 0
	lastLacing := -1
	for i, seg := range table {
		p.Fragments[i] = Fragment{
			Data:  payload[offset : offset+int(seg) : offset+int(seg)],
			First: lastLacing != maxLacing,
		}
		offset += int(seg)
		lastLacing = int(seg)
	}

	if lastLacing == maxLacing {
		return nil, fmt.Errorf("%w: page %d", ErrSpanningPacket, p.PageSequence)
	}

	return p, nil
}
