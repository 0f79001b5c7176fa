package taf

import (
	"encoding/binary"
	"fmt"
	"io"

	"google.golang.org/protobuf/encoding/protowire"
)

const (
	// BlockSize is the size of the header block and of the audio pages.
	BlockSize = 0x1000

	// lengthSize is the size of the big-endian message length prefix.
	lengthSize = 4

	// maxMessageSize is the largest header message that fits the block.
	maxMessageSize = BlockSize - lengthSize
)

// Field numbers of the tonie.TonieHeader message.
const (
	fieldDataHash     protowire.Number = 1
	fieldDataLength   protowire.Number = 2
	fieldTimestamp    protowire.Number = 3
	fieldChapterPages protowire.Number = 4
	fieldPadding      protowire.Number = 5
)

// Header is the metadata block at the start of a container.
type Header struct {
	// DataHash is the SHA-1 of every byte following the header block.
	DataHash []byte

	// DataLength is the number of bytes following the header block.
	DataLength uint32

	// Timestamp identifies the container. It equals the serial number of
	// the embedded Ogg stream.
	Timestamp uint32

	// ChapterPages holds the page sequence number each chapter starts at.
	// The first chapter starts at page 0.
	ChapterPages []uint32

	// Padding fills the message up to the block size.
	Padding []byte
}

// Marshal encodes h as a proto3 tonie.TonieHeader message. Zero values are
// omitted.
func (h *Header) Marshal() []byte {
	var b []byte
	if len(h.DataHash) > 0 {
		b = protowire.AppendTag(b, fieldDataHash, protowire.BytesType)
		b = protowire.AppendBytes(b, h.DataHash)
	}
	if h.DataLength != 0 {
		b = protowire.AppendTag(b, fieldDataLength, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(h.DataLength))
	}
	if h.Timestamp != 0 {
		b = protowire.AppendTag(b, fieldTimestamp, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(h.Timestamp))
	}
	if len(h.ChapterPages) > 0 {
		var packed []byte
		for _, p := range h.ChapterPages {
			packed = protowire.AppendVarint(packed, uint64(p))
		}
		b = protowire.AppendTag(b, fieldChapterPages, protowire.BytesType)
		b = protowire.AppendBytes(b, packed)
	}
	if len(h.Padding) > 0 {
		b = protowire.AppendTag(b, fieldPadding, protowire.BytesType)
		b = protowire.AppendBytes(b, h.Padding)
	}
	return b
}

// Unmarshal decodes a tonie.TonieHeader message into h. Unknown fields are
// skipped. Chapter pages are accepted packed and unpacked.
func (h *Header) Unmarshal(b []byte) error {
	*h = Header{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		switch {
		case num == fieldDataHash && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			h.DataHash = append([]byte(nil), v...)
			b = b[n:]

		case num == fieldDataLength && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			h.DataLength = uint32(v)
			b = b[n:]

		case num == fieldTimestamp && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			h.Timestamp = uint32(v)
			b = b[n:]

		case num == fieldChapterPages && typ == protowire.BytesType:
			packed, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			for len(packed) > 0 {
				v, m := protowire.ConsumeVarint(packed)
				if m < 0 {
					return protowire.ParseError(m)
				}
				h.ChapterPages = append(h.ChapterPages, uint32(v))
				packed = packed[m:]
			}
			b = b[n:]

		case num == fieldChapterPages && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			h.ChapterPages = append(h.ChapterPages, uint32(v))
			b = b[n:]

		case num == fieldPadding && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			h.Padding = append([]byte(nil), v...)
			b = b[n:]

		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return nil
}

// Block returns the header block: the message length as a big-endian
// uint32 followed by the message. Padding is replaced by zero bytes sized
// so that the block is exactly BlockSize bytes. When no padding length
// fills the block exactly, the largest one that fits is used and the block
// ends with zero fill.
func (h *Header) Block() ([]byte, error) {
	h.Padding = nil
	size := len(h.Marshal())
	if size > maxMessageSize {
		return nil, fmt.Errorf("%w: %d bytes without padding", ErrHeaderTooLarge, size)
	}

	// The padding field costs its tag, its length varint and its bytes.
	avail := maxMessageSize - size - protowire.SizeTag(fieldPadding)
	for n := avail - 1; n >= 0; n-- {
		if n+protowire.SizeVarint(uint64(n)) <= avail {
			h.Padding = make([]byte, n)
			break
		}
	}

	msg := h.Marshal()
	block := make([]byte, BlockSize)
	binary.BigEndian.PutUint32(block, uint32(len(msg)))
	copy(block[lengthSize:], msg)
	return block, nil
}

// ReadHeader reads the length-prefixed header message at the start of r.
// Zero fill between the message and the end of the header block is not
// consumed; see audioStart.
// It returns the header and the size of the message, excluding the length
// prefix. A length that does not fit the header block, as found at the
// start of a plain Ogg stream, fails with ErrMissingHeader.
func ReadHeader(r io.Reader) (*Header, int, error) {
	var prefix [lengthSize]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrMissingHeader, err)
	}

	size := binary.BigEndian.Uint32(prefix[:])
	if size > maxMessageSize {
		return nil, 0, fmt.Errorf("%w: header length %#x", ErrMissingHeader, size)
	}

	msg := make([]byte, size)
	if _, err := io.ReadFull(r, msg); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrMissingHeader, err)
	}

	h := &Header{}
	if err := h.Unmarshal(msg); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrMissingHeader, err)
	}
	return h, int(size), nil
}

// audioStart positions r after the header block and returns the offset of
// the Ogg stream. r must be positioned right after a message of size bytes.
// Zero fill up to BlockSize belongs to the header block; anything else
// there is taken as the start of the stream.
func audioStart(r io.ReadSeeker, size int) (int64, error) {
	start := int64(lengthSize + size)
	if fill := BlockSize - start; fill > 0 {
		buf := make([]byte, fill)
		if _, err := io.ReadFull(r, buf); err == nil && allZero(buf) {
			return BlockSize, nil
		}
	}
	if _, err := r.Seek(start, io.SeekStart); err != nil {
		return 0, err
	}
	return start, nil
}

func allZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}
