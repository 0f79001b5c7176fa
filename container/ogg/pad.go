package ogg

import (
	"fmt"

	"github.com/thesyncim/gotaf/opus"
)

// padAction is the outcome of planning the padding of one packet.
type padAction int

const (
	padNothing     padAction = iota // page already has the target size
	padConvertOnly                  // converting to code 3 adds the single missing byte
	padBorrowByte                   // grow some packet by one byte, then plan again
	padSplit                        // too many segments; spread the padding over an earlier packet
	padExplicit                     // convert if needed and set an explicit padding count
)

// maxPadAttempts bounds the planning rounds of a single Pad call. Every
// borrowed byte converts or pads one packet, so a page of 255 segments can
// not legitimately need more rounds.
const maxPadAttempts = 2*maxSegments + 2

// maxPadDepth bounds the nesting of the too-many-segments fallback.
const maxPadDepth = 8

// Pad grows the page to exactly target bytes by padding its last packet.
// The page grows in three ways: converting the packet to frame packing 3
// adds one byte, setting a padding count adds the count encoding plus the
// padding bytes, and every 255 bytes added past a segment boundary adds a
// segment table entry.
//
// Returns ErrPageTooLarge if the page already exceeds target.
func (p *Page) Pad(target int) error {
	if len(p.Fragments) == 0 {
		if p.Size() == target {
			return nil
		}
		return fmt.Errorf("%w: page %d has no packets", ErrUnpaddable, p.PageSequence)
	}
	return p.PadAt(target, len(p.Fragments)-1)
}

// PadAt grows the page to exactly target bytes by padding the packet that
// holds segment idx.
func (p *Page) PadAt(target, idx int) error {
	if err := p.padAt(target, idx, 0); err != nil {
		return err
	}
	if size := p.Size(); size != target {
		return fmt.Errorf("%w: page %d size %d, want %d",
			ErrPadNotConverged, p.PageSequence, size, target)
	}
	p.UpdateChecksum()
	return nil
}

func (p *Page) padAt(target, idx, depth int) error {
	if depth > maxPadDepth {
		return fmt.Errorf("%w: nested too deep", ErrPadNotConverged)
	}
	if idx < 0 || idx >= len(p.Fragments) {
		return fmt.Errorf("%w: segment %d out of range", ErrInvalidPage, idx)
	}

	// Growing earlier packets inserts segments before idx; track the
	// target packet from the end of the page.
	fromEnd := len(p.Fragments) - 1 - idx

	for attempt := 0; attempt < maxPadAttempts; attempt++ {
		start, err := p.packetStart(len(p.Fragments) - 1 - fromEnd)
		if err != nil {
			return err
		}

		deficit := target - p.Size()
		if deficit < 0 {
			return fmt.Errorf("%w: page %d size %d, want %d",
				ErrPageTooLarge, p.PageSequence, p.Size(), target)
		}

		action, count := p.planPadding(start, deficit)
		switch action {
		case padNothing:
			return nil

		case padConvertOnly:
			return p.setPacketPadding(start, false, 0)

		case padExplicit:
			return p.setPacketPadding(start, true, count)

		case padBorrowByte:
			if err := p.padOneByte(start); err != nil {
				return err
			}

		case padSplit:
			prev := p.lastUnpaddedBefore(start)
			if prev < 0 {
				return fmt.Errorf("%w: page %d cannot grow by %d bytes",
					ErrTooManySegments, p.PageSequence, deficit)
			}
			if err := p.padAt(target-deficit/2, prev, depth+1); err != nil {
				return err
			}
		}
	}

	return fmt.Errorf("%w: page %d after %d attempts",
		ErrPadNotConverged, p.PageSequence, maxPadAttempts)
}

// planPadding decides how the packet starting at segment start absorbs
// deficit bytes. For padExplicit the returned count is the padding length
// to encode in the packet.
func (p *Page) planPadding(start, deficit int) (padAction, int) {
	if deficit == 0 {
		return padNothing, 0
	}

	span := p.PacketSpanAt(start)
	last := len(p.Fragments[start+span-1].Data)
	convert := p.frameCode(start) != 3

	// The packet would end exactly on a segment boundary, which costs an
	// extra zero-length segment the deficit has no room for.
	if (deficit+last)%maxLacing == 0 {
		return padBorrowByte, 0
	}

	if deficit == 1 {
		if convert {
			return padConvertOnly, 0
		}
		return padExplicit, 0
	}

	newSegments := 0
	if deficit+last >= maxLacing {
		for n := deficit + last - maxLacing; n >= 0; n -= maxLacing + 1 {
			newSegments++
		}
	}
	if len(p.Fragments)+newSegments > maxSegments {
		return padSplit, 0
	}
	if (deficit+last)%maxLacing == newSegments-1 {
		return padBorrowByte, 0
	}

	needed := deficit - newSegments
	if needed == 1 {
		if convert {
			return padConvertOnly, 0
		}
		return padExplicit, 0
	}
	if convert {
		needed--
	}
	// The count encoding takes at least one byte.
	needed--

	// A count c costs c plus its encoding width. Widths grow by one every
	// 254 units, so the first guess can overshoot by one.
	width := max(1, ceilDiv(needed, 254))
	for _, w := range []int{width, width - 1} {
		count := needed - w + 1
		if w >= 1 && count >= 0 && opus.PaddingCountSize(count) == w {
			return padExplicit, count
		}
	}
	return padBorrowByte, 0
}

// padOneByte grows the first eligible packet on the page by one byte: code 3
// packets get an empty padding count, other packets are converted to code 3.
// Eligible packets are not padded yet and do not cross a segment boundary
// when grown. The packet at segment target is only converted, never padded,
// so that it can still take an explicit padding count afterwards.
func (p *Page) padOneByte(target int) error {
	for i := 0; i < len(p.Fragments); i += p.PacketSpanAt(i) {
		if i == target && p.frameCode(i) == 3 {
			continue
		}
		data := p.PacketAt(i)
		if len(data) == 0 || len(data)%maxLacing >= maxLacing-1 {
			continue
		}
		info, err := opus.ParsePacket(data)
		if err != nil || info.HasPadding {
			continue
		}
		return p.setPacketPadding(i, info.TOC.FrameCode == 3, 0)
	}
	return fmt.Errorf("%w: page %d has no packet to take one more byte",
		ErrUnpaddable, p.PageSequence)
}

// lastUnpaddedBefore returns the start of the last packet before segment
// end that has no padding yet, or -1.
func (p *Page) lastUnpaddedBefore(end int) int {
	prev := -1
	for i := 0; i < end; i += p.PacketSpanAt(i) {
		data := p.Fragments[i].Data
		if len(data) > 1 && data[0]&0x03 == 3 && data[1]&0x40 != 0 {
			continue
		}
		prev = i
	}
	return prev
}

// setPacketPadding converts the packet starting at segment i to frame
// packing 3 and, if pad is set, marks it padded with count zero bytes.
func (p *Page) setPacketPadding(i int, pad bool, count int) error {
	data := opus.ConvertToFramePacking3(p.PacketAt(i))
	if pad {
		var err error
		data, err = opus.SetPadding(data, count)
		if err != nil {
			return fmt.Errorf("page %d packet at segment %d: %w", p.PageSequence, i, err)
		}
	}
	p.replacePacket(i, data, count)
	return nil
}

// frameCode returns the TOC frame packing code of the packet starting at
// segment i.
func (p *Page) frameCode(i int) uint8 {
	data := p.Fragments[i].Data
	if len(data) == 0 {
		return 0
	}
	return opus.ParseTOC(data[0]).FrameCode
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
