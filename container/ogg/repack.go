package ogg

import "fmt"

// RepackConfig configures Repack.
type RepackConfig struct {
	// FirstPageSize is the exact size of the first output page.
	FirstPageSize int

	// PageSize is the exact size of every following output page.
	PageSize int

	// Template provides the header fields (serial number, version) of the
	// output pages. BOS and EOS flags are not copied.
	Template *Page

	// Granule is the granule position preceding the first output page.
	Granule uint64

	// StartSequence is the sequence number of the first output page.
	StartSequence uint32

	// MarkLast flags the final output page as end of stream.
	MarkLast bool
}

// Repack moves the packets of src onto new pages that are padded to exactly
// FirstPageSize and PageSize bytes. Packets keep their order and are never
// split across pages; zero-length packets carry no frames and are dropped.
// Granule positions, sequence numbers and checksums of the output pages are
// recomputed. The last page is padded to the current page size as well.
//
// The fragments of src are consumed.
func Repack(src []*Page, cfg RepackConfig) ([]*Page, error) {
	if cfg.Template == nil {
		return nil, fmt.Errorf("%w: no template page", ErrInvalidPage)
	}

	var out []*Page
	granule := cfg.Granule
	seq := cfg.StartSequence
	target := cfg.FirstPageSize

	newPage := func() *Page {
		p := NewPageFrom(cfg.Template)
		p.HeaderType &^= PageFlagBOS | PageFlagEOS
		p.PageSequence = seq
		return p
	}

	finish := func(p *Page) error {
		if err := p.Pad(target); err != nil {
			return fmt.Errorf("pad page %d: %w", p.PageSequence, err)
		}
		if err := p.CorrectValues(granule); err != nil {
			return err
		}
		granule = p.GranulePos
		out = append(out, p)
		return nil
	}

	page := newPage()
	for _, in := range src {
		for len(in.Fragments) > 0 {
			size, count := in.FirstPacketSpan()
			if size == 0 {
				in.takeFirstPacket()
				continue
			}

			if size+count+page.Size() <= target && len(page.Fragments)+count <= maxSegments {
				page.Fragments = append(page.Fragments, in.takeFirstPacket()...)
				continue
			}

			if len(page.Fragments) == 0 {
				return nil, fmt.Errorf("%w: %d bytes in %d segments, page size %d",
					ErrPacketTooLarge, size, count, target)
			}
			if err := finish(page); err != nil {
				return nil, err
			}
			seq++
			target = cfg.PageSize
			page = newPage()
		}
	}

	if len(page.Fragments) > 0 {
		if cfg.MarkLast {
			page.HeaderType |= PageFlagEOS
		}
		if err := finish(page); err != nil {
			return nil, err
		}
	}

	return out, nil
}
