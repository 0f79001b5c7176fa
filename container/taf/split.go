package taf

import (
	"fmt"
	"io"

	"github.com/thesyncim/gotaf/container/ogg"
)

// Split writes every chapter of the container in r as a separate Ogg Opus
// stream. create is called with the zero-based chapter index and must
// return the destination of that chapter; it is closed once the chapter is
// written.
//
// Each stream starts with the identification and comment pages of the
// container. The chapter's pages follow, renumbered from sequence 2, with
// granule positions counted from zero and the last page flagged as end of
// stream. A container without chapter list is written as a single chapter.
//
// Split returns the number of chapters written.
func Split(r io.ReadSeeker, create func(chapter int) (io.WriteCloser, error)) (int, error) {
	h, size, err := ReadHeader(r)
	if err != nil {
		return 0, err
	}

	start, err := audioStart(r, size)
	if err != nil {
		return 0, err
	}
	sr := ogg.NewStreamReader(r, start)
	head, tags, err := sr.ReadHeaders()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrNoAudio, err)
	}

	starts := h.ChapterPages
	if len(starts) == 0 {
		starts = []uint32{0}
	}

	next, err := sr.NextPage()
	if err == io.EOF {
		return 0, ErrNoAudio
	}
	if err != nil {
		return 0, err
	}

	written := 0
	for i := range starts {
		// Pages before the next chapter start belong to this chapter; the
		// last chapter takes the rest of the stream.
		var end uint32
		if i+1 < len(starts) {
			end = starts[i+1]
		}

		var pages []*ogg.Page
		for next != nil && (end == 0 || next.PageSequence < end) {
			pages = append(pages, next)
			next, err = sr.NextPage()
			if err == io.EOF {
				next = nil
			} else if err != nil {
				return written, err
			}
		}

		if err := writeChapter(i, create, head, tags, pages); err != nil {
			return written, fmt.Errorf("chapter %d: %w", i+1, err)
		}
		written++
	}
	return written, nil
}

// writeChapter writes the header pages followed by pages as one stream.
func writeChapter(i int, create func(int) (io.WriteCloser, error), head, tags *ogg.Page, pages []*ogg.Page) (err error) {
	w, err := create(i)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := w.Close(); err == nil {
			err = cerr
		}
	}()

	for _, p := range []*ogg.Page{head, tags} {
		if _, err := p.WriteTo(w); err != nil {
			return err
		}
	}

	var granule uint64
	for k, p := range pages {
		p.PageSequence = uint32(2 + k)
		p.HeaderType &^= ogg.PageFlagEOS
		if k == len(pages)-1 {
			p.HeaderType |= ogg.PageFlagEOS
		}
		if err := p.CorrectValues(granule); err != nil {
			return err
		}
		granule = p.GranulePos
		if _, err := p.WriteTo(w); err != nil {
			return err
		}
	}
	return nil
}
