package taf

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/thesyncim/gotaf/container/ogg"
)

// Chapter describes one chapter of a container.
type Chapter struct {
	// Page is the sequence number of the page the chapter starts at, as
	// listed in the header.
	Page uint32

	// Start is the granule position the chapter starts at.
	Start uint64

	// Length is the number of 48 kHz samples in the chapter.
	Length uint64
}

// Duration returns the playing time of the chapter.
func (c Chapter) Duration() time.Duration {
	return granuleDuration(c.Length)
}

// Report is the result of inspecting a container. Every consistency check is
// evaluated on its own; Valid combines them.
type Report struct {
	Header *Header

	// HeaderSize is the size of the header message without its length
	// prefix.
	HeaderSize int

	// FileSize is the size of the whole container.
	FileSize int64

	// AudioSize is the number of bytes following the header block.
	AudioSize int64

	// Hash is the SHA-1 of the bytes following the header block.
	Hash []byte

	// OpusHead is the parsed identification header, nil if the first page
	// does not hold one.
	OpusHead *ogg.OpusHead

	// Tags is the parsed comment header, nil if the second page does not
	// hold one.
	Tags *ogg.OpusTags

	// TonieTags is set when the comment header is the fixed one written
	// by Builder. Other comment headers play as well, so this is not part
	// of Valid.
	TonieTags bool

	// Truncated is set when the last page ends before its declared size.
	Truncated bool

	// Serial is the serial number of the first Ogg page.
	Serial uint32

	// PageCount is the number of Ogg pages.
	PageCount int

	// Granule is the granule position of the last page.
	Granule uint64

	// Chapters lists the chapters found in the stream.
	Chapters []Chapter

	HashOK      bool // Header hash matches the data
	TimestampOK bool // Header timestamp matches the stream serial number
	AudioSizeOK bool // Header data length matches the data
	OpusOK      bool // Version 1 stereo Opus at 48 or 44.1 kHz
	AlignmentOK bool // Audio pages start on block boundaries
	PageSizeOK  bool // Audio pages, except the first and the last, fill a block
}

// Valid reports whether every consistency check passed.
func (r *Report) Valid() bool {
	return r.HashOK && r.TimestampOK && r.AudioSizeOK && r.OpusOK &&
		r.AlignmentOK && r.PageSizeOK
}

// Duration returns the total playing time.
func (r *Report) Duration() time.Duration {
	return granuleDuration(r.Granule)
}

// Bitrate returns the average data rate in bits per second, or zero for an
// empty stream.
func (r *Report) Bitrate() float64 {
	d := r.Duration().Seconds()
	if d == 0 {
		return 0
	}
	return float64(r.AudioSize*8) / d
}

// Inspect reads a container and checks its consistency. Only a missing
// header or missing Ogg pages fail; every other problem, a truncated last
// page included, is reported through the Report.
func Inspect(r io.ReadSeeker) (*Report, error) {
	h, size, err := ReadHeader(r)
	if err != nil {
		return nil, err
	}
	start, err := audioStart(r, size)
	if err != nil {
		return nil, err
	}

	sum, n, err := hashOf(r)
	if err != nil {
		return nil, err
	}

	rep := &Report{
		Header:     h,
		HeaderSize: size,
		FileSize:   start + n,
		AudioSize:  n,
		Hash:       sum,
	}
	rep.HashOK = bytes.Equal(h.DataHash, sum)
	rep.AudioSizeOK = int64(h.DataLength) == n

	if _, err := r.Seek(start, io.SeekStart); err != nil {
		return nil, err
	}
	sr := ogg.NewStreamReader(r, start)

	head, tags, err := sr.ReadHeaders()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoAudio, err)
	}
	if len(tags.Fragments) > 0 {
		packet := tags.PacketAt(0)
		if t, err := ogg.ParseOpusTags(packet); err == nil {
			rep.Tags = t
			rep.TonieTags = bytes.Equal(packet, ogg.TonieTags().Encode())
		}
	}
	rep.Serial = head.SerialNumber
	rep.TimestampOK = h.Timestamp == head.SerialNumber
	if len(head.Fragments) > 0 {
		if oh, err := ogg.ParseOpusHead(head.PacketAt(0)); err == nil {
			rep.OpusHead = oh
			rep.OpusOK = oh.Version == 1 && oh.Channels == 2 &&
				(oh.SampleRate == 48000 || oh.SampleRate == 44100)
		}
	}

	rep.AlignmentOK = sr.Offset() == start+headerPagesSize
	rep.PageSizeOK = true
	rep.PageCount = 2

	if err := rep.scanAudio(sr); err != nil {
		return nil, err
	}
	return rep, nil
}

// scanAudio walks the audio pages, checking their layout and collecting the
// chapter boundaries.
func (rep *Report) scanAudio(sr *ogg.StreamReader) error {
	chapterPages := make(map[uint32]bool, len(rep.Header.ChapterPages))
	for _, p := range rep.Header.ChapterPages {
		chapterPages[p] = true
	}

	// The first chapter starts at page 0, before any audio.
	if chapterPages[0] {
		rep.Chapters = append(rep.Chapters, Chapter{})
	}

	var prev uint64
	found, err := sr.SeekNextPage()
	for found && err == nil {
		var page *ogg.Page
		page, err = sr.ReadPage()
		if errors.Is(err, ogg.ErrUnexpectedEOS) {
			// A cut off last page leaves the rest of the report intact.
			rep.Truncated = true
			rep.AlignmentOK = false
			rep.PageSizeOK = false
			err = nil
			break
		}
		if err != nil {
			break
		}
		rep.PageCount++

		// A chapter starts after the samples of the preceding page.
		if page.PageSequence != 0 && chapterPages[page.PageSequence] {
			rep.Chapters = append(rep.Chapters, Chapter{Page: page.PageSequence, Start: prev})
		}
		prev = page.GranulePos
		rep.Granule = page.GranulePos

		found, err = sr.SeekNextPage()
		if found && sr.Offset()%BlockSize != 0 {
			rep.AlignmentOK = false
		}
		// The first audio page is smaller and the last one may be.
		if found && rep.PageCount > 3 && page.Size() != BlockSize {
			rep.PageSizeOK = false
		}
	}
	if err != nil {
		return fmt.Errorf("page %d: %w", rep.PageCount+1, err)
	}

	for i := range rep.Chapters {
		end := rep.Granule
		if i+1 < len(rep.Chapters) {
			end = rep.Chapters[i+1].Start
		}
		if end > rep.Chapters[i].Start {
			rep.Chapters[i].Length = end - rep.Chapters[i].Start
		}
	}
	return nil
}
