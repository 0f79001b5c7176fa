package taf

import (
	"context"
	"crypto/sha1"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/decred/slog"

	"github.com/thesyncim/gotaf/container/ogg"
	"github.com/thesyncim/gotaf/opus"
)

// Page layout of the embedded Ogg stream.
const (
	// firstPageSize is the size of the first audio page. Together with the
	// identification and comment pages it ends the first block after the
	// header.
	firstPageSize = 0xE00

	// headerPagesSize is the size of the identification and comment pages
	// written into every container.
	headerPagesSize = 0x200
)

// Opener opens an input of a build. It returns an Ogg Opus stream.
type Opener func(ctx context.Context, name string) (io.ReadCloser, error)

// OpenFile opens name as an Ogg Opus file.
func OpenFile(_ context.Context, name string) (io.ReadCloser, error) {
	return os.Open(name)
}

// Builder combines Ogg Opus streams into a single container, one chapter
// per input.
type Builder struct {
	// Timestamp is written to the header and used as the serial number of
	// the Ogg stream. The current time is used when nil.
	Timestamp *uint32

	// NoHeader omits the header block.
	NoHeader bool

	// Open opens the inputs. OpenFile is used when nil.
	Open Opener

	// Log receives progress messages. Logging is disabled when nil.
	Log slog.Logger
}

// BuildResult describes a finished container.
type BuildResult struct {
	// Header is the header written to the container. It is set even when
	// the header block was omitted.
	Header *Header

	// Pages is the number of Ogg pages written.
	Pages int

	// Granule is the granule position of the last page.
	Granule uint64
}

// Duration returns the total playing time of the container.
func (r *BuildResult) Duration() time.Duration {
	return granuleDuration(r.Granule)
}

// buildState carries the stream position from one input to the next.
type buildState struct {
	out       io.Writer
	timestamp uint32
	template  *ogg.Page
	chapters  []uint32
	granule   uint64
	nextSeq   uint32
	pages     int
}

// ParseTimestamp parses a timestamp given in decimal or, with a "0x"
// prefix, in hexadecimal.
func ParseTimestamp(s string) (uint32, error) {
	base := 10
	if strings.HasPrefix(s, "0x") {
		s = s[2:]
		base = 16
	}
	v, err := strconv.ParseUint(s, base, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return uint32(v), nil
}

// Build writes a container holding inputs, in order, to out.
//
// The header block is written as a placeholder first and completed by
// seeking back once the stream is written. A failed build leaves a partial
// output behind; removing it is up to the caller.
func (b *Builder) Build(ctx context.Context, out io.WriteSeeker, inputs []string) (*BuildResult, error) {
	if len(inputs) == 0 {
		return nil, ErrNoInputs
	}

	log := b.Log
	if log == nil {
		log = slog.Disabled
	}
	open := b.Open
	if open == nil {
		open = OpenFile
	}

	timestamp := uint32(time.Now().Unix())
	if b.Timestamp != nil {
		timestamp = *b.Timestamp
	}

	start, err := out.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, err
	}
	if !b.NoHeader {
		if _, err := out.Write(make([]byte, BlockSize)); err != nil {
			return nil, fmt.Errorf("write header placeholder: %w", err)
		}
	}

	sum := sha1.New()
	st := &buildState{
		out:       io.MultiWriter(out, sum),
		timestamp: timestamp,
		nextSeq:   2,
	}

	width := len(strconv.Itoa(len(inputs)))
	for i, name := range inputs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		log.Infof("[%0*d/%d] %s", width, i+1, len(inputs), name)

		if err := b.addInput(ctx, open, st, name, i == len(inputs)-1); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	}

	end, err := out.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, err
	}

	h := &Header{
		DataHash:     sum.Sum(nil),
		DataLength:   uint32(end - start - BlockSize),
		Timestamp:    timestamp,
		ChapterPages: st.chapters,
	}
	if b.NoHeader {
		h.DataLength = uint32(end - start)
	} else if err := writeHeader(out, start, h); err != nil {
		return nil, err
	}

	log.Debugf("Wrote %d pages in %d chapters, %v", st.pages, len(st.chapters),
		granuleDuration(st.granule))

	return &BuildResult{
		Header:  h,
		Pages:   st.pages,
		Granule: st.granule,
	}, nil
}

// writeHeader writes the header block at offset start and restores the
// write position.
func writeHeader(out io.WriteSeeker, start int64, h *Header) error {
	block, err := h.Block()
	if err != nil {
		return err
	}

	end, err := out.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	if _, err := out.Seek(start, io.SeekStart); err != nil {
		return err
	}
	if _, err := out.Write(block); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	_, err = out.Seek(end, io.SeekStart)
	return err
}

// addInput appends the audio of one input as a new chapter. The header
// pages of the first input are copied; later inputs only contribute audio.
func (b *Builder) addInput(ctx context.Context, open Opener, st *buildState, name string, last bool) error {
	rc, err := open(ctx, name)
	if err != nil {
		return err
	}
	defer rc.Close()

	sr := ogg.NewStreamReader(rc, 0)
	head, tags, err := sr.ReadHeaders()
	if err != nil {
		return err
	}
	if err := checkIdentification(head); err != nil {
		return err
	}

	first := st.nextSeq == 2
	if first {
		if err := st.writeHeaderPages(head, tags); err != nil {
			return err
		}
	}

	pages, err := sr.ReadAllRemaining()
	if err != nil {
		return err
	}
	if len(pages) == 0 {
		return ErrNoAudio
	}

	if st.template == nil {
		st.template = ogg.NewPageFrom(pages[0])
		st.template.SerialNumber = st.timestamp
	}

	chapter := st.nextSeq
	firstSize := BlockSize
	if first {
		chapter = 0
		firstSize = firstPageSize
	}

	repacked, err := ogg.Repack(pages, ogg.RepackConfig{
		FirstPageSize: firstSize,
		PageSize:      BlockSize,
		Template:      st.template,
		Granule:       st.granule,
		StartSequence: st.nextSeq,
		MarkLast:      last,
	})
	if err != nil {
		return err
	}
	if len(repacked) == 0 {
		return ErrNoAudio
	}

	for _, p := range repacked {
		if _, err := p.WriteTo(st.out); err != nil {
			return err
		}
	}

	end := repacked[len(repacked)-1]
	st.chapters = append(st.chapters, chapter)
	st.granule = end.GranulePos
	st.nextSeq = end.PageSequence + 1
	st.pages += len(repacked)
	return nil
}

// writeHeaderPages writes the identification page and a comment page with
// the fixed container tags, both carrying the container serial number.
func (st *buildState) writeHeaderPages(head, tags *ogg.Page) error {
	head.SerialNumber = st.timestamp
	head.UpdateChecksum()

	tags.SerialNumber = st.timestamp
	tags.Fragments = nil
	tags.AppendPacket(ogg.TonieTags().Encode())
	if err := tags.CorrectValues(0); err != nil {
		return err
	}

	if head.Size()+tags.Size() != headerPagesSize {
		return fmt.Errorf("%w: header pages of %d bytes", ErrUnsupportedStream,
			head.Size()+tags.Size())
	}

	for _, p := range []*ogg.Page{head, tags} {
		if _, err := p.WriteTo(st.out); err != nil {
			return err
		}
	}
	st.pages += 2
	return nil
}

// checkIdentification requires a version 1 stereo 48 kHz OpusHead.
func checkIdentification(p *ogg.Page) error {
	if len(p.Fragments) == 0 {
		return fmt.Errorf("%w: empty identification page", ErrUnsupportedStream)
	}
	h, err := ogg.ParseOpusHead(p.PacketAt(0))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnsupportedStream, err)
	}
	switch {
	case h.Version != 1:
		return fmt.Errorf("%w: version %d", ErrUnsupportedStream, h.Version)
	case h.Channels != 2:
		return fmt.Errorf("%w: only stereo tracks are supported, got %d channels",
			ErrUnsupportedStream, h.Channels)
	case h.SampleRate != opus.SampleRate:
		return fmt.Errorf("%w: sample rate needs to be 48 kHz, got %d",
			ErrUnsupportedStream, h.SampleRate)
	}
	return nil
}

// granuleDuration converts a 48 kHz granule position to a duration.
func granuleDuration(granule uint64) time.Duration {
	return time.Duration(granule) * time.Second / opus.SampleRate
}

// hashOf returns the SHA-1 of r.
func hashOf(r io.Reader) ([]byte, int64, error) {
	h := sha1.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return nil, n, err
	}
	return h.Sum(nil), n, nil
}
