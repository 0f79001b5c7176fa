package taf

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/thesyncim/gotaf/container/ogg"
	"github.com/thesyncim/gotaf/internal/testutils"
)

const testTimestamp = 0x5E5E5E5E

func ptr[T any](v T) *T { return &v }

// opusStream returns an Ogg Opus stream of n 20 ms CELT packets.
func opusStream(t *testing.T, channels uint8, rate uint32, n int) []byte {
	t.Helper()

	var buf bytes.Buffer
	w, err := ogg.NewWriterWithConfig(&buf, ogg.WriterConfig{
		SampleRate:     rate,
		Channels:       channels,
		Serial:         0x1234,
		PacketsPerPage: 4,
	})
	require.NoError(t, err)

	for i := 0; i < n; i++ {
		packet := make([]byte, 100+(i*37)%300)
		packet[0] = 0xFC
		for j := 1; j < len(packet); j++ {
			packet[j] = byte(i + j)
		}
		require.NoError(t, w.WritePacket(packet, 960))
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func memOpener(files map[string][]byte) Opener {
	return func(_ context.Context, name string) (io.ReadCloser, error) {
		data, ok := files[name]
		if !ok {
			return nil, os.ErrNotExist
		}
		return io.NopCloser(bytes.NewReader(data)), nil
	}
}

// build runs b and returns the container bytes.
func build(t *testing.T, b *Builder, inputs ...string) ([]byte, *BuildResult) {
	t.Helper()

	f, err := os.CreateTemp(t.TempDir(), "*.taf")
	require.NoError(t, err)
	defer f.Close()

	res, err := b.Build(context.Background(), f, inputs)
	require.NoError(t, err)

	data, err := os.ReadFile(f.Name())
	require.NoError(t, err)
	return data, res
}

func twoTracks(t *testing.T) map[string][]byte {
	return map[string][]byte{
		"one.opus": opusStream(t, 2, 48000, 150),
		"two.opus": opusStream(t, 2, 48000, 80),
	}
}

func TestBuildInspect(t *testing.T) {
	b := &Builder{
		Timestamp: ptr[uint32](testTimestamp),
		Open:      memOpener(twoTracks(t)),
		Log:       testutils.TestLoggerSys(t, "TAF"),
	}
	data, res := build(t, b, "one.opus", "two.opus")

	require.Zero(t, len(data)%BlockSize)
	require.EqualValues(t, len(data)-BlockSize, res.Header.DataLength)
	require.EqualValues(t, 230*960, res.Granule)
	require.Equal(t, uint32(0), res.Header.ChapterPages[0])
	require.Len(t, res.Header.ChapterPages, 2)

	// The first audio page ends the first block after the header.
	require.Equal(t, "OggS", string(data[BlockSize:BlockSize+4]))
	require.Equal(t, "OggS", string(data[2*BlockSize:2*BlockSize+4]))

	rep, err := Inspect(bytes.NewReader(data))
	require.NoError(t, err)
	require.True(t, rep.HashOK)
	require.True(t, rep.TimestampOK)
	require.True(t, rep.AudioSizeOK)
	require.True(t, rep.OpusOK)
	require.True(t, rep.AlignmentOK)
	require.True(t, rep.PageSizeOK)
	require.True(t, rep.Valid())

	require.EqualValues(t, testTimestamp, rep.Serial)
	require.True(t, rep.TonieTags)
	require.NotNil(t, rep.Tags)
	require.Equal(t, "Lavf58.20.100", rep.Tags.Vendor)
	require.False(t, rep.Truncated)
	require.Equal(t, res.Pages, rep.PageCount)
	require.Equal(t, res.Granule, rep.Granule)
	require.EqualValues(t, len(data), rep.FileSize)
	require.Equal(t, res.Duration(), rep.Duration())
	require.Positive(t, rep.Bitrate())

	require.Len(t, rep.Chapters, 2)
	require.Equal(t, Chapter{Page: 0, Start: 0, Length: 150 * 960}, rep.Chapters[0])
	require.Equal(t, res.Header.ChapterPages[1], rep.Chapters[1].Page)
	require.EqualValues(t, 150*960, rep.Chapters[1].Start)
	require.EqualValues(t, 80*960, rep.Chapters[1].Length)
	require.Equal(t, "1.6s", rep.Chapters[1].Duration().String())
}

func TestBuildPages(t *testing.T) {
	b := &Builder{Timestamp: ptr[uint32](testTimestamp), Open: memOpener(twoTracks(t))}
	data, res := build(t, b, "one.opus", "two.opus")

	sr := ogg.NewStreamReader(bytes.NewReader(data[BlockSize:]), 0)
	head, tags, err := sr.ReadHeaders()
	require.NoError(t, err)
	require.True(t, head.IsBOS())
	require.Equal(t, ogg.TonieTags().Encode(), tags.PacketAt(0))

	pages, err := sr.ReadAllRemaining()
	require.NoError(t, err)
	require.Len(t, pages, res.Pages-2)

	for i, p := range pages {
		require.EqualValues(t, i+2, p.PageSequence)
		require.EqualValues(t, testTimestamp, p.SerialNumber)
		require.True(t, p.ChecksumValid())
		require.False(t, p.IsBOS())
		require.Equal(t, i == len(pages)-1, p.IsEOS())

		switch {
		case i == 0:
			require.Equal(t, firstPageSize, p.Size())
		case i < len(pages)-1:
			require.Equal(t, BlockSize, p.Size())
		}
	}
}

func TestBuildNoHeader(t *testing.T) {
	b := &Builder{Timestamp: ptr[uint32](testTimestamp), NoHeader: true, Open: memOpener(twoTracks(t))}
	data, res := build(t, b, "one.opus", "two.opus")

	require.Equal(t, "OggS", string(data[:4]))
	require.EqualValues(t, len(data), res.Header.DataLength)

	_, err := Inspect(bytes.NewReader(data))
	require.ErrorIs(t, err, ErrMissingHeader)
}

func TestBuildErrors(t *testing.T) {
	files := map[string][]byte{
		"mono.opus":  opusStream(t, 1, 48000, 10),
		"44k.opus":   opusStream(t, 2, 44100, 10),
		"empty.opus": opusStream(t, 2, 48000, 0),
		"junk.opus":  []byte("not an ogg stream"),
	}
	b := &Builder{Timestamp: ptr[uint32](testTimestamp), Open: memOpener(files)}

	f, err := os.Create(filepath.Join(t.TempDir(), "out.taf"))
	require.NoError(t, err)
	defer f.Close()

	ctx := context.Background()
	_, err = b.Build(ctx, f, nil)
	require.ErrorIs(t, err, ErrNoInputs)

	_, err = b.Build(ctx, f, []string{"mono.opus"})
	require.ErrorIs(t, err, ErrUnsupportedStream)

	_, err = b.Build(ctx, f, []string{"44k.opus"})
	require.ErrorIs(t, err, ErrUnsupportedStream)

	_, err = b.Build(ctx, f, []string{"empty.opus"})
	require.ErrorIs(t, err, ErrNoAudio)

	_, err = b.Build(ctx, f, []string{"junk.opus"})
	require.ErrorIs(t, err, ogg.ErrUnexpectedEOS)

	_, err = b.Build(ctx, f, []string{"missing.opus"})
	require.ErrorIs(t, err, os.ErrNotExist)

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	_, err = b.Build(cctx, f, []string{"missing.opus"})
	require.ErrorIs(t, err, context.Canceled)
}

func TestInspectCorrupted(t *testing.T) {
	b := &Builder{Timestamp: ptr[uint32](testTimestamp), Open: memOpener(twoTracks(t))}
	data, res := build(t, b, "one.opus", "two.opus")

	// Flip a byte in the last packet.
	bad := bytes.Clone(data)
	bad[len(bad)-1] ^= 0xFF
	rep, err := Inspect(bytes.NewReader(bad))
	require.NoError(t, err)
	require.False(t, rep.HashOK)
	require.True(t, rep.AudioSizeOK)
	require.True(t, rep.PageSizeOK)
	require.False(t, rep.Valid())

	// Rewrite the header with another timestamp.
	h := *res.Header
	h.Timestamp++
	block, err := h.Block()
	require.NoError(t, err)
	bad = append(block, data[BlockSize:]...)
	rep, err = Inspect(bytes.NewReader(bad))
	require.NoError(t, err)
	require.True(t, rep.HashOK)
	require.False(t, rep.TimestampOK)
	require.False(t, rep.Valid())

	// Trailing bytes break the length.
	bad = append(bytes.Clone(data), 0)
	rep, err = Inspect(bytes.NewReader(bad))
	require.NoError(t, err)
	require.False(t, rep.AudioSizeOK)
	require.False(t, rep.HashOK)

	// A header without audio.
	_, err = Inspect(bytes.NewReader(data[:BlockSize]))
	require.ErrorIs(t, err, ErrNoAudio)
}

func TestInspectTruncated(t *testing.T) {
	b := &Builder{Timestamp: ptr[uint32](testTimestamp), Open: memOpener(twoTracks(t))}
	data, res := build(t, b, "one.opus", "two.opus")

	rep, err := Inspect(bytes.NewReader(data[:len(data)-100]))
	require.NoError(t, err)
	require.True(t, rep.Truncated)
	require.False(t, rep.AudioSizeOK)
	require.False(t, rep.HashOK)
	require.False(t, rep.PageSizeOK)
	require.False(t, rep.AlignmentOK)
	require.True(t, rep.TimestampOK)
	require.True(t, rep.OpusOK)
	require.False(t, rep.Valid())
	require.Equal(t, res.Pages-1, rep.PageCount)
	require.Len(t, rep.Chapters, 2)
}

func TestInspect44kHz(t *testing.T) {
	b := &Builder{Timestamp: ptr[uint32](testTimestamp), Open: memOpener(twoTracks(t))}
	data, res := build(t, b, "one.opus", "two.opus")

	// Rewrite the input sample rate of the identification header.
	page, err := ogg.ParsePage(bytes.NewReader(data[BlockSize:]))
	require.NoError(t, err)
	binary.LittleEndian.PutUint32(page.Fragments[0].Data[12:16], 44100)
	page.UpdateChecksum()
	raw, err := page.Encode()
	require.NoError(t, err)
	audio := bytes.Clone(data[BlockSize:])
	copy(audio, raw)

	h := *res.Header
	sum := sha1.Sum(audio)
	h.DataHash = sum[:]
	block, err := h.Block()
	require.NoError(t, err)

	rep, err := Inspect(bytes.NewReader(append(block, audio...)))
	require.NoError(t, err)
	require.EqualValues(t, 44100, rep.OpusHead.SampleRate)
	require.True(t, rep.OpusOK)
	require.True(t, rep.HashOK)
	require.True(t, rep.Valid())
}

func TestInspectHeaderFill(t *testing.T) {
	b := &Builder{Timestamp: ptr[uint32](testTimestamp), Open: memOpener(twoTracks(t))}
	data, res := build(t, b, "one.opus", "two.opus")

	// Grow the chapter list until the padding can no longer fill the
	// block exactly. Repeated entries do not add chapters.
	var block []byte
	for n := 3800; n < 4100 && block == nil; n++ {
		h := *res.Header
		h.ChapterPages = append(make([]uint32, n), res.Header.ChapterPages...)
		blk, err := h.Block()
		require.NoError(t, err, n)
		require.Len(t, blk, BlockSize, n)
		if binary.BigEndian.Uint32(blk) < maxMessageSize {
			block = blk
		}
	}
	require.NotNil(t, block)
	require.Zero(t, block[BlockSize-1])

	rep, err := Inspect(bytes.NewReader(append(block, data[BlockSize:]...)))
	require.NoError(t, err)
	require.Less(t, rep.HeaderSize, maxMessageSize)
	require.True(t, rep.HashOK)
	require.True(t, rep.AudioSizeOK)
	require.True(t, rep.AlignmentOK)
	require.True(t, rep.Valid())
	require.Len(t, rep.Chapters, 2)
}

func TestBuildZeroTimestamp(t *testing.T) {
	b := &Builder{Timestamp: ptr[uint32](0), Open: memOpener(twoTracks(t))}
	data, res := build(t, b, "one.opus", "two.opus")
	require.Zero(t, res.Header.Timestamp)

	rep, err := Inspect(bytes.NewReader(data))
	require.NoError(t, err)
	require.Zero(t, rep.Header.Timestamp)
	require.Zero(t, rep.Serial)
	require.True(t, rep.TimestampOK)
	require.True(t, rep.Valid())

	// No timestamp means the current time.
	b = &Builder{Open: memOpener(twoTracks(t))}
	_, res = build(t, b, "one.opus", "two.opus")
	require.NotZero(t, res.Header.Timestamp)
}

func TestSplitRebuild(t *testing.T) {
	b := &Builder{Timestamp: ptr[uint32](testTimestamp), Open: memOpener(twoTracks(t))}
	data, _ := build(t, b, "one.opus", "two.opus")

	chapters := make([]*bytes.Buffer, 2)
	n, err := Split(bytes.NewReader(data), func(i int) (io.WriteCloser, error) {
		chapters[i] = &bytes.Buffer{}
		return nopWriteCloser{chapters[i]}, nil
	})
	require.NoError(t, err)
	require.Equal(t, 2, n)

	for i, want := range []uint64{150 * 960, 80 * 960} {
		sr := ogg.NewStreamReader(bytes.NewReader(chapters[i].Bytes()), 0)
		_, _, err := sr.ReadHeaders()
		require.NoError(t, err)
		pages, err := sr.ReadAllRemaining()
		require.NoError(t, err)
		require.NotEmpty(t, pages)

		for k, p := range pages {
			require.EqualValues(t, k+2, p.PageSequence)
			require.Equal(t, k == len(pages)-1, p.IsEOS())
			require.True(t, p.ChecksumValid())
		}
		require.Equal(t, want, pages[len(pages)-1].GranulePos)
	}

	// Building the chapters again gives back the same container.
	rb := &Builder{
		Timestamp: ptr[uint32](testTimestamp),
		Open: memOpener(map[string][]byte{
			"01.opus": chapters[0].Bytes(),
			"02.opus": chapters[1].Bytes(),
		}),
	}
	rebuilt, _ := build(t, rb, "01.opus", "02.opus")
	require.Equal(t, data, rebuilt)
}

func TestSplitSingleChapter(t *testing.T) {
	b := &Builder{Timestamp: ptr[uint32](testTimestamp), Open: memOpener(twoTracks(t))}
	data, res := build(t, b, "one.opus", "two.opus")

	// Drop the chapter list.
	h := *res.Header
	h.ChapterPages = nil
	block, err := h.Block()
	require.NoError(t, err)
	data = append(block, data[BlockSize:]...)

	var out bytes.Buffer
	n, err := Split(bytes.NewReader(data), func(i int) (io.WriteCloser, error) {
		require.Zero(t, i)
		return nopWriteCloser{&out}, nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, data[BlockSize:], out.Bytes())
}

func TestSplitErrors(t *testing.T) {
	_, err := Split(bytes.NewReader(opusStream(t, 2, 48000, 5)), nil)
	require.ErrorIs(t, err, ErrMissingHeader)

	h := &Header{Timestamp: 1}
	block, err := h.Block()
	require.NoError(t, err)
	_, err = Split(bytes.NewReader(block), nil)
	require.ErrorIs(t, err, ErrNoAudio)
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		want uint32
		err  bool
	}{
		{in: "1", want: 1},
		{in: "1583234323", want: 1583234323},
		{in: "0x5E5E5E5E", want: 0x5E5E5E5E},
		{in: "0xffffffff", want: 0xFFFFFFFF},
		{in: "0x100000000", err: true},
		{in: "-1", err: true},
		{in: "abc", err: true},
		{in: "", err: true},
	}
	for _, tc := range tests {
		got, err := ParseTimestamp(tc.in)
		if tc.err {
			require.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		require.Equal(t, tc.want, got, tc.in)
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
