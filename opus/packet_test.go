package opus

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseTOC(t *testing.T) {
	tests := []struct {
		name      string
		toc       byte
		config    uint8
		mode      Mode
		frameSize int
		stereo    bool
		frameCode uint8
	}{
		{"silk_nb_10ms", 0x00, 0, ModeSILK, 480, false, 0},
		{"silk_wb_60ms", 0x58, 11, ModeSILK, 2880, false, 0},
		{"hybrid_fb_20ms", 0x78, 15, ModeHybrid, 960, false, 0},
		{"celt_nb_2.5ms", 0x80, 16, ModeCELT, 120, false, 0},
		{"celt_wb_5ms", 0xA8, 21, ModeCELT, 240, false, 0},
		{"celt_swb_10ms", 0xD0, 26, ModeCELT, 480, false, 0},
		{"config31_stereo_code0", 0xFC, 31, ModeCELT, 960, true, 0},
		{"config31_mono_code1", 0xF9, 31, ModeCELT, 960, false, 1},
		{"config31_stereo_code2", 0xFE, 31, ModeCELT, 960, true, 2},
		{"config31_stereo_code3", 0xFF, 31, ModeCELT, 960, true, 3},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			toc := ParseTOC(tc.toc)
			require.Equal(t, tc.config, toc.Config)
			require.Equal(t, tc.mode, toc.Mode)
			require.Equal(t, tc.frameSize, toc.FrameSize)
			require.Equal(t, tc.stereo, toc.Stereo)
			require.Equal(t, tc.frameCode, toc.FrameCode)
			require.Equal(t, tc.toc, GenerateTOC(tc.config, tc.stereo, tc.frameCode))
		})
	}
}

func TestFrameSamples(t *testing.T) {
	for config := uint8(16); config < 32; config++ {
		n, err := ParseTOC(GenerateTOC(config, true, 0)).FrameSamples()
		require.NoError(t, err)
		require.Equal(t, []int{120, 240, 480, 960}[config%4], n)
	}

	d, err := ParseTOC(0xF8).FrameDuration()
	require.NoError(t, err)
	require.Equal(t, 20*time.Millisecond, d)

	d, err = ParseTOC(0x80).FrameDuration()
	require.NoError(t, err)
	require.Equal(t, 2500*time.Microsecond, d)

	for config := uint8(0); config < 16; config++ {
		_, err := ParseTOC(GenerateTOC(config, true, 0)).FrameSamples()
		require.ErrorIs(t, err, ErrUnsupportedConfig)
	}
}

func TestParsePacket(t *testing.T) {
	t.Run("code 0", func(t *testing.T) {
		info, err := ParsePacket([]byte{0xFC, 1, 2, 3})
		require.NoError(t, err)
		require.Equal(t, 1, info.FrameCount)
		require.False(t, info.HasPadding)
		require.Equal(t, 4, info.TotalSize)
	})

	t.Run("code 1 and 2", func(t *testing.T) {
		info, err := ParsePacket([]byte{0xFD, 1, 2})
		require.NoError(t, err)
		require.Equal(t, 2, info.FrameCount)

		info, err = ParsePacket([]byte{0xFE, 1, 2, 3})
		require.NoError(t, err)
		require.Equal(t, 2, info.FrameCount)
	})

	t.Run("code 3 with padding", func(t *testing.T) {
		info, err := ParsePacket([]byte{0xFF, 0xC3, 255, 10, 0})
		require.NoError(t, err)
		require.Equal(t, 3, info.FrameCount)
		require.True(t, info.VBR)
		require.True(t, info.HasPadding)
		require.Equal(t, 264, info.Padding)
	})

	t.Run("errors", func(t *testing.T) {
		_, err := ParsePacket(nil)
		require.ErrorIs(t, err, ErrPacketTooShort)
		_, err = ParsePacket([]byte{0xFF})
		require.ErrorIs(t, err, ErrPacketTooShort)
		_, err = ParsePacket([]byte{0xFF, 0x40})
		require.ErrorIs(t, err, ErrInvalidFrameCount)
		_, err = ParsePacket([]byte{0xFF, 0x41, 255})
		require.ErrorIs(t, err, ErrPacketTooShort)
	})
}

func TestPacketGranule(t *testing.T) {
	g, err := PacketGranule([]byte{0xFC, 0})
	require.NoError(t, err)
	require.EqualValues(t, 960, g)

	g, err = PacketGranule([]byte{0xFF, 0x03, 0})
	require.NoError(t, err)
	require.EqualValues(t, 2880, g)

	g, err = PacketGranule(nil)
	require.NoError(t, err)
	require.Zero(t, g)

	_, err = PacketGranule([]byte{0x08, 0})
	require.ErrorIs(t, err, ErrUnsupportedConfig)
}

func TestConvertToFramePacking3(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want []byte
	}{
		{"code 0", []byte{0xFC, 7, 8}, []byte{0xFF, 0x01, 7, 8}},
		{"code 1", []byte{0xFD, 7, 8}, []byte{0xFF, 0x02, 7, 8}},
		{"code 2", []byte{0xFE, 1, 7, 8}, []byte{0xFF, 0x82, 1, 7, 8}},
		{"code 3", []byte{0xFF, 0x01, 7}, []byte{0xFF, 0x01, 7}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			in := append([]byte(nil), tc.in...)
			once := ConvertToFramePacking3(in)
			require.Equal(t, tc.want, once)
			require.Equal(t, tc.in, in, "input must not be modified")

			twice := ConvertToFramePacking3(once)
			require.Equal(t, once, twice)

			before, err := ParsePacket(tc.in)
			require.NoError(t, err)
			after, err := ParsePacket(once)
			require.NoError(t, err)
			require.Equal(t, before.FrameCount, after.FrameCount)
		})
	}
}

func TestPaddingCountSize(t *testing.T) {
	tests := []struct {
		count int
		want  []byte
	}{
		{0, []byte{0}},
		{1, []byte{1}},
		{254, []byte{254}},
		{255, []byte{255, 1}},
		{508, []byte{255, 254}},
		{509, []byte{255, 255, 1}},
		{1000, []byte{255, 255, 255, 238}},
	}

	for _, tc := range tests {
		got := appendPaddingCount(nil, tc.count)
		require.Equal(t, tc.want, got, "count %d", tc.count)
		require.Equal(t, len(tc.want), PaddingCountSize(tc.count), "count %d", tc.count)

		padding, n, err := parsePaddingCount(got, 0)
		require.NoError(t, err)
		require.Equal(t, tc.count, padding)
		require.Equal(t, len(got), n)
	}
}

func TestSetPadding(t *testing.T) {
	pkt := ConvertToFramePacking3([]byte{0xFC, 1, 2, 3})

	for _, count := range []int{0, 1, 100, 254, 255, 600} {
		padded, err := SetPadding(pkt, count)
		require.NoError(t, err)
		require.Len(t, padded, len(pkt)+PaddingCountSize(count))
		require.Equal(t, []byte{1, 2, 3}, padded[len(padded)-3:])

		full := append(padded, make([]byte, count)...)
		info, err := ParsePacket(full)
		require.NoError(t, err)
		require.True(t, info.HasPadding)
		require.Equal(t, count, info.Padding)
		require.Equal(t, 1, info.FrameCount)
		require.True(t, bytes.Equal(pkt, []byte{0xFF, 0x01, 1, 2, 3}))

		_, err = SetPadding(full, 1)
		require.ErrorIs(t, err, ErrAlreadyPadded)
	}

	_, err := SetPadding([]byte{0xFC, 1}, 1)
	require.ErrorIs(t, err, ErrNotFramePacking3)
	_, err = SetPadding([]byte{0xFF}, 1)
	require.ErrorIs(t, err, ErrPacketTooShort)
	_, err = SetPadding(pkt, -1)
	require.ErrorIs(t, err, ErrInvalidPadding)
}
