package main

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/thesyncim/gotaf/container/taf"
)

func okStatus(ok bool) string {
	if ok {
		return "OK"
	}
	return "NOT OK"
}

func okPrefix(ok bool) string {
	if ok {
		return ""
	}
	return "NOT "
}

// printReport writes the inspection result in the traditional opus2tonie
// layout.
func printReport(w io.Writer, rep *taf.Report) {
	h := rep.Header

	fmt.Fprintf(w, "[%s] SHA1 hash: 0x%X\n", okStatus(rep.HashOK), h.DataHash)
	if !rep.HashOK {
		fmt.Fprintf(w, "            actual: 0x%X\n", rep.Hash)
	}

	fmt.Fprintf(w, "[%s] Timestamp: [0x%X] %s\n", okStatus(rep.TimestampOK), h.Timestamp,
		time.Unix(int64(h.Timestamp), 0).UTC().Format(time.DateTime))
	if !rep.TimestampOK {
		fmt.Fprintf(w, "   bitstream serial: 0x%X\n", rep.Serial)
	}

	fmt.Fprintf(w, "[%s] Opus data length: %s bytes (%s, ~%.0f kbps)\n",
		okStatus(rep.AudioSizeOK), humanize.Comma(int64(h.DataLength)),
		humanize.IBytes(uint64(h.DataLength)), rep.Bitrate()/1024)
	if !rep.AudioSizeOK {
		fmt.Fprintf(w, "     actual: %s bytes\n", humanize.Comma(rep.AudioSize))
	}

	var (
		headOK   bool
		channels uint8
		rate     uint32
	)
	if oh := rep.OpusHead; oh != nil {
		headOK = oh.Version == 1
		channels = oh.Channels
		rate = oh.SampleRate
	}
	fmt.Fprintf(w, "[%s] Opus header %sOK || %d channels || %.1f kHz || %d Ogg pages\n",
		okStatus(rep.OpusOK), okPrefix(headOK), channels, float64(rate)/1000, rep.PageCount)
	fmt.Fprintf(w, "[%s] Page alignment %sOK and size %sOK\n",
		okStatus(rep.AlignmentOK && rep.PageSizeOK), okPrefix(rep.AlignmentOK),
		okPrefix(rep.PageSizeOK))

	fmt.Fprintln(w)
	fmt.Fprintf(w, "[%s] File is %svalid\n", okStatus(rep.Valid()), okPrefix(rep.Valid()))
	fmt.Fprintln(w)

	if rep.Tags != nil {
		encoder, _ := rep.Tags.Get("encoder")
		fmt.Fprintf(w, "[ii] Encoder: %s (%s)\n", encoder, rep.Tags.Vendor)
		if !rep.TonieTags {
			fmt.Fprintln(w, "[ii] Comment header differs from the stock one")
		}
	}
	if rep.Truncated {
		fmt.Fprintln(w, "[ii] Last Ogg page is truncated")
	}
	fmt.Fprintf(w, "[ii] Total runtime: %s\n", formatRuntime(rep.Duration()))
	fmt.Fprintf(w, "[ii] %d Tracks:\n", len(rep.Chapters))
	for i, c := range rep.Chapters {
		fmt.Fprintf(w, "  Track %02d: %s\n", i+1, formatRuntime(c.Duration()))
	}
}

// formatRuntime formats d as HH:MM:SS.ff.
func formatRuntime(d time.Duration) string {
	hours := d / time.Hour
	minutes := d % time.Hour / time.Minute
	seconds := d % time.Minute / time.Second
	hundredths := d % time.Second / (10 * time.Millisecond)
	return fmt.Sprintf("%02d:%02d:%02d.%02d", int(hours), int(minutes), int(seconds), int(hundredths))
}
