// Package transcode converts arbitrary audio files to Ogg Opus by piping
// ffmpeg into opusenc.
package transcode

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/decred/slog"
	"golang.org/x/sync/errgroup"
)

// Defaults used for zero Config fields.
const (
	DefaultFFmpeg  = "ffmpeg"
	DefaultOpusEnc = "opusenc"
	DefaultBitrate = 96
)

// maxStderr bounds the tool output kept for error messages.
const maxStderr = 4096

// Config configures a Transcoder.
type Config struct {
	// FFmpeg and OpusEnc locate the tools. They are looked up in PATH when
	// they hold no path separator.
	FFmpeg  string
	OpusEnc string

	// Bitrate is the encoding bitrate in kbps.
	Bitrate int

	// CBR selects hard constant bitrate encoding instead of VBR.
	CBR bool

	// TempDir holds the spooled encoder output. The system default is
	// used when empty.
	TempDir string

	Log slog.Logger
}

// Transcoder runs the conversion pipeline.
type Transcoder struct {
	cfg Config
	log slog.Logger
}

// New returns a Transcoder for cfg.
func New(cfg Config) *Transcoder {
	if cfg.FFmpeg == "" {
		cfg.FFmpeg = DefaultFFmpeg
	}
	if cfg.OpusEnc == "" {
		cfg.OpusEnc = DefaultOpusEnc
	}
	if cfg.Bitrate <= 0 {
		cfg.Bitrate = DefaultBitrate
	}
	log := cfg.Log
	if log == nil {
		log = slog.Disabled
	}
	return &Transcoder{cfg: cfg, log: log}
}

// ffmpegArgs resamples name to 48 kHz WAV on stdout.
func (t *Transcoder) ffmpegArgs(name string) []string {
	return []string{"-hide_banner", "-loglevel", "warning", "-i", name,
		"-f", "wav", "-ar", "48000", "-"}
}

// opusencArgs encodes WAV from stdin to Ogg Opus on stdout.
func (t *Transcoder) opusencArgs() []string {
	mode := "--vbr"
	if t.cfg.CBR {
		mode = "--hard-cbr"
	}
	return []string{"--quiet", mode, "--bitrate", strconv.Itoa(t.cfg.Bitrate), "-", "-"}
}

// Open transcodes name and returns the resulting Ogg Opus stream. The
// encoder output is spooled to a temporary file which is removed when the
// returned reader is closed.
func (t *Transcoder) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	t.log.Debugf("Transcoding %s at %d kbps", name, t.cfg.Bitrate)

	tmp, err := os.CreateTemp(t.cfg.TempDir, "opus2taf-*.opus")
	if err != nil {
		return nil, err
	}
	f := &tempFile{File: tmp}

	if err := t.run(ctx, name, tmp); err != nil {
		f.Close()
		return nil, err
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// run pipes ffmpeg into opusenc, writing the encoder output to out, and
// waits for both processes.
func (t *Transcoder) run(ctx context.Context, name string, out io.Writer) error {
	pr, pw, err := os.Pipe()
	if err != nil {
		return err
	}

	var ffmpegErr, opusencErr limitedBuffer
	ffmpeg := exec.CommandContext(ctx, t.cfg.FFmpeg, t.ffmpegArgs(name)...)
	ffmpeg.Stdout = pw
	ffmpeg.Stderr = &ffmpegErr

	opusenc := exec.CommandContext(ctx, t.cfg.OpusEnc, t.opusencArgs()...)
	opusenc.Stdin = pr
	opusenc.Stdout = out
	opusenc.Stderr = &opusencErr

	if err := ffmpeg.Start(); err != nil {
		pr.Close()
		pw.Close()
		return fmt.Errorf("ffmpeg: %w", err)
	}
	// The children hold their own copies of the pipe ends.
	pw.Close()

	if err := opusenc.Start(); err != nil {
		pr.Close()
		ffmpeg.Process.Kill()
		ffmpeg.Wait()
		return fmt.Errorf("opusenc: %w", err)
	}
	pr.Close()

	var g errgroup.Group
	g.Go(func() error {
		return toolError("ffmpeg", ffmpeg.Wait(), &ffmpegErr)
	})
	g.Go(func() error {
		return toolError("opusenc", opusenc.Wait(), &opusencErr)
	})
	return g.Wait()
}

func toolError(tool string, err error, stderr *limitedBuffer) error {
	if err == nil {
		return nil
	}
	if msg := strings.TrimSpace(stderr.String()); msg != "" {
		return fmt.Errorf("%s: %w: %s", tool, err, msg)
	}
	return fmt.Errorf("%s: %w", tool, err)
}

// tempFile removes the file once closed.
type tempFile struct {
	*os.File
}

func (f *tempFile) Close() error {
	err := f.File.Close()
	if rerr := os.Remove(f.Name()); err == nil {
		err = rerr
	}
	return err
}

// limitedBuffer keeps the first maxStderr bytes written to it.
type limitedBuffer struct {
	buf bytes.Buffer
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if room := maxStderr - b.buf.Len(); room > 0 {
		if n > room {
			p = p[:room]
		}
		b.buf.Write(p)
	}
	return n, nil
}

func (b *limitedBuffer) String() string {
	return b.buf.String()
}
