// Command opus2taf builds, inspects and splits Tonie audio files.
//
// Usage:
//
//	opus2taf build [OPTIONS] SOURCE [TARGET]
//	opus2taf info FILE
//	opus2taf split FILE
//
// SOURCE is a file, a directory or a glob pattern. Inputs that are not Ogg
// Opus files are converted with ffmpeg and opusenc.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/decred/slog"
	"github.com/jessevdk/go-flags"

	"github.com/thesyncim/gotaf/container/taf"
	"github.com/thesyncim/gotaf/internal/transcode"
)

// defaultTarget is the file name a Toniebox expects for the content of a
// tag.
const defaultTarget = "500304E0"

// errInvalid is returned by info for a container that fails a check.
var errInvalid = errors.New("container is not valid")

type globalOptions struct {
	ConfigFile string `long:"config" description:"Path to the configuration file"`
	DebugLevel string `long:"debuglevel" description:"Logging level {trace, debug, info, warn, error, critical} or subsys=level pairs"`
	LogFile    string `long:"logfile" description:"Also write the log to this file"`
}

type app struct {
	ctx    context.Context
	stdout io.Writer
	opts   globalOptions
	cfg    *config
	logs   *logBackend
	log    slog.Logger
}

// setup loads the configuration and starts logging once the global flags
// are parsed.
func (a *app) setup() error {
	cfg, err := loadConfig(a.opts.ConfigFile)
	if err != nil {
		return err
	}
	if a.opts.DebugLevel != "" {
		cfg.DebugLevel = a.opts.DebugLevel
	}
	if a.opts.LogFile != "" {
		cfg.LogFile = a.opts.LogFile
	}
	a.cfg = cfg

	a.logs, err = newLogBackend(cfg.LogFile, cfg.DebugLevel, a.stdout)
	if err != nil {
		return err
	}
	a.log = a.logs.logger(subsysMain)
	return nil
}

func (a *app) parser() *flags.Parser {
	p := flags.NewParser(&a.opts, flags.HelpFlag|flags.PassDoubleDash)
	p.Name = appName

	p.AddCommand("build", "Build a Tonie audio file",
		"Combine the inputs into one Tonie audio file, one chapter per input.",
		&buildCommand{app: a})
	p.AddCommand("info", "Check a Tonie audio file",
		"Print the header and audio layout of a Tonie audio file. Exits with "+
			"status 1 when a check fails.",
		&infoCommand{app: a})
	p.AddCommand("split", "Split a Tonie audio file",
		"Write every chapter of a Tonie audio file as an Ogg Opus file next "+
			"to it.",
		&splitCommand{app: a})

	p.CommandHandler = func(cmd flags.Commander, args []string) error {
		if cmd == nil {
			return nil
		}
		if err := a.setup(); err != nil {
			return err
		}
		defer a.logs.Close()
		return cmd.Execute(args)
	}
	return p
}

func (a *app) run(args []string) error {
	_, err := a.parser().ParseArgs(args)
	return err
}

type buildCommand struct {
	app *app

	Timestamp           string `long:"ts" description:"Custom timestamp / stream serial, decimal or 0x prefixed hex"`
	Bitrate             int    `long:"bitrate" description:"Encoding bitrate in kbps (default: 96)"`
	CBR                 bool   `long:"cbr" description:"Encode in constant bitrate mode"`
	FFmpeg              string `long:"ffmpeg" description:"Location of ffmpeg"`
	OpusEnc             string `long:"opusenc" description:"Location of opusenc"`
	NoHeader            bool   `long:"no-header" description:"Do not write the Tonie header"`
	AppendTonieFilename bool   `long:"append-tonie-filename" description:"Append [500304E0] to the output file name"`

	Args struct {
		Source string `positional-arg-name:"SOURCE" description:"Input file, directory or glob pattern" required:"yes"`
		Target string `positional-arg-name:"TARGET" description:"Output file (default: 500304E0)"`
	} `positional-args:"yes"`
}

func (c *buildCommand) transcoder() *transcode.Transcoder {
	cfg := c.app.cfg
	tc := transcode.Config{
		FFmpeg:  cfg.FFmpeg,
		OpusEnc: cfg.OpusEnc,
		Bitrate: cfg.Bitrate,
		CBR:     cfg.CBR || c.CBR,
		Log:     c.app.logs.logger(subsysTranscode),
	}
	if c.FFmpeg != "" {
		tc.FFmpeg = c.FFmpeg
	}
	if c.OpusEnc != "" {
		tc.OpusEnc = c.OpusEnc
	}
	if c.Bitrate > 0 {
		tc.Bitrate = c.Bitrate
	}
	return transcode.New(tc)
}

func (c *buildCommand) Execute(args []string) error {
	log := c.app.log

	inputs, err := collectInputs(c.Args.Source)
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		return fmt.Errorf("no files found for pattern %s", c.Args.Source)
	}

	target := c.Args.Target
	if target == "" {
		target = defaultTarget
	}
	if c.AppendTonieFilename {
		target = appendToFilename(target, "["+defaultTarget+"]")
	}

	b := &taf.Builder{
		NoHeader: c.NoHeader,
		Log:      c.app.logs.logger(subsysTAF),
	}
	if c.Timestamp != "" {
		ts, err := taf.ParseTimestamp(c.Timestamp)
		if err != nil {
			return err
		}
		b.Timestamp = &ts
	}
	tc := c.transcoder()
	b.Open = func(ctx context.Context, name string) (io.ReadCloser, error) {
		if isOpusFile(name) {
			return taf.OpenFile(ctx, name)
		}
		return tc.Open(ctx, name)
	}

	f, err := os.Create(target)
	if err != nil {
		return err
	}
	res, err := b.Build(c.app.ctx, f, inputs)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(target)
		return err
	}

	log.Infof("Wrote %s: %d chapters, %d pages, %s", target,
		len(res.Header.ChapterPages), res.Pages, formatRuntime(res.Duration()))
	return nil
}

type infoCommand struct {
	app *app

	Args struct {
		File string `positional-arg-name:"FILE" required:"yes"`
	} `positional-args:"yes"`
}

func (c *infoCommand) Execute(args []string) error {
	f, err := os.Open(c.Args.File)
	if err != nil {
		return err
	}
	defer f.Close()

	rep, err := taf.Inspect(f)
	if err != nil {
		return err
	}
	printReport(c.app.stdout, rep)
	if !rep.Valid() {
		return errInvalid
	}
	return nil
}

type splitCommand struct {
	app *app

	Args struct {
		File string `positional-arg-name:"FILE" required:"yes"`
	} `positional-args:"yes"`
}

func (c *splitCommand) Execute(args []string) error {
	path, err := filepath.Abs(c.Args.File)
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	n, err := taf.Split(f, func(i int) (io.WriteCloser, error) {
		name := splitName(path, i+1)
		c.app.log.Infof("[%02d] %s", i+1, filepath.Base(name))
		return os.Create(name)
	})
	if err != nil {
		return err
	}
	c.app.log.Debugf("Split %s into %d files", path, n)
	return nil
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	a := &app{ctx: ctx, stdout: os.Stdout}
	err := a.run(os.Args[1:])

	var ferr *flags.Error
	switch {
	case err == nil:
		return
	case errors.As(err, &ferr) && ferr.Type == flags.ErrHelp:
		fmt.Fprintln(os.Stdout, err)
		return
	case errors.Is(err, errInvalid):
	default:
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
	}
	cancel()
	os.Exit(1)
}
