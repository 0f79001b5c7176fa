package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/decred/slog"
	"github.com/jrick/logrotate/rotator"
)

// Log subsystems.
const (
	subsysMain      = "MAIN"
	subsysTAF       = "TAF"
	subsysTranscode = "TRNS"
)

type logBackend struct {
	stdOut          io.Writer
	logRotator      *rotator.Rotator
	bknd            *slog.Backend
	defaultLogLevel slog.Level
	logLevels       map[string]slog.Level
	loggers         map[string]slog.Logger
}

// newLogBackend creates the backend for all subsystem loggers. debugLevel is
// either a single level or a comma separated list of subsys=level pairs,
// optionally preceded by the default level.
func newLogBackend(logFile, debugLevel string, stdOut io.Writer) (*logBackend, error) {
	b := &logBackend{
		stdOut:          stdOut,
		defaultLogLevel: slog.LevelInfo,
		logLevels:       make(map[string]slog.Level),
		loggers:         make(map[string]slog.Logger),
	}

	if debugLevel != "" {
		for _, v := range strings.Split(debugLevel, ",") {
			fields := strings.Split(v, "=")
			switch len(fields) {
			case 1:
				level, ok := slog.LevelFromString(fields[0])
				if !ok {
					return nil, fmt.Errorf("unknown log level %q", fields[0])
				}
				b.defaultLogLevel = level
			case 2:
				level, ok := slog.LevelFromString(fields[1])
				if !ok {
					return nil, fmt.Errorf("unknown log level %q for subsystem %s",
						fields[1], fields[0])
				}
				b.logLevels[strings.ToUpper(fields[0])] = level
			default:
				return nil, fmt.Errorf("unable to parse %q as subsys=level "+
					"debuglevel string", v)
			}
		}
	}

	if logFile != "" {
		logDir, _ := filepath.Split(logFile)
		if logDir != "" {
			if err := os.MkdirAll(logDir, 0o700); err != nil {
				return nil, fmt.Errorf("failed to create log directory: %v", err)
			}
		}
		r, err := rotator.New(logFile, 1024, false, 10)
		if err != nil {
			return nil, fmt.Errorf("failed to create file rotator: %v", err)
		}
		b.logRotator = r
	}

	b.bknd = slog.NewBackend(b)
	return b, nil
}

func (bknd *logBackend) Write(b []byte) (int, error) {
	if bknd.stdOut != nil {
		bknd.stdOut.Write(b)
	}
	if bknd.logRotator != nil {
		bknd.logRotator.Write(b)
	}
	return len(b), nil
}

func (bknd *logBackend) logger(subsys string) slog.Logger {
	if l, ok := bknd.loggers[subsys]; ok {
		return l
	}

	l := bknd.bknd.Logger(subsys)
	bknd.loggers[subsys] = l
	if level, ok := bknd.logLevels[subsys]; ok {
		l.SetLevel(level)
	} else {
		l.SetLevel(bknd.defaultLogLevel)
	}
	return l
}

func (bknd *logBackend) Close() error {
	if bknd.logRotator != nil {
		return bknd.logRotator.Close()
	}
	return nil
}
