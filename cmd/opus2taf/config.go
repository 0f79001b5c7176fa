package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/mitchellh/go-homedir"

	"github.com/thesyncim/gotaf/internal/transcode"
)

const appName = "opus2taf"

var defaultConfigFile = filepath.Join("~", "."+appName, appName+".conf")

// config holds the settings read from the configuration file. Command line
// flags take precedence over every value.
type config struct {
	FFmpeg     string `toml:"ffmpeg"`
	OpusEnc    string `toml:"opusenc"`
	Bitrate    int    `toml:"bitrate"`
	CBR        bool   `toml:"cbr"`
	DebugLevel string `toml:"debuglevel"`
	LogFile    string `toml:"logfile"`
}

// loadConfig reads the configuration at path. A missing file is only an
// error when the path was not the default one.
func loadConfig(path string) (*config, error) {
	isDefault := path == "" || path == defaultConfigFile
	if path == "" {
		path = defaultConfigFile
	}
	path, err := homedir.Expand(path)
	if err != nil {
		return nil, err
	}

	cfg := &config{
		FFmpeg:  transcode.DefaultFFmpeg,
		OpusEnc: transcode.DefaultOpusEnc,
		Bitrate: transcode.DefaultBitrate,
	}

	cfgBytes, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) && isDefault {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}
	if err := toml.Unmarshal(cfgBytes, cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	if cfg.LogFile != "" {
		if cfg.LogFile, err = homedir.Expand(cfg.LogFile); err != nil {
			return nil, err
		}
	}
	if cfg.Bitrate <= 0 {
		return nil, fmt.Errorf("config %s: invalid bitrate %d", path, cfg.Bitrate)
	}
	return cfg, nil
}
