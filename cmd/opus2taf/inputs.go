package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// collectInputs expands source to the list of input files. A directory
// stands for all regular files in it; anything else is used as a glob
// pattern. Directories are skipped and the result is sorted by name.
func collectInputs(source string) ([]string, error) {
	pattern := source
	if fi, err := os.Stat(source); err == nil && fi.IsDir() {
		pattern = filepath.Join(source, "*")
	}

	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}

	files := matches[:0]
	for _, name := range matches {
		fi, err := os.Stat(name)
		if err != nil || !fi.Mode().IsRegular() {
			continue
		}
		files = append(files, name)
	}
	sort.Strings(files)
	return files, nil
}

// isOpusFile reports whether name is used without transcoding.
func isOpusFile(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".opus")
}

// appendToFilename inserts " suffix" before the extension of name.
func appendToFilename(name, suffix string) string {
	base := filepath.Base(name)
	if pos := strings.LastIndexByte(base, '.'); pos > 0 {
		dir := name[:len(name)-len(base)]
		return dir + base[:pos] + " " + suffix + base[pos:]
	}
	return name + " " + suffix
}

// splitName returns the file name of chapter i, counted from 1, of the
// container at path.
func splitName(path string, i int) string {
	dir, base := filepath.Split(path)
	if pos := strings.LastIndexByte(base, '.'); pos > 0 {
		base = base[:pos]
	}
	return filepath.Join(dir, fmt.Sprintf("%02d_%s.opus", i, base))
}
