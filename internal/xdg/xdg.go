// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authentic Contributors

// Package xdg resolves XDG Base Directory paths for Authentic.
package xdg

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/samber/oops"
)

const appName = "authentic"

// ConfigFileName is the file looked up in ConfigDir when no --config flag is given.
const ConfigFileName = "config.yaml"

// ConfigDir returns the XDG config directory for authentic.
// Checks XDG_CONFIG_HOME first, falls back to ~/.config.
func ConfigDir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		base = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(base, appName)
}

// DefaultConfigFile returns the path of the user config file if it exists,
// or "" when there is none.
func DefaultConfigFile() (string, error) {
	path := filepath.Join(ConfigDir(), ConfigFileName)
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return "", nil
	case err != nil:
		return "", oops.Code("CONFIG_PATH_UNREADABLE").With("path", path).Wrap(err)
	case info.IsDir():
		return "", oops.Code("CONFIG_PATH_UNREADABLE").With("path", path).Errorf("config path is a directory")
	}
	return path, nil
}
