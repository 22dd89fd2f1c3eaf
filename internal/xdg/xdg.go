// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storefront Contributors

// Package xdg resolves the storefront's XDG Base Directory paths.
package xdg

import (
	"os"
	"path/filepath"
)

const appName = "storefront"

// configFileName is the file looked up in ConfigDir when --config is unset.
const configFileName = "config.yaml"

// ConfigDir returns the XDG config directory for storefront.
// Checks XDG_CONFIG_HOME first, falls back to ~/.config.
func ConfigDir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		base = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(base, appName)
}

// ConfigFile returns the default config file path.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), configFileName)
}

// DefaultConfigFile returns ConfigFile if it exists, or "" otherwise.
func DefaultConfigFile() string {
	path := ConfigFile()
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}
