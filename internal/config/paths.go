// Package config provides configuration loading and path management.
package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// Paths contains the standard paths for Toolgate data.
type Paths struct {
	Data   string // ~/.local/share/toolgate
	Config string // ~/.config/toolgate
	Cache  string // ~/.cache/toolgate
	State  string // ~/.local/state/toolgate
}

// GetPaths returns the standard paths for Toolgate data, honoring the XDG
// base directory variables when set.
func GetPaths() *Paths {
	return &Paths{
		Data:   xdgDir("XDG_DATA_HOME", defaultDataHome()),
		Config: xdgDir("XDG_CONFIG_HOME", defaultConfigHome()),
		Cache:  xdgDir("XDG_CACHE_HOME", defaultCacheHome()),
		State:  xdgDir("XDG_STATE_HOME", defaultStateHome()),
	}
}

func xdgDir(envVar, fallback string) string {
	base := os.Getenv(envVar)
	if base == "" {
		base = fallback
	}
	return filepath.Join(base, "toolgate")
}

// EnsurePaths creates all required directories.
func (p *Paths) EnsurePaths() error {
	for _, dir := range []string{p.Data, p.Config, p.Cache, p.State} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}

// PatternStorePath returns the path to the persistent pattern store.
func (p *Paths) PatternStorePath() string {
	return filepath.Join(p.Data, "tool_patterns.json")
}

// ProfilesPath returns the path to the YAML policy profiles file.
func (p *Paths) ProfilesPath() string {
	return filepath.Join(p.Config, "profiles.yaml")
}

// On Windows everything collapses to APPDATA; elsewhere the freedesktop
// defaults apply.
func defaultDataHome() string   { return homeSubdir(".local", "share") }
func defaultConfigHome() string { return homeSubdir(".config") }
func defaultStateHome() string  { return homeSubdir(".local", "state") }

func defaultCacheHome() string {
	if runtime.GOOS == "windows" {
		return filepath.Join(os.Getenv("APPDATA"), "cache")
	}
	return homeSubdir(".cache")
}

func homeSubdir(parts ...string) string {
	if runtime.GOOS == "windows" {
		return os.Getenv("APPDATA")
	}
	return filepath.Join(append([]string{os.Getenv("HOME")}, parts...)...)
}

// GlobalConfigPath returns the path to the global config file.
func GlobalConfigPath() string {
	return filepath.Join(GetPaths().Config, "toolgate.json")
}

// ProjectConfigPath returns the path to the project config file.
func ProjectConfigPath(directory string) string {
	return filepath.Join(directory, ".toolgate", "toolgate.json")
}
