// Package config handles bytecraft.toml settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/BurntSushi/toml"

	"bytecraft/internal/classfile"
)

// FileName is the configuration file looked up by FindAndLoad.
const FileName = "bytecraft.toml"

// Config represents a bytecraft.toml file.
type Config struct {
	Read      Read     `toml:"read"`
	Write     Write    `toml:"write"`
	Batch     Batch    `toml:"batch"`
	Classpath []string `toml:"classpath"`
	LogLevel  string   `toml:"log_level"`

	// Dir is the directory containing the file (set at load time).
	Dir string `toml:"-"`
}

// Read configures class parsing.
type Read struct {
	SkipDebug    bool `toml:"skip_debug"`
	SkipFrames   bool `toml:"skip_frames"`
	ExpandFrames bool `toml:"expand_frames"`
}

// Write configures class serialization.
type Write struct {
	Compute  string `toml:"compute"`
	CopyPool bool   `toml:"copy_pool"`
}

// Batch configures batch runs.
type Batch struct {
	Workers int    `toml:"workers"`
	Mode    string `toml:"mode"`
}

var logLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "error": true, "disabled": true,
}

var batchModes = map[string]bool{
	"copy": true, "plain": true, "maxs": true, "frames": true, "skip-debug": true,
}

// Default returns the settings used when no file is present.
func Default() *Config {
	return &Config{
		Write:    Write{Compute: "frames"},
		Batch:    Batch{Workers: runtime.GOMAXPROCS(0), Mode: "frames"},
		LogLevel: "info",
	}
}

// Load parses bytecraft.toml from the given directory. Missing keys keep
// their defaults and relative classpath entries resolve against dir.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	c := Default()
	md, err := toml.Decode(string(data), c)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%s: unknown key %q", path, undecoded[0].String())
	}

	c.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	for i, p := range c.Classpath {
		if !filepath.IsAbs(p) {
			c.Classpath[i] = filepath.Join(c.Dir, p)
		}
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// FindAndLoad walks up from startDir to find a bytecraft.toml file,
// then loads it. Returns the defaults if no file is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, FileName)); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return Default(), nil
		}
		dir = parent
	}
}

// LoadFile parses a configuration file at an explicit path.
func LoadFile(path string) (*Config, error) {
	if filepath.Base(path) != FileName {
		return nil, fmt.Errorf("config file must be named %s, got %s", FileName, path)
	}
	return Load(filepath.Dir(path))
}

// Validate checks enumerated settings.
func (c *Config) Validate() error {
	if _, err := classfile.ParseComputeLevel(c.Write.Compute); err != nil {
		return fmt.Errorf("write.compute: %w", err)
	}
	if c.Batch.Workers < 1 {
		return errors.New("batch.workers must be at least 1")
	}
	if !batchModes[c.Batch.Mode] {
		return fmt.Errorf("batch.mode: unknown mode %q", c.Batch.Mode)
	}
	if !logLevels[c.LogLevel] {
		return fmt.Errorf("log_level: unknown level %q", c.LogLevel)
	}
	return nil
}

// ReadOptions returns the reader options for c.
func (c *Config) ReadOptions() classfile.ReadOptions {
	return classfile.ReadOptions{
		SkipDebug:    c.Read.SkipDebug,
		SkipFrames:   c.Read.SkipFrames,
		ExpandFrames: c.Read.ExpandFrames,
	}
}

// ComputeLevel returns the validated write.compute level.
func (c *Config) ComputeLevel() classfile.ComputeLevel {
	level, _ := classfile.ParseComputeLevel(c.Write.Compute)
	return level
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Compute: %s, CopyPool: %t, Workers: %d, Mode: %s, LogLevel: %s, Classpath: %v}",
		c.Write.Compute, c.Write.CopyPool, c.Batch.Workers, c.Batch.Mode, c.LogLevel, c.Classpath,
	)
}
