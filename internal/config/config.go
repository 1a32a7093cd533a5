package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Default configuration values
const (
	DefaultCompilerPath = "g++"
	DefaultStd          = "c++11"
	DefaultVerbose      = false

	// DefaultCacheSubdir is joined to the user's home directory when no cache dir is configured
	DefaultCacheSubdir = ".cache/scracc"
)

// Environment variables read by scracc
const (
	EnvCacheDir = "SCRACC_CACHE_DIR"
	EnvBuildDir = "SCRACC_BUILD_DIR"
	EnvCompiler = "SCRACC_COMPILER"
)

var (
	DefaultLibs       = []string{"scracc"}
	DefaultHeaders    = []string{"scracc/libscracc.h", "iostream"}
	DefaultNamespaces = []string{"Scracc", "std"}
)

// userHomeDir is swapped in tests
var userHomeDir = os.UserHomeDir

// Holds the configuration options for scracc
type Config struct {
	// C++ compiler driver
	CompilerPath string

	// Language standard passed as -std=
	Std string

	// Libraries linked unless clean-slate mode is requested
	DefaultLibs []string

	// Headers and namespaces of the generated preamble
	DefaultHeaders    []string
	DefaultNamespaces []string

	// Root of the persistent cache, one slot directory per entry file
	CacheDir string

	// Optional root for transient build directories (e.g. a tmpfs)
	BuildDir string

	// Enable verbose output
	Verbose bool
}

func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		CompilerPath:      v.GetString("compiler_path"),
		Std:               v.GetString("std"),
		DefaultLibs:       nonEmpty(v.GetStringSlice("default_libs")),
		DefaultHeaders:    nonEmpty(v.GetStringSlice("default_headers")),
		DefaultNamespaces: nonEmpty(v.GetStringSlice("default_namespaces")),
		CacheDir:          v.GetString("cache_dir"),
		BuildDir:          v.GetString("build_dir"),
		Verbose:           v.GetBool("verbose"),
	}

	// Apply defaults if not set
	if cfg.CompilerPath == "" {
		cfg.CompilerPath = DefaultCompilerPath
	}

	if cfg.Std == "" {
		cfg.Std = DefaultStd
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.CacheDir == "" {
		home, err := userHomeDir()
		if err != nil {
			return fmt.Errorf("cannot determine home directory for the cache: %w", err)
		}

		c.CacheDir = filepath.Join(home, DefaultCacheSubdir)
	}

	abs, err := filepath.Abs(c.CacheDir)
	if err != nil {
		return fmt.Errorf("invalid cache directory: %v", err)
	}

	c.CacheDir = abs

	if c.BuildDir != "" {
		abs, err := filepath.Abs(c.BuildDir)
		if err != nil {
			return fmt.Errorf("invalid build directory: %v", err)
		}

		c.BuildDir = abs
	}

	return nil
}

func nonEmpty(values []string) []string {
	if len(values) == 0 {
		return nil
	}

	return values
}
