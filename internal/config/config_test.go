package config

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withHome(t *testing.T, home string) {
	t.Helper()

	original := userHomeDir
	userHomeDir = func() (string, error) { return home, nil }
	t.Cleanup(func() { userHomeDir = original })
}

func TestLoad(t *testing.T) {
	home := t.TempDir()
	withHome(t, home)

	tests := []struct {
		name       string
		setupViper func(v *viper.Viper)
		wantConfig *Config
	}{
		{
			name: "load with all defaults",
			setupViper: func(v *viper.Viper) {
				v.SetDefault("compiler_path", DefaultCompilerPath)
				v.SetDefault("std", DefaultStd)
				v.SetDefault("default_libs", DefaultLibs)
				v.SetDefault("default_headers", DefaultHeaders)
				v.SetDefault("default_namespaces", DefaultNamespaces)
			},
			wantConfig: &Config{
				CompilerPath:      DefaultCompilerPath,
				Std:               DefaultStd,
				DefaultLibs:       DefaultLibs,
				DefaultHeaders:    DefaultHeaders,
				DefaultNamespaces: DefaultNamespaces,
				CacheDir:          filepath.Join(home, DefaultCacheSubdir),
			},
		},
		{
			name: "load with custom values",
			setupViper: func(v *viper.Viper) {
				v.Set("compiler_path", "clang++")
				v.Set("std", "c++20")
				v.Set("default_libs", []string{"m"})
				v.Set("cache_dir", "/var/cache/scracc")
				v.Set("build_dir", "/dev/shm/scracc")
				v.Set("verbose", true)
			},
			wantConfig: &Config{
				CompilerPath:      "clang++",
				Std:               "c++20",
				DefaultLibs:       []string{"m"},
				DefaultHeaders:    nil,
				DefaultNamespaces: nil,
				CacheDir:          "/var/cache/scracc",
				BuildDir:          "/dev/shm/scracc",
				Verbose:           true,
			},
		},
		{
			name:       "empty viper falls back to built-in defaults",
			setupViper: func(v *viper.Viper) {},
			wantConfig: &Config{
				CompilerPath:      DefaultCompilerPath,
				Std:               DefaultStd,
				DefaultLibs:       nil,
				DefaultHeaders:    nil,
				DefaultNamespaces: nil,
				CacheDir:          filepath.Join(home, DefaultCacheSubdir),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			tt.setupViper(v)

			cfg, err := Load(v)
			require.NoError(t, err)
			assert.Equal(t, tt.wantConfig, cfg)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Run("relative directories become absolute", func(t *testing.T) {
		cfg := &Config{CacheDir: "cache", BuildDir: "build"}
		require.NoError(t, cfg.Validate())

		wantCache, _ := filepath.Abs("cache")
		wantBuild, _ := filepath.Abs("build")
		assert.Equal(t, wantCache, cfg.CacheDir)
		assert.Equal(t, wantBuild, cfg.BuildDir)
	})

	t.Run("missing home directory is an error", func(t *testing.T) {
		original := userHomeDir
		userHomeDir = func() (string, error) { return "", errors.New("$HOME is not defined") }
		defer func() { userHomeDir = original }()

		cfg := &Config{}
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "home directory")
	})

	t.Run("empty build dir stays empty", func(t *testing.T) {
		withHome(t, t.TempDir())

		cfg := &Config{}
		require.NoError(t, cfg.Validate())
		assert.Empty(t, cfg.BuildDir)
	})
}
