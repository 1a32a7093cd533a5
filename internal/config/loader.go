package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Loader handles configuration loading from various sources.
// Each loader owns its viper instance so repeated loads in one process do not leak into each other.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{v: viper.New()}
}

// Load reads defaults, environment, global config, the local config nearest to entry
// and finally any bound flags. Later sources win.
func (l *Loader) Load(flags *pflag.FlagSet, entry string) (*Config, error) {
	l.setupViperDefaults()
	l.bindEnv()
	l.loadGlobalConfig()
	l.loadLocalConfig(entry)
	l.bindCommandFlags(flags)

	return Load(l.v)
}

// setupViperDefaults sets up default values for viper
func (l *Loader) setupViperDefaults() {
	l.v.SetDefault("compiler_path", DefaultCompilerPath)
	l.v.SetDefault("std", DefaultStd)
	l.v.SetDefault("default_libs", DefaultLibs)
	l.v.SetDefault("default_headers", DefaultHeaders)
	l.v.SetDefault("default_namespaces", DefaultNamespaces)
	l.v.SetDefault("verbose", DefaultVerbose)
}

func (l *Loader) bindEnv() {
	_ = l.v.BindEnv("cache_dir", EnvCacheDir)
	_ = l.v.BindEnv("build_dir", EnvBuildDir)
	_ = l.v.BindEnv("compiler_path", EnvCompiler)
}

// loadGlobalConfig loads global configuration from the user config directory
func (l *Loader) loadGlobalConfig() {
	configDir, err := os.UserConfigDir()
	if err != nil || configDir == "" {
		return
	}

	globalDir := filepath.Join(configDir, "scracc")

	for _, ext := range configExtensions {
		globalPath := filepath.Join(globalDir, "config."+ext)

		if _, err := os.Stat(globalPath); err == nil {
			l.v.SetConfigFile(globalPath)

			if err := l.v.MergeInConfig(); err == nil {
				break
			}
		}
	}
}

// loadLocalConfig loads local configuration from the entry file's directory or its parents
func (l *Loader) loadLocalConfig(entry string) {
	if entry == "" {
		return
	}

	absEntry, err := filepath.Abs(entry)
	if err != nil {
		return // silently ignore, the builder reports unreadable entries
	}

	localPath := FindLocalConfig(filepath.Dir(absEntry))
	if localPath != "" {
		l.v.SetConfigFile(localPath)
		_ = l.v.MergeInConfig()
	}
}

// bindCommandFlags binds command flags to viper
func (l *Loader) bindCommandFlags(flags *pflag.FlagSet) {
	if flags == nil {
		return
	}

	if f := flags.Lookup("verbose"); f != nil {
		_ = l.v.BindPFlag("verbose", f)
	}

	if f := flags.Lookup("compiler"); f != nil {
		_ = l.v.BindPFlag("compiler_path", f)
	}
}
