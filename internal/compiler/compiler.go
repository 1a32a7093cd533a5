package compiler

import (
	"fmt"

	"github.com/Norgate-AV/scracc/internal/config"
)

// ShellCommand is a resolved compiler invocation
type ShellCommand struct {
	Path string
	Args []string
	Dir  string
}

// Request describes one compilation of an assembled translation unit
type Request struct {
	// Source is the generated translation unit
	Source string

	// Output is where the executable is written
	Output string

	// BuildDir is the compiler's working directory
	BuildDir string

	// KeepBuildDir is set when the build directory is the persistent cache slot
	KeepBuildDir bool

	// Debug adds debug symbols
	Debug bool

	// CleanSlate skips the default libraries
	CleanSlate bool

	// ExtraFlags come from //scracc: comments in the entry snippet
	ExtraFlags []string
}

// GetBuildCommand resolves the full compiler command for a request:
//
//	<compiler> -std=<std> [-g] -o <output> <source> [-l<lib>...] [extra flags...]
//
// Libraries and extra flags follow the source so the linker resolves them.
func GetBuildCommand(cfg *config.Config, req Request) (*ShellCommand, error) {
	if req.Source == "" || req.Output == "" {
		return nil, fmt.Errorf("source and output are required")
	}

	var cmdArgs []string
	if cfg.Std != "" {
		cmdArgs = append(cmdArgs, "-std="+cfg.Std)
	}

	if req.Debug {
		cmdArgs = append(cmdArgs, "-g")
	}

	cmdArgs = append(cmdArgs, "-o", req.Output, req.Source)

	if !req.CleanSlate {
		for _, lib := range cfg.DefaultLibs {
			if lib != "" {
				cmdArgs = append(cmdArgs, "-l"+lib)
			}
		}
	}

	cmdArgs = append(cmdArgs, req.ExtraFlags...)

	return &ShellCommand{
		Path: cfg.CompilerPath,
		Args: cmdArgs,
		Dir:  req.BuildDir,
	}, nil
}
