package compiler

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/Norgate-AV/scracc/internal/codes"
	"github.com/Norgate-AV/scracc/internal/config"
)

// Commander interface for testing
type Commander interface {
	Run() error
}

// CommandBuilder handles building and running compiler commands
type CommandBuilder struct {
	execCommand func(name string, args ...string) Commander
	stdout      io.Writer
	stderr      io.Writer
}

// NewCommandBuilder creates a new command builder
func NewCommandBuilder() *CommandBuilder {
	return &CommandBuilder{
		execCommand: func(name string, args ...string) Commander {
			return exec.Command(name, args...)
		},
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
}

// ExecuteCommand runs the compiler in the command's directory and waits for it.
// There is no timeout: a hanging compiler blocks scracc.
func (cb *CommandBuilder) ExecuteCommand(sc *ShellCommand) error {
	c := cb.execCommand(sc.Path, sc.Args...)
	if cmd, ok := c.(*exec.Cmd); ok {
		cmd.Dir = sc.Dir
		cmd.Stdout = cb.stdout
		cmd.Stderr = cb.stderr
	}

	err := c.Run()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code := exitErr.ExitCode()
			fmt.Fprintf(cb.stderr, "Compilation failed (exit code %d): %s\n", code, codes.GetErrorMessage(code))
		}

		return err
	}

	return nil
}

// Invoker compiles assembled sources and cleans up the build directory
type Invoker struct {
	cfg    *config.Config
	fs     afero.Fs
	cb     *CommandBuilder
	logger zerolog.Logger
}

// NewInvoker creates a compiler invoker
func NewInvoker(cfg *config.Config, fs afero.Fs, logger zerolog.Logger) *Invoker {
	return &Invoker{
		cfg:    cfg,
		fs:     fs,
		cb:     NewCommandBuilder(),
		logger: logger,
	}
}

// Compile runs the compiler once. Failures are not retried: given the same
// input the compiler fails the same way. The build directory is removed
// afterwards unless it is the cache slot; a failed output is always removed.
func (inv *Invoker) Compile(req Request) (err error) {
	defer inv.cleanup(req, &err)

	sc, err := GetBuildCommand(inv.cfg, req)
	if err != nil {
		return codes.Compile(req.Source, err)
	}

	inv.logger.Debug().
		Str("compiler", sc.Path).
		Str("dir", sc.Dir).
		Str("command", sc.Path+" "+strings.Join(sc.Args, " ")).
		Msg("compiling")

	if err := inv.cb.ExecuteCommand(sc); err != nil {
		return codes.Compile(req.Source, err)
	}

	if _, err := inv.fs.Stat(req.Output); err != nil {
		return codes.Compile(req.Source, fmt.Errorf("compiler produced no executable: %w", err))
	}

	return nil
}

func (inv *Invoker) cleanup(req Request, err *error) {
	if *err != nil {
		if rerr := inv.fs.Remove(req.Output); rerr != nil && !os.IsNotExist(rerr) {
			inv.logger.Warn().Err(rerr).Str("output", req.Output).Msg("failed to remove partial output")
		}
	}

	if req.KeepBuildDir || req.BuildDir == "" {
		return
	}

	if rerr := inv.fs.RemoveAll(req.BuildDir); rerr != nil {
		inv.logger.Warn().Err(rerr).Str("dir", req.BuildDir).Msg("failed to remove build directory")
	}
}
