// Package runner executes built programs and reports their exit status.
package runner

import (
	"errors"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"

	"al.essio.dev/pkg/shellescape"
	"github.com/rs/zerolog"
)

// Shell is the interpreter the command line is handed to
const Shell = "/bin/sh"

// Commander interface for testing
type Commander interface {
	Run() error
}

// Runner spawns a program with the tool's standard streams
type Runner struct {
	execCommand func(name string, args ...string) Commander
	stdin       io.Reader
	stdout      io.Writer
	stderr      io.Writer
	logger      zerolog.Logger
}

// Option configures a Runner
type Option func(*Runner)

// WithStreams replaces the standard streams given to the program
func WithStreams(stdin io.Reader, stdout, stderr io.Writer) Option {
	return func(r *Runner) {
		r.stdin = stdin
		r.stdout = stdout
		r.stderr = stderr
	}
}

// WithLogger sets the logger
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// New creates a runner attached to the process streams
func New(opts ...Option) *Runner {
	r := &Runner{
		execCommand: func(name string, args ...string) Commander {
			return exec.Command(name, args...)
		},
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
		logger: zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// CommandLine quotes the binary and every argument individually so they reach
// the program byte for byte. exec replaces the shell, so signals and the exit
// status belong to the program itself.
func CommandLine(binary string, args []string) string {
	words := append([]string{binary}, args...)
	return "exec " + shellescape.QuoteCommand(words)
}

// Run executes binary with args and returns its exit status unchanged.
// A program killed by a signal reports 128 plus the signal number.
// The error is only set when the program could not be started.
func (r *Runner) Run(binary string, args []string) (int, error) {
	name, cmdArgs := r.command(binary, args)

	r.logger.Debug().Str("command", name).Strs("args", cmdArgs).Msg("running")

	c := r.execCommand(name, cmdArgs...)
	if cmd, ok := c.(*exec.Cmd); ok {
		cmd.Stdin = r.stdin
		cmd.Stdout = r.stdout
		cmd.Stderr = r.stderr
	}

	// The program shares the terminal and receives interrupts itself;
	// scracc only has to outlive it to report the status.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)

	err := c.Run()
	if err == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return ExitStatus(exitErr), nil
	}

	return -1, err
}

func (r *Runner) command(binary string, args []string) (string, []string) {
	if runtime.GOOS == "windows" {
		return binary, append([]string(nil), args...)
	}

	return Shell, []string{"-c", CommandLine(binary, args)}
}

// ExitStatus maps a finished process to a shell style status
func ExitStatus(exitErr *exec.ExitError) int {
	if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}

	return exitErr.ExitCode()
}
