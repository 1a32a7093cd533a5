// Package builder sequences identity, cache lookup, assembly, compilation and
// execution into a single invocation.
package builder

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/Norgate-AV/scracc/internal/cache"
	"github.com/Norgate-AV/scracc/internal/codes"
	"github.com/Norgate-AV/scracc/internal/compiler"
	"github.com/Norgate-AV/scracc/internal/config"
	"github.com/Norgate-AV/scracc/internal/snippet"
)

// Compiler turns an assembled source into an executable
type Compiler interface {
	Compile(req compiler.Request) error
}

// Runner executes a built program
type Runner interface {
	Run(binary string, args []string) (int, error)
}

// Deps are the collaborators of a Builder
type Deps struct {
	FS        afero.Fs
	Store     *cache.Store
	Assembler *snippet.Assembler
	Compiler  Compiler
	Runner    Runner
	Logger    zerolog.Logger

	// Stdout receives the debug mode path report
	Stdout io.Writer
}

// Builder owns the per invocation state: paths, flags and derived identifiers
type Builder struct {
	opts config.Options
	deps Deps

	id       cache.Identity
	slot     cache.Slot
	buildDir string
	buildSrc string

	state  State
	status cache.Status
	built  bool
}

// New computes the identity of the entry snippet and lays out its slot and
// build directory. Debug builds always happen inside the slot.
func New(cfg *config.Config, opts config.Options, deps Deps) (*Builder, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}

	b := &Builder{opts: opts, deps: deps, state: StateInit}

	id, err := cache.DeriveIdentity(deps.FS, opts.Entry)
	if err != nil {
		return nil, err
	}

	b.id = id
	b.slot = deps.Store.Slot(id, opts.Entry)

	b.buildDir = b.slot.Dir
	if cfg.BuildDir != "" && !opts.Debug {
		b.buildDir = filepath.Join(cfg.BuildDir, id.Path)
	}

	b.buildSrc = filepath.Join(b.buildDir, filepath.Base(opts.Entry)+cache.SourceSuffix)
	b.transition(StateIdentityComputed)

	return b, nil
}

// Identity returns the fingerprints of the entry snippet
func (b *Builder) Identity() cache.Identity {
	return b.id
}

// Slot returns the cache slot of the entry snippet
func (b *Builder) Slot() cache.Slot {
	return b.slot
}

// BuildDir returns where the compiler runs
func (b *Builder) BuildDir() string {
	return b.buildDir
}

// State returns the current step
func (b *Builder) State() State {
	return b.state
}

// Built reports whether this invocation compiled the program
func (b *Builder) Built() bool {
	return b.built
}

// BuildAndRun reuses or rebuilds the program, then runs it. The returned code is
// the program's own exit status, or codes.ExitFailure when it never ran.
// A no-cache invocation always evicts its slot before returning.
func (b *Builder) BuildAndRun() (code int, err error) {
	if b.opts.NoCache {
		defer b.evict()
	}

	defer func() {
		if err != nil {
			b.transition(StateFailed)
			code = codes.ExitFailure
		}
	}()

	if err := b.prepare(); err != nil {
		return codes.ExitFailure, err
	}

	if b.opts.Debug {
		fmt.Fprintf(b.deps.Stdout, "SCRACC Executable: %s\n", b.slot.Binary)
		fmt.Fprintf(b.deps.Stdout, "SCRACC Source: %s\n", b.slot.Source)
	}

	b.transition(StateRun)

	code, err = b.deps.Runner.Run(b.slot.Binary, b.opts.Args)
	if err != nil {
		return codes.ExitFailure, codes.IO("cannot run", b.slot.Binary, err)
	}

	b.transition(StateDone)
	b.deps.Logger.Debug().Int("code", code).Msg("program finished")

	return code, nil
}

// prepare leaves a fresh binary in the slot. It holds the slot lock
// until the binary is committed but not while the program runs.
func (b *Builder) prepare() (err error) {
	unlock, err := b.deps.Store.Lock(b.slot)
	if err != nil {
		return err
	}

	defer func() {
		if uerr := unlock(); uerr != nil {
			b.deps.Logger.Warn().Err(uerr).Str("slot", b.slot.Dir).Msg("failed to unlock slot")
		}
	}()

	b.status = b.deps.Store.Lookup(b.slot, b.id)
	b.deps.Logger.Debug().
		Str("entry", b.opts.Entry).
		Str("slot", b.slot.Dir).
		Stringer("status", b.status).
		Msg("cache lookup")

	if b.status == cache.Fresh && !b.opts.Recompile && !b.opts.NoCache {
		b.transition(StateCacheFresh)
		return nil
	}

	b.transition(StateCacheStale)

	return b.build()
}

func (b *Builder) build() error {
	fs := b.deps.FS

	for _, dir := range []string{b.slot.Dir, b.buildDir} {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return codes.IO("cannot create directory", dir, err)
		}
	}

	b.transition(StateAssemble)

	if err := b.deps.Assembler.AssembleFile(b.buildSrc, b.opts.Entry, b.opts.CleanSlate); err != nil {
		b.abandon()
		return err
	}

	flags, err := snippet.ScanFlagsFile(fs, b.opts.Entry)
	if err != nil {
		b.abandon()
		return err
	}

	b.transition(StateCompile)

	output := b.slot.TempBinary()
	err = b.deps.Compiler.Compile(compiler.Request{
		Source:       b.buildSrc,
		Output:       output,
		BuildDir:     b.buildDir,
		KeepBuildDir: b.buildDir == b.slot.Dir,
		Debug:        b.opts.Debug,
		CleanSlate:   b.opts.CleanSlate,
		ExtraFlags:   flags,
	})

	b.discardSource()

	if err != nil {
		return err
	}

	b.transition(StateCommit)

	if err := b.deps.Store.Commit(b.slot, b.id, cache.CommitRequest{
		Built: output,
		Entry: b.opts.Entry,
		Debug: b.opts.Debug,
	}); err != nil {
		_ = fs.Remove(output)
		return err
	}

	b.built = true

	return nil
}

// abandon cleans up after a build that never reached the compiler
func (b *Builder) abandon() {
	b.discardSource()

	if b.buildDir == b.slot.Dir {
		return
	}

	if err := b.deps.FS.RemoveAll(b.buildDir); err != nil {
		b.deps.Logger.Warn().Err(err).Str("dir", b.buildDir).Msg("failed to remove build directory")
	}
}

// discardSource removes generated source left in the slot by a non-debug build
func (b *Builder) discardSource() {
	if b.opts.Debug || b.buildDir != b.slot.Dir {
		return
	}

	if err := b.deps.FS.Remove(b.buildSrc); err != nil && !os.IsNotExist(err) {
		b.deps.Logger.Warn().Err(err).Str("source", b.buildSrc).Msg("failed to remove generated source")
	}
}

func (b *Builder) evict() {
	unlock, err := b.deps.Store.Lock(b.slot)
	if err != nil {
		b.deps.Logger.Warn().Err(err).Str("slot", b.slot.Dir).Msg("evicting without lock")
	} else {
		defer func() { _ = unlock() }()
	}

	if err := b.deps.Store.Evict(b.slot); err != nil {
		b.deps.Logger.Warn().Err(err).Str("slot", b.slot.Dir).Msg("failed to evict no-cache slot")
		return
	}

	b.deps.Logger.Debug().Str("slot", b.slot.Dir).Msg("evicted no-cache slot")
}

func (b *Builder) transition(to State) {
	b.deps.Logger.Debug().Stringer("from", b.state).Stringer("to", to).Msg("state")
	b.state = to
}
