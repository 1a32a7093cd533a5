package snippet

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/Norgate-AV/scracc/internal/codes"
	"github.com/Norgate-AV/scracc/internal/utils"
)

// Banner is the first line of every generated translation unit
const Banner = "// Generated by scracc"

// CyclicEmbedError is returned when a file embeds itself, directly or through other files.
type CyclicEmbedError struct {
	// Chain is the embed path from the entry file back to the repeated file
	Chain []string
}

func (e *CyclicEmbedError) Error() string {
	return "cyclic embed: " + strings.Join(e.Chain, " -> ")
}

// Preamble is the convenience header written after the banner
type Preamble struct {
	Headers    []string
	Namespaces []string
}

func (p Preamble) write(w io.Writer) error {
	for _, h := range p.Headers {
		if _, err := fmt.Fprintf(w, "#include <%s>\n", h); err != nil {
			return err
		}
	}

	for _, ns := range p.Namespaces {
		if _, err := fmt.Fprintf(w, "using namespace %s;\n", ns); err != nil {
			return err
		}
	}

	return nil
}

// Assembler inlines embedded snippets into one translation unit
type Assembler struct {
	fs       afero.Fs
	preamble Preamble
	logger   zerolog.Logger
}

// Option configures an Assembler
type Option func(*Assembler)

// WithPreamble sets the headers and namespaces emitted unless clean-slate is requested
func WithPreamble(p Preamble) Option {
	return func(a *Assembler) {
		a.preamble = p
	}
}

// WithLogger sets the assembler's logger
func WithLogger(logger zerolog.Logger) Option {
	return func(a *Assembler) {
		a.logger = logger
	}
}

// NewAssembler creates an assembler reading snippets from fs
func NewAssembler(fs afero.Fs, options ...Option) *Assembler {
	a := &Assembler{
		fs:     fs,
		logger: zerolog.Nop(),
	}

	for _, option := range options {
		option(a)
	}

	return a
}

// assembly is the state of one Assemble call
type assembly struct {
	// inProgress holds the files currently being expanded, for cycle detection
	inProgress map[string]bool
	// done holds files already inlined; a second embed of one is skipped
	done  map[string]bool
	chain []string
}

// Assemble writes the translation unit for entry to w.
func (a *Assembler) Assemble(w io.Writer, entry string, cleanSlate bool) error {
	bw := bufio.NewWriter(w)

	if _, err := fmt.Fprintln(bw, Banner); err != nil {
		return err
	}

	if !cleanSlate {
		if err := a.preamble.write(bw); err != nil {
			return err
		}
	}

	st := &assembly{
		inProgress: make(map[string]bool),
		done:       make(map[string]bool),
	}

	if err := a.expand(bw, filepath.Clean(entry), st); err != nil {
		return err
	}

	return bw.Flush()
}

// AssembleFile writes the translation unit for entry to dst, replacing it.
// The output file is closed on every path, including a cyclic embed.
func (a *Assembler) AssembleFile(dst, entry string, cleanSlate bool) (err error) {
	f, err := a.fs.Create(dst)
	if err != nil {
		return codes.IO("cannot create", dst, err)
	}

	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = codes.IO("cannot write", dst, cerr)
		}
	}()

	return a.Assemble(f, entry, cleanSlate)
}

func (a *Assembler) expand(w *bufio.Writer, path string, st *assembly) error {
	key := a.resolve(path)

	if st.inProgress[key] {
		chain := append(append([]string(nil), st.chain...), path)
		return &CyclicEmbedError{Chain: chain}
	}

	if st.done[key] {
		a.logger.Debug().Str("file", path).Msg("skipping repeated embed")
		return nil
	}

	f, err := a.fs.Open(path)
	if err != nil {
		return codes.IO("cannot open", path, err)
	}
	defer f.Close()

	st.inProgress[key] = true
	st.chain = append(st.chain, path)

	defer func() {
		delete(st.inProgress, key)
		st.chain = st.chain[:len(st.chain)-1]
		st.done[key] = true
	}()

	dir := filepath.Dir(path)
	r := bufio.NewReader(f)

	for {
		line, readErr := r.ReadString('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return codes.IO("cannot read", path, readErr)
		}

		if line != "" {
			if err := a.emit(w, dir, line, st); err != nil {
				return err
			}
		}

		if readErr != nil {
			return nil
		}
	}
}

// resolve returns the identity of a snippet file. On the OS filesystem symlinks
// are followed so a link back into the tree is recognized as the same file.
func (a *Assembler) resolve(path string) string {
	if _, ok := a.fs.(*afero.OsFs); !ok {
		return path
	}

	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return path
	}

	return resolved
}

func (a *Assembler) emit(w *bufio.Writer, dir, line string, st *assembly) error {
	if IsExecutableMarker(line) {
		return nil
	}

	if ref, ok := EmbedTarget(line); ok {
		return a.expand(w, utils.ResolveFrom(dir, ref), st)
	}

	if _, err := w.WriteString(line); err != nil {
		return err
	}

	// Keep the next line (or an embedded file) from joining an unterminated last line
	if !strings.HasSuffix(line, "\n") {
		return w.WriteByte('\n')
	}

	return nil
}
