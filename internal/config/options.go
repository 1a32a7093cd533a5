package config

import (
	"github.com/Norgate-AV/scracc/internal/codes"
	"github.com/Norgate-AV/scracc/internal/utils"
)

// Options is the invocation request: what to run and how. It is built once from
// the command line and never mutated afterwards.
type Options struct {
	// Absolute path of the entry snippet
	Entry string

	// Arguments forwarded verbatim to the built program
	Args []string

	// Skip the generated preamble and the default libraries
	CleanSlate bool

	// Rebuild even when the cache is fresh
	Recompile bool

	// Build with debug symbols inside the cache slot and keep the generated source
	Debug bool

	// Evict the slot after running
	NoCache bool
}

// NewOptions resolves the entry path and validates the mode flags.
func NewOptions(entry string, args []string, cleanSlate, recompile, debug, noCache bool) (Options, error) {
	opts := Options{
		CleanSlate: cleanSlate,
		Recompile:  recompile,
		Debug:      debug,
		NoCache:    noCache,
	}

	if err := opts.validateModes(); err != nil {
		return Options{}, err
	}

	if entry == "" {
		return Options{}, codes.Argumentf("not enough arguments: missing input file")
	}

	abs, err := utils.AbsPath(entry)
	if err != nil {
		return Options{}, codes.Argumentf("invalid input file %q: %v", entry, err)
	}

	opts.Entry = abs
	opts.Args = append([]string(nil), args...)

	return opts, nil
}

// Validate checks an already built request.
func (o Options) Validate() error {
	if err := o.validateModes(); err != nil {
		return err
	}

	if o.Entry == "" {
		return codes.Argumentf("not enough arguments: missing input file")
	}

	return nil
}

func (o Options) validateModes() error {
	if o.Debug && o.NoCache {
		return codes.Argumentf("-d and -n are mutually exclusive")
	}

	return nil
}
