package cmd

import (
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/Norgate-AV/scracc/internal/builder"
	"github.com/Norgate-AV/scracc/internal/cache"
	"github.com/Norgate-AV/scracc/internal/codes"
	"github.com/Norgate-AV/scracc/internal/compiler"
	"github.com/Norgate-AV/scracc/internal/config"
	"github.com/Norgate-AV/scracc/internal/logging"
	"github.com/Norgate-AV/scracc/internal/runner"
	"github.com/Norgate-AV/scracc/internal/snippet"
)

func (a *app) newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:          "run [options] <input-file> [input-file-args...]",
		Short:        "Build if needed and run a snippet",
		Long:         `Build the snippet when its cached binary is missing or out of date, then run it.`,
		RunE:         a.runScript,
		SilenceUsage: true,
		Args:         cobra.ArbitraryArgs,
	}

	addRunFlags(runCmd)

	return runCmd
}

func (a *app) runScript(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return codes.Argumentf("not enough arguments: missing input file")
	}

	rf := readRunFlags(cmd.Flags())

	opts, err := config.NewOptions(args[0], args[1:], rf.cleanSlate, rf.recompile, rf.debug, rf.noCache)
	if err != nil {
		return err
	}

	cfg, err := config.NewLoader().Load(cmd.Flags(), opts.Entry)
	if err != nil {
		return err
	}

	logger := logging.New(a.stderr, cfg.Verbose)
	fs := afero.NewOsFs()

	b, err := builder.New(cfg, opts, builder.Deps{
		FS:    fs,
		Store: newStore(fs, cfg, logger),
		Assembler: snippet.NewAssembler(fs,
			snippet.WithPreamble(snippet.Preamble{
				Headers:    cfg.DefaultHeaders,
				Namespaces: cfg.DefaultNamespaces,
			}),
			snippet.WithLogger(logger),
		),
		Compiler: compiler.NewInvoker(cfg, fs, logger),
		Runner:   runner.New(runner.WithStreams(a.stdin, a.stdout, a.stderr), runner.WithLogger(logger)),
		Logger:   logger,
		Stdout:   a.stdout,
	})
	if err != nil {
		return err
	}

	code, err := b.BuildAndRun()
	if err != nil {
		return err
	}

	a.code = code

	return nil
}

// newStore opens the cache with its BoltDB index and per-slot file locks
func newStore(fs afero.Fs, cfg *config.Config, logger zerolog.Logger) *cache.Store {
	return cache.NewStore(fs, cfg.CacheDir,
		cache.WithIndex(filepath.Join(cfg.CacheDir, cache.IndexFile)),
		cache.WithLocker(cache.NewFileLocker(cfg.CacheDir)),
		cache.WithLogger(logger),
	)
}
