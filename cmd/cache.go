package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/Norgate-AV/scracc/internal/cache"
	"github.com/Norgate-AV/scracc/internal/config"
	"github.com/Norgate-AV/scracc/internal/logging"
	"github.com/Norgate-AV/scracc/internal/utils"
)

func (a *app) newCacheCmd() *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:          "cache",
		Short:        "Inspect and clean the build cache",
		SilenceUsage: true,
	}

	cacheCmd.AddCommand(&cobra.Command{
		Use:          "list",
		Short:        "List cached builds",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         a.cacheList,
	})

	cacheCmd.AddCommand(&cobra.Command{
		Use:          "gc",
		Short:        "Remove builds whose snippet no longer exists",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         a.cacheGC,
	})

	cacheCmd.AddCommand(&cobra.Command{
		Use:          "clear",
		Short:        "Remove every cached build",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         a.cacheClear,
	})

	cacheCmd.AddCommand(&cobra.Command{
		Use:          "path <input-file>",
		Short:        "Print the cache directory of a snippet",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE:         a.cachePath,
	})

	return cacheCmd
}

func (a *app) openStore(cmd *cobra.Command, entry string) (*cache.Store, error) {
	cfg, err := config.NewLoader().Load(cmd.Flags(), entry)
	if err != nil {
		return nil, err
	}

	logger := logging.New(a.stderr, cfg.Verbose)

	return newStore(afero.NewOsFs(), cfg, logger), nil
}

func (a *app) cacheList(cmd *cobra.Command, args []string) error {
	store, err := a.openStore(cmd, "")
	if err != nil {
		return err
	}

	entries, err := store.List()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SLOT\tENTRY\tBUILT\tSIZE\tDEBUG")

	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%t\n", shortSlot(e.Slot), e.SourceFile, e.BuiltAt.Local().Format(time.DateTime), e.Size, e.Debug)
	}

	return w.Flush()
}

// shortSlot abbreviates a slot fingerprint for listings
func shortSlot(slot string) string {
	return slot[:min(12, len(slot))]
}

func (a *app) cacheGC(cmd *cobra.Command, args []string) error {
	store, err := a.openStore(cmd, "")
	if err != nil {
		return err
	}

	report, err := store.GarbageCollect()
	if err != nil {
		return err
	}

	fmt.Fprintf(a.stdout, "Removed %d slot(s), kept %d, busy %d, temp files %d\n",
		len(report.Removed), report.Kept, report.Busy, report.TempFiles)

	return nil
}

func (a *app) cacheClear(cmd *cobra.Command, args []string) error {
	store, err := a.openStore(cmd, "")
	if err != nil {
		return err
	}

	removed, err := store.Clear()
	if err != nil {
		return err
	}

	fmt.Fprintf(a.stdout, "Removed %d slot(s)\n", removed)

	return nil
}

func (a *app) cachePath(cmd *cobra.Command, args []string) error {
	entry, err := utils.AbsPath(args[0])
	if err != nil {
		return err
	}

	store, err := a.openStore(cmd, entry)
	if err != nil {
		return err
	}

	id := cache.Identity{Path: cache.FingerprintPath(entry)}
	fmt.Fprintln(a.stdout, store.Slot(id, entry).Dir)

	return nil
}
