package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/Norgate-AV/scracc/internal/codes"
	"github.com/Norgate-AV/scracc/internal/utils"
	"github.com/Norgate-AV/scracc/internal/version"
)

// app carries the streams and the exit status of one invocation
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	code   int
}

func Execute() {
	os.Exit(ExecuteArgs(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// ExecuteArgs runs scracc with raw command line arguments and returns the exit
// status: the program's own status after a run, codes.ExitFailure when scracc
// stopped before running it.
func ExecuteArgs(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	a := &app{stdin: stdin, stdout: stdout, stderr: stderr}

	rootCmd := a.newRootCmd()
	rootCmd.SetArgs(utils.SplitShebangArgs(args))
	rootCmd.SetIn(stdin)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(stderr, "STOPPED: %s\n", err)
		return codes.ExitCode(err)
	}

	return a.code
}

func (a *app) newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "scracc [options] <input-file> [input-file-args...]",
		Short: "Run C++ snippets like scripts",
		Long: `Compile a C++ snippet into a cached executable and run it.
The binary is rebuilt only when the entry snippet changes; use -r to force a rebuild
after editing only the files it embeds.`,
		RunE:          a.runScript,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ArbitraryArgs,
	}

	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.Version = fmt.Sprintf("%s (%s) %s", version.Version, version.Commit, version.BuildTime)
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().String("compiler", "", "C++ compiler driver (default g++)")

	addRunFlags(rootCmd)

	rootCmd.AddCommand(a.newRunCmd())
	rootCmd.AddCommand(a.newCacheCmd())

	return rootCmd
}

// addRunFlags registers the build mode options. Options end at the input file;
// everything after it belongs to the program.
func addRunFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.SetInterspersed(false)
	flags.BoolP("clean-slate", "c", false, "Skip the default preamble and libraries")
	flags.BoolP("recompile", "r", false, "Rebuild even if the cached binary is up to date")
	flags.BoolP("debug", "d", false, "Build with debug symbols and keep the generated source in the cache")
	flags.BoolP("nocache", "n", false, "Remove the build from the cache after running")

	cmd.MarkFlagsMutuallyExclusive("debug", "nocache")
}

type runFlags struct {
	cleanSlate bool
	recompile  bool
	debug      bool
	noCache    bool
}

func readRunFlags(flags *pflag.FlagSet) runFlags {
	var rf runFlags
	rf.cleanSlate, _ = flags.GetBool("clean-slate")
	rf.recompile, _ = flags.GetBool("recompile")
	rf.debug, _ = flags.GetBool("debug")
	rf.noCache, _ = flags.GetBool("nocache")

	return rf
}
