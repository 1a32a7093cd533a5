package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Norgate-AV/scracc/internal/cache"
	"github.com/Norgate-AV/scracc/internal/codes"
	"github.com/Norgate-AV/scracc/internal/config"
)

// isolate points every config and cache location at a temp dir
func isolate(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	cacheDir := filepath.Join(dir, "cache")

	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv(config.EnvCacheDir, cacheDir)
	t.Setenv(config.EnvBuildDir, "")
	t.Setenv(config.EnvCompiler, "")

	return cacheDir
}

func execute(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := ExecuteArgs(args, strings.NewReader(""), &stdout, &stderr)

	return code, stdout.String(), stderr.String()
}

func TestExecute_Help(t *testing.T) {
	isolate(t)

	code, stdout, _ := execute("-h")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "scracc [options] <input-file> [input-file-args...]")
	assert.Contains(t, stdout, "--nocache")
	assert.Contains(t, stdout, "rebuilt only when the entry snippet changes")
}

func TestExecute_MissingInput(t *testing.T) {
	isolate(t)

	code, _, stderr := execute()
	assert.Equal(t, codes.ExitFailure, code)
	assert.Equal(t, "STOPPED: not enough arguments: missing input file\n", stderr)
}

func TestExecute_DebugAndNoCacheRejected(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"separate options", []string{"-d", "-n", "main.scc"}},
		{"long options", []string{"--debug", "--nocache", "main.scc"}},
		{"shebang bundle", []string{"-d -n", "main.scc"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cacheDir := isolate(t)

			code, _, stderr := execute(tt.args...)
			assert.Equal(t, codes.ExitFailure, code)
			assert.True(t, strings.HasPrefix(stderr, "STOPPED: "))
			assert.NoDirExists(t, cacheDir, "Nothing is touched before the options are valid")
		})
	}
}

func TestExecute_MissingEntryFile(t *testing.T) {
	isolate(t)

	code, _, stderr := execute(filepath.Join(t.TempDir(), "missing.scc"))
	assert.Equal(t, codes.ExitFailure, code)
	assert.Contains(t, stderr, "STOPPED: cannot read")
}

func TestExecute_CachePath(t *testing.T) {
	cacheDir := isolate(t)
	entry := filepath.Join(t.TempDir(), "main.scc")

	code, stdout, _ := execute("cache", "path", entry)
	require.Equal(t, 0, code)
	assert.Equal(t, filepath.Join(cacheDir, cache.FingerprintPath(entry))+"\n", stdout)
}

func TestExecute_CacheListAndClearEmpty(t *testing.T) {
	isolate(t)

	code, stdout, _ := execute("cache", "list")
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "SLOT")
	assert.Contains(t, stdout, "ENTRY")

	code, stdout, _ = execute("cache", "clear")
	require.Equal(t, 0, code)
	assert.Equal(t, "Removed 0 slot(s)\n", stdout)

	code, stdout, _ = execute("cache", "gc")
	require.Equal(t, 0, code)
	assert.Equal(t, "Removed 0 slot(s), kept 0, busy 0, temp files 0\n", stdout)
}

// writeFakeCompiler installs a compiler that emits a shell script instead of
// an ELF binary and logs each invocation to calls
func writeFakeCompiler(t *testing.T, dir, calls string) string {
	t.Helper()

	script := fmt.Sprintf(`#!/bin/sh
echo compile >> '%s'
out=""
while [ $# -gt 0 ]; do
	if [ "$1" = "-o" ]; then out="$2"; shift; fi
	shift
done
printf '#!/bin/sh\necho "ran $*"\nexit 3\n' > "$out"
chmod +x "$out"
`, calls)

	path := filepath.Join(dir, "fake-cxx")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))

	return path
}

func countLines(t *testing.T, path string) int {
	t.Helper()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return 0
	}
	require.NoError(t, err)

	return strings.Count(string(data), "\n")
}

func TestExecute_RunBuildsOnceAndReuses(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}

	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("requires /bin/sh")
	}

	cacheDir := isolate(t)
	work := t.TempDir()
	calls := filepath.Join(work, "calls")
	t.Setenv(config.EnvCompiler, writeFakeCompiler(t, work, calls))

	entry := filepath.Join(work, "hello.scc")
	require.NoError(t, os.WriteFile(entry, []byte("#!/usr/bin/env scracc\nint main() { return 3; }\n"), 0o644))

	code, stdout, stderr := execute(entry, "x y", "z")
	require.Equal(t, 3, code, stderr)
	assert.Equal(t, "ran x y z\n", stdout)
	assert.Equal(t, 1, countLines(t, calls))

	slotDir := filepath.Join(cacheDir, cache.FingerprintPath(entry))
	assert.FileExists(t, filepath.Join(slotDir, "hello.scc.bin"))
	assert.FileExists(t, filepath.Join(slotDir, "hello.scc.md5"))
	assert.NoFileExists(t, filepath.Join(slotDir, "hello.scc.cc"))

	code, stdout, _ = execute("run", entry)
	assert.Equal(t, 3, code)
	assert.Equal(t, "ran \n", stdout)
	assert.Equal(t, 1, countLines(t, calls), "Unchanged snippet is not recompiled")

	code, stdout, _ = execute("cache", "list")
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, entry)

	code, _, _ = execute("-r", entry)
	assert.Equal(t, 3, code)
	assert.Equal(t, 2, countLines(t, calls))

	code, _, _ = execute("-n", entry)
	assert.Equal(t, 3, code)
	assert.Equal(t, 3, countLines(t, calls))
	assert.NoDirExists(t, slotDir, "No-cache run leaves no slot behind")
}
