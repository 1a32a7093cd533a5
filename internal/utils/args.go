package utils

import "strings"

// SplitShebangArgs expands the options a shebang line passes as one argument.
//
// A script starting with "#!/usr/bin/scracc -c -r" is executed as
// ["-c -r", "script.scc", ...], so a leading option argument that contains
// whitespace is split into separate options. Everything else is untouched.
func SplitShebangArgs(args []string) []string {
	if len(args) == 0 || !IsOption(args[0]) || !strings.ContainsAny(args[0], " \t") {
		return args
	}

	out := strings.Fields(args[0])

	return append(out, args[1:]...)
}
