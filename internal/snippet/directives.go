// Package snippet turns a scracc source file into a single C++ translation unit.
//
// Three kinds of lines are special:
//
//	#!/usr/bin/env scracc          executable marker, dropped
//	#include "helpers.scc"         embed directive, replaced by the embedded file
//	//scracc: -lm -I/opt/include   extra compiler flags, collected by ScanFlags
//
// Everything else is copied verbatim.
package snippet

import (
	"regexp"
	"strings"
)

// EmbedExtension marks files that are inlined instead of included by the compiler
const EmbedExtension = ".scc"

var (
	embedPattern = regexp.MustCompile(`^\s*#\s*include\s*"([^"]+\.scc)"`)
	flagPattern  = regexp.MustCompile(`^\s*//\s*scracc:(.*)$`)
)

// IsExecutableMarker reports whether line is a shebang naming scracc.
func IsExecutableMarker(line string) bool {
	trimmed := strings.TrimSpace(line)
	return strings.HasPrefix(trimmed, "#!") && strings.Contains(trimmed, "scracc")
}

// EmbedTarget returns the referenced file of an embed directive.
// Ordinary includes such as <vector> or "util.h" are not embed directives.
func EmbedTarget(line string) (string, bool) {
	m := embedPattern.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}

	return m[1], true
}

// FlagComment returns the flags declared on a //scracc: comment line.
func FlagComment(line string) ([]string, bool) {
	m := flagPattern.FindStringSubmatch(strings.TrimRight(line, "\r\n"))
	if m == nil {
		return nil, false
	}

	return strings.Fields(m[1]), true
}
