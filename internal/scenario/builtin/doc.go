// Package builtin embeds the scenario files that ship with the binary so a
// fresh install has something to play before any project scenarios exist.
package builtin

import "embed"

// Files holds the bundled category files.
//
//go:embed *.yaml
var Files embed.FS
