// Package main hosts the captionsync CLI.
//
// The Cobra command tree replays caption files through the translation
// engine against a simulated playback clock, prints sentence groupings, and
// scaffolds configuration. Engine wiring lives in internal/engine; commands
// here only resolve config, pick collaborators, and format output.
package main
