// Package sentence merges adjacent cues into translation units.
//
// Grouping is greedy and bounded: a group grows until adding the next cue
// would exceed the character, cue count, or gap limits, or until its text
// already reads as a finished sentence. A grouping is rebuilt from scratch
// whenever the timeline is replaced.
package sentence
