// Package ffmpeg builds encoder argument lists. Commands are
// structured argv slices, never shell strings, so tests can assert on
// them directly and paths never pass through a shell.
package ffmpeg
