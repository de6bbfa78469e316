// Package ffprobe wraps the ffprobe binary for media inspection. The
// tool is treated as a black box returning per-stream metadata; files
// it cannot parse are surfaced via ErrUnparseable.
package ffprobe
