package ffmpeg

import (
	"fmt"
	"strconv"
	"strings"
)

// SinglePassParams carries everything the single-pass H.264 builder
// needs. The same parameter set drives both the local libx264 command
// and the remote NVENC variant.
type SinglePassParams struct {
	Input  string
	Output string

	VideoEncode bool
	AudioEncode bool

	Preset       string
	Profile      string
	CRF          int
	MaxBitrate   int64
	MaxWidth     int
	MaxHeight    int
	AudioCodec   string
	AudioBitrate string
	MaxChannels  int
}

// BuildSinglePass produces a one-shot libx264/aac normalization
// command. Streams already in compliance are copied.
func BuildSinglePass(binary string, p SinglePassParams) []string {
	args := []string{binary, "-loglevel", "error", "-hide_banner", "-y", "-i", p.Input}
	if p.VideoEncode {
		args = append(args,
			"-c:v", "libx264",
			"-preset", p.Preset,
			"-tune", "zerolatency",
			"-profile:v", strings.ToLower(p.Profile),
			"-pix_fmt", "yuv420p",
			"-crf", strconv.Itoa(p.CRF),
		)
		args = append(args, p.rateArgs()...)
		args = append(args, "-vf", p.padScaleFilter())
	} else {
		args = append(args, "-c:v", "copy")
	}
	args = append(args, p.audioArgs()...)
	args = append(args, p.muxArgs()...)
	return append(args, p.Output)
}

// BuildRemoteSinglePass produces the NVENC variant executed on a
// remote encode host. Paths are the remote staging paths, not local
// ones.
func BuildRemoteSinglePass(binary string, p SinglePassParams) []string {
	args := []string{binary, "-loglevel", "error", "-hide_banner", "-y", "-i", p.Input,
		"-c:v", "h264_nvenc",
		"-preset", "slow",
		"-zerolatency", "1",
		"-profile:v", strings.ToLower(p.Profile),
		"-pix_fmt", "yuv420p",
		"-cq", "24", "-qmin", "23", "-qmax", "25",
	}
	args = append(args, p.rateArgs()...)
	args = append(args, "-vf", p.padScaleFilter())
	args = append(args, p.audioArgs()...)
	args = append(args, p.muxArgs()...)
	return append(args, p.Output)
}

// rateArgs caps the stream at the policy bitrate with a half-size VBV
// buffer.
func (p SinglePassParams) rateArgs() []string {
	return []string{
		"-b:v", "0",
		"-maxrate", strconv.FormatInt(p.MaxBitrate, 10),
		"-bufsize", strconv.FormatInt(p.MaxBitrate/2, 10),
	}
}

// padScaleFilter pads odd dimensions up to even and scales down to
// the policy ceiling while keeping aspect ratio.
func (p SinglePassParams) padScaleFilter() string {
	return fmt.Sprintf(
		"pad='ceil(min(%d,iw)/2)*2':'ceil(min(%d,ih)/2)*2',scale='min(%d,iw)':'min(%d,ih)':force_original_aspect_ratio=decrease",
		p.MaxWidth, p.MaxHeight, p.MaxWidth, p.MaxHeight)
}

func (p SinglePassParams) audioArgs() []string {
	if !p.AudioEncode {
		return []string{"-c:a", "copy"}
	}
	return []string{
		"-c:a", p.AudioCodec,
		"-ac", strconv.Itoa(p.MaxChannels),
		"-b:a", p.AudioBitrate,
	}
}

func (p SinglePassParams) muxArgs() []string {
	return []string{
		"-max_muxing_queue_size", "1024",
		"-map_metadata", "-1",
		"-movflags", "+faststart",
	}
}

// BuildSubtitleExtract produces the command that pulls one text
// subtitle stream out to an SRT sidecar.
func BuildSubtitleExtract(binary, input string, streamIndex int, sidecar string) []string {
	return []string{binary, "-loglevel", "error", "-hide_banner",
		"-i", input,
		"-map", "0:" + strconv.Itoa(streamIndex),
		sidecar,
	}
}
