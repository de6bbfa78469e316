package ffprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

var commandContext = exec.CommandContext

// ErrUnparseable signals that ffprobe could not make sense of the
// file at all. Callers must treat such files defensively rather than
// letting them slip through as compliant.
var ErrUnparseable = errors.New("media not parseable")

// Result represents the parsed output from an ffprobe inspection.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream describes a single stream in the media container.
type Stream struct {
	Index          int               `json:"index"`
	CodecName      string            `json:"codec_name"`
	CodecType      string            `json:"codec_type"`
	CodecTag       string            `json:"codec_tag_string"`
	Profile        string            `json:"profile"`
	BitRate        string            `json:"bit_rate"`
	Width          int               `json:"width"`
	Height         int               `json:"height"`
	Channels       int               `json:"channels"`
	ColorTransfer  string            `json:"color_transfer"`
	ColorPrimaries string            `json:"color_primaries"`
	Tags           map[string]string `json:"tags"`
}

// Format captures container-level metadata extracted by ffprobe.
type Format struct {
	Filename   string `json:"filename"`
	NBStreams  int    `json:"nb_streams"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
	FormatName string `json:"format_name"`
}

// Stream kinds as reported by ffprobe.
const (
	KindVideo    = "video"
	KindAudio    = "audio"
	KindSubtitle = "subtitle"
)

// Inspect executes ffprobe against the provided path and decodes the
// JSON response. A non-zero exit or undecodable payload is reported
// as ErrUnparseable.
func Inspect(ctx context.Context, binary string, path string) (Result, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{}, errors.New("ffprobe inspect: empty path")
	}

	cmd := commandContext(ctx, binary, "-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return Result{}, fmt.Errorf("%w: ffprobe: %s", ErrUnparseable, strings.TrimSpace(string(output)))
	}

	var result Result
	if err := json.Unmarshal(output, &result); err != nil {
		return Result{}, fmt.Errorf("%w: decode ffprobe output: %s", ErrUnparseable, err)
	}
	return result, nil
}

// IsVideo reports whether the stream carries video.
func (s Stream) IsVideo() bool { return strings.EqualFold(s.CodecType, KindVideo) }

// IsAudio reports whether the stream carries audio.
func (s Stream) IsAudio() bool { return strings.EqualFold(s.CodecType, KindAudio) }

// IsSubtitle reports whether the stream carries subtitles.
func (s Stream) IsSubtitle() bool { return strings.EqualFold(s.CodecType, KindSubtitle) }

// BitRateBPS returns the stream bitrate in bits per second, or 0 when
// ffprobe did not report one.
func (s Stream) BitRateBPS() int64 {
	rate := parseFloat(s.BitRate)
	if math.IsNaN(rate) || rate <= 0 {
		return 0
	}
	return int64(rate)
}

// Language returns the stream language tag, or "" when untagged.
func (s Stream) Language() string {
	if s.Tags == nil {
		return ""
	}
	if lang, ok := s.Tags["language"]; ok {
		return strings.TrimSpace(lang)
	}
	return ""
}

// VideoStreams returns the video streams in container order.
func (r Result) VideoStreams() []Stream {
	return r.streamsOfKind(KindVideo)
}

// AudioStreams returns the audio streams in container order.
func (r Result) AudioStreams() []Stream {
	return r.streamsOfKind(KindAudio)
}

// SubtitleStreams returns the subtitle streams in container order.
func (r Result) SubtitleStreams() []Stream {
	return r.streamsOfKind(KindSubtitle)
}

func (r Result) streamsOfKind(kind string) []Stream {
	var streams []Stream
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, kind) {
			streams = append(streams, stream)
		}
	}
	return streams
}

// DurationSeconds returns the container duration in seconds, or 0 when unavailable.
func (r Result) DurationSeconds() float64 {
	duration := parseFloat(r.Format.Duration)
	if math.IsNaN(duration) || duration < 0 {
		return 0
	}
	return duration
}

func parseFloat(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return 0
	}
	if parsed, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return parsed
	}
	return math.NaN()
}
