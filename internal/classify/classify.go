package classify

import (
	"fmt"
	"strings"

	"reconform/internal/config"
	"reconform/internal/media/ffprobe"
)

// Action says what happens to a stream class during processing.
type Action int

const (
	// ActionCopy leaves the streams untouched.
	ActionCopy Action = iota
	// ActionEncode re-encodes the streams to policy targets.
	ActionEncode
)

// String returns a short label for logs.
func (a Action) String() string {
	if a == ActionEncode {
		return "encode"
	}
	return "copy"
}

// Plan is the per-file processing decision. The video decision is
// file-level: one non-compliant video stream forces an encode of all
// of them.
type Plan struct {
	VideoAction Action
	AudioAction Action
	// HDR is true when the source needs tonemapping to reach an SDR
	// target.
	HDR bool
	// Subtitles lists the text tracks to pull out as sidecars.
	Subtitles []Extraction
	// Reasons accumulates human-readable notes for why the file was
	// not compliant. Empty for compliant files.
	Reasons []string
}

// Compliant reports whether the file already satisfies policy and
// needs no encoder invocation.
func (p Plan) Compliant() bool {
	return p.VideoAction == ActionCopy && p.AudioAction == ActionCopy
}

// Note summarizes the plan for the tracking store.
func (p Plan) Note() string {
	if p.Compliant() {
		return "compliant"
	}
	return strings.Join(p.Reasons, "; ")
}

// Defensive returns a plan that re-encodes everything. Used when the
// source could not be inspected and must not slip through untouched.
func Defensive(reason string) Plan {
	return Plan{
		VideoAction: ActionEncode,
		AudioAction: ActionEncode,
		Reasons:     []string{reason},
	}
}

// Evaluate inspects probe results against policy and produces a plan.
func Evaluate(policy config.Policy, result ffprobe.Result) Plan {
	var plan Plan

	videos := result.VideoStreams()
	if len(videos) == 0 {
		plan.VideoAction = ActionEncode
		plan.Reasons = append(plan.Reasons, "no video stream")
	}
	for _, stream := range videos {
		for _, reason := range videoViolations(policy, stream) {
			plan.VideoAction = ActionEncode
			plan.Reasons = append(plan.Reasons, reason)
		}
		if IsHDR(stream) {
			plan.HDR = true
		}
	}

	for _, stream := range result.AudioStreams() {
		for _, reason := range audioViolations(policy, stream) {
			plan.AudioAction = ActionEncode
			plan.Reasons = append(plan.Reasons, reason)
		}
	}

	for _, stream := range result.SubtitleStreams() {
		if IsTextSubtitle(stream) {
			plan.Subtitles = append(plan.Subtitles, Extraction{
				StreamIndex: stream.Index,
				Language:    NormalizeLanguage(stream.Language()),
			})
		}
	}

	return plan
}

func videoViolations(policy config.Policy, stream ffprobe.Stream) []string {
	var reasons []string

	bitrate := stream.BitRateBPS()
	switch {
	case bitrate == 0:
		reasons = append(reasons, fmt.Sprintf("video stream %d: bitrate unknown", stream.Index))
	case policy.MaxBitrate > 0 && bitrate > policy.MaxBitrate:
		reasons = append(reasons, fmt.Sprintf("video stream %d: bitrate %d over limit %d", stream.Index, bitrate, policy.MaxBitrate))
	}

	if policy.MaxWidth > 0 && stream.Width > policy.MaxWidth {
		reasons = append(reasons, fmt.Sprintf("video stream %d: width %d over limit %d", stream.Index, stream.Width, policy.MaxWidth))
	}
	if policy.MaxHeight > 0 && stream.Height > policy.MaxHeight {
		reasons = append(reasons, fmt.Sprintf("video stream %d: height %d over limit %d", stream.Index, stream.Height, policy.MaxHeight))
	}
	// Odd dimensions break chroma subsampling on several players;
	// those files get re-encoded with padding to even sizes.
	if stream.Width%2 != 0 || stream.Height%2 != 0 {
		reasons = append(reasons, fmt.Sprintf("video stream %d: odd dimensions %dx%d", stream.Index, stream.Width, stream.Height))
	}

	if policy.VideoCodec != "" && !strings.EqualFold(stream.CodecName, policy.VideoCodec) {
		reasons = append(reasons, fmt.Sprintf("video stream %d: codec %q, want %q", stream.Index, stream.CodecName, policy.VideoCodec))
	} else if policy.VideoProfile != "" && !strings.EqualFold(stream.Profile, policy.VideoProfile) {
		reasons = append(reasons, fmt.Sprintf("video stream %d: profile %q, want %q", stream.Index, stream.Profile, policy.VideoProfile))
	}

	return reasons
}

func audioViolations(policy config.Policy, stream ffprobe.Stream) []string {
	var reasons []string

	if policy.AudioCodec != "" && !strings.EqualFold(stream.CodecName, policy.AudioCodec) {
		reasons = append(reasons, fmt.Sprintf("audio stream %d: codec %q, want %q", stream.Index, stream.CodecName, policy.AudioCodec))
	}
	if policy.MaxChannels > 0 && stream.Channels > policy.MaxChannels {
		reasons = append(reasons, fmt.Sprintf("audio stream %d: %d channels over limit %d", stream.Index, stream.Channels, policy.MaxChannels))
	}

	return reasons
}

// IsHDR reports whether a video stream carries high dynamic range
// color metadata (PQ or HLG transfer, or BT.2020 primaries).
func IsHDR(stream ffprobe.Stream) bool {
	transfer := strings.ToLower(stream.ColorTransfer)
	if transfer == "smpte2084" || transfer == "arib-std-b67" {
		return true
	}
	return strings.HasPrefix(strings.ToLower(stream.ColorPrimaries), "bt2020")
}
