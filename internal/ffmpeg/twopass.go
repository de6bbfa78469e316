package ffmpeg

import (
	"fmt"
	"strconv"
	"strings"
)

// TonemapMode selects how HDR sources are brought down to SDR.
type TonemapMode int

const (
	// TonemapNone leaves color untouched (SDR sources).
	TonemapNone TonemapMode = iota
	// TonemapHardware uses the VAAPI tonemap filter. It needs
	// mastering display metadata in the source.
	TonemapHardware
	// TonemapSoftware downloads frames and tonemaps on the CPU. Used
	// as the fallback when the hardware filter rejects the source.
	TonemapSoftware
)

// String returns a short label for logs.
func (m TonemapMode) String() string {
	switch m {
	case TonemapHardware:
		return "hardware"
	case TonemapSoftware:
		return "software-fallback"
	default:
		return "none"
	}
}

// TwoPassParams carries everything the two-pass AV1 builder needs.
// Numeric fields are policy constants from configuration, not
// per-file decisions.
type TwoPassParams struct {
	Input  string
	Output string

	Device         string
	Preset         string
	GlobalQuality  int
	LookAheadDepth int
	KeyframeGap    int
	MaxWidth       int
	MaxHeight      int

	Tonemap TonemapMode
}

// BuildTwoPass produces the analysis and output commands for a
// two-pass hardware AV1 encode. Pass 1 writes only rate-control
// statistics; pass 2 produces the real file and stamps SDR color tags
// into the bitstream so players do not misread tonemapped output.
// Only video is re-encoded: audio and subtitle streams are always
// copied through.
func BuildTwoPass(binary string, p TwoPassParams) (pass1, pass2 []string) {
	filter := p.filterChain()
	codec := p.codecArgs()

	pass1 = []string{binary, "-hide_banner", "-loglevel", "error", "-y",
		"-probesize", "200M", "-analyzeduration", "200M",
		"-fflags", "+genpts+discardcorrupt+nobuffer", "-err_detect", "ignore_err"}
	pass1 = append(pass1, p.hwInitArgs()...)
	pass1 = append(pass1, "-i", p.Input, "-vf", filter)
	pass1 = append(pass1, codec...)
	pass1 = append(pass1, "-pass", "1")
	pass1 = append(pass1, p.gopArgs()...)
	pass1 = append(pass1, "-an", "-f", "null", "/dev/null")

	pass2 = []string{binary, "-hide_banner", "-loglevel", "error", "-y"}
	pass2 = append(pass2, p.hwInitArgs()...)
	pass2 = append(pass2, "-i", p.Input,
		"-map", "0", "-map_chapters", "0", "-map_metadata", "0")
	pass2 = append(pass2, "-c:a", "copy", "-c:s", "copy", "-vf", filter)
	pass2 = append(pass2, codec...)
	pass2 = append(pass2, "-pass", "2")
	pass2 = append(pass2, p.gopArgs()...)
	pass2 = append(pass2,
		"-bsf:v", "av1_metadata=color_primaries=1:transfer_characteristics=1:matrix_coefficients=1:color_range=tv",
		p.Output)

	return pass1, pass2
}

func (p TwoPassParams) hwInitArgs() []string {
	return []string{
		"-init_hw_device", "vaapi=va:" + p.Device,
		"-init_hw_device", "qsv=qsv@va",
		"-filter_hw_device", "va",
		"-hwaccel", "vaapi",
		"-hwaccel_device", "va",
		"-hwaccel_output_format", "vaapi",
	}
}

// filterChain assembles the video filter graph: an optional tonemap
// stage, a downscale snapped to multiples of 8, and a map into the
// QSV encoder's frame context.
func (p TwoPassParams) filterChain() string {
	scale := fmt.Sprintf(
		"scale_vaapi=w='ceil(min(%d,iw)/8)*8':h='ceil(min(%d,ih)/8)*8':force_original_aspect_ratio=decrease:format=p010",
		p.MaxWidth, p.MaxHeight)

	stages := make([]string, 0, 3)
	switch p.Tonemap {
	case TonemapHardware:
		stages = append(stages, "tonemap_vaapi=matrix=bt709:primaries=bt709:transfer=bt709:format=p010")
	case TonemapSoftware:
		// CPU roundtrip: linearize, hable tonemap, back to BT.709,
		// then re-upload for the hardware scaler.
		stages = append(stages,
			"hwdownload,format=p010",
			"zscale=t=linear:npl=100,format=gbrpf32le,zscale=p=bt709,tonemap=tonemap=hable:desat=0,zscale=t=bt709:m=bt709:r=tv,format=p010",
			"hwupload")
	}
	stages = append(stages, scale, "hwmap=derive_device=qsv,format=qsv")
	return strings.Join(stages, ",")
}

func (p TwoPassParams) codecArgs() []string {
	return []string{
		"-c:v", "av1_qsv",
		"-preset", p.Preset,
		"-extbrc", "1",
		"-look_ahead_depth", strconv.Itoa(p.LookAheadDepth),
		"-global_quality", strconv.Itoa(p.GlobalQuality),
		"-async_depth", "4",
	}
}

func (p TwoPassParams) gopArgs() []string {
	return []string{
		"-g", strconv.Itoa(p.KeyframeGap),
		"-force_key_frames", "expr:gte(t,n_forced*2)",
		"-cluster_time_limit", "5000",
		"-cluster_size_limit", "5242880",
	}
}
