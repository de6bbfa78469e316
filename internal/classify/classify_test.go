package classify

import (
	"strings"
	"testing"

	"reconform/internal/config"
	"reconform/internal/media/ffprobe"
)

func testPolicy() config.Policy {
	return config.Policy{
		MaxBitrate:   5_000_000,
		MaxWidth:     1920,
		MaxHeight:    1080,
		VideoCodec:   "h264",
		VideoProfile: "Main",
		AudioCodec:   "aac",
		MaxChannels:  2,
	}
}

func compliantVideo() ffprobe.Stream {
	return ffprobe.Stream{
		Index:     0,
		CodecType: "video",
		CodecName: "h264",
		Profile:   "Main",
		BitRate:   "4000000",
		Width:     1920,
		Height:    1080,
	}
}

func compliantAudio() ffprobe.Stream {
	return ffprobe.Stream{Index: 1, CodecType: "audio", CodecName: "aac", Channels: 2}
}

func TestCompliantFile(t *testing.T) {
	plan := Evaluate(testPolicy(), ffprobe.Result{Streams: []ffprobe.Stream{compliantVideo(), compliantAudio()}})
	if !plan.Compliant() {
		t.Fatalf("expected compliant, reasons: %v", plan.Reasons)
	}
	if plan.Note() != "compliant" {
		t.Fatalf("note = %q", plan.Note())
	}
}

func TestVideoViolations(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*ffprobe.Stream)
		want   string
	}{
		{"over bitrate", func(s *ffprobe.Stream) { s.BitRate = "6000000" }, "bitrate 6000000 over limit"},
		{"unknown bitrate", func(s *ffprobe.Stream) { s.BitRate = "" }, "bitrate unknown"},
		{"over width", func(s *ffprobe.Stream) { s.Width = 3840; s.BitRate = "4000000" }, "width 3840 over limit"},
		{"odd width", func(s *ffprobe.Stream) { s.Width = 1281 }, "odd dimensions"},
		{"wrong codec", func(s *ffprobe.Stream) { s.CodecName = "hevc" }, `codec "hevc"`},
		{"wrong profile", func(s *ffprobe.Stream) { s.Profile = "High" }, `profile "High"`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			video := compliantVideo()
			tc.mutate(&video)
			plan := Evaluate(testPolicy(), ffprobe.Result{Streams: []ffprobe.Stream{video, compliantAudio()}})
			if plan.VideoAction != ActionEncode {
				t.Fatal("expected video encode")
			}
			if len(plan.Reasons) == 0 || !strings.Contains(plan.Reasons[0], tc.want) {
				t.Fatalf("reasons %v do not mention %q", plan.Reasons, tc.want)
			}
		})
	}
}

func TestCodecCaseInsensitive(t *testing.T) {
	video := compliantVideo()
	video.CodecName = "H264"
	video.Profile = "main"
	plan := Evaluate(testPolicy(), ffprobe.Result{Streams: []ffprobe.Stream{video, compliantAudio()}})
	if !plan.Compliant() {
		t.Fatalf("case difference should not trigger encode: %v", plan.Reasons)
	}
}

func TestOneBadStreamForcesEncode(t *testing.T) {
	over := compliantVideo()
	over.Index = 2
	over.BitRate = "9000000"
	plan := Evaluate(testPolicy(), ffprobe.Result{Streams: []ffprobe.Stream{compliantVideo(), over, compliantAudio()}})
	if plan.VideoAction != ActionEncode {
		t.Fatal("any failing video stream must force a file-level encode")
	}
}

func TestAudioViolations(t *testing.T) {
	audio := compliantAudio()
	audio.CodecName = "dts"
	audio.Channels = 6
	plan := Evaluate(testPolicy(), ffprobe.Result{Streams: []ffprobe.Stream{compliantVideo(), audio}})
	if plan.AudioAction != ActionEncode {
		t.Fatal("expected audio encode")
	}
	if plan.VideoAction != ActionCopy {
		t.Fatal("audio violation must not force a video encode")
	}
	if len(plan.Reasons) != 2 {
		t.Fatalf("reasons: %v", plan.Reasons)
	}
}

func TestHDRDetection(t *testing.T) {
	for _, tc := range []struct {
		transfer, primaries string
		want                bool
	}{
		{"smpte2084", "bt2020", true},
		{"arib-std-b67", "", true},
		{"", "bt2020nc", true},
		{"bt709", "bt709", false},
		{"", "", false},
	} {
		video := compliantVideo()
		video.ColorTransfer = tc.transfer
		video.ColorPrimaries = tc.primaries
		if got := IsHDR(video); got != tc.want {
			t.Errorf("IsHDR(%q, %q) = %v", tc.transfer, tc.primaries, got)
		}
	}
}

func TestHDRPlanFlag(t *testing.T) {
	video := compliantVideo()
	video.CodecName = "hevc"
	video.ColorTransfer = "smpte2084"
	plan := Evaluate(testPolicy(), ffprobe.Result{Streams: []ffprobe.Stream{video, compliantAudio()}})
	if !plan.HDR {
		t.Fatal("expected HDR flag on plan")
	}
}

func TestNoVideoStream(t *testing.T) {
	plan := Evaluate(testPolicy(), ffprobe.Result{Streams: []ffprobe.Stream{compliantAudio()}})
	if plan.VideoAction != ActionEncode {
		t.Fatal("missing video stream must not pass as compliant")
	}
}

func TestDefensivePlan(t *testing.T) {
	plan := Defensive("unreadable stream layout")
	if plan.Compliant() {
		t.Fatal("defensive plan must encode")
	}
	if plan.Note() != "unreadable stream layout" {
		t.Fatalf("note = %q", plan.Note())
	}
}

func TestTextSubtitleDetection(t *testing.T) {
	for _, tc := range []struct {
		codec, tag string
		want       bool
	}{
		{"subrip", "", true},
		{"ass", "", true},
		{"mov_text", "", true},
		{"", "S_TEXT/UTF8", true},
		{"hdmv_pgs_subtitle", "", false},
		{"dvd_subtitle", "", false},
	} {
		stream := ffprobe.Stream{CodecType: "subtitle", CodecName: tc.codec, CodecTag: tc.tag}
		if got := IsTextSubtitle(stream); got != tc.want {
			t.Errorf("IsTextSubtitle(%q/%q) = %v", tc.codec, tc.tag, got)
		}
	}
	if IsTextSubtitle(ffprobe.Stream{CodecType: "video", CodecName: "subrip"}) {
		t.Error("non-subtitle stream misdetected")
	}
}

func TestNormalizeLanguage(t *testing.T) {
	for _, tc := range []struct{ in, want string }{
		{"eng", "en"},
		{"por", "pt"},
		{"pt-BR", "pt"},
		{"und", ""},
		{"", ""},
		{"qqq", "qqq"},
	} {
		if got := NormalizeLanguage(tc.in); got != tc.want {
			t.Errorf("NormalizeLanguage(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestAssignSidecars(t *testing.T) {
	never := func(string) bool { return false }
	assigned := AssignSidecars("/media/show.mkv", []Extraction{
		{StreamIndex: 2, Language: "en"},
		{StreamIndex: 3, Language: "en"},
		{StreamIndex: 4, Language: ""},
	}, never)

	want := []string{"/media/show.en.srt", "/media/show.en1.srt", "/media/show.4.srt"}
	for i, extraction := range assigned {
		if extraction.Sidecar != want[i] {
			t.Errorf("sidecar[%d] = %q, want %q", i, extraction.Sidecar, want[i])
		}
	}
}

func TestAssignSidecarsSkipsExisting(t *testing.T) {
	taken := map[string]bool{"/media/show.en.srt": true, "/media/show.en1.srt": true}
	assigned := AssignSidecars("/media/show.mkv", []Extraction{{StreamIndex: 2, Language: "en"}}, func(path string) bool {
		return taken[path]
	})
	if assigned[0].Sidecar != "/media/show.en2.srt" {
		t.Fatalf("sidecar = %q", assigned[0].Sidecar)
	}
}
