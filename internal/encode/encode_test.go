package encode

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"reconform/internal/config"
	"reconform/internal/ffmpeg"
	"reconform/internal/process"
)

type fakeRunner struct {
	results []process.Result
	calls   [][]string
}

func (f *fakeRunner) Run(ctx context.Context, argv []string) (process.Result, error) {
	f.calls = append(f.calls, slices.Clone(argv))
	if len(f.results) == 0 {
		return process.Result{}, nil
	}
	result := f.results[0]
	f.results = f.results[1:]
	return result, nil
}

func testEngine(t *testing.T, runner process.Runner) *Engine {
	t.Helper()
	cfg := &config.Config{
		Paths: config.Paths{StagingDir: t.TempDir()},
		Policy: config.Policy{
			MaxBitrate: 5_000_000, MaxWidth: 3840, MaxHeight: 2160,
			VideoProfile: "Main", AudioCodec: "aac", MaxChannels: 2,
		},
		Encoder: config.Encoder{
			Preset: "slow", GlobalQuality: 22, LookAheadDepth: 100,
			KeyframeGap: 120, VAAPIDevice: "/dev/dri/renderD128",
			TonemapFallbackPattern: "No mastering display metadata",
			CRF:                    23, AudioBitrate: "192k",
		},
		Runner: config.Runner{FatalExitAbove: 10},
	}
	return New(runner, nil, cfg)
}

func filterOf(t *testing.T, argv []string) string {
	t.Helper()
	i := slices.Index(argv, "-vf")
	if i < 0 || i+1 >= len(argv) {
		t.Fatalf("no -vf in %v", argv)
	}
	return argv[i+1]
}

func TestTwoPassSDR(t *testing.T) {
	runner := &fakeRunner{}
	engine := testEngine(t, runner)

	mode, err := engine.TwoPass(context.Background(), Request{Input: "/media/in.mkv", Output: "/stage/tmp.mkv"})
	if err != nil {
		t.Fatalf("two pass: %v", err)
	}
	if mode != ffmpeg.TonemapNone {
		t.Fatalf("mode = %v", mode)
	}
	if len(runner.calls) != 2 {
		t.Fatalf("expected 2 invocations, got %d", len(runner.calls))
	}
	for _, call := range runner.calls {
		if strings.Contains(filterOf(t, call), "tonemap") {
			t.Fatalf("SDR source must not be tonemapped: %v", call)
		}
	}
}

func TestTwoPassCopiesAudioEvenWhenFlagged(t *testing.T) {
	runner := &fakeRunner{}
	engine := testEngine(t, runner)

	_, err := engine.TwoPass(context.Background(), Request{
		Input: "/media/in.mkv", Output: "/stage/tmp.mkv", AudioEncode: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	pass2 := runner.calls[1]
	i := slices.Index(pass2, "-c:a")
	if i < 0 || pass2[i+1] != "copy" {
		t.Fatalf("pass2 audio must be copied, got %v", pass2)
	}
	if slices.Contains(pass2, "-b:a") {
		t.Fatalf("pass2 must not carry audio encode args: %v", pass2)
	}
}

func TestTwoPassHDRHardware(t *testing.T) {
	runner := &fakeRunner{}
	engine := testEngine(t, runner)

	mode, err := engine.TwoPass(context.Background(), Request{Input: "/media/in.mkv", Output: "/stage/tmp.mkv", HDR: true})
	if err != nil {
		t.Fatal(err)
	}
	if mode != ffmpeg.TonemapHardware {
		t.Fatalf("mode = %v", mode)
	}
	for _, call := range runner.calls {
		if !strings.Contains(filterOf(t, call), "tonemap_vaapi") {
			t.Fatalf("expected hardware tonemap in %v", call)
		}
	}
}

func TestTwoPassFallbackExactlyOnce(t *testing.T) {
	runner := &fakeRunner{results: []process.Result{
		{ExitCode: 1, Output: "Error: No mastering display metadata for tonemapping"},
		{ExitCode: 0},
		{ExitCode: 0},
	}}
	engine := testEngine(t, runner)

	mode, err := engine.TwoPass(context.Background(), Request{Input: "/media/in.mkv", Output: "/stage/tmp.mkv", HDR: true})
	if err != nil {
		t.Fatalf("fallback should recover: %v", err)
	}
	if mode != ffmpeg.TonemapSoftware {
		t.Fatalf("mode = %v", mode)
	}
	if len(runner.calls) != 3 {
		t.Fatalf("expected hw pass1 + sw pass1 + pass2, got %d calls", len(runner.calls))
	}
	if !strings.Contains(filterOf(t, runner.calls[0]), "tonemap_vaapi") {
		t.Fatal("first attempt should use the hardware tonemap")
	}
	retry := filterOf(t, runner.calls[1])
	if !strings.Contains(retry, "hwdownload") || strings.Contains(retry, "tonemap_vaapi") {
		t.Fatalf("retry filter = %q", retry)
	}
	if !strings.Contains(filterOf(t, runner.calls[2]), "hwdownload") {
		t.Fatal("pass 2 must keep the fallback chain")
	}
}

func TestTwoPassFallbackFailureIsTerminal(t *testing.T) {
	runner := &fakeRunner{results: []process.Result{
		{ExitCode: 1, Output: "No mastering display metadata"},
		{ExitCode: 1, Output: "No mastering display metadata"},
	}}
	engine := testEngine(t, runner)

	_, err := engine.TwoPass(context.Background(), Request{Input: "/media/in.mkv", Output: "/stage/tmp.mkv", HDR: true})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(runner.calls) != 2 {
		t.Fatalf("fallback must run exactly once, got %d calls", len(runner.calls))
	}
}

func TestTwoPassOtherFailureNoFallback(t *testing.T) {
	runner := &fakeRunner{results: []process.Result{
		{ExitCode: 1, Output: "Invalid data found when processing input"},
	}}
	engine := testEngine(t, runner)

	_, err := engine.TwoPass(context.Background(), Request{Input: "/media/in.mkv", Output: "/stage/tmp.mkv", HDR: true})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(runner.calls) != 1 {
		t.Fatalf("non-matching diagnostic must not retry, got %d calls", len(runner.calls))
	}
}

func TestTwoPassFatalPropagates(t *testing.T) {
	runner := &fakeRunner{results: []process.Result{
		{ExitCode: -1, Output: "No mastering display metadata"},
	}}
	engine := testEngine(t, runner)

	_, err := engine.TwoPass(context.Background(), Request{Input: "/media/in.mkv", Output: "/stage/tmp.mkv", HDR: true})
	if !errors.Is(err, process.ErrFatal) {
		t.Fatalf("expected fatal, got %v", err)
	}
	if len(runner.calls) != 1 {
		t.Fatal("fatal exits must never trigger the fallback")
	}
}

func TestTwoPassFailureRemovesTemp(t *testing.T) {
	staging := t.TempDir()
	output := filepath.Join(staging, "tmp.mkv")
	if err := os.WriteFile(output, []byte("partial"), 0o644); err != nil {
		t.Fatal(err)
	}

	runner := &fakeRunner{results: []process.Result{
		{ExitCode: 0},
		{ExitCode: 3, Output: "muxer error"},
	}}
	engine := testEngine(t, runner)

	if _, err := engine.TwoPass(context.Background(), Request{Input: "/media/in.mkv", Output: output}); err == nil {
		t.Fatal("expected pass 2 failure")
	}
	if _, err := os.Stat(output); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("partial output should be removed after pass 2 failure")
	}
}

func TestCleanupStaleStats(t *testing.T) {
	runner := &fakeRunner{}
	engine := testEngine(t, runner)
	stale := filepath.Join(engine.stagingDir, "ffmpeg2pass-0.log")
	if err := os.WriteFile(stale, []byte("old stats"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := engine.TwoPass(context.Background(), Request{Input: "/media/in.mkv", Output: filepath.Join(engine.stagingDir, "tmp.mkv")}); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(stale); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("stale pass-1 statistics should be removed before a new encode")
	}
}

func TestSinglePass(t *testing.T) {
	runner := &fakeRunner{}
	engine := testEngine(t, runner)

	err := engine.SinglePass(context.Background(), Request{
		Input: "/media/in.avi", Output: "/stage/tmp.mkv",
		VideoEncode: true, AudioEncode: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(runner.calls) != 1 {
		t.Fatalf("calls = %d", len(runner.calls))
	}
	argv := runner.calls[0]
	if !slices.Contains(argv, "libx264") || !slices.Contains(argv, "aac") {
		t.Fatalf("argv = %v", argv)
	}
}

func TestSinglePassFatal(t *testing.T) {
	runner := &fakeRunner{results: []process.Result{{ExitCode: 137}}}
	engine := testEngine(t, runner)

	err := engine.SinglePass(context.Background(), Request{Input: "/media/in.avi", Output: "/stage/tmp.mkv", VideoEncode: true})
	if !errors.Is(err, process.ErrFatal) {
		t.Fatalf("expected fatal, got %v", err)
	}
}
