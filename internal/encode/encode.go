// Package encode drives encoder invocations for one file: the
// two-pass hardware pipeline with its software-tonemap fallback, and
// the simpler single-pass pipeline. It owns temp hygiene around the
// staging directory but never touches the source file; replacement is
// the orchestrator's job.
package encode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"reconform/internal/config"
	"reconform/internal/ffmpeg"
	"reconform/internal/logging"
	"reconform/internal/process"
)

// Engine runs encodes through a process.Runner.
type Engine struct {
	runner     process.Runner
	logger     *slog.Logger
	binary     string
	stagingDir string
	encoder    config.Encoder
	policy     config.Policy
	fatalAbove int
}

// New builds an engine from configuration. The runner should execute
// with the staging directory as its working directory so pass-1
// statistics land next to the temp output.
func New(runner process.Runner, logger *slog.Logger, cfg *config.Config) *Engine {
	return &Engine{
		runner:     runner,
		logger:     logging.NewComponentLogger(logger, "encode"),
		binary:     cfg.FFmpegBinary(),
		stagingDir: cfg.Paths.StagingDir,
		encoder:    cfg.Encoder,
		policy:     cfg.Policy,
		fatalAbove: cfg.Runner.FatalExitAbove,
	}
}

// Request describes one encode job. Output must live in the staging
// directory.
type Request struct {
	Input  string
	Output string

	HDR         bool
	VideoEncode bool
	// AudioEncode only affects the single-pass pipeline; the two-pass
	// pipeline re-encodes video and copies every other stream.
	AudioEncode bool
}

// TwoPass runs the analysis and output passes for one file and
// reports the tonemap mode that produced the result. When the
// hardware tonemap rejects an HDR source with the known
// missing-mastering-metadata diagnostic, pass 1 is retried exactly
// once with the software chain; any other failure, or a failure of
// the fallback itself, ends the job.
func (e *Engine) TwoPass(ctx context.Context, req Request) (ffmpeg.TonemapMode, error) {
	e.cleanupStale(req.Output)

	mode := ffmpeg.TonemapNone
	if req.HDR {
		mode = ffmpeg.TonemapHardware
	}

	err := e.runPass(ctx, req, mode, 1)
	if err != nil && mode == ffmpeg.TonemapHardware && e.matchesFallback(err) {
		e.logger.Warn("hardware tonemap rejected source, retrying with software chain",
			logging.String("input", req.Input))
		mode = ffmpeg.TonemapSoftware
		err = e.runPass(ctx, req, mode, 1)
	}
	if err != nil {
		return mode, fmt.Errorf("pass 1: %w", err)
	}

	if err := e.runPass(ctx, req, mode, 2); err != nil {
		e.removeTemp(req.Output)
		return mode, fmt.Errorf("pass 2: %w", err)
	}
	return mode, nil
}

func (e *Engine) runPass(ctx context.Context, req Request, mode ffmpeg.TonemapMode, pass int) error {
	pass1, pass2 := ffmpeg.BuildTwoPass(e.binary, e.twoPassParams(req, mode))
	argv := pass1
	if pass == 2 {
		argv = pass2
	}

	e.logger.Debug("running encoder pass",
		logging.Int("pass", pass),
		logging.String("tonemap", mode.String()),
		logging.String("input", req.Input))

	result, err := e.runner.Run(ctx, argv)
	if err != nil {
		return err
	}
	return process.Classify(result, e.fatalAbove)
}

func (e *Engine) twoPassParams(req Request, mode ffmpeg.TonemapMode) ffmpeg.TwoPassParams {
	return ffmpeg.TwoPassParams{
		Input:          req.Input,
		Output:         req.Output,
		Device:         e.encoder.VAAPIDevice,
		Preset:         e.encoder.Preset,
		GlobalQuality:  e.encoder.GlobalQuality,
		LookAheadDepth: e.encoder.LookAheadDepth,
		KeyframeGap:    e.encoder.KeyframeGap,
		MaxWidth:       e.policy.MaxWidth,
		MaxHeight:      e.policy.MaxHeight,
		Tonemap:        mode,
	}
}

// matchesFallback reports whether a per-file pass failure carries the
// diagnostic that marks a source without HDR mastering metadata.
// Fatal errors never qualify.
func (e *Engine) matchesFallback(err error) bool {
	pattern := e.encoder.TonemapFallbackPattern
	if pattern == "" || errors.Is(err, process.ErrFatal) {
		return false
	}
	var fileErr *process.FileError
	if !errors.As(err, &fileErr) {
		return false
	}
	return strings.Contains(fileErr.Output, pattern)
}

// SinglePass runs the one-shot normalization command.
func (e *Engine) SinglePass(ctx context.Context, req Request) error {
	e.cleanupStale(req.Output)

	argv := ffmpeg.BuildSinglePass(e.binary, e.singlePassParams(req))
	e.logger.Debug("running single-pass encode", logging.String("input", req.Input))

	result, err := e.runner.Run(ctx, argv)
	if err != nil {
		return err
	}
	if err := process.Classify(result, e.fatalAbove); err != nil {
		e.removeTemp(req.Output)
		return err
	}
	return nil
}

func (e *Engine) singlePassParams(req Request) ffmpeg.SinglePassParams {
	return ffmpeg.SinglePassParams{
		Input:        req.Input,
		Output:       req.Output,
		VideoEncode:  req.VideoEncode,
		AudioEncode:  req.AudioEncode,
		Preset:       e.encoder.Preset,
		Profile:      e.policy.VideoProfile,
		CRF:          e.encoder.CRF,
		MaxBitrate:   e.policy.MaxBitrate,
		MaxWidth:     e.policy.MaxWidth,
		MaxHeight:    e.policy.MaxHeight,
		AudioCodec:   e.policy.AudioCodec,
		AudioBitrate: e.encoder.AudioBitrate,
		MaxChannels:  e.policy.MaxChannels,
	}
}

// cleanupStale removes leftovers from a previous attempt: the temp
// output and any pass-1 statistics files in the staging directory.
func (e *Engine) cleanupStale(output string) {
	e.removeTemp(output)
	if e.stagingDir == "" {
		return
	}
	matches, err := filepath.Glob(filepath.Join(e.stagingDir, "ffmpeg2pass-*.log*"))
	if err != nil {
		return
	}
	for _, match := range matches {
		if err := os.Remove(match); err != nil {
			e.logger.Warn("stale stats cleanup failed", logging.String("path", match), logging.Error(err))
		}
	}
}

func (e *Engine) removeTemp(output string) {
	if output == "" {
		return
	}
	if err := os.Remove(output); err != nil && !errors.Is(err, os.ErrNotExist) {
		e.logger.Warn("temp cleanup failed", logging.String("path", output), logging.Error(err))
	}
}
