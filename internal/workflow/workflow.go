package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"reconform/internal/classify"
	"reconform/internal/config"
	"reconform/internal/encode"
	"reconform/internal/ffmpeg"
	"reconform/internal/fileutil"
	"reconform/internal/logging"
	"reconform/internal/media/ffprobe"
	"reconform/internal/process"
	"reconform/internal/scan"
	"reconform/internal/tracking"
)

// Encoder is the local encode surface. Satisfied by encode.Engine.
type Encoder interface {
	TwoPass(ctx context.Context, req encode.Request) (ffmpeg.TonemapMode, error)
	SinglePass(ctx context.Context, req encode.Request) error
}

// RemoteEncoder is the optional offload surface. Satisfied by
// remote.Backend.
type RemoteEncoder interface {
	Encode(ctx context.Context, source, localOutput string, videoEncode, audioEncode bool) error
}

// ProbeFunc inspects one file. Injectable for tests.
type ProbeFunc func(ctx context.Context, binary, path string) (ffprobe.Result, error)

// Summary is the run tally.
type Summary struct {
	Candidates int
	Processed  int
	Skipped    int
	Compliant  int
	Failed     int
}

// Options assembles an Orchestrator. Config and Store are required;
// everything else defaults to the real collaborators.
type Options struct {
	Config *config.Config
	Logger *slog.Logger
	Store  *tracking.Store
	Engine Encoder
	// Remote is a connected offload backend, or nil to encode
	// locally. It is only consulted in single-pass mode when the
	// video needs encoding.
	Remote RemoteEncoder
	Probe  ProbeFunc
	// Runner executes subtitle extraction commands.
	Runner process.Runner
	// DryRun logs the commands that would run and records files as
	// checked without touching them.
	DryRun bool
}

// Orchestrator drives one full pass over the watched library.
type Orchestrator struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *tracking.Store
	engine Encoder
	remote RemoteEncoder
	probe  ProbeFunc
	runner process.Runner
	dryRun bool
}

// New wires an orchestrator, filling in default collaborators.
func New(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	runner := opts.Runner
	if runner == nil {
		runner = process.Exec{Dir: opts.Config.Paths.StagingDir}
	}
	engine := opts.Engine
	if engine == nil {
		engine = encode.New(runner, logger, opts.Config)
	}
	probe := opts.Probe
	if probe == nil {
		probe = ffprobe.Inspect
	}
	return &Orchestrator{
		cfg:    opts.Config,
		logger: logging.NewComponentLogger(logger, "workflow"),
		store:  opts.Store,
		engine: engine,
		remote: opts.Remote,
		probe:  probe,
		runner: runner,
		dryRun: opts.DryRun,
	}
}

// Run processes every candidate once. It returns early only on
// context cancellation or a fatal encoder exit; per-file failures are
// recorded and the run continues.
func (o *Orchestrator) Run(ctx context.Context) (Summary, error) {
	var summary Summary

	candidates := scan.Candidates(o.logger, scan.Options{
		Roots:      o.cfg.Paths.Watched,
		Exclude:    o.cfg.Paths.Exclude,
		Extensions: o.cfg.Policy.Extensions,
	})
	summary.Candidates = len(candidates)
	if len(candidates) == 0 {
		o.logger.Info("no candidate files")
		return summary, nil
	}
	o.logger.Info("candidates found", logging.Int("count", len(candidates)))

	for _, source := range candidates {
		// Cancellation is checked between files, never mid-encode.
		if err := ctx.Err(); err != nil {
			o.logSummary(summary)
			return summary, err
		}
		if err := o.processFile(ctx, source, &summary); err != nil {
			o.logSummary(summary)
			return summary, err
		}
	}

	o.logSummary(summary)
	return summary, nil
}

// processFile is the per-file error boundary: anything short of a
// fatal encoder exit is absorbed here.
func (o *Orchestrator) processFile(ctx context.Context, source string, summary *Summary) error {
	info, err := os.Stat(source)
	if err != nil {
		summary.Failed++
		o.logger.Error("stat failed", logging.String("path", source), logging.Error(err))
		return nil
	}
	size, mtime := info.Size(), info.ModTime()

	record, err := o.store.Lookup(ctx, source, size, mtime)
	if err != nil {
		summary.Failed++
		o.logger.Error("tracking lookup failed", logging.String("path", source), logging.Error(err))
		return nil
	}
	if record != nil {
		summary.Skipped++
		o.logger.Info("skip (tracked ok)", logging.String("path", source))
		return nil
	}

	plan := o.classifyFile(ctx, source)

	if plan.Compliant() {
		summary.Compliant++
		o.logger.Info("compliant", logging.String("path", source))
		if err := o.store.Upsert(ctx, source, size, mtime, tracking.StatusOK, plan.Note()); err != nil {
			o.logger.Error("tracking upsert failed", logging.String("path", source), logging.Error(err))
		}
		return nil
	}
	o.logger.Info("needs processing",
		logging.String("path", source),
		logging.String("video", plan.VideoAction.String()),
		logging.String("audio", plan.AudioAction.String()),
		logging.Bool("hdr", plan.HDR),
		logging.String("reasons", plan.Note()))

	if o.cfg.ExtractSubtitles() && len(plan.Subtitles) > 0 {
		if err := o.extractSubtitles(ctx, source, plan.Subtitles); err != nil {
			if errors.Is(err, process.ErrFatal) {
				summary.Failed++
				o.recordError(ctx, source, err)
				return err
			}
			o.logger.Error("subtitle extraction failed", logging.String("path", source), logging.Error(err))
		}
	}

	dest := o.destinationPath(source)

	if o.dryRun {
		o.logPlannedCommands(source, dest, plan)
		if err := o.store.Upsert(ctx, source, size, mtime, tracking.StatusOK, "checked-only"); err != nil {
			o.logger.Error("tracking upsert failed", logging.String("path", source), logging.Error(err))
		}
		return nil
	}

	output := filepath.Join(o.cfg.Paths.StagingDir, uuid.NewString()+"."+o.cfg.Policy.Container)
	note, err := o.runEncode(ctx, source, output, plan)
	if err != nil {
		summary.Failed++
		o.recordError(ctx, source, err)
		if errors.Is(err, process.ErrFatal) {
			o.logger.Error("fatal encoder exit, aborting run", logging.String("path", source), logging.Error(err))
			return err
		}
		o.logger.Error("encode failed", logging.String("path", source), logging.Error(err))
		return nil
	}

	if err := o.install(ctx, source, output, dest, note); err != nil {
		summary.Failed++
		o.recordError(ctx, source, err)
		o.logger.Error("replacement failed", logging.String("path", source), logging.Error(err))
		return nil
	}

	summary.Processed++
	o.logger.Info("encoded", logging.String("source", source), logging.String("dest", dest))
	return nil
}

// classifyFile probes the source and evaluates policy. A file the
// inspector cannot parse is planned defensively: it gets a full
// re-encode rather than a silent pass.
func (o *Orchestrator) classifyFile(ctx context.Context, source string) classify.Plan {
	result, err := o.probe(ctx, o.cfg.FFprobeBinary(), source)
	if err != nil {
		o.logger.Warn("probe failed, planning defensive encode", logging.String("path", source), logging.Error(err))
		return classify.Defensive(fmt.Sprintf("unparseable: %v", err))
	}
	return classify.Evaluate(o.cfg.Policy, result)
}

func (o *Orchestrator) extractSubtitles(ctx context.Context, source string, extractions []classify.Extraction) error {
	assigned := classify.AssignSidecars(source, extractions, nil)
	for _, extraction := range assigned {
		argv := ffmpeg.BuildSubtitleExtract(o.cfg.FFmpegBinary(), source, extraction.StreamIndex, extraction.Sidecar)
		if o.dryRun {
			o.logger.Info("dry-run subtitle command", logging.String("argv", strings.Join(argv, " ")))
			continue
		}
		o.logger.Info("extracting subtitle",
			logging.Int("stream", extraction.StreamIndex),
			logging.String("sidecar", extraction.Sidecar))
		result, err := o.runner.Run(ctx, argv)
		if err != nil {
			return err
		}
		if err := process.Classify(result, o.cfg.Runner.FatalExitAbove); err != nil {
			return err
		}
	}
	return nil
}

// runEncode dispatches to the configured pipeline and returns the
// tracking note for a successful encode.
func (o *Orchestrator) runEncode(ctx context.Context, source, output string, plan classify.Plan) (string, error) {
	req := encode.Request{
		Input:       source,
		Output:      output,
		HDR:         plan.HDR,
		VideoEncode: plan.VideoAction == classify.ActionEncode,
		AudioEncode: plan.AudioAction == classify.ActionEncode,
	}

	if o.cfg.Encoder.Mode == config.ModeTwoPassHW {
		mode, err := o.engine.TwoPass(ctx, req)
		if err != nil {
			return "", err
		}
		return "encoded-av1 tonemap=" + mode.String(), nil
	}

	if o.remote != nil && req.VideoEncode {
		if err := o.remote.Encode(ctx, source, output, req.VideoEncode, req.AudioEncode); err != nil {
			return "", err
		}
		return "encoded-remote", nil
	}

	if err := o.engine.SinglePass(ctx, req); err != nil {
		return "", err
	}
	return "encoded-h264", nil
}

// install replaces the source with the staged output and records the
// destination as ok. A failed backup cleanup is logged only; the
// replacement itself succeeded.
func (o *Orchestrator) install(ctx context.Context, source, output, dest, note string) error {
	outcome, err := fileutil.Replace(output, source, dest, o.cfg.Behavior.DeleteOriginals)
	if err != nil {
		return err
	}
	if outcome.BackupErr != nil {
		o.logger.Warn("backup cleanup failed",
			logging.String("backup", outcome.Backup),
			logging.Error(outcome.BackupErr))
	}

	info, err := os.Stat(dest)
	if err != nil {
		return fmt.Errorf("stat destination: %w", err)
	}
	if err := o.store.Upsert(ctx, dest, info.Size(), info.ModTime(), tracking.StatusOK, note); err != nil {
		o.logger.Error("tracking upsert failed", logging.String("path", dest), logging.Error(err))
	}
	return nil
}

// destinationPath swaps the extension to the policy container. When
// originals are kept and the name would collide, a .new marker is
// inserted so the source survives next to the result.
func (o *Orchestrator) destinationPath(source string) string {
	base := strings.TrimSuffix(source, filepath.Ext(source))
	dest := base + "." + o.cfg.Policy.Container
	if dest == source && !o.cfg.Behavior.DeleteOriginals {
		dest = base + ".new." + o.cfg.Policy.Container
	}
	return dest
}

func (o *Orchestrator) logPlannedCommands(source, dest string, plan classify.Plan) {
	binary := o.cfg.FFmpegBinary()
	if o.cfg.Encoder.Mode == config.ModeTwoPassHW {
		mode := ffmpeg.TonemapNone
		if plan.HDR {
			mode = ffmpeg.TonemapHardware
		}
		pass1, pass2 := ffmpeg.BuildTwoPass(binary, ffmpeg.TwoPassParams{
			Input:          source,
			Output:         dest,
			Device:         o.cfg.Encoder.VAAPIDevice,
			Preset:         o.cfg.Encoder.Preset,
			GlobalQuality:  o.cfg.Encoder.GlobalQuality,
			LookAheadDepth: o.cfg.Encoder.LookAheadDepth,
			KeyframeGap:    o.cfg.Encoder.KeyframeGap,
			MaxWidth:       o.cfg.Policy.MaxWidth,
			MaxHeight:      o.cfg.Policy.MaxHeight,
			Tonemap:        mode,
		})
		o.logger.Info("dry-run pass 1", logging.String("argv", strings.Join(pass1, " ")))
		o.logger.Info("dry-run pass 2", logging.String("argv", strings.Join(pass2, " ")))
		return
	}

	argv := ffmpeg.BuildSinglePass(binary, ffmpeg.SinglePassParams{
		Input:        source,
		Output:       dest,
		VideoEncode:  plan.VideoAction == classify.ActionEncode,
		AudioEncode:  plan.AudioAction == classify.ActionEncode,
		Preset:       o.cfg.Encoder.Preset,
		Profile:      o.cfg.Policy.VideoProfile,
		CRF:          o.cfg.Encoder.CRF,
		MaxBitrate:   o.cfg.Policy.MaxBitrate,
		MaxWidth:     o.cfg.Policy.MaxWidth,
		MaxHeight:    o.cfg.Policy.MaxHeight,
		AudioCodec:   o.cfg.Policy.AudioCodec,
		AudioBitrate: o.cfg.Encoder.AudioBitrate,
		MaxChannels:  o.cfg.Policy.MaxChannels,
	})
	o.logger.Info("dry-run command", logging.String("argv", strings.Join(argv, " ")))
}

// recordError stamps an error record with the file's current
// signature so a later run retries even if the file changed while we
// were failing on it.
func (o *Orchestrator) recordError(ctx context.Context, source string, cause error) {
	info, statErr := os.Stat(source)
	if statErr == nil {
		if err := o.store.Upsert(ctx, source, info.Size(), info.ModTime(), tracking.StatusError, cause.Error()); err != nil {
			o.logger.Error("tracking upsert failed", logging.String("path", source), logging.Error(err))
		}
		return
	}
	o.logger.Warn("signature unavailable for error record", logging.String("path", source), logging.Error(statErr))
}

func (o *Orchestrator) logSummary(summary Summary) {
	o.logger.Info("run summary",
		logging.Int("candidates", summary.Candidates),
		logging.Int("processed", summary.Processed),
		logging.Int("skipped", summary.Skipped),
		logging.Int("compliant", summary.Compliant),
		logging.Int("failed", summary.Failed))
}
