package remote

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strings"

	"reconform/internal/config"
	"reconform/internal/ffmpeg"
	"reconform/internal/logging"
	"reconform/internal/process"
)

// Backend runs single-pass NVENC encodes through a Transport.
type Backend struct {
	transport  Transport
	logger     *slog.Logger
	dir        string
	container  string
	policy     config.Policy
	encoder    config.Encoder
	fatalAbove int
}

// NewBackend wires a transport to the configured remote working
// directory. That directory must hold the ffmpeg binary and is used
// for the in/out staging files.
func NewBackend(transport Transport, logger *slog.Logger, cfg *config.Config) *Backend {
	return &Backend{
		transport:  transport,
		logger:     logging.NewComponentLogger(logger, "remote"),
		dir:        cfg.Remote.Dir,
		container:  cfg.Policy.Container,
		policy:     cfg.Policy,
		encoder:    cfg.Encoder,
		fatalAbove: cfg.Runner.FatalExitAbove,
	}
}

// Encode ships source to the remote host, encodes it there, and
// leaves the result at localOutput. Remote staging files are removed
// afterwards; cleanup failures are logged, not fatal.
func (b *Backend) Encode(ctx context.Context, source, localOutput string, videoEncode, audioEncode bool) error {
	remoteIn := path.Join(b.dir, "in"+strings.ToLower(filepath.Ext(source)))
	remoteOut := path.Join(b.dir, "out."+b.container)

	// Clear leftovers from an interrupted run before uploading.
	b.cleanup(remoteIn, remoteOut)

	b.logger.Info("uploading to remote encoder", logging.String("source", source))
	if err := b.transport.Upload(source, remoteIn); err != nil {
		return fmt.Errorf("upload source: %w", err)
	}

	argv := ffmpeg.BuildRemoteSinglePass(path.Join(b.dir, "ffmpeg"), ffmpeg.SinglePassParams{
		Input:        remoteIn,
		Output:       remoteOut,
		VideoEncode:  videoEncode,
		AudioEncode:  audioEncode,
		Profile:      b.policy.VideoProfile,
		MaxBitrate:   b.policy.MaxBitrate,
		MaxWidth:     b.policy.MaxWidth,
		MaxHeight:    b.policy.MaxHeight,
		AudioCodec:   b.policy.AudioCodec,
		AudioBitrate: b.encoder.AudioBitrate,
		MaxChannels:  b.policy.MaxChannels,
	})

	result, err := b.transport.Exec(ctx, argv)
	if err != nil {
		return fmt.Errorf("remote encode: %w", err)
	}
	if err := process.Classify(result, b.fatalAbove); err != nil {
		b.cleanup(remoteIn, remoteOut)
		return err
	}

	if err := b.transport.Download(remoteOut, localOutput); err != nil {
		b.cleanup(remoteIn, remoteOut)
		return fmt.Errorf("download result: %w", err)
	}
	b.cleanup(remoteIn, remoteOut)
	return nil
}

func (b *Backend) cleanup(paths ...string) {
	for _, remotePath := range paths {
		if err := b.transport.Remove(remotePath); err != nil {
			b.logger.Warn("remote cleanup failed", logging.String("path", remotePath), logging.Error(err))
		}
	}
}
