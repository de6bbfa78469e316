package remote

import (
	"context"
	"errors"
	"slices"
	"testing"

	"reconform/internal/config"
	"reconform/internal/process"
)

type fakeTransport struct {
	uploads   [][2]string
	downloads [][2]string
	removed   []string
	execs     [][]string

	execResult process.Result
	execErr    error
	uploadErr  error
	downloadErr error
}

func (f *fakeTransport) Upload(local, remotePath string) error {
	f.uploads = append(f.uploads, [2]string{local, remotePath})
	return f.uploadErr
}

func (f *fakeTransport) Download(remotePath, local string) error {
	f.downloads = append(f.downloads, [2]string{remotePath, local})
	return f.downloadErr
}

func (f *fakeTransport) Remove(remotePath string) error {
	f.removed = append(f.removed, remotePath)
	return nil
}

func (f *fakeTransport) Exec(ctx context.Context, argv []string) (process.Result, error) {
	f.execs = append(f.execs, slices.Clone(argv))
	return f.execResult, f.execErr
}

func (f *fakeTransport) Close() error { return nil }

func testBackend(transport Transport) *Backend {
	cfg := &config.Config{
		Policy: config.Policy{
			MaxBitrate: 5_000_000, MaxWidth: 1920, MaxHeight: 1080,
			VideoProfile: "Main", AudioCodec: "aac", MaxChannels: 2,
			Container: "mkv",
		},
		Encoder: config.Encoder{AudioBitrate: "192k"},
		Runner:  config.Runner{FatalExitAbove: 10},
		Remote:  config.Remote{Dir: "/encode"},
	}
	return NewBackend(transport, nil, cfg)
}

func TestBackendEncode(t *testing.T) {
	transport := &fakeTransport{}
	backend := testBackend(transport)

	err := backend.Encode(context.Background(), "/media/in.avi", "/stage/tmp.mkv", true, false)
	if err != nil {
		t.Fatal(err)
	}

	if len(transport.uploads) != 1 || transport.uploads[0] != [2]string{"/media/in.avi", "/encode/in.avi"} {
		t.Fatalf("uploads = %v", transport.uploads)
	}
	if len(transport.execs) != 1 {
		t.Fatalf("execs = %v", transport.execs)
	}
	argv := transport.execs[0]
	if argv[0] != "/encode/ffmpeg" {
		t.Fatalf("binary = %q", argv[0])
	}
	if !slices.Contains(argv, "h264_nvenc") {
		t.Fatalf("argv = %v", argv)
	}
	if argv[len(argv)-1] != "/encode/out.mkv" {
		t.Fatalf("remote output = %q", argv[len(argv)-1])
	}
	if len(transport.downloads) != 1 || transport.downloads[0] != [2]string{"/encode/out.mkv", "/stage/tmp.mkv"} {
		t.Fatalf("downloads = %v", transport.downloads)
	}
	// Staging files are cleared before upload and after download.
	if !slices.Contains(transport.removed, "/encode/in.avi") || !slices.Contains(transport.removed, "/encode/out.mkv") {
		t.Fatalf("removed = %v", transport.removed)
	}
}

func TestBackendEncodeFailure(t *testing.T) {
	transport := &fakeTransport{execResult: process.Result{ExitCode: 1, Output: "encode error"}}
	backend := testBackend(transport)

	err := backend.Encode(context.Background(), "/media/in.avi", "/stage/tmp.mkv", true, false)
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, process.ErrFatal) {
		t.Fatal("exit 1 is a per-file failure")
	}
	if len(transport.downloads) != 0 {
		t.Fatal("must not download after a failed encode")
	}
}

func TestBackendEncodeFatal(t *testing.T) {
	transport := &fakeTransport{execResult: process.Result{ExitCode: -1}}
	backend := testBackend(transport)

	err := backend.Encode(context.Background(), "/media/in.avi", "/stage/tmp.mkv", true, true)
	if !errors.Is(err, process.ErrFatal) {
		t.Fatalf("expected fatal, got %v", err)
	}
}

func TestBackendUploadFailure(t *testing.T) {
	transport := &fakeTransport{uploadErr: errors.New("connection reset")}
	backend := testBackend(transport)

	if err := backend.Encode(context.Background(), "/media/in.avi", "/stage/tmp.mkv", true, false); err == nil {
		t.Fatal("expected error")
	}
	if len(transport.execs) != 0 {
		t.Fatal("must not exec after a failed upload")
	}
}

func TestShellJoin(t *testing.T) {
	got := shellJoin([]string{"/encode/ffmpeg", "-i", "/encode/in file.avi", "-vf", "pad='ceil(min(1920,iw)/2)*2'"})
	want := `/encode/ffmpeg -i '/encode/in file.avi' -vf 'pad='\''ceil(min(1920,iw)/2)*2'\'''`
	if got != want {
		t.Fatalf("shellJoin = %q, want %q", got, want)
	}
}

func TestShellQuotePlain(t *testing.T) {
	if got := shellQuote("-loglevel"); got != "-loglevel" {
		t.Fatalf("shellQuote = %q", got)
	}
	if got := shellQuote(""); got != "''" {
		t.Fatalf("empty arg = %q", got)
	}
}
