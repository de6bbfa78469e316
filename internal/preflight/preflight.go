// Package preflight verifies the run environment before any file is
// touched: encoder binaries on PATH, a writable staging directory,
// and enough free space to hold a temp encode.
package preflight

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"reconform/internal/config"
)

// MinStagingBytes is the free-space floor for the staging filesystem.
// A single UHD temp encode can exceed this, but below it a run is
// certain to fail midway.
const MinStagingBytes = 1 << 30

// Check is one verified precondition.
type Check struct {
	Name     string
	Ok       bool
	Optional bool
	Detail   string
}

var lookPath = exec.LookPath

// Run evaluates every precondition for the given configuration.
func Run(cfg *config.Config) []Check {
	checks := []Check{
		binaryCheck("ffmpeg", cfg.FFmpegBinary()),
		binaryCheck("ffprobe", cfg.FFprobeBinary()),
		stagingCheck(cfg.Paths.StagingDir),
		diskCheck(cfg.Paths.StagingDir),
	}
	if cfg.Remote.Enabled {
		checks = append(checks, Check{
			Name:     "remote host",
			Ok:       cfg.Remote.Host != "",
			Optional: true,
			Detail:   remoteDetail(cfg.Remote),
		})
	}
	return checks
}

// Failed reports whether any required check did not pass.
func Failed(checks []Check) bool {
	for _, check := range checks {
		if !check.Ok && !check.Optional {
			return true
		}
	}
	return false
}

func binaryCheck(name, command string) Check {
	check := Check{Name: name}
	resolved, err := lookPath(command)
	if err != nil {
		check.Detail = fmt.Sprintf("binary %q not found", command)
		return check
	}
	check.Ok = true
	check.Detail = resolved
	return check
}

func stagingCheck(dir string) Check {
	check := Check{Name: "staging directory"}
	if dir == "" {
		check.Detail = "not configured"
		return check
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		check.Detail = err.Error()
		return check
	}
	probe, err := os.CreateTemp(dir, ".preflight-*")
	if err != nil {
		check.Detail = fmt.Sprintf("not writable: %v", err)
		return check
	}
	probe.Close()
	os.Remove(probe.Name())
	check.Ok = true
	check.Detail = dir
	return check
}

func diskCheck(dir string) Check {
	check := Check{Name: "staging disk space"}
	if dir == "" {
		check.Detail = "not configured"
		return check
	}
	free, err := diskFreeBytes(dir)
	if err != nil {
		// Not knowing is a warning, not a blocker.
		check.Ok = true
		check.Optional = true
		check.Detail = fmt.Sprintf("free space unknown: %v", err)
		return check
	}
	check.Ok = free >= MinStagingBytes
	check.Detail = fmt.Sprintf("%s free", formatBytes(free))
	return check
}

func remoteDetail(remote config.Remote) string {
	if remote.Host == "" {
		return "enabled but no host configured"
	}
	return fmt.Sprintf("%s@%s:%d%s", remote.User, remote.Host, remote.Port, filepath.ToSlash(remote.Dir))
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
