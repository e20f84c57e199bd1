package preflight

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"podscribe/internal/config"
	"podscribe/internal/deps"
	"podscribe/internal/normalize"
)

// ErrNotReady is returned by Err when at least one check failed.
var ErrNotReady = errors.New("preflight failed")

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the checks that gate a transcription run: directory
// access, free space and required programs. Remote backends are not
// contacted; CheckRecognizer does that for the status command.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
	}
	if cfg.Paths.MinFreeMiB > 0 {
		results = append(results, CheckFreeSpace("Output free space", cfg.Paths.OutputDir, uint64(cfg.Paths.MinFreeMiB)))
	}
	if cfg.Pipeline.NormalizeScript {
		results = append(results, CheckScriptProfile(cfg.Normalize.Profile))
	}
	for _, status := range CheckSystemDeps(ctx, cfg) {
		if status.Optional {
			continue
		}
		r := Result{Name: status.Name, Passed: status.Available, Detail: status.Path}
		if !status.Available {
			r.Detail = status.Detail
		}
		results = append(results, r)
	}
	return results
}

// CheckScriptProfile loads the OpenCC dictionary used for script
// normalization.
func CheckScriptProfile(profile string) Result {
	conv := normalize.NewOpenCC(profile)
	r := Result{Name: "Script normalization"}
	if err := conv.Check(); err != nil {
		r.Detail = err.Error()
		return r
	}
	r.Passed = true
	r.Detail = "opencc " + conv.Profile()
	return r
}

// Err folds failed results into one error wrapping ErrNotReady.
func Err(results []Result) error {
	var failed []string
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, fmt.Sprintf("%s: %s", r.Name, r.Detail))
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrNotReady, strings.Join(failed, "; "))
}

// CheckSystemDeps lists the external programs for cfg. uvx is required only
// for the whisperx backend.
func CheckSystemDeps(_ context.Context, cfg *config.Config) []deps.Status {
	requirements := []deps.Requirement{
		{
			Name:        "FFmpeg",
			Command:     cfg.Tools.FFmpeg,
			Description: "Required for silence analysis and chunk export",
		},
		{
			Name:        "FFprobe",
			Command:     cfg.Tools.FFprobe,
			Description: "Required for audio inspection",
		},
		{
			Name:        "uvx",
			Command:     cfg.Tools.UVX,
			Description: "Runs WhisperX for local transcription",
			Optional:    cfg.Recognizer.Backend != config.BackendWhisperX,
		},
	}
	return deps.CheckBinaries(requirements)
}
