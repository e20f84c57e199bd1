package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// FFmpeg decodes and exports clips with the ffmpeg binary.
type FFmpeg struct {
	binary        string
	commandRunner func(ctx context.Context, name string, args ...string) error
	pcmSource     func(ctx context.Context, name string, args ...string) (io.ReadCloser, error)
}

// NewFFmpeg returns an FFmpeg using binary (defaults to "ffmpeg").
func NewFFmpeg(binary string) *FFmpeg {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	return &FFmpeg{binary: binary}
}

// WithCommandRunner sets a custom runner for export commands (for testing).
func (f *FFmpeg) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	f.commandRunner = runner
}

// WithPCMSource sets a custom source for decoded PCM (for testing).
func (f *FFmpeg) WithPCMSource(source func(ctx context.Context, name string, args ...string) (io.ReadCloser, error)) {
	f.pcmSource = source
}

// Profile decodes clip to 16 kHz mono PCM and summarizes it. Samples are
// streamed from ffmpeg's stdout and never held in full.
func (f *FFmpeg) Profile(ctx context.Context, clip Clip) (Profile, error) {
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-nostdin",
		"-i", clip.Path,
		"-map", "0:" + strconv.Itoa(clip.StreamIndex),
		"-vn",
		"-sn",
		"-dn",
		"-ac", "1",
		"-ar", strconv.Itoa(AnalysisSampleRate),
		"-f", "s16le",
		"-c:a", "pcm_s16le",
		"-",
	}
	source := f.pcmSource
	if source == nil {
		source = startPCM
	}
	stream, err := source(ctx, f.binary, args...)
	if err != nil {
		return Profile{}, fmt.Errorf("ffmpeg decode %s: %w", clip.Path, err)
	}
	profile, readErr := ReadProfile(stream, AnalysisSampleRate)
	closeErr := stream.Close()
	if readErr != nil {
		return Profile{}, fmt.Errorf("ffmpeg decode %s: %w", clip.Path, readErr)
	}
	if closeErr != nil {
		return Profile{}, fmt.Errorf("ffmpeg decode %s: %w", clip.Path, closeErr)
	}
	if profile.Len() == 0 {
		return Profile{}, fmt.Errorf("%w: %s: decoded no audio", ErrUnreadable, clip.Path)
	}
	return profile, nil
}

// Export writes [start, start+length) of src to dest, encoding by dest's
// extension, and returns a Clip describing the new file.
func (f *FFmpeg) Export(ctx context.Context, src Clip, start, length time.Duration, dest string) (Clip, error) {
	if length <= 0 {
		return Clip{}, fmt.Errorf("export %s: invalid length %s", dest, length)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return Clip{}, fmt.Errorf("export %s: ensure dir: %w", dest, err)
	}

	out := Clip{
		Path:       dest,
		Duration:   length,
		SampleRate: src.SampleRate,
		Channels:   src.Channels,
	}
	out.Format = out.Ext()

	args := BuildExportArgs(src, start, length, dest)
	if f.commandRunner != nil {
		if err := f.commandRunner(ctx, f.binary, args...); err != nil {
			return Clip{}, err
		}
		return out, nil
	}
	cmd := exec.CommandContext(ctx, f.binary, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return Clip{}, fmt.Errorf("ffmpeg export: %w: %s", err, strings.TrimSpace(string(output)))
	}
	return out, nil
}

// BuildExportArgs returns the ffmpeg arguments used by Export.
func BuildExportArgs(src Clip, start, length time.Duration, dest string) []string {
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-nostdin",
		"-ss", formatSeconds(start),
		"-t", formatSeconds(length),
		"-i", src.Path,
		"-map", "0:" + strconv.Itoa(src.StreamIndex),
		"-vn",
		"-sn",
		"-dn",
	}
	args = append(args, codecArgs(strings.TrimPrefix(strings.ToLower(filepath.Ext(dest)), "."))...)
	return append(args, dest)
}

func codecArgs(ext string) []string {
	switch ext {
	case "mp3":
		return []string{"-c:a", "libmp3lame", "-q:a", "2"}
	case "wav":
		return []string{"-c:a", "pcm_s16le"}
	case "flac":
		return []string{"-c:a", "flac"}
	case "m4a":
		return []string{"-c:a", "aac", "-b:a", "160k"}
	case "ogg":
		return []string{"-c:a", "libvorbis", "-q:a", "5"}
	default:
		return nil
	}
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}

type pcmProcess struct {
	io.Reader
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr *bytes.Buffer
}

func startPCM(ctx context.Context, name string, args ...string) (io.ReadCloser, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &pcmProcess{Reader: stdout, cmd: cmd, stdout: stdout, stderr: stderr}, nil
}

// Close closes the pipe and reaps the process.
func (p *pcmProcess) Close() error {
	_ = p.stdout.Close()
	if err := p.cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Errorf("%w: %s", err, strings.TrimSpace(p.stderr.String()))
		}
		return err
	}
	return nil
}
