package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"podscribe/internal/config"
	"podscribe/internal/services/openai"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckFreeSpace verifies that the filesystem holding path has at least
// minMiB mebibytes available to unprivileged users.
func CheckFreeSpace(name, path string, minMiB uint64) Result {
	free, err := FreeMiB(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	if free < minMiB {
		return Result{Name: name, Detail: fmt.Sprintf("%d MiB free, need %d MiB", free, minMiB)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%d MiB free", free)}
}

// FreeMiB returns the space available to unprivileged users on path's filesystem.
func FreeMiB(path string) (uint64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, fmt.Errorf("statfs: %w", err)
	}
	return st.Bavail * uint64(st.Bsize) / (1 << 20), nil
}

// CheckRecognizer verifies the configured backend as far as possible without
// transcribing: the OpenAI-compatible API is pinged once, the other
// backends are checked for credentials and local prerequisites.
func CheckRecognizer(ctx context.Context, cfg *config.Config) Result {
	r := cfg.Recognizer
	name := "Recognizer (" + r.Backend + ")"
	switch r.Backend {
	case config.BackendWhisperX:
		status := CheckSystemDeps(ctx, cfg)
		for _, s := range status {
			if s.Name == "uvx" && !s.Available {
				return Result{Name: name, Detail: s.Detail}
			}
		}
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("model %s via uvx", r.WhisperX.Model)}
	case config.BackendOpenAI:
		return CheckOpenAI(ctx, name, r.OpenAI)
	case config.BackendGemini:
		if strings.TrimSpace(r.Gemini.APIKey) == "" {
			return Result{Name: name, Detail: "API key missing"}
		}
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("model %s (key set)", r.Gemini.Model)}
	case config.BackendGoogleSpeech:
		if strings.TrimSpace(r.GoogleSpeech.Bucket) == "" {
			return Result{Name: name, Detail: "bucket missing"}
		}
		if path := strings.TrimSpace(r.GoogleSpeech.CredentialsFile); path != "" {
			if _, err := os.Stat(path); err != nil {
				return Result{Name: name, Detail: fmt.Sprintf("credentials file: %v", err)}
			}
		}
		return Result{Name: name, Passed: true, Detail: "bucket gs://" + r.GoogleSpeech.Bucket}
	default:
		return Result{Name: name, Detail: "unsupported backend"}
	}
}

// CheckOpenAI verifies that the API is reachable and the key is valid.
// It uses a 30-second timeout and a single attempt (no retries).
func CheckOpenAI(ctx context.Context, name string, cfg config.OpenAI) Result {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return Result{Name: name, Detail: "API key missing"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client := openai.NewClient(openai.Config{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
	}, openai.WithRetryMaxAttempts(1))
	defer client.Close()

	if err := client.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeAPIError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "API reachable"}
}

// summarizeAPIError produces a human-readable summary for health check failures.
func summarizeAPIError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (API unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (API unreachable)"
	}
	if openai.IsAuthError(err) {
		return "auth failed (invalid API key)"
	}
	return err.Error()
}
