// Package whisperx runs the WhisperX speech recognizer through uvx.
//
// Each call transcribes one audio file, reads the JSON result WhisperX
// writes next to it, and returns the segments with file-relative times.
// Model, CUDA, and VAD options come from Config.
package whisperx
