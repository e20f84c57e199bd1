// Package ffprobe runs ffprobe and decodes the JSON it prints.
//
// Only the fields the audio pipeline needs are mapped: container duration and
// format name, plus per-stream codec, sample rate, and channel count.
package ffprobe
