// Package audio models the recordings the pipeline works on.
//
// A Clip is an immutable reference to an audio file plus the facts ffprobe
// reported about it. The package also owns the ffmpeg plumbing: decoding a
// clip into a per-millisecond energy Profile for silence detection, and
// exporting a time range of a clip into a new file.
//
// Key types:
//   - Clip: path, container format, duration, and stream layout
//   - Profile: streamed energy summary used by the segmentation engine
//   - FFmpeg: decoder and exporter backed by the ffmpeg binary
package audio
