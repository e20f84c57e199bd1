// Package transcript defines recognizer output and the timeline merger.
//
// Segment times are seconds relative to the audio the recognizer was given.
// Merge realigns per-chunk segments onto one timeline and joins their text.
package transcript
