// Package segment splits long recordings into bounded chunks.
//
// Recordings no longer than the configured maximum pass through untouched.
// Longer ones are cut at pauses: silent windows are located on the clip's
// energy profile, the audible ranges between them are padded and exported as
// separate files. When the pause-based plan is unusable (no audible ranges,
// or a range still longer than the maximum) the engine falls back to
// consecutive fixed-length windows.
//
// The planning functions are pure and operate on audio.Profile so they can be
// exercised without ffmpeg; Engine wires them to a decoder and exporter.
package segment
