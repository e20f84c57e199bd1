// Package services holds helpers shared by the recognizer adapters in its
// subpackages.
//
// Key responsibilities:
//   - Error markers plus the Wrap helper, so a failed chunk can be
//     classified (configuration vs transient) when it is recorded.
//   - Decoding JSON returned by language models, tolerating code fences and
//     surrounding prose.
//
// Each subpackage wraps one backend (whisperx, openai, gemini, gspeech) and
// returns transcripts with times relative to the clip it was given.
package services
