// Package pipeline drives one transcription run end to end: probe the source,
// split it into chunks, transcribe every chunk, merge the chunk timelines and
// render the final document.
//
// Each run gets a UUID that is attached to log lines, trace spans and the run
// ledger. Runs are serialized across processes with the run lock. Stage
// failures that abort a run are returned as *StageError; chunk failures are
// not fatal and only reduce what the merged transcript contains. Outcomes are
// published through the configured notifier.
package pipeline
