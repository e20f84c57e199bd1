// Package orchestrator sends chunks to a speech recognizer one at a time and
// collects a tagged result per chunk.
//
// A chunk whose recognition, validation, or normalization fails becomes a
// failure result and processing moves on to the next chunk. Results are
// returned in chunk order so the timeline merger can consume them directly.
package orchestrator
