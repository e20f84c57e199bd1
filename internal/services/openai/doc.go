// Package openai transcribes audio through an OpenAI-compatible
// /audio/transcriptions endpoint.
//
// Requests ask for verbose_json so segment timings come back with the text.
// Rate limits, timeouts, and 5xx responses are retried with exponential
// backoff, honouring Retry-After when the server sends it.
package openai
