// Package gspeech transcribes audio with Google Cloud Speech-to-Text.
//
// Each clip is uploaded to a Cloud Storage bucket, recognized with
// LongRunningRecognize and word time offsets, and the object is deleted
// afterwards. Words are grouped into segments of at most ten seconds.
package gspeech
