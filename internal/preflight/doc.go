// Package preflight provides readiness checks for the filesystem, external
// programs and the recognizer backend podscribe depends on.
//
// These checks run in two contexts:
//   - transcribe, batch and watch call RunAll before the first run and refuse
//     to start when a check fails, instead of discovering a full disk after
//     an hour of recognition.
//   - The CLI "podscribe status" command shows every check with its detail.
package preflight
