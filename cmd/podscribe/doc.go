// Command podscribe turns long recordings into timestamped transcript
// documents.
//
// Recordings longer than the configured chunk length are split at pauses,
// each chunk is sent to the configured recognizer, and the chunk timelines
// are merged into one markdown or docx document. Besides one-off
// "transcribe" runs the command can work through a directory ("batch"),
// follow a drop folder ("watch"), list past runs ("history") and report
// whether its external programs and recognizer are ready ("status").
package main
