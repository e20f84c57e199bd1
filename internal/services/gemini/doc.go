// Package gemini transcribes audio with a Gemini model.
//
// The clip is sent inline with a prompt that asks for JSON segments. The
// reply is decoded leniently since models sometimes wrap JSON in code
// fences or write times as "MM:SS".
package gemini
