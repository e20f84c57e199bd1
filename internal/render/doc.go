// Package render writes a transcript as a human-readable document.
//
// The markdown layout has four parts: a title, an information block with the
// language and duration, the full text, and the timestamped segment list.
// Output is deterministic for a given transcript. The same layout can be
// written as a Word document.
package render
