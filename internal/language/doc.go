// Package language normalizes the language hints passed to recognizers and
// reported back by them.
//
// Inputs may be ISO 639-1 codes, ISO 639-2 codes, English words ("chinese"
// as returned by some APIs), or BCP 47 tags such as zh-TW. Everything is
// folded to the ISO 639-1 base code used by the rest of the pipeline.
package language
