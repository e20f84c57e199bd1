// Package normalize rewrites recognized Chinese text into Simplified script.
//
// Conversion uses the dictionaries embedded in github.com/longbridgeapp/opencc
// (profile t2s by default). Text is brought to Unicode NFC before conversion
// so composed and decomposed input convert the same way.
package normalize
