// Package sanitize provides the text transforms shared by scraped and
// interactively submitted event data.
//
// Every function is total over string input. The empty string stands for an
// absent value and passes through unchanged. Lengths are measured in Unicode
// code points, so Clip never splits a multi-byte sequence.
package sanitize
