// Package parsing turns uploaded files into text chunks.
//
// A Chain tries a sequence of Readers, most specific first, and chunks the
// output of the first one that yields text. Page numbers survive chunking.
package parsing
