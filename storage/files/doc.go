// Package files implements the filesystem-backed stores: uploaded originals
// in a flat directory and per-document extraction artifacts.
//
// Every JSON artifact is written with WriteJSONAtomic (temp file in the same
// directory, then rename), so a reader never sees a half-written file.
package files
