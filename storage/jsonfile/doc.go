// Package jsonfile provides a PhaseStore backed by one JSON file.
//
// The file holds the whole document-type collection. Writers serialize on a
// process mutex and an advisory lock, and replace the file by rename so a
// reader never observes a partial write.
package jsonfile
