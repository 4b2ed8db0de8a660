// Package bamsource provides the alignment-record source consulted by read
// placement.
//
// A Source answers two kinds of question: "which records overlap this
// reference window" (served from the BAM index) and "which records have no
// reference at all" (the unmapped tail of a coordinate-sorted BAM).
// FakeSource serves the same queries from an in-memory record list and is
// used by tests throughout the module.
package bamsource
