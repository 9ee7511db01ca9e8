// Package store holds the registry state of one watched directory: known
// package descriptors, auxiliary file locations, and the listeners that are
// told about changes to either.
//
// Memory is the bundled implementation. The repository core only depends on
// the Store interface, so alternative backends can be swapped in.
package store
