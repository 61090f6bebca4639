// Package bplustree implements an in-memory B+ tree index from typed keys
// to record locators.
//
// A tree of degree D keeps at most D-1 keys per node and, apart from the
// root, at least (D-1)/2. Internal nodes route lookups: child i holds keys
// below separator i and child i+1 holds keys at or above it. All pairs live
// in the leaves, which are chained left to right for range scans.
//
// Inserts split overflowing nodes bottom-up, growing a new root when the old
// one splits. Deletes repair underflow by borrowing from the left sibling,
// then the right one, and merge only when neither can spare a key. An
// internal root left without keys is replaced by its only child.
//
// The key kind is fixed by the first successful insert and stays fixed even
// if the tree is later emptied. A Tree is not safe for concurrent use.
package bplustree
