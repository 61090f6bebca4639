package bplustree

// Stats counts operations and structural changes since the tree was created.
type Stats struct {
	Inserts int64
	Updates int64 // inserts that overwrote an existing key
	Deletes int64

	LeafSplits     int64
	InternalSplits int64
	RootSplits     int64
	BorrowsLeft    int64
	BorrowsRight   int64
	Merges         int64
	RootCollapses  int64
}

// Splits is the total number of node splits at any level.
func (s Stats) Splits() int64 { return s.LeafSplits + s.InternalSplits }
