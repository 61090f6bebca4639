package index

import (
	"github.com/btree-query-bench/ridx/index/rid"
	"github.com/btree-query-bench/ridx/index/value"
)

// Index maps typed keys to record locators. Keys are unique: inserting an
// existing key replaces its RID. Ranges are inclusive on both ends.
type Index interface {
	Insert(key value.Value, r rid.RID) error
	Delete(key value.Value) bool
	Search(key value.Value) []rid.RID
	SearchSingle(key value.Value) (rid.RID, bool)
	RangeSearch(start, end value.Value) ([]rid.RID, error)
	Range(start, end value.Value) (Iterator, error)

	Len() int
	Close() error
}
