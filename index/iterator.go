package index

import (
	"github.com/btree-query-bench/ridx/index/rid"
	"github.com/btree-query-bench/ridx/index/value"
)

type Iterator interface {
	Next() bool
	Key() value.Value
	RID() rid.RID
	Error() error
	Close() error
}

// Collect drains it and returns the RIDs in iteration order.
func Collect(it Iterator) ([]rid.RID, error) {
	defer it.Close()
	var out []rid.RID
	for it.Next() {
		out = append(out, it.RID())
	}
	return out, it.Error()
}
