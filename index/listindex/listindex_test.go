package listindex

import (
	"testing"

	"github.com/btree-query-bench/ridx/index"
	"github.com/btree-query-bench/ridx/index/indextest"
)

func TestConformance(t *testing.T) {
	indextest.Run(t, func(t *testing.T) index.Index { return NewListIndex() })
}
