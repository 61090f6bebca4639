package main

import (
	"math/rand"

	"github.com/btree-query-bench/ridx/index"
	"github.com/btree-query-bench/ridx/index/rid"
	"github.com/btree-query-bench/ridx/index/value"
)

type WorkloadType string

const (
	OLTP      WorkloadType = "OLTP (90/10)"
	OLAP      WorkloadType = "OLAP (10/90)"
	Reporting WorkloadType = "Reporting (Range)"
	Churn     WorkloadType = "Churn (delete/insert)"
)

// ridFor spreads keys over pages of 100 slots.
func ridFor(k int64) rid.RID {
	return rid.New(uint32(k/100)+1, uint16(k%100))
}

// Load inserts keys 0..n-1 in random order.
func Load(idx index.Index, rng *rand.Rand, n int) error {
	for _, k := range rng.Perm(n) {
		if err := idx.Insert(value.NewInt(int64(k)), ridFor(int64(k))); err != nil {
			return err
		}
	}
	return nil
}

// ExecuteWorkload runs a mixed distribution of ops over keys 0..keySpace-1.
func ExecuteWorkload(idx index.Index, rng *rand.Rand, wType WorkloadType, ops, keySpace int) error {
	for i := 0; i < ops; i++ {
		choice := rng.Intn(100)
		k := int64(rng.Intn(keySpace))
		key := value.NewInt(k)

		switch wType {
		case OLTP:
			if choice < 90 {
				_, _ = idx.SearchSingle(key)
			} else if err := idx.Insert(key, ridFor(k)); err != nil {
				return err
			}
		case OLAP:
			if choice < 10 {
				_, _ = idx.SearchSingle(key)
			} else if err := idx.Insert(key, ridFor(k)); err != nil {
				return err
			}
		case Reporting:
			it, err := idx.Range(key, value.NewInt(k+100))
			if err != nil {
				return err
			}
			for it.Next() {
			}
			err = it.Error()
			it.Close()
			if err != nil {
				return err
			}
		case Churn:
			// Deletes dominate so the tree shrinks through borrows and merges.
			if choice < 70 {
				idx.Delete(key)
			} else if err := idx.Insert(key, ridFor(k)); err != nil {
				return err
			}
		}
	}
	return nil
}
