// Package metrics exports the shape and activity of managed indexes to
// Prometheus.
package metrics

import (
	"github.com/btree-query-bench/ridx/index/bplustree"
	"github.com/btree-query-bench/ridx/index/indexmgr"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ridx"

// Collector reads every index of a Manager at scrape time.
type Collector struct {
	m *indexmgr.Manager

	entries    *prometheus.Desc
	height     *prometheus.Desc
	nodes      *prometheus.Desc
	ops        *prometheus.Desc
	splits     *prometheus.Desc
	borrows    *prometheus.Desc
	merges     *prometheus.Desc
	rootSplits *prometheus.Desc
	collapses  *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

func NewCollector(m *indexmgr.Manager) *Collector {
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "index", name),
			help, append([]string{"index"}, labels...), nil)
	}
	return &Collector{
		m:          m,
		entries:    desc("entries", "Key/RID pairs stored in the index."),
		height:     desc("height", "Levels from root to leaves."),
		nodes:      desc("nodes", "Live leaf and internal nodes."),
		ops:        desc("operations_total", "Mutations applied to the index.", "op"),
		splits:     desc("splits_total", "Node splits.", "level"),
		borrows:    desc("borrows_total", "Keys borrowed from a sibling during delete.", "direction"),
		merges:     desc("merges_total", "Sibling merges during delete."),
		rootSplits: desc("root_splits_total", "Splits that grew the tree by one level."),
		collapses:  desc("root_collapses_total", "Root collapses that shrank the tree by one level."),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.entries, c.height, c.nodes, c.ops, c.splits,
		c.borrows, c.merges, c.rootSplits, c.collapses,
	} {
		ch <- d
	}
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.m.Each(func(name string, t *bplustree.Tree) {
		s := t.Stats()
		gauge := func(d *prometheus.Desc, v int, labels ...string) {
			ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, float64(v), append([]string{name}, labels...)...)
		}
		counter := func(d *prometheus.Desc, v int64, labels ...string) {
			ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), append([]string{name}, labels...)...)
		}
		gauge(c.entries, t.Len())
		gauge(c.height, t.Height())
		gauge(c.nodes, t.NodeCount())
		counter(c.ops, s.Inserts, "insert")
		counter(c.ops, s.Updates, "update")
		counter(c.ops, s.Deletes, "delete")
		counter(c.splits, s.LeafSplits, "leaf")
		counter(c.splits, s.InternalSplits, "internal")
		counter(c.borrows, s.BorrowsLeft, "left")
		counter(c.borrows, s.BorrowsRight, "right")
		counter(c.merges, s.Merges)
		counter(c.rootSplits, s.RootSplits)
		counter(c.collapses, s.RootCollapses)
	})
}
