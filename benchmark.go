package main

import (
	"encoding/csv"
	"math/rand"
	"runtime"
	"strconv"
	"time"

	"github.com/btree-query-bench/ridx/index"
	"github.com/btree-query-bench/ridx/index/bplustree"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// BenchResult is one CSV row. Objects tracks GC pressure.
type BenchResult struct {
	Name      string
	Config    string
	Operation string
	LatencyNs int64
	MemMB     uint64
	Objects   uint64
}

type MemoryStats struct {
	AllocMB      uint64
	TotalAllocMB uint64
	HeapObjects  uint64
}

// GetDetailedMem forces a GC so only live data is measured.
func GetDetailedMem() MemoryStats {
	var m runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&m)
	return MemoryStats{
		AllocMB:      m.Alloc / 1024 / 1024,
		TotalAllocMB: m.TotalAlloc / 1024 / 1024,
		HeapObjects:  m.HeapObjects,
	}
}

var csvHeader = []string{"Structure", "Config", "TestType", "LatencyNs", "MemMB", "HeapObjects"}

func Record(w *csv.Writer, res BenchResult) error {
	return w.Write([]string{
		res.Name,
		res.Config,
		res.Operation,
		strconv.FormatInt(res.LatencyNs, 10),
		strconv.FormatUint(res.MemMB, 10),
		strconv.FormatUint(res.Objects, 10),
	})
}

// Target is one index under benchmark.
type Target struct {
	Name   string
	Config string
	Index  index.Index
	// Scale overrides the run's key count when non-zero.
	Scale int
}

// Suite runs every workload against a target and records a row per phase.
type Suite struct {
	w       *csv.Writer
	log     *zap.Logger
	seed    int64
	results []BenchResult
}

func NewSuite(w *csv.Writer, log *zap.Logger, seed int64) *Suite {
	return &Suite{w: w, log: log, seed: seed}
}

func (s *Suite) Results() []BenchResult { return s.results }

func (s *Suite) record(res BenchResult) error {
	s.results = append(s.results, res)
	return Record(s.w, res)
}

func (s *Suite) Run(t Target, n int) error {
	if t.Scale > 0 {
		n = t.Scale
	}
	s.log.Info("benchmarking", zap.String("structure", t.Name), zap.String("config", t.Config), zap.Int("keys", n))
	rng := rand.New(rand.NewSource(s.seed))
	i := t.Index

	// 1. Pure Insert (Initial Load)
	start := time.Now()
	if err := Load(i, rng, n); err != nil {
		return errors.Wrapf(err, "%s/%s load", t.Name, t.Config)
	}
	insertLatency := time.Since(start).Nanoseconds() / int64(n)

	stats := GetDetailedMem()
	if err := s.record(BenchResult{t.Name, t.Config, "Footprint_SteadyState", insertLatency, stats.AllocMB, stats.HeapObjects}); err != nil {
		return err
	}

	phases := []struct {
		op    string
		wType WorkloadType
		ops   int
	}{
		{"Workload_OLTP", OLTP, n / 2},
		{"Workload_OLAP", OLAP, n / 2},
		{"Workload_Range", Reporting, 100},
		{"Workload_Churn", Churn, n / 2},
	}
	for _, p := range phases {
		start = time.Now()
		if err := ExecuteWorkload(i, rng, p.wType, p.ops, n); err != nil {
			return errors.Wrapf(err, "%s/%s %s", t.Name, t.Config, p.op)
		}
		lat := time.Since(start).Nanoseconds() / int64(p.ops)
		if err := s.record(BenchResult{t.Name, t.Config, p.op, lat, GetDetailedMem().AllocMB, 0}); err != nil {
			return err
		}
	}

	if bt, ok := i.(*bplustree.Tree); ok {
		if err := bt.Check(); err != nil {
			return errors.Wrapf(err, "%s/%s after churn", t.Name, t.Config)
		}
		s.log.Info("tree valid after churn",
			zap.String("config", t.Config), zap.Int("entries", bt.Len()), zap.Int("height", bt.Height()))
	}
	return nil
}

// WritePlot draws one bar group per operation, one bar per target.
func WritePlot(path string, results []BenchResult) error {
	var ops []string
	opIdx := map[string]int{}
	var targets []string
	byTarget := map[string]plotter.Values{}
	for _, r := range results {
		if _, ok := opIdx[r.Operation]; !ok {
			opIdx[r.Operation] = len(ops)
			ops = append(ops, r.Operation)
		}
		name := r.Name + " " + r.Config
		if _, ok := byTarget[name]; !ok {
			targets = append(targets, name)
		}
		vals := byTarget[name]
		for len(vals) <= opIdx[r.Operation] {
			vals = append(vals, 0)
		}
		vals[opIdx[r.Operation]] = float64(r.LatencyNs)
		byTarget[name] = vals
	}

	p := plot.New()
	p.Title.Text = "Index latency"
	p.Y.Label.Text = "ns/op"
	p.Legend.Top = true

	w := vg.Points(8)
	for ti, name := range targets {
		vals := byTarget[name]
		for len(vals) < len(ops) {
			vals = append(vals, 0)
		}
		bars, err := plotter.NewBarChart(vals, w)
		if err != nil {
			return errors.Wrapf(err, "plot %s", name)
		}
		bars.LineStyle.Width = vg.Length(0)
		bars.Color = plotutil.Color(ti)
		bars.Offset = w * vg.Length(ti-len(targets)/2)
		p.Add(bars)
		p.Legend.Add(name, bars)
	}
	p.NominalX(ops...)
	return p.Save(vg.Length(len(ops))*3*vg.Inch, 5*vg.Inch, path)
}
