package main

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"time"

	"github.com/btree-query-bench/ridx/cli"
	"github.com/btree-query-bench/ridx/dbms/heap"
	"github.com/btree-query-bench/ridx/dbms/index/lsm"
	"github.com/btree-query-bench/ridx/index/btree"
	"github.com/btree-query-bench/ridx/index/indexmgr"
	"github.com/btree-query-bench/ridx/index/listindex"
	"github.com/btree-query-bench/ridx/index/metrics"
	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// shellTable names the single table behind the shell.
const shellTable = "records"

// listScale caps the sorted-slice baseline, whose inserts are linear.
const listScale = 20000

func main() {
	cfg, err := ParseConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	log, err := cfg.Logger()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer log.Sync()

	mgr := indexmgr.New(log)
	switch cfg.Mode {
	case ModeBench:
		err = runBench(cfg, log, mgr)
	case ModeShell:
		err = runShell(cfg, log, mgr)
	case ModeDemo:
		err = RunDemo(os.Stdout, log)
	}
	if err == nil {
		err = exportMetrics(cfg, log, mgr)
	}
	if err != nil {
		log.Fatal("run failed", zap.String("mode", cfg.Mode), zap.Error(err))
	}
}

func runBench(cfg Config, log *zap.Logger, mgr *indexmgr.Manager) error {
	f, err := os.Create(cfg.Out)
	if err != nil {
		return errors.Wrap(err, "create results file")
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return err
	}
	suite := NewSuite(w, log, time.Now().UnixNano())

	// --- 1. Sweep B+Tree & B-Tree ---
	for _, d := range cfg.Degrees {
		conf := strconv.Itoa(d)
		t, err := mgr.CreateIndex("bench", "d"+conf, d)
		if err != nil {
			return err
		}
		if err := suite.Run(Target{Name: "BPlusTree", Config: conf, Index: t}, cfg.Scale); err != nil {
			return err
		}
		// google/btree takes a degree of its own: nodes hold 2d-1 items.
		bt := btree.NewBTree((d + 1) / 2)
		if err := suite.Run(Target{Name: "B-Tree", Config: conf, Index: bt}, cfg.Scale); err != nil {
			return err
		}
	}

	// --- 2. Sorted slice baseline ---
	scale := min(cfg.Scale, listScale)
	if err := suite.Run(Target{Name: "List", Config: "-", Index: listindex.NewListIndex(), Scale: scale}, cfg.Scale); err != nil {
		return err
	}

	// --- 3. LSM ---
	l, err := lsm.Open("", lsm.Options{InMemory: true, Logger: log})
	if err != nil {
		return err
	}
	err = suite.Run(Target{Name: "LSM-Tree", Config: "pebble", Index: l}, cfg.Scale)
	if cerr := l.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	if cfg.Plot != "" {
		if err := WritePlot(cfg.Plot, suite.Results()); err != nil {
			return err
		}
	}
	log.Info("benchmark complete", zap.String("out", cfg.Out), zap.Int("rows", len(suite.Results())))
	return nil
}

func runShell(cfg Config, log *zap.Logger, mgr *indexmgr.Manager) error {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return err
	}
	h, err := heap.Open(filepath.Join(cfg.DataDir, shellTable+".heap"), cfg.CacheSize)
	if err != nil {
		return err
	}
	defer h.Close()
	if _, err := mgr.CreateIndex(shellTable, cli.KeyColumn, cfg.Degrees[0]); err != nil {
		return err
	}
	n, err := mgr.Rebuild(shellTable, cli.KeyColumn, h, cli.RecordKey)
	if err != nil {
		return err
	}
	log.Info("shell ready", zap.String("data", cfg.DataDir), zap.Int("records", n))

	c := cli.NewCli(bufio.NewScanner(os.Stdin), os.Stdout, h, mgr, shellTable)
	c.Start()
	return h.Flush()
}

func exportMetrics(cfg Config, log *zap.Logger, mgr *indexmgr.Manager) error {
	if cfg.MetricsOut == "" && cfg.MetricsAddr == "" {
		return nil
	}
	reg := prometheus.NewRegistry()
	if err := reg.Register(metrics.NewCollector(mgr)); err != nil {
		return err
	}
	if cfg.MetricsOut != "" {
		if err := prometheus.WriteToTextfile(cfg.MetricsOut, reg); err != nil {
			return errors.Wrap(err, "write metrics")
		}
	}
	if cfg.MetricsAddr == "" {
		return nil
	}

	srv := &http.Server{Addr: cfg.MetricsAddr, Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{})}
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt)
		<-sig
		_ = srv.Close()
	}()
	log.Info("serving metrics until interrupted", zap.String("addr", cfg.MetricsAddr))
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
