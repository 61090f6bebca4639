package main

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/btree-query-bench/ridx/index/bplustree"
	"github.com/btree-query-bench/ridx/index/btree"
	"github.com/btree-query-bench/ridx/index/listindex"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]string{"-mode=demo", "-degree=3,16", "-n=500"})
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if cfg.Mode != ModeDemo || len(cfg.Degrees) != 2 || cfg.Degrees[1] != 16 || cfg.Scale != 500 {
		t.Fatalf("unexpected config %+v", cfg)
	}

	tests := []struct {
		name string
		args []string
	}{
		{"mode", []string{"-mode=serve"}},
		{"degree", []string{"-degree=2"}},
		{"degree syntax", []string{"-degree=8,x"}},
		{"scale", []string{"-n=10"}},
		{"log level", []string{"-log-level=loud"}},
		{"log format", []string{"-log-format=xml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseConfig(tt.args); err == nil {
				t.Fatalf("expected error for %v", tt.args)
			}
		})
	}

	_, err = ParseConfig([]string{"-degree=2"})
	if !errors.Is(err, bplustree.ErrInvalidDegree) {
		t.Fatalf("expected ErrInvalidDegree, got %v", err)
	}
}

func TestDemo(t *testing.T) {
	var out bytes.Buffer
	if err := RunDemo(&out, zap.NewNop()); err != nil {
		t.Fatalf("demo failed: %v\n%s", err, out.String())
	}
	s := out.String()
	for _, want := range []string{
		"range [3,7]: [(1,3) (2,0) (2,1) (2,2) (2,3)]",
		"search 5 found: false",
		"chain: [Alice] -> [Charlie] -> [David Eve]",
		"type mismatch: true, size 4 -> 4",
		"entries=0 height=1 nodes=1",
	} {
		if !strings.Contains(s, want) {
			t.Fatalf("demo output missing %q:\n%s", want, s)
		}
	}
}

func TestSuite(t *testing.T) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	s := NewSuite(w, zap.NewNop(), 1)

	tree, err := bplustree.New(4)
	if err != nil {
		t.Fatal(err)
	}
	for _, target := range []Target{
		{Name: "BPlusTree", Config: "4", Index: tree},
		{Name: "B-Tree", Config: "4", Index: btree.NewBTree(2)},
		{Name: "List", Config: "-", Index: listindex.NewListIndex()},
	} {
		if err := s.Run(target, 1000); err != nil {
			t.Fatalf("%s: %v", target.Name, err)
		}
	}
	w.Flush()

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	// 5 phases per target.
	if len(rows) != 15 || len(s.Results()) != 15 {
		t.Fatalf("got %d rows, %d results", len(rows), len(s.Results()))
	}
	if !tree.Validate() {
		t.Fatal("tree invalid after suite")
	}

	path := filepath.Join(t.TempDir(), "latency.png")
	if err := WritePlot(path, s.Results()); err != nil {
		t.Fatalf("plot failed: %v", err)
	}
	if fi, err := os.Stat(path); err != nil || fi.Size() == 0 {
		t.Fatalf("plot not written: %v", err)
	}
}
