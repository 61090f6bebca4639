package main

import (
	"flag"
	"strconv"
	"strings"

	"github.com/btree-query-bench/ridx/index/bplustree"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	ModeBench = "bench"
	ModeShell = "shell"
	ModeDemo  = "demo"
)

type Config struct {
	Mode        string
	Degrees     []int
	Scale       int
	Out         string
	Plot        string
	DataDir     string
	CacheSize   int
	LogLevel    string
	LogFormat   string
	MetricsOut  string
	MetricsAddr string
}

// degreeList is a flag.Value for "8,32,128".
type degreeList []int

func (d *degreeList) String() string {
	parts := make([]string, len(*d))
	for i, v := range *d {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

func (d *degreeList) Set(s string) error {
	var out []int
	for _, p := range strings.Split(s, ",") {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return errors.Wrapf(err, "bad degree %q", p)
		}
		out = append(out, v)
	}
	*d = out
	return nil
}

// ParseConfig fills a Config from command line arguments.
func ParseConfig(args []string) (Config, error) {
	cfg := Config{Degrees: []int{8, 32, 128}}
	fs := flag.NewFlagSet("ridx", flag.ContinueOnError)
	fs.StringVar(&cfg.Mode, "mode", ModeBench, "bench, shell or demo")
	fs.Var((*degreeList)(&cfg.Degrees), "degree", "comma separated B+ tree degrees to benchmark")
	fs.IntVar(&cfg.Scale, "n", 100000, "keys loaded per benchmark target")
	fs.StringVar(&cfg.Out, "out", "results.csv", "benchmark CSV output")
	fs.StringVar(&cfg.Plot, "plot", "", "write a latency bar chart PNG to this path")
	fs.StringVar(&cfg.DataDir, "data", "data", "shell data directory")
	fs.IntVar(&cfg.CacheSize, "cache", 64, "shell page cache size in frames")
	fs.StringVar(&cfg.LogLevel, "log-level", "info", "debug, info, warn or error")
	fs.StringVar(&cfg.LogFormat, "log-format", "console", "console or json")
	fs.StringVar(&cfg.MetricsOut, "metrics-out", "", "write final index metrics to this file")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", "", "serve final index metrics on this address")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch c.Mode {
	case ModeBench, ModeShell, ModeDemo:
	default:
		return errors.Newf("unknown mode %q", c.Mode)
	}
	if len(c.Degrees) == 0 {
		return errors.New("no degrees given")
	}
	for _, d := range c.Degrees {
		if d < bplustree.MinDegree {
			return errors.Wrapf(bplustree.ErrInvalidDegree, "degree %d", d)
		}
	}
	if c.Scale < 100 {
		return errors.Newf("scale %d is below 100", c.Scale)
	}
	if c.CacheSize < 1 {
		return errors.Newf("cache size %d is below 1", c.CacheSize)
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrap(err, "log level")
	}
	if c.LogFormat != "console" && c.LogFormat != "json" {
		return errors.Newf("unknown log format %q", c.LogFormat)
	}
	return nil
}

// Logger builds the process logger. JSON gets the production encoder, console
// the development one.
func (c Config) Logger() (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	zc := zap.NewDevelopmentConfig()
	if c.LogFormat == "json" {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)
	return zc.Build()
}
