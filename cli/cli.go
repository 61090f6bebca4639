// Package cli is an interactive shell over one table: a heap file of records
// and a B+ tree index on the record key.
package cli

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/btree-query-bench/ridx/dbms/heap"
	"github.com/btree-query-bench/ridx/index/bplustree"
	"github.com/btree-query-bench/ridx/index/indexmgr"
	"github.com/btree-query-bench/ridx/index/rid"
	"github.com/btree-query-bench/ridx/index/snapshot"
	"github.com/btree-query-bench/ridx/index/value"
	"github.com/cockroachdb/errors"
	"github.com/fatih/color"
	"github.com/go-faker/faker/v4"
)

// KeyColumn is the column name of the shell's index.
const KeyColumn = "key"

type Cli struct {
	scanner *bufio.Scanner
	out     io.Writer
	heap    *heap.File
	mgr     *indexmgr.Manager
	table   string

	errc  *color.Color
	okc   *color.Color
	struc *color.Color
}

// NewCli wires a shell to a heap file and the manager holding the
// table.key index, which must already exist.
func NewCli(s *bufio.Scanner, out io.Writer, h *heap.File, m *indexmgr.Manager, table string) *Cli {
	return &Cli{
		scanner: s,
		out:     out,
		heap:    h,
		mgr:     m,
		table:   table,
		errc:    color.New(color.FgRed),
		okc:     color.New(color.FgGreen),
		struc:   color.New(color.FgCyan),
	}
}

// Start runs the read-eval loop until EXIT or end of input.
func (c *Cli) Start() {
	c.printHelp()
	c.printPrompt()
	for c.scanner.Scan() {
		if !c.processInput(c.scanner.Text()) {
			return
		}
		c.printPrompt()
	}
}

func (c *Cli) printHelp() {
	fmt.Fprintln(c.out, `
B+ Tree Index CLI

Available Commands:
  INSERT <key> <payload>  Store a record and index it (replaces an existing key)
  GET <key>               Look the key up in the index and print its record
  DEL <key>               Remove the record and its index entry
  RANGE <lo> <hi>         Print every record with lo <= key <= hi
  SCAN                    Print every index entry in key order
  TREE                    Print the tree level by level
  CHAIN                   Print the leaf chain
  VALIDATE                Check every structural invariant
  STATS                   Print index and page cache counters
  SEED <n>                Insert n random records
  REBUILD                 Rebuild the index from the heap file
  DOT <file>              Write the tree as a Graphviz file
  SAVE <file>             Write an index snapshot
  LOAD <file>             Replace the index with a snapshot
  HELP                    Show this help
  EXIT                    Terminate this session

Keys are integers, floats or strings; quote a number to make it a string.`)
}

func (c *Cli) printPrompt() {
	fmt.Fprint(c.out, "> ")
}

func (c *Cli) tree() *bplustree.Tree {
	t, _ := c.mgr.Index(c.table, KeyColumn)
	return t
}

func (c *Cli) fail(format string, args ...interface{}) {
	c.errc.Fprintf(c.out, format+"\n", args...)
}

// processInput runs one line and reports whether the session continues.
func (c *Cli) processInput(line string) bool {
	fields := strings.Fields(line)
	if len(fields) < 1 {
		return true
	}
	command := strings.ToLower(fields[0])
	args := fields[1:]
	switch command {
	default:
		c.fail("Unknown command \"%s\"", command)
	case "insert", "set":
		c.processInsertCommand(args)
	case "get":
		c.processGetCommand(args)
	case "del":
		c.processDeleteCommand(args)
	case "range":
		c.processRangeCommand(args)
	case "scan":
		c.processScanCommand()
	case "tree":
		var b strings.Builder
		_ = c.tree().Dump(&b)
		c.struc.Fprint(c.out, b.String())
	case "chain":
		c.struc.Fprintln(c.out, c.tree().LeafChain())
	case "validate":
		if err := c.tree().Check(); err != nil {
			c.fail("INVALID: %v", err)
		} else {
			c.okc.Fprintln(c.out, "OK")
		}
	case "stats":
		c.processStatsCommand()
	case "seed":
		c.processSeedCommand(args)
	case "rebuild":
		n, err := c.mgr.Rebuild(c.table, KeyColumn, c.heap, RecordKey)
		if err != nil {
			c.fail("%v", err)
			return true
		}
		c.okc.Fprintf(c.out, "Indexed %d records.\n", n)
	case "dot":
		c.withFile(args, "DOT", c.tree().WriteDOTFile)
	case "save":
		c.withFile(args, "SAVE", func(path string) error { return snapshot.Save(path, c.tree()) })
	case "load":
		c.withFile(args, "LOAD", c.load)
	case "help":
		c.printHelp()
	case "exit", "quit":
		return false
	}
	return true
}

func (c *Cli) processInsertCommand(args []string) {
	if len(args) < 2 {
		c.fail("Usage: INSERT <key> <payload>")
		return
	}
	key := value.ParseAuto(args[0])
	r, err := c.insert(key, []byte(strings.Join(args[1:], " ")))
	if err != nil {
		c.fail("%v", err)
		return
	}
	c.okc.Fprintf(c.out, "OK %s\n", r)
}

func (c *Cli) insert(key value.Value, payload []byte) (rid.RID, error) {
	t := c.tree()
	if t.KeyKind() != value.KindInvalid && key.Kind() != t.KeyKind() {
		return rid.RID{}, errors.Wrapf(value.ErrTypeMismatch, "key %s is %s, index holds %s keys", key, key.Kind(), t.KeyKind())
	}
	old, replace := t.SearchSingle(key)
	r, err := c.heap.Insert(EncodeRecord(key, payload))
	if err != nil {
		return rid.RID{}, err
	}
	if err := t.Insert(key, r); err != nil {
		_ = c.heap.Delete(r)
		return rid.RID{}, err
	}
	if replace {
		_ = c.heap.Delete(old)
	}
	return r, nil
}

func (c *Cli) processGetCommand(args []string) {
	if len(args) != 1 {
		c.fail("Usage: GET <key>")
		return
	}
	r, ok := c.tree().SearchSingle(value.ParseAuto(args[0]))
	if !ok {
		c.fail("Key not found.")
		return
	}
	c.printRecord(r)
}

func (c *Cli) processDeleteCommand(args []string) {
	if len(args) != 1 {
		c.fail("Usage: DEL <key>")
		return
	}
	key := value.ParseAuto(args[0])
	r, ok := c.tree().SearchSingle(key)
	if !ok || !c.tree().Delete(key) {
		c.fail("Key not found.")
		return
	}
	if err := c.heap.Delete(r); err != nil {
		c.fail("%v", err)
		return
	}
	c.okc.Fprintln(c.out, "OK")
}

func (c *Cli) processRangeCommand(args []string) {
	if len(args) != 2 {
		c.fail("Usage: RANGE <lo> <hi>")
		return
	}
	rids, err := c.tree().RangeSearch(value.ParseAuto(args[0]), value.ParseAuto(args[1]))
	if err != nil {
		c.fail("%v", err)
		return
	}
	for _, r := range rids {
		c.printRecord(r)
	}
	fmt.Fprintf(c.out, "(%d rows)\n", len(rids))
}

func (c *Cli) processScanCommand() {
	it := c.tree().Scan()
	defer it.Close()
	n := 0
	for it.Next() {
		fmt.Fprintf(c.out, "%s -> %s\n", it.Key(), it.RID())
		n++
	}
	fmt.Fprintf(c.out, "(%d entries)\n", n)
}

func (c *Cli) printRecord(r rid.RID) {
	rec, err := c.heap.Get(r)
	if err != nil {
		c.fail("%s: %v", r, err)
		return
	}
	k, payload, err := DecodeRecord(rec)
	if err != nil {
		c.fail("%s: %v", r, err)
		return
	}
	fmt.Fprintf(c.out, "%s %s %s\n", r, k, payload)
}

func (c *Cli) processStatsCommand() {
	t := c.tree()
	s := t.Stats()
	cs := c.heap.CacheStats()
	c.struc.Fprintf(c.out, "entries=%d height=%d nodes=%d degree=%d kind=%s\n",
		t.Len(), t.Height(), t.NodeCount(), t.Degree(), t.KeyKind())
	fmt.Fprintf(c.out, "inserts=%d updates=%d deletes=%d splits=%d root_splits=%d\n",
		s.Inserts, s.Updates, s.Deletes, s.Splits(), s.RootSplits)
	fmt.Fprintf(c.out, "borrows_left=%d borrows_right=%d merges=%d root_collapses=%d\n",
		s.BorrowsLeft, s.BorrowsRight, s.Merges, s.RootCollapses)
	fmt.Fprintf(c.out, "heap records=%d cache hits=%d misses=%d evictions=%d\n",
		c.heap.Len(), cs.Hits, cs.Misses, cs.Evictions)
}

func (c *Cli) processSeedCommand(args []string) {
	if len(args) != 1 {
		c.fail("Usage: SEED <n>")
		return
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 0 {
		c.fail("Usage: SEED <n>")
		return
	}
	kind := c.tree().KeyKind()
	for i := 0; i < n; i++ {
		if _, err := c.insert(SeedKey(kind), []byte(faker.Sentence())); err != nil {
			c.fail("%v", err)
			return
		}
	}
	c.okc.Fprintf(c.out, "Seeded %d records.\n", n)
}

// SeedKey returns a random key of the given kind; strings for an index that
// has no kind yet.
func SeedKey(kind value.Kind) value.Value {
	switch kind {
	case value.KindInt:
		return value.NewInt(faker.UnixTime())
	case value.KindFloat:
		return value.NewFloat(float64(faker.UnixTime()) / 1000)
	default:
		return value.NewString(faker.Word() + faker.Word())
	}
}

func (c *Cli) load(path string) error {
	t, err := snapshot.Load(path)
	if err != nil {
		return err
	}
	if err := c.mgr.DropIndex(c.table, KeyColumn); err != nil {
		return err
	}
	return c.mgr.Attach(c.table, KeyColumn, t)
}

func (c *Cli) withFile(args []string, cmd string, fn func(path string) error) {
	if len(args) != 1 {
		c.fail("Usage: %s <file>", cmd)
		return
	}
	if err := fn(args[0]); err != nil {
		c.fail("%v", err)
		return
	}
	c.okc.Fprintln(c.out, "OK")
}
