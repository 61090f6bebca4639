// Package snapshot saves a B+ tree's pairs to a stream and loads them back.
//
// Stream layout, snappy-framed as a whole:
//
//	"RIDX" magic, 1 byte version
//	uvarint degree, 1 byte key kind, uvarint pair count
//	per pair in key order: uvarint key length, encoded key, 6 byte RID
//
// Loading replays the pairs through ordinary inserts, so the loaded tree's
// shape depends only on the degree and the key order.
package snapshot

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"

	"github.com/btree-query-bench/ridx/index/bplustree"
	"github.com/btree-query-bench/ridx/index/rid"
	"github.com/btree-query-bench/ridx/index/value"
	"github.com/cockroachdb/errors"
	"github.com/golang/snappy"
)

const version = 1

var magic = [4]byte{'R', 'I', 'D', 'X'}

var ErrCorrupt = errors.New("snapshot: corrupt stream")

// Write streams every pair of t to w.
func Write(w io.Writer, t *bplustree.Tree) error {
	sw := snappy.NewBufferedWriter(w)
	var hdr []byte
	hdr = append(hdr, magic[:]...)
	hdr = append(hdr, version)
	hdr = binary.AppendUvarint(hdr, uint64(t.Degree()))
	hdr = append(hdr, byte(t.KeyKind()))
	hdr = binary.AppendUvarint(hdr, uint64(t.Len()))
	if _, err := sw.Write(hdr); err != nil {
		return errors.Wrap(err, "snapshot: write header")
	}

	var buf []byte
	var werr error
	t.Ascend(func(k value.Value, r rid.RID) bool {
		key := value.Encode(nil, k)
		buf = binary.AppendUvarint(buf[:0], uint64(len(key)))
		buf = append(buf, key...)
		buf = rid.Encode(buf, r)
		_, werr = sw.Write(buf)
		return werr == nil
	})
	if werr != nil {
		return errors.Wrap(werr, "snapshot: write pair")
	}
	return errors.Wrap(sw.Close(), "snapshot: flush")
}

// Read rebuilds a tree from a stream produced by Write. opts are passed to
// bplustree.New after the stored degree and key kind.
func Read(r io.Reader, opts ...bplustree.Option) (*bplustree.Tree, error) {
	br := bufio.NewReader(snappy.NewReader(r))

	var hdr [5]byte
	if _, err := io.ReadFull(br, hdr[:]); err != nil {
		return nil, corrupt(err, "header")
	}
	if [4]byte(hdr[:4]) != magic {
		return nil, errors.Wrap(ErrCorrupt, "bad magic")
	}
	if hdr[4] != version {
		return nil, errors.Wrapf(ErrCorrupt, "unsupported version %d", hdr[4])
	}
	degree, err := binary.ReadUvarint(br)
	if err != nil {
		return nil, corrupt(err, "degree")
	}
	kb, err := br.ReadByte()
	if err != nil {
		return nil, corrupt(err, "key kind")
	}
	if value.Kind(kb) > value.KindString {
		return nil, errors.Wrapf(ErrCorrupt, "unknown key kind %d", kb)
	}
	count, err := binary.ReadUvarint(br)
	if err != nil {
		return nil, corrupt(err, "count")
	}

	opts = append([]bplustree.Option{bplustree.WithKeyKind(value.Kind(kb))}, opts...)
	t, err := bplustree.New(int(degree), opts...)
	if err != nil {
		return nil, errors.Mark(err, ErrCorrupt)
	}

	var prev value.Value
	ridBuf := make([]byte, rid.EncodedSize)
	for i := uint64(0); i < count; i++ {
		n, err := binary.ReadUvarint(br)
		if err != nil {
			return nil, corrupt(err, "key length")
		}
		if n > 1<<20 {
			return nil, errors.Wrapf(ErrCorrupt, "key length %d", n)
		}
		keyBuf := make([]byte, n)
		if _, err := io.ReadFull(br, keyBuf); err != nil {
			return nil, corrupt(err, "key")
		}
		k, err := value.Decode(keyBuf)
		if err != nil {
			return nil, errors.Mark(err, ErrCorrupt)
		}
		if _, err := io.ReadFull(br, ridBuf); err != nil {
			return nil, corrupt(err, "rid")
		}
		rr, _ := rid.Decode(ridBuf)
		if i > 0 {
			if c, err := value.Compare(prev, k); err != nil || c >= 0 {
				return nil, errors.Wrapf(ErrCorrupt, "pair %d out of order", i)
			}
		}
		if err := t.Insert(k, rr); err != nil {
			return nil, errors.Mark(err, ErrCorrupt)
		}
		prev = k
	}
	if _, err := br.ReadByte(); err != io.EOF {
		return nil, errors.Wrap(ErrCorrupt, "trailing data")
	}
	if err := t.Check(); err != nil {
		return nil, errors.Mark(err, ErrCorrupt)
	}
	return t, nil
}

func corrupt(err error, what string) error {
	return errors.Mark(errors.Wrapf(err, "snapshot: read %s", what), ErrCorrupt)
}

// Save writes t to a new file at path.
func Save(path string, t *bplustree.Tree) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "snapshot: save")
	}
	if err := Write(f, t); err != nil {
		f.Close()
		return err
	}
	return errors.Wrap(f.Close(), "snapshot: save")
}

// Load reads a tree from the file at path.
func Load(path string, opts ...bplustree.Option) (*bplustree.Tree, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "snapshot: load")
	}
	defer f.Close()
	return Read(f, opts...)
}
