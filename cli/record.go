package cli

import (
	"encoding/binary"

	"github.com/btree-query-bench/ridx/index/value"
	"github.com/cockroachdb/errors"
)

// Shell records are: uvarint key length, encoded key, payload.

func EncodeRecord(key value.Value, payload []byte) []byte {
	k := value.Encode(nil, key)
	rec := binary.AppendUvarint(nil, uint64(len(k)))
	rec = append(rec, k...)
	return append(rec, payload...)
}

func DecodeRecord(rec []byte) (value.Value, []byte, error) {
	n, sz := binary.Uvarint(rec)
	if sz <= 0 || uint64(len(rec)-sz) < n {
		return value.Value{}, nil, errors.New("cli: malformed record")
	}
	k, err := value.Decode(rec[sz : sz+int(n)])
	if err != nil {
		return value.Value{}, nil, err
	}
	return k, rec[sz+int(n):], nil
}

// RecordKey is the indexmgr.KeyFunc for shell records.
func RecordKey(rec []byte) (value.Value, error) {
	k, _, err := DecodeRecord(rec)
	return k, err
}
