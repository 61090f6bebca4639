// Package rid defines the record locator stored in index leaves.
package rid

import (
	"encoding/binary"
	"fmt"

	"github.com/cockroachdb/errors"
)

// EncodedSize is the length of an encoded RID.
const EncodedSize = 6

// RID locates a record by heap page and slot. Indexes never interpret it.
type RID struct {
	PageNum uint32
	SlotNum uint16
}

func New(page uint32, slot uint16) RID { return RID{PageNum: page, SlotNum: slot} }

func (r RID) String() string { return fmt.Sprintf("(%d,%d)", r.PageNum, r.SlotNum) }

// Encode appends r as 4+2 big-endian bytes.
func Encode(dst []byte, r RID) []byte {
	dst = binary.BigEndian.AppendUint32(dst, r.PageNum)
	return binary.BigEndian.AppendUint16(dst, r.SlotNum)
}

func Decode(b []byte) (RID, error) {
	if len(b) != EncodedSize {
		return RID{}, errors.Newf("rid: decode: want %d bytes, got %d", EncodedSize, len(b))
	}
	return RID{
		PageNum: binary.BigEndian.Uint32(b[:4]),
		SlotNum: binary.BigEndian.Uint16(b[4:]),
	}, nil
}
