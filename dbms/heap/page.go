package heap

import (
	"encoding/binary"

	"github.com/btree-query-bench/ridx/dbms/pager"
)

// Slotted page layout:
//
//	[0-1]   2 bytes  numSlots
//	[2-3]   2 bytes  cellContentStart (top of record area, grows down from page end)
//	[4+]    slot array, 4 bytes per slot: record offset, record length
//	        ...free space...
//	        record area
//
// A slot whose length is tombstone marks a deleted record. Slots are never
// reused, so a RID stays dead once deleted.
const (
	OffNumSlots    = 0
	OffCellContent = 2
	OffSlots       = 4

	SlotSize  = 4
	tombstone = 0xFFFF

	// MaxRecordSize is the largest record that fits on an empty page.
	MaxRecordSize = pager.PageSize - OffSlots - SlotSize
)

func initPage(p *pager.Page) {
	for i := range p {
		p[i] = 0
	}
	setNumSlots(p, 0)
	setCellContent(p, pager.PageSize)
}

func numSlots(p *pager.Page) int {
	return int(binary.LittleEndian.Uint16(p[OffNumSlots : OffNumSlots+2]))
}

func setNumSlots(p *pager.Page, n int) {
	binary.LittleEndian.PutUint16(p[OffNumSlots:OffNumSlots+2], uint16(n))
}

func cellContent(p *pager.Page) int {
	return int(binary.LittleEndian.Uint16(p[OffCellContent : OffCellContent+2]))
}

func setCellContent(p *pager.Page, v int) {
	binary.LittleEndian.PutUint16(p[OffCellContent:OffCellContent+2], uint16(v))
}

func slot(p *pager.Page, i int) (off, length int) {
	o := OffSlots + i*SlotSize
	return int(binary.LittleEndian.Uint16(p[o : o+2])), int(binary.LittleEndian.Uint16(p[o+2 : o+4]))
}

func setSlot(p *pager.Page, i, off, length int) {
	o := OffSlots + i*SlotSize
	binary.LittleEndian.PutUint16(p[o:o+2], uint16(off))
	binary.LittleEndian.PutUint16(p[o+2:o+4], uint16(length))
}

// freeSpace is the room left for one more slot plus its record.
func freeSpace(p *pager.Page) int {
	return cellContent(p) - (OffSlots + (numSlots(p)+1)*SlotSize)
}

// appendRecord stores rec in a new slot and returns the slot number. The
// caller checks freeSpace first.
func appendRecord(p *pager.Page, rec []byte) int {
	top := cellContent(p) - len(rec)
	copy(p[top:], rec)
	setCellContent(p, top)
	n := numSlots(p)
	setSlot(p, n, top, len(rec))
	setNumSlots(p, n+1)
	return n
}
