package builtin

import (
	"encoding/binary"

	"github.com/zeebo/xxh3"

	"github.com/schrodingerkitkat/csv-processor/pkg/records"
)

// DeDup removes duplicate rows, keeping the first occurrence.
//
// Two rows are duplicates when every cell is equal, with missing cells equal
// to each other and distinct from "". Rows are bucketed by a 128-bit xxh3
// hash and then compared cell by cell, so hash collisions never merge
// distinct rows. Survivors keep their relative input order.
type DeDup struct{}

// Remove returns the deduplicated table and the number of rows dropped.
func (DeDup) Remove(in *records.Table) (*records.Table, int) {
	if in.Len() == 0 {
		return in.Clone(), 0
	}

	width := len(in.Columns)
	keep := make([]bool, len(in.Rows))
	buckets := make(map[xxh3.Uint128][]int, len(in.Rows))
	var buf []byte

	dropped := 0
	for i, row := range in.Rows {
		buf = appendKey(buf[:0], row, width)
		h := xxh3.Hash128(buf)
		if seen(in.Rows, buckets[h], row, width) {
			dropped++
			continue
		}
		buckets[h] = append(buckets[h], i)
		keep[i] = true
	}

	out := in.Filter(func(i int, _ records.Row) bool { return keep[i] })
	return out, dropped
}

// appendKey encodes the row cells: a tag byte (0 missing, 1 present),
// then for present cells a length prefix and the text.
func appendKey(buf []byte, r records.Row, width int) []byte {
	for c := 0; c < width; c++ {
		s, ok := r.String(c)
		if !ok {
			buf = append(buf, 0)
			continue
		}
		buf = append(buf, 1)
		buf = binary.AppendUvarint(buf, uint64(len(s)))
		buf = append(buf, s...)
	}
	return buf
}

func seen(rows []records.Row, bucket []int, row records.Row, width int) bool {
	for _, j := range bucket {
		if sameRow(row, rows[j], width) {
			return true
		}
	}
	return false
}

func sameRow(a, b records.Row, width int) bool {
	for c := 0; c < width; c++ {
		as, aok := a.String(c)
		bs, bok := b.String(c)
		if aok != bok || as != bs {
			return false
		}
	}
	return true
}
