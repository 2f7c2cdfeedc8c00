package ngramstore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"unsafe"

	"github.com/cespare/xxhash/v2"
	"github.com/edsrzf/mmap-go"
	"github.com/tamirms/ngramstore/bitarray"
	ngerrors "github.com/tamirms/ngramstore/errors"
	"github.com/tamirms/ngramstore/rank"
)

// nativeLittleEndian reports whether mapped words can be used in place.
var nativeLittleEndian = func() bool {
	probe := uint16(1)
	return *(*byte)(unsafe.Pointer(&probe)) == 1
}()

type tablesDecoder[V any] func([]byte) (rank.Quantizer[V], error)

// OpenProbBackoff opens a file of probability and backoff values written
// by WriteFile.
func OpenProbBackoff(path string) (*Values[rank.ProbBackoff], error) {
	return openFile(path, rank.KindProbBackoff, func(b []byte) (rank.Quantizer[rank.ProbBackoff], error) {
		t, err := rank.UnmarshalProbBackoffTables(b)
		if err != nil {
			return nil, err
		}
		return t, nil
	})
}

// OpenCounts opens a file of count values written by WriteFile.
func OpenCounts(path string) (*Values[uint64], error) {
	return openFile(path, rank.KindCount, func(b []byte) (rank.Quantizer[uint64], error) {
		t, err := rank.UnmarshalCountTables(b)
		if err != nil {
			return nil, err
		}
		return t, nil
	})
}

// openFile memory-maps path read-only and closes the file descriptor. The
// records are served from the mapping until Close.
func openFile[V any](path string, kind rank.Kind, decode tablesDecoder[V]) (*Values[V], error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open values file: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat values file: %w", err)
	}
	if stat.Size() < minFileSize {
		return nil, ngerrors.ErrTruncatedFile
	}

	mm, err := mmap.Map(file, mmap.RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("mmap values file: %w", err)
	}
	// Scoring touches records in no particular order.
	adviseRandom(mm)

	v := &Values[V]{mmap: mm, data: []byte(mm)}
	if err := v.initFromData(kind, decode); err != nil {
		return nil, errors.Join(err, v.Close())
	}
	return v, nil
}

// initFromData parses the header, rank tables and order sections from
// v.data. The footer is only read by Verify.
func (v *Values[V]) initFromData(kind rank.Kind, decode tablesDecoder[V]) error {
	data := v.data
	hdr, err := decodeHeader(data)
	if err != nil {
		return err
	}
	if hdr.Kind != kind {
		return fmt.Errorf("%w: file holds %s values, want %s", ngerrors.ErrValueKind, hdr.Kind, kind)
	}
	footerOffset := uint64(len(data)) - footerSize

	off := uint64(headerSize)
	if off+4 > footerOffset {
		return ngerrors.ErrTruncatedFile
	}
	tablesLen := uint64(binary.LittleEndian.Uint32(data[off:]))
	if off+4+tablesLen > footerOffset {
		return ngerrors.ErrTruncatedFile
	}
	q, err := decode(data[off+4 : off+4+tablesLen])
	if err != nil {
		return fmt.Errorf("decode rank tables: %w", err)
	}
	if q.Width() != int(hdr.ValueWidth) {
		return fmt.Errorf("%w: rank tables need %d bits, header says %d",
			ngerrors.ErrCorruptedFile, q.Width(), hdr.ValueWidth)
	}
	off = align8(off + 4 + tablesLen)

	numOrders := int(hdr.NumOrders)
	v.q = q
	v.valueWidth = int(hdr.ValueWidth)
	v.radix = int(hdr.Radix)
	v.suffixWidths = make([]int, numOrders)
	v.arrays = make([]*bitarray.Array, numOrders)

	for order := range numOrders {
		if off+orderRecordSize > footerOffset {
			return ngerrors.ErrTruncatedFile
		}
		rec, err := decodeOrderRecord(data[off : off+orderRecordSize])
		if err != nil {
			return fmt.Errorf("order %d: %w", order, err)
		}
		off += orderRecordSize
		if int(rec.KeyWidth) != v.valueWidth {
			return fmt.Errorf("%w: order %d code width %d, want %d",
				ngerrors.ErrCorruptedFile, order, rec.KeyWidth, v.valueWidth)
		}
		v.suffixWidths[order] = int(rec.FullWidth - rec.KeyWidth)
		if !rec.Present {
			continue
		}
		if rec.NumWords > (footerOffset-off)/8 {
			return ngerrors.ErrTruncatedFile
		}
		if rec.Size > uint64(1)<<62 {
			return fmt.Errorf("%w: order %d size %d", ngerrors.ErrCorruptedFile, order, rec.Size)
		}
		words := wordsAt(data, off, rec.NumWords)
		off += rec.NumWords * 8
		arr, err := bitarray.FromWords(words, int64(rec.Size), int(rec.KeyWidth), int(rec.FullWidth))
		if err != nil {
			return fmt.Errorf("%w: order %d: %w", ngerrors.ErrCorruptedFile, order, err)
		}
		v.arrays[order] = arr
	}
	if off != footerOffset {
		return fmt.Errorf("%w: %d trailing bytes before footer", ngerrors.ErrCorruptedFile, footerOffset-off)
	}
	return nil
}

// wordsAt returns n words starting at byte offset off. On little-endian
// hosts the words alias data; off must be 8-byte aligned relative to the
// page-aligned mapping.
func wordsAt(data []byte, off, n uint64) []uint64 {
	if n == 0 {
		return nil
	}
	if nativeLittleEndian {
		return unsafe.Slice((*uint64)(unsafe.Pointer(&data[off])), n)
	}
	words := make([]uint64, n)
	for i := range words {
		words[i] = binary.LittleEndian.Uint64(data[off+uint64(i)*8:])
	}
	return words
}

// Verify recomputes the file checksum. Values that were not opened from a
// file always verify.
func (v *Values[V]) Verify() error {
	if v.closed.Load() {
		return ngerrors.ErrClosed
	}
	if v.data == nil {
		return nil
	}
	footerOffset := len(v.data) - footerSize
	ft, err := decodeFooter(v.data[footerOffset:])
	if err != nil {
		return err
	}
	if actual := xxhash.Sum64(v.data[:footerOffset]); actual != ft.Checksum {
		tracer().Errorf("checksum mismatch: stored %016x, computed %016x", ft.Checksum, actual)
		return ngerrors.ErrChecksumFailed
	}
	return nil
}
