package ngramstore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"github.com/cespare/xxhash/v2"
	"github.com/edsrzf/mmap-go"
	ngerrors "github.com/tamirms/ngramstore/errors"
)

// WriteFile persists v to path. The file is pre-allocated, memory-mapped
// and filled in place; an existing file is replaced.
func WriteFile[V any](path string, v *Values[V]) error {
	if v.closed.Load() {
		return fmt.Errorf("write values: %w", ngerrors.ErrClosed)
	}
	tables, err := v.q.MarshalBinary()
	if err != nil {
		return fmt.Errorf("marshal rank tables: %w", err)
	}

	// Layout: [Header][TablesLen 4B][Tables][pad][Order 0]...[Order n-1][Footer]
	size := fileSizeFor(v, len(tables))

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create values file: %w", err)
	}

	// Pre-allocate disk blocks to prevent SIGBUS on disk full
	if err := fallocateFile(file, int64(size)); err != nil {
		primaryErr := fmt.Errorf("failed to allocate disk space: %w", err)
		return errors.Join(primaryErr, file.Close())
	}

	mm, err := mmap.MapRegion(file, int(size), mmap.RDWR, 0, 0)
	if err != nil {
		primaryErr := fmt.Errorf("failed to mmap file: %w", err)
		return errors.Join(primaryErr, file.Close())
	}
	data := []byte(mm)
	prefaultRegion(data)

	v.encodeTo(data, tables)

	// Flush dirty pages to file (ensures writes visible before unmap)
	if err := mm.Flush(); err != nil {
		primaryErr := fmt.Errorf("mmap flush failed: %w", err)
		return errors.Join(primaryErr, mm.Unmap(), file.Close())
	}
	if err := mm.Unmap(); err != nil {
		primaryErr := fmt.Errorf("mmap unmap failed: %w", err)
		return errors.Join(primaryErr, file.Close())
	}
	if err := file.Close(); err != nil {
		return err
	}
	tracer().Infof("wrote %s: %d bytes, %d orders", path, size, len(v.arrays))
	return nil
}

func fileSizeFor[V any](v *Values[V], tablesLen int) uint64 {
	size := align8(headerSize + 4 + uint64(tablesLen))
	for _, arr := range v.arrays {
		size += orderRecordSize
		if arr != nil {
			size += uint64(len(arr.Words())) * 8
		}
	}
	return size + footerSize
}

// encodeTo serializes v into data, which must be exactly fileSizeFor bytes.
func (v *Values[V]) encodeTo(data []byte, tables []byte) {
	var flags uint8
	if v.HasSuffixOffsets() {
		flags |= flagSuffixOffsets
	}
	hdr := header{
		Magic:      magic,
		Version:    version,
		Kind:       v.q.Kind(),
		NumOrders:  uint8(len(v.arrays)),
		Flags:      flags,
		Radix:      uint8(v.radix),
		ValueWidth: uint8(v.valueWidth),
	}
	hdr.encodeTo(data[0:headerSize])

	// Rank tables: [length 4B][data], zero-padded to 8 bytes
	off := uint64(headerSize)
	binary.LittleEndian.PutUint32(data[off:], uint32(len(tables)))
	copy(data[off+4:], tables)
	end := align8(off + 4 + uint64(len(tables)))
	clear(data[off+4+uint64(len(tables)) : end])
	off = end

	for order, arr := range v.arrays {
		rec := orderRecord{
			KeyWidth:  uint8(v.valueWidth),
			FullWidth: uint8(v.valueWidth + v.suffixWidths[order]),
		}
		var words []uint64
		if arr != nil {
			words = arr.Words()
			rec.Size = uint64(arr.Size())
			rec.Present = true
			rec.NumWords = uint64(len(words))
		}
		rec.encodeTo(data[off : off+orderRecordSize])
		off += orderRecordSize
		for _, w := range words {
			binary.LittleEndian.PutUint64(data[off:], w)
			off += 8
		}
	}

	ftr := footer{Checksum: xxhash.Sum64(data[:off])}
	ftr.encodeTo(data[off : off+footerSize])
}
