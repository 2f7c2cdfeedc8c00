package ngramstore

import (
	"encoding/binary"

	ngerrors "github.com/tamirms/ngramstore/errors"
	"github.com/tamirms/ngramstore/rank"
)

const (
	// magic number for n-gram value files
	// "NGVS" in little-endian
	magic = uint32(0x5356474E)

	// version is the current format version
	version = uint16(0x0001)

	// headerSize is the exact size of the serialized header (64 bytes)
	headerSize = 64

	// footerSize is the exact size of the serialized footer (32 bytes)
	footerSize = 32

	// orderRecordSize is the size of the fixed part of each order section
	orderRecordSize = 24

	// minFileSize is header + empty quantizer section + footer.
	minFileSize = headerSize + 8 + footerSize

	// maxOrders is bounded by the one-byte order count in the header.
	maxOrders = 255

	flagSuffixOffsets = 1 << 0
)

// header is the 64-byte file header.
//
// Layout:
//
//	Offset  Size  Field        Type
//	0       4     Magic        0x5356474E ("NGVS")
//	4       2     Version      0x0001
//	6       1     Kind         uint8 (1=prob/backoff, 2=count)
//	7       1     NumOrders    uint8
//	8       1     Flags        uint8 (bit 0: suffix offsets stored)
//	9       1     Radix        uint8 (compression block width)
//	10      1     ValueWidth   uint8 (bits of a quantizer code)
//	11      53    Reserved     [53]byte (zero)
//
// The quantizer section follows the header: [length u32][rank tables],
// zero-padded to a multiple of 8 bytes. Then one section per order.
type header struct {
	Magic      uint32
	Version    uint16
	Kind       rank.Kind
	NumOrders  uint8
	Flags      uint8
	Radix      uint8
	ValueWidth uint8
}

// encodeTo serializes the header to an existing buffer.
func (h *header) encodeTo(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	binary.LittleEndian.PutUint16(buf[4:6], h.Version)
	buf[6] = uint8(h.Kind)
	buf[7] = h.NumOrders
	buf[8] = h.Flags
	buf[9] = h.Radix
	buf[10] = h.ValueWidth
	clear(buf[11:headerSize])
}

// decodeHeader parses a 64-byte header.
func decodeHeader(buf []byte) (*header, error) {
	if len(buf) < headerSize {
		return nil, ngerrors.ErrTruncatedFile
	}
	h := &header{
		Magic:      binary.LittleEndian.Uint32(buf[0:4]),
		Version:    binary.LittleEndian.Uint16(buf[4:6]),
		Kind:       rank.Kind(buf[6]),
		NumOrders:  buf[7],
		Flags:      buf[8],
		Radix:      buf[9],
		ValueWidth: buf[10],
	}
	if h.Magic != magic {
		return nil, ngerrors.ErrInvalidMagic
	}
	if h.Version != version {
		return nil, ngerrors.ErrInvalidVersion
	}
	if h.NumOrders == 0 || h.ValueWidth == 0 || h.ValueWidth > 64 || h.Radix == 0 || h.Radix > 64 {
		return nil, ngerrors.ErrCorruptedFile
	}
	return h, nil
}

// orderRecord describes one order section.
//
// Layout:
//
//	Offset  Size  Field      Type
//	0       8     Size       uint64_le (records)
//	8       1     KeyWidth   uint8 (code bits)
//	9       1     FullWidth  uint8 (record bits)
//	10      1     Present    uint8 (0: storage was cleared)
//	11      5     Reserved   [5]byte (zero)
//	16      8     NumWords   uint64_le
//
// NumWords little-endian 64-bit words follow, so every section stays
// 8-byte aligned.
type orderRecord struct {
	Size      uint64
	KeyWidth  uint8
	FullWidth uint8
	Present   bool
	NumWords  uint64
}

func (r *orderRecord) encodeTo(buf []byte) {
	binary.LittleEndian.PutUint64(buf[0:8], r.Size)
	buf[8] = r.KeyWidth
	buf[9] = r.FullWidth
	buf[10] = 0
	if r.Present {
		buf[10] = 1
	}
	clear(buf[11:16])
	binary.LittleEndian.PutUint64(buf[16:24], r.NumWords)
}

func decodeOrderRecord(buf []byte) (*orderRecord, error) {
	if len(buf) < orderRecordSize {
		return nil, ngerrors.ErrTruncatedFile
	}
	r := &orderRecord{
		Size:      binary.LittleEndian.Uint64(buf[0:8]),
		KeyWidth:  buf[8],
		FullWidth: buf[9],
		Present:   buf[10] != 0,
		NumWords:  binary.LittleEndian.Uint64(buf[16:24]),
	}
	if buf[10] > 1 || r.KeyWidth > r.FullWidth || r.FullWidth > 64 {
		return nil, ngerrors.ErrCorruptedFile
	}
	return r, nil
}

// footer is the 32-byte file footer.
//
// Layout:
//
//	Offset  Size  Field     Type
//	0       8     Checksum  uint64_le (xxHash64 of every byte before the footer)
//	8       24    Reserved  [24]byte (zero)
type footer struct {
	Checksum uint64
}

// encodeTo serializes the footer into an existing buffer.
func (f *footer) encodeTo(buf []byte) {
	binary.LittleEndian.PutUint64(buf[0:8], f.Checksum)
	clear(buf[8:footerSize])
}

// decodeFooter parses a 32-byte footer.
func decodeFooter(buf []byte) (*footer, error) {
	if len(buf) < footerSize {
		return nil, ngerrors.ErrTruncatedFile
	}
	return &footer{Checksum: binary.LittleEndian.Uint64(buf[0:8])}, nil
}

func align8(n uint64) uint64 {
	return (n + 7) &^ 7
}
