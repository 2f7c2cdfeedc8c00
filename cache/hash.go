package cache

import (
	"encoding/binary"
	"unsafe"

	"github.com/spaolacci/murmur3"
	"github.com/zeebo/xxh3"
)

// HashNgram hashes the words of an n-gram key. The hash covers the
// in-memory representation of the words, so it is only comparable within
// one process, which is all a cache needs.
func HashNgram(ngram []int32) uint64 {
	if len(ngram) == 0 {
		return murmur3.Sum64(nil)
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(ngram))), len(ngram)*4)
	return murmur3.Sum64(b)
}

// HashContext hashes a (contextOffset, contextOrder, word) triple.
func HashContext(contextOffset int64, contextOrder int, word int32) uint64 {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[0:8], uint64(contextOffset))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(word))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(contextOrder))
	return xxh3.Hash(buf[:])
}
