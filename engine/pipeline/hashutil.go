package pipeline

import (
	"encoding/binary"
	"hash"
)

func writeStruct(h hash.Hash64, v interface{}) {
	_ = binary.Write(h, binary.LittleEndian, v)
}

func writeUint64(h hash.Hash64, v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	h.Write(buf[:])
}
